// protocol.go — bridge JSON-RPC 2.0 协议类型定义。
//
//	Request:      {"jsonrpc":"2.0", "id":1, "method":"page/create", "params":{...}}
//	Response:     {"jsonrpc":"2.0", "id":1, "result":{...}}
//	Error:        {"jsonrpc":"2.0", "id":1, "error":{"code":..., "message":"..."}}
//	Notification: {"jsonrpc":"2.0", "method":"device/event", "params":<raw event>}
//
// 握手: 客户端连上后先发 bridge/hello, 收到结果才算获取到 handle。
package bridge

import (
	"encoding/json"

	"github.com/BxNxM/even-dev/internal/surface"
)

const jsonrpcVersion = "2.0"

// 方法名。
const (
	MethodHello  = "bridge/hello"
	MethodCreate = "page/create"
	MethodUpdate = "page/update"
	MethodEvent  = "device/event"
)

// 标准 JSON-RPC 2.0 错误码 + bridge 扩展。
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNoPage         = -32010
)

// Request JSON-RPC 2.0 请求。
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response JSON-RPC 2.0 响应。
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// Notification JSON-RPC 2.0 通知 (无 id)。
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCError JSON-RPC 2.0 错误。
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error 实现 error 接口。
func (e *RPCError) Error() string { return e.Message }

// Message 读取端的联合体: 按 id/method 是否存在区分请求、响应与通知。
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsResponse 有 id 无 method。
func (m *Message) IsResponse() bool { return len(m.ID) > 0 && m.Method == "" }

// IsNotification 有 method 无 id。
func (m *Message) IsNotification() bool { return len(m.ID) == 0 && m.Method != "" }

// HelloParams bridge/hello 参数。
type HelloParams struct {
	Client  string `json:"client"`
	Version string `json:"version"`
}

// HelloResult bridge/hello 结果。
type HelloResult struct {
	Device string `json:"device"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// CreateParams page/create 参数。
type CreateParams struct {
	Page surface.Page `json:"page"`
}

// UpdateParams page/update 参数。
type UpdateParams struct {
	Updates []surface.ElementUpdate `json:"updates"`
}

// NewResult 成功响应。
func NewResult(id any, result any) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}

// NewError 错误响应。
func NewError(id any, code int, msg string) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Error: &RPCError{Code: code, Message: msg}}
}

// NewNotification 通知。
func NewNotification(method string, params any) *Notification {
	return &Notification{JSONRPC: jsonrpcVersion, Method: method, Params: params}
}
