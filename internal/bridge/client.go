// client.go — bridge WebSocket 客户端: 握手、RPC 调用、事件读取。
package bridge

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/surface"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
	"github.com/BxNxM/even-dev/pkg/util"
)

const (
	clientName         = "even-dev"
	clientVersion      = "1"
	dialHandshakeLimit = 5 * time.Second
	writeTimeout       = 10 * time.Second
	readIdleTimeout    = 90 * time.Second
	pingInterval       = 30 * time.Second
)

type pendingCall struct {
	done   chan struct{}
	result json.RawMessage
	err    error
	once   sync.Once
}

func (p *pendingCall) finish(result json.RawMessage, err error) {
	p.once.Do(func() {
		p.result = result
		p.err = err
		close(p.done)
	})
}

// Client 一个已握手的 bridge 连接, 实现 surface.RemoteDisplay。
type Client struct {
	url    string
	conn   *websocket.Conn
	device HelloResult

	wrMu    sync.Mutex // gorilla/websocket 不支持并发写
	nextID  atomic.Int64
	pending sync.Map // int64 → *pendingCall

	handlerMu sync.RWMutex
	handler   func(event.RawEvent)

	done      chan struct{}
	closeOnce sync.Once
	stopped   atomic.Bool
}

// Dial 连接 bridge 并完成 bridge/hello 握手。ctx 同时约束拨号与握手。
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: dialHandshakeLimit,
		NetDialContext:   (&net.Dialer{Timeout: dialHandshakeLimit}).DialContext,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.ErrBridgeUnavailable, "bridge.Dial", "dial "+url+": "+err.Error())
	}

	c := &Client{url: url, conn: conn, done: make(chan struct{})}
	_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		return nil
	})
	util.SafeGoNamed("bridge-client-read", c.readLoop)

	var hello HelloResult
	if err := c.call(ctx, MethodHello, HelloParams{Client: clientName, Version: clientVersion}, &hello); err != nil {
		_ = c.Close()
		return nil, pkgerr.Wrap(pkgerr.ErrBridgeUnavailable, "bridge.Dial", "hello: "+err.Error())
	}
	c.device = hello
	util.SafeGoNamed("bridge-client-ping", c.pingLoop)

	logger.Info("bridge: connected",
		logger.FieldURL, url,
		logger.FieldDevice, hello.Device)
	return c, nil
}

// Mode 实现 surface.RemoteDisplay。
func (c *Client) Mode() surface.Mode { return surface.ModeBridge }

// Device 握手返回的设备信息。
func (c *Client) Device() HelloResult { return c.device }

// URL bridge 地址。
func (c *Client) URL() string { return c.url }

// Done 连接关闭后 close。
func (c *Client) Done() <-chan struct{} { return c.done }

// SetEventHandler 设置 device/event 回调 (覆盖旧值)。
func (c *Client) SetEventHandler(fn func(event.RawEvent)) {
	c.handlerMu.Lock()
	c.handler = fn
	c.handlerMu.Unlock()
}

// Create 整页构建。
func (c *Client) Create(ctx context.Context, page surface.Page) error {
	return c.call(ctx, MethodCreate, CreateParams{Page: page}, nil)
}

// Update 增量更新; 远端无法原地更新的元素出现在 Rejected。
func (c *Client) Update(ctx context.Context, updates []surface.ElementUpdate) (surface.UpdateReport, error) {
	var report surface.UpdateReport
	err := c.call(ctx, MethodUpdate, UpdateParams{Updates: updates}, &report)
	return report, err
}

// Close 关闭连接, 失败所有在途调用。可重复调用。
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stopped.Store(true)
		c.wrMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		c.wrMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// ========================================
// JSON-RPC 请求/响应
// ========================================

// call 发送请求并等待响应; 没有固定超时, 由 ctx 或连接关闭结束。
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	select {
	case <-c.done:
		return pkgerr.Wrap(pkgerr.ErrClosed, "bridge.Client.call", method)
	default:
	}

	id := c.nextID.Add(1)
	pc := &pendingCall{done: make(chan struct{})}
	c.pending.Store(id, pc)
	defer c.pending.Delete(id)

	if err := c.writeJSON(Request{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params}); err != nil {
		return pkgerr.Wrap(err, "bridge.Client.call", "write "+method)
	}

	select {
	case <-pc.done:
	case <-ctx.Done():
		return pkgerr.Wrap(ctx.Err(), "bridge.Client.call", method)
	}
	if pc.err != nil {
		return pkgerr.Wrap(pc.err, "bridge.Client.call", method)
	}
	if out != nil && len(pc.result) > 0 {
		if err := json.Unmarshal(pc.result, out); err != nil {
			return pkgerr.Wrap(err, "bridge.Client.call", "decode "+method+" result")
		}
	}
	return nil
}

func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.wrMu.Lock()
	defer c.wrMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer func() {
		_ = c.conn.Close()
		c.failPendingCalls(pkgerr.Wrap(pkgerr.ErrClosed, "bridge.Client.readLoop", "connection closed"))
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.stopped.Load() {
				logger.Warn("bridge: read failed", logger.FieldURL, c.url, logger.FieldError, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readIdleTimeout))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("bridge: unparseable message", logger.FieldDataLen, len(data), logger.FieldError, err)
			continue
		}
		switch {
		case msg.IsResponse():
			c.handleResponse(msg)
		case msg.IsNotification() && msg.Method == MethodEvent:
			c.handlerMu.RLock()
			h := c.handler
			c.handlerMu.RUnlock()
			if h != nil {
				h(event.RawEvent(msg.Params))
			}
		default:
			logger.Debug("bridge: ignored message", logger.FieldMethod, msg.Method)
		}
	}
}

func (c *Client) handleResponse(msg Message) {
	id, err := strconv.ParseInt(string(msg.ID), 10, 64)
	if err != nil {
		logger.Warn("bridge: response with non-numeric id", logger.FieldID, string(msg.ID))
		return
	}
	v, ok := c.pending.Load(id)
	if !ok {
		logger.Debug("bridge: response for unknown request", logger.FieldID, id)
		return
	}
	pc := v.(*pendingCall)
	if msg.Error != nil {
		pc.finish(nil, msg.Error)
		return
	}
	pc.finish(msg.Result, nil)
}

func (c *Client) failPendingCalls(err error) {
	c.pending.Range(func(_, v any) bool {
		v.(*pendingCall).finish(nil, err)
		return true
	})
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.wrMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.wrMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
