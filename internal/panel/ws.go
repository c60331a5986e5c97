// ws.go — WebSocket: 推送视图, 接收面板动作与调试事件。
package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/uistate"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
	"github.com/BxNxM/even-dev/pkg/util"
)

const (
	wsOutboxSize   = 64
	wsMaxMessage   = 64 << 10
	wsWriteTimeout = 10 * time.Second
)

// 客户端请求类型。
const (
	wsTypeAction  = "action"
	wsTypeEvent   = "event"
	wsTypeConnect = "connect"
	wsTypeState   = "state"
	wsTypeResult  = "result"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     checkLocalOrigin,
}

// checkLocalOrigin 只接受本机来源 (或无 Origin 的非浏览器客户端)。
func checkLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(strings.ToLower(origin))
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		switch u.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	}
	logger.Warn("panel: rejected non-local origin", logger.FieldOrigin, origin)
	return false
}

// wsRequest 客户端消息。Payload 对 action 是 LocalAction, 对 event 是原始事件。
type wsRequest struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsMessage 服务端消息: 广播视图 (type=view) 或请求结果 (type=result)。
type wsMessage struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	Success *bool    `json:"success,omitempty"`
	Data    any      `json:"data,omitempty"`
	Error   *wsError `json:"error,omitempty"`
}

func (s *Server) wsHandler(c *gin.Context) {
	id, events, err := s.hub.Bus().Subscribe()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": gin.H{"code": "too_many_clients", "message": err.Error()}})
		return
	}
	defer s.hub.Bus().Unsubscribe(id)

	ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("panel: upgrade failed", logger.FieldClient, id, logger.FieldError, err)
		return
	}
	ws.SetReadLimit(wsMaxMessage)
	entry := newConnEntry(ws)
	defer entry.closeNow()
	logger.Info("panel: ws client connected", logger.FieldClient, id, logger.FieldRemote, c.Request.RemoteAddr)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	util.SafeGoNamed("panel-ws-write", func() {
		if err := entry.writeLoop(); err != nil {
			logger.Debug("panel: ws write loop ended", logger.FieldClient, id, logger.FieldError, err)
		}
		entry.closeNow()
		cancel()
	})
	util.SafeGoNamed("panel-ws-push", func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				entry.send(wsMessage{Type: evt.Type, Data: evt.Data})
			}
		}
	})

	if view, err := s.backend.State(ctx); err == nil {
		entry.send(wsMessage{Type: EventView, Data: view})
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			logger.Info("panel: ws client disconnected", logger.FieldClient, id)
			return
		}
		entry.send(s.handleWSRequest(ctx, data))
	}
}

// handleWSRequest 执行一条客户端请求并生成结果消息。
func (s *Server) handleWSRequest(ctx context.Context, data []byte) wsMessage {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsFailure("", "invalid_json", err.Error())
	}
	switch req.Type {
	case wsTypeAction:
		var a uistate.LocalAction
		if err := json.Unmarshal(req.Payload, &a); err != nil {
			return wsFailure(req.ID, "invalid_request", err.Error())
		}
		view, err := s.backend.Do(ctx, a)
		if err != nil {
			return wsFailure(req.ID, util.FirstNonEmpty(pkgerr.CodeOf(err), "action_failed"), err.Error())
		}
		return wsSuccess(req.ID, view)
	case wsTypeEvent:
		if len(req.Payload) == 0 || !json.Valid(req.Payload) {
			return wsFailure(req.ID, "invalid_json", "event payload must be JSON")
		}
		it, view, err := s.backend.Inject(ctx, event.RawEvent(req.Payload))
		if err != nil {
			return wsFailure(req.ID, util.FirstNonEmpty(pkgerr.CodeOf(err), "event_failed"), err.Error())
		}
		return wsSuccess(req.ID, map[string]any{"interpretation": it, "view": view})
	case wsTypeConnect:
		mode := s.connectBridge(ctx)
		return wsSuccess(req.ID, map[string]any{"mode": mode, "bridge": s.backend.BridgeStatus()})
	case wsTypeState:
		view, err := s.backend.State(ctx)
		if err != nil {
			return wsFailure(req.ID, "unavailable", err.Error())
		}
		return wsSuccess(req.ID, view)
	default:
		return wsFailure(req.ID, "unknown_type", "unknown message type "+req.Type)
	}
}

func wsSuccess(id string, data any) wsMessage {
	ok := true
	return wsMessage{Type: wsTypeResult, ID: id, Success: &ok, Data: data}
}

func wsFailure(id, code, message string) wsMessage {
	ok := false
	return wsMessage{Type: wsTypeResult, ID: id, Success: &ok, Error: &wsError{Code: code, Message: message}}
}

// ========================================
// 连接写队列
// ========================================

// connEntry gorilla/websocket 不支持并发写, 所有写入经 outbox 串行化。
type connEntry struct {
	ws        *websocket.Conn
	outbox    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newConnEntry(ws *websocket.Conn) *connEntry {
	return &connEntry{ws: ws, outbox: make(chan []byte, wsOutboxSize), closeCh: make(chan struct{})}
}

func (c *connEntry) send(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Warn("panel: ws marshal failed", logger.FieldError, err)
		return
	}
	select {
	case <-c.closeCh:
	case c.outbox <- data:
	default:
		logger.Warn("panel: ws outbox full, dropping message")
	}
}

func (c *connEntry) closeNow() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		_ = c.ws.Close()
	})
}

func (c *connEntry) writeLoop() error {
	for {
		select {
		case <-c.closeCh:
			return nil
		case data := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}
}
