// Package sim 模拟眼镜 bridge: WebSocket JSON-RPC 服务端。
//
// 保存当前页面; 接受整页构建; 拒绝改变列表条目数的增量更新 (模拟真机的结构限制);
// 按随机 schema 变体推送设备事件。
package sim

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BxNxM/even-dev/internal/bridge"
	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/surface"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
	"github.com/BxNxM/even-dev/pkg/util"
)

const connOutboxSize = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Stats 模拟器计数。
type Stats struct {
	Creates  int `json:"creates"`
	Updates  int `json:"updates"`
	Rejected int `json:"rejected"`
	Events   int `json:"events"`
	Conns    int `json:"conns"`
}

// Server 模拟 bridge。
type Server struct {
	device string

	mu       sync.Mutex
	page     *surface.Page
	conns    map[string]*connEntry
	stats    Stats
	rng      *rand.Rand
	fixed    *Encoding
	onChange func(surface.Page)
	silent   bool
}

// Option 构造选项。
type Option func(*Server)

// WithSeed 固定随机种子。
func WithSeed(seed uint64) Option {
	return func(s *Server) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithEncoding 固定事件编码 (测试用)。
func WithEncoding(enc Encoding) Option {
	return func(s *Server) { s.fixed = &enc }
}

// WithSilentHello 不回应 bridge/hello, 模拟永不完成的获取。
func WithSilentHello() Option {
	return func(s *Server) { s.silent = true }
}

// New 创建模拟器。
func New(opts ...Option) *Server {
	s := &Server{
		device: "sim-" + uuid.NewString()[:8],
		conns:  make(map[string]*connEntry),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Device 设备 ID。
func (s *Server) Device() string { return s.device }

// OnChange 页面变化回调 (TUI 刷新)。
func (s *Server) OnChange(fn func(surface.Page)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Page 当前页面副本。
func (s *Server) Page() (surface.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return surface.Page{}, false
	}
	return clonePage(*s.page), true
}

// Stats 计数快照。
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Conns = len(s.conns)
	return st
}

// ========================================
// 设备事件
// ========================================

// Emit 模拟一次用户手势: 先在设备侧移动选中行, 再按某种编码推送事件。
func (s *Server) Emit(kind event.Kind) (event.RawEvent, error) {
	s.mu.Lock()
	if s.page == nil || s.page.List == nil {
		s.mu.Unlock()
		return nil, pkgerr.Wrap(pkgerr.ErrNotFound, "sim.Emit", "no page rendered yet")
	}
	list := s.page.List
	n := len(list.Items)
	switch kind {
	case event.ScrollUp:
		list.Selected = util.ClampInt(list.Selected-1, 0, n-1)
	case event.ScrollDown:
		list.Selected = util.ClampInt(list.Selected+1, 0, n-1)
	}
	idx := list.Selected
	name := ""
	if idx >= 0 && idx < n {
		name = list.Items[idx]
	}
	enc := s.pickEncodingLocked()
	page := clonePage(*s.page)
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb(page)
	}
	raw := Encode(enc, kind, idx, strings.ToLower(name))
	logger.Debug("sim: emit", logger.FieldEventType, kind.String(), "encoding", enc.String(), logger.FieldIndex, idx)
	s.EmitRaw(raw)
	return raw, nil
}

// EmitRaw 向所有连接推送原始事件。
func (s *Server) EmitRaw(raw event.RawEvent) {
	data, err := json.Marshal(bridge.NewNotification(bridge.MethodEvent, json.RawMessage(raw)))
	if err != nil {
		return
	}
	s.mu.Lock()
	s.stats.Events++
	conns := make([]*connEntry, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.enqueue(data)
	}
}

func (s *Server) pickEncodingLocked() Encoding {
	if s.fixed != nil {
		return *s.fixed
	}
	return Encoding(s.rng.IntN(int(encodingCount)))
}

// ========================================
// WebSocket 服务
// ========================================

// ServeHTTP 升级为 WebSocket 并处理 JSON-RPC。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("sim: upgrade failed", logger.FieldError, err)
		return
	}
	id := uuid.NewString()
	entry := newConnEntry(ws)
	s.mu.Lock()
	s.conns[id] = entry
	s.mu.Unlock()
	logger.Info("sim: client connected", logger.FieldConn, id, logger.FieldRemote, r.RemoteAddr)

	util.SafeGoNamed("sim-write", func() {
		if err := entry.writeLoop(); err != nil {
			logger.Debug("sim: write loop ended", logger.FieldConn, id, logger.FieldError, err)
		}
		entry.closeNow()
	})
	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		entry.closeNow()
		logger.Info("sim: client disconnected", logger.FieldConn, id)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg bridge.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(entry, bridge.NewError(nil, bridge.CodeParseError, "parse error"))
			continue
		}
		if resp := s.dispatch(msg); resp != nil {
			s.reply(entry, resp)
		}
	}
}

func (s *Server) reply(entry *connEntry, resp *bridge.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	entry.enqueue(data)
}

func (s *Server) dispatch(msg bridge.Message) *bridge.Response {
	id := json.RawMessage(msg.ID)
	switch msg.Method {
	case bridge.MethodHello:
		if s.silent {
			return nil
		}
		return bridge.NewResult(id, bridge.HelloResult{
			Device: s.device,
			Width:  surface.CanvasWidth,
			Height: surface.CanvasHeight,
		})
	case bridge.MethodCreate:
		var p bridge.CreateParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			return bridge.NewError(id, bridge.CodeInvalidParams, err.Error())
		}
		s.setPage(p.Page)
		return bridge.NewResult(id, map[string]bool{"ok": true})
	case bridge.MethodUpdate:
		var p bridge.UpdateParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			return bridge.NewError(id, bridge.CodeInvalidParams, err.Error())
		}
		report, ok := s.applyUpdates(p.Updates)
		if !ok {
			return bridge.NewError(id, bridge.CodeNoPage, "no page to update")
		}
		return bridge.NewResult(id, report)
	default:
		return bridge.NewError(id, bridge.CodeMethodNotFound, "method not found: "+msg.Method)
	}
}

func (s *Server) setPage(p surface.Page) {
	s.mu.Lock()
	cp := clonePage(p)
	s.page = &cp
	s.stats.Creates++
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(clonePage(p))
	}
}

// applyUpdates 文本元素原地替换; 列表只接受条目数不变的更新。
func (s *Server) applyUpdates(updates []surface.ElementUpdate) (surface.UpdateReport, bool) {
	s.mu.Lock()
	if s.page == nil {
		s.mu.Unlock()
		return surface.UpdateReport{}, false
	}
	report := surface.UpdateReport{Applied: []string{}, Rejected: []string{}}
	for _, u := range updates {
		if s.page.List != nil && u.ID == s.page.List.ID {
			if len(u.Items) != len(s.page.List.Items) {
				report.Rejected = append(report.Rejected, u.ID)
				continue
			}
			s.page.List.Items = append([]string{}, u.Items...)
			s.page.List.Selected = u.Selected
			report.Applied = append(report.Applied, u.ID)
			continue
		}
		i := slices.IndexFunc(s.page.Texts, func(t surface.TextBlock) bool { return t.ID == u.ID })
		if i < 0 {
			report.Rejected = append(report.Rejected, u.ID)
			continue
		}
		s.page.Texts[i].Content = u.Content
		report.Applied = append(report.Applied, u.ID)
	}
	s.stats.Updates++
	s.stats.Rejected += len(report.Rejected)
	page := clonePage(*s.page)
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(page)
	}
	return report, true
}

// ListenAndServe 启动模拟器, ctx 取消后 5 秒内优雅关闭。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/bridge", s)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	util.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("sim: shutdown error", logger.FieldError, err)
		}
	})
	logger.Info("sim: listening", logger.FieldAddr, addr, logger.FieldDevice, s.device)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return pkgerr.Wrap(err, "sim.ListenAndServe", "listen")
	}
	return nil
}

// DropClients 断开所有客户端 (模拟设备掉线)。
func (s *Server) DropClients() { s.closeAll() }

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*connEntry, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.closeNow()
	}
}

func clonePage(p surface.Page) surface.Page {
	out := surface.Page{Texts: append([]surface.TextBlock(nil), p.Texts...)}
	if p.List != nil {
		l := *p.List
		l.Items = append([]string(nil), p.List.Items...)
		out.List = &l
	}
	return out
}

// ========================================
// 连接写队列
// ========================================

// connEntry WebSocket 连接 + 写队列 (gorilla/websocket 不支持并发写)。
type connEntry struct {
	ws        *websocket.Conn
	outbox    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newConnEntry(ws *websocket.Conn) *connEntry {
	return &connEntry{
		ws:      ws,
		outbox:  make(chan []byte, connOutboxSize),
		closeCh: make(chan struct{}),
	}
}

func (c *connEntry) enqueue(data []byte) bool {
	select {
	case <-c.closeCh:
		return false
	default:
	}
	select {
	case c.outbox <- data:
		return true
	default:
		logger.Warn("sim: client outbox full, dropping message")
		return false
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
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}
}
