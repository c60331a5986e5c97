// Package panel 浏览器控制面板: REST API + SSE + WebSocket 视图推送。
//
// 面板是本地显示; 所有修改都经 Backend (engine.Session) 的队列执行。
package panel

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BxNxM/even-dev/internal/bridge"
	"github.com/BxNxM/even-dev/internal/engine"
	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/store"
	"github.com/BxNxM/even-dev/internal/surface"
	"github.com/BxNxM/even-dev/internal/uistate"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
	"github.com/BxNxM/even-dev/pkg/util"
)

const defaultKeepalive = 30 * time.Second

// Backend 面板依赖的会话能力 (*engine.Session 满足)。
type Backend interface {
	State(ctx context.Context) (surface.PanelView, error)
	Do(ctx context.Context, a uistate.LocalAction) (surface.PanelView, error)
	Inject(ctx context.Context, raw event.RawEvent) (event.Interpretation, surface.PanelView, error)
	Connect(ctx context.Context) surface.Mode
	Stats() engine.Stats
	BridgeStatus() bridge.Status
}

// Deps 服务器依赖注入。
type Deps struct {
	Backend     Backend
	Hub         *Hub
	Diagnostics store.DiagnosticSource // 可选
	Keepalive   time.Duration          // SSE 保活, 默认 30s
}

// Server 面板 HTTP 服务。
type Server struct {
	router    *gin.Engine
	backend   Backend
	hub       *Hub
	diag      store.DiagnosticSource
	keepalive time.Duration
}

// New 创建面板服务。
func New(deps Deps) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(0)
	}
	keepalive := deps.Keepalive
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}
	s := &Server{
		router:    r,
		backend:   deps.Backend,
		hub:       hub,
		diag:      deps.Diagnostics,
		keepalive: keepalive,
	}
	s.registerRoutes()
	return s
}

// Engine gin 引擎 (测试用 httptest 直接驱动)。
func (s *Server) Engine() *gin.Engine { return s.router }

// Hub 视图广播。
func (s *Server) Hub() *Hub { return s.hub }

// requestLogger 以 slog 记录请求 (替代 gin 默认 stdout 日志)。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("panel: request",
			logger.FieldMethod, c.Request.Method,
			logger.FieldPath, c.Request.URL.Path,
			logger.FieldStatus, c.Writer.Status(),
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}
}

// ListenAndServe 启动 HTTP 服务, ctx 取消后给活跃连接 5 秒完成。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	util.SafeGo(func() {
		<-ctx.Done()
		logger.Info("panel: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("panel: shutdown error", logger.FieldError, err)
		}
	})
	logger.Info("panel: listening", logger.FieldListen, addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return pkgerr.Wrap(err, "panel.ListenAndServe", "listen")
	}
	return nil
}
