// handler.go — REST API handlers。
package panel

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/store"
	"github.com/BxNxM/even-dev/internal/surface"
	"github.com/BxNxM/even-dev/internal/uistate"
)

const (
	defaultDiagLimit = 100
	maxEventBytes    = 64 << 10
)

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	api.GET("/health", s.health)
	api.GET("/state", s.getState)
	api.GET("/status", s.getStatus)

	api.POST("/actions", s.postAction)
	api.POST("/options", s.addOption)
	api.DELETE("/options/:label", s.removeOption)
	api.POST("/select", s.selectOption)

	api.POST("/connect", s.connect)
	api.POST("/bridge/events", s.injectEvent)

	api.GET("/diagnostics", s.listDiagnostics)
	api.GET("/events", s.sseHandler)

	s.router.GET("/ws", s.wsHandler)
}

func (s *Server) health(c *gin.Context) {
	success(c, gin.H{"status": "ok", "mode": s.backend.BridgeStatus().Mode, "clients": s.hub.Bus().Len()})
}

func (s *Server) getState(c *gin.Context) {
	view, err := s.backend.State(c.Request.Context())
	if err != nil {
		failure(c, err)
		return
	}
	success(c, view)
}

func (s *Server) getStatus(c *gin.Context) {
	success(c, gin.H{
		"bridge":  s.backend.BridgeStatus(),
		"stats":   s.backend.Stats(),
		"clients": s.hub.Bus().Len(),
	})
}

// ========================================
// 本地动作
// ========================================

func (s *Server) do(c *gin.Context, a uistate.LocalAction, created201 bool) {
	view, err := s.backend.Do(c.Request.Context(), a)
	if err != nil {
		failure(c, err)
		return
	}
	if created201 {
		created(c, view)
		return
	}
	success(c, view)
}

func (s *Server) postAction(c *gin.Context) {
	var a uistate.LocalAction
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	s.do(c, a, false)
}

func (s *Server) addOption(c *gin.Context) {
	var req struct {
		Label string `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	s.do(c, uistate.LocalAction{Kind: uistate.ActionAddOption, Label: req.Label}, true)
}

func (s *Server) removeOption(c *gin.Context) {
	s.do(c, uistate.LocalAction{Kind: uistate.ActionRemoveOption, Label: c.Param("label")}, false)
}

func (s *Server) selectOption(c *gin.Context) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		badRequest(c, "invalid_request", "index is required")
		return
	}
	s.do(c, uistate.LocalAction{Kind: uistate.ActionSelect, Index: *req.Index}, false)
}

// ========================================
// bridge
// ========================================

func (s *Server) connect(c *gin.Context) {
	mode := s.connectBridge(c.Request.Context())
	view, err := s.backend.State(c.Request.Context())
	if err != nil {
		failure(c, err)
		return
	}
	success(c, gin.H{"mode": mode, "bridge": s.backend.BridgeStatus(), "view": view})
}

// connectBridge 连接不跟随请求取消: 客户端中途断开不应让探测器把
// 正常获取当作超时, 进而关闭刚建立的 handle。预算仍由探测器控制。
func (s *Server) connectBridge(ctx context.Context) surface.Mode {
	return s.backend.Connect(context.WithoutCancel(ctx))
}

// injectEvent 注入原始 bridge 事件 (调试); 请求体即原始载荷。
func (s *Server) injectEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes+1))
	if err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	if len(body) > maxEventBytes {
		badRequest(c, "payload_too_large", "event payload exceeds "+strconv.Itoa(maxEventBytes)+" bytes")
		return
	}
	if !json.Valid(body) {
		badRequest(c, "invalid_json", "event payload must be JSON")
		return
	}
	it, view, err := s.backend.Inject(c.Request.Context(), event.RawEvent(body))
	if err != nil {
		failure(c, err)
		return
	}
	success(c, gin.H{"interpretation": it, "view": view})
}

// ========================================
// 诊断日志
// ========================================

func (s *Server) listDiagnostics(c *gin.Context) {
	if s.diag == nil {
		success(c, []any{})
		return
	}
	p := store.ListParams{Limit: defaultDiagLimit}
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	items, err := s.diag.Diagnostics(c.Request.Context(), p)
	if err != nil {
		serverError(c, err)
		return
	}
	success(c, items)
}
