// sse.go — SSE 视图流。
package panel

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BxNxM/even-dev/pkg/logger"
)

// sseHandler 先推当前视图, 之后推送每次本地渲染; 空闲时发 ping 保活。
func (s *Server) sseHandler(c *gin.Context) {
	id, ch, err := s.hub.Bus().Subscribe()
	if err != nil {
		failure(c, err)
		return
	}
	defer func() {
		s.hub.Bus().Unsubscribe(id)
		logger.Info("panel: SSE client disconnected", logger.FieldClient, id)
	}()
	logger.Info("panel: SSE client connected", logger.FieldClient, id)

	if view, err := s.backend.State(c.Request.Context()); err == nil {
		c.SSEvent(EventView, view)
		c.Writer.Flush()
	}

	keepalive := time.NewTimer(s.keepalive)
	defer keepalive.Stop()
	resetKeepalive := func() {
		if !keepalive.Stop() {
			select {
			case <-keepalive.C:
			default:
			}
		}
		keepalive.Reset(s.keepalive)
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case evt := <-ch:
			c.SSEvent(evt.Type, evt.Data)
			resetKeepalive()
			return true
		case <-keepalive.C:
			c.SSEvent(EventPing, "keepalive")
			keepalive.Reset(s.keepalive)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
