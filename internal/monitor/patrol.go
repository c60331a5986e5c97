// Package monitor bridge 链路巡检: 分类链路健康度, Mock 模式下按退避自动重连。
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/BxNxM/even-dev/internal/bridge"
	"github.com/BxNxM/even-dev/internal/surface"
	"github.com/BxNxM/even-dev/pkg/logger"
	"github.com/BxNxM/even-dev/pkg/util"
)

// 链路健康度。
const (
	LinkConnected = "connected" // bridge 在线, 最近一次远端渲染成功
	LinkDegraded  = "degraded"  // bridge 在线, 但最近一次远端渲染失败
	LinkMock      = "mock"      // 从未连接或已降级
	LinkLost      = "lost"      // 曾在线, 连接中断
)

// Target 巡检对象 (*engine.Session 满足)。
type Target interface {
	BridgeStatus() bridge.Status
	LastRemote() surface.RemoteResult
	Connect(ctx context.Context) surface.Mode
	// ConnectRequested 是否已有人 (自动连接或用户) 发起过连接; 否则不自动重连。
	ConnectRequested() bool
}

// EventPublisher 快照推送 (面板 Hub 满足)。
type EventPublisher interface {
	PublishLinkStatus(snapshot any)
}

// ClassifyLink 根据探测器状态与最近渲染结果分类。
func ClassifyLink(st bridge.Status, last surface.RemoteResult) string {
	if st.Mode == surface.ModeBridge {
		if last.Error != "" {
			return LinkDegraded
		}
		return LinkConnected
	}
	if st.LastError == bridge.LostReason {
		return LinkLost
	}
	return LinkMock
}

// LinkSnapshot 一次巡检结果。
type LinkSnapshot struct {
	Ts          time.Time     `json:"ts"`
	Health      string        `json:"health"`
	Bridge      bridge.Status `json:"bridge"`
	Reconnected bool          `json:"reconnected"`
	Failures    int           `json:"failures"`
	NextAttempt time.Time     `json:"nextAttempt,omitzero"`
}

// Patrol 链路巡检器。
type Patrol struct {
	target   Target
	pub      EventPublisher
	interval time.Duration
	maxDelay time.Duration

	mu          sync.Mutex
	failures    int
	nextAttempt time.Time
}

// NewPatrol interval <= 0 时只分类不重连。
// 从未发起过连接 (如关闭了自动连接) 时同样不重连。
func NewPatrol(target Target, pub EventPublisher, interval, maxDelay time.Duration) *Patrol {
	if maxDelay < interval {
		maxDelay = interval
	}
	return &Patrol{target: target, pub: pub, interval: interval, maxDelay: maxDelay}
}

// backoff 第 n 次连续失败后的等待: interval * 2^(n-1), 封顶 maxDelay。
func (p *Patrol) backoff(n int) time.Duration {
	d := p.interval
	for i := 1; i < n && d < p.maxDelay; i++ {
		d *= 2
	}
	return min(d, p.maxDelay)
}

// RunOnce 执行一次巡检。已发起过连接、处于 Mock 且退避到期时尝试重连。
func (p *Patrol) RunOnce(ctx context.Context, now time.Time) LinkSnapshot {
	st := p.target.BridgeStatus()
	reconnected := false

	retry := p.interval > 0 && st.Mode == surface.ModeMock && p.target.ConnectRequested()

	p.mu.Lock()
	if retry && p.nextAttempt.IsZero() {
		// 刚进入 Mock: 先等一个间隔, 不紧跟在刚失败的连接之后重试。
		p.nextAttempt = now.Add(p.interval)
	}
	due := retry && !now.Before(p.nextAttempt)
	p.mu.Unlock()

	if due {
		mode := p.target.Connect(ctx)
		p.mu.Lock()
		if mode == surface.ModeBridge {
			p.failures = 0
			p.nextAttempt = time.Time{}
			reconnected = true
		} else {
			p.failures++
			p.nextAttempt = now.Add(p.backoff(p.failures))
		}
		p.mu.Unlock()
		st = p.target.BridgeStatus()
	} else if st.Mode == surface.ModeBridge {
		p.mu.Lock()
		p.failures = 0
		p.nextAttempt = time.Time{}
		p.mu.Unlock()
	}

	p.mu.Lock()
	snap := LinkSnapshot{
		Ts:          now,
		Health:      ClassifyLink(st, p.target.LastRemote()),
		Bridge:      st,
		Reconnected: reconnected,
		Failures:    p.failures,
		NextAttempt: p.nextAttempt,
	}
	p.mu.Unlock()

	if reconnected {
		logger.Info("patrol: bridge reconnected", logger.FieldGeneration, st.Generation)
	}
	if p.pub != nil {
		p.pub.PublishLinkStatus(snap)
	}
	return snap
}

// Start 定期巡检直到 ctx 取消。tick 为巡检周期 (与重连退避无关)。
func (p *Patrol) Start(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	util.SafeGoNamed("link-patrol", func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				p.RunOnce(ctx, now)
			}
		}
	})
	logger.Infow("patrol started", "tick_ms", tick.Milliseconds(), "reconnect_ms", p.interval.Milliseconds())
}
