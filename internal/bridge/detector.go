// detector.go — bridge 可用性探测: 在固定预算内获取 handle, 超时降级为 Mock。
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/surface"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
	"github.com/BxNxM/even-dev/pkg/util"
)

// DefaultConnectBudget bridge 获取的默认预算。
const DefaultConnectBudget = 4000 * time.Millisecond

// Handle 已获取的 bridge: 远端显示 + 事件源。
type Handle interface {
	surface.RemoteDisplay
	SetEventHandler(fn func(event.RawEvent))
	Done() <-chan struct{}
	Close() error
}

// AcquireFunc 获取 handle; 应尊重 ctx, 但探测器不依赖这一点。
type AcquireFunc func(ctx context.Context) (Handle, error)

// DialAcquirer 基于 WebSocket 的 AcquireFunc。
func DialAcquirer(url string) AcquireFunc {
	return func(ctx context.Context) (Handle, error) {
		return Dial(ctx, url)
	}
}

// RemoteSink 接收当前远端 (通常是 *surface.Renderer)。
type RemoteSink interface {
	SetRemote(d surface.RemoteDisplay)
}

// LostReason 连接中断后 Status.LastError 的取值。
const LostReason = "connection lost"

// Status 探测器对外状态。
type Status struct {
	Mode        surface.Mode `json:"mode"`
	Generation  uint64       `json:"generation"`
	LastAttempt time.Time    `json:"lastAttempt,omitzero"`
	LastError   string       `json:"lastError,omitempty"`
	Attempts    int          `json:"attempts"`
}

type acquireResult struct {
	h   Handle
	err error
}

// Detector 拥有 bridge handle。
//
// Connect 串行执行; 每个 handle 只注册一次事件转发, 转发时校验代次,
// 旧 handle 的迟到事件被丢弃。onEvent 是进程内唯一的事件消费者。
type Detector struct {
	acquire AcquireFunc
	sink    RemoteSink
	onEvent func(event.RawEvent)

	connectMu sync.Mutex // 串行化 Connect

	mu           sync.Mutex // 保护以下字段
	handle       Handle
	generation   uint64
	status       Status
	onDisconnect func()
}

// NewDetector 创建探测器。sink / onEvent 可为 nil。
func NewDetector(acquire AcquireFunc, sink RemoteSink, onEvent func(event.RawEvent)) *Detector {
	return &Detector{
		acquire: acquire,
		sink:    sink,
		onEvent: onEvent,
		status:  Status{Mode: surface.ModeMock},
	}
}

// OnDisconnect 注册连接丢失回调 (在 watcher goroutine 上调用)。
func (d *Detector) OnDisconnect(fn func()) {
	d.mu.Lock()
	d.onDisconnect = fn
	d.mu.Unlock()
}

// Mode 当前模式。
func (d *Detector) Mode() surface.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status.Mode
}

// Status 当前状态快照。
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Connect 在 budget 内获取 bridge handle 并返回最终模式。
//
// 成功: Bridge 模式, 新 handle 安装到 sink (首渲染标志随之复位)。
// 超时或失败: Mock 模式, 原有 handle 被关闭; 从不返回错误。
// 超时后仍在进行的获取会被取消, 其迟到的 handle 直接关闭。
func (d *Detector) Connect(ctx context.Context, budget time.Duration) surface.Mode {
	mode, _ := d.TryConnect(ctx, budget)
	return mode
}

// TryConnect 同 Connect, 但获取过程出现意外 (panic) 时额外返回 ErrInternal 错误。
// 普通的拨号失败或超时仍只体现为 Mock, error 为 nil。
func (d *Detector) TryConnect(ctx context.Context, budget time.Duration) (surface.Mode, error) {
	d.connectMu.Lock()
	defer d.connectMu.Unlock()

	if budget <= 0 {
		budget = DefaultConnectBudget
	}
	start := time.Now()

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	resCh := make(chan acquireResult, 1)
	util.SafeGoNamed("bridge-acquire", func() {
		h, err := d.acquire(attemptCtx)
		resCh <- acquireResult{h: h, err: err}
	}, func(r any) {
		resCh <- acquireResult{err: panicError{r}}
	})

	timer := time.NewTimer(budget)
	defer timer.Stop()

	var res acquireResult
	timedOut := false
	select {
	case res = <-resCh:
		cancel()
	case <-timer.C:
		timedOut = true
	case <-ctx.Done():
		timedOut = true
	}

	if timedOut {
		cancel()
		util.SafeGoNamed("bridge-acquire-drain", func() {
			late := <-resCh
			if late.h != nil {
				logger.Info("bridge: discarding late handle")
				_ = late.h.Close()
			}
		})
		d.degrade("acquisition timed out after "+budget.String(), start, budget)
		return surface.ModeMock, nil
	}
	if res.err != nil || res.h == nil {
		msg := "acquisition returned no handle"
		if res.err != nil {
			msg = res.err.Error()
		}
		d.degrade(msg, start, budget)
		var pe panicError
		if errors.As(res.err, &pe) {
			return surface.ModeMock, pkgerr.Wrap(pkgerr.ErrInternal, "Detector.Connect", pe.Error())
		}
		return surface.ModeMock, nil
	}

	d.install(res.h, start)
	return surface.ModeBridge, nil
}

// install 安装新 handle。同一 handle 不重复注册事件转发。
func (d *Detector) install(h Handle, start time.Time) {
	d.mu.Lock()
	old := d.handle
	same := old == h
	if !same {
		d.generation++
		d.handle = h
	}
	gen := d.generation
	d.status.Mode = surface.ModeBridge
	d.status.Generation = gen
	d.status.LastAttempt = start
	d.status.LastError = ""
	d.status.Attempts++
	d.mu.Unlock()

	if !same {
		h.SetEventHandler(d.forwarder(gen))
		util.SafeGoNamed("bridge-watch", func() { d.watch(h, gen) })
		if old != nil {
			_ = old.Close()
		}
	}
	if d.sink != nil {
		d.sink.SetRemote(h)
	}
	logger.Info("bridge: connected",
		logger.FieldMode, surface.ModeBridge.String(),
		logger.FieldGeneration, gen,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		"reused", same)
}

// degrade 切换到 Mock, 关闭现有 handle。
func (d *Detector) degrade(reason string, start time.Time, budget time.Duration) {
	d.mu.Lock()
	old := d.handle
	d.handle = nil
	if old != nil {
		d.generation++
	}
	d.status.Mode = surface.ModeMock
	d.status.Generation = d.generation
	d.status.LastAttempt = start
	d.status.LastError = reason
	d.status.Attempts++
	d.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	if d.sink != nil {
		d.sink.SetRemote(surface.MockDisplay{})
	}
	logger.Info("bridge: unavailable, using mock",
		logger.FieldMode, surface.ModeMock.String(),
		logger.FieldBudgetMS, budget.Milliseconds(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		logger.FieldError, reason)
}

// forwarder 只转发当前代次 handle 的事件。
func (d *Detector) forwarder(gen uint64) func(event.RawEvent) {
	return func(raw event.RawEvent) {
		d.mu.Lock()
		current := d.generation == gen && d.handle != nil
		d.mu.Unlock()
		if !current {
			logger.Debug("bridge: dropped event from stale handle", logger.FieldGeneration, gen)
			return
		}
		if d.onEvent != nil {
			d.onEvent(raw)
		}
	}
}

// watch handle 关闭后, 若仍是当前 handle 则降级为 Mock。
func (d *Detector) watch(h Handle, gen uint64) {
	<-h.Done()
	d.mu.Lock()
	if d.generation != gen || d.handle != h {
		d.mu.Unlock()
		return
	}
	d.handle = nil
	d.generation++
	d.status.Mode = surface.ModeMock
	d.status.Generation = d.generation
	d.status.LastError = LostReason
	cb := d.onDisconnect
	d.mu.Unlock()

	if d.sink != nil {
		d.sink.SetRemote(surface.MockDisplay{})
	}
	logger.Warn("bridge: connection lost", logger.FieldGeneration, gen)
	if cb != nil {
		cb()
	}
}

// Close 关闭当前 handle。
func (d *Detector) Close() error {
	d.mu.Lock()
	h := d.handle
	d.handle = nil
	d.generation++
	d.status.Mode = surface.ModeMock
	d.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close()
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("acquire panicked: %v", p.v) }
