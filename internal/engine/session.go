// Package engine 把 bridge 事件与面板动作串行化到同一个队列 goroutine 上,
// 依次执行 解码 → 归一化 → 解析 → 调和 → 渲染。
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BxNxM/even-dev/internal/bridge"
	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/surface"
	"github.com/BxNxM/even-dev/internal/uistate"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
	"github.com/BxNxM/even-dev/pkg/util"
)

const jobQueueSize = 256

// 连接结果状态栏文案。
const (
	StatusBridgeConnected = "bridge connected"
	StatusMockMode        = "mock mode: bridge unavailable"
	StatusBridgeLost      = "bridge disconnected"
)

// Options Session 构造参数。
type Options struct {
	App     string
	Title   string
	Profile string
	Options []string

	Local   surface.LocalDisplay
	Acquire bridge.AcquireFunc
	Budget  time.Duration
}

// Stats 运行计数。
type Stats struct {
	Events   int64 `json:"events"`
	Unknown  int64 `json:"unknown"`
	Actions  int64 `json:"actions"`
	Connects int64 `json:"connects"`
	Panics   int64 `json:"panics"`
}

// Session 一个运行中应用实例: 唯一状态 + 渲染器 + bridge 探测器。
type Session struct {
	rec      *uistate.Reconciler
	renderer *surface.Renderer
	detector *bridge.Detector
	budget   time.Duration

	jobs    chan func()
	stopped chan struct{}
	running atomic.Bool

	events, unknown, actions, connects, panics atomic.Int64
}

// New 创建 Session。Acquire 为 nil 时永远处于 Mock 模式。
func New(opts Options) *Session {
	s := &Session{
		rec:      uistate.NewReconciler(opts.App, opts.Title, uistate.ProfileByName(opts.Profile), opts.Options),
		renderer: surface.NewRenderer(opts.Local),
		budget:   opts.Budget,
		jobs:     make(chan func(), jobQueueSize),
		stopped:  make(chan struct{}),
	}
	acquire := opts.Acquire
	if acquire == nil {
		acquire = func(context.Context) (bridge.Handle, error) {
			return nil, pkgerr.Wrap(pkgerr.ErrBridgeUnavailable, "engine.New", "no bridge configured")
		}
	}
	s.detector = bridge.NewDetector(acquire, s.renderer, s.HandleRawEvent)
	s.detector.OnDisconnect(func() {
		s.post(func() {
			s.rec.SetStatus(StatusBridgeLost)
			s.renderer.Render(s.rec.Snapshot())
		})
	})
	s.renderer.OnRemoteResult(func(res surface.RemoteResult) {
		s.post(func() { s.renderer.RenderLocal(s.rec.Snapshot()) })
	})
	return s
}

// Renderer 渲染器 (只读用途: 模式、最近结果)。
func (s *Session) Renderer() *surface.Renderer { return s.renderer }

// Detector bridge 探测器。
func (s *Session) Detector() *bridge.Detector { return s.detector }

// BridgeStatus 探测器状态。
func (s *Session) BridgeStatus() bridge.Status { return s.detector.Status() }

// ConnectRequested 是否调用过 Connect。
func (s *Session) ConnectRequested() bool { return s.connects.Load() > 0 }

// LastRemote 最近一次远端渲染结果。
func (s *Session) LastRemote() surface.RemoteResult { return s.renderer.LastResult() }

// Stats 计数快照。
func (s *Session) Stats() Stats {
	return Stats{
		Events:   s.events.Load(),
		Unknown:  s.unknown.Load(),
		Actions:  s.actions.Load(),
		Connects: s.connects.Load(),
		Panics:   s.panics.Load(),
	}
}

// ========================================
// 队列
// ========================================

// Run 处理队列直到 ctx 取消; 同时运行远端渲染 worker。
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return pkgerr.New("Session.Run", "already running")
	}
	defer close(s.stopped)

	util.SafeGoNamed("render-worker", func() { s.renderer.Run(ctx) })
	s.runJob(func() { s.renderer.Render(s.rec.Snapshot()) })

	for {
		select {
		case <-ctx.Done():
			_ = s.detector.Close()
			return nil
		case job := <-s.jobs:
			s.runJob(job)
		}
	}
}

// runJob 执行单个任务; panic 被捕获并记录, 队列继续可用。
func (s *Session) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			logger.Error("engine: job panicked", logger.FieldError, fmt.Sprint(r))
		}
	}()
	job()
}

// post 投递任务, 队列关闭后丢弃。
func (s *Session) post(job func()) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.jobs <- job:
		return true
	case <-s.stopped:
		return false
	}
}

// call 投递任务并等待完成。
func (s *Session) call(ctx context.Context, job func()) error {
	done := make(chan struct{})
	if !s.post(func() {
		defer close(done)
		job()
	}) {
		return pkgerr.Wrap(pkgerr.ErrClosed, "Session.call", "session stopped")
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return pkgerr.Wrap(ctx.Err(), "Session.call", "wait")
	case <-s.stopped:
		return pkgerr.Wrap(pkgerr.ErrClosed, "Session.call", "session stopped")
	}
}

// ========================================
// 输入
// ========================================

// HandleRawEvent bridge 事件入口 (fire-and-forget)。
func (s *Session) HandleRawEvent(raw event.RawEvent) {
	s.post(func() { s.applyRaw(raw) })
}

// Inject 注入原始事件并等待处理完成, 返回解释结果与新视图 (面板调试用)。
func (s *Session) Inject(ctx context.Context, raw event.RawEvent) (event.Interpretation, surface.PanelView, error) {
	var it event.Interpretation
	var view surface.PanelView
	err := s.call(ctx, func() {
		it = s.applyRaw(raw)
		view = s.renderer.RenderLocal(s.rec.Snapshot())
	})
	return it, view, err
}

func (s *Session) applyRaw(raw event.RawEvent) event.Interpretation {
	s.events.Add(1)
	it := event.Interpret(raw, s.rec.Snapshot().Options)
	if it.Kind == event.Unknown {
		s.unknown.Add(1)
	}
	out := s.rec.Apply(it.Kind, it.Index, it.HasListPayload)
	logger.Debug("engine: event applied",
		logger.FieldEventType, it.Kind.String(),
		logger.FieldRawType, it.Decoded.TypeAlias,
		logger.FieldIndex, it.Index,
		logger.FieldLabel, out.Label,
		logger.FieldSeq, s.rec.Snapshot().Seq)
	s.renderer.Render(s.rec.Snapshot())
	return it
}

// Do 执行面板动作并等待结果。输入错误原样返回, 状态不变。
func (s *Session) Do(ctx context.Context, a uistate.LocalAction) (surface.PanelView, error) {
	var view surface.PanelView
	var actionErr error
	err := s.call(ctx, func() {
		s.actions.Add(1)
		res, err := s.rec.ApplyLocal(a, s.renderer.Mode() == surface.ModeBridge)
		if err != nil {
			actionErr = err
			view = s.renderer.RenderLocal(s.rec.Snapshot())
			return
		}
		snap := s.rec.Snapshot()
		view = s.renderer.RenderLocal(snap)
		s.renderer.Schedule(snap, res.ForceRebuild)
		logger.Debug("engine: action applied", logger.FieldAction, string(a.Kind), logger.FieldSeq, snap.Seq)
	})
	if err != nil {
		return view, err
	}
	return view, actionErr
}

// State 当前视图。
func (s *Session) State(ctx context.Context) (surface.PanelView, error) {
	var view surface.PanelView
	err := s.call(ctx, func() {
		view = surface.BuildView(s.rec.Snapshot(), s.renderer.Mode(), s.renderer.LastResult())
	})
	return view, err
}

// Connect 顶层连接动作: 探测 bridge, 更新状态栏并重新渲染。
//
// 普通失败降级为 Mock。获取过程或本函数中的意外 panic 写入诊断日志,
// 状态栏显示 "connection failed", Session 保持可用。
func (s *Session) Connect(ctx context.Context) (mode surface.Mode) {
	s.connects.Add(1)
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			logger.Error("engine: connect failed",
				logger.FieldComponent, "connect",
				logger.FieldError, fmt.Sprint(r))
			s.post(func() {
				s.rec.SetStatus(uistate.StatusConnectionFailed)
				s.renderer.Render(s.rec.Snapshot())
			})
			mode = surface.ModeMock
		}
	}()

	mode, err := s.detector.TryConnect(ctx, s.budget)
	status := StatusMockMode
	switch {
	case err != nil:
		s.panics.Add(1)
		logger.Error("engine: connect failed",
			logger.FieldComponent, "connect",
			logger.FieldError, err)
		status = uistate.StatusConnectionFailed
	case mode == surface.ModeBridge:
		status = StatusBridgeConnected
	}
	s.post(func() {
		s.rec.SetStatus(status)
		s.renderer.Render(s.rec.Snapshot())
	})
	return mode
}
