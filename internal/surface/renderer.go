package surface

import (
	"context"
	"sync"
	"time"

	"github.com/BxNxM/even-dev/internal/uistate"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
)

// renderJob 单槽待渲染任务; force 在合并时保持粘性。
type renderJob struct {
	snap  uistate.Snapshot
	force bool
}

// Renderer 双界面渲染器。
//
// 本地: Render 内同步调用 LocalDisplay.Show。
// 远端: 单槽 "最新待渲染" 队列 + 一个 worker (Run), 被新请求覆盖的旧请求直接丢弃。
// startupRendered 在每次 SetRemote 时复位, 保证新连接的第一次渲染是整页构建。
type Renderer struct {
	local LocalDisplay

	mu              sync.Mutex // 保护以下字段
	remote          RemoteDisplay
	generation      uint64
	startupRendered bool
	lastPage        *Page
	last            RemoteResult
	pending         *renderJob
	onResult        func(RemoteResult)

	wake chan struct{}
}

// NewRenderer 创建渲染器; 初始远端为 MockDisplay。
func NewRenderer(local LocalDisplay) *Renderer {
	if local == nil {
		local = LocalDisplayFunc(func(PanelView) {})
	}
	return &Renderer{
		local:  local,
		remote: MockDisplay{},
		wake:   make(chan struct{}, 1),
	}
}

// SetRemote 切换远端 (连接/重连时调用), 复位首渲染标志。
func (r *Renderer) SetRemote(d RemoteDisplay) {
	if d == nil {
		d = MockDisplay{}
	}
	r.mu.Lock()
	r.remote = d
	r.generation++
	r.startupRendered = false
	r.lastPage = nil
	gen := r.generation
	r.mu.Unlock()
	logger.Info("renderer: remote switched", logger.FieldMode, d.Mode().String(), logger.FieldGeneration, gen)
}

// Mode 当前远端模式。
func (r *Renderer) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remote.Mode()
}

// StartupRendered 当前连接是否已完成首次整页构建。
func (r *Renderer) StartupRendered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startupRendered
}

// LastResult 最近一次远端渲染结果。
func (r *Renderer) LastResult() RemoteResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.last
	out.Rejected = append([]string(nil), r.last.Rejected...)
	return out
}

// OnRemoteResult 注册远端渲染完成回调 (在 worker goroutine 上调用)。
func (r *Renderer) OnRemoteResult(fn func(RemoteResult)) {
	r.mu.Lock()
	r.onResult = fn
	r.mu.Unlock()
}

// ========================================
// 渲染入口
// ========================================

// Render 本地同步渲染 + 远端异步调度。
func (r *Renderer) Render(snap uistate.Snapshot) {
	r.RenderLocal(snap)
	r.Schedule(snap, false)
}

// RenderLocal 同步、无条件、幂等地刷新本地面板。
func (r *Renderer) RenderLocal(snap uistate.Snapshot) PanelView {
	r.mu.Lock()
	mode := r.remote.Mode()
	last := r.last
	r.mu.Unlock()

	view := BuildView(snap, mode, last)
	r.local.Show(view)
	return view
}

// Schedule 投递远端渲染, 覆盖尚未开始的旧请求。force=true 强制整页重建。
func (r *Renderer) Schedule(snap uistate.Snapshot, force bool) {
	r.mu.Lock()
	if r.pending != nil && r.pending.force {
		force = true
	}
	r.pending = &renderJob{snap: snap.Clone(), force: force}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run 远端渲染 worker, 直到 ctx 取消。
func (r *Renderer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		}
		r.mu.Lock()
		job := r.pending
		r.pending = nil
		cb := r.onResult
		r.mu.Unlock()
		if job == nil {
			continue
		}
		res := r.RenderRemote(ctx, job.snap, job.force)
		if cb != nil {
			cb(res)
		}
	}
}

// ========================================
// 远端 update-or-rebuild 协议
// ========================================

// RenderRemote 同步执行一次远端渲染:
//
//   - 未完成首渲染 (或 force): 整页 Create, 成功后置位 startupRendered
//   - 之后: 只 Update 有变化的元素; 任一元素被拒或 Update 出错, 同一调用内整页重建
//   - 无变化: skip
//
// 只有重建失败会作为 Error 报告, 失败后下一次渲染回到整页 Create。
// 远端在途时发生 SetRemote, 结果不回写状态。
func (r *Renderer) RenderRemote(ctx context.Context, snap uistate.Snapshot, force bool) RemoteResult {
	r.mu.Lock()
	remote := r.remote
	gen := r.generation
	started := r.startupRendered
	var prev Page
	if r.lastPage != nil {
		prev = *r.lastPage
	}
	r.mu.Unlock()

	page := BuildPage(snap)
	res := RemoteResult{Generation: gen, Seq: snap.Seq}
	start := time.Now()

	switch {
	case !started || force:
		res.Strategy = StrategyCreate
		if started {
			res.Strategy = StrategyRebuild
		}
		if err := remote.Create(ctx, page); err != nil {
			res.Error = pkgerr.Wrap(err, "Renderer.RenderRemote", res.Strategy+" failed").Error()
		}
	default:
		updates, structural := Diff(prev, page)
		if !structural && len(updates) == 0 {
			res.Strategy = StrategySkip
			break
		}
		res.Strategy = StrategyUpdate
		if !structural {
			report, err := remote.Update(ctx, updates)
			res.Rejected = report.Rejected
			if err == nil && len(report.Rejected) == 0 {
				break
			}
			logger.Info("renderer: update rejected, rebuilding",
				logger.FieldGeneration, gen,
				logger.FieldCount, len(report.Rejected),
				logger.FieldError, errString(err))
		}
		res.Strategy = StrategyRebuild
		if err := remote.Create(ctx, page); err != nil {
			res.Error = pkgerr.Wrap(pkgerr.ErrUpdateRejected, "Renderer.RenderRemote", "rebuild failed: "+err.Error()).Error()
		}
	}
	if remote.Mode() == ModeMock {
		res.Strategy = StrategyNoop
	}
	res.At = time.Now()

	r.mu.Lock()
	if r.generation == gen {
		switch {
		case res.Error != "":
			// 设备上的页面已不可信: 下一次渲染整页构建。
			r.startupRendered = false
			r.lastPage = nil
		case res.Strategy != StrategySkip:
			r.startupRendered = true
			p := page
			r.lastPage = &p
		}
		r.last = res
	}
	r.mu.Unlock()

	if res.Error != "" {
		logger.Error("renderer: remote render failed",
			logger.FieldStrategy, res.Strategy,
			logger.FieldGeneration, gen,
			logger.FieldError, res.Error)
	} else {
		logger.Debug("renderer: remote render",
			logger.FieldStrategy, res.Strategy,
			logger.FieldSeq, snap.Seq,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}
	return res
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
