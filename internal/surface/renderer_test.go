package surface

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BxNxM/even-dev/internal/uistate"
)

// fakeRemote 记录调用的远端实现。
type fakeRemote struct {
	mu         sync.Mutex
	calls      []string
	rejectList bool
	createErr  error
	failAfter  int // >0 时第 failAfter 次之后的 Create 失败
	creates    int
	pages      []Page
	block      chan struct{}
	entered    chan struct{}
}

func (f *fakeRemote) Mode() Mode { return ModeBridge }

func (f *fakeRemote) Create(_ context.Context, p Page) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	f.creates++
	f.pages = append(f.pages, p)
	if f.failAfter > 0 && f.creates > f.failAfter {
		return errors.New("display gone")
	}
	return f.createErr
}

func (f *fakeRemote) Update(_ context.Context, updates []ElementUpdate) (UpdateReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update")
	var rep UpdateReport
	for _, u := range updates {
		if u.ID == ElementOptions && f.rejectList {
			rep.Rejected = append(rep.Rejected, u.ID)
			continue
		}
		rep.Applied = append(rep.Applied, u.ID)
	}
	return rep, nil
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func snapshot(selected int, counter int) uistate.Snapshot {
	return uistate.Snapshot{
		App:           "theme",
		Title:         "Theme Picker",
		Options:       []string{"Blue", "Green", "Orange"},
		Selected:      selected,
		SelectedLabel: []string{"Blue", "Green", "Orange"}[selected],
		Counter:       counter,
		Seq:           uint64(selected*100 + counter),
	}
}

// 重连后的首次渲染一定整页构建, 同一连接的第二次渲染先尝试增量。
func TestRenderRemote_FirstRenderAfterReconnect(t *testing.T) {
	ctx := context.Background()
	r := NewRenderer(nil)

	first := &fakeRemote{}
	r.SetRemote(first)
	if got := r.RenderRemote(ctx, snapshot(0, 0), false); got.Strategy != StrategyCreate {
		t.Fatalf("first render strategy = %q, want create", got.Strategy)
	}
	if !r.StartupRendered() {
		t.Fatal("startupRendered = false after successful create")
	}
	if got := r.RenderRemote(ctx, snapshot(1, 0), false); got.Strategy != StrategyUpdate {
		t.Fatalf("second render strategy = %q, want update", got.Strategy)
	}

	second := &fakeRemote{}
	r.SetRemote(second)
	if r.StartupRendered() {
		t.Fatal("startupRendered not reset on new connection")
	}
	if got := r.RenderRemote(ctx, snapshot(1, 0), false); got.Strategy != StrategyCreate {
		t.Fatalf("first render after reconnect = %q, want create", got.Strategy)
	}
	if got := r.RenderRemote(ctx, snapshot(1, 1), false); got.Strategy != StrategyUpdate {
		t.Fatalf("second render after reconnect = %q, want update", got.Strategy)
	}
	if !slices.Equal(second.Calls(), []string{"create", "update"}) {
		t.Errorf("calls = %v", second.Calls())
	}

	// 同一个 handle 再次 SetRemote 同样复位。
	r.SetRemote(second)
	if got := r.RenderRemote(ctx, snapshot(1, 1), false); got.Strategy != StrategyCreate {
		t.Errorf("render after SetRemote(same) = %q, want create", got.Strategy)
	}
}

func TestRenderRemote_RejectedUpdateFallsBackToRebuild(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{rejectList: true}
	r := NewRenderer(nil)
	r.SetRemote(remote)
	r.RenderRemote(ctx, snapshot(0, 0), false)

	res := r.RenderRemote(ctx, snapshot(2, 0), false)
	if res.Strategy != StrategyRebuild || res.Error != "" {
		t.Fatalf("result = %+v, want rebuild without error", res)
	}
	if !slices.Equal(res.Rejected, []string{ElementOptions}) {
		t.Errorf("rejected = %v", res.Rejected)
	}
	if !slices.Equal(remote.Calls(), []string{"create", "update", "create"}) {
		t.Errorf("calls = %v", remote.Calls())
	}
	if last := remote.pages[len(remote.pages)-1]; last.List.Selected != 2 {
		t.Errorf("rebuilt page selected = %d, want 2", last.List.Selected)
	}
}

func TestRenderRemote_RebuildFailureIsReported(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{rejectList: true, failAfter: 1}
	r := NewRenderer(nil)
	r.SetRemote(remote)
	r.RenderRemote(ctx, snapshot(0, 0), false)

	res := r.RenderRemote(ctx, snapshot(1, 0), false)
	if res.Strategy != StrategyRebuild || !strings.Contains(res.Error, "rebuild failed") {
		t.Fatalf("result = %+v", res)
	}
	if r.LastResult().Error == "" {
		t.Error("LastResult does not carry the failure")
	}
	if r.StartupRendered() {
		t.Error("startupRendered still set after a failed rebuild")
	}

	// 回到失败前的页面也必须整页构建, 不能因为与旧页相同而 skip。
	remote.mu.Lock()
	remote.failAfter = 0
	remote.mu.Unlock()
	res = r.RenderRemote(ctx, snapshot(0, 0), false)
	if res.Strategy != StrategyCreate || res.Error != "" {
		t.Fatalf("repair render = %+v, want create", res)
	}
	if !r.StartupRendered() {
		t.Error("startupRendered not restored after repair")
	}
}

func TestRenderRemote_SkipAndForce(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	r := NewRenderer(nil)
	r.SetRemote(remote)
	r.RenderRemote(ctx, snapshot(0, 0), false)

	if got := r.RenderRemote(ctx, snapshot(0, 0), false); got.Strategy != StrategySkip {
		t.Errorf("unchanged state strategy = %q, want skip", got.Strategy)
	}
	if got := r.RenderRemote(ctx, snapshot(0, 0), true); got.Strategy != StrategyRebuild {
		t.Errorf("forced strategy = %q, want rebuild", got.Strategy)
	}
}

func TestRenderRemote_FailedCreateKeepsStartupFlag(t *testing.T) {
	remote := &fakeRemote{createErr: errors.New("busy")}
	r := NewRenderer(nil)
	r.SetRemote(remote)
	res := r.RenderRemote(context.Background(), snapshot(0, 0), false)
	if res.Error == "" || r.StartupRendered() {
		t.Fatalf("result=%+v startupRendered=%v", res, r.StartupRendered())
	}
	remote.createErr = nil
	if got := r.RenderRemote(context.Background(), snapshot(0, 0), false); got.Strategy != StrategyCreate {
		t.Errorf("retry strategy = %q, want create", got.Strategy)
	}
}

func TestRenderRemote_MockIsNoop(t *testing.T) {
	var shown []PanelView
	r := NewRenderer(LocalDisplayFunc(func(v PanelView) { shown = append(shown, v) }))
	for i := 0; i < 3; i++ {
		res := r.RenderRemote(context.Background(), snapshot(i, i), false)
		if res.Strategy != StrategyNoop || res.Error != "" {
			t.Fatalf("mock result = %+v", res)
		}
		r.RenderLocal(snapshot(i, i))
	}
	if len(shown) != 3 || shown[2].Selected != 2 || shown[2].Mode != ModeMock {
		t.Errorf("local renders = %+v", shown)
	}
}

// 同一状态连续两次本地渲染, 输出完全一致。
func TestRenderLocal_Idempotent(t *testing.T) {
	var views []PanelView
	r := NewRenderer(LocalDisplayFunc(func(v PanelView) { views = append(views, v) }))
	s := snapshot(1, 3)
	a := r.RenderLocal(s)
	b := r.RenderLocal(s)
	if !reflect.DeepEqual(a, b) || !reflect.DeepEqual(views[0], views[1]) {
		t.Errorf("views differ:\n%+v\n%+v", a, b)
	}
	if a.SelectedLabel != "Green" || a.Counter != 3 {
		t.Errorf("view = %+v", a)
	}
}

// 远端慢时, 中间请求被合并, 只渲染最新快照。
func TestRun_CoalescesPendingRenders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := &fakeRemote{block: make(chan struct{}), entered: make(chan struct{}, 4)}
	r := NewRenderer(nil)
	r.SetRemote(remote)

	results := make(chan RemoteResult, 4)
	r.OnRemoteResult(func(res RemoteResult) { results <- res })
	go r.Run(ctx)

	r.Schedule(snapshot(0, 0), false)
	select {
	case <-remote.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not start first render")
	}
	for i := 1; i <= 3; i++ {
		r.Schedule(snapshot(0, i), false)
	}
	remote.block <- struct{}{}

	var got []RemoteResult
	for len(got) < 2 {
		select {
		case res := <-results:
			got = append(got, res)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %d results", len(got))
		}
	}
	if got[0].Strategy != StrategyCreate || got[1].Strategy != StrategyUpdate {
		t.Errorf("strategies = %q, %q", got[0].Strategy, got[1].Strategy)
	}
	if got[1].Seq != snapshot(0, 3).Seq {
		t.Errorf("second render seq = %d, want latest %d", got[1].Seq, snapshot(0, 3).Seq)
	}
	select {
	case res := <-results:
		t.Errorf("unexpected extra render %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDiff(t *testing.T) {
	base := BuildPage(snapshot(0, 0))

	t.Run("no change", func(t *testing.T) {
		ups, structural := Diff(base, BuildPage(snapshot(0, 0)))
		if structural || len(ups) != 0 {
			t.Errorf("ups=%v structural=%v", ups, structural)
		}
	})
	t.Run("counter only", func(t *testing.T) {
		ups, structural := Diff(base, BuildPage(snapshot(0, 5)))
		if structural || len(ups) != 1 || ups[0].ID != ElementInfo {
			t.Errorf("ups=%v structural=%v", ups, structural)
		}
	})
	t.Run("selection", func(t *testing.T) {
		ups, _ := Diff(base, BuildPage(snapshot(2, 0)))
		var ids []string
		for _, u := range ups {
			ids = append(ids, u.ID)
		}
		if !slices.Contains(ids, ElementOptions) {
			t.Errorf("ids = %v, want options", ids)
		}
	})
	t.Run("structural", func(t *testing.T) {
		next := BuildPage(snapshot(0, 0))
		next.List = nil
		if _, structural := Diff(base, next); !structural {
			t.Error("removing list must be structural")
		}
		moved := BuildPage(snapshot(0, 0))
		moved.Texts[0].Y = 10
		if _, structural := Diff(base, moved); !structural {
			t.Error("moving a text block must be structural")
		}
	})
}

func TestRenderPreview(t *testing.T) {
	out := RenderPreview(BuildPage(snapshot(1, 2)), 30)
	for _, want := range []string{"Theme Picker", "> Green", "Blue", "count 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("preview missing %q:\n%s", want, out)
		}
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
}
