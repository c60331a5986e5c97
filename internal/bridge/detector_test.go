package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/surface"
	"github.com/BxNxM/even-dev/internal/uistate"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
)

type fakeHandle struct {
	surface.MockDisplay
	mu        sync.Mutex
	handler   func(event.RawEvent)
	setCount  atomic.Int32
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeHandle() *fakeHandle { return &fakeHandle{done: make(chan struct{})} }

func (f *fakeHandle) Mode() surface.Mode { return surface.ModeBridge }

func (f *fakeHandle) SetEventHandler(fn func(event.RawEvent)) {
	f.setCount.Add(1)
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
}

func (f *fakeHandle) Done() <-chan struct{} { return f.done }

func (f *fakeHandle) Close() error {
	f.closed.Store(true)
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeHandle) emit(raw string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(event.RawEvent(raw))
	}
}

type recordingSink struct {
	mu      sync.Mutex
	remotes []surface.RemoteDisplay
}

func (s *recordingSink) SetRemote(d surface.RemoteDisplay) {
	s.mu.Lock()
	s.remotes = append(s.remotes, d)
	s.mu.Unlock()
}

func (s *recordingSink) last() surface.RemoteDisplay {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.remotes) == 0 {
		return nil
	}
	return s.remotes[len(s.remotes)-1]
}

func returning(h Handle) AcquireFunc {
	return func(context.Context) (Handle, error) { return h, nil }
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestDefaultConnectBudget(t *testing.T) {
	if DefaultConnectBudget != 4000*time.Millisecond {
		t.Fatalf("DefaultConnectBudget = %v, want 4s", DefaultConnectBudget)
	}
}

// 获取永不完成: 预算到期后进入 Mock, 远端渲染成为 no-op, 本地渲染照常。
func TestConnect_NeverResolvingAcquisitionFallsBackToMock(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	late := newFakeHandle()
	acquire := func(context.Context) (Handle, error) {
		<-release // 故意不看 ctx
		return late, nil
	}

	var shown []surface.PanelView
	renderer := surface.NewRenderer(surface.LocalDisplayFunc(func(v surface.PanelView) { shown = append(shown, v) }))
	d := NewDetector(acquire, renderer, nil)

	const budget = 80 * time.Millisecond
	start := time.Now()
	mode := d.Connect(context.Background(), budget)
	elapsed := time.Since(start)

	if mode != surface.ModeMock {
		t.Fatalf("mode = %v, want mock", mode)
	}
	if elapsed < budget || elapsed > budget+time.Second {
		t.Errorf("Connect took %v, want about %v", elapsed, budget)
	}
	if d.Status().LastError == "" {
		t.Error("status does not record the timeout")
	}

	snap := uistate.Snapshot{App: "theme", Options: []string{"Blue", "Green"}, Selected: 1, SelectedLabel: "Green"}
	for i := 0; i < 3; i++ {
		if res := renderer.RenderRemote(context.Background(), snap, false); res.Strategy != surface.StrategyNoop || res.Error != "" {
			t.Fatalf("remote render in mock = %+v", res)
		}
		renderer.RenderLocal(snap)
	}
	if len(shown) != 3 || shown[2].SelectedLabel != "Green" || shown[2].Mode != surface.ModeMock {
		t.Errorf("local renders = %+v", shown)
	}
}

func TestConnect_LateHandleIsClosed(t *testing.T) {
	release := make(chan struct{})
	late := newFakeHandle()
	acquire := func(context.Context) (Handle, error) {
		<-release
		return late, nil
	}
	d := NewDetector(acquire, nil, nil)
	if mode := d.Connect(context.Background(), 20*time.Millisecond); mode != surface.ModeMock {
		t.Fatalf("mode = %v", mode)
	}
	close(release)
	waitFor(t, late.closed.Load)
	if late.setCount.Load() != 0 {
		t.Error("late handle got an event listener")
	}
	if d.Mode() != surface.ModeMock {
		t.Error("late handle changed the mode")
	}
}

func TestConnect_SuccessInstallsHandleOnce(t *testing.T) {
	h := newFakeHandle()
	sink := &recordingSink{}
	var events atomic.Int32
	d := NewDetector(returning(h), sink, func(event.RawEvent) { events.Add(1) })

	for i := 0; i < 3; i++ {
		if mode := d.Connect(context.Background(), time.Second); mode != surface.ModeBridge {
			t.Fatalf("attempt %d: mode = %v", i, mode)
		}
	}
	if got := h.setCount.Load(); got != 1 {
		t.Errorf("SetEventHandler called %d times, want 1", got)
	}
	if sink.last() != surface.RemoteDisplay(h) {
		t.Error("sink does not hold the handle")
	}
	sink.mu.Lock()
	if len(sink.remotes) != 3 {
		t.Errorf("SetRemote called %d times, want 3 (flag reset per connect)", len(sink.remotes))
	}
	sink.mu.Unlock()

	h.emit(`{"listEvent":{"eventType":0}}`)
	if got := events.Load(); got != 1 {
		t.Errorf("events forwarded = %d, want 1", got)
	}
	if h.closed.Load() {
		t.Error("reused handle was closed")
	}
}

func TestConnect_NewHandleReplacesOld(t *testing.T) {
	first, second := newFakeHandle(), newFakeHandle()
	handles := []Handle{first, second}
	var n atomic.Int32
	acquire := func(context.Context) (Handle, error) {
		return handles[n.Add(1)-1], nil
	}
	var events atomic.Int32
	d := NewDetector(acquire, nil, func(event.RawEvent) { events.Add(1) })

	d.Connect(context.Background(), time.Second)
	d.Connect(context.Background(), time.Second)

	if !first.closed.Load() {
		t.Error("old handle not closed")
	}
	first.emit(`{"eventType":0}`)
	second.emit(`{"eventType":0}`)
	if got := events.Load(); got != 1 {
		t.Errorf("events forwarded = %d, want 1 (stale handle dropped)", got)
	}
	if d.Status().Generation != 2 {
		t.Errorf("generation = %d, want 2", d.Status().Generation)
	}
}

func TestConnect_FailureDegradesAndClosesExisting(t *testing.T) {
	h := newFakeHandle()
	fail := atomic.Bool{}
	acquire := func(context.Context) (Handle, error) {
		if fail.Load() {
			return nil, errors.New("refused")
		}
		return h, nil
	}
	sink := &recordingSink{}
	d := NewDetector(acquire, sink, nil)
	d.Connect(context.Background(), time.Second)

	fail.Store(true)
	if mode := d.Connect(context.Background(), time.Second); mode != surface.ModeMock {
		t.Fatalf("mode = %v, want mock", mode)
	}
	if !h.closed.Load() {
		t.Error("existing handle not closed on failed reconnect")
	}
	if sink.last().Mode() != surface.ModeMock {
		t.Error("sink not switched to mock")
	}
	if d.Status().LastError != "refused" {
		t.Errorf("LastError = %q", d.Status().LastError)
	}
}

func TestConnect_PanicInAcquireIsContained(t *testing.T) {
	d := NewDetector(func(context.Context) (Handle, error) { panic("boom") }, nil, nil)
	if mode := d.Connect(context.Background(), time.Second); mode != surface.ModeMock {
		t.Fatalf("mode = %v, want mock", mode)
	}
}

func TestTryConnect_ReportsUnexpectedFailure(t *testing.T) {
	tests := []struct {
		name    string
		acquire AcquireFunc
		wantErr bool
	}{
		{"refused", func(context.Context) (Handle, error) { return nil, errors.New("refused") }, false},
		{"no handle", func(context.Context) (Handle, error) { return nil, nil }, false},
		{"panic", func(context.Context) (Handle, error) { panic("driver failure") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(tt.acquire, nil, nil)
			mode, err := d.TryConnect(context.Background(), time.Second)
			if mode != surface.ModeMock {
				t.Errorf("mode = %v, want mock", mode)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, pkgerr.ErrInternal) {
				t.Errorf("errors.Is(err, ErrInternal) = false: %v", err)
			}
		})
	}
}

func TestConnect_LostConnectionDegrades(t *testing.T) {
	h := newFakeHandle()
	sink := &recordingSink{}
	d := NewDetector(returning(h), sink, nil)
	lost := make(chan struct{}, 1)
	d.OnDisconnect(func() { lost <- struct{}{} })
	d.Connect(context.Background(), time.Second)

	_ = h.Close()
	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect not called")
	}
	if d.Mode() != surface.ModeMock || sink.last().Mode() != surface.ModeMock {
		t.Error("mode not degraded after connection loss")
	}
}

func TestConnect_Serialized(t *testing.T) {
	var inflight, maxInflight atomic.Int32
	acquire := func(context.Context) (Handle, error) {
		cur := inflight.Add(1)
		for {
			prev := maxInflight.Load()
			if cur <= prev || maxInflight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inflight.Add(-1)
		return newFakeHandle(), nil
	}
	d := NewDetector(acquire, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Connect(context.Background(), time.Second)
		}()
	}
	wg.Wait()
	if got := maxInflight.Load(); got != 1 {
		t.Errorf("max concurrent acquisitions = %d, want 1", got)
	}
	if d.Status().Attempts != 5 {
		t.Errorf("attempts = %d, want 5", d.Status().Attempts)
	}
}
