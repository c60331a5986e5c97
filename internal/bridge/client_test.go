package bridge_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BxNxM/even-dev/internal/bridge"
	"github.com/BxNxM/even-dev/internal/bridge/sim"
	"github.com/BxNxM/even-dev/internal/event"
	"github.com/BxNxM/even-dev/internal/surface"
	"github.com/BxNxM/even-dev/internal/uistate"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
)

func startSim(t *testing.T, opts ...sim.Option) (*sim.Server, string) {
	t.Helper()
	srv := sim.New(opts...)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func TestDial_HelloAndRender(t *testing.T) {
	srv, url := startSim(t, sim.WithSeed(1))
	ctx := context.Background()

	c, err := bridge.Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	if c.Device().Device != srv.Device() || c.Device().Width != surface.CanvasWidth {
		t.Errorf("hello = %+v", c.Device())
	}

	snap := uistate.Snapshot{App: "theme", Title: "Theme", Options: []string{"Blue", "Green", "Orange"}}
	if err := c.Create(ctx, surface.BuildPage(snap)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	page, ok := srv.Page()
	if !ok || len(page.List.Items) != 3 {
		t.Fatalf("sim page = %+v, %v", page, ok)
	}

	// 条目数不变: 接受。
	rep, err := c.Update(ctx, []surface.ElementUpdate{
		{ID: surface.ElementOptions, Items: []string{"Blue", "Green", "Orange"}, Selected: 2},
		{ID: surface.ElementStatus, Content: "hi"},
	})
	if err != nil || len(rep.Rejected) != 0 || len(rep.Applied) != 2 {
		t.Fatalf("Update = %+v, %v", rep, err)
	}
	// 条目数变化: 拒绝。
	rep, err = c.Update(ctx, []surface.ElementUpdate{
		{ID: surface.ElementOptions, Items: []string{"Blue", "Green", "Orange", "Purple"}, Selected: 3},
		{ID: "missing", Content: "x"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rejected) != 2 {
		t.Errorf("rejected = %v, want options+missing", rep.Rejected)
	}
	if st := srv.Stats(); st.Creates != 1 || st.Updates != 2 || st.Rejected != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRenderer_RebuildsAfterStructuralReject(t *testing.T) {
	srv, url := startSim(t)
	ctx := context.Background()
	c, err := bridge.Dial(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	r := surface.NewRenderer(nil)
	r.SetRemote(c)
	snap := uistate.Snapshot{App: "theme", Options: []string{"Blue", "Green"}}
	if res := r.RenderRemote(ctx, snap, false); res.Strategy != surface.StrategyCreate || res.Error != "" {
		t.Fatalf("first = %+v", res)
	}
	snap.Options = append(snap.Options, "Orange")
	snap.Seq++
	res := r.RenderRemote(ctx, snap, false)
	if res.Strategy != surface.StrategyRebuild || res.Error != "" {
		t.Fatalf("second = %+v, want rebuild", res)
	}
	if page, _ := srv.Page(); len(page.List.Items) != 3 {
		t.Errorf("sim items = %v", page.List.Items)
	}
}

func TestClient_ReceivesEvents(t *testing.T) {
	srv, url := startSim(t, sim.WithEncoding(sim.EncodingListNumeric))
	ctx := context.Background()
	c, err := bridge.Dial(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	got := make(chan event.RawEvent, 4)
	c.SetEventHandler(func(raw event.RawEvent) { got <- raw })

	options := []string{"Blue", "Green", "Orange"}
	if err := c.Create(ctx, surface.BuildPage(uistate.Snapshot{Options: options})); err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Emit(event.ScrollDown); err != nil {
		t.Fatal(err)
	}
	select {
	case raw := <-got:
		it := event.Interpret(raw, options)
		if it.Kind != event.ScrollDown || it.Index != 1 {
			t.Errorf("interpreted = %+v from %s", it, raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestClient_CloseFailsCalls(t *testing.T) {
	_, url := startSim(t)
	c, err := bridge.Dial(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Close()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed")
	}
	if err := c.Create(context.Background(), surface.Page{}); !errors.Is(err, pkgerr.ErrClosed) {
		t.Errorf("Create after close = %v, want ErrClosed", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	_, err := bridge.Dial(context.Background(), "ws://127.0.0.1:1/bridge")
	if !errors.Is(err, pkgerr.ErrBridgeUnavailable) {
		t.Errorf("err = %v, want ErrBridgeUnavailable", err)
	}
}

// 握手永不返回的 bridge: 探测器在预算到期后进入 Mock, 并取消拨号。
func TestDetector_SilentBridgeTimesOut(t *testing.T) {
	_, url := startSim(t, sim.WithSilentHello())
	d := bridge.NewDetector(bridge.DialAcquirer(url), nil, nil)
	start := time.Now()
	if mode := d.Connect(context.Background(), 100*time.Millisecond); mode != surface.ModeMock {
		t.Fatalf("mode = %v, want mock", mode)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Connect took %v", elapsed)
	}
}

func TestDetector_DialsSimulator(t *testing.T) {
	srv, url := startSim(t, sim.WithEncoding(sim.EncodingTopLevel))
	events := make(chan event.RawEvent, 1)
	r := surface.NewRenderer(nil)
	d := bridge.NewDetector(bridge.DialAcquirer(url), r, func(raw event.RawEvent) { events <- raw })
	defer d.Close()

	if mode := d.Connect(context.Background(), 2*time.Second); mode != surface.ModeBridge {
		t.Fatalf("mode = %v, want bridge (%s)", mode, d.Status().LastError)
	}
	if r.Mode() != surface.ModeBridge || r.StartupRendered() {
		t.Fatalf("renderer mode=%v startupRendered=%v", r.Mode(), r.StartupRendered())
	}
	snap := uistate.Snapshot{Options: []string{"a", "b"}}
	if res := r.RenderRemote(context.Background(), snap, false); res.Strategy != surface.StrategyCreate {
		t.Fatalf("render = %+v", res)
	}
	if _, err := srv.Emit(event.ScrollDown); err != nil {
		t.Fatal(err)
	}
	select {
	case raw := <-events:
		if it := event.Interpret(raw, snap.Options); it.Kind != event.ScrollDown || it.Index != 1 {
			t.Errorf("interpreted = %+v", it)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not forwarded")
	}
}
