package logger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultLoggerConcurrentAccess(t *testing.T) {
	Init("production")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Info("concurrent log message", FieldComponent, "test")
			_ = Get()
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		Init("development")
	}()
	wg.Wait()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWithFile_AppendsDiagnostics(t *testing.T) {
	dir := t.TempDir()
	defer ShutdownFileHandler()
	defer Init("production")

	path, err := InitWithFile(dir)
	if err != nil {
		t.Fatalf("InitWithFile: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("log path %q not under %q", path, dir)
	}
	Error("connect failed", FieldComponent, "engine", FieldError, errors.New("boom"))
	ShutdownFileHandler()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "connect failed") {
		t.Errorf("diagnostic log missing entry: %s", data)
	}

	// 第二次打开必须追加而非截断
	if _, err := InitWithFile(dir); err != nil {
		t.Fatalf("InitWithFile again: %v", err)
	}
	Info("second session")
	ShutdownFileHandler()
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "connect failed") || !strings.Contains(string(data), "second session") {
		t.Errorf("log file was truncated: %s", data)
	}
}

func TestShutdownFileHandlerSafety(t *testing.T) {
	ShutdownFileHandler()
	ShutdownFileHandler()
}

func TestFromContext(t *testing.T) {
	l := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("FromContext did not return injected logger")
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext without logger returned nil")
	}
}

func TestRingHandler_KeepsNewestFirst(t *testing.T) {
	h := NewRingHandler(3, slog.LevelDebug)
	l := slog.New(h).With(FieldComponent, "engine")
	for _, msg := range []string{"a", "b", "c", "d"} {
		l.Info(msg, FieldIndex, 1)
	}

	recs := h.Records(0)
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	want := []string{"d", "c", "b"}
	for i, w := range want {
		if recs[i].Message != w {
			t.Errorf("recs[%d] = %q, want %q", i, recs[i].Message, w)
		}
	}
	if recs[0].Attrs[FieldComponent] != "engine" {
		t.Errorf("With attrs not captured: %v", recs[0].Attrs)
	}
	if got := h.Records(1); len(got) != 1 || got[0].Message != "d" {
		t.Errorf("Records(1) = %+v", got)
	}
}

func TestRingHandler_PartialFill(t *testing.T) {
	h := NewRingHandler(10, slog.LevelInfo)
	l := slog.New(h)
	l.Debug("filtered")
	l.Warn("kept", FieldError, errors.New("x"))

	recs := h.Records(0)
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	if recs[0].Attrs[FieldError] != "x" {
		t.Errorf("error attr = %v, want string x", recs[0].Attrs[FieldError])
	}
}

func TestAttachAndDetachHandler(t *testing.T) {
	Init("production")
	ring := NewRingHandler(5, slog.LevelInfo)
	AttachHandler(ring)
	Info("attached message")
	DetachHandler(ring)
	Info("after detach")

	recs := ring.Records(0)
	if len(recs) != 1 || recs[0].Message != "attached message" {
		t.Errorf("records = %+v", recs)
	}
}

// fakeExecer 记录 INSERT 参数。
type fakeExecer struct {
	mu   sync.Mutex
	rows [][]any
}

func (f *fakeExecer) Exec(_ context.Context, _ string, args ...any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, args)
	return nil, nil
}

func TestDBHandler_FlushOnShutdown(t *testing.T) {
	db := &fakeExecer{}
	h := newDBHandler(db, slog.LevelInfo)
	l := slog.New(h)
	l.Info("bridge unavailable", FieldComponent, "bridge", FieldMode, "mock", FieldDurationMS, 4000*time.Millisecond, "extra_key", 1)
	l.Debug("filtered by level")
	h.Shutdown()
	h.Shutdown()

	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(db.rows))
	}
	row := db.rows[0]
	if row[2] != "bridge unavailable" || row[3] != "bridge" || row[6] != "mock" {
		t.Errorf("row = %v", row)
	}
	if ms, ok := row[7].(*int); !ok || ms == nil || *ms != 4000 {
		t.Errorf("duration_ms = %v, want 4000", row[7])
	}
}

func TestApplyAttrUnknownFieldGoesToExtra(t *testing.T) {
	e := &LogEntry{}
	applyAttr(e, slog.String("custom", "v"))
	applyAttr(e, slog.Any(FieldError, errors.New("e")))
	if e.Extra["custom"] != "v" || e.Extra[FieldError] != "e" {
		t.Errorf("extra = %v", e.Extra)
	}
}
