package logger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Record 内存诊断环中的一条记录 (panel /api/diagnostics 在无 PG 时使用)。
type Record struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// ringStore RingHandler 及其 clone 共享的环形存储。
type ringStore struct {
	mu    sync.Mutex
	items []Record
	next  int
	full  bool
}

// RingHandler 保留最近 N 条诊断日志的 slog.Handler, 超出容量覆盖最旧记录。
type RingHandler struct {
	store *ringStore
	attrs []slog.Attr
	level slog.Level
}

// NewRingHandler 创建容量为 size 的 RingHandler (size < 1 时取 1)。
func NewRingHandler(size int, lvl slog.Level) *RingHandler {
	if size < 1 {
		size = 1
	}
	return &RingHandler{
		store: &ringStore{items: make([]Record, size)},
		level: lvl,
	}
}

// Enabled 实现 slog.Handler。
func (h *RingHandler) Enabled(_ context.Context, lvl slog.Level) bool { return lvl >= h.level }

// Handle 实现 slog.Handler。
func (h *RingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := Record{Time: r.Time, Level: r.Level.String(), Message: r.Message}
	add := func(a slog.Attr) bool {
		if rec.Attrs == nil {
			rec.Attrs = make(map[string]any)
		}
		v := a.Value.Resolve().Any()
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		rec.Attrs[a.Key] = v
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)

	s := h.store
	s.mu.Lock()
	s.items[s.next] = rec
	s.next = (s.next + 1) % len(s.items)
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()
	return nil
}

// WithAttrs 实现 slog.Handler。
func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &RingHandler{store: h.store, attrs: merged, level: h.level}
}

// WithGroup 实现 slog.Handler (扁平存储, 忽略 group)。
func (h *RingHandler) WithGroup(_ string) slog.Handler { return h }

// Records 返回最近的记录副本, 最新在前。limit <= 0 返回全部。
func (h *RingHandler) Records(limit int) []Record {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next
	if s.full {
		n = len(s.items)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	idx := s.next
	for len(out) < limit {
		idx--
		if idx < 0 {
			idx = len(s.items) - 1
		}
		out = append(out, s.items[idx])
	}
	return out
}
