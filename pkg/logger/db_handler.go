package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LogEntry 对应 diagnostic_logs 表的一行。
type LogEntry struct {
	Ts         time.Time
	Level      string
	Message    string
	Component  string
	EventType  string
	Action     string
	Mode       string
	App        string
	DurationMS *int
	Extra      map[string]any
}

// ========================================
// DBHandler — slog.Handler → PG 异步批量写入
// ========================================

const (
	bufSize    = 1024
	batchSize  = 100
	flushDelay = 500 * time.Millisecond
)

// execer 抽象 pool.Exec, 便于测试替换。
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (any, error)
}

// poolExecer 把 *pgxpool.Pool 适配为 execer。
type poolExecer struct{ pool *pgxpool.Pool }

func (p poolExecer) Exec(ctx context.Context, sql string, args ...any) (any, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// DBHandler 实现 slog.Handler，将诊断日志异步批量写入 PostgreSQL diagnostic_logs 表。
// 追加写, 不更新不删除。
type DBHandler struct {
	db    execer
	buf   chan LogEntry
	attrs []slog.Attr
	level slog.Level
	done  chan struct{}
	// closed 在 handler clone(WithAttrs/WithGroup) 间共享，避免 shutdown 后写入已关闭通道。
	closed *atomic.Bool
}

// NewDBHandler 创建并启动后台写入 goroutine。
func NewDBHandler(pool *pgxpool.Pool, lvl slog.Level) *DBHandler {
	return newDBHandler(poolExecer{pool: pool}, lvl)
}

func newDBHandler(db execer, lvl slog.Level) *DBHandler {
	h := &DBHandler{
		db:     db,
		buf:    make(chan LogEntry, bufSize),
		level:  lvl,
		done:   make(chan struct{}),
		closed: &atomic.Bool{},
	}
	go h.consumeLoop()
	return h
}

// Enabled 实现 slog.Handler。
func (h *DBHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.level
}

// Handle 实现 slog.Handler — 构造 LogEntry 推入异步缓冲。
func (h *DBHandler) Handle(_ context.Context, r slog.Record) error {
	if h.closed.Load() {
		return nil
	}

	entry := LogEntry{
		Ts:      r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}
	for _, a := range h.attrs {
		applyAttr(&entry, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		applyAttr(&entry, a)
		return true
	})

	// 非阻塞推入 — chan 满时 drop
	func() {
		defer func() {
			// shutdown 期间通道被关闭: 丢弃该条日志
			_ = recover()
		}()
		select {
		case h.buf <- entry:
		default:
		}
	}()
	return nil
}

// WithAttrs 实现 slog.Handler。
func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	clone := *h
	clone.attrs = newAttrs
	return &clone
}

// WithGroup 实现 slog.Handler。诊断表为扁平结构, group 被忽略。
func (h *DBHandler) WithGroup(_ string) slog.Handler {
	clone := *h
	return &clone
}

// Shutdown 停止后台 goroutine 并 flush 剩余日志。
func (h *DBHandler) Shutdown() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	close(h.buf)
	<-h.done
}

// consumeLoop 后台批量消费 chan → INSERT。
func (h *DBHandler) consumeLoop() {
	defer close(h.done)

	batch := make([]LogEntry, 0, batchSize)
	ticker := time.NewTicker(flushDelay)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-h.buf:
			if !ok {
				if len(batch) > 0 {
					h.flush(batch)
				}
				return
			}
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				h.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				h.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// flush 批量写入 PG。写入失败只打到 stderr handler, 不影响主流程。
func (h *DBHandler) flush(batch []LogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, e := range batch {
		var extraJSON []byte
		if len(e.Extra) > 0 {
			if raw, err := json.Marshal(e.Extra); err == nil {
				extraJSON = raw
			}
		}
		_, err := h.db.Exec(ctx,
			`INSERT INTO diagnostic_logs
				(ts, level, message, component, event_type, action, mode, duration_ms, extra, app)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			e.Ts, e.Level, e.Message, e.Component, e.EventType, e.Action, e.Mode, e.DurationMS, extraJSON, e.App,
		)
		if err != nil {
			baseOnly().Warn("db_handler: flush failed", FieldError, err)
		}
	}
}

// baseOnly 返回仅写 stdout/文件的日志器, 避免 flush 失败日志再次进入 DBHandler 形成循环。
func baseOnly() *slog.Logger {
	attachMu.Lock()
	defer attachMu.Unlock()
	return slog.New(baseHandler)
}

// applyAttr 将 slog.Attr 映射到 LogEntry 的结构化字段。
func applyAttr(e *LogEntry, a slog.Attr) {
	switch a.Key {
	case FieldComponent:
		e.Component = a.Value.String()
	case FieldEventType:
		e.EventType = a.Value.String()
	case FieldAction:
		e.Action = a.Value.String()
	case FieldMode:
		e.Mode = a.Value.String()
	case FieldApp:
		e.App = a.Value.String()
	case FieldDurationMS:
		if ms, ok := intValue(a.Value.Any()); ok {
			e.DurationMS = &ms
		}
	default:
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		v := a.Value.Any()
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		e.Extra[a.Key] = v
	}
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case time.Duration:
		return int(n.Milliseconds()), true
	}
	return 0, false
}

// ========================================
// MultiHandler — 同时写多个 Handler
// ========================================

// MultiHandler 扇出日志到多个 slog.Handler。
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler 创建多路 Handler。
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled 只要有一个 Handler 接受该级别就返回 true。
func (m *MultiHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

// Handle 分发到所有 Handler。
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

// WithAttrs 对所有 Handler 调用 WithAttrs。
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

// WithGroup 对所有 Handler 调用 WithGroup。
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}

// ========================================
// AttachDBHandler — pool ready 后动态挂载
// ========================================

var (
	dbHandler  atomic.Pointer[DBHandler]
	dbAttachMu sync.Mutex
)

// AttachDBHandler 在 pool 初始化后调用，将 DBHandler 作为额外 sink 挂载。
// 调用前的日志只写 stdout/文件; 调用后开始双写。
func AttachDBHandler(pool *pgxpool.Pool) {
	dbAttachMu.Lock()
	defer dbAttachMu.Unlock()
	if dbHandler.Load() != nil {
		return
	}
	h := NewDBHandler(pool, slog.LevelInfo)
	dbHandler.Store(h)
	AttachHandler(h)
}

// ShutdownDBHandler 卸载并关闭 DBHandler, flush 剩余日志。
func ShutdownDBHandler() {
	dbAttachMu.Lock()
	defer dbAttachMu.Unlock()
	h := dbHandler.Swap(nil)
	if h == nil {
		return
	}
	DetachHandler(h)
	h.Shutdown()
}
