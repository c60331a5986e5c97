// diagnostic_log.go — 诊断日志查询 (PostgreSQL 与内存环两种来源)。
package store

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BxNxM/even-dev/pkg/logger"
)

// ListParams 诊断日志查询参数, 空字段不过滤。
type ListParams struct {
	Level     string `form:"level"`
	Component string `form:"component"`
	EventType string `form:"event_type"`
	App       string `form:"app"`
	Keyword   string `form:"keyword"`
	SinceMS   int64  `form:"since_ms"`
	Limit     int    `form:"limit"`
}

// DiagnosticSource 面板读取诊断日志的来源。
type DiagnosticSource interface {
	Diagnostics(ctx context.Context, p ListParams) ([]logger.Record, error)
}

// ========================================
// PostgreSQL
// ========================================

// DiagnosticLogStore diagnostic_logs 表 (只读; 写入由 logger.DBHandler 完成)。
type DiagnosticLogStore struct{ BaseStore }

// NewDiagnosticLogStore 创建存储。
func NewDiagnosticLogStore(pool *pgxpool.Pool) *DiagnosticLogStore {
	return &DiagnosticLogStore{NewBaseStore(pool)}
}

const diagLogCols = `id, ts, level, message, component, event_type, action, mode, app,
	duration_ms, COALESCE(extra, '{}'::jsonb) AS extra`

// buildDiagnosticQuery 构造列表 SQL。
func buildDiagnosticQuery(p ListParams) (string, []any) {
	q := NewQueryBuilder().
		Eq("level", strings.ToUpper(p.Level)).
		Eq("component", p.Component).
		Eq("event_type", p.EventType).
		Eq("app", p.App).
		Since("ts", p.SinceMS).
		KeywordLike(p.Keyword, "message", "component", "event_type", "action")
	return q.Build("SELECT "+diagLogCols+" FROM diagnostic_logs", "ts DESC, id DESC", p.Limit)
}

// List 最新在前。
func (s *DiagnosticLogStore) List(ctx context.Context, p ListParams) ([]DiagnosticLog, error) {
	sql, params := buildDiagnosticQuery(p)
	rows, err := s.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	return collectRows[DiagnosticLog](rows)
}

// Diagnostics 实现 DiagnosticSource。
func (s *DiagnosticLogStore) Diagnostics(ctx context.Context, p ListParams) ([]logger.Record, error) {
	items, err := s.List(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]logger.Record, len(items))
	for i, it := range items {
		out[i] = it.Record()
	}
	return out, nil
}

// ListFilterValues 筛选下拉值。
func (s *DiagnosticLogStore) ListFilterValues(ctx context.Context) (map[string][]string, error) {
	out := make(map[string][]string, 4)
	for _, col := range []string{"level", "component", "event_type", "app"} {
		vals, err := DistinctValues(ctx, s.pool, "diagnostic_logs", col)
		if err != nil {
			return nil, err
		}
		out[col] = vals
	}
	return out, nil
}

// ========================================
// 内存环
// ========================================

// RingSource 以 logger.RingHandler 作为来源 (未配置数据库时使用)。
type RingSource struct{ ring *logger.RingHandler }

// NewRingSource 创建内存来源。
func NewRingSource(ring *logger.RingHandler) *RingSource { return &RingSource{ring: ring} }

// Diagnostics 实现 DiagnosticSource, 过滤语义与 SQL 版本一致。
func (r *RingSource) Diagnostics(_ context.Context, p ListParams) ([]logger.Record, error) {
	limit := p.Limit
	if limit < 1 {
		limit = 1
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	var since time.Time
	if p.SinceMS > 0 {
		since = time.UnixMilli(p.SinceMS)
	}
	kw := strings.ToLower(p.Keyword)

	out := make([]logger.Record, 0, limit)
	for _, rec := range r.ring.Records(0) {
		if len(out) >= limit {
			break
		}
		if p.Level != "" && !strings.EqualFold(rec.Level, p.Level) {
			continue
		}
		if !attrEquals(rec, logger.FieldComponent, p.Component) ||
			!attrEquals(rec, logger.FieldEventType, p.EventType) ||
			!attrEquals(rec, logger.FieldApp, p.App) {
			continue
		}
		if !since.IsZero() && rec.Time.Before(since) {
			continue
		}
		if kw != "" && !recordContains(rec, kw) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func attrEquals(rec logger.Record, key, want string) bool {
	if want == "" {
		return true
	}
	v, ok := rec.Attrs[key].(string)
	return ok && v == want
}

func recordContains(rec logger.Record, kw string) bool {
	if strings.Contains(strings.ToLower(rec.Message), kw) {
		return true
	}
	for _, key := range []string{logger.FieldComponent, logger.FieldEventType, logger.FieldAction} {
		if v, ok := rec.Attrs[key].(string); ok && strings.Contains(strings.ToLower(v), kw) {
			return true
		}
	}
	return false
}
