// helpers.go — Store 层通用查询工具。
//
//   - QueryBuilder: 动态 WHERE + LIKE 关键词 + LIMIT
//   - collectRows:  pgx row → struct 泛型扫描
//   - DistinctValues: 去重列值 (面板筛选下拉)
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BxNxM/even-dev/pkg/util"
)

// MaxListLimit 单次查询上限。
const MaxListLimit = 2000

// BaseStore 所有 Store 的嵌入基底。
type BaseStore struct{ pool *pgxpool.Pool }

// NewBaseStore 创建 BaseStore。
func NewBaseStore(pool *pgxpool.Pool) BaseStore { return BaseStore{pool: pool} }

// Pool 连接池。
func (b BaseStore) Pool() *pgxpool.Pool { return b.pool }

// ========================================
// QueryBuilder
// ========================================

// QueryBuilder 渐进式 WHERE 拼接, 参数按 $1, $2... 编号。
type QueryBuilder struct {
	where  []string
	params []any
	n      int
}

// NewQueryBuilder 创建空构造器。
func NewQueryBuilder() *QueryBuilder { return &QueryBuilder{} }

func (q *QueryBuilder) next(v any) int {
	q.n++
	q.params = append(q.params, v)
	return q.n
}

// Eq 等值条件, 空值跳过。
func (q *QueryBuilder) Eq(col, val string) *QueryBuilder {
	if val == "" {
		return q
	}
	q.where = append(q.where, fmt.Sprintf("%s = $%d", col, q.next(val)))
	return q
}

// Since 时间下界条件, 零值跳过。
func (q *QueryBuilder) Since(col string, unixMS int64) *QueryBuilder {
	if unixMS <= 0 {
		return q
	}
	q.where = append(q.where, fmt.Sprintf("%s >= to_timestamp($%d / 1000.0)", col, q.next(unixMS)))
	return q
}

// KeywordLike 多列 LOWER(col) LIKE 关键词, 通配符已转义。
func (q *QueryBuilder) KeywordLike(keyword string, cols ...string) *QueryBuilder {
	if keyword == "" || len(cols) == 0 {
		return q
	}
	kw := "%" + util.EscapeLike(strings.ToLower(keyword)) + "%"
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("LOWER(%s) LIKE $%d ESCAPE E'\\\\'", c, q.next(kw)))
	}
	q.where = append(q.where, "("+strings.Join(parts, " OR ")+")")
	return q
}

// Build baseSQL + WHERE + ORDER BY + LIMIT (limit 夹在 [1, MaxListLimit])。
func (q *QueryBuilder) Build(baseSQL, orderBy string, limit int) (string, []any) {
	sql := baseSQL + q.WhereClause()
	if orderBy != "" {
		sql += " ORDER BY " + orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d", q.next(util.ClampInt(limit, 1, MaxListLimit)))
	return sql, q.params
}

// Params 当前参数列表。
func (q *QueryBuilder) Params() []any { return q.params }

// WhereClause 含前导 " WHERE ", 无条件时为空串。
func (q *QueryBuilder) WhereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// ========================================
// 行扫描
// ========================================

func collectRows[T any](rows pgx.Rows) ([]T, error) {
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

// DistinctValues 列去重值 (非空, 升序)。
func DistinctValues(ctx context.Context, pool *pgxpool.Pool, table, column string) ([]string, error) {
	safeTable := pgx.Identifier{table}.Sanitize()
	safeCol := pgx.Identifier{column}.Sanitize()
	rows, err := pool.Query(ctx, fmt.Sprintf(
		"SELECT DISTINCT %s AS value FROM %s WHERE %s <> '' ORDER BY value",
		safeCol, safeTable, safeCol))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
