// Package database PostgreSQL 连接池与迁移。
//
// 数据库是可选的: 只用于诊断日志落库, 未配置时整个进程照常运行。
package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BxNxM/even-dev/internal/config"
	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
)

const pingTimeout = 5 * time.Second

// NewPool 创建连接池并 ping 一次。
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.DatabaseEnabled() {
		return nil, pkgerr.Wrap(pkgerr.ErrInvalidInput, "database.NewPool", "POSTGRES_CONNECTION_STRING is empty")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnStr)
	if err != nil {
		return nil, pkgerr.Wrap(err, "database.NewPool", "parse connection string")
	}
	poolCfg.MinConns = clampInt32(cfg.PostgresPoolMinSize, "min_conns")
	poolCfg.MaxConns = clampInt32(cfg.PostgresPoolMaxSize, "max_conns")
	if poolCfg.MaxConns < poolCfg.MinConns {
		poolCfg.MaxConns = poolCfg.MinConns
	}
	if hook := searchPathHook(cfg.PostgresSchema); hook != nil {
		poolCfg.AfterConnect = hook
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, pkgerr.Wrap(err, "database.NewPool", "create pool")
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, pkgerr.Wrap(err, "database.NewPool", "ping")
	}

	logger.Infow("database: pool ready",
		"min_conns", poolCfg.MinConns,
		"max_conns", poolCfg.MaxConns,
		"schema", cfg.PostgresSchema)
	return pool, nil
}

// searchPathHook 非 public schema 时在每个新连接上设置 search_path。
func searchPathHook(schema string) func(context.Context, *pgx.Conn) error {
	if schema == "" || schema == "public" {
		return nil
	}
	stmt := fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize())
	return func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, stmt)
		return err
	}
}

func clampInt32(v int, name string) int32 {
	switch {
	case v > math.MaxInt32:
		logger.Warn("database: pool size clamped", "field", name, "value", v)
		return math.MaxInt32
	case v < 0:
		logger.Warn("database: pool size clamped", "field", name, "value", v)
		return 0
	}
	return int32(v)
}
