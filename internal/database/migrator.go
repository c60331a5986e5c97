package database

import (
	"context"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
)

// migrationDB Migrate 需要的最小接口 (*pgxpool.Pool 满足)。
type migrationDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MigrateDir 执行目录中的迁移; 目录不存在时跳过。
func MigrateDir(ctx context.Context, db migrationDB, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Info("migrate: no migrations directory, skipping", logger.FieldPath, dir)
		return nil
	}
	return Migrate(ctx, db, os.DirFS(dir))
}

// Migrate 按文件名顺序执行 fsys 根目录下尚未应用的 *.sql。
//
// 已应用版本记录在 schema_version 表; 每个文件与其版本记录在同一事务中提交。
func Migrate(ctx context.Context, db migrationDB, fsys fs.FS) error {
	if db == nil {
		return pkgerr.New("Migrate", "database is required")
	}
	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`); err != nil {
		return pkgerr.Wrap(err, "Migrate", "create schema_version table")
	}

	files, err := listMigrations(fsys)
	if err != nil {
		return err
	}
	applied, err := loadAppliedVersions(ctx, db)
	if err != nil {
		return err
	}
	pending := pendingMigrations(files, applied)
	if len(pending) == 0 {
		return nil
	}
	logger.Infow("migrate: applying", logger.FieldCount, len(pending))
	for _, name := range pending {
		if err := applyOneMigration(ctx, db, fsys, name); err != nil {
			return err
		}
		logger.Infow("migrate: applied", logger.FieldVersion, name)
	}
	return nil
}

// listMigrations 根目录 *.sql, 按名称排序。
func listMigrations(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, pkgerr.Wrap(err, "Migrate", "read migrations")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func pendingMigrations(files []string, applied map[string]bool) []string {
	var out []string
	for _, name := range files {
		if !applied[name] {
			out = append(out, name)
		}
	}
	return out
}

func loadAppliedVersions(ctx context.Context, db migrationDB) (map[string]bool, error) {
	if db == nil {
		return nil, pkgerr.New("Migrate", "database is required")
	}
	rows, err := db.Query(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, pkgerr.Wrap(err, "Migrate", "query schema_version")
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, pkgerr.Wrap(err, "Migrate", "scan schema_version")
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func applyOneMigration(ctx context.Context, db migrationDB, fsys fs.FS, name string) error {
	if db == nil {
		return pkgerr.New("Migrate", "database is required")
	}
	body, err := fs.ReadFile(fsys, name)
	if err != nil {
		return pkgerr.Wrapf(err, "Migrate", "read migration %s", name)
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return pkgerr.Wrapf(err, "Migrate", "begin %s", name)
	}
	if _, err := tx.Exec(ctx, string(body)); err != nil {
		_ = tx.Rollback(ctx)
		return pkgerr.Wrapf(err, "Migrate", "exec %s", name)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback(ctx)
		return pkgerr.Wrapf(err, "Migrate", "record %s", name)
	}
	if err := tx.Commit(ctx); err != nil {
		return pkgerr.Wrapf(err, "Migrate", "commit %s", name)
	}
	return nil
}
