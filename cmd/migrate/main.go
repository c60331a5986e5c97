// cmd/migrate — 单独执行诊断库迁移。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/BxNxM/even-dev/internal/config"
	"github.com/BxNxM/even-dev/internal/database"
	"github.com/BxNxM/even-dev/migrations"
	"github.com/BxNxM/even-dev/pkg/logger"
)

func main() {
	cfg := config.Load()
	dir := pflag.String("dir", cfg.MigrationsDir, "migrations directory (empty: embedded scripts)")
	pflag.StringVar(&cfg.PostgresConnStr, "dsn", cfg.PostgresConnStr, "PostgreSQL connection string")
	pflag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	logger.Init(cfg.LogEnv)

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if *dir != "" {
		err = database.MigrateDir(ctx, pool, *dir)
	} else {
		err = database.Migrate(ctx, pool, migrations.FS)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("migration complete")
}
