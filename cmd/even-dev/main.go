// cmd/even-dev — 双界面应用主入口: 面板 HTTP 服务 + 会话队列 + bridge 连接。
//
// 启动:
//
//	even-dev --app theme --listen 127.0.0.1:5180 --bridge ws://127.0.0.1:5190/bridge
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/BxNxM/even-dev/internal/bridge"
	"github.com/BxNxM/even-dev/internal/config"
	"github.com/BxNxM/even-dev/internal/database"
	"github.com/BxNxM/even-dev/internal/engine"
	"github.com/BxNxM/even-dev/internal/monitor"
	"github.com/BxNxM/even-dev/internal/panel"
	"github.com/BxNxM/even-dev/internal/store"
	"github.com/BxNxM/even-dev/migrations"
	"github.com/BxNxM/even-dev/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	flagSet := pflag.NewFlagSet("even-dev", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "panel HTTP listen address")
	flagSet.StringVar(&cfg.BridgeURL, "bridge", cfg.BridgeURL, "bridge WebSocket URL")
	flagSet.StringVar(&cfg.AppName, "app", cfg.AppName, "application name from the catalog")
	flagSet.StringVar(&cfg.AppCatalog, "catalog", cfg.AppCatalog, "application catalog (YAML)")
	flagSet.BoolVar(&cfg.BridgeAutoConnect, "connect", cfg.BridgeAutoConnect, "connect to the bridge at startup")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (DEBUG, INFO, WARN, ERROR)")
	flagSet.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "diagnostic log directory (empty disables the file)")
	budget := flagSet.Duration("budget", cfg.ConnectBudget(), "bridge acquisition budget")
	reconnect := flagSet.Duration("reconnect", cfg.ReconnectInterval(), "base retry interval while in mock mode (0 disables)")
	writeCatalog := flagSet.Bool("write-catalog", false, "write the default catalog to --catalog and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *budget > 0 {
		cfg.BridgeConnectTimeoutMS = int(budget.Milliseconds())
	}
	if flagSet.Changed("reconnect") {
		cfg.BridgeReconnectSec = int(reconnect.Seconds())
	}

	if *writeCatalog {
		return config.SaveCatalog(cfg.AppCatalog, config.DefaultCatalog())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Init(cfg.LogEnv)
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogDir != "" {
		if _, err := logger.InitWithFile(cfg.LogDir); err != nil {
			logger.Warn("diagnostic log file unavailable", logger.FieldError, err)
		}
		defer logger.ShutdownFileHandler()
	}
	ring := logger.NewRingHandler(cfg.DiagRingSize, slog.LevelDebug)
	logger.AttachHandler(ring)

	var diag store.DiagnosticSource = store.NewRingSource(ring)
	if pool := openDatabase(ctx, cfg); pool != nil {
		defer pool.Close()
		logger.AttachDBHandler(pool)
		defer logger.ShutdownDBHandler()
		diag = store.NewDiagnosticLogStore(pool)
	}

	catalog, err := config.LoadCatalog(cfg.AppCatalog)
	if err != nil {
		return err
	}
	app, ok := catalog.Lookup(cfg.AppName)
	if !ok {
		return fmt.Errorf("application %q not in catalog %s", cfg.AppName, cfg.AppCatalog)
	}

	hub := panel.NewHub(cfg.PanelMaxClients)
	sess := engine.New(engine.Options{
		App:     app.Name,
		Title:   app.Title,
		Profile: app.Profile,
		Options: app.Options,
		Local:   hub,
		Acquire: bridge.DialAcquirer(cfg.BridgeURL),
		Budget:  cfg.ConnectBudget(),
	})
	srv := panel.New(panel.Deps{
		Backend:     sess,
		Hub:         hub,
		Diagnostics: diag,
		Keepalive:   cfg.PanelKeepalive(),
	})

	logger.Info("even-dev starting",
		logger.FieldApp, app.Name,
		logger.FieldListen, cfg.ListenAddr,
		logger.FieldURL, cfg.BridgeURL,
		logger.FieldBudgetMS, cfg.BridgeConnectTimeoutMS)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.ListenAddr) })
	if cfg.BridgeAutoConnect {
		g.Go(func() error {
			mode := sess.Connect(gctx)
			logger.Info("initial connect finished", logger.FieldMode, mode.String())
			return nil
		})
	}
	patrol := monitor.NewPatrol(sess, hub, cfg.ReconnectInterval(), cfg.ReconnectMax())
	patrol.Start(gctx, patrolTick(cfg.ReconnectInterval()))
	return g.Wait()
}

// patrolTick 巡检周期: 不超过重连间隔, 最长 5s。
func patrolTick(reconnect time.Duration) time.Duration {
	if reconnect > 0 && reconnect < 5*time.Second {
		return reconnect
	}
	return 5 * time.Second
}

// openDatabase 数据库可选: 未配置或连接失败时返回 nil, 诊断日志退回内存环。
func openDatabase(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	if !cfg.DatabaseEnabled() {
		return nil
	}
	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		logger.Warn("database unavailable, diagnostics stay in memory", logger.FieldError, err)
		return nil
	}
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := migrate(migrateCtx, pool, cfg.MigrationsDir); err != nil {
		if !cfg.MigrationNonFatal {
			pool.Close()
			logger.Error("migration failed", logger.FieldError, err)
			return nil
		}
		logger.Warnw("migration failed (non-fatal by config)", logger.FieldError, err)
	}
	return pool
}

// migrate 优先使用磁盘上的迁移目录, 否则使用内嵌脚本。
func migrate(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	if dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return database.MigrateDir(ctx, pool, dir)
		}
	}
	return database.Migrate(ctx, pool, migrations.FS)
}
