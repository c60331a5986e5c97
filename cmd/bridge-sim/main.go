// cmd/bridge-sim — 眼镜 bridge 模拟器: WebSocket 服务 + 终端预览。
//
// 启动:
//
//	bridge-sim --listen 127.0.0.1:5190            # TUI, 方向键/回车/空格发送手势
//	bridge-sim --headless --encoding list-snake   # 仅服务
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/BxNxM/even-dev/internal/bridge/sim"
	"github.com/BxNxM/even-dev/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen   string
		encoding string
		seed     uint64
		headless bool
		silent   bool
		logFile  string
		logLevel string
	)
	flagSet := pflag.NewFlagSet("bridge-sim", pflag.ContinueOnError)
	flagSet.StringVar(&listen, "listen", "127.0.0.1:5190", "listen address (served at /bridge)")
	flagSet.StringVar(&encoding, "encoding", "random", "event encoding: random, "+strings.Join(sim.EncodingNames(), ", "))
	flagSet.Uint64Var(&seed, "seed", 0, "random seed for encodings (0 = time based)")
	flagSet.BoolVar(&headless, "headless", false, "serve without the terminal UI")
	flagSet.BoolVar(&silent, "silent-hello", false, "never answer the handshake (acquisition timeout testing)")
	flagSet.StringVar(&logFile, "log-output", "", "log file in TUI mode (default: discard)")
	flagSet.StringVar(&logLevel, "log-level", "INFO", "log level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	var opts []sim.Option
	if encoding != "random" {
		enc, ok := sim.ParseEncoding(encoding)
		if !ok {
			return fmt.Errorf("unknown encoding %q", encoding)
		}
		opts = append(opts, sim.WithEncoding(enc))
	}
	if seed != 0 {
		opts = append(opts, sim.WithSeed(seed))
	}
	if silent {
		opts = append(opts, sim.WithSilentHello())
	}

	if headless {
		logger.Init("production")
	} else {
		w := io.Discard
		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		logger.InitWithWriter(w, "production")
	}
	logger.SetLevel(logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := sim.New(opts...)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, listen) })

	if !headless {
		g.Go(func() error {
			defer cancel()
			p := tea.NewProgram(newModel(srv, listen), tea.WithAltScreen(), tea.WithContext(gctx))
			if _, err := p.Run(); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
