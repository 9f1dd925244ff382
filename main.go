package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/qrscan-go/app"
	"github.com/soocke/qrscan-go/config"
	"github.com/soocke/qrscan-go/debug"
	"github.com/soocke/qrscan-go/scanner"
)

func main() {
	cfg, cfgPath, err := config.Parse(os.Args[0], os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}

	level := slog.LevelInfo
	if cfg != nil && cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(os.Stdout, level)
	if err != nil {
		if cfg == nil {
			logger.Error("invalid arguments", "error", err)
			os.Exit(2)
		}
		logger.Warn("config load failed, using defaults", "path", cfgPath, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Debug {
		debug.StartGoroutineLogger(ctx, 5*time.Second, logger)
		debug.StartMemLogger(ctx, 5*time.Second, logger)
	}

	if cfg.Headless {
		if err := scanner.RunHeadless(ctx, cfg, logger); err != nil {
			logger.Error("headless run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	application, err := app.NewApp("QR Scanner", 760, 720, cfg, cfgPath, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	application.Start(ctx)
}
