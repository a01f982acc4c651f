package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vvmguard/vvmguard/evaluator/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	watch := flag.Bool("watch", false, "scrape configured gateways and re-evaluate every scrape interval")
	nowFlag := flag.String("now", "", "evaluate as of this RFC 3339 time instead of the wall clock")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("vvmguard-evaluator starting", "config", *configPath, "watch", *watch)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"library", cfg.Evaluator.LibraryPath,
		"workers", cfg.Evaluator.Workers,
		"sources", len(cfg.Evaluator.Watch.Sources),
		"audit", cfg.Evaluator.Audit.Path != "",
		"webhooks", len(cfg.Alerts.Webhooks),
	)

	clock := time.Now
	if *nowFlag != "" {
		fixed, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			slog.Error("invalid -now", "value", *nowFlag, "err", err)
			os.Exit(2)
		}
		clock = func() time.Time { return fixed }
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, clock)
	if err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
	defer a.close()

	if *watch {
		err = a.watch(ctx, *configPath)
	} else {
		err = a.once(ctx, os.Stdout)
	}
	if err != nil {
		slog.Error("evaluation failed", "err", err)
		a.close()
		os.Exit(1)
	}
	slog.Info("vvmguard-evaluator shutting down")
}
