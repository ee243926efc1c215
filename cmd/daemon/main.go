package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"StockChart/internal/config"
	"StockChart/internal/notifier"
	"StockChart/internal/pipeline"
	"StockChart/internal/scheduler"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		config.NewLogger("info").WithError(err).Fatal("load config")
	}
	logger := config.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("config validation")
	}
	logger.Info("StockChart daemon starting...")

	runner := pipeline.FromConfig(cfg, logger, false)
	defer runner.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tn *notifier.TelegramNotifier
	var n scheduler.Notifier
	if cfg.HasTelegram() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		n = tn
	} else {
		logger.Warn("telegram not configured, reports and commands disabled")
	}

	sched := scheduler.NewScheduler(ctx, runner, n, runner.Recorder, logger)
	if err := sched.RegisterJobs(cfg.Jobs); err != nil {
		logger.WithError(err).Fatal("register cron jobs")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("RUN_ON_START enabled, executing all jobs now")
		go sched.RunAllNow()
	}

	logger.WithField("jobs", len(cfg.Jobs)).Info("StockChart daemon is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping...")
	cancel()
}
