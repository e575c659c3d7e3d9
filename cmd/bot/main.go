package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/camuig/coin-sim/internal/ai"
	"github.com/camuig/coin-sim/internal/config"
	"github.com/camuig/coin-sim/internal/executor"
	"github.com/camuig/coin-sim/internal/logger"
	"github.com/camuig/coin-sim/internal/market"
	"github.com/camuig/coin-sim/internal/metrics"
	"github.com/camuig/coin-sim/internal/scheduler"
	"github.com/camuig/coin-sim/internal/storage"
	"github.com/camuig/coin-sim/internal/telegram"
	"github.com/camuig/coin-sim/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "", "path to SQLite database (overrides storage.path)")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}

	// Init logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting coin-sim", "interval", cfg.UpdateInterval().String(), "fee_rate", cfg.FeeRate().String())

	// Init database
	db, err := storage.NewDatabase(cfg.Storage.Path)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market resumes from the last stored prices
	sim := market.NewSimulator(market.DefaultCoins, cfg.Market.Seed)
	if last, err := repo.LatestPrices(ctx); err != nil {
		log.Error("load latest prices", "error", err)
	} else if len(last) > 0 {
		sim.Seed(last)
		log.Info("prices restored", "coins", len(last))
	}

	// Init services
	m := metrics.New(prometheus.NewRegistry())
	notifier := telegram.NewNotifier(cfg, log)
	exec := executor.NewExecutor(repo, sim, cfg.Validator(), cfg.Ledger(), notifier, m, executor.Options{
		StartingCash:       cfg.StartingCash(),
		TriggerConcurrency: cfg.Trading.TriggerConcurrency,
	}, log)
	var headlines scheduler.Headliner
	if cfg.Headlines.Enabled {
		headlines = ai.NewHeadlineClient(cfg, log)
		log.Info("headline rewriting enabled", "model", cfg.Headlines.Model)
	}
	sched := scheduler.NewScheduler(sim, exec, repo, headlines, notifier, m, cfg, log)
	webServer := web.NewServer(exec, sim, repo, sched, m, cfg, log)

	go sched.Run(ctx)

	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	notifier.NotifyStatus("🤖 coin-sim started")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	cancel() // stop scheduler

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("database close error", "error", err)
		}
	}

	notifier.NotifyStatus("🛑 coin-sim stopped")
	log.Info("coin-sim stopped")
}
