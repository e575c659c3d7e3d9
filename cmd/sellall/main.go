package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/camuig/coin-sim/internal/config"
	"github.com/camuig/coin-sim/internal/executor"
	"github.com/camuig/coin-sim/internal/logger"
	"github.com/camuig/coin-sim/internal/storage"
	"github.com/camuig/coin-sim/internal/telegram"
	"github.com/camuig/coin-sim/internal/trading"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	user := flag.String("user", "", "user whose holdings are sold")
	dryRun := flag.Bool("dry-run", false, "show holdings without selling")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage: sellall -user ID [-config path] [-dry-run]

Sells every priced holding of one user at the last stored prices.
Best run with the bot stopped so prices do not move underneath the sale.
A trade the bot commits meanwhile is not lost: the sale is re-evaluated
against the fresh portfolio, or fails if it keeps changing.

`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := storage.NewDatabase(cfg.Storage.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database init error: %v\n", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	ctx := context.Background()
	last, err := repo.LatestPrices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load prices error: %v\n", err)
		os.Exit(1)
	}
	q, err := trading.NewQuote(last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stored prices error: %v\n", err)
		os.Exit(1)
	}

	p, ok, err := repo.LoadPortfolio(ctx, *user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load portfolio error: %v\n", err)
		os.Exit(1)
	}
	if !ok || len(p.Holdings) == 0 {
		fmt.Println("No holdings.")
		return
	}

	fmt.Printf("Found %d holding(s) for %s:\n\n", len(p.Holdings), *user)
	for _, ticker := range p.Tickers() {
		h := p.Holding(ticker)
		price, priced := q.Price(ticker)
		current := "no price"
		if priced {
			current = price.String()
		}
		fmt.Printf("  %s: %s units, avg %s, current %s\n",
			ticker, h.Amount, h.AveragePrice().Round(trading.MoneyPlaces), current)
	}
	fmt.Println()

	if *dryRun {
		fmt.Println("Dry run, nothing sold.")
		return
	}

	exec := executor.NewExecutor(repo, staticPrices{q}, cfg.Validator(), cfg.Ledger(), telegram.NewNotifier(cfg, log), nil,
		executor.Options{StartingCash: cfg.StartingCash()}, log)
	txs, err := exec.SellAll(ctx, *user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sell all error: %v\n", err)
		os.Exit(1)
	}

	for _, tx := range txs {
		fmt.Printf("  [OK]   %s: sold %s @ %s for %s\n", tx.Ticker, tx.Amount, tx.Price, tx.Total)
	}
	skipped := len(p.Holdings) - len(txs)
	fmt.Printf("\nDone: %d sold, %d skipped.\n", len(txs), skipped)
}

// staticPrices serves the last persisted quote so the sale matches what was shown.
type staticPrices struct {
	q trading.Quote
}

func (s staticPrices) Prices(context.Context) (trading.Quote, error) {
	return s.q, nil
}
