package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"StockChart/internal/config"
	"StockChart/internal/input"
	"StockChart/internal/model"
	"StockChart/internal/pipeline"
)

func main() {
	symbol := flag.String("symbol", "", "stock symbol; prompts when any of -symbol, -from, -to is missing")
	from := flag.String("from", "", "start date dd/mm/yyyy")
	to := flag.String("to", "", "end date dd/mm/yyyy")
	noBrowser := flag.Bool("no-browser", false, "write the chart without opening it")
	flag.Parse()

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var q model.Query
	if *symbol != "" && *from != "" && *to != "" {
		q, err = input.NewQuery(*symbol, *from, *to)
	} else {
		q, err = input.NewPrompter(os.Stdin, os.Stdout).Query()
	}
	if err != nil {
		logger.WithError(err).Fatal("read query")
	}

	runner := pipeline.FromConfig(cfg, logger, !*noBrowser)
	defer runner.Close()

	sum, err := runner.Run(ctx, q, "cli")
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted")
		} else {
			logger.WithError(err).Error("session finished with errors")
		}
	}
	if sum.HasPrices() {
		fmt.Printf("%s: %d records, last close %.0f on %s, range %.0f to %.0f\n",
			q.Symbol, sum.Records, sum.LastClose, sum.LastDate.Format(model.DateLayout), sum.Low, sum.High)
	}
	if err != nil {
		runner.Close()
		os.Exit(1)
	}
}
