package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Lodewijkheemskerk/BluePrint/internal/backtest"
	"github.com/Lodewijkheemskerk/BluePrint/internal/config"
	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
	"github.com/Lodewijkheemskerk/BluePrint/internal/marketdata"
	"github.com/Lodewijkheemskerk/BluePrint/pkg/reporting"
)

func main() {
	var (
		strategyFile = flag.String("strategy", "", "path to a strategy YAML file (required)")
		symbols      = flag.String("symbols", "BTCUSDT", "comma-separated symbols to test")
		timeframe    = flag.String("timeframe", "1d", "primary timeframe")
		lookback     = flag.Int("lookback", 365, "bars of history per timeframe")
		xlsxPath     = flag.String("xlsx", "", "also write results to this XLSX file")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *strategyFile == "" {
		flag.Usage()
		log.Fatal().Msg("-strategy is required")
	}

	strat, err := domain.LoadStrategyFile(*strategyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load strategy")
	}

	cfg := config.Load()
	market := marketdata.NewBybit(marketdata.BybitConfig{
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.Secret,
		Testnet:           cfg.Exchange.Testnet,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		FetchTimeout:      cfg.Exchange.FetchTimeout,
	}, log)

	bt := backtest.New(market, log)
	result, err := bt.Run(context.Background(), backtest.Request{
		Strategy:     strat,
		Symbols:      splitSymbols(*symbols),
		Timeframe:    *timeframe,
		LookbackBars: *lookback,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	reporting.NewConsoleReporter().OutputResults(result)

	if *xlsxPath != "" {
		if err := reporting.NewExcelReporter().WriteResultsXLSX(result, *xlsxPath); err != nil {
			log.Fatal().Err(err).Msg("failed to write XLSX report")
		}
		log.Info().Str("path", *xlsxPath).Msg("XLSX report written")
	}
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
