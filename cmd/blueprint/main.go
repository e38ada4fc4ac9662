package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Lodewijkheemskerk/BluePrint/internal/api"
	"github.com/Lodewijkheemskerk/BluePrint/internal/backtest"
	"github.com/Lodewijkheemskerk/BluePrint/internal/config"
	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
	"github.com/Lodewijkheemskerk/BluePrint/internal/marketdata"
	"github.com/Lodewijkheemskerk/BluePrint/internal/monitoring"
	"github.com/Lodewijkheemskerk/BluePrint/internal/notifications"
	"github.com/Lodewijkheemskerk/BluePrint/internal/scanner"
	"github.com/Lodewijkheemskerk/BluePrint/internal/scheduler"
	"github.com/Lodewijkheemskerk/BluePrint/internal/storage/postgres"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Connect(postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: 25,
		MaxIdle:  10,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	// Runs left in "running" by a previous process can never finish.
	if n, err := store.MarkStaleRunsFailed(ctx, "scan interrupted by restart, recovered at startup"); err != nil {
		log.Error().Err(err).Msg("stale run recovery failed")
	} else if n > 0 {
		log.Warn().Int64("runs", n).Msg("recovered stale scan runs from previous process")
	}

	var market marketdata.Source = marketdata.NewBybit(marketdata.BybitConfig{
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.Secret,
		Testnet:           cfg.Exchange.Testnet,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		FetchTimeout:      cfg.Exchange.FetchTimeout,
	}, log)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, running without bar cache")
		} else {
			market = marketdata.NewCachedSource(market, rdb, log)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("bar cache enabled")
		}
	}

	var notifier scanner.Notifier
	if cfg.Notifications.TelegramToken != "" && cfg.Notifications.TelegramChatID != 0 {
		tn, err := notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID, log)
		if err != nil {
			log.Warn().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier = tn
			log.Info().Msg("telegram notifications enabled")
		}
	}

	loadStrategies(ctx, cfg.Scanner.StrategyDir, store, log)

	sc := scanner.New(scanner.Config{
		UniverseSize:  cfg.Scanner.UniverseSize,
		QuoteCurrency: cfg.Scanner.QuoteCurrency,
		BarLimit:      cfg.Scanner.BarLimit,
		SetupTTL:      cfg.Scanner.SetupTTL,
	}, store, market, notifier, log)

	health := monitoring.NewHealthChecker()
	health.SetConnected(true)
	sc.SetHealth(health)

	bt := backtest.New(market, log)
	server := api.NewServer(sc, bt, store, health, log)

	sched := scheduler.New(sc, cfg.Scanner.ScanInterval, log)
	go sched.Run(ctx)

	if err := server.Start(ctx, cfg.Server.Port); err != nil {
		log.Error().Err(err).Msg("api server error")
	}

	sc.Stop()
	sc.Wait()
	log.Info().Msg("shutdown complete")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.Environment == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// loadStrategies syncs YAML strategy definitions from disk into the store.
// A missing directory is fine; strategies can also arrive through the API.
func loadStrategies(ctx context.Context, dir string, store *postgres.Store, log zerolog.Logger) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil || len(paths) == 0 {
		log.Info().Str("dir", dir).Msg("no strategy files found")
		return
	}

	for _, path := range paths {
		strat, err := domain.LoadStrategyFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("skipping invalid strategy file")
			continue
		}
		if err := store.SaveStrategy(ctx, strat); err != nil {
			log.Error().Err(err).Str("strategy", strat.Name).Msg("failed to save strategy")
			continue
		}
		log.Info().Str("strategy", strat.Name).Str("file", filepath.Base(path)).Msg("strategy loaded")
	}
}
