package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/Lodewijkheemskerk/BluePrint/internal/backtest"
	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
	"github.com/Lodewijkheemskerk/BluePrint/internal/monitoring"
	"github.com/Lodewijkheemskerk/BluePrint/internal/scanner"
)

// RunStore is the read side the API needs beyond scanner control.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*domain.ScanRun, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.ScanRun, error)
	ListRecentSetups(ctx context.Context, limit int) ([]*domain.Setup, error)
	SaveStrategy(ctx context.Context, strat *domain.Strategy) error
	ListActiveStrategies(ctx context.Context) ([]*domain.Strategy, error)
}

// Server exposes scan control, results, and the backtester over HTTP.
type Server struct {
	echo       *echo.Echo
	scanner    *scanner.Scanner
	backtester *backtest.Backtester
	store      RunStore
	health     *monitoring.HealthChecker
	log        zerolog.Logger
}

// NewServer wires all routes.
func NewServer(sc *scanner.Scanner, bt *backtest.Backtester, store RunStore, health *monitoring.HealthChecker, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		scanner:    sc,
		backtester: bt,
		store:      store,
		health:     health,
		log:        log.With().Str("component", "api").Logger(),
	}

	e.POST("/api/scan", s.triggerScan)
	e.POST("/api/scan/stop", s.stopScan)
	e.GET("/api/scan/status", s.scanStatus)
	e.GET("/api/scans", s.listScans)
	e.GET("/api/setups", s.listSetups)
	e.GET("/api/conditions", s.listConditions)
	e.POST("/api/strategies", s.createStrategy)
	e.GET("/api/strategies", s.listStrategies)
	e.POST("/api/backtest", s.runBacktest)

	e.GET("/healthz", echo.WrapHandler(health))
	e.GET("/metrics", echo.WrapHandler(monitoring.NewMetricsHandler()))

	return s
}

// Start serves until the context is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(fmt.Sprintf(":%d", port))
	}()
	s.log.Info().Int("port", port).Msg("api listening")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}
