package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Lodewijkheemskerk/BluePrint/internal/backtest"
	"github.com/Lodewijkheemskerk/BluePrint/internal/conditions"
	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// triggerScan starts a scan cycle. 202 when started, 409 with the skipped
// run when one is already active.
func (s *Server) triggerScan(c echo.Context) error {
	run, started, err := s.scanner.TriggerScan(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	if !started {
		return c.JSON(http.StatusConflict, run)
	}
	return c.JSON(http.StatusAccepted, run)
}

func (s *Server) stopScan(c echo.Context) error {
	if !s.scanner.Stop() {
		return c.JSON(http.StatusConflict, errorResponse{Error: "no scan is currently running"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// scanStatus reports the active run, or the most recent one when idle.
func (s *Server) scanStatus(c echo.Context) error {
	ctx := c.Request().Context()

	if id := s.scanner.CurrentRunID(); id != "" {
		run, err := s.store.GetRun(ctx, id)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		if run != nil {
			return c.JSON(http.StatusOK, map[string]any{"running": true, "run": run})
		}
	}

	runs, err := s.store.ListRuns(ctx, 1)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	var last *domain.ScanRun
	if len(runs) > 0 {
		last = runs[0]
	}
	return c.JSON(http.StatusOK, map[string]any{"running": false, "run": last})
}

func (s *Server) listScans(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := s.store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) listSetups(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	setups, err := s.store.ListRecentSetups(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, setups)
}

// listConditions returns the full condition catalog.
func (s *Server) listConditions(c echo.Context) error {
	return c.JSON(http.StatusOK, conditions.Catalog())
}

type strategyRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Direction   domain.Direction   `json:"direction"`
	Regimes     []string           `json:"regimes"`
	Conditions  []domain.Condition `json:"conditions"`
}

// createStrategy validates and persists a strategy. Unknown condition types
// are rejected here, before the strategy can ever reach a scan.
func (s *Server) createStrategy(c echo.Context) error {
	var req strategyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	strat := &domain.Strategy{
		Name:        req.Name,
		Description: req.Description,
		Direction:   req.Direction,
		IsActive:    true,
		Regimes:     req.Regimes,
		Conditions:  req.Conditions,
	}
	if err := domain.ValidateStrategy(strat); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, conditions.ErrUnknownCondition) {
			status = http.StatusUnprocessableEntity
		}
		return c.JSON(status, errorResponse{Error: err.Error()})
	}

	if err := s.store.SaveStrategy(c.Request().Context(), strat); err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, strat)
}

func (s *Server) listStrategies(c echo.Context) error {
	strategies, err := s.store.ListActiveStrategies(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, strategies)
}

type backtestRequest struct {
	Strategy     strategyRequest `json:"strategy"`
	Symbols      []string        `json:"symbols"`
	Timeframe    string          `json:"timeframe"`
	LookbackBars int             `json:"lookback_bars"`
}

func (s *Server) runBacktest(c echo.Context) error {
	var req backtestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if len(req.Symbols) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "symbols are required"})
	}

	strat := &domain.Strategy{
		Name:       req.Strategy.Name,
		Direction:  req.Strategy.Direction,
		Conditions: req.Strategy.Conditions,
	}
	if strat.Name == "" {
		strat.Name = "ad-hoc"
	}
	if strat.Direction == "" {
		strat.Direction = domain.Long
	}

	result, err := s.backtester.Run(c.Request().Context(), backtest.Request{
		Strategy:     strat,
		Symbols:      req.Symbols,
		Timeframe:    req.Timeframe,
		LookbackBars: req.LookbackBars,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, conditions.ErrUnknownCondition) {
			status = http.StatusUnprocessableEntity
		}
		return c.JSON(status, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}
