package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks service liveness signals for the health endpoint.
type HealthChecker struct {
	mu          sync.RWMutex
	lastScan    time.Time
	lastRegime  string
	isConnected bool
	errors      []string
}

type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LastScan     time.Time `json:"last_scan"`
	MarketRegime string    `json:"market_regime"`
	IsConnected  bool      `json:"is_connected"`
	Uptime       string    `json:"uptime"`
	Errors       []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// SetConnected records database/exchange connectivity.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// RecordScan notes a finished scan run and the regime it observed.
func (h *HealthChecker) RecordScan(regime string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastScan = time.Now()
	h.lastRegime = regime
	h.errors = h.errors[:0]
}

// RecordError appends a health-relevant error.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, code := "healthy", http.StatusOK
	if !h.isConnected {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status, code = "unhealthy", http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:       status,
		Timestamp:    time.Now(),
		LastScan:     h.lastScan,
		MarketRegime: h.lastRegime,
		IsConnected:  h.isConnected,
		Uptime:       time.Since(startTime).String(),
		Errors:       h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
