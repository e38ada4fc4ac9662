package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blueprint_scans_total",
			Help: "Total number of scan runs by terminal status",
		},
		[]string{"status"},
	)

	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blueprint_scan_duration_seconds",
			Help:    "Duration of completed scan runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	setupsFoundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blueprint_setups_found_total",
			Help: "Total setups detected, by strategy",
		},
		[]string{"strategy"},
	)

	assetsScanned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blueprint_assets_scanned",
			Help: "Assets evaluated in the most recent scan run",
		},
	)

	marketRegime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blueprint_market_regime",
			Help: "Current market regime (1 for the active regime, 0 otherwise)",
		},
		[]string{"regime"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blueprint_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(scansTotal)
	prometheus.MustRegister(scanDuration)
	prometheus.MustRegister(setupsFoundTotal)
	prometheus.MustRegister(assetsScanned)
	prometheus.MustRegister(marketRegime)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus metrics endpoint.
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint.
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordScan records the terminal status and duration of a scan run.
func RecordScan(status string, duration time.Duration) {
	scansTotal.WithLabelValues(status).Inc()
	scanDuration.Observe(duration.Seconds())
}

// RecordSetupFound counts one detected setup for a strategy.
func RecordSetupFound(strategy string) {
	setupsFoundTotal.WithLabelValues(strategy).Inc()
}

// UpdateAssetsScanned sets the asset count of the latest run.
func UpdateAssetsScanned(n int) {
	assetsScanned.Set(float64(n))
}

// UpdateMarketRegime flags the active regime gauge.
func UpdateMarketRegime(regime string) {
	for _, r := range []string{"trending_up", "trending_down", "ranging", "high_volatility"} {
		v := 0.0
		if r == regime {
			v = 1.0
		}
		marketRegime.WithLabelValues(r).Set(v)
	}
}

// RecordError counts one error by type.
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
