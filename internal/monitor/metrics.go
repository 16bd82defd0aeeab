// Package monitor exposes runtime health of the bot: Prometheus metrics plus an
// in-process summary of exchange API calls.
package monitor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const responseWindow = 100

// Metrics groups the collectors used across the bot. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal   *prometheus.CounterVec
	OrdersTotal   *prometheus.CounterVec
	APICallsTotal *prometheus.CounterVec
	APILatency    *prometheus.HistogramVec
	EmergencyStop prometheus.Gauge
	DailyLoss     prometheus.Gauge

	mu        sync.Mutex
	calls     int
	successes int
	failures  int
	latencies []time.Duration
}

// New creates collectors registered on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "asterbot_cycles_total", Help: "Trading cycles by outcome"},
			[]string{"outcome"},
		),
		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "asterbot_orders_total", Help: "Orders submitted"},
			[]string{"symbol", "side", "result"},
		),
		APICallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "asterbot_api_calls_total", Help: "Exchange API calls"},
			[]string{"operation", "result"},
		),
		APILatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asterbot_api_latency_seconds",
				Help:    "Exchange API call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		EmergencyStop: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "asterbot_emergency_stop", Help: "1 while the risk gate is blocked"},
		),
		DailyLoss: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "asterbot_daily_loss", Help: "Accumulated realized loss for the current day"},
		),
		latencies: make([]time.Duration, 0, responseWindow),
	}

	m.registry.MustRegister(m.CyclesTotal, m.OrdersTotal, m.APICallsTotal, m.APILatency, m.EmergencyStop, m.DailyLoss)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAPICall records one exchange call.
func (m *Metrics) ObserveAPICall(operation string, took time.Duration, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	m.APICallsTotal.WithLabelValues(operation, result).Inc()
	m.APILatency.WithLabelValues(operation).Observe(took.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if err != nil {
		m.failures++
	} else {
		m.successes++
	}
	if len(m.latencies) == responseWindow {
		m.latencies = m.latencies[1:]
	}
	m.latencies = append(m.latencies, took)
}

// ObserveCycle counts a finished cycle.
func (m *Metrics) ObserveCycle(outcome string) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
}

// ObserveOrder counts a submitted order.
func (m *Metrics) ObserveOrder(symbol, side string, err error) {
	if m == nil {
		return
	}

	result := "filled"
	if err != nil {
		result = "failed"
	}
	m.OrdersTotal.WithLabelValues(symbol, side, result).Inc()
}

// SetRisk publishes the risk gate view.
func (m *Metrics) SetRisk(blocked bool, dailyLoss float64) {
	if m == nil {
		return
	}

	if blocked {
		m.EmergencyStop.Set(1)
	} else {
		m.EmergencyStop.Set(0)
	}
	m.DailyLoss.Set(dailyLoss)
}

// HealthStats summarises API calls since start.
type HealthStats struct {
	Calls           int           `json:"calls"`
	Successes       int           `json:"successes"`
	Errors          int           `json:"errors"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// Health returns the current API call summary. Average latency covers the last 100 calls.
func (m *Metrics) Health() HealthStats {
	if m == nil {
		return HealthStats{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := HealthStats{Calls: m.calls, Successes: m.successes, Errors: m.failures}
	if m.calls > 0 {
		stats.SuccessRate = float64(m.successes) / float64(m.calls) * 100
	}
	if len(m.latencies) > 0 {
		var total time.Duration
		for _, d := range m.latencies {
			total += d
		}
		stats.AvgResponseTime = total / time.Duration(len(m.latencies))
	}

	return stats
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}

	return nil
}
