// Package metrics exposes hunt progress as Prometheus collectors on a
// dedicated registry, with an optional HTTP exposition endpoint that lives
// for the duration of a hunt.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iphunt/iphunt/internal/logging"
)

// Metrics holds the collectors for one hunt run. Registered in a private
// registry so tests and repeated runs never collide with the global one.
type Metrics struct {
	registry *prometheus.Registry

	attemptsTotal    *prometheus.CounterVec
	attemptsInFlight prometheus.Gauge
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	reconciledPorts  prometheus.Counter
}

// New creates the collectors and registers them.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iphunt",
			Name:      "attempts_total",
			Help:      "Completed hunt attempts by terminal outcome.",
		}, []string{"outcome"}),
		attemptsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "iphunt",
			Name:      "attempts_in_flight",
			Help:      "Hunt attempts currently holding a concurrency permit.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iphunt",
			Name:      "api_requests_total",
			Help:      "Control-plane API requests by operation and status code.",
		}, []string{"operation", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "iphunt",
			Name:      "api_request_duration_seconds",
			Help:      "Control-plane API request latency by operation.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		reconciledPorts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iphunt",
			Name:      "reconciled_ports_total",
			Help:      "Orphaned ports removed by the startup reconciler.",
		}),
	}

	m.registry.MustRegister(
		m.attemptsTotal,
		m.attemptsInFlight,
		m.requestsTotal,
		m.requestDuration,
		m.reconciledPorts,
	)
	return m
}

// AttemptStarted marks an attempt as in flight.
func (m *Metrics) AttemptStarted() {
	m.attemptsInFlight.Inc()
}

// AttemptFinished records an attempt's terminal outcome and releases the
// in-flight gauge.
func (m *Metrics) AttemptFinished(outcome string) {
	m.attemptsInFlight.Dec()
	m.attemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequest implements the cloud client's Recorder interface. A status
// code of zero means the request never produced a response.
func (m *Metrics) ObserveRequest(operation string, statusCode int, elapsed time.Duration) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	m.requestsTotal.WithLabelValues(operation, code).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// PortReconciled counts one port removed by the reconciler.
func (m *Metrics) PortReconciled() {
	m.reconciledPorts.Inc()
}

// Registry exposes the private registry (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the exposition handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. Errors are logged,
// never fatal: metrics are best-effort alongside a hunt.
func (m *Metrics) Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Warn("metrics listener failed", logging.Err(err))
	}
}
