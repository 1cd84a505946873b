// Package metrics exposes Prometheus metrics for a tezbridge service.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RobertWHurst/tezbridge"
)

// Metrics records request outcomes and fatal errors. It implements
// tezbridge.Observer.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec   // By kind and status
	requestDuration *prometheus.HistogramVec // By kind
	fatalErrors     prometheus.Counter
}

var _ tezbridge.Observer = &Metrics{}

// New creates the metrics and registers them, along with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tezbridge",
			Name:      "requests_total",
			Help:      "Total number of requests answered, by kind and status",
		}, []string{"kind", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tezbridge",
			Name:      "request_duration_seconds",
			Help:      "Time spent converting a request, in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"kind"}),

		fatalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tezbridge",
			Name:      "fatal_errors_total",
			Help:      "Total number of errors that stopped the service",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.fatalErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts one answered request.
func (m *Metrics) ObserveRequest(kind tezbridge.RequestKind, status tezbridge.Status, duration time.Duration) {
	m.requestsTotal.WithLabelValues(string(kind), string(status)).Inc()
	m.requestDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

// ObserveFatal counts an error that stopped the service.
func (m *Metrics) ObserveFatal(error) {
	m.fatalErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics at /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
