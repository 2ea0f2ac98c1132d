package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics provides Prometheus metrics for typist runs.
type Metrics struct {
	config MetricsConfig

	runsStarted     *prometheus.CounterVec
	runsFinished    *prometheus.CounterVec
	passesCompleted *prometheus.CounterVec
	emissions       *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec
	errorsByClass   *prometheus.CounterVec
	activeRuns      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector on its own registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	ns := cfg.Namespace
	buckets := cfg.PassDurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "runs_started_total",
				Help:      "Total number of typist runs started",
			},
			[]string{"script"},
		),
		runsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "runs_finished_total",
				Help:      "Total number of typist runs finished, by final status",
			},
			[]string{"status"},
		),
		passesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "passes_completed_total",
				Help:      "Total number of passes that ran to the end",
			},
			[]string{"script"},
		),
		emissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "emissions_total",
				Help:      "Total number of snapshots delivered to sinks",
			},
			[]string{"script"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "pass_duration_seconds",
				Help:      "Wall-clock duration of completed passes, pauses included",
				Buckets:   buckets,
			},
			[]string{"script"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "errors_total",
				Help:      "Total number of engine errors other than cancellations",
			},
			[]string{"class"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "active_runs",
				Help:      "Current number of running typists",
			},
		),
	}

	m.registry.MustRegister(
		m.runsStarted,
		m.runsFinished,
		m.passesCompleted,
		m.emissions,
		m.passDuration,
		m.errorsByClass,
		m.activeRuns,
	)

	return m, nil
}

// Enabled reports whether metrics are being collected.
func (m *Metrics) Enabled() bool {
	return m.registry != nil
}

// RecordRunStarted counts a started run.
func (m *Metrics) RecordRunStarted(script string) {
	if m.registry == nil {
		return
	}
	m.runsStarted.WithLabelValues(script).Inc()
	m.activeRuns.Inc()
}

// RecordRunFinished counts a finished run by status.
func (m *Metrics) RecordRunFinished(status string) {
	if m.registry == nil {
		return
	}
	m.runsFinished.WithLabelValues(status).Inc()
	m.activeRuns.Dec()
}

// RecordPassCompleted counts a completed pass and observes its duration.
func (m *Metrics) RecordPassCompleted(script string, elapsed time.Duration) {
	if m.registry == nil {
		return
	}
	m.passesCompleted.WithLabelValues(script).Inc()
	m.passDuration.WithLabelValues(script).Observe(elapsed.Seconds())
}

// RecordEmission counts one snapshot delivered to a sink.
func (m *Metrics) RecordEmission(script string) {
	if m.registry == nil {
		return
	}
	m.emissions.WithLabelValues(script).Inc()
}

// RecordError counts an engine error by class.
func (m *Metrics) RecordError(class string) {
	if m.registry == nil {
		return
	}
	m.errorsByClass.WithLabelValues(class).Inc()
}

// Registry returns the registry the collectors live on, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint on ListenAddress until ctx is done.
// It returns immediately when metrics are disabled or no address is set.
func (m *Metrics) Serve(ctx context.Context, logger zerolog.Logger) error {
	if m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("address", m.config.ListenAddress).Msg("Metrics server failed")
		}
	}()

	logger.Info().Str("address", m.config.ListenAddress).Str("path", path).Msg("Serving metrics")
	return nil
}
