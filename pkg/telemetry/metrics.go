package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for the compatibility runtime.
type Metrics struct {
	config MetricsConfig

	// Subprocess metrics
	commandsExecuted *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	commandRetries   *prometheus.CounterVec

	// Content install metrics
	installs *prometheus.CounterVec

	// Probe cache metrics
	probeCacheHits   prometheus.Counter
	probeCacheMisses prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		commandsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_executed_total",
				Help:      "Total number of engine commands executed",
			},
			[]string{"binary", "status"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of engine command execution in seconds",
				Buckets:   buckets,
			},
			[]string{"binary"},
		),
		commandRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "command_retries_total",
				Help:      "Total number of command retries after failures",
			},
			[]string{"binary"},
		),
		installs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "content_installs_total",
				Help:      "Total number of collection and role installs",
			},
			[]string{"kind", "status"},
		),
		probeCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_cache_hits_total",
				Help:      "Total number of subprocess probes served from the cache",
			},
		),
		probeCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_cache_misses_total",
				Help:      "Total number of subprocess probes that missed the cache",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.commandsExecuted,
		m.commandDuration,
		m.commandRetries,
		m.installs,
		m.probeCacheHits,
		m.probeCacheMisses,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry exposes the underlying registry so callers can serve or gather
// the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCommand records one executed engine command.
func (m *Metrics) RecordCommand(binary, status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.commandsExecuted.WithLabelValues(binary, status).Inc()
	m.commandDuration.WithLabelValues(binary).Observe(duration.Seconds())
}

// RecordRetry records a retried command execution.
func (m *Metrics) RecordRetry(binary string) {
	if m.registry == nil {
		return
	}
	m.commandRetries.WithLabelValues(binary).Inc()
}

// RecordInstall records a content install attempt.
func (m *Metrics) RecordInstall(kind, status string) {
	if m.registry == nil {
		return
	}
	m.installs.WithLabelValues(kind, status).Inc()
}

// RecordProbeCacheHit records a probe served from the cache store.
func (m *Metrics) RecordProbeCacheHit() {
	if m.registry == nil {
		return
	}
	m.probeCacheHits.Inc()
}

// RecordProbeCacheMiss records a probe that had to execute.
func (m *Metrics) RecordProbeCacheMiss() {
	if m.registry == nil {
		return
	}
	m.probeCacheMisses.Inc()
}
