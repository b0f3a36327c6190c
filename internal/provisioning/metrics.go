package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics holds the counters of one run. Each Metrics has its own registry
// so runs and tests never share state.
type Metrics struct {
	Registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	launchTotal       *prometheus.CounterVec
	probeAttempts     *prometheus.CounterVec
}

// NewMetrics creates and registers the run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "facets",
				Subsystem: "executor",
				Name:      "operations_total",
				Help:      "Total number of executor operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "facets",
				Subsystem: "executor",
				Name:      "operation_duration_seconds",
				Help:      "Duration of executor operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"operation"},
		),
		launchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "facets",
				Subsystem: "launch",
				Name:      "servers_total",
				Help:      "Total number of servers taken through launch by result",
			},
			[]string{"cluster", "result"},
		),
		probeAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "facets",
				Subsystem: "probe",
				Name:      "attempts_total",
				Help:      "Total number of reachability probe attempts by outcome",
			},
			[]string{"result"},
		),
	}
	m.Registry.MustRegister(m.operationsTotal, m.operationDuration, m.launchTotal, m.probeAttempts)
	return m
}

// RecordOperation records one executor operation. A nil Metrics is a no-op.
func (m *Metrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, resultOf(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSkipped records an operation that had nothing to do.
func (m *Metrics) RecordSkipped(operation string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, ResultSkipped).Inc()
}

// RecordLaunch records the post-launch outcome of one server.
func (m *Metrics) RecordLaunch(cluster string, err error) {
	if m == nil {
		return
	}
	m.launchTotal.WithLabelValues(cluster, resultOf(err)).Inc()
}

// RecordProbe records one probe attempt outcome.
func (m *Metrics) RecordProbe(outcome string) {
	if m == nil {
		return
	}
	m.probeAttempts.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the metrics in text format for a node exporter
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
