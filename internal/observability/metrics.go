// Package observability provides Prometheus metrics for the monitoring pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for analysis cycle operations
type Metrics struct {
	registry *prometheus.Registry

	// Analysis cycle metrics
	cyclesTotal      *prometheus.CounterVec
	cycleErrorsTotal *prometheus.CounterVec
	cycleDuration    prometheus.Histogram

	// Detection metrics
	detectionsTotal prometheus.Counter

	// Roster metrics
	rosterSizeGauge   prometheus.Gauge
	presentCountGauge prometheus.Gauge
}

// NewMetrics creates and registers new monitoring metrics
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *Metrics) initMetrics() error {
	m.cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classwatch_analysis_cycles_total",
			Help: "Total number of analysis cycles",
		},
		[]string{"status"}, // status: success, error, skipped
	)

	m.cycleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classwatch_analysis_cycle_errors_total",
			Help: "Total number of analysis cycle errors by category",
		},
		[]string{"category"},
	)

	m.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classwatch_analysis_cycle_duration_seconds",
			Help:    "Analysis cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	m.detectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "classwatch_detections_total",
			Help: "Total number of student detections returned by the recognition service",
		},
	)

	m.rosterSizeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "classwatch_roster_size",
			Help: "Number of enrolled students",
		},
	)

	m.presentCountGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "classwatch_present_students",
			Help: "Number of students currently classified as present",
		},
	)

	return nil
}

// Describe implements the prometheus.Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.cyclesTotal.Describe(ch)
	m.cycleErrorsTotal.Describe(ch)
	m.cycleDuration.Describe(ch)
	m.detectionsTotal.Describe(ch)
	m.rosterSizeGauge.Describe(ch)
	m.presentCountGauge.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.cyclesTotal.Collect(ch)
	m.cycleErrorsTotal.Collect(ch)
	m.cycleDuration.Collect(ch)
	m.detectionsTotal.Collect(ch)
	m.rosterSizeGauge.Collect(ch)
	m.presentCountGauge.Collect(ch)
}

// RecordCycle increments the cycle counter for the given status
func (m *Metrics) RecordCycle(status string) {
	m.cyclesTotal.WithLabelValues(status).Inc()
}

// RecordCycleError increments the cycle error counter for the given category
func (m *Metrics) RecordCycleError(category string) {
	m.cycleErrorsTotal.WithLabelValues(category).Inc()
}

// RecordCycleDuration records the duration of a completed cycle
func (m *Metrics) RecordCycleDuration(seconds float64) {
	m.cycleDuration.Observe(seconds)
}

// RecordDetections adds the number of detections from one cycle
func (m *Metrics) RecordDetections(count int) {
	m.detectionsTotal.Add(float64(count))
}

// UpdateRosterGauges updates the roster size and presence gauges
func (m *Metrics) UpdateRosterGauges(total, present int) {
	m.rosterSizeGauge.Set(float64(total))
	m.presentCountGauge.Set(float64(present))
}
