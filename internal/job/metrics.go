package job

import "github.com/prometheus/client_golang/prometheus"

// serviceMetrics holds metrics related to the job service.
type serviceMetrics struct {
	active   prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newServiceMetrics() *serviceMetrics {
	const (
		namespace = "fsscompiler"
		subsystem = "job"
	)

	return &serviceMetrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active",
			Help:      "Number of jobs holding a job slot",
		}),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Number of compile requests by outcome and failure class",
		}, []string{"kind", "class"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Histogram of total job times",
			Buckets:   prometheus.ExponentialBuckets(1e-3, 5, 8),
		}, []string{"kind"}),
	}
}

// PrometheusCollectors returns the job service collectors.
func (m *serviceMetrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{m.active, m.requests, m.duration}
}
