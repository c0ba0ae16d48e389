// Package metrics exposes migration job metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "hana_migration"

// Collector is a prometheus.Collector for job and entry outcomes.
type Collector struct {
	jobsAccepted     prometheus.Counter
	jobsFinished     *prometheus.CounterVec
	jobsInFlight     prometheus.Gauge
	jobDuration      prometheus.Histogram
	entriesProcessed *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		jobsAccepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "jobs_accepted_total",
				Help:      "The number of migration jobs accepted at intake.",
			},
		),
		jobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "jobs_finished_total",
				Help:      "The number of migration jobs that reached a terminal status.",
			}, []string{"status", "reason"},
		),
		jobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "jobs_in_flight",
				Help:      "The number of migration jobs currently running.",
			},
		),
		jobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of a migration job run.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		entriesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "entries_processed_total",
				Help:      "Archive entries processed, by artifact kind and outcome.",
			}, []string{"kind", "outcome"},
		),
	}
}

func (c *Collector) JobAccepted() {
	c.jobsAccepted.Inc()
}

func (c *Collector) JobStarted() {
	c.jobsInFlight.Inc()
}

func (c *Collector) JobFinished(status, reason string, elapsed time.Duration) {
	c.jobsInFlight.Dec()
	c.jobsFinished.WithLabelValues(status, reason).Inc()
	c.jobDuration.Observe(elapsed.Seconds())
}

func (c *Collector) EntryProcessed(kind string, converted bool) {
	outcome := "converted"
	if !converted {
		outcome = "skipped"
	}
	c.entriesProcessed.WithLabelValues(kind, outcome).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.jobsAccepted.Describe(ch)
	c.jobsFinished.Describe(ch)
	c.jobsInFlight.Describe(ch)
	c.jobDuration.Describe(ch)
	c.entriesProcessed.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.jobsAccepted.Collect(ch)
	c.jobsFinished.Collect(ch)
	c.jobsInFlight.Collect(ch)
	c.jobDuration.Collect(ch)
	c.entriesProcessed.Collect(ch)
}
