// Package promcollector implements raggo.MetricsCollector on Prometheus.
//
// Register the collector's metrics with a registry and wire it into the
// engine:
//
//	collector := promcollector.New("raggo")
//	collector.MustRegister(prometheus.DefaultRegisterer)
//	engine, _ := raggo.New(384, raggo.WithMetricsCollector(collector))
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/raggo"
)

// Collector records engine metrics into Prometheus vectors, labelled by
// stage and outcome.
type Collector struct {
	queries     *prometheus.CounterVec
	queryTime   prometheus.Histogram
	stages      *prometheus.CounterVec
	stageTime   *prometheus.HistogramVec
	indexChunks prometheus.Counter
	indexErrors prometheus.Counter
	deletes     *prometheus.CounterVec
}

var _ raggo.MetricsCollector = (*Collector)(nil)

// New creates a collector with the given metric namespace.
func New(namespace string) *Collector {
	return &Collector{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries processed, by outcome.",
		}, []string{"outcome"}),
		queryTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_total",
			Help:      "Pipeline stage executions, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Per-stage latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		indexChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_chunks_total",
			Help:      "Chunks submitted for indexing.",
		}),
		indexErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_batch_errors_total",
			Help:      "Failed ingestion batches.",
		}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Tombstone operations, by outcome.",
		}, []string{"outcome"}),
	}
}

// MustRegister registers all metrics with the registerer, panicking on
// duplicate registration.
func (c *Collector) MustRegister(r prometheus.Registerer) {
	r.MustRegister(c.queries, c.queryTime, c.stages, c.stageTime, c.indexChunks, c.indexErrors, c.deletes)
}

// RecordQuery implements raggo.MetricsCollector.
func (c *Collector) RecordQuery(duration time.Duration, err error) {
	c.queries.WithLabelValues(outcome(err)).Inc()
	c.queryTime.Observe(duration.Seconds())
}

// RecordStage implements raggo.MetricsCollector.
func (c *Collector) RecordStage(stage raggo.Stage, duration time.Duration, err error) {
	c.stages.WithLabelValues(stage.String(), outcome(err)).Inc()
	c.stageTime.WithLabelValues(stage.String()).Observe(duration.Seconds())
}

// RecordIndexChunks implements raggo.MetricsCollector.
func (c *Collector) RecordIndexChunks(count int, _ time.Duration, err error) {
	c.indexChunks.Add(float64(count))
	if err != nil {
		c.indexErrors.Inc()
	}
}

// RecordDelete implements raggo.MetricsCollector.
func (c *Collector) RecordDelete(_ time.Duration, err error) {
	c.deletes.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
