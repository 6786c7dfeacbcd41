package raggo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// promcollector subpackage provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordQuery is called after each query.
	// duration is the total time taken, err is nil if successful.
	RecordQuery(duration time.Duration, err error)

	// RecordStage is called after each pipeline stage of a query.
	RecordStage(stage Stage, duration time.Duration, err error)

	// RecordIndexChunks is called after each ingestion batch.
	// count is the number of chunks attempted.
	RecordIndexChunks(count int, duration time.Duration, err error)

	// RecordDelete is called after each tombstone operation.
	RecordDelete(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordQuery(time.Duration, error)            {}
func (NoopMetricsCollector) RecordStage(Stage, time.Duration, error)     {}
func (NoopMetricsCollector) RecordIndexChunks(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryTotalNanos  atomic.Int64
	StageCount       atomic.Int64
	StageErrors      atomic.Int64
	IndexBatchCount  atomic.Int64
	IndexChunkCount  atomic.Int64
	IndexBatchErrors atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordStage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStage(_ Stage, _ time.Duration, err error) {
	b.StageCount.Add(1)
	if err != nil {
		b.StageErrors.Add(1)
	}
}

// RecordIndexChunks implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexChunks(count int, _ time.Duration, err error) {
	b.IndexBatchCount.Add(1)
	b.IndexChunkCount.Add(int64(count))
	if err != nil {
		b.IndexBatchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		QueryCount:       b.QueryCount.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryAvgNanos:    b.getAvgQueryNanos(),
		StageCount:       b.StageCount.Load(),
		StageErrors:      b.StageErrors.Load(),
		IndexBatchCount:  b.IndexBatchCount.Load(),
		IndexChunkCount:  b.IndexChunkCount.Load(),
		IndexBatchErrors: b.IndexBatchErrors.Load(),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	QueryCount       int64
	QueryErrors      int64
	QueryAvgNanos    int64
	StageCount       int64
	StageErrors      int64
	IndexBatchCount  int64
	IndexChunkCount  int64
	IndexBatchErrors int64
	DeleteCount      int64
	DeleteErrors     int64
}
