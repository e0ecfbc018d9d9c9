// Package telemetry persists search activity off the request path. The
// queue is bounded and never blocks a caller: when it is full the record
// is dropped and counted.
package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/metrics"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

const insertTimeout = 5 * time.Second

// Queue buffers search records and flushes them to the audit log from a
// single background worker.
type Queue struct {
	records chan *domain.SearchRecord
	audit   storage.AuditRepository
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewQueue builds the queue and starts its flush worker.
func NewQueue(audit storage.AuditRepository, size int, logger *zap.Logger) *Queue {
	q := &Queue{
		records: make(chan *domain.SearchRecord, size),
		audit:   audit,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Record enqueues one search record. It returns immediately; a full
// queue drops the record.
func (q *Queue) Record(rec *domain.SearchRecord) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}

	select {
	case q.records <- rec:
	default:
		q.dropped.Add(1)
		metrics.TelemetryDroppedTotal.Inc()
		q.logger.Warn("search log queue full, dropping record",
			zap.String("user_id", rec.UserID))
	}
}

// Dropped reports how many records were discarded since startup.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops accepting records, drains the buffer and waits for the
// worker to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.records)
	q.mu.Unlock()

	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for rec := range q.records {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		if err := q.audit.Insert(ctx, rec); err != nil {
			// Telemetry failures never surface to searchers.
			q.logger.Warn("persist search record", zap.Error(err))
		}
		cancel()
	}
}
