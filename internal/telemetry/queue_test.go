package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

type fakeAudit struct {
	mu      sync.Mutex
	records []*domain.SearchRecord
	block   chan struct{}
	err     error
}

func (f *fakeAudit) Insert(_ context.Context, rec *domain.SearchRecord) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAudit) Recent(context.Context, string, int) ([]domain.SearchRecord, error) {
	return nil, nil
}

func (f *fakeAudit) Popular(context.Context, string, int) ([]domain.PopularQuery, error) {
	return nil, nil
}

func (f *fakeAudit) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func TestQueueFlushesOnClose(t *testing.T) {
	audit := &fakeAudit{}
	q := NewQueue(audit, 16, zap.NewNop())

	for i := 0; i < 5; i++ {
		q.Record(&domain.SearchRecord{ID: "r", UserID: "u1"})
	}
	q.Close()

	assert.Equal(t, 5, audit.count())
	assert.Zero(t, q.Dropped())
}

func TestQueueDropsWhenFull(t *testing.T) {
	audit := &fakeAudit{block: make(chan struct{})}
	q := NewQueue(audit, 1, zap.NewNop())

	// First record occupies the worker, second fills the buffer. The
	// rest have nowhere to go and must not block the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			q.Record(&domain.SearchRecord{ID: "r", UserID: "u1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	require.Positive(t, q.Dropped())
	close(audit.block)
	q.Close()

	assert.Equal(t, int64(10), int64(audit.count())+q.Dropped())
}

func TestQueueSwallowsInsertErrors(t *testing.T) {
	audit := &fakeAudit{err: errors.New("backend down")}
	q := NewQueue(audit, 4, zap.NewNop())

	q.Record(&domain.SearchRecord{ID: "r", UserID: "u1"})
	q.Close()

	assert.Zero(t, audit.count())
}

func TestRecordAfterCloseIsNoop(t *testing.T) {
	audit := &fakeAudit{}
	q := NewQueue(audit, 4, zap.NewNop())
	q.Close()

	q.Record(&domain.SearchRecord{ID: "r", UserID: "u1"})
	assert.Zero(t, audit.count())
}
