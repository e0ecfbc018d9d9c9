package classify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

// --- Mocks ---

// mockStore enforces the same status guards as the real repositories.
type mockStore struct {
	mu       sync.Mutex
	statuses map[string]domain.Status
	results  map[string]domain.ClassificationResult
	getErr   error
}

func newMockStore(ids ...string) *mockStore {
	m := &mockStore{
		statuses: make(map[string]domain.Status),
		results:  make(map[string]domain.ClassificationResult),
	}
	for _, id := range ids {
		m.statuses[id] = domain.StatusPending
	}
	return m
}

func (m *mockStore) GetByID(_ context.Context, id string) (*domain.Asset, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return nil, domain.ErrAssetNotFound
	}
	return &domain.Asset{ID: id, MimeType: "image/jpeg", Status: m.statuses[id]}, nil
}

func (m *mockStore) transition(id string, from, to domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses[id] != from {
		return domain.ErrInvalidTransition
	}
	m.statuses[id] = to
	return nil
}

func (m *mockStore) BeginProcessing(_ context.Context, id string) error {
	return m.transition(id, domain.StatusPending, domain.StatusProcessing)
}

func (m *mockStore) CompleteClassification(_ context.Context, id string, res domain.ClassificationResult) error {
	if err := m.transition(id, domain.StatusProcessing, domain.StatusCompleted); err != nil {
		return err
	}
	m.mu.Lock()
	m.results[id] = res
	m.mu.Unlock()
	return nil
}

func (m *mockStore) FailClassification(_ context.Context, id string) error {
	return m.transition(id, domain.StatusProcessing, domain.StatusFailed)
}

func (m *mockStore) ResetFailed(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, st := range m.statuses {
		if st == domain.StatusFailed {
			m.statuses[id] = domain.StatusPending
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockStore) status(id string) domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id]
}

type mockClassifier struct {
	mu     sync.Mutex
	result domain.ClassificationResult
	err    error
	block  time.Duration
	calls  int
}

func (m *mockClassifier) Classify(ctx context.Context, _ *domain.Asset) (domain.ClassificationResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.block > 0 {
		select {
		case <-ctx.Done():
			return domain.ClassificationResult{}, ctx.Err()
		case <-time.After(m.block):
		}
	}
	return m.result, m.err
}

func (m *mockClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newService(t *testing.T, store *mockStore, classifier *mockClassifier) *Service {
	t.Helper()
	svc, err := New(store, classifier, Config{Workers: 2, Timeout: 100 * time.Millisecond}, zap.NewNop())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

// --- Tests ---

func TestProcess_CompletesAndPersistsResult(t *testing.T) {
	store := newMockStore("a1")
	classifier := &mockClassifier{result: domain.ClassificationResult{
		Description: "grey sofa",
		Tags:        []string{"sofa"},
		Confidence:  0.9,
	}}
	svc := newService(t, store, classifier)

	svc.process(context.Background(), "a1")

	if got := store.status("a1"); got != domain.StatusCompleted {
		t.Errorf("expected completed, got %q", got)
	}
	if store.results["a1"].Description != "grey sofa" {
		t.Errorf("result not persisted: %+v", store.results["a1"])
	}
}

func TestProcess_FailureMarksAssetFailed(t *testing.T) {
	store := newMockStore("a1")
	classifier := &mockClassifier{
		err: domain.NewClassificationError(domain.FailureUnsupportedFormat, false, "bad mime"),
	}
	svc := newService(t, store, classifier)

	svc.process(context.Background(), "a1")

	if got := store.status("a1"); got != domain.StatusFailed {
		t.Errorf("expected failed, got %q", got)
	}
}

func TestProcess_TimeoutFailsAsset(t *testing.T) {
	store := newMockStore("a1")
	classifier := &mockClassifier{block: time.Second}
	svc := newService(t, store, classifier)

	svc.process(context.Background(), "a1")

	if got := store.status("a1"); got != domain.StatusFailed {
		t.Errorf("expected failed after timeout, got %q", got)
	}
}

func TestProcess_SkipsNonPendingAsset(t *testing.T) {
	store := newMockStore("a1")
	store.statuses["a1"] = domain.StatusProcessing
	classifier := &mockClassifier{}
	svc := newService(t, store, classifier)

	svc.process(context.Background(), "a1")

	if classifier.callCount() != 0 {
		t.Error("a claimed asset must not be classified twice")
	}
	if got := store.status("a1"); got != domain.StatusProcessing {
		t.Errorf("status must be untouched, got %q", got)
	}
}

func TestProcess_LoadErrorFailsAsset(t *testing.T) {
	store := newMockStore("a1")
	store.getErr = errors.New("db down")
	svc := newService(t, store, &mockClassifier{})

	svc.process(context.Background(), "a1")

	if got := store.status("a1"); got != domain.StatusFailed {
		t.Errorf("expected failed, got %q", got)
	}
}

func TestEnqueue_RunsAsync(t *testing.T) {
	store := newMockStore("a1")
	classifier := &mockClassifier{result: domain.ClassificationResult{Description: "d"}}
	svc := newService(t, store, classifier)

	if err := svc.Enqueue("a1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for store.status("a1") != domain.StatusCompleted {
		select {
		case <-deadline:
			t.Fatal("asset never completed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRetryFailed_ResetsAndReenqueues(t *testing.T) {
	store := newMockStore("a1", "a2", "a3")
	store.statuses["a1"] = domain.StatusFailed
	store.statuses["a2"] = domain.StatusFailed
	store.statuses["a3"] = domain.StatusCompleted
	classifier := &mockClassifier{result: domain.ClassificationResult{Description: "d"}}
	svc := newService(t, store, classifier)

	n, err := svc.RetryFailed(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 assets reset, got %d", n)
	}

	deadline := time.After(2 * time.Second)
	for store.status("a1") != domain.StatusCompleted || store.status("a2") != domain.StatusCompleted {
		select {
		case <-deadline:
			t.Fatalf("retried assets never completed: a1=%s a2=%s",
				store.status("a1"), store.status("a2"))
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := store.status("a3"); got != domain.StatusCompleted {
		t.Errorf("completed asset must be untouched, got %q", got)
	}
}

func TestConcurrentRetriesAreHarmless(t *testing.T) {
	store := newMockStore("a1")
	classifier := &mockClassifier{result: domain.ClassificationResult{Description: "d"}}
	svc := newService(t, store, classifier)

	// both workers race for the same pending asset; the status guard
	// lets exactly one claim it
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.process(context.Background(), "a1")
		}()
	}
	wg.Wait()

	if got := store.status("a1"); got != domain.StatusCompleted {
		t.Errorf("expected completed, got %q", got)
	}
	if classifier.callCount() != 1 {
		t.Errorf("expected exactly one inference call, got %d", classifier.callCount())
	}
}
