package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	touched int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]*domain.CacheEntry{}}
}

func (s *memoryStore) Get(_ context.Context, fingerprint string) (*domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[fingerprint], nil
}

func (s *memoryStore) Put(_ context.Context, entry *domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Fingerprint] = entry
	return nil
}

func (s *memoryStore) Delete(_ context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, fingerprint)
	return nil
}

func (s *memoryStore) TouchAccess(_ context.Context, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched++
	return nil
}

// identityExtractor fingerprints each document as its own identity string,
// which keeps test expectations readable.
type identityExtractor struct{}

func (identityExtractor) Extract(_ context.Context, identity string) (domain.DocumentFeatures, error) {
	return domain.DocumentFeatures{Fingerprint: identity, Filename: identity}, nil
}

func (identityExtractor) Fingerprint(_ context.Context, identity string) (string, error) {
	return identity, nil
}

func readyCompute(delay time.Duration) ComputeFunc {
	return func(ctx context.Context, identity string) (*domain.CacheEntry, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		now := time.Now().UTC()
		return &domain.CacheEntry{
			Fingerprint:  identity,
			State:        domain.AnalysisReady,
			ComputedAt:   now,
			LastAccessed: now,
		}, nil
	}
}

func startScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestInteractiveRequestBlocksUntilReady(t *testing.T) {
	store := newMemoryStore()
	s := NewScheduler(readyCompute(0), identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	entry, err := s.GetSuggestions(context.Background(), "doc-1", domain.PriorityInteractive)
	if err != nil {
		t.Fatalf("get suggestions: %v", err)
	}
	if entry.State != domain.AnalysisReady || entry.Partial() {
		t.Fatalf("got %+v", entry)
	}
	if got, _ := store.Get(context.Background(), "doc-1"); got == nil {
		t.Fatal("ready entry must be persisted")
	}
}

func TestBackgroundRequestReturnsPendingImmediately(t *testing.T) {
	store := newMemoryStore()
	s := NewScheduler(readyCompute(50*time.Millisecond), identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	entry, err := s.GetSuggestions(context.Background(), "doc-1", domain.PriorityBackground)
	if err != nil {
		t.Fatalf("get suggestions: %v", err)
	}
	if entry.State != domain.AnalysisPending || !entry.Partial() {
		t.Fatalf("background request must not block, got %+v", entry)
	}
}

func TestCacheHitSkipsRecomputation(t *testing.T) {
	store := newMemoryStore()
	var computations atomic.Int32
	compute := func(ctx context.Context, identity string) (*domain.CacheEntry, error) {
		computations.Add(1)
		return readyCompute(0)(ctx, identity)
	}
	s := NewScheduler(compute, identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	for i := 0; i < 3; i++ {
		if _, err := s.GetSuggestions(context.Background(), "doc-1", domain.PriorityInteractive); err != nil {
			t.Fatalf("get suggestions: %v", err)
		}
	}
	if got := computations.Load(); got != 1 {
		t.Fatalf("expected a single computation, got %d", got)
	}
	if store.touched != 2 {
		t.Fatalf("cache hits must touch the access time, got %d", store.touched)
	}
}

func TestDuplicateRequestsCoalesce(t *testing.T) {
	store := newMemoryStore()
	release := make(chan struct{})
	var computations atomic.Int32
	compute := func(_ context.Context, identity string) (*domain.CacheEntry, error) {
		computations.Add(1)
		<-release
		return &domain.CacheEntry{Fingerprint: identity, State: domain.AnalysisReady}, nil
	}
	s := NewScheduler(compute, identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.GetSuggestions(context.Background(), "doc-1", domain.PriorityInteractive); err != nil {
				t.Errorf("get suggestions: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := computations.Load(); got != 1 {
		t.Fatalf("duplicate requests must share one computation, got %d", got)
	}
}

func TestInteractiveJumpsThePrefetchBacklog(t *testing.T) {
	store := newMemoryStore()
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string
	compute := func(_ context.Context, identity string) (*domain.CacheEntry, error) {
		<-release
		mu.Lock()
		order = append(order, identity)
		mu.Unlock()
		return &domain.CacheEntry{Fingerprint: identity, State: domain.AnalysisReady}, nil
	}
	s := NewScheduler(compute, identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	// The single worker is held on the first task; the rest queue up.
	if _, err := s.GetSuggestions(context.Background(), "busy", domain.PriorityBackground); err != nil {
		t.Fatalf("get suggestions: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	for _, id := range []string{"bg-1", "bg-2"} {
		if _, err := s.GetSuggestions(context.Background(), id, domain.PriorityBackground); err != nil {
			t.Fatalf("get suggestions: %v", err)
		}
	}

	waitDone := make(chan struct{})
	go func() {
		defer close(waitDone)
		_, _ = s.GetSuggestions(context.Background(), "urgent", domain.PriorityInteractive)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-waitDone

	mu.Lock()
	defer mu.Unlock()
	if len(order) < 2 || order[0] != "busy" || order[1] != "urgent" {
		t.Fatalf("interactive task must run before the backlog, order=%v", order)
	}
}

func TestPromoteRaisesQueuedPriority(t *testing.T) {
	store := newMemoryStore()
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string
	compute := func(_ context.Context, identity string) (*domain.CacheEntry, error) {
		<-release
		mu.Lock()
		order = append(order, identity)
		mu.Unlock()
		return &domain.CacheEntry{Fingerprint: identity, State: domain.AnalysisReady}, nil
	}
	s := NewScheduler(compute, identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	if _, err := s.GetSuggestions(context.Background(), "busy", domain.PriorityBackground); err != nil {
		t.Fatalf("get suggestions: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	for _, id := range []string{"bg-1", "bg-2"} {
		if _, err := s.GetSuggestions(context.Background(), id, domain.PriorityBackground); err != nil {
			t.Fatalf("get suggestions: %v", err)
		}
	}

	// A second request for the queued bg-2 at interactive priority reorders it.
	waitDone := make(chan struct{})
	go func() {
		defer close(waitDone)
		_, _ = s.GetSuggestions(context.Background(), "bg-2", domain.PriorityInteractive)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-waitDone

	mu.Lock()
	defer mu.Unlock()
	if len(order) < 2 || order[1] != "bg-2" {
		t.Fatalf("promoted task must overtake bg-1, order=%v", order)
	}
}

func TestAbandonedInteractiveWaitReturnsPending(t *testing.T) {
	store := newMemoryStore()
	s := NewScheduler(readyCompute(200*time.Millisecond), identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	entry, err := s.GetSuggestions(ctx, "slow-doc", domain.PriorityInteractive)
	if err != nil {
		t.Fatalf("get suggestions: %v", err)
	}
	if entry.State != domain.AnalysisPending || !entry.Partial() {
		t.Fatalf("abandoned wait must return an incomplete entry, got %+v", entry)
	}

	// The computation keeps running and lands in the store.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if got, _ := store.Get(context.Background(), "slow-doc"); got != nil && got.State == domain.AnalysisReady {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("abandoned computation never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFailedComputationIsPersistedAndReported(t *testing.T) {
	store := newMemoryStore()
	compute := func(_ context.Context, _ string) (*domain.CacheEntry, error) {
		return nil, errors.New("ocr backend down")
	}
	s := NewScheduler(compute, identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	entry, err := s.GetSuggestions(context.Background(), "doc-1", domain.PriorityInteractive)
	if err != nil {
		t.Fatalf("get suggestions: %v", err)
	}
	if entry.State != domain.AnalysisFailed || entry.Error == "" {
		t.Fatalf("got %+v", entry)
	}
	stored, _ := store.Get(context.Background(), "doc-1")
	if stored == nil || stored.State != domain.AnalysisFailed {
		t.Fatalf("failed entry must be persisted, got %+v", stored)
	}
}

func TestInvalidateForcesRecomputation(t *testing.T) {
	store := newMemoryStore()
	var computations atomic.Int32
	compute := func(ctx context.Context, identity string) (*domain.CacheEntry, error) {
		computations.Add(1)
		return readyCompute(0)(ctx, identity)
	}
	s := NewScheduler(compute, identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	if _, err := s.GetSuggestions(context.Background(), "doc-1", domain.PriorityInteractive); err != nil {
		t.Fatalf("get suggestions: %v", err)
	}
	if err := s.Invalidate(context.Background(), "doc-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := s.GetSuggestions(context.Background(), "doc-1", domain.PriorityInteractive); err != nil {
		t.Fatalf("get suggestions: %v", err)
	}
	if got := computations.Load(); got != 2 {
		t.Fatalf("invalidation must force a recomputation, got %d", got)
	}
}

func TestPrefetchNeverBlocks(t *testing.T) {
	store := newMemoryStore()
	s := NewScheduler(readyCompute(100*time.Millisecond), identityExtractor{}, store, 1, nil)
	startScheduler(t, s)

	start := time.Now()
	s.Prefetch(context.Background(), []string{"a", "b", "c"}, domain.PriorityInteractive)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("prefetch must enqueue without waiting, took %v", elapsed)
	}
}
