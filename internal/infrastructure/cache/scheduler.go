// Package cache provides the prioritized, persistent analysis scheduler: a
// bounded worker pool in front of the extraction+classification pipeline,
// keyed by content fingerprint so interactive requests are served instantly
// once computed and never blocked behind the prefetch backlog.
package cache

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkuhn/sortmeister/internal/core/domain"
	"github.com/mkuhn/sortmeister/internal/core/ports"
)

// ComputeFunc runs the extraction+classification pipeline for one document.
type ComputeFunc func(ctx context.Context, identity string) (*domain.CacheEntry, error)

// Metrics receives scheduler lifecycle events. Implementations must be
// goroutine-safe; a nil Metrics disables instrumentation.
type Metrics interface {
	TaskEnqueued(priority string)
	TaskCompleted(priority string, duration time.Duration, err error)
}

type Scheduler struct {
	compute   ComputeFunc
	extractor ports.FeatureExtractor
	store     ports.CacheStore
	metrics   Metrics
	workers   int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    taskHeap
	inflight map[string]*task
	seq      uint64
	stopped  bool
}

func NewScheduler(compute ComputeFunc, extractor ports.FeatureExtractor, store ports.CacheStore, workers int, metrics Metrics) *Scheduler {
	if workers <= 0 {
		workers = 2
	}
	s := &Scheduler{
		compute:   compute,
		extractor: extractor,
		store:     store,
		metrics:   metrics,
		workers:   workers,
		inflight:  make(map[string]*task),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Run executes the worker pool until ctx is cancelled. Computations run
// under the pool's context, not a caller's: an interactive caller that stops
// waiting does not cancel a computation prefetch still wants.
func (s *Scheduler) Run(ctx context.Context) error {
	g, runCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			s.workerLoop(runCtx)
			return nil
		})
	}
	<-runCtx.Done()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cond.Broadcast()
	return g.Wait()
}

// GetSuggestions serves from the persistent cache when the stored entry is
// ready for the current content fingerprint; otherwise it schedules
// computation. Interactive requests block on that single fingerprint until
// ready or ctx expires, in which case an explicitly incomplete pending entry
// is returned. Lower priorities return the pending entry immediately.
func (s *Scheduler) GetSuggestions(ctx context.Context, identity string, priority domain.Priority) (*domain.CacheEntry, error) {
	fingerprint, err := s.extractor.Fingerprint(ctx, identity)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fingerprint document", err)
	}

	if entry, err := s.store.Get(ctx, fingerprint); err != nil {
		slog.Warn("cache_lookup_failed", "fingerprint", fingerprint, "error", err)
	} else if entry != nil && entry.State == domain.AnalysisReady {
		if err := s.store.TouchAccess(ctx, fingerprint, time.Now().UTC()); err != nil {
			slog.Warn("cache_touch_failed", "fingerprint", fingerprint, "error", err)
		}
		return entry, nil
	}

	t := s.enqueue(identity, fingerprint, priority)

	if priority != domain.PriorityInteractive {
		return pendingEntry(fingerprint, priority), nil
	}

	select {
	case <-t.done:
		if t.err != nil {
			return failedEntry(fingerprint, priority, t.err), nil
		}
		return t.entry, nil
	case <-ctx.Done():
		// The computation stays scheduled; only this wait is abandoned.
		return pendingEntry(fingerprint, priority), nil
	}
}

// Invalidate removes the persisted entry so the next request recomputes.
// An in-flight computation is left alone; its result simply lands under the
// fingerprint again.
func (s *Scheduler) Invalidate(ctx context.Context, identity string) error {
	fingerprint, err := s.extractor.Fingerprint(ctx, identity)
	if err != nil {
		return domain.WrapError(domain.ErrDocumentNotFound, "fingerprint document", err)
	}
	if err := s.store.Delete(ctx, fingerprint); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Prefetch schedules background analysis for a batch of documents.
func (s *Scheduler) Prefetch(ctx context.Context, identities []string, priority domain.Priority) {
	if priority == domain.PriorityInteractive {
		priority = domain.PriorityPrefetchNear
	}
	for _, identity := range identities {
		if _, err := s.GetSuggestions(ctx, identity, priority); err != nil {
			slog.Warn("prefetch_skip", "identity", identity, "error", err)
		}
	}
}

func (s *Scheduler) enqueue(identity, fingerprint string, priority domain.Priority) *task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.inflight[fingerprint]; ok {
		s.queue.promote(existing, priority)
		s.cond.Signal()
		return existing
	}

	s.seq++
	t := &task{
		fingerprint: fingerprint,
		identity:    identity,
		priority:    priority,
		seq:         s.seq,
		done:        make(chan struct{}),
	}
	s.inflight[fingerprint] = t
	heap.Push(&s.queue, t)
	if s.metrics != nil {
		s.metrics.TaskEnqueued(priority.String())
	}
	s.cond.Signal()
	return t
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		t := s.next()
		if t == nil {
			return
		}
		s.execute(ctx, t)
	}
}

func (s *Scheduler) next() *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.stopped {
		s.cond.Wait()
	}
	if s.stopped {
		return nil
	}
	t := heap.Pop(&s.queue).(*task)
	t.running = true
	return t
}

func (s *Scheduler) execute(ctx context.Context, t *task) {
	start := time.Now()
	entry, err := s.compute(ctx, t.identity)
	if err != nil {
		slog.Error("analysis_failed", "identity", t.identity, "fingerprint", t.fingerprint, "error", err)
		entry = failedEntry(t.fingerprint, t.priority, err)
	} else {
		entry.Priority = t.priority
	}

	if putErr := s.store.Put(ctx, entry); putErr != nil {
		slog.Warn("cache_persist_failed", "fingerprint", t.fingerprint, "error", putErr)
	}

	s.mu.Lock()
	delete(s.inflight, t.fingerprint)
	s.mu.Unlock()

	t.entry = entry
	t.err = err
	close(t.done)

	if s.metrics != nil {
		s.metrics.TaskCompleted(t.priority.String(), time.Since(start), err)
	}
}

func pendingEntry(fingerprint string, priority domain.Priority) *domain.CacheEntry {
	return &domain.CacheEntry{
		Fingerprint: fingerprint,
		State:       domain.AnalysisPending,
		Priority:    priority,
	}
}

func failedEntry(fingerprint string, priority domain.Priority, err error) *domain.CacheEntry {
	now := time.Now().UTC()
	return &domain.CacheEntry{
		Fingerprint:  fingerprint,
		State:        domain.AnalysisFailed,
		Priority:     priority,
		Error:        err.Error(),
		ComputedAt:   now,
		LastAccessed: now,
	}
}
