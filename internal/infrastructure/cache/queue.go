package cache

import (
	"container/heap"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

// task is one scheduled analysis. Duplicate requests for the same fingerprint
// coalesce onto a single task; waiters block on done.
type task struct {
	fingerprint string
	identity    string
	priority    domain.Priority
	seq         uint64
	index       int
	running     bool

	done  chan struct{}
	entry *domain.CacheEntry
	err   error
}

// taskHeap orders by priority class first (interactive ahead of prefetch),
// FIFO within a class.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// promote raises a queued task to a higher priority class.
func (h *taskHeap) promote(t *task, priority domain.Priority) {
	if t.running || priority >= t.priority {
		return
	}
	t.priority = priority
	heap.Fix(h, t.index)
}
