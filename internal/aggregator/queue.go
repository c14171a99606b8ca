package aggregator

import (
	"sync"
	"time"

	"github.com/snarehq/snare/internal/model"
)

// queue is an unbounded FIFO delivery queue, safe for many concurrent
// producers and one consumer.
type queue struct {
	mu     sync.Mutex
	items  []model.Tagged
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

// Push appends an item and wakes the consumer if it is waiting.
func (q *queue) Push(item model.Tagged) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop removes the oldest item without waiting.
func (q *queue) Pop() (model.Tagged, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.Tagged{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// PopWait removes the oldest item, waiting up to d for one to arrive.
func (q *queue) PopWait(d time.Duration) (model.Tagged, bool) {
	deadline := time.NewTimer(d)
	defer deadline.Stop()

	for {
		if item, ok := q.Pop(); ok {
			return item, true
		}
		select {
		case <-q.signal:
		case <-deadline.C:
			return q.Pop()
		}
	}
}

// Len returns the number of queued items.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
