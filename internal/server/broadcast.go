package server

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/snarehq/snare/internal/model"
)

const subscriberBuffer = 1024

// Broadcaster fans the live event stream out to dashboard clients.
// Each subscriber gets its own buffered channel; a slow client drops
// events rather than stalling the pipeline. It doubles as a sink so the
// processor can drive it like any other consumer.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers []chan model.Tagged
	dropped     int64
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broadcaster{logger: logger}
}

// Subscribe returns a buffered channel that receives every published
// event. Multiple consumers can subscribe; each gets a copy.
func (b *Broadcaster) Subscribe() <-chan model.Tagged {
	ch := make(chan model.Tagged, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Dropped returns the total number of events dropped for slow clients.
func (b *Broadcaster) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Publish sends an item to all subscribers, dropping per subscriber
// when its buffer is full.
func (b *Broadcaster) Publish(item model.Tagged) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- item:
		default:
			b.dropped++
		}
	}
}

// Open implements sink.Sink.
func (b *Broadcaster) Open(ctx context.Context) error { return nil }

// Handle implements sink.Sink by publishing the event.
func (b *Broadcaster) Handle(source string, ev model.Event) error {
	b.Publish(model.Tagged{Source: source, Event: ev})
	return nil
}

// Close implements sink.Sink by closing every subscriber channel.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
	return nil
}
