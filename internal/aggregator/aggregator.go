package aggregator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/snarehq/snare/internal/model"
	"github.com/snarehq/snare/internal/monitor"
)

// pollInterval is the consumer pump's wait-for-next-item timeout. It is
// a fixed internal value, independent of any source's configured
// interval.
const pollInterval = 100 * time.Millisecond

// epsWindow is the sliding window used for the events-per-second stat.
const epsWindow = 5 * time.Second

// Stats is a point-in-time snapshot of aggregate throughput.
type Stats struct {
	Uptime      string           `json:"uptime"`
	TotalEvents int64            `json:"total_events"`
	EPS         float64          `json:"eps"`
	BySeverity  map[string]int64 `json:"by_severity"`
	BySource    map[string]int64 `json:"by_source"`
	Queued      int              `json:"queued"`
	Sources     int              `json:"sources"`
}

// Aggregator runs many source monitors concurrently and merges their
// events into one arrival-ordered sequence of (source, event) pairs.
// One source exhausting its retries stops only that source's
// contribution; the others keep flowing.
type Aggregator struct {
	monitors []*monitor.Monitor
	q        *queue
	out      chan model.Tagged
	logger   *slog.Logger

	cancel      context.CancelFunc
	workersDone chan struct{}

	mu         sync.RWMutex
	startTime  time.Time
	total      int64
	bySeverity map[string]int64
	bySource   map[string]int64
	window     []time.Time
}

// New creates an Aggregator over the given monitors.
func New(monitors []*monitor.Monitor, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{
		monitors:    monitors,
		q:           newQueue(),
		out:         make(chan model.Tagged, 64),
		logger:      logger,
		workersDone: make(chan struct{}),
		startTime:   time.Now(),
		bySeverity:  make(map[string]int64),
		bySource:    make(map[string]int64),
	}
}

// Events returns the combined sequence. It is closed once every worker
// has finished and the queue has been drained.
func (a *Aggregator) Events() <-chan model.Tagged {
	return a.out
}

// Start launches one worker per source and runs the consumer pump.
// It blocks until the pump ends: either all sources completed on their
// own, or Stop/context cancellation shut them down.
func (a *Aggregator) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	var wg sync.WaitGroup
	for _, m := range a.monitors {
		wg.Add(1)
		go func(m *monitor.Monitor) {
			defer wg.Done()
			a.runWorker(ctx, m)
		}(m)
	}
	go func() {
		wg.Wait()
		close(a.workersDone)
	}()

	a.pump()
}

// Stop requests cooperative shutdown: every worker observes the
// cancellation at its next check point, and the consumer sequence ends
// once the queue is drained.
func (a *Aggregator) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

// runWorker drives one monitor and pushes everything it produces into
// the shared queue, tagged with the source identifier.
func (a *Aggregator) runWorker(ctx context.Context, m *monitor.Monitor) {
	go m.Start(ctx)

	for ev := range m.Events() {
		a.q.Push(model.Tagged{Source: m.ID(), Event: ev})
	}
	a.logger.Info("source completed", "source", m.ID())
}

// pump moves items from the queue to the consumer channel. On each wait
// timeout it checks whether all workers have finished; if so it drains
// the queue and ends the sequence.
func (a *Aggregator) pump() {
	defer close(a.out)

	for {
		item, ok := a.q.PopWait(pollInterval)
		if ok {
			a.deliver(item)
			continue
		}

		select {
		case <-a.workersDone:
			for {
				item, ok := a.q.Pop()
				if !ok {
					return
				}
				a.deliver(item)
			}
		default:
		}
	}
}

func (a *Aggregator) deliver(item model.Tagged) {
	a.record(item)
	a.out <- item
}

// record updates the throughput stats.
func (a *Aggregator) record(item model.Tagged) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.bySeverity[string(item.Event.Level())]++
	a.bySource[item.Source]++

	now := time.Now()
	a.window = append(a.window, now)
	cutoff := now.Add(-epsWindow)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}

// Snapshot returns the current aggregate stats.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	bySeverity := make(map[string]int64, len(a.bySeverity))
	for k, v := range a.bySeverity {
		bySeverity[k] = v
	}
	bySource := make(map[string]int64, len(a.bySource))
	for k, v := range a.bySource {
		bySource[k] = v
	}

	cutoff := time.Now().Add(-epsWindow)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}

	return Stats{
		Uptime:      time.Since(a.startTime).Truncate(time.Second).String(),
		TotalEvents: a.total,
		EPS:         float64(recent) / epsWindow.Seconds(),
		BySeverity:  bySeverity,
		BySource:    bySource,
		Queued:      a.q.Len(),
		Sources:     len(a.monitors),
	}
}

// RetainedBySource collects every event retained by every monitor,
// keyed by source identifier, for bulk export.
func (a *Aggregator) RetainedBySource() map[string][]model.Event {
	out := make(map[string][]model.Event, len(a.monitors))
	for _, m := range a.monitors {
		out[m.ID()] = m.Retained()
	}
	return out
}
