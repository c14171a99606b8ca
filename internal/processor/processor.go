// Package processor ties an aggregated event sequence to one sink,
// managing the sink's scoped lifetime around the delivery loop.
package processor

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/snarehq/snare/internal/model"
	"github.com/snarehq/snare/internal/sink"
)

// Processor delivers every item of a sequence to a sink serially.
type Processor struct {
	sink   sink.Sink
	logger *slog.Logger
}

// New creates a Processor for the given sink (often a Composite).
func New(s sink.Sink, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{sink: s, logger: logger}
}

// Run opens the sink, delivers every item from the sequence, and closes
// the sink on every exit path, including cancellation. It returns the
// number of successfully handled items. A sink Open failure is a setup
// error: nothing is delivered and the sink is not closed.
func (p *Processor) Run(ctx context.Context, in <-chan model.Tagged) (int, error) {
	if err := p.sink.Open(ctx); err != nil {
		return 0, fmt.Errorf("processor: open sink: %w", err)
	}

	processed := 0
	defer func() {
		if err := p.sink.Close(); err != nil {
			p.logger.Warn("sink close failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return processed, nil
		case item, ok := <-in:
			if !ok {
				return processed, nil
			}
			if err := p.sink.Handle(item.Source, item.Event); err != nil {
				p.logger.Error("sink failed to handle event",
					"source", item.Source, "type", item.Event.Kind(), "error", err)
				continue
			}
			processed++
		}
	}
}
