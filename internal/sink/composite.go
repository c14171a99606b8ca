package sink

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/snarehq/snare/internal/model"
)

// Composite forwards every lifecycle and Handle call to an ordered list
// of children. A child failing Handle is caught and logged; the
// remaining children still receive the same event.
type Composite struct {
	children []Sink
	logger   *slog.Logger
}

// NewComposite builds a composite over the given sinks.
func NewComposite(logger *slog.Logger, children ...Sink) *Composite {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Composite{children: children, logger: logger}
}

// Open opens every child. Open errors are setup errors and are
// reported joined: a sink that cannot acquire its resources should stop
// the run before any event flows.
func (c *Composite) Open(ctx context.Context) error {
	var errs []error
	for _, child := range c.children {
		if err := child.Open(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handle delivers the event to every child in order. Child errors are
// logged, never propagated.
func (c *Composite) Handle(source string, ev model.Event) error {
	for _, child := range c.children {
		if err := child.Handle(source, ev); err != nil {
			c.logger.Error("sink failed to handle event", "source", source, "error", err)
		}
	}
	return nil
}

// Close closes every child, even when earlier ones fail.
func (c *Composite) Close() error {
	var errs []error
	for _, child := range c.children {
		if err := child.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
