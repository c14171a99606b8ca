// Package sink decouples detecting an exception from doing something
// about it. Sinks are driven serially by the processor: Open once,
// Handle per event, Close exactly once on every exit path.
package sink

import (
	"context"

	"github.com/snarehq/snare/internal/model"
)

// Sink consumes (source, event) pairs within a scoped lifetime.
type Sink interface {
	// Open acquires the sink's resources. Called once before any Handle.
	Open(ctx context.Context) error
	// Handle delivers one event. Errors are reported to the caller but
	// must leave the sink usable for subsequent events.
	Handle(source string, ev model.Event) error
	// Close releases resources. Called exactly once, even when Handle
	// returned errors or the run was cancelled.
	Close() error
}

// record is the file sink's serialized form of one delivered event.
type record struct {
	Source string      `json:"source"`
	Event  model.Event `json:"event"`
}
