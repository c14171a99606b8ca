package sink

import (
	"context"

	"github.com/snarehq/snare/internal/model"
)

// CallbackSink wraps a plain caller-supplied function. For callbacks
// that need cancellation awareness use NewContextCallbackSink; the
// capability split is resolved at registration time, not per call.
type CallbackSink struct {
	fn func(source string, ev model.Event) error
}

// NewCallbackSink registers a plain callback.
func NewCallbackSink(fn func(source string, ev model.Event) error) *CallbackSink {
	return &CallbackSink{fn: fn}
}

func (s *CallbackSink) Open(ctx context.Context) error { return nil }

func (s *CallbackSink) Handle(source string, ev model.Event) error {
	return s.fn(source, ev)
}

func (s *CallbackSink) Close() error { return nil }

// ContextCallbackSink wraps a context-aware callback. The context
// passed to Open is retained and handed to the callback on every event,
// so long-running callbacks can observe pipeline shutdown.
type ContextCallbackSink struct {
	fn  func(ctx context.Context, source string, ev model.Event) error
	ctx context.Context
}

// NewContextCallbackSink registers a context-aware callback.
func NewContextCallbackSink(fn func(ctx context.Context, source string, ev model.Event) error) *ContextCallbackSink {
	return &ContextCallbackSink{fn: fn, ctx: context.Background()}
}

func (s *ContextCallbackSink) Open(ctx context.Context) error {
	s.ctx = ctx
	return nil
}

func (s *ContextCallbackSink) Handle(source string, ev model.Event) error {
	return s.fn(s.ctx, source, ev)
}

func (s *ContextCallbackSink) Close() error { return nil }
