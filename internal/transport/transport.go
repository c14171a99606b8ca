package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"syscall"
)

// Distinguishable transport error kinds. Monitors currently treat all
// of them as retryable, but sinks and logs can tell them apart.
var (
	ErrTimeout  = errors.New("transport: timeout")
	ErrRefused  = errors.New("transport: connection refused")
	ErrProtocol = errors.New("transport: protocol error")
)

// Response is the result of one polling request.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Stream yields raw byte chunks from a long-lived connection.
type Stream interface {
	// ReadChunk returns the next chunk, blocking until data arrives,
	// the stream ends (io.EOF), or ctx is cancelled.
	ReadChunk(ctx context.Context) ([]byte, error)
	Close() error
}

// Config carries the per-attempt request parameters a transport needs.
// It mirrors the monitor configuration but keeps this package free of
// a config dependency.
type Config struct {
	URL      string
	Method   string
	Headers  map[string]string
	Body     string
	Username string
	Password string
}

// Transport abstracts how raw bytes are obtained from a source.
type Transport interface {
	// RequestOnce performs exactly one request/response cycle. It never
	// retries; the monitor owns the retry policy.
	RequestOnce(ctx context.Context, cfg Config) (*Response, error)
	// OpenStream establishes one long-lived byte stream.
	OpenStream(ctx context.Context, cfg Config) (Stream, error)
}

// ForURL picks a transport implementation by URL scheme:
// http/https for polling and chunked streaming, ws/wss for WebSocket
// streams, file for local log tailing.
func ForURL(rawURL string, logger *slog.Logger) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		return NewHTTP(logger), nil
	case "ws", "wss":
		return NewWebSocket(logger), nil
	case "file", "":
		return NewFile(logger), nil
	default:
		return nil, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}

// classify maps low-level errors onto the transport error kinds so
// callers can use errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrRefused, err)
	}
	return err
}
