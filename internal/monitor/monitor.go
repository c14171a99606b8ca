package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/snarehq/snare/internal/config"
	"github.com/snarehq/snare/internal/matcher"
	"github.com/snarehq/snare/internal/model"
	"github.com/snarehq/snare/internal/transport"
)

// eventBuffer is the size of the outbound event channel.
const eventBuffer = 64

// Monitor owns one configured source. In polling mode it issues one
// request per tick and turns exhausted retries into events; in
// streaming mode it frames the byte stream into lines and feeds them to
// its pattern matcher. Each Monitor owns an independent matcher and
// context buffer.
type Monitor struct {
	cfg    config.MonitorConfig
	tr     transport.Transport
	match  *matcher.Matcher
	ctxBuf *contextBuffer
	out    chan model.Event
	logger *slog.Logger

	lineNo int // 1-based line counter for the stream

	mu       sync.Mutex
	retained []model.Event
}

// New validates the configuration and builds a Monitor. Configuration
// errors are returned immediately; they are never retried.
func New(cfg config.MonitorConfig, tr transport.Transport, logger *slog.Logger) (*Monitor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, fmt.Errorf("monitor %q: transport is required", cfg.ID())
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Monitor{
		cfg:    cfg,
		tr:     tr,
		match:  matcher.New(cfg.StacktraceLimit),
		ctxBuf: newContextBuffer(cfg.ContextLines),
		out:    make(chan model.Event, eventBuffer),
		logger: logger.With("source", cfg.ID()),
	}, nil
}

// ID returns the source identifier events from this monitor carry.
func (m *Monitor) ID() string { return m.cfg.ID() }

// Matcher exposes the monitor's pattern matcher so callers can register
// custom patterns before Start.
func (m *Monitor) Matcher() *matcher.Matcher { return m.match }

// Events returns the channel the monitor emits on. It is closed when
// the monitor's loop exits.
func (m *Monitor) Events() <-chan model.Event { return m.out }

// Retained returns a copy of every event this monitor has produced,
// for bulk export.
func (m *Monitor) Retained() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, len(m.retained))
	copy(out, m.retained)
	return out
}

// Start runs the monitor loop for its configured mode. It blocks until
// the context is cancelled or, in streaming mode, until reconnect
// attempts are exhausted. The event channel is closed on exit.
func (m *Monitor) Start(ctx context.Context) {
	defer close(m.out)

	switch m.cfg.Mode {
	case config.ModeStream:
		m.runStreaming(ctx)
	default:
		m.runPolling(ctx)
	}
}

// emit records the event and hands it to the consumer. A cancelled
// context abandons the send rather than blocking forever.
func (m *Monitor) emit(ctx context.Context, ev model.Event) {
	m.mu.Lock()
	m.retained = append(m.retained, ev)
	m.mu.Unlock()

	select {
	case m.out <- ev:
	case <-ctx.Done():
	}
}

// ---------------------------------------------------------------------------
// Polling mode
// ---------------------------------------------------------------------------

func (m *Monitor) runPolling(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if ev := m.pollOnce(ctx); ev != nil {
			m.emit(ctx, ev)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.Interval):
		}
	}
}

// pollOnce performs one tick: up to MaxRetries request attempts with
// exponential backoff. It returns exactly one event when every attempt
// failed, nil on success or cancellation.
func (m *Monitor) pollOnce(ctx context.Context) *model.ExceptionEvent {
	var lastErr error
	var lastResp *transport.Response

	delay := m.cfg.BackoffBase
	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil
		}

		reqCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		resp, err := m.tr.RequestOnce(reqCtx, m.transportConfig())
		cancel()

		switch {
		case err != nil:
			lastErr, lastResp = err, nil
			m.ctxBuf.Add(fmt.Sprintf("attempt %d/%d failed: %v", attempt, m.cfg.MaxRetries, err))
		case resp.Status >= 400:
			lastErr, lastResp = nil, resp
			m.ctxBuf.Add(fmt.Sprintf("attempt %d/%d failed: status %d", attempt, m.cfg.MaxRetries, resp.Status))
		default:
			m.ctxBuf.Add(fmt.Sprintf("OK %d", resp.Status))
			return nil
		}

		if attempt < m.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	// Cancellation must not synthesize an event for a half-finished tick.
	if ctx.Err() != nil {
		return nil
	}

	return m.failureEvent(lastErr, lastResp)
}

// failureEvent converts an exhausted tick into a single event, typed so
// that transport failures stay distinguishable from application
// exceptions found in log streams.
func (m *Monitor) failureEvent(err error, resp *transport.Response) *model.ExceptionEvent {
	if resp != nil {
		ev := model.NewExceptionEvent(
			m.cfg.URL,
			"HTTPStatusError",
			fmt.Sprintf("request failed with status %d after %d attempts", resp.Status, m.cfg.MaxRetries),
			m.ctxBuf.Snapshot(),
		)
		ev.ResponseStatus = resp.Status
		ev.ResponseBody = truncate(string(resp.Body), 2048)
		return ev
	}

	excType := "ConnectionError"
	switch {
	case errors.Is(err, transport.ErrTimeout):
		excType = "TimeoutError"
	case errors.Is(err, transport.ErrProtocol):
		excType = "ProtocolError"
	}
	return model.NewExceptionEvent(
		m.cfg.URL,
		excType,
		fmt.Sprintf("request failed after %d attempts: %v", m.cfg.MaxRetries, err),
		m.ctxBuf.Snapshot(),
	)
}

// ---------------------------------------------------------------------------
// Streaming mode
// ---------------------------------------------------------------------------

func (m *Monitor) runStreaming(ctx context.Context) {
	consecutive := 0

	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := m.tr.OpenStream(ctx, m.transportConfig())
		if err != nil {
			consecutive++
			m.ctxBuf.Add(fmt.Sprintf("connect failed (%d/%d): %v", consecutive, m.cfg.MaxReconnects, err))
			if consecutive >= m.cfg.MaxReconnects {
				m.emit(ctx, m.disconnectEvent(err, consecutive))
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.cfg.ReconnectDelay):
			}
			continue
		}

		// Only consecutive failures count toward the limit.
		consecutive = 0
		m.logger.Info("stream connected", "url", m.cfg.URL)

		err = m.consumeStream(ctx, stream)
		stream.Close()
		if ctx.Err() != nil {
			return
		}
		if err == io.EOF {
			m.logger.Info("stream ended, reconnecting", "url", m.cfg.URL)
		} else if err != nil {
			m.logger.Warn("stream error, reconnecting", "url", m.cfg.URL, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.ReconnectDelay):
		}
	}
}

// consumeStream reads chunks until the stream ends, splitting them on
// the configured line terminator and feeding every complete line to the
// matcher.
func (m *Monitor) consumeStream(ctx context.Context, stream transport.Stream) error {
	var carry string
	for {
		chunk, err := stream.ReadChunk(ctx)
		if len(chunk) > 0 {
			carry += string(chunk)
			for {
				idx := strings.Index(carry, m.cfg.LineEnding)
				if idx < 0 {
					break
				}
				line := carry[:idx]
				carry = carry[idx+len(m.cfg.LineEnding):]
				m.handleLine(ctx, line)
			}
		}
		if err != nil {
			// A buffered partial line is still worth matching on EOF.
			if err == io.EOF && carry != "" {
				m.handleLine(ctx, carry)
			}
			return err
		}
	}
}

// handleLine runs one framed line through the context buffer and the
// pattern matcher, emitting an event when a match completes.
func (m *Monitor) handleLine(ctx context.Context, line string) {
	m.lineNo++
	m.ctxBuf.Add(line)

	match := m.match.MatchLine(line)
	if match == nil {
		return
	}

	ev := model.NewLogException(line, match.ExceptionType, match.Message, match.Pattern, match.Severity)
	ev.LineNumber = m.lineNo
	ev.Context = m.ctxBuf.Snapshot()
	ev.Stacktrace = match.Stacktrace
	if len(match.AppInfo) > 0 {
		ev.AppName = match.AppInfo["app"]
		ev.AppVersion = match.AppInfo["version"]
		ev.PID = match.AppInfo["pid"]
	}
	m.emit(ctx, ev)
}

// disconnectEvent marks the exhaustion of consecutive reconnects. Its
// type name keeps transport failures distinguishable from exceptions
// detected inside the stream.
func (m *Monitor) disconnectEvent(err error, attempts int) *model.LogException {
	ev := model.NewLogException(
		"",
		"StreamDisconnected",
		fmt.Sprintf("gave up after %d consecutive reconnect failures: %v", attempts, err),
		"transport",
		model.SeverityCritical,
	)
	ev.Context = m.ctxBuf.Snapshot()
	ev.Metadata = map[string]string{"consecutive_failures": strconv.Itoa(attempts)}
	return ev
}

func (m *Monitor) transportConfig() transport.Config {
	return transport.Config{
		URL:      m.cfg.URL,
		Method:   m.cfg.Method,
		Headers:  m.cfg.Headers,
		Body:     m.cfg.Body,
		Username: m.cfg.Username,
		Password: m.cfg.Password,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
