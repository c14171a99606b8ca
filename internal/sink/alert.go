package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/snarehq/snare/internal/model"
)

// Alert describes one threshold crossing.
type Alert struct {
	Source    string      `json:"source"`
	Count     int         `json:"count"`
	Threshold int         `json:"threshold"`
	Window    string      `json:"window"`
	FiredAt   time.Time   `json:"fired_at"`
	LastEvent model.Event `json:"last_event"`
}

// Notifier delivers a fired alert somewhere side-effecting.
type Notifier interface {
	Notify(a Alert) error
}

// LogNotifier writes alerts to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(a Alert) error {
	n.Logger.Warn("alert threshold reached",
		"source", a.Source, "count", a.Count, "threshold", a.Threshold, "window", a.Window)
	return nil
}

// CallbackNotifier invokes a caller-supplied function per alert.
type CallbackNotifier struct {
	Fn func(a Alert)
}

func (n *CallbackNotifier) Notify(a Alert) error {
	n.Fn(a)
	return nil
}

// WebhookNotifier POSTs alerts as JSON to an HTTP endpoint. Delivery
// uses retrying transport since alert loss is worse than latency here.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier builds a webhook notifier with bounded retries.
func NewWebhookNotifier(url string) *WebhookNotifier {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil // suppress default logging

	return &WebhookNotifier{url: url, client: retryClient.StandardClient()}
}

func (n *WebhookNotifier) Notify(a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("webhook: marshal alert: %w", err)
	}
	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// AlertSink fires a notifier when a source produces Threshold events
// within Window. ResetOnFire picks the counting policy explicitly:
// true clears the window after firing (alert once per burst), false
// keeps accumulating (alert on every event past the threshold).
type AlertSink struct {
	threshold   int
	window      time.Duration
	resetOnFire bool
	notifier    Notifier
	logger      *slog.Logger

	seen map[string][]time.Time
	now  func() time.Time
}

// NewAlertSink validates and builds an alert sink.
func NewAlertSink(threshold int, window time.Duration, resetOnFire bool, notifier Notifier, logger *slog.Logger) (*AlertSink, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("alert sink: threshold must be >= 1, got %d", threshold)
	}
	if window <= 0 {
		return nil, fmt.Errorf("alert sink: window must be positive, got %v", window)
	}
	if notifier == nil {
		return nil, fmt.Errorf("alert sink: notifier is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AlertSink{
		threshold:   threshold,
		window:      window,
		resetOnFire: resetOnFire,
		notifier:    notifier,
		logger:      logger,
		seen:        make(map[string][]time.Time),
		now:         time.Now,
	}, nil
}

func (s *AlertSink) Open(ctx context.Context) error { return nil }

func (s *AlertSink) Handle(source string, ev model.Event) error {
	now := s.now()

	// Slide the per-source window.
	cutoff := now.Add(-s.window)
	kept := s.seen[source][:0]
	for _, t := range s.seen[source] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.seen[source] = kept

	if len(kept) >= s.threshold {
		alert := Alert{
			Source:    source,
			Count:     len(kept),
			Threshold: s.threshold,
			Window:    s.window.String(),
			FiredAt:   now,
			LastEvent: ev,
		}
		if err := s.notifier.Notify(alert); err != nil {
			s.logger.Warn("alert notification failed", "source", source, "error", err)
		}
		if s.resetOnFire {
			s.seen[source] = nil
		}
	}
	return nil
}

func (s *AlertSink) Close() error { return nil }
