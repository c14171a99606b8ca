package model

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how serious a detected exception is.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// rank orders severities for threshold comparisons.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityError:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// Event is the common surface shared by both event variants.
// Concrete types are immutable once constructed; sinks and filters
// only ever read them.
type Event interface {
	// When returns the detection timestamp.
	When() time.Time
	// Kind returns the exception type name (e.g. "ValueError", "HTTPStatusError").
	Kind() string
	// Text returns the human-readable message.
	Text() string
	// Level returns the inferred severity.
	Level() Severity
	// ContextLines returns the recent raw lines captured around the detection,
	// oldest first.
	ContextLines() []string
}

// ExceptionEvent is produced by a polling monitor when a source fails
// after exhausting its retries.
type ExceptionEvent struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	SourceURL      string    `json:"source_url"`
	ExceptionType  string    `json:"exception_type"`
	Message        string    `json:"message"`
	Context        []string  `json:"context,omitempty"`
	ResponseStatus int       `json:"response_status,omitempty"`
	ResponseBody   string    `json:"response_body,omitempty"`
}

// NewExceptionEvent builds a poll-failure event with a fresh ID and timestamp.
func NewExceptionEvent(sourceURL, excType, message string, context []string) *ExceptionEvent {
	return &ExceptionEvent{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		SourceURL:     sourceURL,
		ExceptionType: excType,
		Message:       message,
		Context:       context,
	}
}

func (e *ExceptionEvent) When() time.Time { return e.Timestamp }
func (e *ExceptionEvent) Kind() string    { return e.ExceptionType }
func (e *ExceptionEvent) Text() string    { return e.Message }

// Level buckets HTTP status codes: 5xx is critical, 4xx (and anything
// else that reached the failure path) is an error.
func (e *ExceptionEvent) Level() Severity {
	if e.ResponseStatus >= 500 {
		return SeverityCritical
	}
	return SeverityError
}

func (e *ExceptionEvent) ContextLines() []string { return e.Context }

// LogException is produced by a streaming monitor when a line (or a
// reconstructed multi-line traceback) matches an exception pattern.
type LogException struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Raw           string            `json:"raw"`
	ExceptionType string            `json:"exception_type"`
	Message       string            `json:"message"`
	Context       []string          `json:"context,omitempty"`
	LineNumber    int               `json:"line_number"` // 1-based within the stream
	Pattern       string            `json:"pattern"`
	Severity      Severity          `json:"severity"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Stacktrace    []string          `json:"stacktrace,omitempty"`
	AppName       string            `json:"app_name,omitempty"`
	AppVersion    string            `json:"app_version,omitempty"`
	PID           string            `json:"pid,omitempty"`
}

// NewLogException builds a stream event with a fresh ID and timestamp.
func NewLogException(raw, excType, message, pattern string, severity Severity) *LogException {
	return &LogException{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		Raw:           raw,
		ExceptionType: excType,
		Message:       message,
		Pattern:       pattern,
		Severity:      severity,
	}
}

func (e *LogException) When() time.Time        { return e.Timestamp }
func (e *LogException) Kind() string           { return e.ExceptionType }
func (e *LogException) Text() string           { return e.Message }
func (e *LogException) Level() Severity        { return e.Severity }
func (e *LogException) ContextLines() []string { return e.Context }

// Tagged pairs an event with the identifier of the source that produced it.
// This is the unit that flows through the aggregation queue.
type Tagged struct {
	Source string `json:"source"`
	Event  Event  `json:"event"`
}
