package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/snarehq/snare/internal/model"
)

// State is the matcher's position in the traceback state machine.
type State int

const (
	// StateIdle means no traceback is being accumulated.
	StateIdle State = iota
	// StateInTraceback means a traceback-start line has been seen and
	// frames are being collected until a terminal exception line arrives.
	StateInTraceback
)

// Match is the result of a successful line match.
type Match struct {
	Pattern       string            // name of the pattern that matched
	ExceptionType string            // e.g. "ValueError"
	Message       string            // text after the type name
	Severity      model.Severity
	Stacktrace    []string          // full reconstructed traceback, empty for single-line matches
	AppInfo       map[string]string // app/version/pid parsed from the line prefix, if any
}

// customPattern is a caller-registered terminal pattern. Named capture
// groups `type` and `message` override the defaults when present.
type customPattern struct {
	name string
	re   *regexp.Regexp
}

// Matcher turns log lines into exception matches, reconstructing
// multi-line tracebacks along the way. It is not safe for concurrent
// use; each monitor owns its own instance.
type Matcher struct {
	state      State
	trace      []string
	traceLimit int
	appInfo    map[string]string
	custom     []customPattern
}

// DefaultTraceLimit bounds stacktrace accumulation when the caller
// does not configure one.
const DefaultTraceLimit = 100

// New creates a Matcher. traceLimit bounds the accumulated stacktrace;
// values < 1 fall back to DefaultTraceLimit. The stacktrace bound is
// deliberately independent of the monitor's context-buffer bound.
func New(traceLimit int) *Matcher {
	if traceLimit < 1 {
		traceLimit = DefaultTraceLimit
	}
	return &Matcher{
		traceLimit: traceLimit,
		appInfo:    make(map[string]string),
	}
}

// State returns the current state machine position.
func (m *Matcher) State() State { return m.state }

// Reset clears the accumulation buffer, the in-traceback flag, and any
// parsed app-identity fields.
func (m *Matcher) Reset() {
	m.state = StateIdle
	m.trace = nil
	m.appInfo = make(map[string]string)
}

// RegisterPattern adds a custom terminal pattern by name. Custom
// patterns participate only in the terminal pass; they never start a
// traceback. Registering an invalid regexp fails fast.
func (m *Matcher) RegisterPattern(name, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", name, err)
	}
	m.custom = append(m.custom, customPattern{name: name, re: re})
	return nil
}

// MatchLine inspects one line (no trailing newline) and returns a Match
// when the line completes an exception, or nil when it matches nothing
// or is an intermediate traceback line. Unmatched lines leave the
// matcher state untouched. MatchLine never fails.
func (m *Matcher) MatchLine(line string) *Match {
	line = m.stripAppIdentity(line)

	// Traceback-start patterns take precedence and (re)seed accumulation.
	if tracebackStartRe.MatchString(line) {
		m.state = StateInTraceback
		m.trace = []string{line}
		return nil
	}

	// Inside a traceback, collect file/line references.
	if m.state == StateInTraceback && fileRefRe.MatchString(line) {
		m.appendFrame(line)
		return nil
	}

	// Terminal pass: builtin catalogue first, then custom patterns in
	// registration order.
	if match := terminalRe.FindStringSubmatch(line); match != nil {
		return m.complete(match[1], match[2], match[1], line)
	}
	for _, cp := range m.custom {
		groups := cp.re.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		excType := cp.name
		message := line
		for i, gname := range cp.re.SubexpNames() {
			switch gname {
			case "type":
				excType = groups[i]
			case "message":
				message = groups[i]
			}
		}
		return m.complete(cp.name, message, excType, line)
	}

	return nil
}

// complete finishes a terminal match: attaches the accumulated
// stacktrace when one is open, infers severity, and resets state.
func (m *Matcher) complete(pattern, message, excType, line string) *Match {
	result := &Match{
		Pattern:       pattern,
		ExceptionType: excType,
		Message:       strings.TrimSpace(message),
		Severity:      inferSeverity(pattern, excType),
	}

	if m.state == StateInTraceback {
		m.appendFrame(line)
		result.Stacktrace = m.trace
	}
	if len(m.appInfo) > 0 {
		result.AppInfo = m.appInfo
	}

	// Single point where multi-line reconstruction completes.
	m.state = StateIdle
	m.trace = nil
	m.appInfo = make(map[string]string)
	return result
}

// appendFrame adds a line to the trace buffer, dropping further frames
// once the configured limit is reached (oldest frames are kept).
func (m *Matcher) appendFrame(line string) {
	if len(m.trace) >= m.traceLimit {
		return
	}
	m.trace = append(m.trace, line)
}

// stripAppIdentity removes a structured `[app/version pid=N]` prefix,
// recording its fields until the next reset.
func (m *Matcher) stripAppIdentity(line string) string {
	groups := appIdentityRe.FindStringSubmatch(line)
	if groups == nil {
		return line
	}
	m.appInfo["app"] = groups[1]
	m.appInfo["version"] = groups[2]
	m.appInfo["pid"] = groups[3]
	return line[len(groups[0]):]
}

// inferSeverity maps a match to a severity: the always-critical
// allow-list wins, then anything that looks like an error or exception,
// then INFO.
func inferSeverity(pattern, excType string) model.Severity {
	if criticalTypes[excType] {
		return model.SeverityCritical
	}
	combined := strings.ToLower(pattern + " " + excType)
	if strings.Contains(combined, "error") || strings.Contains(combined, "exception") {
		return model.SeverityError
	}
	return model.SeverityInfo
}
