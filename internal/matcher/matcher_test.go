package matcher

import (
	"testing"

	"github.com/snarehq/snare/internal/model"
)

func TestNoMatchLeavesStateUntouched(t *testing.T) {
	m := New(0)

	if got := m.MatchLine("just a normal log line"); got != nil {
		t.Errorf("expected nil match, got %+v", got)
	}
	if m.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", m.State())
	}

	// Same inside a traceback: an unmatched line must not disturb it.
	m.MatchLine("Traceback (most recent call last):")
	if got := m.MatchLine("some unrelated chatter"); got != nil {
		t.Errorf("expected nil match inside traceback, got %+v", got)
	}
	if m.State() != StateInTraceback {
		t.Errorf("expected StateInTraceback, got %v", m.State())
	}
}

func TestSingleLineException(t *testing.T) {
	m := New(0)

	got := m.MatchLine("ValueError: invalid literal for int()")
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.ExceptionType != "ValueError" {
		t.Errorf("expected ValueError, got %s", got.ExceptionType)
	}
	if got.Message != "invalid literal for int()" {
		t.Errorf("unexpected message: %q", got.Message)
	}
	if got.Severity != model.SeverityError {
		t.Errorf("expected ERROR, got %s", got.Severity)
	}
	if len(got.Stacktrace) != 0 {
		t.Errorf("expected no stacktrace for single-line match, got %d lines", len(got.Stacktrace))
	}
}

func TestTracebackReconstruction(t *testing.T) {
	m := New(0)

	const refs = 3
	if got := m.MatchLine("Traceback (most recent call last):"); got != nil {
		t.Fatalf("traceback start must not complete a match, got %+v", got)
	}
	for i := 0; i < refs; i++ {
		if got := m.MatchLine(`  File "app.py", line 42, in main`); got != nil {
			t.Fatalf("file reference must not complete a match, got %+v", got)
		}
	}

	got := m.MatchLine("KeyError: 'session'")
	if got == nil {
		t.Fatal("expected terminal line to complete the traceback")
	}
	// start + N references + terminal line.
	if len(got.Stacktrace) != refs+2 {
		t.Errorf("expected %d stacktrace lines, got %d", refs+2, len(got.Stacktrace))
	}
	if got.Stacktrace[0] != "Traceback (most recent call last):" {
		t.Errorf("expected traceback header first, got %q", got.Stacktrace[0])
	}
	if got.Stacktrace[refs+1] != "KeyError: 'session'" {
		t.Errorf("expected terminal line last, got %q", got.Stacktrace[refs+1])
	}
	if m.State() != StateIdle {
		t.Errorf("expected state reset after completion, got %v", m.State())
	}
}

func TestTracebackLimit(t *testing.T) {
	m := New(4)

	m.MatchLine("Traceback (most recent call last):")
	for i := 0; i < 10; i++ {
		m.MatchLine(`  File "deep.py", line 1, in recurse`)
	}

	got := m.MatchLine("RecursionError: maximum recursion depth exceeded")
	if got == nil {
		t.Fatal("expected a match")
	}
	if len(got.Stacktrace) != 4 {
		t.Errorf("expected stacktrace capped at 4 lines, got %d", len(got.Stacktrace))
	}
}

func TestCustomPattern(t *testing.T) {
	m := New(0)

	if err := m.RegisterPattern("oom_killer", `Out of memory: Killed process (?P<message>.+)`); err != nil {
		t.Fatal(err)
	}

	got := m.MatchLine("Out of memory: Killed process 4242 (java)")
	if got == nil {
		t.Fatal("expected custom pattern to match")
	}
	if got.Pattern != "oom_killer" {
		t.Errorf("expected pattern oom_killer, got %s", got.Pattern)
	}
	if got.Message != "4242 (java)" {
		t.Errorf("unexpected message: %q", got.Message)
	}
	if m.State() != StateIdle {
		t.Errorf("custom match must leave state idle, got %v", m.State())
	}
}

func TestCustomPatternInvalidRegexp(t *testing.T) {
	m := New(0)
	if err := m.RegisterPattern("bad", `[unclosed`); err == nil {
		t.Error("expected error for invalid regexp")
	}
}

func TestSeverityInference(t *testing.T) {
	m := New(0)

	cases := []struct {
		line string
		want model.Severity
	}{
		{"MemoryError: cannot allocate 4GB", model.SeverityCritical},
		{"SystemError: internal interpreter state corrupted", model.SeverityCritical},
		{"TypeError: unsupported operand", model.SeverityError},
		{"StopIteration: generator exhausted", model.SeverityInfo},
	}
	for _, c := range cases {
		got := m.MatchLine(c.line)
		if got == nil {
			t.Errorf("expected match for %q", c.line)
			continue
		}
		if got.Severity != c.want {
			t.Errorf("%q: expected %s, got %s", c.line, c.want, got.Severity)
		}
	}
}

func TestAppIdentityPrefix(t *testing.T) {
	m := New(0)

	got := m.MatchLine("[orders-api/2.4.1 pid=3121] ValueError: bad order id")
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.AppInfo["app"] != "orders-api" {
		t.Errorf("expected app orders-api, got %q", got.AppInfo["app"])
	}
	if got.AppInfo["version"] != "2.4.1" {
		t.Errorf("expected version 2.4.1, got %q", got.AppInfo["version"])
	}
	if got.AppInfo["pid"] != "3121" {
		t.Errorf("expected pid 3121, got %q", got.AppInfo["pid"])
	}

	// Identity must be cleared after the match completes.
	next := m.MatchLine("KeyError: 'x'")
	if next == nil {
		t.Fatal("expected a match")
	}
	if len(next.AppInfo) != 0 {
		t.Errorf("expected app identity cleared, got %+v", next.AppInfo)
	}
}

func TestReset(t *testing.T) {
	m := New(0)

	m.MatchLine("[svc/1.0 pid=1] Traceback (most recent call last):")
	m.MatchLine(`  File "a.py", line 1, in go`)
	m.Reset()

	if m.State() != StateIdle {
		t.Errorf("expected StateIdle after reset, got %v", m.State())
	}

	got := m.MatchLine("ValueError: after reset")
	if got == nil {
		t.Fatal("expected a match")
	}
	if len(got.Stacktrace) != 0 {
		t.Errorf("expected no stacktrace after reset, got %d lines", len(got.Stacktrace))
	}
	if len(got.AppInfo) != 0 {
		t.Errorf("expected no app identity after reset, got %+v", got.AppInfo)
	}
}
