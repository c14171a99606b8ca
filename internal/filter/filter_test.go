package filter

import (
	"testing"

	"github.com/snarehq/snare/internal/model"
)

func tagged(source, excType string, severity model.Severity) model.Tagged {
	return model.Tagged{
		Source: source,
		Event:  model.NewLogException("raw", excType, "msg", excType, severity),
	}
}

func TestByExceptionTypes(t *testing.T) {
	f := ByExceptionTypes("ValueError", "KeyError")

	if !f(tagged("a", "ValueError", model.SeverityError)) {
		t.Error("expected ValueError to pass")
	}
	if f(tagged("a", "TypeError", model.SeverityError)) {
		t.Error("expected TypeError to be dropped")
	}
}

func TestBySourcePattern(t *testing.T) {
	f, err := BySourcePattern(`^prod-`)
	if err != nil {
		t.Fatal(err)
	}
	if !f(tagged("prod-api", "ValueError", model.SeverityError)) {
		t.Error("expected prod-api to pass")
	}
	if f(tagged("staging-api", "ValueError", model.SeverityError)) {
		t.Error("expected staging-api to be dropped")
	}

	if _, err := BySourcePattern(`[bad`); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestBySourcePatternMatchesPollURL(t *testing.T) {
	f, err := BySourcePattern(`api\.internal`)
	if err != nil {
		t.Fatal(err)
	}
	ev := model.NewExceptionEvent("https://api.internal/health", "HTTPStatusError", "boom", nil)
	if !f(model.Tagged{Source: "checkout", Event: ev}) {
		t.Error("expected poll event URL to be matched")
	}
}

func TestByMinSeverity(t *testing.T) {
	f := ByMinSeverity(model.SeverityError)

	if f(tagged("a", "StopIteration", model.SeverityInfo)) {
		t.Error("expected INFO to be dropped")
	}
	if !f(tagged("a", "ValueError", model.SeverityError)) {
		t.Error("expected ERROR to pass")
	}
	if !f(tagged("a", "MemoryError", model.SeverityCritical)) {
		t.Error("expected CRITICAL to pass")
	}
}

func TestByMinSeverityStatusBucketing(t *testing.T) {
	f := ByMinSeverity(model.SeverityCritical)

	e500 := model.NewExceptionEvent("http://x/health", "HTTPStatusError", "boom", nil)
	e500.ResponseStatus = 500
	e404 := model.NewExceptionEvent("http://x/health", "HTTPStatusError", "boom", nil)
	e404.ResponseStatus = 404

	if !f(model.Tagged{Source: "x", Event: e500}) {
		t.Error("expected 5xx to bucket as CRITICAL")
	}
	if f(model.Tagged{Source: "x", Event: e404}) {
		t.Error("expected 4xx to bucket below CRITICAL")
	}
}

func TestWrap(t *testing.T) {
	in := make(chan model.Tagged, 4)
	in <- tagged("a", "ValueError", model.SeverityError)
	in <- tagged("a", "StopIteration", model.SeverityInfo)
	in <- tagged("a", "MemoryError", model.SeverityCritical)
	close(in)

	out := Wrap(in, ByMinSeverity(model.SeverityError))

	var got []model.Tagged
	for item := range out {
		got = append(got, item)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items after filtering, got %d", len(got))
	}
	if got[0].Event.Kind() != "ValueError" || got[1].Event.Kind() != "MemoryError" {
		t.Errorf("unexpected order or contents: %v, %v", got[0].Event.Kind(), got[1].Event.Kind())
	}
}
