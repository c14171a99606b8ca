package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/snarehq/snare/internal/model"
)

var (
	styleInfo     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	styleError    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleCritical = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true) // white on red
	styleSource  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Faint(true) // cyan
	styleContext = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
)

// ConsoleSink writes a severity-colored summary of each event to a
// terminal. Its Handle never propagates write errors: a broken console
// must not abort the pipeline.
type ConsoleSink struct {
	w           io.Writer
	showContext bool
	logger      *slog.Logger
}

// NewConsoleSink creates a console sink writing to w (stdout when nil).
// With showContext, the event's recent context lines are printed too.
func NewConsoleSink(w io.Writer, showContext bool, logger *slog.Logger) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ConsoleSink{w: w, showContext: showContext, logger: logger}
}

func (s *ConsoleSink) Open(ctx context.Context) error { return nil }

func (s *ConsoleSink) Handle(source string, ev model.Event) error {
	ts := ev.When().Format("15:04:05")
	tag := severityTag(ev.Level())
	src := styleSource.Render(source)

	line := fmt.Sprintf("%s %s %s %s: %s", ts, tag, src, ev.Kind(), ev.Text())
	if _, err := fmt.Fprintln(s.w, line); err != nil {
		s.logger.Warn("console write failed", "error", err)
		return nil
	}

	if s.showContext {
		for _, c := range ev.ContextLines() {
			fmt.Fprintln(s.w, styleContext.Render("    "+c))
		}
	}
	return nil
}

func (s *ConsoleSink) Close() error { return nil }

func severityTag(level model.Severity) string {
	padded := fmt.Sprintf("%-8s", level)
	switch level {
	case model.SeverityCritical:
		return styleCritical.Render(padded)
	case model.SeverityError:
		return styleError.Render(padded)
	default:
		return styleInfo.Render(padded)
	}
}
