package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/snarehq/snare/internal/model"
)

// File sink serialization formats.
const (
	FormatJSONLines = "jsonl"     // one compact object per line, crash-safe to append
	FormatJSONArray = "jsonarray" // a single JSON array with open/close wrappers
)

// FileSink appends serialized events to a file. The output handle is
// acquired on Open and released on Close, even when Handle failed for
// some item.
type FileSink struct {
	path   string
	format string
	f      *os.File
	enc    *json.Encoder
	first  bool
}

// NewFileSink validates the format up front: an unsupported format is a
// configuration error and must surface before any monitoring starts.
func NewFileSink(path, format string) (*FileSink, error) {
	switch format {
	case FormatJSONLines, FormatJSONArray:
	default:
		return nil, fmt.Errorf("file sink: unsupported format %q (want %q or %q)", format, FormatJSONLines, FormatJSONArray)
	}
	if path == "" {
		return nil, fmt.Errorf("file sink: path is required")
	}
	return &FileSink{path: path, format: format}, nil
}

func (s *FileSink) Open(ctx context.Context) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("file sink: open %s: %w", s.path, err)
	}
	s.f = f
	s.enc = json.NewEncoder(f)
	s.first = true

	if s.format == FormatJSONArray {
		if _, err := f.WriteString("[\n"); err != nil {
			f.Close()
			s.f = nil
			return fmt.Errorf("file sink: write array header: %w", err)
		}
	}
	return nil
}

func (s *FileSink) Handle(source string, ev model.Event) error {
	if s.f == nil {
		return fmt.Errorf("file sink: not open")
	}

	rec := record{Source: source, Event: ev}

	if s.format == FormatJSONLines {
		return s.enc.Encode(rec)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("file sink: marshal: %w", err)
	}
	if !s.first {
		if _, err := s.f.WriteString(",\n"); err != nil {
			return err
		}
	}
	s.first = false
	if _, err := s.f.Write(raw); err != nil {
		return err
	}
	return nil
}

func (s *FileSink) Close() error {
	if s.f == nil {
		return nil
	}
	defer func() { s.f = nil }()

	if s.format == FormatJSONArray {
		if _, err := s.f.WriteString("\n]\n"); err != nil {
			s.f.Close()
			return err
		}
	}
	return s.f.Close()
}
