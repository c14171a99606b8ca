// Package export serializes retained events for offline inspection.
// This is a convenience output, not part of the live pipeline.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/snarehq/snare/internal/model"
)

// Dump writes one indented JSON document keyed by source identifier.
func Dump(w io.Writer, bySource map[string][]model.Event) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bySource); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}

// DumpFile writes the document to a file, creating or truncating it.
func DumpFile(path string, bySource map[string][]model.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()
	return Dump(f, bySource)
}
