package monitor

import "time"

// contextBuffer is a fixed-capacity ring of timestamp-prefixed lines.
// On overflow the oldest entry is silently dropped. It is only ever
// touched by the owning monitor's loop, so it needs no locking.
type contextBuffer struct {
	entries []string
	start   int // index of the oldest entry
	count   int
}

func newContextBuffer(capacity int) *contextBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &contextBuffer{entries: make([]string, capacity)}
}

// Add appends a line, prefixed with a wall-clock timestamp.
func (b *contextBuffer) Add(line string) {
	stamped := time.Now().Format("15:04:05.000") + " " + line
	if b.count < len(b.entries) {
		b.entries[(b.start+b.count)%len(b.entries)] = stamped
		b.count++
		return
	}
	// Full: overwrite the oldest.
	b.entries[b.start] = stamped
	b.start = (b.start + 1) % len(b.entries)
}

// Snapshot returns a copy of the buffered lines, oldest first.
func (b *contextBuffer) Snapshot() []string {
	out := make([]string, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+i)%len(b.entries)]
	}
	return out
}

// Len returns the number of buffered lines.
func (b *contextBuffer) Len() int { return b.count }
