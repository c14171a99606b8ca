package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// File tails local log files for file:// sources. Rotation shows up as
// a stream end; the monitor's reconnect loop reopens the file.
type File struct {
	logger *slog.Logger
	ckpt   *Checkpoint
}

// NewFile creates a file transport without offset persistence:
// each open seeks to the end of the file.
func NewFile(logger *slog.Logger) *File {
	return NewFileWithCheckpoint(logger, nil)
}

// NewFileWithCheckpoint creates a file transport that resumes each file
// from its checkpointed offset.
func NewFileWithCheckpoint(logger *slog.Logger, ckpt *Checkpoint) *File {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &File{logger: logger, ckpt: ckpt}
}

// RequestOnce is not supported for file sources.
func (t *File) RequestOnce(ctx context.Context, cfg Config) (*Response, error) {
	return nil, fmt.Errorf("%w: file sources support streaming mode only", ErrProtocol)
}

// OpenStream opens the file and begins tailing appended data.
func (t *File) OpenStream(ctx context.Context, cfg Config) (Stream, error) {
	path := strings.TrimPrefix(cfg.URL, "file://")

	f, err := os.Open(path)
	if err != nil {
		return nil, classify(err)
	}

	// Resume from checkpoint, or start at the end of the file.
	var offset int64
	if t.ckpt != nil {
		if saved, ok := t.ckpt.Get(path); ok {
			offset = saved
		} else {
			offset, _ = f.Seek(0, io.SeekEnd)
		}
	} else {
		offset, _ = f.Seek(0, io.SeekEnd)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		f.Close()
		return nil, classify(err)
	}

	return &fileStream{
		path:   path,
		file:   f,
		fsw:    fsw,
		ckpt:   t.ckpt,
		logger: t.logger,
	}, nil
}

type fileStream struct {
	path   string
	file   *os.File
	fsw    *fsnotify.Watcher
	ckpt   *Checkpoint
	logger *slog.Logger
}

// ReadChunk reads appended bytes, waiting on fsnotify write events when
// the file is at EOF. Remove and rename events end the stream so the
// caller can reconnect to the rotated file.
func (s *fileStream) ReadChunk(ctx context.Context) ([]byte, error) {
	buf := make([]byte, streamChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.file.Read(buf)
		if n > 0 {
			if s.ckpt != nil {
				pos, _ := s.file.Seek(0, io.SeekCurrent)
				s.ckpt.Set(s.path, pos)
			}
			return buf[:n], nil
		}
		if err != nil && err != io.EOF {
			return nil, err
		}

		// At EOF: wait for the file to grow.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return nil, io.EOF
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return nil, io.EOF
			}
		case werr, ok := <-s.fsw.Errors:
			if !ok {
				return nil, io.EOF
			}
			s.logger.Warn("file watch error", "path", s.path, "error", werr)
		case <-time.After(time.Second):
			// Fallback poll in case an event was coalesced away.
		}
	}
}

func (s *fileStream) Close() error {
	s.fsw.Close()
	if s.ckpt != nil {
		if err := s.ckpt.Save(); err != nil {
			s.logger.Warn("checkpoint save failed", "path", s.path, "error", err)
		}
	}
	return s.file.Close()
}

// ExpandGlob resolves a glob pattern to matching file paths. Supports
// recursive patterns like /var/log/**/*.log.
func ExpandGlob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
}
