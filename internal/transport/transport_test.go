package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestForURLSchemeRouting(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"http://example.com/logs", "*transport.HTTP"},
		{"https://example.com/logs", "*transport.HTTP"},
		{"ws://example.com/logs", "*transport.WebSocket"},
		{"file:///var/log/app.log", "*transport.File"},
	}
	for _, c := range cases {
		tr, err := ForURL(c.url, nil)
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.url, err)
			continue
		}
		if got := fmt.Sprintf("%T", tr); got != c.want {
			t.Errorf("%s: expected %s, got %s", c.url, c.want, got)
		}
	}

	if _, err := ForURL("gopher://example.com", nil); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestHTTPRequestOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "kaboom")
	}))
	defer srv.Close()

	tr := NewHTTP(nil)
	resp, err := tr.RequestOnce(context.Background(), Config{
		URL:     srv.URL,
		Method:  http.MethodGet,
		Headers: map[string]string{"X-Token": "secret"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.Status)
	}
	if string(resp.Body) != "kaboom" {
		t.Errorf("expected body retained, got %q", resp.Body)
	}
}

func TestHTTPRequestOnceTimeoutKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	tr := NewHTTP(nil)
	_, err := tr.RequestOnce(ctx, Config{URL: srv.URL})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout kind, got %v", err)
	}
}

func TestHTTPOpenStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "line one\n")
		flusher.Flush()
		fmt.Fprint(w, "line two\n")
		flusher.Flush()
	}))
	defer srv.Close()

	tr := NewHTTP(nil)
	stream, err := tr.OpenStream(context.Background(), Config{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var all strings.Builder
	for {
		chunk, err := stream.ReadChunk(context.Background())
		all.Write(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if got := all.String(); got != "line one\nline two\n" {
		t.Errorf("unexpected stream contents: %q", got)
	}
}

func TestHTTPOpenStreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTP(nil)
	if _, err := tr.OpenStream(context.Background(), Config{URL: srv.URL}); !errors.Is(err, ErrProtocol) {
		t.Errorf("expected ErrProtocol for status 503, got %v", err)
	}
}

func TestFileStreamTailsAppends(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")
	if err := os.WriteFile(logPath, []byte("existing line\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tr := NewFile(nil)
	stream, err := tr.OpenStream(context.Background(), Config{URL: "file://" + logPath})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	// Append after the stream seeked to the end.
	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return
		}
		f.WriteString("hello from test\n")
		f.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	chunk, err := stream.ReadChunk(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(chunk); got != "hello from test\n" {
		t.Errorf("expected appended line, got %q", got)
	}
}

func TestFileStreamCheckpointResume(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	if err := os.WriteFile(logPath, []byte("first\nsecond\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ckpt, err := NewCheckpoint(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	ckpt.Set(logPath, int64(len("first\n")))

	tr := NewFileWithCheckpoint(nil, ckpt)
	stream, err := tr.OpenStream(context.Background(), Config{URL: "file://" + logPath})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	chunk, err := stream.ReadChunk(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(chunk); got != "second\n" {
		t.Errorf("expected resume after checkpoint, got %q", got)
	}
}

func TestCheckpointSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckpt.json")

	c1, err := NewCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	c1.Set("/var/log/app.log", 42)
	c1.Set("/var/log/err.log", 1024)
	if err := c1.Save(); err != nil {
		t.Fatal(err)
	}

	c2, err := NewCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := c2.Get("/var/log/app.log"); !ok || v != 42 {
		t.Errorf("expected offset 42, got %d (ok=%v)", v, ok)
	}
	if v, ok := c2.Get("/var/log/err.log"); !ok || v != 1024 {
		t.Errorf("expected offset 1024, got %d (ok=%v)", v, ok)
	}
}

func TestExpandGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.log", "b.log", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := ExpandGlob(filepath.Join(dir, "*.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d: %v", len(matches), matches)
	}
}
