package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// maxBodyBytes bounds how much of a polled response body is retained.
const maxBodyBytes = 64 * 1024

// streamChunkSize is the read size for chunked HTTP streams.
const streamChunkSize = 4096

// HTTP serves both polling (one request/response per tick) and
// streaming (long-lived chunked body) sources.
type HTTP struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTP creates an HTTP transport. Request deadlines come from the
// caller's context, not from a client-level timeout, so the same
// client can serve long-lived streams.
func NewHTTP(logger *slog.Logger) *HTTP {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTP{
		client: &http.Client{},
		logger: logger,
	}
}

func (t *HTTP) newRequest(ctx context.Context, cfg Config) (*http.Request, error) {
	var body io.Reader
	if cfg.Body != "" {
		body = strings.NewReader(cfg.Body)
	}
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProtocol, err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if cfg.Username != "" {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}
	return req, nil
}

// RequestOnce performs a single request/response cycle and returns the
// status, headers, and a bounded copy of the body. Non-2xx statuses are
// returned as data, not errors; the monitor decides what counts as a
// failure.
func (t *HTTP) RequestOnce(ctx context.Context, cfg Config) (*Response, error) {
	req, err := t.newRequest(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		t.logger.Debug("truncated body read", "url", cfg.URL, "error", err)
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    body,
	}, nil
}

// OpenStream issues the request and hands back the response body as a
// chunked stream. A non-2xx status is a protocol error: there is no
// stream to read.
func (t *HTTP) OpenStream(ctx context.Context, cfg Config) (Stream, error) {
	req, err := t.newRequest(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: stream request returned status %d", ErrProtocol, resp.StatusCode)
	}

	return &httpStream{body: resp.Body}, nil
}

type httpStream struct {
	body io.ReadCloser
}

func (s *httpStream) ReadChunk(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, streamChunkSize)
	n, err := s.body.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, classify(err)
	}
	return nil, nil
}

func (s *httpStream) Close() error {
	return s.body.Close()
}
