package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocket streams from ws:// and wss:// sources. Polling mode is not
// meaningful over a WebSocket and is rejected at request time.
type WebSocket struct {
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewWebSocket creates a WebSocket transport.
func NewWebSocket(logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WebSocket{
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// RequestOnce is not supported for WebSocket sources.
func (t *WebSocket) RequestOnce(ctx context.Context, cfg Config) (*Response, error) {
	return nil, fmt.Errorf("%w: websocket sources support streaming mode only", ErrProtocol)
}

// OpenStream dials the WebSocket endpoint and yields one chunk per
// received message.
func (t *WebSocket) OpenStream(ctx context.Context, cfg Config) (Stream, error) {
	header := http.Header{}
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	conn, resp, err := t.dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: websocket handshake returned status %d", ErrProtocol, resp.StatusCode)
		}
		return nil, classify(err)
	}

	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) ReadChunk(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, classify(err)
	}
	return data, nil
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
