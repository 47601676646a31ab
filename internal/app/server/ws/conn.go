package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Options tunes a single socket.
type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 512 * 1024,
	}
}

type WebSocket struct {
	*websocket.Conn
	opts Options
	once sync.Once
}

// NewWebSocket replaces non-positive options with their defaults.
func NewWebSocket(conn *websocket.Conn, opts Options) *WebSocket {
	return &WebSocket{Conn: conn, opts: opts.withDefaults()}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	return o
}

// The write helpers must only be called from one goroutine at a time.

func (w *WebSocket) WriteMessage(data []byte) error {
	_ = w.Conn.SetWriteDeadline(time.Now().Add(w.opts.WriteWait))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) WritePing() error {
	return w.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.opts.WriteWait))
}

func (w *WebSocket) WriteClose(code int, text string) error {
	msg := websocket.FormatCloseMessage(code, text)
	return w.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.opts.WriteWait))
}

// ReadLoop delivers every non-empty text frame to onMsg on the calling
// goroutine until the peer goes away, the pong deadline passes or the socket is
// closed locally.
func (w *WebSocket) ReadLoop(ctx context.Context, log *slog.Logger, onMsg func([]byte)) {
	w.Conn.SetReadLimit(w.opts.MaxMessageSize)
	_ = w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	w.Conn.SetPongHandler(func(string) error {
		return w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	})
	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				log.WarnContext(ctx, "ws - read loop - frame exceeds read limit", "limit", w.opts.MaxMessageSize)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived):
				log.WarnContext(ctx, "ws - read loop - unexpected close", "err", err)
			default:
				log.DebugContext(ctx, "ws - read loop - closed", "err", err)
			}
			return
		}
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Close() {
	w.once.Do(func() {
		_ = w.Conn.Close()
	})
}
