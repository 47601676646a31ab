package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/masterboy376/cphere/internal/core/contracts"
)

// State is the lifecycle position of one connection.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RuntimeClient owns the write side of one socket. Frames pushed from other
// goroutines are queued on a bounded channel and written by a single writer.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	log    *slog.Logger

	id     string
	userID string
	out    chan []byte
	stop   chan struct{}
	done   chan struct{} // closed when the writer exits
	state  atomic.Int32
	reason atomic.Int32

	stopOnce  sync.Once
	closeOnce sync.Once
}

func NewClient(
	parent context.Context,
	log *slog.Logger,
	ws *WebSocket,
	userID string,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		log:    log.With("conn_id", id, "user_id", userID),
		id:     id,
		userID: userID,
		out:    make(chan []byte, max(ws.opts.SendBuffer, 1)),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string               { return c.id }
func (c *RuntimeClient) UserID() string           { return c.userID }
func (c *RuntimeClient) State() State             { return State(c.state.Load()) }
func (c *RuntimeClient) Context() context.Context { return c.ctx }
func (c *RuntimeClient) Logger() *slog.Logger     { return c.log }

// StopReason is zero until Stop has been called.
func (c *RuntimeClient) StopReason() contracts.StopReason {
	return contracts.StopReason(c.reason.Load())
}

// MarkActive moves a connecting client to active. It fails if the client was
// stopped before registration finished.
func (c *RuntimeClient) MarkActive() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateActive))
}

// BeginClose moves the client to closing unless it is already further along.
func (c *RuntimeClient) BeginClose() {
	for {
		cur := c.state.Load()
		if cur >= int32(StateClosing) {
			return
		}
		if c.state.CompareAndSwap(cur, int32(StateClosing)) {
			return
		}
	}
}

// Push never blocks. A full queue means the peer is not keeping up, and the
// frame is dropped.
func (c *RuntimeClient) Push(data []byte) bool {
	if c.State() >= StateClosing {
		return false
	}
	select {
	case <-c.ctx.Done():
		return false
	case c.out <- data:
		return true
	default:
		c.log.Warn("ws client - push - send buffer full, frame dropped", "size", len(data))
		return false
	}
}

// Stop makes the writer send a close frame carrying reason and shut the socket,
// which in turn ends the read loop.
func (c *RuntimeClient) Stop(reason contracts.StopReason) {
	c.stopOnce.Do(func() {
		c.reason.Store(int32(reason))
		c.BeginClose()
		close(c.stop)
	})
}

// Close is the final step of teardown and is safe to call more than once.
// A stopped client gets up to WriteWait for its close frame to go out.
func (c *RuntimeClient) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		if c.StopReason() != 0 {
			select {
			case <-c.done:
			case <-time.After(c.ws.opts.WriteWait):
			}
		}
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer close(c.done)
	ticker := time.NewTicker(c.ws.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.stop:
			reason := c.StopReason()
			if err := c.ws.WriteClose(websocket.CloseNormalClosure, reason.String()); err != nil {
				c.log.Debug("ws client - write loop - close frame failed", "err", err)
			}
			c.log.Info("ws client - write loop - stopped", "reason", reason.String())
			c.ws.Close()
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				c.log.Warn("ws client - write loop - write failed", "err", err)
				c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WritePing(); err != nil {
				c.log.Debug("ws client - write loop - ping failed", "err", err)
				c.ws.Close()
				return
			}
		}
	}
}
