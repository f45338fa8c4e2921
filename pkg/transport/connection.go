package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// MessageHandler is invoked for every inbound text/binary frame.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

// CloseHandler is invoked exactly once when the connection terminates.
type CloseHandler func(connID uuid.UUID, err error)

type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Connection wraps a single WebSocket with read/write pump goroutines.
// Send and Close are safe for concurrent use.
type Connection struct {
	id   uuid.UUID
	ws   *websocket.Conn
	cfg  Config
	send chan []byte

	onMessage MessageHandler
	onClose   CloseHandler

	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	started   atomic.Bool

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, ws *websocket.Conn, cfg Config, logger *slog.Logger) *Connection {
	id := uuid.New()
	ctx, cancel := context.WithCancel(parentCtx)
	wg.Add(1) // released by Close
	return &Connection{
		id:     id,
		ws:     ws,
		cfg:    cfg,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		wg:     wg,
		logger: logger.With(slog.String("connID", id.String())),
	}
}

func (c *Connection) SetOnMessage(h MessageHandler) { c.onMessage = h }
func (c *Connection) SetOnClose(h CloseHandler)     { c.onClose = h }

// Run starts the pumps. Handlers must be set before calling Run.
func (c *Connection) Run() {
	c.started.Store(true)
	go c.readPump()
	go c.writePump()
	c.logger.Debug("transport connection running")
}

func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		readCtx := c.ctx
		cancelRead := func() {}
		if c.cfg.ReadTimeout > 0 {
			readCtx, cancelRead = context.WithTimeout(c.ctx, c.cfg.ReadTimeout)
		}
		typ, r, err := c.ws.Reader(readCtx)
		if err != nil {
			cancelRead()
			readErr = err
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			cancelRead()
			continue
		}
		msg, err := io.ReadAll(r)
		cancelRead()
		if err != nil {
			readErr = err
			return
		}
		if c.onMessage != nil {
			c.onMessage(c.ctx, c.id, msg)
		}
	}
}

func (c *Connection) writePump() {
	var writeErr error
	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				writeErr = err
				c.ws.Close(websocket.StatusNormalClosure, "")
				return
			}
		case <-c.ctx.Done():
			// Flush frames queued before Close so a final notice (e.g. an
			// auth failure) still reaches the peer.
			c.drainSend()
			c.ws.Close(websocket.StatusNormalClosure, "shutting down")
			return
		}
	}
}

// write performs one frame write bounded by the configured write timeout.
// It deliberately does not use the connection context: a frame accepted by
// Send is written even if the connection is tearing down.
func (c *Connection) write(msg []byte) error {
	ctx := context.Background()
	cancel := func() {}
	if c.cfg.WriteTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
	}
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, msg)
}

func (c *Connection) drainSend() {
	for {
		select {
		case msg := <-c.send:
			if c.write(msg) != nil {
				return
			}
		default:
			return
		}
	}
}

// Send enqueues a frame for delivery. Frames enqueued by sequential calls
// are written in order. A send on a closing connection is dropped.
func (c *Connection) Send(msg []byte) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
		c.logger.Debug("dropped send on closed connection")
	}
}

// Close tears down the connection and fires the close handler. Safe to call
// multiple times; only the first call has effect.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		c.logger.Debug("transport connection closing", slog.Any("reason", err))
		c.cancel()
		// When the pumps are running the write pump owns the final
		// websocket close so it can flush queued frames first.
		if c.ws != nil && !c.started.Load() {
			c.ws.Close(websocket.StatusNormalClosure, "")
		}
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		c.wg.Done()
		close(c.done)
	})
}

// Done is closed when the connection has fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) ID() uuid.UUID {
	return c.id
}
