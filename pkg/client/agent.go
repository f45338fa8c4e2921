package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
)

// ErrNotOpen is returned by Send when the connection is not established;
// nothing is buffered for later delivery.
var ErrNotOpen = errors.New("agent connection is not open")

// State is the agent's connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateOpen
	StateClosedPendingRetry
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateOpen:
		return "open"
	case StateClosedPendingRetry:
		return "closed-pending-retry"
	default:
		return "unknown"
	}
}

type AgentConfig struct {
	// URL is the ws:// endpoint.
	URL string
	// Token, when present, is sent as an AUTH request right after the
	// transport opens.
	Token string
	// RetryDelay is the fixed wait between reconnect attempts.
	RetryDelay time.Duration
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
}

// MessageHandler receives inbound frames while the agent is Open.
type MessageHandler func(msg []byte)

// Agent owns one WebSocket connection's lifecycle: connect, authenticate,
// receive, detect closure and reconnect after a fixed delay, forever, until
// Close is called. State transitions are serialized by the agent's mutex.
type Agent struct {
	cfg    AgentConfig
	logger *slog.Logger

	onMessage MessageHandler
	onState   func(State)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	ws         *websocket.Conn
	retryTimer *time.Timer
}

func NewAgent(cfg AgentConfig, logger *slog.Logger) *Agent {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sync_agent")),
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

// SetOnMessage wires the handler for frames received while Open.
// Must be called before Connect.
func (a *Agent) SetOnMessage(h MessageHandler) { a.onMessage = h }

// SetOnStateChange wires an observer for state transitions. The observer
// runs with the agent lock held and must not call back into the agent.
// Must be called before Connect.
func (a *Agent) SetOnStateChange(h func(State)) { a.onState = h }

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Connect starts a connection attempt unless one is already underway or
// the agent has been torn down.
func (a *Agent) Connect() {
	a.mu.Lock()
	if a.ctx.Err() != nil || (a.state != StateIdle && a.state != StateClosedPendingRetry) {
		a.mu.Unlock()
		return
	}
	if a.retryTimer != nil {
		a.retryTimer.Stop()
		a.retryTimer = nil
	}
	a.setStateLocked(StateConnecting)
	a.mu.Unlock()

	go a.run()
}

// Send writes a frame if and only if the agent is Open. Otherwise it
// reports ErrNotOpen so the caller knows the message was not sent.
func (a *Agent) Send(msg []byte) error {
	a.mu.Lock()
	if a.state != StateOpen || a.ws == nil {
		a.mu.Unlock()
		return ErrNotOpen
	}
	ws := a.ws
	a.mu.Unlock()
	return ws.Write(a.ctx, websocket.MessageText, msg)
}

// Close tears the agent down: the pending retry timer (if any) is stopped
// before returning, and no reconnect attempt fires afterwards.
func (a *Agent) Close() {
	a.mu.Lock()
	a.cancel()
	if a.retryTimer != nil {
		a.retryTimer.Stop()
		a.retryTimer = nil
	}
	ws := a.ws
	a.ws = nil
	a.setStateLocked(StateIdle)
	a.mu.Unlock()

	if ws != nil {
		ws.Close(websocket.StatusNormalClosure, "client teardown")
	}
	a.logger.Info("sync agent stopped")
}

func (a *Agent) run() {
	dialCtx, cancel := context.WithTimeout(a.ctx, a.cfg.DialTimeout)
	ws, _, err := websocket.Dial(dialCtx, a.cfg.URL, nil)
	cancel()
	if err != nil {
		a.logger.Warn("connection attempt failed", slog.Any("error", err))
		a.scheduleRetry()
		return
	}

	a.mu.Lock()
	if a.ctx.Err() != nil {
		// torn down while dialing
		a.mu.Unlock()
		ws.Close(websocket.StatusNormalClosure, "client teardown")
		return
	}
	a.ws = ws
	if a.cfg.Token != "" {
		a.setStateLocked(StateAuthenticating)
	} else {
		// only reachable when no token exists locally
		a.setStateLocked(StateOpen)
	}
	a.mu.Unlock()

	if a.cfg.Token != "" {
		payload, _ := json.Marshal(protocol.AuthRequest{Type: protocol.TypeAuth, Token: a.cfg.Token})
		if err := ws.Write(a.ctx, websocket.MessageText, payload); err != nil {
			a.logger.Warn("failed to send auth request", slog.Any("error", err))
			ws.Close(websocket.StatusNormalClosure, "")
			a.handleClosed(err)
			return
		}
	}

	a.readLoop(ws)
}

func (a *Agent) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(a.ctx)
		if err != nil {
			a.handleClosed(err)
			return
		}
		a.dispatch(data)
	}
}

func (a *Agent) dispatch(msg []byte) {
	msgType := gjson.GetBytes(msg, "type").String()

	switch a.State() {
	case StateAuthenticating:
		switch msgType {
		case protocol.TypeAuthSuccess:
			a.mu.Lock()
			a.setStateLocked(StateOpen)
			a.mu.Unlock()
			a.logger.Info("authenticated")
		case protocol.TypeAuthFailed:
			// close the transport and let the close path drive the retry
			a.logger.Warn("authentication rejected by server")
			a.closeTransport()
		case protocol.TypeConnected:
			// server greeting, nothing to do
		default:
			a.logger.Debug("ignoring pre-auth message", slog.String("type", msgType))
		}
	case StateOpen:
		if a.onMessage != nil {
			a.onMessage(msg)
		}
	default:
		a.logger.Debug("ignoring message outside open state", slog.String("type", msgType))
	}
}

func (a *Agent) closeTransport() {
	a.mu.Lock()
	ws := a.ws
	a.mu.Unlock()
	if ws != nil {
		ws.Close(websocket.StatusNormalClosure, "")
	}
}

// handleClosed runs when the transport drops for any reason other than
// teardown: arm the fixed-delay reconnect timer.
func (a *Agent) handleClosed(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ws = nil
	if a.ctx.Err() != nil {
		a.setStateLocked(StateIdle)
		return
	}
	a.setStateLocked(StateClosedPendingRetry)
	a.retryTimer = time.AfterFunc(a.cfg.RetryDelay, a.Connect)
	a.logger.Info("connection closed, reconnect scheduled",
		slog.Any("reason", err),
		slog.Duration("delay", a.cfg.RetryDelay),
	)
}

func (a *Agent) scheduleRetry() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx.Err() != nil {
		a.setStateLocked(StateIdle)
		return
	}
	a.setStateLocked(StateClosedPendingRetry)
	a.retryTimer = time.AfterFunc(a.cfg.RetryDelay, a.Connect)
}

// setStateLocked must be called with the mutex held.
func (a *Agent) setStateLocked(next State) {
	if a.state == next {
		return
	}
	a.state = next
	if a.onState != nil {
		a.onState(next)
	}
}
