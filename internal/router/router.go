package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/state"
)

// Verifier validates a bearer token and resolves the principal it carries.
type Verifier interface {
	Verify(token string) (string, error)
}

// Router handles inbound WebSocket messages. Its only real job is the
// authentication handshake: the first message on a connection must be an
// AUTH request; everything else during the handshake window is a failure.
// The protocol defines no client-to-server messages after that, so frames
// from authenticated connections are logged and dropped.
type Router struct {
	logger   *slog.Logger
	registry state.Registry
	verifier Verifier
}

func New(logger *slog.Logger, registry state.Registry, verifier Verifier) *Router {
	return &Router{
		logger:   logger.With(slog.String("component", "router")),
		registry: registry,
		verifier: verifier,
	}
}

// HandleMessage is wired as the transport's inbound message callback.
func (r *Router) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	conn, ok := r.registry.Get(connID)
	if !ok {
		// closed between read and dispatch
		return
	}

	if conn.Authenticated {
		r.logger.Debug("ignoring message from authenticated connection",
			slog.String("connID", connID.String()),
			slog.String("type", gjson.GetBytes(msg, "type").String()),
		)
		return
	}

	r.handleHandshake(conn, msg)
}

func (r *Router) handleHandshake(conn state.Connection, msg []byte) {
	if !gjson.ValidBytes(msg) {
		r.logger.Warn("malformed handshake message", slog.String("connID", conn.ID.String()))
		r.reject(conn)
		return
	}
	if gjson.GetBytes(msg, "type").String() != protocol.TypeAuth {
		r.logger.Warn("expected auth request as first message",
			slog.String("connID", conn.ID.String()),
			slog.String("type", gjson.GetBytes(msg, "type").String()),
		)
		r.reject(conn)
		return
	}

	var req protocol.AuthRequest
	if err := json.Unmarshal(msg, &req); err != nil || req.Token == "" {
		r.reject(conn)
		return
	}

	principal, err := r.verifier.Verify(req.Token)
	if err != nil {
		r.logger.Warn("websocket auth failed",
			slog.String("connID", conn.ID.String()),
			slog.Any("error", err),
		)
		r.reject(conn)
		return
	}

	r.registry.MarkAuthenticated(conn.ID, principal)
	r.send(conn, protocol.ServerMessage{
		Type:    protocol.TypeAuthSuccess,
		Message: "Authentication successful",
	})
	r.logger.Info("websocket client authenticated",
		slog.String("connID", conn.ID.String()),
		slog.String("principal", principal),
	)
}

// reject sends the failure notice and forces the connection closed. One
// notice per attempt; the server never retries the handshake.
func (r *Router) reject(conn state.Connection) {
	r.send(conn, protocol.ServerMessage{
		Type:    protocol.TypeAuthFailed,
		Message: "Invalid token",
	})
	conn.Transport.Close(errors.New("authentication failed"))
}

func (r *Router) send(conn state.Connection, msg protocol.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to serialize server message", slog.Any("error", err))
		return
	}
	conn.Transport.Send(payload)
}
