package hub

import (
	"encoding/json"
	"log/slog"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/state"
)

// Hub fans change events out to every open, authenticated connection.
type Hub struct {
	registry state.Registry
	logger   *slog.Logger
}

func New(registry state.Registry, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger.With(slog.String("component", "hub")),
	}
}

// Publish serializes the event once and writes it to the current
// open-authenticated snapshot. Delivery is best effort per connection: a
// connection that closes between snapshot and write simply drops the frame.
// Events published by sequential calls reach any given connection in
// publish order.
func (h *Hub) Publish(event protocol.ChangeEvent) {
	envelope := event.Envelope()
	payload, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("failed to serialize change event", slog.Any("error", err))
		return
	}

	conns := h.registry.SnapshotOpenAuthenticated()
	for _, conn := range conns {
		conn.Transport.Send(payload)
	}
	h.logger.Debug("event published",
		slog.String("type", envelope.Type),
		slog.String("productID", event.ProductID.String()),
		slog.Int("recipients", len(conns)),
	)
}
