package client

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
)

// Reconciler merges the live event stream into a Collection. Malformed
// frames and events referencing unknown identifiers are dropped, never
// fatal: a missed item is recovered by the next full snapshot fetch.
type Reconciler struct {
	collection *Collection
	logger     *slog.Logger
}

func NewReconciler(collection *Collection, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		collection: collection,
		logger:     logger.With(slog.String("component", "reconciler")),
	}
}

func (r *Reconciler) Collection() *Collection {
	return r.collection
}

// HandleMessage is wired as the sync agent's inbound message callback.
func (r *Reconciler) HandleMessage(msg []byte) {
	msgType := gjson.GetBytes(msg, "type").String()
	switch msgType {
	case protocol.TypeProductCreated, protocol.TypeProductUpdated:
		var envelope protocol.ServerMessage
		if err := json.Unmarshal(msg, &envelope); err != nil || envelope.Product == nil {
			r.logger.Warn("dropping malformed product event", slog.String("type", msgType))
			return
		}
		if msgType == protocol.TypeProductCreated {
			r.collection.ApplyCreated(envelope.Product)
		} else {
			r.collection.ApplyUpdated(envelope.Product)
		}
		r.logger.Debug("applied product event",
			slog.String("type", msgType),
			slog.String("productID", envelope.Product.ID.String()),
		)
	case protocol.TypeProductDeleted:
		id, err := uuid.Parse(gjson.GetBytes(msg, "id").String())
		if err != nil {
			r.logger.Warn("dropping product delete with bad identifier")
			return
		}
		r.collection.ApplyDeleted(id)
		r.logger.Debug("applied product delete", slog.String("productID", id.String()))
	default:
		r.logger.Debug("ignoring message", slog.String("type", msgType))
	}
}
