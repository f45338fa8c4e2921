package protocol

import "github.com/google/uuid"

// Wire message discriminators. Every frame is a JSON object with a "type"
// field holding one of these values.
const (
	TypeConnected      = "CONNECTED"
	TypeAuth           = "AUTH"
	TypeAuthSuccess    = "AUTH_SUCCESS"
	TypeAuthFailed     = "AUTH_FAILED"
	TypeProductCreated = "PRODUCT_CREATED"
	TypeProductUpdated = "PRODUCT_UPDATED"
	TypeProductDeleted = "PRODUCT_DELETED"
)

// ServerMessage is the envelope for every server-to-client frame. Fields
// not used by a given message type are omitted from the JSON.
type ServerMessage struct {
	Type    string   `json:"type"`
	Message string   `json:"message,omitempty"`
	Product *Product `json:"product,omitempty"`
	ID      string   `json:"id,omitempty"`
}

// AuthRequest is the only client-to-server frame.
type AuthRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// EventKind tags a ChangeEvent.
type EventKind int

const (
	EventCreated EventKind = iota
	EventUpdated
	EventDeleted
)

// ChangeEvent describes one mutation of the product collection. Created and
// Updated carry the full record; Deleted carries only the identifier.
// Immutable once constructed.
type ChangeEvent struct {
	Kind      EventKind
	ProductID uuid.UUID
	Product   *Product
}

// Envelope renders the event as its wire message.
func (e ChangeEvent) Envelope() ServerMessage {
	switch e.Kind {
	case EventCreated:
		return ServerMessage{Type: TypeProductCreated, Product: e.Product}
	case EventUpdated:
		return ServerMessage{Type: TypeProductUpdated, Product: e.Product}
	default:
		return ServerMessage{Type: TypeProductDeleted, ID: e.ProductID.String()}
	}
}
