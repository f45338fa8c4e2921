package state

import (
	"time"

	"github.com/google/uuid"
)

// Connection is the registry's view of one transport-layer connection.
// Presence in the registry means the transport is open; Deregister removes
// the entry when the transport closes.
type Connection struct {
	ID            uuid.UUID
	IPAddress     string
	Transport     Transport
	Authenticated bool
	Principal     string // set once authenticated
	CreatedAt     time.Time
}
