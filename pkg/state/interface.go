package state

import "github.com/google/uuid"

// Transport is the send side of a live connection as the registry sees it.
// *transport.Connection satisfies this; tests substitute fakes.
type Transport interface {
	ID() uuid.UUID
	Send(msg []byte)
	Close(err error)
}

// Registry tracks every live connection and its authentication state.
// Operations on an unknown connection ID are no-ops.
type Registry interface {
	// Register adds a newly opened connection in the unauthenticated state.
	Register(t Transport, ipAddr string) *Connection
	// MarkAuthenticated promotes a connection and records its principal.
	MarkAuthenticated(connID uuid.UUID, principal string)
	// Deregister removes a connection on close. Idempotent.
	Deregister(connID uuid.UUID)
	// Get returns a copy of the connection's registry entry, so callers
	// can inspect the authentication state without holding the lock.
	Get(connID uuid.UUID) (Connection, bool)
	// SnapshotOpenAuthenticated returns a point-in-time copy of the
	// connections eligible for broadcast. Iterating the result is not
	// affected by concurrent registration or removal.
	SnapshotOpenAuthenticated() []*Connection
	// SnapshotAll returns a point-in-time copy of every registered
	// connection, authenticated or not. Used for shutdown and sweeps.
	SnapshotAll() []*Connection
	CountByIP(ipAddr string) int
}
