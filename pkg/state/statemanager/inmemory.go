package statemanager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/state"
	"github.com/google/uuid"
)

// InMemoryRegistry is the per-process connection registry. A single coarse
// lock guards the map; the registry is not a hot path. Snapshots copy the
// eligible set so fan-out iteration happens outside the lock.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*state.Connection

	logger *slog.Logger
}

func NewInMemoryRegistry(logger *slog.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		conns:  make(map[uuid.UUID]*state.Connection),
		logger: logger.With(slog.String("component", "registry_inmemory")),
	}
}

// compile-time check to ensure InMemoryRegistry implements Registry.
var _ state.Registry = (*InMemoryRegistry)(nil)

func (r *InMemoryRegistry) Register(t state.Transport, ipAddr string) *state.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn := &state.Connection{
		ID:        t.ID(),
		IPAddress: ipAddr,
		Transport: t,
		CreatedAt: time.Now(),
	}
	r.conns[conn.ID] = conn
	r.logger.Debug("connection registered", slog.String("connID", conn.ID.String()), slog.String("ip", ipAddr))
	return conn
}

func (r *InMemoryRegistry) MarkAuthenticated(connID uuid.UUID, principal string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		// connection closed before the handshake finished
		return
	}
	conn.Authenticated = true
	conn.Principal = principal
	r.logger.Debug("connection authenticated", slog.String("connID", connID.String()), slog.String("principal", principal))
}

func (r *InMemoryRegistry) Deregister(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return
	}
	delete(r.conns, connID)
	r.logger.Debug("connection deregistered", slog.String("connID", connID.String()))
}

func (r *InMemoryRegistry) Get(connID uuid.UUID) (state.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	if !ok {
		return state.Connection{}, false
	}
	return *conn, true
}

func (r *InMemoryRegistry) SnapshotOpenAuthenticated() []*state.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*state.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if conn.Authenticated {
			snapshot = append(snapshot, conn)
		}
	}
	return snapshot
}

func (r *InMemoryRegistry) SnapshotAll() []*state.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*state.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

func (r *InMemoryRegistry) CountByIP(ipAddr string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, conn := range r.conns {
		if conn.IPAddress == ipAddr {
			count++
		}
	}
	return count
}
