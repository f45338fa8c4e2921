package client

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
)

// Collection is the locally reconciled view of the product list: unique by
// identifier, ordered newest first. Every mutator is idempotent and leaves
// the collection fully ordered, so applying a duplicated event stream is
// harmless. Readers always observe either the pre- or post-mutation state.
type Collection struct {
	mu    sync.RWMutex
	items []*protocol.Product
}

func NewCollection() *Collection {
	return &Collection{}
}

// Items returns a copy of the current view.
func (c *Collection) Items() []*protocol.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*protocol.Product, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ApplySnapshot replaces the whole view with the authoritative fetch
// result. Duplicate identifiers in the input keep their first occurrence.
func (c *Collection) ApplySnapshot(items []*protocol.Product) {
	next := make([]*protocol.Product, 0, len(items))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		next = append(next, item)
	}
	sortProducts(next)

	c.mu.Lock()
	c.items = next
	c.mu.Unlock()
}

// ApplyCreated inserts the item unless its identifier is already present;
// a duplicate create (redelivery, or a race with the snapshot fetch that
// already contained it) is a no-op.
func (c *Collection) ApplyCreated(p *protocol.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexOf(p.ID) >= 0 {
		return
	}
	next := make([]*protocol.Product, len(c.items), len(c.items)+1)
	copy(next, c.items)
	next = append(next, p)
	sortProducts(next)
	c.items = next
}

// ApplyUpdated replaces the matching entry in place. An update for an
// absent identifier is dropped: an update implies prior existence, and a
// client that missed the create recovers via the next full snapshot.
func (c *Collection) ApplyUpdated(p *protocol.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(p.ID)
	if i < 0 {
		return
	}
	next := make([]*protocol.Product, len(c.items))
	copy(next, c.items)
	next[i] = p
	sortProducts(next)
	c.items = next
}

// ApplyDeleted removes the entry if present.
func (c *Collection) ApplyDeleted(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return
	}
	next := make([]*protocol.Product, 0, len(c.items)-1)
	next = append(next, c.items[:i]...)
	next = append(next, c.items[i+1:]...)
	c.items = next
}

// Clear empties the view on logout or teardown.
func (c *Collection) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

// indexOf must be called with the lock held.
func (c *Collection) indexOf(id uuid.UUID) int {
	for i, item := range c.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func sortProducts(items []*protocol.Product) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Before(items[j])
	})
}
