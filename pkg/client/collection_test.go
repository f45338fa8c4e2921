package client_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/client"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newProduct(name string, createdOffset time.Duration) *protocol.Product {
	return &protocol.Product{
		ID:        uuid.New(),
		Name:      name,
		Category:  protocol.CategoryPhone,
		Price:     100,
		CreatedAt: baseTime.Add(createdOffset),
	}
}

func assertOrdered(t *testing.T, c *client.Collection) {
	t.Helper()
	items := c.Items()
	for i := 1; i < len(items); i++ {
		if items[i].Before(items[i-1]) {
			t.Fatalf("collection out of order at index %d: %s before %s",
				i, items[i].Name, items[i-1].Name)
		}
	}
}

func TestApplySnapshotReplacesAndSorts(t *testing.T) {
	c := client.NewCollection()
	c.ApplyCreated(newProduct("stale", 0))

	oldest := newProduct("oldest", 1*time.Minute)
	newest := newProduct("newest", 3*time.Minute)
	middle := newProduct("middle", 2*time.Minute)
	c.ApplySnapshot([]*protocol.Product{oldest, newest, middle})

	items := c.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Name != "newest" || items[1].Name != "middle" || items[2].Name != "oldest" {
		t.Errorf("unexpected order: %s, %s, %s", items[0].Name, items[1].Name, items[2].Name)
	}
}

func TestSnapshotDropsDuplicateIdentifiers(t *testing.T) {
	c := client.NewCollection()
	p := newProduct("first", time.Minute)
	dup := *p
	dup.Name = "second"

	c.ApplySnapshot([]*protocol.Product{p, &dup})

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Name != "first" {
		t.Error("first occurrence must win on duplicate identifiers")
	}
}

func TestCreateAfterSnapshotOrdering(t *testing.T) {
	c := client.NewCollection()
	p1 := newProduct("one", 1*time.Minute)
	p2 := newProduct("two", 2*time.Minute)
	c.ApplySnapshot([]*protocol.Product{p1, p2})

	p3 := newProduct("three", 3*time.Minute)
	c.ApplyCreated(p3)

	items := c.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != p3.ID || items[1].ID != p2.ID || items[2].ID != p1.ID {
		t.Error("expected order [three, two, one]")
	}
}

func TestDuplicateCreateIsFirstWriteWins(t *testing.T) {
	c := client.NewCollection()
	p := newProduct("original", time.Minute)
	c.ApplyCreated(p)

	replay := *p
	replay.Name = "imposter"
	c.ApplyCreated(&replay)

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Name != "original" {
		t.Error("duplicate create must not overwrite the existing entry")
	}
}

func TestCreateForSnapshotMemberDoesNotGrow(t *testing.T) {
	c := client.NewCollection()
	p1 := newProduct("one", 1*time.Minute)
	p2 := newProduct("two", 2*time.Minute)
	c.ApplySnapshot([]*protocol.Product{p1, p2})

	// The live create event races with a snapshot that already contained
	// the item; the collection size must not change.
	c.ApplyCreated(p1)
	c.ApplyCreated(p2)

	if c.Len() != 2 {
		t.Errorf("expected 2 items, got %d", c.Len())
	}
}

func TestUpdateReplacesInPlace(t *testing.T) {
	c := client.NewCollection()
	p := newProduct("before", time.Minute)
	c.ApplyCreated(p)

	updated := *p
	updated.Name = "after"
	updated.Price = 250
	c.ApplyUpdated(&updated)

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Name != "after" || items[0].Price != 250 {
		t.Error("update did not replace the entry")
	}
}

func TestUpdateForAbsentIdentifierIsDropped(t *testing.T) {
	c := client.NewCollection()
	c.ApplyCreated(newProduct("existing", time.Minute))

	c.ApplyUpdated(newProduct("ghost", 2*time.Minute))

	items := c.Items()
	if len(items) != 1 || items[0].Name != "existing" {
		t.Error("update for an unknown identifier must leave the collection unchanged")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	c := client.NewCollection()
	p := newProduct("doomed", time.Minute)
	c.ApplyCreated(p)

	c.ApplyDeleted(p.ID)
	if c.Len() != 0 {
		t.Fatalf("expected empty collection, got %d items", c.Len())
	}

	// Absent identifier: no-op.
	c.ApplyDeleted(p.ID)
	c.ApplyDeleted(uuid.New())
	if c.Len() != 0 {
		t.Error("delete of an absent identifier must be a no-op")
	}
}

func TestTimestampTieBrokenByIdentifier(t *testing.T) {
	c := client.NewCollection()
	a := newProduct("a", time.Minute)
	b := newProduct("b", time.Minute) // same timestamp
	c.ApplySnapshot([]*protocol.Product{a, b})

	first := c.Items()
	c.ApplySnapshot([]*protocol.Product{b, a}) // reversed input
	second := c.Items()

	if first[0].ID != second[0].ID || first[1].ID != second[1].ID {
		t.Error("equal timestamps must order deterministically by identifier")
	}
}

func TestEventSequenceIsIdempotent(t *testing.T) {
	p1 := newProduct("one", 1*time.Minute)
	p2 := newProduct("two", 2*time.Minute)
	p3 := newProduct("three", 3*time.Minute)
	updated := *p2
	updated.Name = "two-revised"

	apply := func(c *client.Collection) {
		c.ApplyCreated(p1)
		c.ApplyCreated(p2)
		c.ApplyUpdated(&updated)
		c.ApplyCreated(p3)
		c.ApplyDeleted(p1.ID)
	}

	c := client.NewCollection()
	apply(c)
	once := c.Items()
	apply(c) // replay the identical sequence
	twice := c.Items()

	if len(once) != len(twice) {
		t.Fatalf("replay changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID || once[i].Name != twice[i].Name {
			t.Errorf("replay diverged at index %d", i)
		}
	}
}

func TestOrderedAfterEveryMutation(t *testing.T) {
	c := client.NewCollection()
	p1 := newProduct("one", 5*time.Minute)
	p2 := newProduct("two", 1*time.Minute)
	p3 := newProduct("three", 3*time.Minute)

	c.ApplyCreated(p1)
	assertOrdered(t, c)
	c.ApplyCreated(p2)
	assertOrdered(t, c)
	c.ApplySnapshot([]*protocol.Product{p3, p1, p2})
	assertOrdered(t, c)
	c.ApplyCreated(newProduct("four", 4*time.Minute))
	assertOrdered(t, c)
	revised := *p2
	revised.Name = "two-revised"
	c.ApplyUpdated(&revised)
	assertOrdered(t, c)
	c.ApplyDeleted(p3.ID)
	assertOrdered(t, c)
}

func TestClear(t *testing.T) {
	c := client.NewCollection()
	c.ApplyCreated(newProduct("one", time.Minute))
	c.Clear()
	if c.Len() != 0 {
		t.Error("clear must empty the collection")
	}
}
