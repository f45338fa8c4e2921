package hub_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/ImedBousakhria/fluffy-lamp/internal/hub"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/state"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/state/statemanager"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeTransport struct {
	id   uuid.UUID
	sent [][]byte
}

func newFakeTransport() *fakeTransport { return &fakeTransport{id: uuid.New()} }
func (f *fakeTransport) ID() uuid.UUID { return f.id }
func (f *fakeTransport) Send(msg []byte) {
	f.sent = append(f.sent, msg)
}
func (f *fakeTransport) Close(err error) {}

var _ state.Transport = (*fakeTransport)(nil)

func TestPublishWithNoEligibleConnections(t *testing.T) {
	registry := statemanager.NewInMemoryRegistry(newTestLogger())
	h := hub.New(registry, newTestLogger())

	// Registered but unauthenticated: must not receive anything, and the
	// publish itself must return normally.
	ft := newFakeTransport()
	registry.Register(ft, "127.0.0.1")

	h.Publish(protocol.ChangeEvent{Kind: protocol.EventDeleted, ProductID: uuid.New()})

	if len(ft.sent) != 0 {
		t.Errorf("unauthenticated connection received %d frames", len(ft.sent))
	}
}

func TestPublishFansOutToAuthenticatedConnections(t *testing.T) {
	registry := statemanager.NewInMemoryRegistry(newTestLogger())
	h := hub.New(registry, newTestLogger())

	authed1 := newFakeTransport()
	authed2 := newFakeTransport()
	pending := newFakeTransport()
	registry.Register(authed1, "1.1.1.1")
	registry.Register(authed2, "2.2.2.2")
	registry.Register(pending, "3.3.3.3")
	registry.MarkAuthenticated(authed1.ID(), "user-1")
	registry.MarkAuthenticated(authed2.ID(), "user-2")

	product := &protocol.Product{ID: uuid.New(), Name: "Pixel 9", Category: protocol.CategoryPhone, Price: 799}
	h.Publish(protocol.ChangeEvent{Kind: protocol.EventCreated, ProductID: product.ID, Product: product})

	for _, ft := range []*fakeTransport{authed1, authed2} {
		if len(ft.sent) != 1 {
			t.Fatalf("expected 1 frame, got %d", len(ft.sent))
		}
		var msg protocol.ServerMessage
		if err := json.Unmarshal(ft.sent[0], &msg); err != nil {
			t.Fatalf("frame is not valid JSON: %v", err)
		}
		if msg.Type != protocol.TypeProductCreated {
			t.Errorf("expected type %s, got %s", protocol.TypeProductCreated, msg.Type)
		}
		if msg.Product == nil || msg.Product.ID != product.ID {
			t.Error("frame does not carry the product payload")
		}
	}
	if len(pending.sent) != 0 {
		t.Errorf("pending connection received %d frames", len(pending.sent))
	}
}

func TestPublishOrderPerConnection(t *testing.T) {
	registry := statemanager.NewInMemoryRegistry(newTestLogger())
	h := hub.New(registry, newTestLogger())

	ft := newFakeTransport()
	registry.Register(ft, "1.1.1.1")
	registry.MarkAuthenticated(ft.ID(), "user-1")

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		h.Publish(protocol.ChangeEvent{Kind: protocol.EventDeleted, ProductID: id})
	}

	if len(ft.sent) != len(ids) {
		t.Fatalf("expected %d frames, got %d", len(ids), len(ft.sent))
	}
	for i, raw := range ft.sent {
		var msg protocol.ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.ID != ids[i].String() {
			t.Errorf("frame %d out of order: expected %s, got %s", i, ids[i], msg.ID)
		}
	}
}

func TestDeletedEnvelopeCarriesOnlyID(t *testing.T) {
	id := uuid.New()
	envelope := protocol.ChangeEvent{Kind: protocol.EventDeleted, ProductID: id}.Envelope()
	if envelope.Type != protocol.TypeProductDeleted {
		t.Errorf("expected %s, got %s", protocol.TypeProductDeleted, envelope.Type)
	}
	if envelope.ID != id.String() || envelope.Product != nil {
		t.Error("deleted envelope must carry the ID and no payload")
	}
}
