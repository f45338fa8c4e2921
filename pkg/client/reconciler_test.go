package client_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/client"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func frame(t *testing.T, msg protocol.ServerMessage) []byte {
	t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestReconcilerAppliesEvents(t *testing.T) {
	collection := client.NewCollection()
	r := client.NewReconciler(collection, newTestLogger())

	p := &protocol.Product{
		ID:        uuid.New(),
		Name:      "ThinkPad X1",
		Category:  protocol.CategoryLaptop,
		Price:     1400,
		CreatedAt: time.Now().UTC(),
	}
	r.HandleMessage(frame(t, protocol.ServerMessage{Type: protocol.TypeProductCreated, Product: p}))
	if collection.Len() != 1 {
		t.Fatalf("expected 1 item after create, got %d", collection.Len())
	}

	revised := *p
	revised.Price = 1200
	r.HandleMessage(frame(t, protocol.ServerMessage{Type: protocol.TypeProductUpdated, Product: &revised}))
	if got := collection.Items()[0].Price; got != 1200 {
		t.Errorf("expected updated price 1200, got %v", got)
	}

	r.HandleMessage(frame(t, protocol.ServerMessage{Type: protocol.TypeProductDeleted, ID: p.ID.String()}))
	if collection.Len() != 0 {
		t.Errorf("expected empty collection after delete, got %d", collection.Len())
	}
}

func TestReconcilerIgnoresMalformedAndUnknownFrames(t *testing.T) {
	collection := client.NewCollection()
	r := client.NewReconciler(collection, newTestLogger())

	r.HandleMessage([]byte(`{broken`))
	r.HandleMessage([]byte(`{"type":"PRODUCT_CREATED"}`))                  // missing payload
	r.HandleMessage([]byte(`{"type":"PRODUCT_DELETED","id":"not-a-uuid"}`)) // bad identifier
	r.HandleMessage(frame(t, protocol.ServerMessage{Type: protocol.TypeConnected, Message: "hi"}))

	if collection.Len() != 0 {
		t.Errorf("expected collection untouched, got %d items", collection.Len())
	}
}
