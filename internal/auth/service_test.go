package auth_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ImedBousakhria/fluffy-lamp/internal/auth"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestService(t *testing.T, ttl time.Duration) *auth.Service {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	svc := auth.NewService(db, "test-secret", ttl, newTestLogger())
	if err := svc.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t, time.Hour)

	user, err := svc.Register(context.Background(), "Alice", "alice@example.com", "hunter2!")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == uuid.Nil {
		t.Fatal("expected a user identifier")
	}

	token, loggedIn, err := svc.Login(context.Background(), "alice@example.com", "hunter2!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token == "" {
		t.Error("expected a signed token")
	}
	if loggedIn.ID != user.ID {
		t.Errorf("login returned user %s, registered %s", loggedIn.ID, user.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t, time.Hour)

	if _, err := svc.Register(context.Background(), "Alice", "alice@example.com", "hunter2!"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(context.Background(), "Other Alice", "alice@example.com", "different")
	if !errors.Is(err, auth.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t, time.Hour)
	if _, err := svc.Register(context.Background(), "Alice", "alice@example.com", "hunter2!"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Login(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "hunter2!"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	svc := newTestService(t, time.Hour)
	user, err := svc.Register(context.Background(), "Alice", "alice@example.com", "hunter2!")
	if err != nil {
		t.Fatal(err)
	}

	token, _, err := svc.Login(context.Background(), "alice@example.com", "hunter2!")
	if err != nil {
		t.Fatal(err)
	}

	principal, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if principal != user.ID.String() {
		t.Errorf("expected principal %s, got %s", user.ID, principal)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := newTestService(t, time.Hour)
	if _, err := svc.Verify("not-a-token"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := newTestService(t, -time.Minute)
	if _, err := svc.Register(context.Background(), "Alice", "alice@example.com", "hunter2!"); err != nil {
		t.Fatal(err)
	}
	token, _, err := svc.Login(context.Background(), "alice@example.com", "hunter2!")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	svc := newTestService(t, time.Hour)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	other := auth.NewService(db, "a-different-secret", time.Hour, newTestLogger())
	if err := other.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := other.Register(context.Background(), "Mallory", "mallory@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	token, _, err := other.Login(context.Background(), "mallory@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for a foreign signature, got %v", err)
	}
}
