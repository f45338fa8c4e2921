package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/client"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/logging"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", "http://localhost:5000", "the server base URL")
	emailVar := flag.String("email", "", "account email, used when no token is given")
	passwordVar := flag.String("password", "", "account password")
	tokenVar := flag.String("token", "", "bearer token; skips the login call")
	flag.Parse()

	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewAPIClient(*addrVar)
	token := *tokenVar
	if token == "" {
		if *emailVar == "" || *passwordVar == "" {
			return fmt.Errorf("either -token or -email and -password are required")
		}
		t, err := api.Login(ctx, *emailVar, *passwordVar)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		token = t
		logger.Info("logged in")
	} else {
		api.SetToken(token)
	}

	collection := client.NewCollection()
	reconciler := client.NewReconciler(collection, logger)

	// Seed the view with the authoritative snapshot before going live.
	// Events that raced the fetch are reapplied idempotently afterwards.
	products, err := api.FetchProducts(ctx)
	if err != nil {
		return fmt.Errorf("snapshot fetch failed: %w", err)
	}
	collection.ApplySnapshot(products)
	logger.Info("snapshot applied", slog.Int("products", len(products)))

	wsURL, err := websocketURL(*addrVar)
	if err != nil {
		return err
	}
	agent := client.NewAgent(client.AgentConfig{
		URL:        wsURL,
		Token:      token,
		RetryDelay: 5 * time.Second,
	}, logger)
	agent.SetOnMessage(reconciler.HandleMessage)
	agent.SetOnStateChange(func(s client.State) {
		logger.Info("connection state changed", slog.String("state", s.String()))
	})
	agent.Connect()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			logger.Info("local view", slog.Int("products", collection.Len()))
		case <-ctx.Done():
			agent.Close()
			collection.Clear()
			logger.Info("agent shut down")
			return nil
		}
	}
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String(), nil
}
