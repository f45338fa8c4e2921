package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ImedBousakhria/fluffy-lamp/internal/api"
	"github.com/ImedBousakhria/fluffy-lamp/internal/auth"
	"github.com/ImedBousakhria/fluffy-lamp/internal/hub"
	"github.com/ImedBousakhria/fluffy-lamp/internal/router"
	"github.com/ImedBousakhria/fluffy-lamp/internal/server/middleware"
	"github.com/ImedBousakhria/fluffy-lamp/internal/store"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/config"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/protocol"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/state"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/state/statemanager"
	"github.com/ImedBousakhria/fluffy-lamp/pkg/transport"
)

// App wires the REST API and the WebSocket endpoint onto one listener.
type App struct {
	logger    *slog.Logger
	db        *sql.DB
	registry  state.Registry
	hub       *hub.Hub
	msgRouter *router.Router
	wg        sync.WaitGroup
	http      *http.Server
	config    *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) (*App, error) {
	db, err := sql.Open("sqlite3", cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	authSvc := auth.NewService(db, cfg.Server.Auth.JWTSecret, cfg.Server.Auth.TokenTTL, logger)
	productStore := store.New(db, logger)
	if err := authSvc.Init(rootCtx); err != nil {
		db.Close()
		return nil, err
	}
	if err := productStore.Init(rootCtx); err != nil {
		db.Close()
		return nil, err
	}

	registry := statemanager.NewInMemoryRegistry(logger)
	broadcastHub := hub.New(registry, logger)
	msgRouter := router.New(logger, registry, authSvc)

	app := &App{
		logger:    logger,
		db:        db,
		registry:  registry,
		hub:       broadcastHub,
		msgRouter: msgRouter,
		config:    cfg,
		ctx:       rootCtx,
	}

	products := api.NewProductHandlers(productStore, broadcastHub, logger)
	authAPI := api.NewAuthHandlers(authSvc, logger)

	authMW := middleware.NewAuthMiddleware(logger, authSvc)
	limiter := middleware.NewConnectionLimiter(logger, registry.CountByIP, cfg.Server.ConnectionLimit)

	r := mux.NewRouter()
	r.Use(
		mux.MiddlewareFunc(middleware.RequestMetadataMiddleware()),
		mux.MiddlewareFunc(middleware.NewRequestLogger(logger)),
	)

	r.Methods(http.MethodGet).Path("/").HandlerFunc(healthHandler)
	r.Methods(http.MethodPost).Path("/api/auth/register").HandlerFunc(authAPI.Register)
	r.Methods(http.MethodPost).Path("/api/auth/login").HandlerFunc(authAPI.Login)

	r.Methods(http.MethodGet).Path("/api/products").Handler(middleware.Chain(http.HandlerFunc(products.List), authMW))
	r.Methods(http.MethodGet).Path("/api/products/{id}").Handler(middleware.Chain(http.HandlerFunc(products.Get), authMW))
	r.Methods(http.MethodPost).Path("/api/products").Handler(middleware.Chain(http.HandlerFunc(products.Create), authMW))
	r.Methods(http.MethodPut).Path("/api/products/{id}").Handler(middleware.Chain(http.HandlerFunc(products.Update), authMW))
	r.Methods(http.MethodDelete).Path("/api/products/{id}").Handler(middleware.Chain(http.HandlerFunc(products.Delete), authMW))

	r.Path("/ws").Handler(middleware.Chain(http.HandlerFunc(app.upgradeHandler), limiter))

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}
	return app, nil
}

// Handler returns the fully wired route table; Run serves exactly this.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Product Manager API is running!"})
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		a.ctx,
		&a.wg,
		wsConn,
		transport.Config(a.config.Transport),
		a.logger,
	)
	stateConn := a.registry.Register(conn, reqMeta.IP)
	conn.SetOnMessage(a.msgRouter.HandleMessage)
	conn.SetOnClose(func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		a.registry.Deregister(id)
	})
	conn.Run()

	greeting, _ := json.Marshal(protocol.ServerMessage{
		Type:    protocol.TypeConnected,
		Message: "Connected to Product Manager WebSocket",
	})
	conn.Send(greeting)

	// A connection that never authenticates would otherwise stay registered
	// forever; bound the handshake window.
	if d := a.config.Server.Auth.HandshakeTimeout; d > 0 {
		timer := time.AfterFunc(d, func() {
			if c, ok := a.registry.Get(stateConn.ID); ok && !c.Authenticated {
				connLogger.Info("Closing unauthenticated connection after handshake timeout",
					slog.String("connID", stateConn.ID.String()))
				conn.Close(errors.New("authentication timeout"))
			}
		})
		defer timer.Stop()
	}

	connLogger.Info("Connection established", slog.String("connID", stateConn.ID.String()))
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.SnapshotAll() {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()

	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", slog.Any("error", err))
	}
	a.logger.Info("Server shut down gracefully.")
	return nil
}
