// Package app wires the relay together: config → police → registry → hub →
// transport → HTTP server.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"relaychat/internal/config"
	"relaychat/internal/hub"
	"relaychat/internal/identity"
	"relaychat/internal/police"
	"relaychat/internal/registry"
	"relaychat/internal/websocket"
)

// Application owns every long-lived component and the HTTP server they hang
// off.
type Application struct {
	config     *config.Config
	police     *police.Police
	registry   *registry.Registry
	hub        *hub.Hub
	httpServer *http.Server
	started    time.Time
}

func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pol := police.New()
	if cfg.Chat.JailFile != "" {
		n, err := pol.LoadJailFile(cfg.Chat.JailFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load jail file: %w", err)
		}
		if n > 0 {
			log.Printf("loaded jail %s (%d addresses)", cfg.Chat.JailFile, n)
		}
	}

	reg := registry.New()
	resolver := identity.NewResolver(cfg.Chat.AdminName, cfg.Chat.AdminPassword, cfg.Chat.Mods)
	relay := hub.New(reg, pol, resolver, cfg.Chat.Salt)

	wsHandler := websocket.NewHandler(relay, websocket.Options{
		PingInterval:   cfg.WebSocket.PingInterval,
		ReadTimeout:    cfg.WebSocket.ReadTimeout,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		UpgradesPerSec: cfg.WebSocket.UpgradesPerSec,
		UpgradeBurst:   cfg.WebSocket.UpgradeBurst,
		TrustForwarded: cfg.Chat.TrustForwarded,
	})

	app := &Application{
		config:   cfg,
		police:   pol,
		registry: reg,
		hub:      relay,
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", wsHandler.ServeWS)
	router.HandleFunc("/health", app.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/stats", app.handleStats).Methods(http.MethodGet)

	app.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return app, nil
}

// Start brings the hub up, then the HTTP listener.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("starting relaychat on %s", app.httpServer.Addr)
	app.started = time.Now()

	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		_ = app.hub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Shutdown stops accepting connections, then stops the hub.
func (app *Application) Shutdown(ctx context.Context) error {
	log.Println("shutting down")
	err := app.httpServer.Shutdown(ctx)
	if stopErr := app.hub.Stop(); err == nil {
		err = stopErr
	}
	return err
}

func (app *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "healthy",
		"uptime": time.Since(app.started).Round(time.Second).String(),
	})
}

// handleStats reads the registry directly; it never touches the hub's
// dispatch queue.
func (app *Application) handleStats(w http.ResponseWriter, r *http.Request) {
	addrs, channels := app.registry.Stats()
	writeJSON(w, map[string]any{
		"connections": app.registry.Len(),
		"channels":    channels,
		"addresses":   addrs,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}
