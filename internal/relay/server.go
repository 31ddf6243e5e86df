// Package relay is the signaling relay: an append-only, room-scoped record
// log with a websocket fan-out to every subscriber of the room, plus an
// optional TURN REST credential endpoint.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/config"
	"github.com/abdulmanan69/p2pchat/internal/turnrest"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg    *config.RelayConfig
	hub    *Hub
	store  *Store
	issuer *turnrest.Issuer
}

// NewServer opens the store and prepares the credential issuer. The hub is
// started by Run, or by Start for embedding in tests.
func NewServer(cfg *config.RelayConfig) (*Server, error) {
	store, err := OpenStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, hub: NewHub(), store: store}

	if cfg.TURNEnabled() {
		issuer, err := turnrest.NewIssuer(turnrest.Config{
			Secret: cfg.TURNSecret,
			TTL:    cfg.TURNTTL,
			URLs:   cfg.TURNURLs,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("configure TURN credentials: %w", err)
		}
		s.issuer = issuer
	}
	return s, nil
}

// Start runs the hub until ctx is done and returns the HTTP handler.
func (s *Server) Start(ctx context.Context) http.Handler {
	go s.hub.Run(ctx)
	return s.routes()
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully and closes the store.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Start(hubCtx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("relay listening", "addr", s.cfg.ListenAddr, "turn", s.issuer != nil, "persistent", s.cfg.DataDir != "")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.store.Close()
		return fmt.Errorf("relay server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("relay shutting down")
	// Hijacked websocket connections are not tracked by Shutdown; stopping the
	// hub closes them.
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return nil
}

// Close releases the store. Only needed when Run was not used.
func (s *Server) Close() error {
	return s.store.Close()
}
