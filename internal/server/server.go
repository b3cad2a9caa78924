package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/relay"
)

const shutdownTimeout = 5 * time.Second

// Server runs the relay hub behind an HTTP listener.
type Server struct {
	cfg    *config.Relay
	hub    *relay.Hub
	http   *http.Server
	logger *slog.Logger
}

// New wires the relay routes for cfg.
func New(cfg *config.Relay, hub *relay.Hub, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	opts := relay.ClientOptions{
		SendQueue:         cfg.SendQueue,
		MaxMessageBytes:   cfg.MaxMessageBytes,
		MessagesPerSecond: cfg.MessagesPerSecond,
	}
	mux := NewMux(hub, gatherer, newUpgrader(cfg.AllowedOrigins), opts, logger)

	return &Server{
		cfg: cfg,
		hub: hub,
		http: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run listens on cfg.Listen and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hub and serves HTTP on ln until ctx is cancelled or the
// listener fails, then shuts both down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.hub.Run(ctx)
	})

	g.Go(func() error {
		s.logger.Info("Starting signaling server", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down signaling server")
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
