// Package api provides the dyntable REST API server.
package api

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/leengari/dyntable/internal/engine"
	"github.com/leengari/dyntable/internal/executor"
	"github.com/leengari/dyntable/internal/logging"
)

// Version is reported by the root and health endpoints.
const Version = "0.1.0"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Engine is the schema engine surface the API serves.
type Engine interface {
	executor.Engine
	ListTables(ctx context.Context) ([]string, error)
	Symbols() []string
}

// Server routes HTTP requests to the engine.
type Server struct {
	eng Engine
	hub *Hub
	mux *http.ServeMux
}

// NewServer builds a server over eng. A nil hub disables /ws.
func NewServer(eng Engine, hub *Hub) *Server {
	s := &Server{eng: eng, hub: hub, mux: http.NewServeMux()}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return logging.CombinedMiddleware(s.mux)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /types", s.listTypesHandler)

	s.mux.HandleFunc("POST /table/{$}", s.createTableHandler)
	s.mux.HandleFunc("GET /table/{$}", s.listTablesHandler)
	s.mux.HandleFunc("GET /table/{id}/{$}", s.describeTableHandler)
	s.mux.HandleFunc("PUT /table/{id}/{$}", s.alterTableHandler)
	s.mux.HandleFunc("DELETE /table/{id}/{$}", s.dropTableHandler)

	s.mux.HandleFunc("POST /table/{id}/row", s.insertRowHandler)
	s.mux.HandleFunc("GET /table/{id}/rows", s.listRowsHandler)
	s.mux.HandleFunc("GET /table/{id}/row/{rowID}", s.getRowHandler)
	s.mux.HandleFunc("DELETE /table/{id}/row/{rowID}", s.deleteRowHandler)

	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Start serves the API on addr until ctx is cancelled. Engine events are
// broadcast to websocket clients.
func Start(ctx context.Context, addr string, eng *engine.Engine) error {
	hub := NewHub()
	go hub.Run(ctx)
	eng.AddObserver(hub)
	defer eng.RemoveObserver(hub)

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewServer(eng, hub).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("REST API listening", "addr", addr, "websocket", "/ws")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
