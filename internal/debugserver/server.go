// Package debugserver serves a browser view of a running session's debug
// events.
//
// Routes:
//
//	GET /debug              the viewer page
//	GET /agx_debug.js       viewer script
//	GET /agx_debug.css      viewer styles
//	GET /api/debug/events   server-sent events, one JSON event per data line
package debugserver

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dhth/agx/internal/event"
	"github.com/dhth/agx/internal/logging"
)

// EventsPath is the SSE endpoint.
const EventsPath = "/api/debug/events"

//go:embed assets
var assets embed.FS

// Server is the debug HTTP server.
type Server struct {
	addr    string
	bridge  *event.Bridge
	router  *chi.Mux
	httpSrv *http.Server
}

// New creates a server streaming events from bridge.
func New(addr string, bridge *event.Bridge) *Server {
	s := &Server{
		addr:   addr,
		bridge: bridge,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/debug", serveAsset("assets/index.html", "text/html; charset=utf-8"))
	s.router.Get("/agx_debug.js", serveAsset("assets/agx_debug.js", "text/javascript"))
	s.router.Get("/agx_debug.css", serveAsset("assets/agx_debug.css", "text/css"))
	s.router.Get(EventsPath, s.events)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background. Binding errors are
// returned; serving errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("couldn't bind TCP listener to address %q: %w", s.addr, err)
	}
	s.addr = ln.Addr().String()

	s.httpSrv = &http.Server{
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// no write timeout: the events stream stays open
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("debug server stopped")
		}
	}()

	logging.Info().Str("addr", s.addr).Msg("debug server started")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// URL returns the viewer URL.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s/debug", s.addr)
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func serveAsset(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := assets.ReadFile(name)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	}
}
