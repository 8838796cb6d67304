// Package server exposes the messaging backend over HTTP and WebSocket.
package server

import (
	"estate-chat/auth"
	"estate-chat/contract"
	"estate-chat/observability"
	"estate-chat/services"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Connections registers the realtime sinks of the live websocket connections.
type Connections interface {
	RegisterConnection(userID, connectionID string, sink contract.EventSink)
	UnregisterConnection(userID, connectionID string)
}

type Server struct {
	log                  *slog.Logger
	auth                 services.IAuthService
	messages             services.IMessageService
	profiles             services.IProfileService
	tokens               *auth.Tokens
	connections          Connections
	monitoring           *observability.MonitoringManager
	connectionBufferSize int
	pingInterval         time.Duration
	upgrader             websocket.Upgrader
	closing              chan struct{}
	closeOnce            sync.Once
}

func NewServer(log *slog.Logger, authService services.IAuthService, messages services.IMessageService,
	profiles services.IProfileService, tokens *auth.Tokens, connections Connections,
	monitoring *observability.MonitoringManager, connectionBufferSize int, pingInterval time.Duration) *Server {
	return &Server{
		log:                  log,
		auth:                 authService,
		messages:             messages,
		profiles:             profiles,
		tokens:               tokens,
		connections:          connections,
		monitoring:           monitoring,
		connectionBufferSize: connectionBufferSize,
		pingInterval:         pingInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		closing: make(chan struct{}),
	}
}

// Router wires every route of the backend.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)
	r.Get("/realtime", s.realtime)
	r.Get("/debug/stats", s.stats)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.tokens, s.writeError))
		r.Get("/auth/session", s.session)

		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/inbox", s.inbox)
			r.Get("/thread/{counterpartID}", s.thread)
			r.Get("/search", s.search)
			r.Post("/", s.send)
			r.Post("/read", s.markThreadRead)
			r.Patch("/{id}/read", s.markRead)
		})

		r.Get("/api/profiles", s.getProfiles)
		r.Put("/api/profiles/me", s.updateProfile)
	})
	return r
}

// Close ends the live websocket connections, the http.Server does not track hijacked ones.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitoring.GetLatest())
}
