package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/masterboy376/cphere/internal/app/registry"
	"github.com/masterboy376/cphere/internal/app/server/handlers"
	"github.com/masterboy376/cphere/internal/app/server/ws"
	"github.com/masterboy376/cphere/internal/config"
	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/services"
	"github.com/masterboy376/cphere/pkg/logging"
	"github.com/masterboy376/cphere/pkg/middleware"
)

// Services bundles what the HTTP surface calls into.
type Services struct {
	Users    *services.UserService
	Tokens   *services.TokenService
	Manager  *services.ManagerService
	Presence *services.PresenceService
	Chats    *services.ChatService
	Calls    *services.CallService
}

type Server struct {
	log             *slog.Logger
	cfg             *config.Config
	mux             *http.ServeMux
	http            *http.Server
	hub             *registry.Registry
	limiter         contracts.RateLimiter
	tokenSvc        *services.TokenService
	authHandler     *handlers.AuthHandler
	wsHandler       *handlers.WSHandler
	presenceHandler *handlers.PresenceHandler
	userHandler     *handlers.UserHandler
	chatHandler     *handlers.ChatHandler
	callHandler     *handlers.CallHandler
}

func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	svc Services,
	hub *registry.Registry,
	limiter contracts.RateLimiter,
) *Server {
	wsOpts := ws.Options{
		SendBuffer:     cfg.WebSocket.SendBuffer,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}
	s := &Server{
		log:             log,
		cfg:             cfg,
		mux:             http.NewServeMux(),
		hub:             hub,
		limiter:         limiter,
		tokenSvc:        svc.Tokens,
		authHandler:     handlers.NewAuthHandler(svc.Users, svc.Tokens, cfg.Auth.CookieName, cfg.Auth.CookieSecure),
		wsHandler:       handlers.NewWSHandler(svc.Manager, wsOpts, cfg.WebSocket.AllowedOrigins),
		presenceHandler: handlers.NewPresenceHandler(svc.Presence),
		userHandler:     handlers.NewUserHandler(svc.Users),
		chatHandler:     handlers.NewChatHandler(svc.Chats),
		callHandler:     handlers.NewCallHandler(svc.Calls),
	}
	s.routes()
	s.http = &http.Server{
		Addr:              cfg.Service.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc, s.cfg.Auth.CookieName)
	limit := middleware.RateLimit(s.limiter)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	// Public
	s.mux.Handle("POST /auth/register", limit(http.HandlerFunc(s.authHandler.Register)))
	s.mux.Handle("POST /auth/login", limit(http.HandlerFunc(s.authHandler.Login)))
	s.mux.Handle("POST /auth/reset_password", limit(http.HandlerFunc(s.authHandler.ResetPassword)))
	s.mux.Handle("POST /auth/change_password", limit(http.HandlerFunc(s.authHandler.ChangePassword)))
	s.mux.HandleFunc("GET /healthz", s.health)

	// Authenticated
	s.mux.Handle("POST /auth/logout", protected(s.authHandler.Logout))
	s.mux.Handle("GET /auth/status", protected(s.authHandler.Status))
	s.mux.Handle("GET /users/me", protected(s.userHandler.Me))
	s.mux.Handle("GET /users/search", protected(s.userHandler.Search))
	s.mux.Handle("GET /users/{id}/online", protected(s.presenceHandler.IsOnline))
	s.mux.Handle("POST /users/online", protected(s.presenceHandler.BatchIsOnline))
	s.mux.Handle("GET /chats", protected(s.chatHandler.Summaries))
	s.mux.Handle("GET /chats/{id}/messages", protected(s.chatHandler.Messages))
	s.mux.Handle("POST /video/initiate", protected(s.callHandler.Initiate))
	s.mux.Handle("POST /video/respond", protected(s.callHandler.Respond))
	s.mux.Handle("GET /notifications", protected(s.callHandler.Notifications))
	s.mux.Handle("GET /ws", protected(s.wsHandler.Handler))
}

// Handler is the full middleware-wrapped mux.
func (s *Server) Handler() http.Handler {
	return middleware.TracerMiddleware(s.cfg.Service.Name)(middleware.RequestLogger(s.log)(s.mux))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info("server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, asks every live connection to close and
// waits until the registry is empty or ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	n := s.hub.CloseAll(contracts.StopShutdown)
	if werr := s.waitDrained(ctx); werr != nil {
		s.log.Warn("server - shutdown - connections still open", "remaining", s.hub.Count(), logging.Err(werr))
		return errors.Join(err, werr)
	}
	s.log.Info("server stopped", "connections_closed", n)
	return err
}

func (s *Server) waitDrained(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for s.hub.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
