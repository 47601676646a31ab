package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/masterboy376/cphere/internal/app/server/ws"
	"github.com/masterboy376/cphere/internal/core/services"
	"github.com/masterboy376/cphere/pkg/logging"
	"github.com/masterboy376/cphere/pkg/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type WSHandler struct {
	manager  services.IManagerService
	opts     ws.Options
	upgrader websocket.Upgrader
}

// NewWSHandler accepts any origin when allowedOrigins is empty.
func NewWSHandler(manager services.IManagerService, opts ws.Options, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		manager: manager,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Handler runs one connection from upgrade to teardown. Frames are dispatched
// in arrival order on this goroutine.
func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing user_id")
		http.Error(w, "Unauthorized: User ID missing", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}
	socket := ws.NewWebSocket(conn, s.opts)
	client := ws.NewClient(context.WithoutCancel(r.Context()), log, socket, userID)
	ctx := logging.WithContext(client.Context(), client.Logger())
	span.SetAttributes(attribute.String("conn.id", client.ID()))

	defer func() {
		client.BeginClose()
		s.manager.HandleDisconnect(ctx, client)
		client.Close()
		client.Logger().InfoContext(ctx, "ws handler - connection closed", "state", client.State().String())
	}()

	s.manager.HandleConnect(ctx, client)
	if !client.MarkActive() {
		client.Logger().InfoContext(ctx, "ws handler - superseded before activation")
		return
	}
	client.Logger().InfoContext(ctx, "ws handler - ws connection established")

	socket.ReadLoop(ctx, client.Logger(), func(data []byte) {
		s.manager.HandleMessage(ctx, client, data)
	})
}
