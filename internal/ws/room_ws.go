package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-pipeline/internal/auth"
	"chat-pipeline/internal/models"
	"chat-pipeline/internal/observability"
)

// RoomWebSocketHandler handles room websocket connections.
type RoomWebSocketHandler struct {
	hub        *Hub
	authorizer auth.Authorizer
	validator  auth.TokenValidator
}

// NewRoomWebSocketHandler constructs a RoomWebSocketHandler.
func NewRoomWebSocketHandler(hub *Hub, authorizer auth.Authorizer, validator auth.TokenValidator) *RoomWebSocketHandler {
	return &RoomWebSocketHandler{hub: hub, authorizer: authorizer, validator: validator}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and joins the client to a room.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	roomKey := c.Param("room_key")
	if _, _, err := models.ParseRoomKey(roomKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room key"})
		return
	}

	ctx, span := otel.Tracer("chat-pipeline/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.authorizer.IsMember(c.Request.Context(), userID, roomKey)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for room"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(roomKey, conn, info)

	// Keep connection alive and clean up on close.
	go func() {
		defer func() {
			h.hub.RemoveClient(roomKey, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
				}
				return
			}
		}
	}()
}

func (h *RoomWebSocketHandler) validateToken(ctx context.Context, header string) (int64, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.validator.ValidateToken(ctx, parts[1])
	}
	return 0, fmt.Errorf("invalid token")
}
