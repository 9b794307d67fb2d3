package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-pipeline/internal/auth"
	"chat-pipeline/internal/broker"
	"chat-pipeline/internal/cache"
	"chat-pipeline/internal/models"
	"chat-pipeline/internal/observability"
	"chat-pipeline/internal/pipeline"
	"chat-pipeline/internal/repositories"
)

// MessageHandler is the entry point for submitting and reading messages.
type MessageHandler struct {
	publisher    broker.Publisher
	messages     repositories.MessageRepository
	store        cache.Store
	hub          pipeline.Broadcaster
	authorizer   auth.Authorizer
	state        *pipeline.State
	maxBodyBytes int
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(publisher broker.Publisher, messages repositories.MessageRepository, store cache.Store, hub pipeline.Broadcaster, authorizer auth.Authorizer, state *pipeline.State, maxBodyBytes int) *MessageHandler {
	return &MessageHandler{
		publisher:    publisher,
		messages:     messages,
		store:        store,
		hub:          hub,
		authorizer:   authorizer,
		state:        state,
		maxBodyBytes: maxBodyBytes,
	}
}

type postMessageRequest struct {
	Body        string   `json:"body"`
	Type        string   `json:"type"`
	Attachments []string `json:"attachments"`
	Mentions    []int64  `json:"mentions"`
	ParentID    *string  `json:"parent_id"`
}

// PostRoomMessage accepts a message for a room. The sender gets an
// optimistic ack once the message is accepted for publishing, not once it
// is durably stored: 202 means queued on the log, 201 means the broker was
// down and the message took the synchronous direct-write path.
func (h *MessageHandler) PostRoomMessage(c *gin.Context) {
	roomKey := c.Param("room_key")
	channelID, dmRoomID, err := models.ParseRoomKey(roomKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room key"})
		return
	}

	userID := c.GetInt64("userID")
	member, err := h.authorizer.IsMember(c.Request.Context(), userID, roomKey)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = string(models.MessageTypeText)
	}

	msg := models.ChatMessage{
		ID:          models.NewMessageID(),
		ChannelID:   channelID,
		DMRoomID:    dmRoomID,
		SenderID:    &userID,
		Body:        req.Body,
		Type:        models.MessageType(req.Type),
		Attachments: req.Attachments,
		Mentions:    req.Mentions,
		ParentID:    req.ParentID,
		CreatedAt:   time.Now().UTC(),
	}

	// Malformed or oversized payloads are rejected here and never enter
	// the pipeline.
	if err := msg.Validate(h.maxBodyBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Optimistic broadcast: connected clients see the message now, before
	// durability. The consumer never re-broadcasts it.
	h.hub.Broadcast(c.Request.Context(), roomKey, "message", msg)

	queued := h.publisher.PublishMessage(c.Request.Context(), msg)
	h.state.SetBrokerUp(queued)
	if queued {
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "message": msg})
		return
	}

	// Broker unavailable: fall back to a synchronous duplicate-skipping
	// write so the message is durable before the ack.
	if _, err := h.messages.CreateMany(c.Request.Context(), []models.ChatMessage{msg}, true); err != nil {
		h.state.SetStoreUp(false)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	h.state.SetStoreUp(true)
	observability.IncDirectWrite()

	c.JSON(http.StatusCreated, gin.H{"status": "stored", "message": msg})
}

// GetRoomMessages serves paginated room history: the recent-message cache
// first, the durable store when paging past it or when the cache has
// nothing. Cached reads may trail edits by up to the cache TTL.
func (h *MessageHandler) GetRoomMessages(c *gin.Context) {
	roomKey := c.Param("room_key")
	if _, _, err := models.ParseRoomKey(roomKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room key"})
		return
	}

	userID := c.GetInt64("userID")
	member, err := h.authorizer.IsMember(c.Request.Context(), userID, roomKey)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	beforeID := c.Query("before")

	if beforeID == "" {
		msgs, err := h.store.RecentMessages(c.Request.Context(), roomKey, limit)
		if err == nil && len(msgs) > 0 {
			c.JSON(http.StatusOK, gin.H{"messages": msgs, "source": "cache"})
			return
		}
		if err != nil {
			h.state.SetCacheUp(false)
		}
	}

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), roomKey, limit, beforeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "source": "store"})
}
