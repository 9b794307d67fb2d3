package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chat-pipeline/internal/cache"
	"chat-pipeline/internal/pipeline"
)

// Pinger is the slice of the database handle health checks need.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Broadcaster readiness as seen by the health surface.
type broadcasterStatus interface {
	Ready() bool
}

// HealthHandler reports pipeline connectivity and leadership.
type HealthHandler struct {
	state *pipeline.State
	store cache.Store
	db    Pinger
	hub   broadcasterStatus
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(state *pipeline.State, store cache.Store, db Pinger, hub broadcasterStatus) *HealthHandler {
	return &HealthHandler{state: state, store: store, db: db, hub: hub}
}

// Health answers the operational health surface: one boolean per external
// dependency plus whether this process is the batch-writer leader. A
// degraded pipeline reports 503 but keeps serving.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	snap := h.state.Snapshot()

	cacheUp := h.store != nil && h.store.Ping(ctx) == nil
	storeUp := h.db != nil && h.db.PingContext(ctx) == nil
	broadcasterUp := h.hub != nil && h.hub.Ready()

	status := http.StatusOK
	overall := "healthy"
	if !cacheUp || !storeUp || !snap.BrokerUp || !broadcasterUp {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":         overall,
		"log_up":         snap.BrokerUp,
		"cache_up":       cacheUp,
		"store_up":       storeUp,
		"broadcaster_up": broadcasterUp,
		"is_leader":      snap.Leader,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
