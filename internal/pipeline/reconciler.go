package pipeline

import (
	"context"
	"log"
	"time"

	"chat-pipeline/internal/cache"
	"chat-pipeline/internal/models"
	"chat-pipeline/internal/observability"
	"chat-pipeline/internal/repositories"
)

// PresenceRoom is the well-known room status changes are broadcast to.
const PresenceRoom = "presence"

// Broadcaster is the realtime connection layer the reconciler leans on.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomKey, event string, payload interface{})
	HasConnection(userID int64) bool
}

// Reconciler sweeps the online marks and corrects the ones with no live
// connection behind them, so an ungraceful disconnect cannot leave a user
// stuck online forever.
type Reconciler struct {
	store    cache.Store
	presence repositories.PresenceRepository
	hub      Broadcaster
	state    *State
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store cache.Store, presence repositories.PresenceRepository, hub Broadcaster, state *State) *Reconciler {
	return &Reconciler{store: store, presence: presence, hub: hub, state: state}
}

// Tick runs one reconciliation sweep.
func (r *Reconciler) Tick(ctx context.Context) {
	userIDs, err := r.store.OnlineUserIDs(ctx)
	if err != nil {
		log.Printf("presence sweep failed: %v", err)
		r.state.SetCacheUp(false)
		return
	}
	r.state.SetCacheUp(true)

	for _, userID := range userIDs {
		if r.hub.HasConnection(userID) {
			continue
		}

		lastSeen := time.Now().UTC()
		if err := r.presence.MarkOffline(ctx, userID, lastSeen); err != nil {
			// Leave the mark in place; the next sweep retries.
			log.Printf("presence mark-offline failed user=%d: %v", userID, err)
			continue
		}
		if err := r.store.ClearOnline(ctx, userID); err != nil {
			log.Printf("presence mark-clear failed user=%d: %v", userID, err)
		}

		r.hub.Broadcast(ctx, PresenceRoom, "presence_changed", models.PresenceEvent{
			UserID:   userID,
			Status:   "offline",
			LastSeen: lastSeen,
		})
		observability.IncReconciled()
		log.Printf("presence reconciled user=%d offline", userID)
	}
}
