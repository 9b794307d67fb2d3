package pipeline

import (
	"context"
	"log"
	"time"

	"chat-pipeline/internal/cache"
	"chat-pipeline/internal/observability"
	"chat-pipeline/internal/repositories"
)

// BatchWriter periodically drains the pending queue into the durable
// store. Every process runs one; only the process holding the leadership
// lock does any work on a given tick.
type BatchWriter struct {
	store    cache.Store
	messages repositories.MessageRepository
	state    *State
	owner    string
	lockTTL  time.Duration
	batchMax int
}

// NewBatchWriter constructs a BatchWriter. owner must be unique per
// process; it is the token stored in the leadership lock.
func NewBatchWriter(store cache.Store, messages repositories.MessageRepository, state *State, owner string, lockTTL time.Duration, batchMax int) *BatchWriter {
	return &BatchWriter{
		store:    store,
		messages: messages,
		state:    state,
		owner:    owner,
		lockTTL:  lockTTL,
		batchMax: batchMax,
	}
}

// Tick runs one writer round: take or keep leadership, then flush.
func (w *BatchWriter) Tick(ctx context.Context) {
	if !w.ensureLeadership(ctx) {
		return
	}

	batch, err := w.store.PeekPending(ctx, w.batchMax)
	if err != nil {
		log.Printf("batch peek failed: %v", err)
		w.state.SetCacheUp(false)
		w.demote(ctx)
		return
	}
	w.state.SetCacheUp(true)

	if len(batch) == 0 {
		return
	}

	inserted, err := w.messages.CreateMany(ctx, batch, true)
	if err != nil {
		// Queue untouched: the next leader retries the same entries.
		log.Printf("bulk write failed, releasing leadership: %v", err)
		w.state.SetStoreUp(false)
		w.demote(ctx)
		return
	}
	w.state.SetStoreUp(true)

	// Only a confirmed write removes exactly the drained entries. Failing
	// here leaves duplicates in the queue for the next flush, which the
	// duplicate-skipping insert absorbs.
	if err := w.store.RemovePending(ctx, len(batch)); err != nil {
		log.Printf("queue trim failed after write, releasing leadership: %v", err)
		w.demote(ctx)
		return
	}

	observability.AddFlushed(len(batch))
	log.Printf("batch flushed drained=%d inserted=%d duplicates=%d", len(batch), inserted, int64(len(batch))-inserted)
}

// ensureLeadership renews a held lock or tries a single non-blocking
// acquire. A leader whose renewal fails is demoted and does not contend
// again until the next tick.
func (w *BatchWriter) ensureLeadership(ctx context.Context) bool {
	if w.state.IsLeader() {
		renewed, err := w.store.RenewLeadership(ctx, w.owner, w.lockTTL)
		if err != nil {
			log.Printf("leadership renew failed: %v", err)
			w.state.SetCacheUp(false)
			w.state.SetLeader(false)
			return false
		}
		if !renewed {
			log.Printf("leadership lapsed owner=%s", w.owner)
			w.state.SetLeader(false)
			return false
		}
		return true
	}

	acquired, err := w.store.AcquireLeadership(ctx, w.owner, w.lockTTL)
	if err != nil {
		w.state.SetCacheUp(false)
		return false
	}
	w.state.SetCacheUp(true)
	if !acquired {
		return false
	}

	log.Printf("leadership acquired owner=%s", w.owner)
	w.state.SetLeader(true)
	return true
}

// demote releases the lock and returns to follower without touching queued data.
func (w *BatchWriter) demote(ctx context.Context) {
	if err := w.store.ReleaseLeadership(ctx, w.owner); err != nil {
		log.Printf("leadership release failed: %v", err)
	}
	w.state.SetLeader(false)
}
