package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chat-pipeline/internal/cache"
	"chat-pipeline/internal/models"
	"chat-pipeline/internal/observability"
	"chat-pipeline/internal/repositories"
)

// Hub maintains active websocket rooms on this instance and bridges
// broadcasts across instances through the cache pub/sub channel, so a
// message produced anywhere reaches sockets everywhere.
type Hub struct {
	store    cache.Store
	presence repositories.PresenceRepository

	rooms     map[string]map[*websocket.Conn]bool
	connInfo  map[string]map[*websocket.Conn]ConnInfo
	userConns map[int64]int
	mu        sync.RWMutex

	running atomic.Bool
}

// NewHub creates an empty hub.
func NewHub(store cache.Store, presence repositories.PresenceRepository) *Hub {
	return &Hub{
		store:     store,
		presence:  presence,
		rooms:     make(map[string]map[*websocket.Conn]bool),
		connInfo:  make(map[string]map[*websocket.Conn]ConnInfo),
		userConns: make(map[int64]int),
	}
}

// Run subscribes to cross-instance broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.store == nil {
		return
	}
	h.running.Store(true)
	defer h.running.Store(false)
	for {
		err := h.store.SubscribeBroadcasts(ctx, h.deliverLocal)
		if ctx.Err() != nil {
			return
		}
		log.Printf("broadcast subscription dropped, retrying: %v", err)
		time.Sleep(time.Second)
	}
}

// AddClient registers a websocket connection in a room. The first
// connection for a user marks them online.
func (h *Hub) AddClient(roomKey string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	if _, ok := h.rooms[roomKey]; !ok {
		h.rooms[roomKey] = make(map[*websocket.Conn]bool)
	}
	h.rooms[roomKey][conn] = true
	if _, ok := h.connInfo[roomKey]; !ok {
		h.connInfo[roomKey] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[roomKey][conn] = info
	h.userConns[info.UserID]++
	first := h.userConns[info.UserID] == 1
	h.mu.Unlock()

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")

	if first {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.store.MarkOnline(ctx, info.UserID); err != nil {
			log.Printf("presence mark-online failed user=%d: %v", info.UserID, err)
		}
		if h.presence != nil {
			if err := h.presence.MarkOnline(ctx, info.UserID); err != nil {
				log.Printf("presence store-online failed user=%d: %v", info.UserID, err)
			}
		}
	}
}

// RemoveClient removes a websocket connection. The last connection for a
// user clears their online mark; an ungraceful exit that skips this path
// is what the reconciler sweeps up.
func (h *Hub) RemoveClient(roomKey string, conn *websocket.Conn) {
	h.mu.Lock()
	var (
		info  ConnInfo
		found bool
	)
	if infos, ok := h.connInfo[roomKey]; ok {
		info, found = infos[conn]
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, roomKey)
		}
	}
	if conns, ok := h.rooms[roomKey]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, roomKey)
		}
	}
	last := false
	if found {
		h.userConns[info.UserID]--
		if h.userConns[info.UserID] <= 0 {
			delete(h.userConns, info.UserID)
			last = true
		}
	}
	h.mu.Unlock()

	if !found {
		return
	}

	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.store.ClearOnline(ctx, info.UserID); err != nil {
			log.Printf("presence mark-clear failed user=%d: %v", info.UserID, err)
		}
		if h.presence != nil {
			if err := h.presence.MarkOffline(ctx, info.UserID, time.Now().UTC()); err != nil {
				log.Printf("presence store-offline failed user=%d: %v", info.UserID, err)
			}
		}
	}
}

// Ready reports whether the cross-instance broadcast bridge is running.
func (h *Hub) Ready() bool {
	return h.running.Load()
}

// HasConnection reports whether a user has at least one live connection
// on this instance. The reconciler's cheap liveness predicate.
func (h *Hub) HasConnection(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.userConns[userID] > 0
}

// Broadcast fans an event to every subscriber of a room across all
// instances. When the pub/sub bridge is down it degrades to local-only
// delivery rather than dropping the event.
func (h *Hub) Broadcast(ctx context.Context, roomKey, event string, payload interface{}) {
	body, err := json.Marshal(models.WSEvent{Type: event, Room: roomKey, Payload: payload})
	if err != nil {
		log.Printf("broadcast marshal failed room=%s: %v", roomKey, err)
		return
	}

	if h.store != nil {
		err := h.store.PublishBroadcast(ctx, body)
		if err == nil {
			return
		}
		log.Printf("broadcast publish failed room=%s, delivering locally: %v", roomKey, err)
	}
	h.deliverLocal(body)
}

// deliverLocal writes a broadcast payload to the local sockets of its room.
func (h *Hub) deliverLocal(payload []byte) {
	var event models.WSEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("broadcast decode failed: %v", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[event.Room]))
	for conn := range h.rooms[event.Room] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error room=%s: %v", event.Room, err)
			conn.Close()
			h.RemoveClient(event.Room, conn)
			observability.IncWSEvent("ws_error")
		}
	}
}
