package pipeline

import (
	"sync"

	"chat-pipeline/internal/observability"
)

// State holds the mutable pipeline flags. One instance is owned by the
// Supervisor and injected into every component that reads or writes it;
// nothing else keeps leadership or connectivity globals.
type State struct {
	mu       sync.RWMutex
	leader   bool
	brokerUp bool
	cacheUp  bool
	storeUp  bool
}

// Snapshot is a point-in-time copy of the flags for the health surface.
type Snapshot struct {
	Leader   bool `json:"is_leader"`
	BrokerUp bool `json:"broker_up"`
	CacheUp  bool `json:"cache_up"`
	StoreUp  bool `json:"store_up"`
}

// NewState creates a follower state with all connectivity unknown-down.
func NewState() *State {
	return &State{}
}

// IsLeader reports whether this process currently holds the batch-writer lock.
func (s *State) IsLeader() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leader
}

// SetLeader records a leadership transition.
func (s *State) SetLeader(leader bool) {
	s.mu.Lock()
	s.leader = leader
	s.mu.Unlock()
	observability.SetLeadership(leader)
}

// SetBrokerUp records broker connectivity.
func (s *State) SetBrokerUp(up bool) {
	s.mu.Lock()
	s.brokerUp = up
	s.mu.Unlock()
}

// SetCacheUp records cache/lock-service connectivity.
func (s *State) SetCacheUp(up bool) {
	s.mu.Lock()
	s.cacheUp = up
	s.mu.Unlock()
}

// SetStoreUp records durable-store connectivity.
func (s *State) SetStoreUp(up bool) {
	s.mu.Lock()
	s.storeUp = up
	s.mu.Unlock()
}

// Snapshot copies the current flags.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Leader:   s.leader,
		BrokerUp: s.brokerUp,
		CacheUp:  s.cacheUp,
		StoreUp:  s.storeUp,
	}
}
