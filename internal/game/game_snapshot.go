package game

import (
	"sync/atomic"
	"time"
)

// MatchSnapshot is an immutable copy of a match's wave state.
// Readers (API handlers, websocket broadcast) never take the engine lock.
type MatchSnapshot struct {
	Sequence   uint64    `json:"sequence"`   // Monotonic sequence for ordering
	Timestamp  time.Time `json:"timestamp"`  // When snapshot was created
	TickNumber uint64    `json:"tickNumber"` // Engine tick this represents
	RNGSeed    int64     `json:"rngSeed"`    // Seed for deterministic replay

	MatchID   string    `json:"matchId"`
	CreatedAt time.Time `json:"createdAt"`
	Running   bool      `json:"running"`

	// Current wave
	Wave     int    `json:"wave"`
	Phase    string `json:"phase"`
	Boss     bool   `json:"boss"`
	BossType string `json:"bossType,omitempty"`
	Planned  int    `json:"planned"`
	Spawned  int    `json:"spawned"`
	Pending  int    `json:"pending"`

	// Aggregate stats
	TotalSpawned  int            `json:"totalSpawned"`
	EliteSpawned  int            `json:"eliteSpawned"`
	BossesSpawned int            `json:"bossesSpawned"`
	SpawnedByType map[string]int `json:"spawnedByType"`
}

// snapshotStore publishes snapshots for lock-free readers.
// Every publish stores a fresh value, so a reader's pointer never changes under it.
type snapshotStore struct {
	current  atomic.Pointer[MatchSnapshot]
	sequence uint64 // atomic
}

// publish stamps and stores a snapshot
func (s *snapshotStore) publish(snap *MatchSnapshot) {
	snap.Sequence = atomic.AddUint64(&s.sequence, 1)
	snap.Timestamp = time.Now()
	s.current.Store(snap)
}

// load returns the latest snapshot, or nil before the first publish
func (s *snapshotStore) load() *MatchSnapshot {
	return s.current.Load()
}
