package game

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"horde-server/internal/config"

	"github.com/google/uuid"
)

var (
	// ErrMatchNotFound is returned for unknown match IDs
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchLimit is returned when MaxMatches matches are already running
	ErrMatchLimit = errors.New("maximum matches reached")
)

// MatchOptions customizes a new match
type MatchOptions struct {
	Seed        *int64 `json:"seed,omitempty"`        // Fixed seed for replay; random when nil
	AutoAdvance *bool  `json:"autoAdvance,omitempty"` // Overrides the tuning default
}

// ManagerConfig configures a MatchManager
type ManagerConfig struct {
	Tuning    config.WaveTuning
	Limits    config.MatchLimits
	AutoStart bool // Start each match's tick loop on creation
}

// MatchManager owns every running match.
// Each match gets its own engine, selector and RNG so matches never share entropy.
type MatchManager struct {
	mu      sync.RWMutex
	matches map[string]*Engine

	cfg   ManagerConfig
	hooks EngineHooks

	seedMu     sync.Mutex
	seedSource *rand.Rand

	eventLog *EventLog
}

// NewMatchManager validates the wave configuration once, so a broken
// progression table or tuning stops the server at startup.
func NewMatchManager(cfg ManagerConfig) (*MatchManager, error) {
	if _, err := NewSelector(cfg.Tuning, NewSeededSource(0)); err != nil {
		return nil, fmt.Errorf("wave configuration rejected: %w", err)
	}

	return &MatchManager{
		matches:    make(map[string]*Engine),
		cfg:        cfg,
		seedSource: NewSeededSource(time.Now().UnixNano()),
		eventLog:   NewEventLog(),
	}, nil
}

// SetHooks sets callbacks for matches created afterwards
func (m *MatchManager) SetHooks(h EngineHooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = h
}

// StartEventLog starts the shared replay log
func (m *MatchManager) StartEventLog(filePath string) error {
	return m.eventLog.Start(filePath)
}

// StopEventLog flushes and closes the shared replay log
func (m *MatchManager) StopEventLog() {
	m.eventLog.Stop()
}

// GetEventLogStats returns replay log statistics for monitoring
func (m *MatchManager) GetEventLogStats() map[string]interface{} {
	return m.eventLog.GetStats()
}

// CreateMatch creates and registers a new match
func (m *MatchManager) CreateMatch(opts MatchOptions) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.matches) >= m.cfg.Limits.MaxMatches {
		return nil, ErrMatchLimit
	}

	var seed int64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = m.nextSeed()
	}

	tuning := m.cfg.Tuning
	if opts.AutoAdvance != nil {
		tuning.AutoAdvance = *opts.AutoAdvance
	}

	engine, err := NewEngine(EngineConfig{
		MatchID:  uuid.NewString(),
		Seed:     seed,
		Tuning:   tuning,
		Limits:   m.cfg.Limits,
		EventLog: m.eventLog,
		Hooks:    m.hooks,
	})
	if err != nil {
		return nil, err
	}

	m.matches[engine.ID()] = engine
	if m.cfg.AutoStart {
		engine.Start()
	}

	log.Printf("🧟 Match created: %s (%d running)", engine.ID(), len(m.matches))
	return engine, nil
}

// GetMatch returns a match by ID
func (m *MatchManager) GetMatch(id string) (*Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engine, ok := m.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return engine, nil
}

// ListMatches returns snapshots of all matches, oldest first
func (m *MatchManager) ListMatches() []*MatchSnapshot {
	m.mu.RLock()
	snaps := make([]*MatchSnapshot, 0, len(m.matches))
	for _, engine := range m.matches {
		snaps = append(snaps, engine.GetSnapshot())
	}
	m.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].MatchID < snaps[j].MatchID
		}
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	return snaps
}

// RemoveMatch stops and forgets a match
func (m *MatchManager) RemoveMatch(id string) error {
	m.mu.Lock()
	engine, ok := m.matches[id]
	if ok {
		delete(m.matches, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrMatchNotFound
	}
	engine.Stop()
	return nil
}

// Count returns the number of registered matches
func (m *MatchManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matches)
}

// StopAll stops every match (used on shutdown)
func (m *MatchManager) StopAll() {
	m.mu.RLock()
	engines := make([]*Engine, 0, len(m.matches))
	for _, engine := range m.matches {
		engines = append(engines, engine)
	}
	m.mu.RUnlock()

	for _, engine := range engines {
		engine.Stop()
	}
}

// nextSeed draws an independent seed for a new match
func (m *MatchManager) nextSeed() int64 {
	m.seedMu.Lock()
	defer m.seedMu.Unlock()
	return m.seedSource.Int63()
}
