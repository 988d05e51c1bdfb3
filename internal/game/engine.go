package game

import (
	"fmt"
	"log"
	"sync"
	"time"

	"horde-server/internal/config"

	"github.com/google/uuid"
)

// EngineHooks are optional callbacks fired outside the engine lock.
// main wires them to metrics and the websocket hub.
type EngineHooks struct {
	OnWaveStart func(matchID string, plan WavePlan)
	OnSpawn     func(matchID string, wave int, creatureType string)
	OnTick      func(matchID string, d time.Duration)
}

// EngineConfig configures one match
type EngineConfig struct {
	MatchID  string // Generated when empty
	Seed     int64  // RNG seed; same seed and same calls give the same spawns
	Tuning   config.WaveTuning
	Limits   config.MatchLimits
	EventLog *EventLog // Shared replay log; nil keeps a private, stopped one
	Hooks    EngineHooks
}

// Engine runs the wave loop of a single match
type Engine struct {
	mu sync.Mutex

	id        string
	seed      int64
	createdAt time.Time

	// Owned exclusively by this match
	selector *Selector
	elites   map[string]bool

	tuning config.WaveTuning
	limits config.MatchLimits

	// Current wave
	wave          int
	plan          WavePlan
	pending       int
	spawned       int
	waveStartedAt time.Time

	// Stats
	totalSpawned  int
	eliteSpawned  int
	bossesSpawned int
	spawnedByType map[string]int
	tickCount     uint64

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	snapshots snapshotStore
	eventLog  *EventLog
	hooks     EngineHooks

	now func() time.Time
}

// NewEngine creates a match engine. It fails if the progression table or
// the tuning is inconsistent; the match must not start in that case.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	id := cfg.MatchID
	if id == "" {
		id = uuid.NewString()
	}

	selector, err := NewSelector(cfg.Tuning, NewSeededSource(cfg.Seed))
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", id, err)
	}

	eventLog := cfg.EventLog
	if eventLog == nil {
		eventLog = NewEventLog()
	}

	elites := make(map[string]bool)
	for _, t := range selector.Elites() {
		elites[t] = true
	}

	e := &Engine{
		id:            id,
		seed:          cfg.Seed,
		createdAt:     time.Now(),
		selector:      selector,
		elites:        elites,
		tuning:        cfg.Tuning,
		limits:        cfg.Limits,
		spawnedByType: make(map[string]int),
		stopChan:      make(chan struct{}),
		eventLog:      eventLog,
		hooks:         cfg.Hooks,
		now:           time.Now,
	}

	e.eventLog.EmitSimple(EventTypeMatchStart, 0, id, MatchStartPayload{MatchID: id, RNGSeed: cfg.Seed})

	e.mu.Lock()
	e.produceSnapshotLocked()
	e.mu.Unlock()

	return e, nil
}

// ID returns the match ID
func (e *Engine) ID() string {
	return e.id
}

// Seed returns the RNG seed the match was created with
func (e *Engine) Seed() int64 {
	return e.seed
}

// Wave returns the current wave number (0 before the first wave)
func (e *Engine) Wave() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wave
}

// IsRunning reports whether the tick loop is active
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start begins the tick loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tuning.TickRate))
	ticker, stop := e.ticker, e.stopChan
	e.produceSnapshotLocked()
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				e.step(stop)
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Match %s started at %d TPS (seed %d)", e.id, e.tuning.TickRate, e.seed)
}

// Stop stops the tick loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)

	e.eventLog.EmitSimple(EventTypeMatchStop, e.tickCount, e.id,
		MatchStopPayload{LastWave: e.wave, TotalSpawned: e.totalSpawned})
	e.produceSnapshotLocked()

	log.Printf("🛑 Match %s stopped at wave %d (%d spawned)", e.id, e.wave, e.totalSpawned)
}

// Step runs one tick synchronously.
// The tick loop calls it; tools and tests call it directly for replay.
func (e *Engine) Step() {
	e.step(nil)
}

// step runs one tick. A non-nil loop is the stop channel of the tick loop
// calling it; the tick is skipped once that loop has been stopped.
func (e *Engine) step(loop chan struct{}) {
	start := time.Now()

	e.mu.Lock()
	if loop != nil && (!e.running || e.stopChan != loop) {
		e.mu.Unlock()
		return
	}
	e.tickCount++

	var started *WavePlan
	if e.tuning.AutoAdvance && e.pending == 0 && e.waveElapsedLocked() {
		plan := e.startWaveLocked()
		started = &plan
	}

	spawns := e.releaseSpawnsLocked()
	wave := e.wave
	e.produceSnapshotLocked()
	e.mu.Unlock()

	e.fireHooks(started, wave, spawns)

	if e.hooks.OnTick != nil {
		e.hooks.OnTick(e.id, time.Since(start))
	}
}

// AdvanceWave forces the next wave immediately.
// Spawns still queued from the previous wave are discarded.
func (e *Engine) AdvanceWave() WavePlan {
	e.mu.Lock()
	plan := e.startWaveLocked()
	wave := e.wave
	e.produceSnapshotLocked()
	e.mu.Unlock()

	e.fireHooks(&plan, wave, nil)
	return plan
}

// GetSnapshot returns the latest immutable snapshot
func (e *Engine) GetSnapshot() *MatchSnapshot {
	return e.snapshots.load()
}

// waveElapsedLocked reports whether the current wave has lasted long enough
func (e *Engine) waveElapsedLocked() bool {
	if e.wave == 0 {
		return true
	}
	interval := time.Duration(e.tuning.WaveIntervalSec * float64(time.Second))
	return e.now().Sub(e.waveStartedAt) >= interval
}

// startWaveLocked moves to the next wave and queues its spawns
func (e *Engine) startWaveLocked() WavePlan {
	dropped := e.pending

	e.wave++
	plan := e.selector.PlanWave(e.wave)
	if e.limits.MaxQueuedSpawn > 0 && plan.Count > e.limits.MaxQueuedSpawn {
		plan.Count = e.limits.MaxQueuedSpawn
	}

	e.plan = plan
	e.pending = plan.Count
	e.spawned = 0
	e.waveStartedAt = e.now()

	e.eventLog.EmitSimple(EventTypeWaveStart, e.tickCount, e.id, WaveStartPayload{
		Wave:    plan.Wave,
		Phase:   plan.Phase,
		Planned: plan.Count,
		Dropped: dropped,
	})

	if plan.Boss {
		e.eventLog.EmitSimple(EventTypeBossWave, e.tickCount, e.id,
			BossWavePayload{Wave: plan.Wave, BossType: plan.BossType})
		log.Printf("👹 Match %s wave %d: boss %s", e.id, plan.Wave, plan.BossType)
	} else {
		log.Printf("🌊 Match %s wave %d (%s): %d spawns", e.id, plan.Wave, plan.Phase, plan.Count)
	}
	if dropped > 0 {
		log.Printf("⚠️ Match %s skipped %d pending spawns of wave %d", e.id, dropped, e.wave-1)
	}

	return plan
}

// releaseSpawnsLocked picks types for up to SpawnsPerTick queued spawns
func (e *Engine) releaseSpawnsLocked() []string {
	n := e.pending
	if n > e.tuning.SpawnsPerTick {
		n = e.tuning.SpawnsPerTick
	}
	if n == 0 {
		return nil
	}

	spawns := make([]string, 0, n)
	for i := 0; i < n; i++ {
		t := e.selector.SelectZombieType(e.wave)
		spawns = append(spawns, t)

		e.spawnedByType[t]++
		e.totalSpawned++
		if e.plan.Boss {
			e.bossesSpawned++
		} else if e.elites[t] {
			e.eliteSpawned++
		}
	}
	e.pending -= n
	e.spawned += n

	return spawns
}

// fireHooks runs callbacks without holding the engine lock
func (e *Engine) fireHooks(started *WavePlan, wave int, spawns []string) {
	if started != nil && e.hooks.OnWaveStart != nil {
		e.hooks.OnWaveStart(e.id, *started)
	}
	if e.hooks.OnSpawn != nil {
		for _, t := range spawns {
			e.hooks.OnSpawn(e.id, wave, t)
		}
	}
}

// produceSnapshotLocked publishes the current state for lock-free readers
func (e *Engine) produceSnapshotLocked() {
	byType := make(map[string]int, len(e.spawnedByType))
	for t, n := range e.spawnedByType {
		byType[t] = n
	}

	e.snapshots.publish(&MatchSnapshot{
		TickNumber:    e.tickCount,
		RNGSeed:       e.seed,
		MatchID:       e.id,
		CreatedAt:     e.createdAt,
		Running:       e.running,
		Wave:          e.wave,
		Phase:         e.plan.Phase,
		Boss:          e.plan.Boss,
		BossType:      e.plan.BossType,
		Planned:       e.plan.Count,
		Spawned:       e.spawned,
		Pending:       e.pending,
		TotalSpawned:  e.totalSpawned,
		EliteSpawned:  e.eliteSpawned,
		BossesSpawned: e.bossesSpawned,
		SpawnedByType: byType,
	})
}
