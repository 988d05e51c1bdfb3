package game

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"horde-server/internal/config"
)

// =============================================================================
// STRESS TEST SUITE: MANY CONCURRENT MATCHES
// Run with: go test -race -v -run=TestStress -timeout=60s ./internal/game/...
// =============================================================================

func TestStress_ConcurrentMatches(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	tuning := config.DefaultWaveTuning()
	tuning.TickRate = 100
	tuning.WaveIntervalSec = 0
	limits := config.DefaultLimits()
	limits.MaxMatches = 20

	m, err := NewMatchManager(ManagerConfig{Tuning: tuning, Limits: limits, AutoStart: true})
	if err != nil {
		t.Fatalf("NewMatchManager failed: %v", err)
	}
	if err := m.StartEventLog(""); err != nil {
		t.Fatalf("StartEventLog failed: %v", err)
	}
	defer m.StopEventLog()

	var spawns atomic.Int64
	m.SetHooks(EngineHooks{OnSpawn: func(string, int, string) { spawns.Add(1) }})

	engines := make([]*Engine, 0, limits.MaxMatches)
	for i := 0; i < limits.MaxMatches; i++ {
		engine, err := m.CreateMatch(MatchOptions{})
		if err != nil {
			t.Fatalf("CreateMatch %d failed: %v", i, err)
		}
		engines = append(engines, engine)
	}

	// Readers and forced advances race with the tick loops
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = m.ListMatches()
				engines[i%len(engines)].AdvanceWave()
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	time.Sleep(500 * time.Millisecond)
	close(stop)
	wg.Wait()
	m.StopAll()

	if spawns.Load() == 0 {
		t.Error("expected spawns across matches")
	}
	for _, snap := range m.ListMatches() {
		if snap.Running {
			t.Errorf("match %s still running after StopAll", snap.MatchID)
		}
		if snap.Wave < 1 {
			t.Errorf("match %s never started a wave", snap.MatchID)
		}
		if snap.Spawned+snap.Pending != snap.Planned {
			t.Errorf("match %s: spawned %d + pending %d != planned %d",
				snap.MatchID, snap.Spawned, snap.Pending, snap.Planned)
		}
	}
}
