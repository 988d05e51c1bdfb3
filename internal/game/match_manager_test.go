package game

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"horde-server/internal/config"
)

func newTestManager(t *testing.T, maxMatches int) *MatchManager {
	t.Helper()
	limits := config.DefaultLimits()
	limits.MaxMatches = maxMatches
	m, err := NewMatchManager(ManagerConfig{
		Tuning: config.DefaultWaveTuning(),
		Limits: limits,
	})
	if err != nil {
		t.Fatalf("NewMatchManager failed: %v", err)
	}
	return m
}

// TestNewMatchManagerRejectsBadTuning verifies startup fails fast
func TestNewMatchManagerRejectsBadTuning(t *testing.T) {
	_, err := NewMatchManager(ManagerConfig{Tuning: config.WaveTuning{}, Limits: config.DefaultLimits()})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "wave configuration rejected") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestCreateAndGetMatch tests match registration
func TestCreateAndGetMatch(t *testing.T) {
	m := newTestManager(t, 5)

	seed := int64(42)
	engine, err := m.CreateMatch(MatchOptions{Seed: &seed})
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	if engine.Seed() != 42 {
		t.Errorf("expected seed 42, got %d", engine.Seed())
	}

	got, err := m.GetMatch(engine.ID())
	if err != nil || got != engine {
		t.Fatalf("GetMatch should return the created engine: %v", err)
	}

	if _, err := m.GetMatch("nope"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}

// TestMatchLimit tests DoS protection on match creation
func TestMatchLimit(t *testing.T) {
	m := newTestManager(t, 2)

	for i := 0; i < 2; i++ {
		if _, err := m.CreateMatch(MatchOptions{}); err != nil {
			t.Fatalf("CreateMatch %d failed: %v", i, err)
		}
	}
	if _, err := m.CreateMatch(MatchOptions{}); !errors.Is(err, ErrMatchLimit) {
		t.Errorf("expected ErrMatchLimit, got %v", err)
	}
	if m.Count() != 2 {
		t.Errorf("expected 2 matches, got %d", m.Count())
	}
}

// TestMatchesHaveIndependentSeeds verifies matches never share entropy by default
func TestMatchesHaveIndependentSeeds(t *testing.T) {
	m := newTestManager(t, 10)

	seen := make(map[int64]bool)
	ids := make(map[string]bool)
	for i := 0; i < 10; i++ {
		engine, err := m.CreateMatch(MatchOptions{})
		if err != nil {
			t.Fatalf("CreateMatch failed: %v", err)
		}
		if seen[engine.Seed()] {
			t.Errorf("seed %d reused", engine.Seed())
		}
		seen[engine.Seed()] = true
		if ids[engine.ID()] {
			t.Errorf("id %s reused", engine.ID())
		}
		ids[engine.ID()] = true
	}
}

// TestSameSeedMatchesAgree verifies two matches with one seed replay identically
func TestSameSeedMatchesAgree(t *testing.T) {
	m := newTestManager(t, 2)
	seed := int64(9)
	off := false

	a, _ := m.CreateMatch(MatchOptions{Seed: &seed, AutoAdvance: &off})
	b, _ := m.CreateMatch(MatchOptions{Seed: &seed, AutoAdvance: &off})

	for i := 0; i < 70; i++ {
		a.AdvanceWave()
		b.AdvanceWave()
	}
	drainWave(a)
	drainWave(b)

	sa, sb := a.GetSnapshot(), b.GetSnapshot()
	if len(sa.SpawnedByType) != len(sb.SpawnedByType) {
		t.Fatalf("type counts differ: %v vs %v", sa.SpawnedByType, sb.SpawnedByType)
	}
	for ct, n := range sa.SpawnedByType {
		if sb.SpawnedByType[ct] != n {
			t.Errorf("type %s: %d vs %d", ct, n, sb.SpawnedByType[ct])
		}
	}
}

// TestAutoAdvanceOverride verifies per-match option wins over tuning
func TestAutoAdvanceOverride(t *testing.T) {
	m := newTestManager(t, 1)
	off := false

	engine, err := m.CreateMatch(MatchOptions{AutoAdvance: &off})
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	engine.Step()
	if engine.Wave() != 0 {
		t.Error("auto advance should be disabled for this match")
	}
}

// TestRemoveMatch tests match removal
func TestRemoveMatch(t *testing.T) {
	m := newTestManager(t, 3)

	engine, _ := m.CreateMatch(MatchOptions{})
	if err := m.RemoveMatch(engine.ID()); err != nil {
		t.Fatalf("RemoveMatch failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("expected 0 matches, got %d", m.Count())
	}
	if err := m.RemoveMatch(engine.ID()); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("second removal should fail with ErrMatchNotFound, got %v", err)
	}
}

// TestListMatchesOrdered verifies snapshots come back oldest first
func TestListMatchesOrdered(t *testing.T) {
	m := newTestManager(t, 3)

	first, _ := m.CreateMatch(MatchOptions{})
	time.Sleep(2 * time.Millisecond)
	second, _ := m.CreateMatch(MatchOptions{})

	list := m.ListMatches()
	if len(list) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(list))
	}
	if list[0].MatchID != first.ID() || list[1].MatchID != second.ID() {
		t.Errorf("unexpected order: %s, %s", list[0].MatchID, list[1].MatchID)
	}
}

// TestHooksReachNewMatches verifies SetHooks applies to created matches
func TestHooksReachNewMatches(t *testing.T) {
	m := newTestManager(t, 1)

	started := 0
	m.SetHooks(EngineHooks{OnWaveStart: func(string, WavePlan) { started++ }})

	engine, _ := m.CreateMatch(MatchOptions{})
	engine.AdvanceWave()
	if started != 1 {
		t.Errorf("expected 1 wave start callback, got %d", started)
	}
}

// TestManagerEventLog writes the replay log to disk
func TestManagerEventLog(t *testing.T) {
	m := newTestManager(t, 1)
	path := filepath.Join(t.TempDir(), "events.jsonl")

	if err := m.StartEventLog(path); err != nil {
		t.Fatalf("StartEventLog failed: %v", err)
	}
	engine, _ := m.CreateMatch(MatchOptions{})
	for i := 0; i < 25; i++ {
		engine.AdvanceWave()
	}
	m.StopAll()
	m.StopEventLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read event log: %v", err)
	}
	lines := strings.Count(string(data), "\n")
	if lines == 0 {
		t.Fatal("expected events in the log")
	}

	stats := m.GetEventLogStats()
	if stats["running"] != false {
		t.Errorf("event log should be stopped: %v", stats)
	}
}
