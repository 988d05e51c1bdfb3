package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEventLogNotRunning(t *testing.T) {
	el := NewEventLog()
	if el.EmitSimple(EventTypeWaveStart, 1, "m1", WaveStartPayload{Wave: 1}) {
		t.Error("emit should fail before Start")
	}
	if el.GetTotalCount() != 0 {
		t.Errorf("expected 0 events, got %d", el.GetTotalCount())
	}
}

func TestEventLogPerMatchLimit(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < MaxEventsPerMatch*3; i++ {
		if el.EmitSimple(EventTypeWaveStart, uint64(i), "flood", WaveStartPayload{Wave: i}) {
			accepted++
		}
	}
	if accepted > MaxEventsPerMatch+1 {
		t.Errorf("per-match limit not applied: %d accepted", accepted)
	}
	if el.GetDroppedCount() == 0 {
		t.Error("expected dropped events")
	}

	// Another match has its own budget
	if !el.EmitSimple(EventTypeWaveStart, 0, "other", WaveStartPayload{Wave: 1}) {
		t.Error("a second match should not be limited by the first")
	}
}

func TestEventLogWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	el.EmitSimple(EventTypeMatchStart, 0, "m1", MatchStartPayload{MatchID: "m1", RNGSeed: 7})
	el.EmitSimple(EventTypeBossWave, 3, "m1", BossWavePayload{Wave: 25, BossType: "bossCharnier"})
	el.Stop()
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventTypeMatchStart || events[1].Type != EventTypeBossWave {
		t.Errorf("unexpected event order: %s, %s", events[0].Type, events[1].Type)
	}
	if events[0].Sequence >= events[1].Sequence {
		t.Error("sequence should increase")
	}

	var boss BossWavePayload
	if err := json.Unmarshal(events[1].Payload, &boss); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if boss.BossType != "bossCharnier" || boss.Wave != 25 {
		t.Errorf("unexpected payload: %+v", boss)
	}
	if el.Pending() != 0 {
		t.Errorf("buffer should be drained, %d pending", el.Pending())
	}
}
