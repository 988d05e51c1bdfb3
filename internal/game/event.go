package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown    EventType = iota
	EventTypeMatchStart           // Match created, carries the RNG seed
	EventTypeWaveStart            // Wave boundary with the planned spawn count
	EventTypeBossWave             // Forced boss encounter announced
	EventTypeMatchStop
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the replay log
type Event struct {
	Version   uint8     `json:"version"`   // Schema version
	Type      EventType `json:"type"`      // Event type
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence
	TickNum   uint64    `json:"tickNum"`   // Engine tick this occurred in
	MatchID   string    `json:"matchId"`   // Source match (for rate limiting)
	Payload   []byte    `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeMatchStart:
		return "match_start"
	case EventTypeWaveStart:
		return "wave_start"
	case EventTypeBossWave:
		return "boss_wave"
	case EventTypeMatchStop:
		return "match_stop"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// MatchStartPayload records what is needed to replay a match
type MatchStartPayload struct {
	MatchID string `json:"matchId"`
	RNGSeed int64  `json:"rngSeed"`
}

// WaveStartPayload contains wave boundary information for replay
type WaveStartPayload struct {
	Wave    int    `json:"wave"`
	Phase   string `json:"phase"`
	Planned int    `json:"planned"`
	Dropped int    `json:"dropped"` // Spawns of the previous wave discarded by a forced advance
}

// BossWavePayload contains boss wave details
type BossWavePayload struct {
	Wave     int    `json:"wave"`
	BossType string `json:"bossType"`
}

// MatchStopPayload summarizes a finished match
type MatchStopPayload struct {
	LastWave     int `json:"lastWave"`
	TotalSpawned int `json:"totalSpawned"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, matchID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		MatchID:   matchID,
		Payload:   EncodePayload(payload),
	}
}
