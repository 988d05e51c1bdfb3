package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// WAVE TUNING
// =============================================================================

// WaveTuning holds the tunable curves of wave progression.
// The phase table itself is built-in; only the numbers around it are tunable.
type WaveTuning struct {
	// Match loop
	TickRate        int     `yaml:"tickRate"`        // Engine ticks per second
	SpawnsPerTick   int     `yaml:"spawnsPerTick"`   // Queued spawns released per tick
	WaveIntervalSec float64 `yaml:"waveIntervalSec"` // Minimum wave duration before auto-advance
	AutoAdvance     bool    `yaml:"autoAdvance"`     // Start the next wave without an explicit call

	// Elite escalation
	EliteStartWave     int     `yaml:"eliteStartWave"`     // First wave where elites may replace a draw
	EliteBaseChance    float64 `yaml:"eliteBaseChance"`    // Chance per draw at EliteStartWave
	EliteChancePerWave float64 `yaml:"eliteChancePerWave"` // Added per wave past EliteStartWave
	EliteMaxChance     float64 `yaml:"eliteMaxChance"`     // Upper bound per draw

	// Spawn count curve
	SpawnBase      int     `yaml:"spawnBase"`      // Count at wave 0
	SpawnPerWave   float64 `yaml:"spawnPerWave"`   // Linear growth per wave
	SpawnMax       int     `yaml:"spawnMax"`       // Per-wave cap
	BossSpawnCount int     `yaml:"bossSpawnCount"` // Creatures released on a boss wave
}

// Elite escalation bounds. Elites never appear before wave 50 and never
// take more than a tenth of the draws, so phase types keep dominating.
const (
	MinEliteStartWave = 50
	MinEliteChance    = 0.02
	MaxEliteChance    = 0.10
)

// DefaultWaveTuning returns the production wave tuning.
func DefaultWaveTuning() WaveTuning {
	return WaveTuning{
		TickRate:        10,
		SpawnsPerTick:   2,
		WaveIntervalSec: 20,
		AutoAdvance:     true,

		EliteStartWave:     50,
		EliteBaseChance:    0.03,   // 3% at wave 50
		EliteChancePerWave: 0.0005, // +0.05% per wave
		EliteMaxChance:     0.10,   // reached around wave 190

		SpawnBase:      5,
		SpawnPerWave:   0.4,
		SpawnMax:       60,
		BossSpawnCount: 1,
	}
}

// LoadWaveTuning reads wave tuning from a YAML file.
// Fields missing from the file keep their default values.
func LoadWaveTuning(filePath string) (*WaveTuning, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read wave tuning file: %w", err)
	}

	tuning := DefaultWaveTuning()
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return nil, fmt.Errorf("failed to parse wave tuning YAML: %w", err)
	}

	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wave tuning config: %w", err)
	}

	return &tuning, nil
}

// Validate checks that every curve produces sane values.
func (t WaveTuning) Validate() error {
	if t.TickRate <= 0 {
		return fmt.Errorf("tickRate must be > 0, got %d", t.TickRate)
	}
	if t.SpawnsPerTick <= 0 {
		return fmt.Errorf("spawnsPerTick must be > 0, got %d", t.SpawnsPerTick)
	}
	if t.WaveIntervalSec < 0 {
		return fmt.Errorf("waveIntervalSec must be >= 0, got %g", t.WaveIntervalSec)
	}

	if t.EliteStartWave < MinEliteStartWave {
		return fmt.Errorf("eliteStartWave must be >= %d, got %d", MinEliteStartWave, t.EliteStartWave)
	}
	if t.EliteMaxChance < MinEliteChance || t.EliteMaxChance > MaxEliteChance {
		return fmt.Errorf("eliteMaxChance must be in [%g, %g], got %g", MinEliteChance, MaxEliteChance, t.EliteMaxChance)
	}
	if t.EliteBaseChance < MinEliteChance || t.EliteBaseChance > t.EliteMaxChance {
		return fmt.Errorf("eliteBaseChance must be in [%g, eliteMaxChance], got %g", MinEliteChance, t.EliteBaseChance)
	}
	if t.EliteChancePerWave < 0 {
		return fmt.Errorf("eliteChancePerWave must be >= 0, got %g", t.EliteChancePerWave)
	}

	if t.SpawnBase < 1 {
		return fmt.Errorf("spawnBase must be >= 1, got %d", t.SpawnBase)
	}
	if t.SpawnPerWave <= 0 {
		return fmt.Errorf("spawnPerWave must be > 0, got %g", t.SpawnPerWave)
	}
	if t.SpawnMax < t.SpawnBase {
		return fmt.Errorf("spawnMax (%d) must be >= spawnBase (%d)", t.SpawnMax, t.SpawnBase)
	}
	// The curve must still be growing between the early, mid and late anchors
	early, mid, late := t.SpawnCountAt(1), t.SpawnCountAt(50), t.SpawnCountAt(100)
	if !(early < mid && mid < late) {
		return fmt.Errorf("spawn curve is flat: count(1)=%d count(50)=%d count(100)=%d (raise spawnMax or spawnPerWave)",
			early, mid, late)
	}
	if t.BossSpawnCount < 1 {
		return fmt.Errorf("bossSpawnCount must be >= 1, got %d", t.BossSpawnCount)
	}

	return nil
}

// SpawnCountAt evaluates the capped spawn curve for an already clamped wave.
func (t WaveTuning) SpawnCountAt(wave int) int {
	count := t.SpawnBase + int(float64(wave)*t.SpawnPerWave)
	if count > t.SpawnMax {
		count = t.SpawnMax
	}
	if count < 1 {
		count = 1
	}
	return count
}

// applyWaveEnv applies environment variable overrides to wave tuning.
func applyWaveEnv(t WaveTuning) WaveTuning {
	if v := getEnvInt("WAVE_TICK_RATE", 0); v > 0 {
		t.TickRate = v
	}
	if v := getEnvInt("WAVE_SPAWNS_PER_TICK", 0); v > 0 {
		t.SpawnsPerTick = v
	}
	if v := getEnvFloat("WAVE_INTERVAL_SECONDS", -1); v >= 0 {
		t.WaveIntervalSec = v
	}
	switch os.Getenv("WAVE_AUTO_ADVANCE") {
	case "false":
		t.AutoAdvance = false
	case "true":
		t.AutoAdvance = true
	}
	if v := getEnvFloat("ELITE_BASE_CHANCE", -1); v >= 0 {
		t.EliteBaseChance = v
	}
	if v := getEnvFloat("ELITE_MAX_CHANCE", -1); v >= 0 {
		t.EliteMaxChance = v
	}
	if v := getEnvInt("SPAWN_MAX", 0); v > 0 {
		t.SpawnMax = v
	}
	return t
}
