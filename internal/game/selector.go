package game

import (
	"fmt"
	"math/rand"
	"time"

	"horde-server/internal/config"
)

// EliteTypes is the elite pool. Elites never appear in a phase's own type list.
var EliteTypes = []string{
	"eliteBrute",
	"eliteRunner",
	"eliteSpitter",
	"eliteShadow",
}

// RandomSource is the entropy a Selector draws from.
// *rand.Rand satisfies it; tests can pass a seeded one or a stub.
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

// NewSeededSource returns a deterministic source for replay and tests.
func NewSeededSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// WavePlan is what a match spawns for one wave.
type WavePlan struct {
	Wave     int    `json:"wave"`
	Phase    string `json:"phase"`
	Boss     bool   `json:"boss"`
	BossType string `json:"bossType,omitempty"`
	Count    int    `json:"count"`
}

// Selector decides creature types and counts for any wave number.
// It owns its progression table and its random source; give every match its own.
// Not safe for concurrent use.
type Selector struct {
	table  WaveProgression
	elites []string
	tuning config.WaveTuning
	rng    RandomSource
}

// NewSelector builds the built-in progression and checks it before returning.
// A nil rng gets a time-seeded source.
func NewSelector(tuning config.WaveTuning, rng RandomSource) (*Selector, error) {
	return newSelector(BuildWaveProgression(), EliteTypes, tuning, rng)
}

// MustNewSelector is NewSelector for startup code that cannot continue without one.
func MustNewSelector(tuning config.WaveTuning, rng RandomSource) *Selector {
	s, err := NewSelector(tuning, rng)
	if err != nil {
		panic(err)
	}
	return s
}

func newSelector(table WaveProgression, elites []string, tuning config.WaveTuning, rng RandomSource) (*Selector, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wave tuning: %w", err)
	}
	if len(elites) == 0 {
		return nil, fmt.Errorf("elite pool is empty")
	}

	phaseTypes := make(map[string]bool)
	for _, p := range table.phases {
		for _, t := range p.Types {
			phaseTypes[t] = true
		}
	}
	for _, e := range elites {
		if e == "" {
			return nil, fmt.Errorf("elite pool has an empty type")
		}
		if phaseTypes[e] {
			return nil, fmt.Errorf("elite type %q is also a phase type", e)
		}
	}

	if rng == nil {
		rng = NewSeededSource(time.Now().UnixNano())
	}

	return &Selector{
		table:  table,
		elites: append([]string(nil), elites...),
		tuning: tuning,
		rng:    rng,
	}, nil
}

// resolvePhase never returns nil: the table was validated at construction
// and the wave is clamped.
func (s *Selector) resolvePhase(wave int) *WavePhase {
	return s.table.phaseAt(wave)
}

// Phase returns a copy of the phase covering the clamped wave.
func (s *Selector) Phase(wave int) WavePhase {
	return s.resolvePhase(wave).clone()
}

// Progression returns the selector's table.
func (s *Selector) Progression() WaveProgression {
	return s.table
}

// ShouldSpawnBoss reports whether the wave is a forced boss encounter.
func (s *Selector) ShouldSpawnBoss(wave int) bool {
	return s.resolvePhase(wave).ForceBoss
}

// BossType returns the boss for a boss wave.
// ok is false for every non-boss wave.
func (s *Selector) BossType(wave int) (bossType string, ok bool) {
	p := s.resolvePhase(wave)
	if !p.ForceBoss {
		return "", false
	}
	return p.Types[0], true
}

// SelectZombieType picks the creature type for one spawn.
// Boss waves always return the boss without touching the random source.
// Any integer is accepted; out-of-range waves are clamped.
func (s *Selector) SelectZombieType(wave int) string {
	p := s.resolvePhase(wave)
	if p.ForceBoss {
		return p.Types[0]
	}

	if chance := s.EliteChance(wave); chance > 0 && s.rng.Float64() < chance {
		return s.elites[s.rng.Intn(len(s.elites))]
	}

	return p.Types[s.rng.Intn(len(p.Types))]
}

// EliteChance is the probability that one draw at this wave becomes an elite.
// Zero before EliteStartWave and on boss waves; grows linearly up to EliteMaxChance.
func (s *Selector) EliteChance(wave int) float64 {
	w := ClampWave(wave)
	if w < s.tuning.EliteStartWave || s.resolvePhase(w).ForceBoss {
		return 0
	}

	chance := s.tuning.EliteBaseChance + float64(w-s.tuning.EliteStartWave)*s.tuning.EliteChancePerWave
	if chance > s.tuning.EliteMaxChance {
		chance = s.tuning.EliteMaxChance
	}
	return chance
}

// SpawnCount returns how many creatures the wave's difficulty calls for.
// Non-decreasing in the clamped wave and always >= 1. Boss waves are not
// special-cased here; see PlanWave.
func (s *Selector) SpawnCount(wave int) int {
	return s.tuning.SpawnCountAt(ClampWave(wave))
}

// PlanWave returns what a match actually spawns for the wave.
// Boss waves release BossSpawnCount creatures (the boss alone by default)
// instead of SpawnCount.
func (s *Selector) PlanWave(wave int) WavePlan {
	p := s.resolvePhase(wave)
	plan := WavePlan{
		Wave:  wave,
		Phase: p.Key,
		Count: s.SpawnCount(wave),
	}
	if p.ForceBoss {
		plan.Boss = true
		plan.BossType = p.Types[0]
		plan.Count = s.tuning.BossSpawnCount
	}
	return plan
}

// Elites returns a copy of the elite pool.
func (s *Selector) Elites() []string {
	return append([]string(nil), s.elites...)
}
