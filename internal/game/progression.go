package game

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Wave axis covered by the progression table.
// Waves outside [MinWave, MaxWave] are clamped before lookup.
const (
	MinWave = 1
	MaxWave = 200

	// BossPhaseCount is the exact number of single-wave boss phases.
	BossPhaseCount = 10
)

// ErrInvalidProgression wraps every integrity violation found by Validate.
var ErrInvalidProgression = errors.New("invalid wave progression")

// WaveRange is a closed interval of wave numbers.
type WaveRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether wave lies inside the range.
func (r WaveRange) Contains(wave int) bool {
	return wave >= r.Start && wave <= r.End
}

// Len returns the number of waves in the range.
func (r WaveRange) Len() int {
	return r.End - r.Start + 1
}

// WavePhase is one contiguous stretch of waves sharing a spawn pool.
type WavePhase struct {
	Key       string    `json:"key"`
	Range     WaveRange `json:"range"`
	Types     []string  `json:"types"`
	ForceBoss bool      `json:"forceBoss"`
}

func (p WavePhase) clone() WavePhase {
	p.Types = slices.Clone(p.Types)
	return p
}

// phaseDefinitions is the built-in difficulty curve.
// NOTE: boss waves are single-wave phases with exactly one type.
var phaseDefinitions = []WavePhase{
	{Key: "early", Range: WaveRange{1, 10}, Types: []string{"normal", "fast"}},
	{Key: "beginner", Range: WaveRange{11, 24}, Types: []string{"normal", "fast", "tank", "crawler"}},
	{Key: "boss1", Range: WaveRange{25, 25}, Types: []string{"bossCharnier"}, ForceBoss: true},
	{Key: "intermediate", Range: WaveRange{26, 49}, Types: []string{"normal", "fast", "tank", "crawler", "spitter", "exploder"}},
	{Key: "boss2", Range: WaveRange{50, 50}, Types: []string{"bossInfect"}, ForceBoss: true},
	{Key: "advanced", Range: WaveRange{51, 74}, Types: []string{"normal", "fast", "tank", "crawler", "spitter", "exploder", "screamer"}},
	{Key: "boss3", Range: WaveRange{75, 75}, Types: []string{"bossColosse"}, ForceBoss: true},
	{Key: "expert", Range: WaveRange{76, 99}, Types: []string{"fast", "tank", "spitter", "exploder", "screamer", "armored"}},
	{Key: "boss4", Range: WaveRange{100, 100}, Types: []string{"bossRoi"}, ForceBoss: true},
	{Key: "nightmare", Range: WaveRange{101, 119}, Types: []string{"tank", "spitter", "exploder", "screamer", "armored", "poison"}},
	{Key: "boss5", Range: WaveRange{120, 120}, Types: []string{"bossRavageur"}, ForceBoss: true},
	{Key: "hell", Range: WaveRange{121, 139}, Types: []string{"tank", "exploder", "screamer", "armored", "poison", "berserker"}},
	{Key: "boss6", Range: WaveRange{140, 140}, Types: []string{"bossHurleur"}, ForceBoss: true},
	{Key: "chaos", Range: WaveRange{141, 159}, Types: []string{"screamer", "armored", "poison", "berserker", "shadow"}},
	{Key: "boss7", Range: WaveRange{160, 160}, Types: []string{"bossNecro"}, ForceBoss: true},
	{Key: "inferno", Range: WaveRange{161, 179}, Types: []string{"exploder", "armored", "poison", "berserker", "shadow"}},
	{Key: "boss8", Range: WaveRange{180, 180}, Types: []string{"bossTitan"}, ForceBoss: true},
	{Key: "apocalypse", Range: WaveRange{181, 189}, Types: []string{"armored", "poison", "berserker", "shadow"}},
	{Key: "boss9", Range: WaveRange{190, 190}, Types: []string{"bossAbomination"}, ForceBoss: true},
	{Key: "endgame", Range: WaveRange{191, 199}, Types: []string{"armored", "berserker", "shadow", "poison"}},
	{Key: "finalBoss", Range: WaveRange{200, 200}, Types: []string{"bossApocalypse"}, ForceBoss: true},
}

// WaveProgression is an ordered, immutable partition of the wave axis.
type WaveProgression struct {
	phases []WavePhase // sorted by Range.Start
}

// BuildWaveProgression returns the built-in progression table.
// Every call yields an equal, independent table.
func BuildWaveProgression() WaveProgression {
	return NewWaveProgression(phaseDefinitions)
}

// NewWaveProgression builds a table from arbitrary phases, ordered by start wave.
// The input is copied. Call Validate before trusting the result.
func NewWaveProgression(phases []WavePhase) WaveProgression {
	sorted := make([]WavePhase, len(phases))
	for i, p := range phases {
		sorted[i] = p.clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Range.Start < sorted[j].Range.Start
	})
	return WaveProgression{phases: sorted}
}

// Validate checks coverage, disjointness and the boss phase rules.
func (wp WaveProgression) Validate() error {
	if len(wp.phases) == 0 {
		return fmt.Errorf("%w: no phases", ErrInvalidProgression)
	}

	keys := make(map[string]bool, len(wp.phases))
	bosses := 0
	next := MinWave

	for _, p := range wp.phases {
		if p.Key == "" {
			return fmt.Errorf("%w: phase at wave %d has no key", ErrInvalidProgression, p.Range.Start)
		}
		if keys[p.Key] {
			return fmt.Errorf("%w: duplicate phase key %q", ErrInvalidProgression, p.Key)
		}
		keys[p.Key] = true

		if p.Range.Start < MinWave || p.Range.Start > p.Range.End {
			return fmt.Errorf("%w: phase %q has bad range [%d,%d]", ErrInvalidProgression, p.Key, p.Range.Start, p.Range.End)
		}
		if len(p.Types) == 0 {
			return fmt.Errorf("%w: phase %q has no types", ErrInvalidProgression, p.Key)
		}
		for _, t := range p.Types {
			if t == "" {
				return fmt.Errorf("%w: phase %q has an empty type", ErrInvalidProgression, p.Key)
			}
		}

		// Sorted by start, so any gap or overlap shows up against the previous end.
		if p.Range.Start > next {
			return fmt.Errorf("%w: waves %d-%d are not covered", ErrInvalidProgression, next, p.Range.Start-1)
		}
		if p.Range.Start < next {
			return fmt.Errorf("%w: phase %q overlaps wave %d", ErrInvalidProgression, p.Key, p.Range.Start)
		}
		next = p.Range.End + 1

		if p.ForceBoss {
			bosses++
			if p.Range.Start != p.Range.End {
				return fmt.Errorf("%w: boss phase %q spans more than one wave", ErrInvalidProgression, p.Key)
			}
			if len(p.Types) != 1 {
				return fmt.Errorf("%w: boss phase %q must have exactly one type, has %d", ErrInvalidProgression, p.Key, len(p.Types))
			}
		}
	}

	if next <= MaxWave {
		return fmt.Errorf("%w: waves %d-%d are not covered", ErrInvalidProgression, next, MaxWave)
	}
	if bosses != BossPhaseCount {
		return fmt.Errorf("%w: expected %d boss phases, found %d", ErrInvalidProgression, BossPhaseCount, bosses)
	}

	return nil
}

// ClampWave maps any integer onto [MinWave, MaxWave].
func ClampWave(wave int) int {
	if wave < MinWave {
		return MinWave
	}
	if wave > MaxWave {
		return MaxWave
	}
	return wave
}

// phaseAt returns the phase covering the clamped wave, or nil if the table has a hole there.
// Binary search over the sorted ranges.
func (wp WaveProgression) phaseAt(wave int) *WavePhase {
	w := ClampWave(wave)
	i := sort.Search(len(wp.phases), func(i int) bool {
		return wp.phases[i].Range.End >= w
	})
	if i < len(wp.phases) && wp.phases[i].Range.Contains(w) {
		return &wp.phases[i]
	}
	return nil
}

// Resolve returns a copy of the phase covering the clamped wave.
// The second result is false only for a table that fails Validate.
func (wp WaveProgression) Resolve(wave int) (WavePhase, bool) {
	p := wp.phaseAt(wave)
	if p == nil {
		return WavePhase{}, false
	}
	return p.clone(), true
}

// Phases returns a copy of all phases in wave order.
func (wp WaveProgression) Phases() []WavePhase {
	out := make([]WavePhase, len(wp.phases))
	for i, p := range wp.phases {
		out[i] = p.clone()
	}
	return out
}

// Len returns the number of phases.
func (wp WaveProgression) Len() int {
	return len(wp.phases)
}

// BossPhases returns copies of the boss phases in wave order.
func (wp WaveProgression) BossPhases() []WavePhase {
	out := make([]WavePhase, 0, BossPhaseCount)
	for _, p := range wp.phases {
		if p.ForceBoss {
			out = append(out, p.clone())
		}
	}
	return out
}

// CreatureTypes returns every non-boss type used by any phase, sorted.
func (wp WaveProgression) CreatureTypes() []string {
	seen := make(map[string]bool)
	for _, p := range wp.phases {
		if p.ForceBoss {
			continue
		}
		for _, t := range p.Types {
			seen[t] = true
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
