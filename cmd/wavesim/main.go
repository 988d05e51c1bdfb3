// =============================================================================
// HORDE - WAVE SIMULATOR
// =============================================================================
// Offline tool for balancing the wave curve. It uses the same config loading
// as the server (WAVE_TUNING_FILE, .env) and prints:
//   - the progression table
//   - per-wave plans (phase, boss, spawn count, elite chance)
//   - a seeded sample distribution for one wave
//
// USAGE:
//
//	go run ./cmd/wavesim -table
//	go run ./cmd/wavesim -from 40 -to 60
//	go run ./cmd/wavesim -sample 120 -n 10000 -seed 7
//
// =============================================================================
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"horde-server/internal/config"
	"horde-server/internal/game"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional here; WAVE_TUNING_FILE may come from it
	_ = godotenv.Load()
	log.SetFlags(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Configuration rejected: %v", err)
	}

	if err := run(os.Args[1:], cfg.Waves, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("❌ %v", err)
	}
}

// Report size limits
const (
	maxPlanSpan    = 10000
	maxSampleDraws = 1000000
)

// run parses flags and writes the requested report to out
func run(args []string, tuning config.WaveTuning, out io.Writer) error {
	fs := flag.NewFlagSet("wavesim", flag.ContinueOnError)
	fs.SetOutput(out)

	table := fs.Bool("table", false, "print the progression table")
	from := fs.Int("from", game.MinWave, "first wave of the plan report")
	to := fs.Int("to", game.MaxWave, "last wave of the plan report")
	sample := fs.Int("sample", 0, "wave to sample creature types for (any value, clamped)")
	n := fs.Int("n", 1000, "number of draws for -sample")
	seed := fs.Int64("seed", 1, "RNG seed for -sample")

	if err := fs.Parse(args); err != nil {
		return err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	selector, err := game.NewSelector(tuning, game.NewSeededSource(*seed))
	if err != nil {
		return fmt.Errorf("wave configuration rejected: %w", err)
	}

	printed := false
	if *table {
		printTable(out, selector.Progression())
		printed = true
	}
	if set["from"] || set["to"] {
		if *to < *from {
			return fmt.Errorf("-to (%d) is before -from (%d)", *to, *from)
		}
		if span := int64(*to) - int64(*from); span >= maxPlanSpan {
			return fmt.Errorf("plan range %d-%d covers more than %d waves", *from, *to, maxPlanSpan)
		}
		printPlans(out, selector, *from, *to)
		printed = true
	}
	if set["sample"] {
		if *n < 1 || *n > maxSampleDraws {
			return fmt.Errorf("-n must be in [1, %d], got %d", maxSampleDraws, *n)
		}
		printSample(out, selector, *sample, *n, *seed)
		printed = true
	}

	if !printed {
		printPlans(out, selector, *from, *to)
	}
	return nil
}

func printTable(out io.Writer, table game.WaveProgression) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tWAVES\tBOSS\tTYPES")
	for _, p := range table.Phases() {
		fmt.Fprintf(w, "%s\t%d-%d\t%v\t%v\n", p.Key, p.Range.Start, p.Range.End, p.ForceBoss, p.Types)
	}
	w.Flush()
}

func printPlans(out io.Writer, s *game.Selector, from, to int) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WAVE\tPHASE\tBOSS\tCOUNT\tELITE%")
	for wave := from; wave <= to; wave++ {
		plan := s.PlanWave(wave)
		boss := "-"
		if plan.Boss {
			boss = plan.BossType
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.2f\n", wave, plan.Phase, boss, plan.Count, s.EliteChance(wave)*100)
	}
	w.Flush()
}

func printSample(out io.Writer, s *game.Selector, wave, n int, seed int64) {
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		counts[s.SelectZombieType(wave)]++
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] == counts[types[j]] {
			return types[i] < types[j]
		}
		return counts[types[i]] > counts[types[j]]
	})

	fmt.Fprintf(out, "wave %d (%s), %d draws, seed %d\n", wave, s.Phase(wave).Key, n, seed)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCOUNT\tSHARE%")
	for _, t := range types {
		fmt.Fprintf(w, "%s\t%d\t%.2f\n", t, counts[t], float64(counts[t])*100/float64(n))
	}
	w.Flush()
}
