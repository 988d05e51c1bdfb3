package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultWaveTuningIsValid(t *testing.T) {
	if err := DefaultWaveTuning().Validate(); err != nil {
		t.Fatalf("default tuning should be valid: %v", err)
	}
}

func TestLoadWaveTuning(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		wantErr     bool
		errContains string
		validate    func(*testing.T, *WaveTuning)
	}{
		{
			name: "partial override keeps defaults",
			yamlContent: `
eliteBaseChance: 0.05
spawnMax: 80
autoAdvance: false
`,
			validate: func(t *testing.T, cfg *WaveTuning) {
				if cfg.EliteBaseChance != 0.05 {
					t.Errorf("expected eliteBaseChance 0.05, got %g", cfg.EliteBaseChance)
				}
				if cfg.SpawnMax != 80 {
					t.Errorf("expected spawnMax 80, got %d", cfg.SpawnMax)
				}
				if cfg.AutoAdvance {
					t.Error("expected autoAdvance false")
				}
				if cfg.EliteStartWave != 50 {
					t.Errorf("expected default eliteStartWave 50, got %d", cfg.EliteStartWave)
				}
				if cfg.TickRate != 10 {
					t.Errorf("expected default tickRate 10, got %d", cfg.TickRate)
				}
			},
		},
		{
			name: "base chance above max",
			yamlContent: `
eliteBaseChance: 0.2
eliteMaxChance: 0.1
`,
			wantErr:     true,
			errContains: "eliteBaseChance",
		},
		{
			name: "zero elite chance",
			yamlContent: `
eliteBaseChance: 0
`,
			wantErr:     true,
			errContains: "eliteBaseChance",
		},
		{
			name: "spawn max below base",
			yamlContent: `
spawnBase: 10
spawnMax: 5
`,
			wantErr:     true,
			errContains: "spawnMax",
		},
		{
			name: "boss spawn count zero",
			yamlContent: `
bossSpawnCount: 0
`,
			wantErr:     true,
			errContains: "bossSpawnCount",
		},
		{
			name: "elites before wave 50",
			yamlContent: `
eliteStartWave: 1
`,
			wantErr:     true,
			errContains: "eliteStartWave",
		},
		{
			name: "elite max chance above ten percent",
			yamlContent: `
eliteBaseChance: 0.9
eliteMaxChance: 0.9
`,
			wantErr:     true,
			errContains: "eliteMaxChance",
		},
		{
			name: "elite base chance below two percent",
			yamlContent: `
eliteBaseChance: 0.01
`,
			wantErr:     true,
			errContains: "eliteBaseChance",
		},
		{
			name: "elite chances at the bounds",
			yamlContent: `
eliteBaseChance: 0.02
eliteMaxChance: 0.10
`,
			validate: func(t *testing.T, cfg *WaveTuning) {
				if cfg.EliteBaseChance != 0.02 || cfg.EliteMaxChance != 0.10 {
					t.Errorf("unexpected elite chances: %g %g", cfg.EliteBaseChance, cfg.EliteMaxChance)
				}
			},
		},
		{
			name: "spawn cap flattens the curve",
			yamlContent: `
spawnMax: 20
`,
			wantErr:     true,
			errContains: "spawn curve is flat",
		},
		{
			name: "flat spawn slope",
			yamlContent: `
spawnPerWave: 0
`,
			wantErr:     true,
			errContains: "spawnPerWave",
		},
		{
			name: "slope too shallow to grow by wave 100",
			yamlContent: `
spawnPerWave: 0.01
`,
			wantErr:     true,
			errContains: "spawn curve is flat",
		},
		{
			name:        "malformed yaml",
			yamlContent: "tickRate: [1, 2",
			wantErr:     true,
			errContains: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "waves.yaml")
			if err := os.WriteFile(path, []byte(tt.yamlContent), 0644); err != nil {
				t.Fatalf("failed to write temp file: %v", err)
			}

			cfg, err := LoadWaveTuning(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error containing %q, got %q", tt.errContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadWaveTuningMissingFile(t *testing.T) {
	_, err := LoadWaveTuning(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("MAX_MATCHES", "7")
	t.Setenv("WAVE_AUTO_ADVANCE", "false")
	t.Setenv("SPAWN_MAX", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("expected port 4100, got %d", cfg.Server.Port)
	}
	if cfg.Limits.MaxMatches != 7 {
		t.Errorf("expected 7 max matches, got %d", cfg.Limits.MaxMatches)
	}
	if cfg.Waves.AutoAdvance {
		t.Error("expected auto advance disabled")
	}
	if cfg.Waves.SpawnMax != 90 {
		t.Errorf("expected spawnMax 90, got %d", cfg.Waves.SpawnMax)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("ELITE_MAX_CHANCE", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for elite max chance above 10%")
	}
}

func TestLoadRejectsFlatSpawnCapFromEnv(t *testing.T) {
	t.Setenv("SPAWN_MAX", "20")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for a cap reached before wave 50")
	}
	if !strings.Contains(err.Error(), "count(50)=20 count(100)=20") {
		t.Errorf("error should report the flat anchors, got %v", err)
	}
}

func TestSpawnCountAt(t *testing.T) {
	tuning := DefaultWaveTuning()

	tests := []struct {
		wave int
		want int
	}{
		{0, 5},
		{1, 5},
		{50, 25},
		{100, 45},
		{200, 60},
	}
	for _, tt := range tests {
		if got := tuning.SpawnCountAt(tt.wave); got != tt.want {
			t.Errorf("SpawnCountAt(%d) = %d, want %d", tt.wave, got, tt.want)
		}
	}
}

func TestLoadReadsTuningFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waves.yaml")
	if err := os.WriteFile(path, []byte("spawnPerWave: 0.6\n"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	t.Setenv("WAVE_TUNING_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Waves.SpawnPerWave != 0.6 {
		t.Errorf("expected spawnPerWave 0.6, got %g", cfg.Waves.SpawnPerWave)
	}
}
