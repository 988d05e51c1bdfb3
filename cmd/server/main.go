package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horde-server/internal/api"
	"horde-server/internal/config"
	"horde-server/internal/game"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🧟 ================================")
	log.Println("🧟  HORDE - WAVE SERVER")
	log.Println("🧟 ================================")

	// A broken tuning file or table must stop the server here
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Configuration rejected: %v", err)
	}
	waves := appConfig.Waves

	log.Printf("🎮 Config: %d TPS, %d spawns/tick, %.0fs wave interval, auto advance %v",
		waves.TickRate, waves.SpawnsPerTick, waves.WaveIntervalSec, waves.AutoAdvance)
	log.Printf("⭐ Elites: from wave %d, %.1f%% rising to %.1f%%",
		waves.EliteStartWave, waves.EliteBaseChance*100, waves.EliteMaxChance*100)
	log.Printf("🛡️ Resource limits: %d matches, %d queued spawns per match",
		appConfig.Limits.MaxMatches, appConfig.Limits.MaxQueuedSpawn)
	log.Printf("🚦 Request limits per IP: %.1f/s (burst %d), expensive routes %.1f/s (burst %d)",
		appConfig.Requests.RequestsPerSecond, appConfig.Requests.Burst,
		appConfig.Requests.ExpensivePerSecond, appConfig.Requests.ExpensiveBurst)

	manager, err := game.NewMatchManager(game.ManagerConfig{
		Tuning:    waves,
		Limits:    appConfig.Limits,
		AutoStart: true,
	})
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// Read-only selector for wave queries; its RNG is never drawn from
	reference := game.MustNewSelector(waves, game.NewSeededSource(0))
	log.Printf("🌊 Progression: %d phases, %d boss waves, %d creature types",
		reference.Progression().Len(), len(reference.Progression().BossPhases()),
		len(reference.Progression().CreatureTypes()))

	// Start event log
	eventLogPath := getEnvWithDefault("EVENT_LOG_PATH", "events.jsonl")
	if err := manager.StartEventLog(eventLogPath); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	} else {
		log.Printf("📝 Event log: %s", eventLogPath)
	}

	if err := api.StartDebugServer(api.ObservabilityConfigFromEnv()); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	if appConfig.Server.CORSOrigins != nil {
		api.SetAllowedOrigins(appConfig.Server.CORSOrigins)
	}

	server := api.NewServer(manager, reference, appConfig)
	hub := server.Hub()

	manager.SetHooks(game.EngineHooks{
		OnWaveStart: func(matchID string, plan game.WavePlan) {
			api.RecordWaveStart(plan.Phase, plan.Boss)
			hub.BroadcastWaveStart(matchID, plan)
		},
		OnSpawn: func(_ string, _ int, creatureType string) {
			api.RecordSpawn(creatureType)
		},
		OnTick: func(_ string, d time.Duration) {
			api.RecordTick(d)
		},
	})

	stopStats := make(chan struct{})
	go reportStats(manager, stopStats)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server.Stop(ctx)
	close(stopStats)
	manager.StopAll()
	manager.StopEventLog()
	log.Println("👋 Goodbye!")
}

// reportStats mirrors match and event log counters into metrics
func reportStats(manager *game.MatchManager, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			api.UpdateMatchCount(manager.Count())
			stats := manager.GetEventLogStats()
			total, _ := stats["total"].(uint64)
			dropped, _ := stats["dropped"].(uint64)
			api.UpdateEventLogStats(total, dropped)
		}
	}
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
