package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"horde-server/internal/game"

	"github.com/go-chi/chi/v5"
)

const (
	defaultSampleSize = 100
	maxSampleSize     = 1000
)

// waveInfo is the response of GET /api/waves/{wave}
type waveInfo struct {
	Wave         int            `json:"wave"`
	ResolvedWave int            `json:"resolvedWave"`
	Phase        game.WavePhase `json:"phase"`
	Boss         bool           `json:"boss"`
	BossType     string         `json:"bossType,omitempty"`
	SpawnCount   int            `json:"spawnCount"`
	EliteChance  float64        `json:"eliteChance"`
	Plan         game.WavePlan  `json:"plan"`
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"matchCount":  h.matches.Count(),
		"rateLimiter": h.rateLimiter.GetStats(),
	}
	if h.clientCount != nil {
		stats["wsClients"] = h.clientCount()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleListWaves(w http.ResponseWriter, r *http.Request) {
	table := h.waves.Progression()
	writeJSON(w, map[string]interface{}{
		"minWave": game.MinWave,
		"maxWave": game.MaxWave,
		"phases":  table.Phases(),
		"elites":  h.waves.Elites(),
	})
}

func (h *routerHandlers) handleGetWave(w http.ResponseWriter, r *http.Request) {
	wave, ok := parseWave(w, r)
	if !ok {
		return
	}

	plan := h.waves.PlanWave(wave)
	info := waveInfo{
		Wave:         wave,
		ResolvedWave: game.ClampWave(wave),
		Phase:        h.waves.Phase(wave),
		Boss:         plan.Boss,
		BossType:     plan.BossType,
		SpawnCount:   plan.Count,
		EliteChance:  h.waves.EliteChance(wave),
		Plan:         plan,
	}
	writeJSON(w, info)
}

// handleSampleWave draws n types from a fresh selector so the result
// depends only on (wave, n, seed)
func (h *routerHandlers) handleSampleWave(w http.ResponseWriter, r *http.Request) {
	wave, ok := parseWave(w, r)
	if !ok {
		return
	}

	n := defaultSampleSize
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}
	if n > maxSampleSize {
		n = maxSampleSize
	}

	var seed int64 = 1
	if raw := r.URL.Query().Get("seed"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, "seed must be an integer", http.StatusBadRequest)
			return
		}
		seed = v
	}

	sampler, err := h.newSampler(seed)
	if err != nil {
		log.Printf("❌ Sampler rejected wave configuration: %v", err)
		writeError(w, "wave configuration unavailable", http.StatusInternalServerError)
		return
	}

	counts := make(map[string]int)
	draws := make([]string, 0, n)
	for i := 0; i < n; i++ {
		t := sampler.SelectZombieType(wave)
		draws = append(draws, t)
		counts[t]++
	}

	writeJSON(w, map[string]interface{}{
		"wave":   wave,
		"seed":   seed,
		"n":      n,
		"draws":  draws,
		"counts": counts,
	})
}

func (h *routerHandlers) handleListMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.matches.ListMatches())
}

func (h *routerHandlers) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var opts game.MatchOptions
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	engine, err := h.matches.CreateMatch(opts)
	if err != nil {
		h.writeMatchError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/matches/%s", engine.ID()))
	writeJSONStatus(w, engine.GetSnapshot(), http.StatusCreated)
}

func (h *routerHandlers) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	engine, err := h.matches.GetMatch(chi.URLParam(r, "id"))
	if err != nil {
		h.writeMatchError(w, err)
		return
	}
	writeJSON(w, engine.GetSnapshot())
}

func (h *routerHandlers) handleAdvanceMatch(w http.ResponseWriter, r *http.Request) {
	engine, err := h.matches.GetMatch(chi.URLParam(r, "id"))
	if err != nil {
		h.writeMatchError(w, err)
		return
	}

	plan := engine.AdvanceWave()
	writeJSON(w, map[string]interface{}{
		"plan":     plan,
		"snapshot": engine.GetSnapshot(),
	})
}

func (h *routerHandlers) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := h.matches.RemoveMatch(chi.URLParam(r, "id")); err != nil {
		h.writeMatchError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeMatchError maps match manager errors to status codes
func (h *routerHandlers) writeMatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrMatchNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, game.ErrMatchLimit):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		log.Printf("❌ Match operation failed: %v", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// parseWave reads the {wave} path parameter. Any integer is accepted;
// the selector clamps it.
func parseWave(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "wave")
	wave, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, fmt.Sprintf("invalid wave %q", raw), http.StatusBadRequest)
		return 0, false
	}
	return wave, true
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, data, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSONStatus(w, map[string]string{"error": message}, code)
}
