package api

import (
	"net/http"

	"horde-server/internal/config"
	"horde-server/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// MatchRegistry defines the match manager methods used by the API.
// Tests pass a mock registry instead of a full MatchManager.
type MatchRegistry interface {
	CreateMatch(opts game.MatchOptions) (*game.Engine, error)
	GetMatch(id string) (*game.Engine, error)
	ListMatches() []*game.MatchSnapshot
	RemoveMatch(id string) error
	Count() int
}

// WaveQuerier answers read-only questions about the wave table.
// None of these methods touch the selector's RNG, so one instance can
// serve every request.
type WaveQuerier interface {
	Progression() game.WaveProgression
	Phase(wave int) game.WavePhase
	PlanWave(wave int) game.WavePlan
	EliteChance(wave int) float64
	Elites() []string
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Matches: mockRegistry,
//	    Waves:   selector,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Matches is the match registry (required)
	Matches MatchRegistry

	// Waves answers wave table queries (required)
	Waves WaveQuerier

	// Tuning is used for the fresh seeded selectors behind /sample.
	// If nil, config.DefaultWaveTuning is used.
	Tuning *config.WaveTuning

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost origins are allowed.
	CORSOrigins []string

	// ClientCount reports connected websocket clients for /api/stats (optional)
	ClientCount func() int

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the dependencies shared by the handlers
type routerHandlers struct {
	matches     MatchRegistry
	waves       WaveQuerier
	newSampler  func(seed int64) (*game.Selector, error)
	rateLimiter *IPRateLimiter
	clientCount func() int
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// NewRouter has no side effects beyond the rate limiter's cleanup
// goroutine: no listeners, no broadcast loops. It is safe to use with
// httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU).
	// Match creation and sampling also pass the expensive bucket below.
	rateLimiter := GetRateLimiterFromRouter(cfg)
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	tuning := config.DefaultWaveTuning()
	if cfg.Tuning != nil {
		tuning = *cfg.Tuning
	}
	newSampler := func(seed int64) (*game.Selector, error) {
		return game.NewSelector(tuning, game.NewSeededSource(seed))
	}

	h := &routerHandlers{
		matches:     cfg.Matches,
		waves:       cfg.Waves,
		newSampler:  newSampler,
		rateLimiter: rateLimiter,
		clientCount: cfg.ClientCount,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.handleGetStats)

		// Wave table
		r.Route("/waves", func(r chi.Router) {
			r.Get("/", h.handleListWaves)
			r.Get("/{wave}", h.handleGetWave)
			r.With(rateLimiter.ExpensiveMiddleware).Get("/{wave}/sample", h.handleSampleWave)
		})

		// Matches
		r.Route("/matches", func(r chi.Router) {
			r.Get("/", h.handleListMatches)
			r.With(rateLimiter.ExpensiveMiddleware).Post("/", h.handleCreateMatch)
			r.Get("/{id}", h.handleGetMatch)
			r.Post("/{id}/advance", h.handleAdvanceMatch)
			r.Delete("/{id}", h.handleDeleteMatch)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}

// GetRateLimiterFromRouter returns the limiter a router built from cfg uses.
// Pass RateLimiter in the config when the caller needs to keep a handle on it.
func GetRateLimiterFromRouter(cfg RouterConfig) *IPRateLimiter {
	if cfg.RateLimiter != nil {
		return cfg.RateLimiter
	}
	rateLimitCfg := DefaultRateLimitConfig
	if cfg.RateLimitConfig != nil {
		rateLimitCfg = *cfg.RateLimitConfig
	}
	return NewIPRateLimiter(rateLimitCfg)
}
