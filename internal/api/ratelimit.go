package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"horde-server/internal/config"

	"golang.org/x/time/rate"
)

// RateLimitConfig shapes the per-IP token buckets.
// Zero expensive values fall back to the general bucket's shape.
type RateLimitConfig struct {
	RequestsPerSecond  float64       // General bucket, drawn by every request
	Burst              int           // General bucket size
	ExpensivePerSecond float64       // Match creation and wave sampling
	ExpensiveBurst     int           // Expensive bucket size
	CleanupInterval    time.Duration // Idle clients are forgotten after two intervals
}

// RateLimitConfigFrom converts configured request limits into bucket shapes.
func RateLimitConfigFrom(l config.RequestLimits) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond:  l.RequestsPerSecond,
		Burst:              l.Burst,
		ExpensivePerSecond: l.ExpensivePerSecond,
		ExpensiveBurst:     l.ExpensiveBurst,
		CleanupInterval:    5 * time.Minute,
	}
}

// DefaultRateLimitConfig is used when a router is built without limits
var DefaultRateLimitConfig = RateLimitConfigFrom(config.DefaultRequestLimits())

// routeCost selects which bucket a request draws from
type routeCost int

const (
	costGeneral routeCost = iota
	costExpensive
	numCosts
)

// clientBuckets is the limiter state of one IP
type clientBuckets struct {
	buckets  [numCosts]*rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// IPRateLimiter rate limits HTTP requests per client IP.
// Cheap reads only spend general tokens. Routes wrapped with
// ExpensiveMiddleware spend one general and one expensive token.
type IPRateLimiter struct {
	clients  sync.Map // map[string]*clientBuckets
	config   RateLimitConfig
	stopChan chan struct{}
	stopOnce sync.Once

	allowed  [numCosts]atomic.Uint64
	rejected [numCosts]atomic.Uint64
}

// NewIPRateLimiter creates the limiter and starts its idle-client sweeper
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	if cfg.ExpensivePerSecond <= 0 {
		cfg.ExpensivePerSecond = cfg.RequestsPerSecond
	}
	if cfg.ExpensiveBurst <= 0 {
		cfg.ExpensiveBurst = cfg.Burst
	}

	rl := &IPRateLimiter{
		config:   cfg,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the sweeper goroutine
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

// Config returns the effective bucket shapes
func (rl *IPRateLimiter) Config() RateLimitConfig {
	return rl.config
}

func (rl *IPRateLimiter) client(ip string) *clientBuckets {
	now := time.Now().UnixNano()

	if v, ok := rl.clients.Load(ip); ok {
		c := v.(*clientBuckets)
		c.lastSeen.Store(now)
		return c
	}

	c := &clientBuckets{}
	c.buckets[costGeneral] = rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
	c.buckets[costExpensive] = rate.NewLimiter(rate.Limit(rl.config.ExpensivePerSecond), rl.config.ExpensiveBurst)
	c.lastSeen.Store(now)

	v, _ := rl.clients.LoadOrStore(ip, c)
	return v.(*clientBuckets)
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup forgets clients idle for two cleanup intervals
func (rl *IPRateLimiter) cleanup() {
	cutoff := time.Now().Add(-2 * rl.config.CleanupInterval).UnixNano()

	rl.clients.Range(func(key, value interface{}) bool {
		if value.(*clientBuckets).lastSeen.Load() < cutoff {
			rl.clients.Delete(key)
		}
		return true
	})
}

func (rl *IPRateLimiter) allow(ip string, cost routeCost) bool {
	if rl.client(ip).buckets[cost].Allow() {
		rl.allowed[cost].Add(1)
		return true
	}
	rl.rejected[cost].Add(1)
	return false
}

// Allow spends a general token for ip
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.allow(ip, costGeneral)
}

// AllowExpensive spends an expensive token for ip
func (rl *IPRateLimiter) AllowExpensive(ip string) bool {
	return rl.allow(ip, costExpensive)
}

// retryAfter is the whole seconds until a bucket refills one token
func (rl *IPRateLimiter) retryAfter(cost routeCost) string {
	perSecond := rl.config.RequestsPerSecond
	if cost == costExpensive {
		perSecond = rl.config.ExpensivePerSecond
	}
	secs := 1
	if perSecond > 0 && perSecond < 1 {
		secs = int(math.Ceil(1 / perSecond))
	}
	return strconv.Itoa(secs)
}

func (rl *IPRateLimiter) limit(cost routeCost, reason string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(GetClientIP(r), cost) {
			RecordConnectionRejected(reason)
			w.Header().Set("Retry-After", rl.retryAfter(cost))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Middleware limits every request against the general bucket
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.limit(costGeneral, "rate_limit", next)
}

// ExpensiveMiddleware limits a route against the expensive bucket.
// Mount it per route with chi's With, under the general Middleware.
func (rl *IPRateLimiter) ExpensiveMiddleware(next http.Handler) http.Handler {
	return rl.limit(costExpensive, "rate_limit_expensive", next)
}

// GetStats returns allow/reject counters per bucket
func (rl *IPRateLimiter) GetStats() map[string]uint64 {
	return map[string]uint64{
		"allowed":           rl.allowed[costGeneral].Load(),
		"rejected":          rl.rejected[costGeneral].Load(),
		"expensiveAllowed":  rl.allowed[costExpensive].Load(),
		"expensiveRejected": rl.rejected[costExpensive].Load(),
	}
}

// GetClientIP returns the caller's IP.
// Proxy headers win over RemoteAddr and are trusted as-is, so run
// behind a proxy that overwrites them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WebSocketRateLimiter caps concurrent websocket connections per IP.
// IPs with no open connection are dropped from the table.
type WebSocketRateLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	maxPerIP int

	rejected atomic.Uint64
}

// NewWebSocketRateLimiter creates a connection limiter
func NewWebSocketRateLimiter(maxPerIP int) *WebSocketRateLimiter {
	return &WebSocketRateLimiter{
		open:     make(map[string]int),
		maxPerIP: maxPerIP,
	}
}

// Allow reserves a connection slot for ip
func (wrl *WebSocketRateLimiter) Allow(ip string) bool {
	wrl.mu.Lock()
	defer wrl.mu.Unlock()

	if wrl.open[ip] >= wrl.maxPerIP {
		wrl.rejected.Add(1)
		return false
	}
	wrl.open[ip]++
	return true
}

// Release frees a slot reserved by Allow
func (wrl *WebSocketRateLimiter) Release(ip string) {
	wrl.mu.Lock()
	defer wrl.mu.Unlock()

	switch n := wrl.open[ip]; {
	case n > 1:
		wrl.open[ip] = n - 1
	case n == 1:
		delete(wrl.open, ip)
	}
}

// GetConnectionCount returns the open connections of ip
func (wrl *WebSocketRateLimiter) GetConnectionCount(ip string) int {
	wrl.mu.Lock()
	defer wrl.mu.Unlock()
	return wrl.open[ip]
}

// GetStats returns connection limiter counters
func (wrl *WebSocketRateLimiter) GetStats() map[string]uint64 {
	wrl.mu.Lock()
	ips := len(wrl.open)
	wrl.mu.Unlock()

	return map[string]uint64{
		"rejected": wrl.rejected.Load(),
		"ips":      uint64(ips),
	}
}

// AllowedOrigins lists extra origins accepted for websocket upgrades.
// Localhost on any port is always accepted.
var AllowedOrigins = []string{
	"http://127.0.0.1",
}

// SetAllowedOrigins replaces the extra origins (from CORS_ORIGINS).
// Entries ending in ":*" match any port of that host.
func SetAllowedOrigins(origins []string) {
	AllowedOrigins = append([]string(nil), origins...)
}

// IsAllowedOrigin reports whether a websocket upgrade from origin is accepted
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	if origin == "http://localhost" || strings.HasPrefix(origin, "http://localhost:") {
		return true
	}

	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
		if host, ok := strings.CutSuffix(allowed, ":*"); ok && strings.HasPrefix(origin, host+":") {
			return true
		}
	}
	return false
}
