// Package remotecommon is the shared substrate every remote (HTTP API)
// provider builds on: HTTP status-to-error-kind mapping, credential
// resolution, and a per-key circuit breaker table with opportunistic TTL
// eviction, so two HTTP-based providers never have to reinvent either.
package remotecommon

import (
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/internal/circuitbreaker"
	"github.com/inferray/modelrt/modelrterrs"
)

// CheckHTTPStatus maps a non-2xx HTTP status to a typed runtime error.
// providerName is embedded in the generic api_error message for
// unrecognized status codes. Returns nil for 2xx statuses.
func CheckHTTPStatus(providerName string, statusCode int) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch {
	case statusCode == http.StatusTooManyRequests:
		return modelrterrs.New(modelrterrs.KindRateLimited, "rate limited")
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return modelrterrs.New(modelrterrs.KindUnauthorized, "unauthorized")
	case statusCode >= 500 && statusCode < 600:
		return modelrterrs.New(modelrterrs.KindUnavailable, "upstream server error")
	default:
		return modelrterrs.Newf(modelrterrs.KindAPIError, "%s API error: %d", providerName, statusCode)
	}
}

// ResolveAPIKey resolves a credential from the environment. options may
// name a custom environment variable under optionKey; if absent or not a
// string, defaultEnv is used instead. The value of that environment
// variable is the resolved credential.
func ResolveAPIKey(options map[string]interface{}, optionKey string, defaultEnv string) (string, error) {
	envVarName := defaultEnv
	if v, ok := options[optionKey]; ok {
		if s, ok := v.(string); ok && s != "" {
			envVarName = s
		}
	}
	val, ok := os.LookupEnv(envVarName)
	if !ok || val == "" {
		return "", modelrterrs.Newf(modelrterrs.KindConfig, "%s env var not set", envVarName)
	}
	return val, nil
}

const (
	// breakerTTL is how long an idle per-key breaker entry survives before
	// opportunistic cleanup reclaims it.
	breakerTTL = 30 * time.Minute
	// cleanupInterval bounds how often a cleanup sweep runs.
	cleanupInterval = 5 * time.Minute
)

type breakerEntry struct {
	breaker    *circuitbreaker.CircuitBreaker
	lastAccess time.Time
}

// Base provides the per-key circuit breaker table shared by remote
// providers: one breaker per ModelRuntimeKey, created lazily and evicted
// opportunistically once it has been idle for longer than breakerTTL.
type Base struct {
	mu          sync.Mutex
	breakers    map[api.ModelRuntimeKey]*breakerEntry
	lastCleanup time.Time
}

// NewBase returns a Base with an empty breaker table.
func NewBase() *Base {
	return &Base{
		breakers:    make(map[api.ModelRuntimeKey]*breakerEntry),
		lastCleanup: time.Now(),
	}
}

// CircuitBreakerFor returns the breaker for key, creating one with default
// thresholds on first access. As a side effect, it opportunistically
// sweeps breaker entries idle longer than breakerTTL, at most once per
// cleanupInterval.
func (b *Base) CircuitBreakerFor(key api.ModelRuntimeKey) *circuitbreaker.CircuitBreaker {
	now := time.Now()
	b.maybeCleanup(now)

	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.breakers[key]
	if !ok {
		entry = &breakerEntry{breaker: circuitbreaker.New(circuitbreaker.Config{})}
		b.breakers[key] = entry
	}
	entry.lastAccess = now
	return entry.breaker
}

func (b *Base) maybeCleanup(now time.Time) {
	b.mu.Lock()
	shouldClean := now.Sub(b.lastCleanup) >= cleanupInterval
	if shouldClean {
		b.lastCleanup = now
	}
	b.mu.Unlock()
	if !shouldClean {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for k, entry := range b.breakers {
		if now.Sub(entry.lastAccess) >= breakerTTL {
			delete(b.breakers, k)
		}
	}
}

// BreakerCount reports the number of live breaker entries. Exposed for
// tests exercising the eviction behavior.
func (b *Base) BreakerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.breakers)
}

// ForceCleanupNowForTest rewinds lastCleanup so the next CircuitBreakerFor
// call performs a sweep regardless of elapsed time. Test-only helper.
func (b *Base) ForceCleanupNowForTest() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastCleanup = time.Now().Add(-cleanupInterval - time.Second)
}

// InsertTestBreaker seeds a breaker entry with a synthetic age, for tests
// that exercise TTL eviction without waiting in real time.
func (b *Base) InsertTestBreaker(key api.ModelRuntimeKey, age time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breakers[key] = &breakerEntry{
		breaker:    circuitbreaker.New(circuitbreaker.Config{}),
		lastAccess: time.Now().Add(-age),
	}
}
