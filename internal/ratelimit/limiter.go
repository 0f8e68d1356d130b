// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ecotwin/ecotwin/internal/constants"
)

// Limiter keeps one token bucket per key, each with the configured rate and
// burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int
	nowFunc func() time.Time // injectable clock for testing
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// A new key starts with a full bucket.
func NewLimiter(r float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rate:    rate.Limit(r),
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed now, consuming a token
// if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[key] = b
	}
	now := l.nowFunc()
	l.mu.Unlock()

	return b.AllowN(now, 1)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
func NewToolLimiters() ToolLimiters {
	general := func() *Limiter { return NewLimiter(constants.ToolRatePerSecond, constants.ToolBurst) }
	return ToolLimiters{
		"ecotwin_upsert_node": general(),
		"ecotwin_connect":     general(),
		"ecotwin_link":        general(),
		"ecotwin_unlink":      general(),
		"ecotwin_members":     general(),
		"ecotwin_share":       general(),
		"ecotwin_whatif":      general(),
		"ecotwin_simulate":    NewLimiter(constants.SimulateRatePerSecond, constants.SimulateBurst),
		"ecotwin_ingest":      NewLimiter(2.0, 4), // batches fan out to many writes
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if !limiter.Allow(toolName) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}

	return nil
}
