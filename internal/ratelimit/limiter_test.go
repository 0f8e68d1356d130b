package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10.0, 5)
	if l == nil {
		t.Fatal("NewLimiter returned nil")
	}
	if float64(l.rate) != 10.0 {
		t.Errorf("rate = %f, want 10.0", float64(l.rate))
	}
	if l.burst != 5 {
		t.Errorf("burst = %d, want 5", l.burst)
	}
}

func TestAllow_WithinBurst(t *testing.T) {
	l := NewLimiter(1.0, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("key1") {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
}

func TestAllow_ExceedsBurst(t *testing.T) {
	now := time.Now()
	l := NewLimiter(1.0, 2)
	l.nowFunc = func() time.Time { return now }

	l.Allow("key1")
	l.Allow("key1")

	if l.Allow("key1") {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_RefillAfterWait(t *testing.T) {
	now := time.Now()
	l := NewLimiter(10.0, 2)
	l.nowFunc = func() time.Time { return now }

	l.Allow("key1")
	l.Allow("key1")

	if l.Allow("key1") {
		t.Error("expected rejection after burst")
	}

	// 200ms at 10 tokens/sec refills two tokens.
	now = now.Add(200 * time.Millisecond)

	if !l.Allow("key1") {
		t.Error("expected allow after refill (1st token)")
	}
	if !l.Allow("key1") {
		t.Error("expected allow after refill (2nd token)")
	}
	if l.Allow("key1") {
		t.Error("expected rejection after consuming refilled tokens")
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	now := time.Now()
	l := NewLimiter(1.0, 1)
	l.nowFunc = func() time.Time { return now }

	if !l.Allow("a") {
		t.Error("first request for a should be allowed")
	}
	if l.Allow("a") {
		t.Error("second request for a should be rejected")
	}
	if !l.Allow("b") {
		t.Error("b has its own bucket and should be allowed")
	}
}

func TestAllow_BurstDoesNotExceedMax(t *testing.T) {
	now := time.Now()
	l := NewLimiter(100.0, 3)
	l.nowFunc = func() time.Time { return now }

	l.Allow("k")
	now = now.Add(10 * time.Second)

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("k") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("allowed %d after long idle, want burst of 3", allowed)
	}
}

func TestAllow_ZeroRate(t *testing.T) {
	now := time.Now()
	l := NewLimiter(0, 1)
	l.nowFunc = func() time.Time { return now }

	if !l.Allow("k") {
		t.Error("initial burst token should be available")
	}
	now = now.Add(time.Hour)
	if l.Allow("k") {
		t.Error("should be rejected with zero rate")
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	now := time.Now()
	l := NewLimiter(1.0, 100)
	l.nowFunc = func() time.Time { return now }

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("concurrent-key")
		}()
	}

	wg.Wait()
	close(allowed)

	allowedCount := 0
	for a := range allowed {
		if a {
			allowedCount++
		}
	}

	if allowedCount != 100 {
		t.Errorf("allowed %d requests, want exactly the burst of 100", allowedCount)
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()

	expectedTools := []string{
		"ecotwin_upsert_node",
		"ecotwin_connect",
		"ecotwin_simulate",
		"ecotwin_link",
		"ecotwin_unlink",
		"ecotwin_members",
		"ecotwin_share",
		"ecotwin_whatif",
		"ecotwin_ingest",
	}

	for _, tool := range expectedTools {
		if _, ok := limiters[tool]; !ok {
			t.Errorf("missing rate limiter for tool: %s", tool)
		}
	}
}

func TestToolRateLimits(t *testing.T) {
	limiters := NewToolLimiters()

	tests := []struct {
		tool  string
		burst int
	}{
		{"ecotwin_upsert_node", 40},
		{"ecotwin_simulate", 10},
		{"ecotwin_ingest", 4},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			if got := limiters[tt.tool].burst; got != tt.burst {
				t.Errorf("burst = %d, want %d", got, tt.burst)
			}
		})
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := NewToolLimiters()

	if err := CheckLimit(limiters, "ecotwin_whatif"); err != nil {
		t.Errorf("unexpected error for ecotwin_whatif: %v", err)
	}

	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unexpected error for unknown tool: %v", err)
	}

	now := time.Now()
	limiters["ecotwin_ingest"].nowFunc = func() time.Time { return now }
	for i := 0; i < 4; i++ {
		if err := CheckLimit(limiters, "ecotwin_ingest"); err != nil {
			t.Fatalf("call %d within burst: %v", i+1, err)
		}
	}
	if err := CheckLimit(limiters, "ecotwin_ingest"); err == nil {
		t.Error("expected rate limit error after burst exhaustion")
	}
}
