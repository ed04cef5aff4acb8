package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, cfg *Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestBucket_Take(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBucket(3, 1.0, now)

	for i := 0; i < 3; i++ {
		ok, remaining, _, _ := b.take(now)
		require.True(t, ok, "request %d", i+1)
		assert.Equal(t, 2-i, remaining)
	}

	ok, remaining, full, retry := b.take(now)
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, now.Add(3*time.Second), full)
	assert.Equal(t, time.Second, retry)

	ok, _, _, _ = b.take(now.Add(1500 * time.Millisecond))
	assert.True(t, ok, "one token refilled")
}

func TestBucket_RefillCapsAtCapacity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBucket(2, 10, now)

	_, remaining, full, retry := b.take(now.Add(time.Hour))
	assert.Zero(t, retry)
	assert.Equal(t, 1, remaining)
	assert.True(t, full.After(now.Add(time.Hour)))
}

func TestLimiter_DefaultBudget(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})

	for i := 0; i < 10; i++ {
		allowed, info := l.Allow("127.0.0.1", "/other", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 9-i, info.Remaining)
	}

	allowed, info := l.Allow("127.0.0.1", "/other", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.InDelta(t, float64(6*time.Second), float64(info.RetryAfter), float64(time.Millisecond))

	clock.Advance(7 * time.Second)
	allowed, _ = l.Allow("127.0.0.1", "/other", "GET")
	assert.True(t, allowed)
}

func TestLimiter_Lists(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.9": true},
	})

	for i := 0; i < 20; i++ {
		allowed, info := l.Allow("10.0.0.1", "/export", "POST")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}

	allowed, _ := l.Allow("10.0.0.9", "/health", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Minute})

	for i := 0; i < 20; i++ {
		allowed, info := l.Allow("127.0.0.1", "/export", "POST")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
}

func TestLimiter_ExportBudget(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(6, time.Hour),
	})

	// Burst is limit/6, so one export up front.
	allowed, info := l.Allow("127.0.0.1", "/export", "POST")
	require.True(t, allowed)
	assert.Equal(t, 6, info.Limit)

	allowed, info = l.Allow("127.0.0.1", "/export", "POST")
	assert.False(t, allowed)
	assert.InDelta(t, float64(10*time.Minute), float64(info.RetryAfter), float64(time.Millisecond))

	allowed, info = l.Allow("127.0.0.1", "/templates/other", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 600, info.Limit)

	clock.Advance(11 * time.Minute)
	allowed, _ = l.Allow("127.0.0.1", "/export", "POST")
	assert.True(t, allowed)
}

func TestLimiter_PrefixSharesBucket(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  600,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/export/", Method: "GET", Limit: 2, Window: time.Hour, Burst: 2},
		},
	})

	for _, path := range []string{"/export/backend", "/export/frontend/history"} {
		allowed, _ := l.Allow("127.0.0.1", path, "GET")
		assert.True(t, allowed, path)
	}

	allowed, _ := l.Allow("127.0.0.1", "/export/data", "GET")
	assert.False(t, allowed, "a new loadout does not get a fresh bucket")

	allowed, _ = l.Allow("10.0.0.2", "/export/data", "GET")
	assert.True(t, allowed, "other clients have their own budget")
}

func TestLimiter_PublicRoutesUnlimited(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})

	for i := 0; i < 10; i++ {
		for _, path := range []string{"/health", "/templates"} {
			allowed, info := l.Allow("127.0.0.1", path, "GET")
			require.True(t, allowed, path)
			assert.Zero(t, info.Limit)
		}
	}
}

func TestLimiter_NonPositiveWindowIsUnlimited(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		path   string
		method string
	}{
		{name: "zero export window", config: &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute, EndpointConfigs: DefaultEndpointConfigs(30, 0)}, path: "/export/backend", method: "GET"},
		{name: "negative export window", config: &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute, EndpointConfigs: DefaultEndpointConfigs(30, -time.Hour)}, path: "/export", method: "POST"},
		{name: "zero default window", config: &Config{Enabled: true, DefaultLimit: 1}, path: "/loadouts", method: "GET"},
		{name: "negative default window", config: &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: -time.Minute}, path: "/loadouts", method: "GET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, clock := newTestLimiter(t, tt.config)

			for i := 0; i < 50; i++ {
				allowed, info := l.Allow("1.2.3.4", tt.path, tt.method)
				require.True(t, allowed, "request %d", i)
				assert.Zero(t, info.Remaining)
				assert.Zero(t, info.RetryAfter)
				clock.Advance(time.Millisecond)
			}
		})
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Hour})

	var wg sync.WaitGroup
	var allowed atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("127.0.0.1", "/other", "GET"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), allowed.Load())
}

func TestLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})

	l.Allow("10.0.0.1", "/other", "GET")
	l.Allow("10.0.0.2", "/other", "GET")
	clock.Advance(2 * time.Hour)
	l.Allow("10.0.0.3", "/other", "GET")

	removed := l.sweep(clock.Now().Add(-idleTTL))
	assert.Equal(t, 2, removed)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "10.0.0.3 GET /other")
}

func TestLimiter_StopTwice(t *testing.T) {
	l := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute, CleanupInterval: time.Millisecond})
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestNewLimiter_NilConfig(t *testing.T) {
	l, _ := newTestLimiter(t, nil)

	allowed, info := l.Allow("127.0.0.1", "/other", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 600, info.Limit)
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs(30, time.Hour)

	tests := []struct {
		path     string
		method   string
		wantPath string
		wantNil  bool
	}{
		{path: "/export", method: "POST", wantPath: "/export"},
		{path: "/export/backend", method: "GET", wantPath: "/export/"},
		{path: "/export/backend/history", method: "GET", wantPath: "/export/"},
		{path: "/export", method: "GET", wantNil: true},
		{path: "/other", method: "GET", wantNil: true},
		{path: "/health", method: "GET", wantPath: ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantPath, got.Path)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	env := map[string]string{
		"RATE_LIMIT_EXPORT_LIMIT":  "12",
		"RATE_LIMIT_EXPORT_WINDOW": "30m",
		"RATE_LIMIT_DEFAULT_LIMIT": "not-a-number",
		"RATE_LIMIT_WHITELIST":     "10.0.0.1, 10.0.0.2,",
	}
	config := LoadConfig(func(k string) string { return env[k] })

	require.True(t, config.Enabled)
	assert.Equal(t, 600, config.DefaultLimit, "invalid values fall back to defaults")
	assert.Len(t, config.Whitelist, 2)
	assert.True(t, config.Whitelist["10.0.0.2"])

	export := MatchEndpoint("/export", "POST", config.EndpointConfigs)
	require.NotNil(t, export)
	assert.Equal(t, 12, export.Limit)
	assert.Equal(t, 30*time.Minute, export.Window)
	assert.Equal(t, 2, export.Burst)

	for _, window := range []string{"0s", "-5m"} {
		zero := LoadConfig(func(k string) string {
			if k == "RATE_LIMIT_EXPORT_WINDOW" || k == "RATE_LIMIT_DEFAULT_WINDOW" {
				return window
			}
			return ""
		})
		assert.Equal(t, time.Minute, zero.DefaultWindow, window)
		export := MatchEndpoint("/export", "POST", zero.EndpointConfigs)
		require.NotNil(t, export)
		assert.Equal(t, time.Hour, export.Window, window)
	}

	disabled := LoadConfig(func(k string) string {
		if k == "RATE_LIMIT_ENABLED" {
			return "false"
		}
		return ""
	})
	assert.False(t, disabled.Enabled)
}
