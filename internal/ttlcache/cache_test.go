package ttlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episodic-memory/internal/clock"
)

func TestValidateRejectsBadRanges(t *testing.T) {
	cfg := DefaultTTLConfig()
	cfg.MinTTL = cfg.MaxTTL + time.Second
	err := cfg.Validate()
	require.Error(t, err)
	var cfgErr *TTLConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestGetMissThenHit(t *testing.T) {
	mock := clock.NewMock(time.Now())
	c, err := New[string, int](DefaultTTLConfig(), mock)
	require.NoError(t, err)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", 1, 10)
	val, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, val)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestExpiryRemovesEntry(t *testing.T) {
	mock := clock.NewMock(time.Now())
	cfg := DefaultTTLConfig()
	cfg.BaseTTL = time.Second
	cfg.EnableAdaptiveTTL = false
	c, err := New[string, int](cfg, mock)
	require.NoError(t, err)

	c.Put("a", 1, 0)
	mock.Advance(2 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().TTLExpirations)
}

func TestHotAccessExtendsTTL(t *testing.T) {
	mock := clock.NewMock(time.Now())
	cfg := DefaultTTLConfig().WithHotThreshold(2).WithAdaptationRate(0.5)
	cfg.ColdThreshold = 0
	c, err := New[string, int](cfg, mock)
	require.NoError(t, err)

	c.Put("a", 1, 0)
	c.Get("a")
	c.Get("a")

	stats := c.Stats()
	assert.Greater(t, stats.TTLAdaptations, int64(0))
}

func TestEvictionAtCapacity(t *testing.T) {
	mock := clock.NewMock(time.Now())
	cfg := DefaultTTLConfig()
	cfg.MaxEntries = 1
	c, err := New[string, int](cfg, mock)
	require.NoError(t, err)

	c.Put("a", 1, 5)
	mock.Advance(time.Millisecond)
	c.Put("b", 2, 5)

	_, ok := c.Get("a")
	assert.False(t, ok)
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(5), stats.BytesEvicted)
}

func TestCleanupSweepsExpired(t *testing.T) {
	mock := clock.NewMock(time.Now())
	cfg := DefaultTTLConfig()
	cfg.BaseTTL = time.Second
	cfg.EnableAdaptiveTTL = false
	c, err := New[string, int](cfg, mock)
	require.NoError(t, err)

	c.Put("a", 1, 0)
	mock.Advance(2 * time.Second)

	removed := c.Cleanup()
	assert.Equal(t, 1, removed)
}

func TestStartStopCleanupGoroutine(t *testing.T) {
	cfg := DefaultTTLConfig()
	cfg.CleanupInterval = 10 * time.Millisecond
	c, err := New[string, int](cfg, clock.Real{})
	require.NoError(t, err)

	c.StartCleanup()
	c.Stop(time.Second)
}
