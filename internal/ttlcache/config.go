package ttlcache

import (
	"fmt"
	"time"
)

// TTLConfigError reports an invalid TTLConfig (spec §4.6: "Constructor
// validates configuration and fails with a TTLConfigError on invalid ranges").
type TTLConfigError struct {
	Reason string
}

func (e *TTLConfigError) Error() string {
	return fmt.Sprintf("invalid ttl config: %s", e.Reason)
}

// TTLConfig configures an AdaptiveTTLCache. Field and builder-method naming
// follows original_source/memory-storage-turso/src/cache/adaptive_ttl.rs.
type TTLConfig struct {
	MaxEntries        int
	BaseTTL           time.Duration
	MinTTL            time.Duration
	MaxTTL            time.Duration
	HotThreshold      int     // accesses within WindowSize to count as "hot"
	ColdThreshold     int     // accesses within WindowSize to count as "cold"
	AdaptationRate    float64 // ∈ (0,1)
	CleanupInterval   time.Duration
	WindowSize        int // sliding access-history window length
	EnableAdaptiveTTL bool
}

// DefaultTTLConfig returns the default configuration.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		MaxEntries:        10000,
		BaseTTL:           5 * time.Minute,
		MinTTL:            30 * time.Second,
		MaxTTL:            30 * time.Minute,
		HotThreshold:      10,
		ColdThreshold:      1,
		AdaptationRate:    0.2,
		CleanupInterval:   time.Minute,
		WindowSize:        20,
		EnableAdaptiveTTL: true,
	}
}

// WithHotThreshold sets HotThreshold.
func (c TTLConfig) WithHotThreshold(n int) TTLConfig { c.HotThreshold = n; return c }

// WithAdaptationRate sets AdaptationRate.
func (c TTLConfig) WithAdaptationRate(rate float64) TTLConfig { c.AdaptationRate = rate; return c }

// WithBaseTTL sets BaseTTL.
func (c TTLConfig) WithBaseTTL(d time.Duration) TTLConfig { c.BaseTTL = d; return c }

// Validate enforces the invariants a constructor must check before use.
func (c TTLConfig) Validate() error {
	if c.MaxEntries <= 0 {
		return &TTLConfigError{Reason: "max_entries must be positive"}
	}
	if c.MinTTL <= 0 || c.MaxTTL <= 0 || c.BaseTTL <= 0 {
		return &TTLConfigError{Reason: "ttl durations must be positive"}
	}
	if c.MinTTL > c.BaseTTL || c.BaseTTL > c.MaxTTL {
		return &TTLConfigError{Reason: "must hold min_ttl <= base_ttl <= max_ttl"}
	}
	if c.HotThreshold <= c.ColdThreshold {
		return &TTLConfigError{Reason: "hot_threshold must exceed cold_threshold"}
	}
	if c.AdaptationRate <= 0 || c.AdaptationRate >= 1 {
		return &TTLConfigError{Reason: "adaptation_rate must be in (0,1)"}
	}
	if c.WindowSize <= 0 {
		return &TTLConfigError{Reason: "window_size must be positive"}
	}
	if c.CleanupInterval <= 0 {
		return &TTLConfigError{Reason: "cleanup_interval must be positive"}
	}
	return nil
}
