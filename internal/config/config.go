// Package config provides configuration management for the episodic memory
// service.
//
// Configuration can be loaded from multiple sources (in order of precedence):
// 1. Environment variables (highest priority)
// 2. Configuration file (JSON)
// 3. Default values (lowest priority)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete set of tunables for the memory service, grouped by
// the component each section feeds.
type Config struct {
	PatternExtraction PatternExtractionConfig `json:"pattern_extraction"`
	Queue             QueueConfig             `json:"queue"`
	Cache             CacheConfig             `json:"cache"`
	AdaptiveTTL       AdaptiveTTLConfig       `json:"adaptive_ttl"`
	CircuitBreaker    CircuitBreakerConfig    `json:"circuit_breaker"`
	Compression       CompressionConfig       `json:"compression"`
	Reflection        ReflectionConfig        `json:"reflection"`
}

// PatternExtractionConfig tunes internal/learning's PatternExtractor.
type PatternExtractionConfig struct {
	// Threshold is the minimum decision-point confidence an extracted
	// pattern must carry to be kept. It is loaded and validated here but
	// not passed to the PatternExtractor, which always applies its built-in
	// default of 0.7.
	Threshold float64 `json:"threshold"`
}

// QueueConfig tunes internal/learning's ExtractionQueue.
type QueueConfig struct {
	Enabled  bool `json:"enabled"`
	Workers  int  `json:"workers"`
	Capacity int  `json:"capacity"`
}

// CacheConfig tunes internal/cache's QueryCache.
type CacheConfig struct {
	MaxEntries     int `json:"max_entries"`
	DefaultTTLSecs int `json:"default_ttl_secs"`
}

// AdaptiveTTLConfig tunes internal/ttlcache's AdaptiveTTLCache. Field naming
// mirrors ttlcache.TTLConfig so TTLConfigFields can map one onto the other directly.
type AdaptiveTTLConfig struct {
	BaseTTLSecs        int     `json:"base_ttl_secs"`
	MinTTLSecs         int     `json:"min_ttl_secs"`
	MaxTTLSecs         int     `json:"max_ttl_secs"`
	HotThreshold       int     `json:"hot_threshold"`
	ColdThreshold      int     `json:"cold_threshold"`
	AdaptationRate     float64 `json:"adaptation_rate"`
	CleanupIntervalSecs int    `json:"cleanup_interval_secs"`
	WindowSize         int     `json:"window_size"`
	BackgroundCleanup  bool    `json:"background_cleanup"`
}

// CircuitBreakerConfig tunes internal/resilience's CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold      int `json:"failure_threshold"`
	TimeoutSecs           int `json:"timeout_secs"`
	HalfOpenTestPeriodSecs int `json:"half_open_test_period_secs"`
	BaseDelayMillis       int `json:"base_delay_millis"`
	MaxDelayMillis        int `json:"max_delay_millis"`
}

// CompressionConfig tunes internal/resilience's compressed Transport.
type CompressionConfig struct {
	ThresholdBytes        int     `json:"threshold_bytes"`
	Level                 int     `json:"level"`
	WarningRatioThreshold float64 `json:"warning_ratio_threshold"`
	PreferGzip            bool    `json:"prefer_gzip"`
}

// ReflectionConfig tunes internal/learning's ReflectionGenerator.
type ReflectionConfig struct {
	MaxItems int `json:"max_items"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		PatternExtraction: PatternExtractionConfig{Threshold: 0.7},
		Queue: QueueConfig{
			Enabled:  true,
			Workers:  2,
			Capacity: 256,
		},
		Cache: CacheConfig{
			MaxEntries:     1000,
			DefaultTTLSecs: 300,
		},
		AdaptiveTTL: AdaptiveTTLConfig{
			BaseTTLSecs:         300,
			MinTTLSecs:          30,
			MaxTTLSecs:          1800,
			HotThreshold:        10,
			ColdThreshold:       1,
			AdaptationRate:      0.2,
			CleanupIntervalSecs: 60,
			WindowSize:          20,
			BackgroundCleanup:   true,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:       5,
			TimeoutSecs:            30,
			HalfOpenTestPeriodSecs: 10,
			BaseDelayMillis:        100,
			MaxDelayMillis:         1600,
		},
		Compression: CompressionConfig{
			ThresholdBytes:        4096,
			Level:                 2,
			WarningRatioThreshold: 0.9,
			PreferGzip:            false,
		},
		Reflection: ReflectionConfig{MaxItems: 5},
	}
}

// Load loads configuration from environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file, then applies
// environment variable overrides on top of it.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration from environment variables.
// Environment variables follow the pattern EM_<SECTION>_<KEY>, e.g.
// EM_QUEUE_WORKERS, EM_CACHE_MAX_ENTRIES.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("EM_PATTERN_EXTRACTION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.PatternExtraction.Threshold = f
		}
	}

	if v := os.Getenv("EM_QUEUE_ENABLED"); v != "" {
		c.Queue.Enabled = parseBool(v)
	}
	if v := os.Getenv("EM_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.Workers = n
		}
	}
	if v := os.Getenv("EM_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.Capacity = n
		}
	}

	if v := os.Getenv("EM_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.MaxEntries = n
		}
	}
	if v := os.Getenv("EM_CACHE_DEFAULT_TTL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.DefaultTTLSecs = n
		}
	}

	if v := os.Getenv("EM_ADAPTIVE_TTL_BASE_TTL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AdaptiveTTL.BaseTTLSecs = n
		}
	}
	if v := os.Getenv("EM_ADAPTIVE_TTL_MIN_TTL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AdaptiveTTL.MinTTLSecs = n
		}
	}
	if v := os.Getenv("EM_ADAPTIVE_TTL_MAX_TTL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AdaptiveTTL.MaxTTLSecs = n
		}
	}
	if v := os.Getenv("EM_ADAPTIVE_TTL_HOT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AdaptiveTTL.HotThreshold = n
		}
	}
	if v := os.Getenv("EM_ADAPTIVE_TTL_COLD_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AdaptiveTTL.ColdThreshold = n
		}
	}
	if v := os.Getenv("EM_ADAPTIVE_TTL_ADAPTATION_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AdaptiveTTL.AdaptationRate = f
		}
	}
	if v := os.Getenv("EM_ADAPTIVE_TTL_CLEANUP_INTERVAL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AdaptiveTTL.CleanupIntervalSecs = n
		}
	}
	if v := os.Getenv("EM_ADAPTIVE_TTL_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AdaptiveTTL.WindowSize = n
		}
	}
	if v := os.Getenv("EM_ADAPTIVE_TTL_BACKGROUND_CLEANUP"); v != "" {
		c.AdaptiveTTL.BackgroundCleanup = parseBool(v)
	}

	if v := os.Getenv("EM_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CircuitBreaker.FailureThreshold = n
		}
	}
	if v := os.Getenv("EM_CIRCUIT_BREAKER_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CircuitBreaker.TimeoutSecs = n
		}
	}
	if v := os.Getenv("EM_CIRCUIT_BREAKER_HALF_OPEN_TEST_PERIOD_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CircuitBreaker.HalfOpenTestPeriodSecs = n
		}
	}
	if v := os.Getenv("EM_CIRCUIT_BREAKER_BASE_DELAY_MILLIS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CircuitBreaker.BaseDelayMillis = n
		}
	}
	if v := os.Getenv("EM_CIRCUIT_BREAKER_MAX_DELAY_MILLIS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CircuitBreaker.MaxDelayMillis = n
		}
	}

	if v := os.Getenv("EM_COMPRESSION_THRESHOLD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Compression.ThresholdBytes = n
		}
	}
	if v := os.Getenv("EM_COMPRESSION_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Compression.Level = n
		}
	}
	if v := os.Getenv("EM_COMPRESSION_WARNING_RATIO_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Compression.WarningRatioThreshold = f
		}
	}
	if v := os.Getenv("EM_COMPRESSION_PREFER_GZIP"); v != "" {
		c.Compression.PreferGzip = parseBool(v)
	}

	if v := os.Getenv("EM_REFLECTION_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Reflection.MaxItems = n
		}
	}

	return nil
}

// Validate checks the configuration's invariants before it is handed to the
// components it configures.
func (c *Config) Validate() error {
	if c.PatternExtraction.Threshold < 0 || c.PatternExtraction.Threshold > 1 {
		return fmt.Errorf("pattern_extraction.threshold must be in [0,1]")
	}

	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be >= 1")
	}
	if c.Queue.Capacity < 1 {
		return fmt.Errorf("queue.capacity must be >= 1")
	}

	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be >= 1")
	}
	if c.Cache.DefaultTTLSecs < 1 {
		return fmt.Errorf("cache.default_ttl_secs must be >= 1")
	}

	a := c.AdaptiveTTL
	if a.BaseTTLSecs < 1 || a.MinTTLSecs < 1 || a.MaxTTLSecs < 1 {
		return fmt.Errorf("adaptive_ttl TTL durations must be positive")
	}
	if a.MinTTLSecs > a.BaseTTLSecs || a.BaseTTLSecs > a.MaxTTLSecs {
		return fmt.Errorf("adaptive_ttl must hold min_ttl_secs <= base_ttl_secs <= max_ttl_secs")
	}
	if a.HotThreshold <= a.ColdThreshold {
		return fmt.Errorf("adaptive_ttl.hot_threshold must exceed adaptive_ttl.cold_threshold")
	}
	if a.AdaptationRate <= 0 || a.AdaptationRate >= 1 {
		return fmt.Errorf("adaptive_ttl.adaptation_rate must be in (0,1)")
	}
	if a.WindowSize < 1 {
		return fmt.Errorf("adaptive_ttl.window_size must be >= 1")
	}
	if a.CleanupIntervalSecs < 1 {
		return fmt.Errorf("adaptive_ttl.cleanup_interval_secs must be >= 1")
	}

	cb := c.CircuitBreaker
	if cb.FailureThreshold < 1 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be >= 1")
	}
	if cb.TimeoutSecs < 1 || cb.HalfOpenTestPeriodSecs < 1 {
		return fmt.Errorf("circuit_breaker timeout and half_open_test_period must be positive")
	}
	if cb.BaseDelayMillis < 1 || cb.MaxDelayMillis < cb.BaseDelayMillis {
		return fmt.Errorf("circuit_breaker must hold 0 < base_delay_millis <= max_delay_millis")
	}

	if c.Compression.ThresholdBytes < 0 {
		return fmt.Errorf("compression.threshold_bytes cannot be negative")
	}
	if c.Compression.Level < 0 || c.Compression.Level > 4 {
		return fmt.Errorf("compression.level must be in [0,4]")
	}
	if c.Compression.WarningRatioThreshold < 0 {
		return fmt.Errorf("compression.warning_ratio_threshold cannot be negative")
	}

	if c.Reflection.MaxItems < 1 {
		return fmt.Errorf("reflection.max_items must be >= 1")
	}

	return nil
}

// CacheTTL returns CacheConfig.DefaultTTLSecs as a time.Duration.
func (c CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.DefaultTTLSecs) * time.Second
}

// TTLConfigFields returns the AdaptiveTTL section translated into the
// duration/rate fields ttlcache.TTLConfig expects, leaving the caller (which
// imports ttlcache) to assemble the struct itself and avoid a config->cache
// import cycle.
func (a AdaptiveTTLConfig) TTLConfigFields() (baseTTL, minTTL, maxTTL, cleanupInterval time.Duration, hotThreshold, coldThreshold, windowSize int, adaptationRate float64) {
	return time.Duration(a.BaseTTLSecs) * time.Second,
		time.Duration(a.MinTTLSecs) * time.Second,
		time.Duration(a.MaxTTLSecs) * time.Second,
		time.Duration(a.CleanupIntervalSecs) * time.Second,
		a.HotThreshold,
		a.ColdThreshold,
		a.WindowSize,
		a.AdaptationRate
}

// CircuitBreakerFields returns the CircuitBreaker section translated into
// the duration fields resilience.CircuitBreakerConfig expects.
func (cb CircuitBreakerConfig) CircuitBreakerFields() (timeout, halfOpenTestPeriod, baseDelay, maxDelay time.Duration) {
	return time.Duration(cb.TimeoutSecs) * time.Second,
		time.Duration(cb.HalfOpenTestPeriodSecs) * time.Second,
		time.Duration(cb.BaseDelayMillis) * time.Millisecond,
		time.Duration(cb.MaxDelayMillis) * time.Millisecond
}

// parseBool parses a boolean from string (handles various formats).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on" || s == "enabled"
}

// ToJSON serializes the configuration to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveToFile saves the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
