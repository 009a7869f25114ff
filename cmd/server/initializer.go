package main

import (
	"log"
	"os"
	"time"

	"episodic-memory/internal/config"
	"episodic-memory/internal/memory"
	"episodic-memory/internal/resilience"
	"episodic-memory/internal/storage"
	"episodic-memory/internal/ttlcache"
)

// ServerComponents holds the initialized top-level components.
type ServerComponents struct {
	Config *config.Config
	Memory *memory.Memory
}

// InitializeServer builds the Memory façade from configuration. Extracted
// from main() to enable testing, mirroring the teacher's own
// InitializeServer/ServerComponents split.
func InitializeServer() (*ServerComponents, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	storageCfg := storage.DefaultConfig()
	if path := os.Getenv("EM_SQLITE_PATH"); path != "" {
		storageCfg = storage.Config{
			Kind:          storage.KindSQLite,
			SQLitePath:    path,
			BusyTimeoutMs: 5000,
		}
		log.Printf("Using sqlite storage backend: %s", path)
	} else {
		log.Println("EM_SQLITE_PATH not set, using in-memory storage backend")
	}

	backend, err := storage.New(storageCfg)
	if err != nil {
		return nil, err
	}

	baseTTL, minTTL, maxTTL, cleanupInterval, hotThreshold, coldThreshold, windowSize, adaptationRate := cfg.AdaptiveTTL.TTLConfigFields()
	ttlCfg := ttlcache.TTLConfig{
		MaxEntries:        cfg.Cache.MaxEntries,
		BaseTTL:           baseTTL,
		MinTTL:            minTTL,
		MaxTTL:            maxTTL,
		HotThreshold:      hotThreshold,
		ColdThreshold:     coldThreshold,
		AdaptationRate:    adaptationRate,
		CleanupInterval:   cleanupInterval,
		WindowSize:        windowSize,
		EnableAdaptiveTTL: cfg.AdaptiveTTL.BackgroundCleanup,
	}

	timeout, halfOpenTestPeriod, baseDelay, maxDelay := cfg.CircuitBreaker.CircuitBreakerFields()
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold:   cfg.CircuitBreaker.FailureThreshold,
		Timeout:            timeout,
		HalfOpenTestPeriod: halfOpenTestPeriod,
		BaseDelay:          baseDelay,
		MaxDelay:           maxDelay,
	}

	transportCfg := resilience.TransportConfig{
		ThresholdBytes:        cfg.Compression.ThresholdBytes,
		PreferGzip:            cfg.Compression.PreferGzip,
		Level:                 cfg.Compression.Level,
		WarningRatioThreshold: cfg.Compression.WarningRatioThreshold,
	}

	queueCapacity := 0
	if cfg.Queue.Enabled {
		queueCapacity = cfg.Queue.Capacity
	}

	m, err := memory.New(memory.Options{
		Backend:        backend,
		TTLConfig:      &ttlCfg,
		CircuitBreaker: &cbCfg,
		Transport:      &transportCfg,
		QueryCacheSize: cfg.Cache.MaxEntries,
		QueryCacheTTL:  cfg.Cache.CacheTTL(),
		QueueCapacity:  queueCapacity,
		QueueWorkers:   cfg.Queue.Workers,
		ReflectionMax:  cfg.Reflection.MaxItems,
	})
	if err != nil {
		return nil, err
	}
	log.Println("Initialized memory orchestrator (episode lifecycle, graph, hierarchical index, learning pipeline, diversity selector, caches, resilience layer)")

	return &ServerComponents{Config: cfg, Memory: m}, nil
}

// Cleanup releases the components' resources.
func (c *ServerComponents) Cleanup() error {
	if c.Memory != nil {
		return c.Memory.Close(5 * time.Second)
	}
	return nil
}
