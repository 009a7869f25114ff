package ttlcache

import "sync/atomic"

// Stats holds atomic counters for an AdaptiveTTLCache, matching the naming
// of original_source/memory-storage-turso/src/cache/adaptive_ttl.rs.
type Stats struct {
	hits            atomic.Int64
	misses          atomic.Int64
	evictions       atomic.Int64
	ttlExpirations  atomic.Int64
	removals        atomic.Int64
	ttlAdaptations  atomic.Int64
	cleanups        atomic.Int64
	bytesEvicted    atomic.Int64
	peakEntries     atomic.Int64
	ttlSumSecs      atomic.Int64 // accumulated for the running average
	ttlSampleCount  atomic.Int64
}

func (s *Stats) recordHit()                   { s.hits.Add(1) }
func (s *Stats) recordMiss()                  { s.misses.Add(1) }
func (s *Stats) recordEviction(bytes int)      { s.evictions.Add(1); s.bytesEvicted.Add(int64(bytes)) }
func (s *Stats) recordTTLExpiration()         { s.ttlExpirations.Add(1) }
func (s *Stats) recordRemoval()               { s.removals.Add(1) }
func (s *Stats) recordCleanup()               { s.cleanups.Add(1) }
func (s *Stats) recordTTLAdaptation(ttlSecs float64) {
	s.ttlAdaptations.Add(1)
	s.ttlSumSecs.Add(int64(ttlSecs * 1000))
	s.ttlSampleCount.Add(1)
}
func (s *Stats) updateEntryCount(n int) {
	for {
		peak := s.peakEntries.Load()
		if int64(n) <= peak || s.peakEntries.CompareAndSwap(peak, int64(n)) {
			return
		}
	}
}

// Snapshot is a point-in-time, non-atomic read of Stats plus derived metrics.
type Snapshot struct {
	Hits            int64
	Misses          int64
	Evictions       int64
	TTLExpirations  int64
	Removals        int64
	TTLAdaptations  int64
	CleanupOps      int64
	BytesEvicted    int64
	PeakEntries     int64
	EntryCount      int
	AverageTTLSecs  float64
}

// HitRate returns hits/(hits+misses), 0 if no operations recorded.
func (s Snapshot) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// HitRatePercent returns HitRate as a 0-100 percentage.
func (s Snapshot) HitRatePercent() float64 { return s.HitRate() * 100 }

// TotalOperations returns hits + misses.
func (s Snapshot) TotalOperations() int64 { return s.Hits + s.Misses }

// EvictionRate returns evictions per 1000 operations.
func (s Snapshot) EvictionRate() float64 {
	total := s.TotalOperations()
	if total == 0 {
		return 0
	}
	return float64(s.Evictions) / float64(total) * 1000
}

// IsEffective mirrors the query cache's effectiveness threshold: hit_rate >= 0.4.
func (s Snapshot) IsEffective() bool {
	return s.HitRate() >= 0.4
}

func (s *Stats) snapshot(entryCount int) Snapshot {
	avgTTL := 0.0
	if n := s.ttlSampleCount.Load(); n > 0 {
		avgTTL = float64(s.ttlSumSecs.Load()) / 1000 / float64(n)
	}
	return Snapshot{
		Hits:           s.hits.Load(),
		Misses:         s.misses.Load(),
		Evictions:      s.evictions.Load(),
		TTLExpirations: s.ttlExpirations.Load(),
		Removals:       s.removals.Load(),
		TTLAdaptations: s.ttlAdaptations.Load(),
		CleanupOps:     s.cleanups.Load(),
		BytesEvicted:   s.bytesEvicted.Load(),
		PeakEntries:    s.peakEntries.Load(),
		EntryCount:     entryCount,
		AverageTTLSecs: avgTTL,
	}
}
