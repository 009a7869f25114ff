// Package spatiotemporal implements the hierarchical spatiotemporal index
// (spec §4.2): a three-level tree — Domain -> TaskType -> time-bucketed
// index — plus a flat global index for cross-domain time queries.
package spatiotemporal

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"episodic-memory/internal/types"
)

// SpatiotemporalIndex buckets episode ids by their Year/Month/Day/Hour
// TimeBucket and additionally tracks each id's timestamp for range queries.
type SpatiotemporalIndex struct {
	mu       sync.RWMutex
	byBucket map[types.TimeBucket]map[uuid.UUID]time.Time
	byID     map[uuid.UUID]types.TimeBucket
}

// NewSpatiotemporalIndex creates an empty index.
func NewSpatiotemporalIndex() *SpatiotemporalIndex {
	return &SpatiotemporalIndex{
		byBucket: make(map[types.TimeBucket]map[uuid.UUID]time.Time),
		byID:     make(map[uuid.UUID]types.TimeBucket),
	}
}

// Insert records id at the bucket derived from at.
func (s *SpatiotemporalIndex) Insert(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := types.BucketFromTime(at)
	if s.byBucket[bucket] == nil {
		s.byBucket[bucket] = make(map[uuid.UUID]time.Time)
	}
	s.byBucket[bucket][id] = at
	s.byID[id] = bucket
}

// Remove deletes id from the index.
func (s *SpatiotemporalIndex) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byBucket[bucket], id)
	if len(s.byBucket[bucket]) == 0 {
		delete(s.byBucket, bucket)
	}
	delete(s.byID, id)
}

// IsEmpty reports whether the index holds no entries.
func (s *SpatiotemporalIndex) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID) == 0
}

// Size returns the number of indexed episodes.
func (s *SpatiotemporalIndex) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// QueryByBucket returns every id indexed under bucket.
func (s *SpatiotemporalIndex) QueryByBucket(bucket types.TimeBucket) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.byBucket[bucket]))
	for id := range s.byBucket[bucket] {
		ids = append(ids, id)
	}
	return ids
}

// QueryByRange returns every id whose timestamp falls in [start, end].
func (s *SpatiotemporalIndex) QueryByRange(start, end time.Time) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uuid.UUID
	for _, entries := range s.byBucket {
		for id, at := range entries {
			if !at.Before(start) && !at.After(end) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// QueryAll returns every id in the index.
func (s *SpatiotemporalIndex) QueryAll() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	return ids
}
