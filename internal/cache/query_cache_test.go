package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"episodic-memory/internal/types"
)

// End-to-end scenario 4 of spec §8.
func TestInvalidateDomainScopedToDomain(t *testing.T) {
	c := New(10, time.Minute)

	webKey := Key{Query: "q1", Domain: "web-api"}
	dataKey := Key{Query: "q2", Domain: "data-processing"}

	c.Put(webKey, []*types.Episode{{}})
	c.Put(dataKey, []*types.Episode{{}})

	c.InvalidateDomain("web-api")

	_, ok := c.Get(webKey)
	assert.False(t, ok)

	_, ok = c.Get(dataKey)
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Invalidations)
}

func TestHitRateComputation(t *testing.T) {
	c := New(10, time.Minute)
	key := Key{Query: "q"}
	c.Put(key, []*types.Episode{{}})

	c.Get(key)
	c.Get(Key{Query: "missing"})

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.True(t, stats.IsEffective())
}

func TestInvalidateAllCountsPriorEntries(t *testing.T) {
	c := New(10, time.Minute)
	c.Put(Key{Query: "a"}, []*types.Episode{{}})
	c.Put(Key{Query: "b"}, []*types.Episode{{}})

	c.InvalidateAll()

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Invalidations)
	assert.Equal(t, 0, stats.Size)
}

func TestPutClearsInvalidationMark(t *testing.T) {
	c := New(10, time.Minute)
	key := Key{Query: "q", Domain: "web-api"}
	c.Put(key, []*types.Episode{{}})
	c.InvalidateDomain("web-api")

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, []*types.Episode{{}})
	_, ok = c.Get(key)
	assert.True(t, ok)
}
