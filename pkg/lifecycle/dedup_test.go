package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupCache(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	dc := newDedupCache(time.Minute, clock)

	assert.False(t, dc.seen("s1/m1"))
	assert.True(t, dc.seen("s1/m1"))
	assert.False(t, dc.seen("s2/m1"), "keys are per session")

	now = now.Add(2 * time.Minute)
	assert.False(t, dc.seen("s1/m1"), "expired ids are accepted again")
	// the prune pass dropped s2/m1
	assert.Equal(t, 1, dc.size())
}

func TestDedupCache_DefaultTTL(t *testing.T) {
	dc := newDedupCache(0, time.Now)
	assert.Equal(t, DefaultDedupTTL, dc.ttl)
}
