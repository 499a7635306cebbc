package lifecycle

import (
	"sync"
	"time"
)

// DefaultDedupTTL is how long a delivered message id is remembered.
const DefaultDedupTTL = 10 * time.Minute

// dedupCache remembers message ids so a redelivered message gets a
// single reply. Expired entries are dropped lazily.
type dedupCache struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	lastPrune time.Time
}

func newDedupCache(ttl time.Duration, now func() time.Time) *dedupCache {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &dedupCache{
		entries:   make(map[string]time.Time),
		ttl:       ttl,
		now:       now,
		lastPrune: now(),
	}
}

// seen records key and reports whether it was already recorded within
// the ttl.
func (dc *dedupCache) seen(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	now := dc.now()
	if now.Sub(dc.lastPrune) > dc.ttl {
		for k, at := range dc.entries {
			if now.Sub(at) > dc.ttl {
				delete(dc.entries, k)
			}
		}
		dc.lastPrune = now
	}

	if at, ok := dc.entries[key]; ok && now.Sub(at) <= dc.ttl {
		return true
	}
	dc.entries[key] = now
	return false
}

// size returns the number of remembered ids, expired or not.
func (dc *dedupCache) size() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return len(dc.entries)
}
