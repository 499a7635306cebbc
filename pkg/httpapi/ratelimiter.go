package httpapi

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter implements per-IP rate limiting with a sliding window
type RateLimiter struct {
	limits          map[string][]time.Time
	maxRequests     int
	window          time.Duration
	clock           clockwork.Clock
	mu              sync.Mutex
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter allows maxRequests per IP within window. A nil clock uses
// the real clock.
func NewRateLimiter(maxRequests int, window time.Duration, clock clockwork.Clock) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	rl := &RateLimiter{
		limits:          make(map[string][]time.Time),
		maxRequests:     maxRequests,
		window:          window,
		clock:           clock,
		cleanupInterval: 5 * window,
		stopCleanup:     make(chan struct{}),
	}

	go rl.startCleanup()

	return rl
}

// CheckLimit records a request from ip and reports whether it is allowed
func (rl *RateLimiter) CheckLimit(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	requests := rl.prune(rl.limits[ip], now)

	if len(requests) >= rl.maxRequests {
		rl.limits[ip] = requests
		return false
	}

	rl.limits[ip] = append(requests, now)
	return true
}

// GetRetryAfter returns the number of seconds until ip may send again
func (rl *RateLimiter) GetRetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	requests := rl.limits[ip]
	if len(requests) == 0 {
		return 0
	}

	wait := rl.window - rl.clock.Since(requests[0])
	if wait <= 0 {
		return 0
	}

	// round up to whole seconds
	return int((wait + time.Second - 1) / time.Second)
}

func (rl *RateLimiter) prune(requests []time.Time, now time.Time) []time.Time {
	valid := requests[:0]
	for _, t := range requests {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}
	return valid
}

// startCleanup periodically removes idle entries
func (rl *RateLimiter) startCleanup() {
	ticker := rl.clock.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for ip, requests := range rl.limits {
		valid := rl.prune(requests, now)
		if len(valid) == 0 {
			delete(rl.limits, ip)
			continue
		}
		rl.limits[ip] = valid
	}
}

// tracked returns the number of IPs with state
func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
