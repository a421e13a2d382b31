package channels

import (
	"sync"
	"time"
)

// maxTrackedKeys caps tracked senders so an attacker rotating sender ids
// cannot exhaust memory.
const maxTrackedKeys = 4096

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

// WebhookRateLimiter bounds inbound messages per sender in a sliding
// window. Safe for concurrent use.
type WebhookRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	window  time.Duration
	maxHits int
}

func NewWebhookRateLimiter(maxHitsPerMinute int) *WebhookRateLimiter {
	if maxHitsPerMinute <= 0 {
		maxHitsPerMinute = 30
	}
	return &WebhookRateLimiter{
		entries: make(map[string]*rateLimitEntry),
		window:  time.Minute,
		maxHits: maxHitsPerMinute,
	}
}

// Allow reports whether the key is within its rate limit. Stale entries are
// pruned when the tracked-key cap is approached.
func (r *WebhookRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if len(r.entries) >= maxTrackedKeys {
		for k, e := range r.entries {
			if now.Sub(e.windowStart) >= r.window {
				delete(r.entries, k)
			}
		}
		for len(r.entries) >= maxTrackedKeys {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[key]
	if !ok || now.Sub(e.windowStart) >= r.window {
		r.entries[key] = &rateLimitEntry{windowStart: now, count: 1}
		return true
	}

	e.count++
	return e.count <= r.maxHits
}
