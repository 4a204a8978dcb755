package trust

import (
	"sync"
	"time"
)

// signature identifies a detection for cooldown purposes: the same rule
// firing again for the same device within the cooldown window contributes
// to observed_severity but not to score_impact (spec.md §4.8).
type signature struct {
	deviceID string
	ruleName string
}

// CooldownCache is the server's Detection-Signature Cache (spec.md §3):
// an in-memory map of (device_id, rule_name) to the last time a penalty
// was applied for that signature, guarded by a single mutex (spec.md
// Design Notes).
type CooldownCache struct {
	mu       sync.Mutex
	last     map[signature]time.Time
	cooldown time.Duration
}

// NewCooldownCache constructs a cache with the given cooldown window
// (spec.md default ALERT_COOLDOWN_SECONDS=45).
func NewCooldownCache(cooldown time.Duration) *CooldownCache {
	if cooldown <= 0 {
		cooldown = 45 * time.Second
	}
	return &CooldownCache{last: make(map[signature]time.Time), cooldown: cooldown}
}

// Allow reports whether a new penalty may be applied for (deviceID,
// ruleName) at now. If so, it records now as the new last-penalized
// timestamp for that signature before returning.
func (c *CooldownCache) Allow(deviceID, ruleName string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	sig := signature{deviceID, ruleName}
	if last, ok := c.last[sig]; ok && now.Sub(last) < c.cooldown {
		return false
	}
	c.last[sig] = now
	return true
}

// GC removes signatures whose last penalty is older than 5x the cooldown
// window (spec.md §3), opportunistically bounding the cache's size.
func (c *CooldownCache) GC(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := 5 * c.cooldown
	for sig, t := range c.last {
		if now.Sub(t) > cutoff {
			delete(c.last, sig)
		}
	}
}

// Len reports the number of tracked signatures, for tests.
func (c *CooldownCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}
