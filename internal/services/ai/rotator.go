package ai

import (
	"sync"
	"time"
)

// credential is one API key plus its cooldown deadline.
type credential struct {
	key           string
	cooldownUntil time.Time
}

// Rotator cycles through an ordered pool of API keys. One key is active
// at a time; a key that hit its quota is put on cooldown and skipped
// until the cooldown expires. Safe for concurrent use.
type Rotator struct {
	mu       sync.Mutex
	creds    []credential
	active   int
	cooldown time.Duration

	now func() time.Time
}

// NewRotator creates a rotator over keys. cooldown is how long a key
// stays unavailable after a quota failure.
func NewRotator(keys []string, cooldown time.Duration) *Rotator {
	creds := make([]credential, len(keys))
	for i, k := range keys {
		creds[i] = credential{key: k}
	}
	return &Rotator{
		creds:    creds,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Len returns the number of configured credentials.
func (r *Rotator) Len() int {
	return len(r.creds)
}

// Active returns the currently selected key.
func (r *Rotator) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creds[r.active].key
}

// IsCooling reports whether the active key is still in cooldown.
func (r *Rotator) IsCooling() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Before(r.creds[r.active].cooldownUntil)
}

// Advance moves to the next key, wrapping around.
func (r *Rotator) Advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = (r.active + 1) % len(r.creds)
}

// MarkCooldown puts the active key on cooldown.
func (r *Rotator) MarkCooldown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[r.active].cooldownUntil = r.now().Add(r.cooldown)
}
