package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// stateValueBytes sizes the random state value. 32 bytes is well above the
// 128-bit entropy floor required for CSRF tokens.
const stateValueBytes = 32

const purgeInterval = 5 * time.Minute

type stateEntry struct {
	issuedAt  time.Time
	expiresAt time.Time
	consumed  bool
}

// StateRegistry issues single-use CSRF state tokens and validates them on
// callback. It is the one piece of shared mutable state in the login flow
// and is safe for concurrent use.
type StateRegistry struct {
	mu      sync.Mutex
	entries map[string]*stateEntry

	validity time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStateRegistry creates a registry whose tokens stay valid for the given
// window. A background goroutine purges expired entries until Close is
// called.
func NewStateRegistry(validity time.Duration) *StateRegistry {
	r := &StateRegistry{
		entries:  make(map[string]*stateEntry),
		validity: validity,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go r.purgeLoop()
	return r
}

// Issue generates a new state token, records it, and returns its value for
// embedding in the authorization redirect.
func (r *StateRegistry) Issue() (string, error) {
	b := make([]byte, stateValueBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state token: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(b)

	now := r.now()
	r.mu.Lock()
	r.entries[value] = &stateEntry{
		issuedAt:  now,
		expiresAt: now.Add(r.validity),
	}
	r.mu.Unlock()

	return value, nil
}

// Validate checks and consumes a state value. The existence, expiry, and
// consumed checks plus the consumed-flag set happen under one lock, so two
// concurrent callbacks presenting the same value can never both succeed.
func (r *StateRegistry) Validate(value string) error {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[value]
	if !ok {
		return ErrStateNotFound
	}
	if !now.Before(entry.expiresAt) {
		delete(r.entries, value)
		return ErrStateExpired
	}
	if entry.consumed {
		return ErrStateAlreadyConsumed
	}

	entry.consumed = true
	return nil
}

// Close stops the purge goroutine. The registry remains usable afterwards
// but no longer reclaims expired entries on its own.
func (r *StateRegistry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Len reports the number of tracked entries, consumed or not.
func (r *StateRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *StateRegistry) purgeLoop() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.purge()
		case <-r.stop:
			return
		}
	}
}

// purge drops entries past their expiry. Expired entries already fail
// validation, so timing here is resource hygiene, not security.
func (r *StateRegistry) purge() {
	now := r.now()
	r.mu.Lock()
	for value, entry := range r.entries {
		if !now.Before(entry.expiresAt) {
			delete(r.entries, value)
		}
	}
	r.mu.Unlock()
}
