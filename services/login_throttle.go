package services

import (
	"sync"
	"time"
)

const ThrottleCooldownCapSeconds = 30

// throttleForgetAfter is how long after its cooldown ends an idle key is dropped.
const throttleForgetAfter = 15 * time.Minute

type throttleEntry struct {
	failCount     int
	cooldownUntil time.Time
}

// LoginThrottle slows down repeated failed logins per key (a username or chat id).
// After n consecutive failures the key waits min(30, 2^n) seconds.
type LoginThrottle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	now     func() time.Time
}

func NewLoginThrottle() *LoginThrottle {
	return &LoginThrottle{entries: make(map[string]*throttleEntry), now: time.Now}
}

// WaitSeconds returns how many seconds key must wait before trying again (0 if no cooldown).
func (t *LoginThrottle) WaitSeconds(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return 0
	}
	now := t.now()
	if now.Before(e.cooldownUntil) {
		return int(e.cooldownUntil.Sub(now).Seconds()) + 1 // round up
	}
	return 0
}

// RecordFailed increments the fail count and starts a new cooldown.
func (t *LoginThrottle) RecordFailed(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.prune(now)
	e, ok := t.entries[key]
	if !ok {
		e = &throttleEntry{}
		t.entries[key] = e
	}
	e.failCount++
	e.cooldownUntil = now.Add(time.Duration(CooldownSecondsForFailCount(e.failCount)) * time.Second)
}

// prune drops keys that have been idle for throttleForgetAfter past their cooldown.
func (t *LoginThrottle) prune(now time.Time) {
	for k, e := range t.entries {
		if now.Sub(e.cooldownUntil) > throttleForgetAfter {
			delete(t.entries, k)
		}
	}
}

// Len is the number of keys currently tracked.
func (t *LoginThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// RecordSuccess forgets key.
func (t *LoginThrottle) RecordSuccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// CooldownSecondsForFailCount returns min(30, 2^failCount).
func CooldownSecondsForFailCount(failCount int) int {
	// 2^5 already exceeds the cap; shifting further would overflow.
	if failCount >= 5 {
		return ThrottleCooldownCapSeconds
	}
	if failCount < 0 {
		return 1
	}
	return 1 << failCount
}
