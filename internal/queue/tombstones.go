package queue

import (
	"time"
)

// Tombstones remembers recently dismissed ids so a feed that has not yet
// observed the dismissal cannot re-admit them.
// An entry is forgotten once a snapshot no longer carries the id, or when
// its TTL runs out.
type Tombstones struct {
	ttl     time.Duration
	entries map[string]time.Time // id -> dismissed at
}

// NewTombstones creates a tombstone set. A ttl of zero keeps entries until
// the feed stops delivering them.
func NewTombstones(ttl time.Duration) *Tombstones {
	return &Tombstones{
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

// Add records id as dismissed at now.
func (t *Tombstones) Add(id string, now time.Time) {
	t.entries[id] = now
}

// Contains reports whether id is a live tombstone at now.
func (t *Tombstones) Contains(id string, now time.Time) bool {
	at, ok := t.entries[id]
	if !ok {
		return false
	}
	if t.expired(at, now) {
		delete(t.entries, id)
		return false
	}
	return true
}

// Len returns the number of tracked ids, including expired ones not yet pruned.
func (t *Tombstones) Len() int {
	return len(t.entries)
}

// Prune forgets ids that are absent from the latest snapshot or expired.
func (t *Tombstones) Prune(present map[string]bool, now time.Time) int {
	removed := 0
	for id, at := range t.entries {
		if !present[id] || t.expired(at, now) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Clear forgets everything.
func (t *Tombstones) Clear() {
	t.entries = make(map[string]time.Time)
}

func (t *Tombstones) expired(at, now time.Time) bool {
	return t.ttl > 0 && now.Sub(at) >= t.ttl
}
