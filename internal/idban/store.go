// Package idban is the flat identifier banlist: exact-match bans keyed by IP
// string, user id, or client fingerprint, with optional TTL expiry. It is the
// simpler sibling of the rangeban engine and shares its API shape.
package idban

import (
	"sync"
	"time"
)

// Entry records one ban on one identifier. A zero ExpiresAt means the ban is
// permanent.
type Entry struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason,omitempty"`
	BannedBy  string    `json:"banned_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Options carries the optional metadata for a Ban call. TTL <= 0 bans forever.
type Options struct {
	Reason   string
	BannedBy string
	TTL      time.Duration
}

// Store is a TTL-aware identifier banlist. Expired entries are dropped lazily
// on lookup and in bulk by Sweep.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

func New() *Store {
	return &Store{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Ban adds or replaces the identifier. Empty identifiers are rejected.
func (s *Store) Ban(id string, opts Options) bool {
	if id == "" {
		return false
	}

	now := s.now().UTC()
	entry := Entry{
		ID:        id,
		Reason:    opts.Reason,
		BannedBy:  opts.BannedBy,
		CreatedAt: now,
	}
	if opts.TTL > 0 {
		entry.ExpiresAt = now.Add(opts.TTL)
	}

	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()
	return true
}

// Unban removes the identifier; false when absent or already expired.
func (s *Store) Unban(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	delete(s.entries, id)
	return !entry.expired(s.now())
}

// IsBanned reports whether the identifier is currently banned, dropping the
// entry if its TTL has lapsed.
func (s *Store) IsBanned(id string) bool {
	_, banned := s.Entry(id)
	return banned
}

// Entry returns the live entry for the identifier.
func (s *Store) Entry(id string) (Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return Entry{}, false
	}
	if entry.expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Ban may have renewed it.
		if current, still := s.entries[id]; still && current.expired(s.now()) {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return Entry{}, false
	}
	return entry, true
}

// Sweep removes every expired entry and returns how many were dropped. The
// banlist manager calls this on its refresh tick.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, id)
			dropped++
		}
	}
	return dropped
}

// Len counts live entries without removing expired ones.
func (s *Store) Len() int {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, entry := range s.entries {
		if !entry.expired(now) {
			n++
		}
	}
	return n
}

// Clear drops everything.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()
}
