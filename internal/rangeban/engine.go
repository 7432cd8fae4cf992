// Package rangeban implements the CIDR range banlist engine: it decides
// whether an arbitrary IPv4 or IPv6 address falls inside any configured
// blocked network range and maintains the range set under insertion and
// removal with sub-linear lookup.
//
// The engine performs no I/O and never returns errors: malformed input of any
// kind degrades to a negative result so attacker-supplied address data can
// never crash a caller's request pipeline. State lives only in process memory;
// whoever owns the instance re-seeds it on restart.
package rangeban

import (
	"sync"
	"time"
)

// BanEntry records one administrator action on one range. The notation string
// is the natural key for the whole banlist; re-banning the same notation
// replaces the entry wholesale.
type BanEntry struct {
	Range     string    `json:"range"`
	Reason    string    `json:"reason,omitempty"`
	BannedBy  string    `json:"banned_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BanOptions carries the optional metadata for a Ban call.
type BanOptions struct {
	Reason   string
	BannedBy string
}

// Stats is an aggregate snapshot of the banlist.
type Stats struct {
	TotalRanges int        `json:"total_ranges"`
	IPv4Count   int        `json:"ipv4_count"`
	IPv6Count   int        `json:"ipv6_count"`
	Entries     []BanEntry `json:"entries"`
}

// Engine is a constructible banlist instance. The canonical notation-keyed
// entry map is authoritative; the two per-family sorted indexes are secondary
// and kept consistent on every mutation before the call returns.
//
// All state is guarded by one lock so the instance can be shared by a
// concurrent host such as an HTTP server.
type Engine struct {
	mu      sync.RWMutex
	entries map[string]*BanEntry
	v4      index4
	v6      index6
	version uint64
}

func New() *Engine {
	return &Engine{entries: make(map[string]*BanEntry)}
}

// Ban adds or replaces the range under its notation. It returns false without
// mutating anything when the notation is not valid CIDR.
func (e *Engine) Ban(notation string, opts BanOptions) bool {
	entry := &BanEntry{
		Range:     notation,
		Reason:    opts.Reason,
		BannedBy:  opts.BannedBy,
		CreatedAt: time.Now().UTC(),
	}
	encoded, ok := encodeRange(notation, entry)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.entries[notation]; exists {
		e.removeFromIndex(encoded.family, notation)
	}
	e.entries[notation] = entry

	switch encoded.family {
	case FamilyIPv4:
		e.v4.insert(encoded)
	case FamilyIPv6:
		e.v6.insert(encoded)
	}
	e.version++
	return true
}

// Unban removes the notation from the banlist. Unknown notations return false
// and leave all state untouched.
func (e *Engine) Unban(notation string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.entries[notation]; !exists {
		return false
	}
	delete(e.entries, notation)
	e.removeFromIndex(notationFamily(notation), notation)
	e.version++
	return true
}

// notationFamily re-derives the family from the notation's own address part.
func notationFamily(notation string) Family {
	address, _, ok := splitNotation(notation)
	if !ok {
		address = notation
	}
	if IsIPv6(address) {
		return FamilyIPv6
	}
	return FamilyIPv4
}

func (e *Engine) removeFromIndex(family Family, notation string) {
	switch family {
	case FamilyIPv4:
		e.v4.remove(notation)
	case FamilyIPv6:
		e.v6.remove(notation)
	}
}

// IsBanned reports whether the address falls inside any banned range.
// Loopback and the empty string are never banned.
func (e *Engine) IsBanned(address string) bool {
	_, banned := e.MatchingRange(address)
	return banned
}

// MatchingRange returns the notation of a range containing the address. When
// ranges overlap, the match is a containing range, not necessarily the
// narrowest one.
func (e *Engine) MatchingRange(address string) (string, bool) {
	if isExempt(address) {
		return "", false
	}
	addr, ok := ParseAddr(address)
	if !ok {
		return "", false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var match *encodedRange
	switch addr.Family {
	case FamilyIPv4:
		match = e.v4.query(addr.V4)
	case FamilyIPv6:
		match = e.v6.query(addr.V6)
	}
	if match == nil {
		return "", false
	}
	return match.entry.Range, true
}

// Entry returns a copy of the metadata stored for the notation.
func (e *Engine) Entry(notation string) (BanEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.entries[notation]
	if !ok {
		return BanEntry{}, false
	}
	return *entry, true
}

// List returns every banned notation. Order is unspecified.
func (e *Engine) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	notations := make([]string, 0, len(e.entries))
	for notation := range e.entries {
		notations = append(notations, notation)
	}
	return notations
}

// Stats returns counts and a copy of every entry.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Stats{
		TotalRanges: len(e.entries),
		IPv4Count:   e.v4.len(),
		IPv6Count:   e.v6.len(),
		Entries:     make([]BanEntry, 0, len(e.entries)),
	}
	for _, entry := range e.entries {
		stats.Entries = append(stats.Entries, *entry)
	}
	return stats
}

// Clear removes every entry and both indexes atomically.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.entries = make(map[string]*BanEntry)
	e.v4.clear()
	e.v6.clear()
	e.version++
}

// Version increments on every successful mutation. Callers that memoise
// verdicts key them by version so stale decisions die with the banlist state
// that produced them.
func (e *Engine) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}
