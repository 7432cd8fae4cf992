package idban

import (
	"testing"
	"time"
)

func newTestStore(start time.Time) (*Store, *time.Time) {
	s := New()
	current := start
	s.now = func() time.Time { return current }
	return s, &current
}

func TestBanAndLookup(t *testing.T) {
	s := New()

	if !s.Ban("198.51.100.9", Options{Reason: "abuse", BannedBy: "admin"}) {
		t.Fatal("ban failed")
	}
	if s.Ban("", Options{}) {
		t.Error("empty identifier accepted")
	}

	if !s.IsBanned("198.51.100.9") {
		t.Error("identifier should be banned")
	}
	entry, ok := s.Entry("198.51.100.9")
	if !ok || entry.Reason != "abuse" || entry.BannedBy != "admin" {
		t.Errorf("entry = %+v, ok %v", entry, ok)
	}
	if !entry.ExpiresAt.IsZero() {
		t.Error("permanent ban has an expiry")
	}

	if s.IsBanned("fingerprint-xyz") {
		t.Error("unknown identifier reported banned")
	}
}

func TestTTLExpiry(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, clock := newTestStore(base)

	s.Ban("user-42", Options{TTL: time.Hour})
	if !s.IsBanned("user-42") {
		t.Fatal("ban not visible before expiry")
	}

	*clock = base.Add(59 * time.Minute)
	if !s.IsBanned("user-42") {
		t.Error("ban lapsed early")
	}

	*clock = base.Add(61 * time.Minute)
	if s.IsBanned("user-42") {
		t.Error("ban survived past its TTL")
	}
	if _, ok := s.Entry("user-42"); ok {
		t.Error("expired entry still readable")
	}
}

func TestSweep(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, clock := newTestStore(base)

	s.Ban("a", Options{TTL: time.Minute})
	s.Ban("b", Options{TTL: time.Hour})
	s.Ban("c", Options{})

	*clock = base.Add(30 * time.Minute)
	if dropped := s.Sweep(); dropped != 1 {
		t.Fatalf("sweep dropped %d, want 1", dropped)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d after sweep, want 2", s.Len())
	}
	if s.IsBanned("a") {
		t.Error("swept entry still banned")
	}
	if !s.IsBanned("b") || !s.IsBanned("c") {
		t.Error("live entries lost in sweep")
	}
}

func TestUnban(t *testing.T) {
	s := New()
	s.Ban("fp-1", Options{})

	if !s.Unban("fp-1") {
		t.Error("unban of live entry returned false")
	}
	if s.Unban("fp-1") {
		t.Error("second unban returned true")
	}
	if s.IsBanned("fp-1") {
		t.Error("identifier banned after unban")
	}
}

func TestRebanRenewsTTL(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, clock := newTestStore(base)

	s.Ban("ip-1", Options{TTL: time.Minute})
	*clock = base.Add(50 * time.Second)
	s.Ban("ip-1", Options{TTL: time.Minute})

	*clock = base.Add(100 * time.Second)
	if !s.IsBanned("ip-1") {
		t.Error("renewed ban lapsed on the original TTL")
	}
}
