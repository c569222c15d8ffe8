package store

import (
	"testing"
	"time"

	"chorddht/internal/logger"
	"chorddht/internal/ring"
)

func testSpace(t *testing.T) ring.Space {
	t.Helper()
	sp, err := ring.NewSpace(160, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

// maxID returns the largest identifier in the space (all bits set), used
// in tests as the upper bound of a range covering the whole ring.
func maxID(sp ring.Space) ring.ID {
	id := make(ring.ID, sp.ByteLen)
	for i := range id {
		id[i] = 0xFF
	}
	return id
}

func TestPutGetRoundTrip(t *testing.T) {
	sp := testSpace(t)
	s := New(logger.NopLogger{})
	k := sp.HashString("foo")

	s.Put(k, "foo", "bar", 0)
	p, status := s.Get(k)
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if p.Value != "bar" {
		t.Errorf("value = %q, want bar", p.Value)
	}
}

func TestGetMissing(t *testing.T) {
	sp := testSpace(t)
	s := New(logger.NopLogger{})
	_, status := s.Get(sp.HashString("nope"))
	if status != StatusNotFound {
		t.Errorf("status = %v, want StatusNotFound", status)
	}
}

func TestTTLExpiryThenNotFound(t *testing.T) {
	sp := testSpace(t)
	s := New(logger.NopLogger{})
	k := sp.HashString("ephemeral")
	s.Put(k, "ephemeral", "v", 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	_, status := s.Get(k)
	if status != StatusExpired {
		t.Fatalf("first get after ttl = %v, want StatusExpired", status)
	}
	_, status = s.Get(k)
	if status != StatusNotFound {
		t.Fatalf("second get after ttl = %v, want StatusNotFound", status)
	}
}

func TestDrainRangeRemoves(t *testing.T) {
	sp := testSpace(t)
	s := New(logger.NopLogger{})
	k := sp.HashString("k1")
	s.Put(k, "k1", "v1", 0)

	lo := sp.Zero()
	hi := maxID(sp)
	drained := s.DrainRange(lo, hi)
	if len(drained) != 1 || drained[0].Value != "v1" {
		t.Fatalf("DrainRange returned %+v", drained)
	}
	if s.Len() != 0 {
		t.Errorf("store should be empty after drain, len = %d", s.Len())
	}
}

func TestCloneRangeDoesNotRemove(t *testing.T) {
	sp := testSpace(t)
	s := New(logger.NopLogger{})
	k := sp.HashString("k1")
	s.Put(k, "k1", "v1", 0)

	cloned := s.CloneRange(sp.Zero(), maxID(sp))
	if len(cloned) != 1 {
		t.Fatalf("CloneRange returned %d pairs, want 1", len(cloned))
	}
	if s.Len() != 1 {
		t.Errorf("CloneRange must not remove, len = %d", s.Len())
	}
}

func TestDrainAllRemovesEverything(t *testing.T) {
	sp := testSpace(t)
	s := New(logger.NopLogger{})
	s.Put(sp.HashString("k1"), "k1", "v1", 0)
	s.Put(sp.HashString("k2"), "k2", "v2", 0)

	drained := s.DrainAll()
	if len(drained) != 2 {
		t.Fatalf("DrainAll returned %d pairs, want 2", len(drained))
	}
	if s.Len() != 0 {
		t.Errorf("store should be empty after DrainAll, len = %d", s.Len())
	}
}

func TestMergeReplicaLatestExpirationWins(t *testing.T) {
	sp := testSpace(t)
	s := New(logger.NopLogger{})
	k := sp.HashString("k1")

	s.Put(k, "k1", "old", 1*time.Hour)
	old, _ := s.Get(k)

	s.MergeReplica([]Pair{{Key: k, RawKey: "k1", Value: "stale", Expiration: old.Expiration - 1000}})
	p, _ := s.Get(k)
	if p.Value != "old" {
		t.Errorf("older incoming pair must not overwrite newer one, got %q", p.Value)
	}

	s.MergeReplica([]Pair{{Key: k, RawKey: "k1", Value: "fresh", Expiration: old.Expiration + 1000}})
	p, _ = s.Get(k)
	if p.Value != "fresh" {
		t.Errorf("later incoming pair must win, got %q", p.Value)
	}
}
