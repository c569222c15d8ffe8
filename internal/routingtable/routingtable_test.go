package routingtable

import (
	"testing"

	"chorddht/internal/logger"
	"chorddht/internal/ring"
)

func newTestTable(t *testing.T, addr string) (*RoutingTable, ring.Space) {
	t.Helper()
	sp, err := ring.NewSpace(8, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	self := ring.Peer{ID: sp.HashString(addr), Addr: addr}
	rt := New(self, sp, sp.SuccListSize, WithLogger(logger.NopLogger{}))
	return rt, sp
}

func TestInitSingleNodeSuccessorIsSelfPredecessorAbsent(t *testing.T) {
	rt, _ := newTestTable(t, "n1:9000")
	rt.InitSingleNode()

	if s := rt.FirstSuccessor(); s == nil || s.Addr != "n1:9000" {
		t.Fatalf("FirstSuccessor = %+v, want self", s)
	}
	if p := rt.GetPredecessor(); p != nil {
		t.Fatalf("GetPredecessor = %+v, want absent until the first notify", p)
	}
}

func TestClosestPrecedingFallsBackToSelf(t *testing.T) {
	rt, sp := newTestTable(t, "n1:9000")
	rt.InitSingleNode()
	target := sp.HashString("somekey")
	got := rt.ClosestPreceding(target)
	if got.Addr != "n1:9000" {
		t.Errorf("ClosestPreceding with no other fingers should return self, got %+v", got)
	}
}

func TestSetSuccessorListPadsAndTruncates(t *testing.T) {
	rt, sp := newTestTable(t, "n1:9000")
	peers := []ring.Peer{
		{ID: sp.HashString("n2:9000"), Addr: "n2:9000"},
	}
	rt.SetSuccessorList(peers)

	if got := rt.SuccessorList(); len(got) != 1 || got[0].Addr != "n2:9000" {
		t.Fatalf("SuccessorList = %+v, want [n2:9000]", got)
	}
	if rt.GetSuccessor(1) != nil {
		t.Errorf("unset successor slots must remain nil")
	}
}

func TestPromoteCandidateDropsDeadHead(t *testing.T) {
	rt, sp := newTestTable(t, "n1:9000")
	peers := []ring.Peer{
		{ID: sp.HashString("dead:9000"), Addr: "dead:9000"},
		{ID: sp.HashString("alive:9000"), Addr: "alive:9000"},
	}
	rt.SetSuccessorList(peers)

	rt.PromoteCandidate(1)

	if s := rt.FirstSuccessor(); s == nil || s.Addr != "alive:9000" {
		t.Fatalf("FirstSuccessor after promote = %+v, want alive:9000", s)
	}
}

func TestNextFingerToFixRoundRobins(t *testing.T) {
	rt, _ := newTestTable(t, "n1:9000")
	seen := make(map[int]bool)
	for i := 0; i < 8; i++ {
		seen[rt.NextFingerToFix()] = true
	}
	if len(seen) != 8 {
		t.Errorf("expected 8 distinct finger indices over one full cycle, got %d", len(seen))
	}
	if rt.NextFingerToFix() != 0 {
		t.Errorf("cursor should wrap back to 0 after a full cycle")
	}
}
