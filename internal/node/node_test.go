package node_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"

	"chorddht/internal/node"
	"chorddht/internal/pool"
	"chorddht/internal/pow"
	"chorddht/internal/ring"
	"chorddht/internal/server"
	"chorddht/internal/transport"
)

// testNode is one in-process ring member with a real gRPC server on a
// loopback port. Stabilization loops are not started; tests drive rounds
// synchronously through TriggerStabilize/TriggerFixFingers so convergence
// is deterministic.
type testNode struct {
	n    *node.Node
	addr string
	srv  *server.Server
}

func testSpace(t *testing.T) ring.Space {
	t.Helper()
	sp, err := ring.NewSpace(160, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	return sp
}

// newTestNode binds a loopback listener, starts serving, and returns the
// node without joining it to any ring yet.
func newTestNode(t *testing.T, sp ring.Space) *testNode {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()

	cfg := node.DefaultConfig()
	cfg.DevMode = true
	cfg.PowDifficulty = 1

	p := pool.New()
	n := node.New(ring.Peer{ID: sp.HashString(addr), Addr: addr}, sp, cfg, p)

	srv, err := server.New(lis, n, []grpc.ServerOption{})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	go func() { _ = srv.Start() }()

	t.Cleanup(func() {
		n.Stop()
		srv.Stop()
		p.Close()
	})
	return &testNode{n: n, addr: addr, srv: srv}
}

func startRingNode(t *testing.T, sp ring.Space, bootstrapAddr string) *testNode {
	t.Helper()
	tn := newTestNode(t, sp)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tn.n.Bootstrap(ctx, bootstrapAddr); err != nil {
		t.Fatalf("Bootstrap(%q): %v", bootstrapAddr, err)
	}
	return tn
}

func stabilizeRound(t *testing.T, nodes ...*testNode) {
	t.Helper()
	for _, tn := range nodes {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		tn.n.TriggerStabilize(ctx)
		cancel()
	}
}

func TestSingleNodeServesOwnKeys(t *testing.T) {
	sp := testSpace(t)
	n1 := startRingNode(t, sp, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := n1.n.Put(ctx, []byte("foo"), "bar", 0, 1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	reply, err := n1.n.Get(ctx, []byte("foo"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reply.Status != transport.StatusOK || reply.Value != "bar" {
		t.Fatalf("Get = (%v, %q), want (OK, bar)", reply.Status, reply.Value)
	}

	peer, err := n1.n.FindSuccessor(ctx, sp.HashString("any target"))
	if err != nil {
		t.Fatalf("FindSuccessor: %v", err)
	}
	if peer.Addr != n1.addr {
		t.Errorf("single-node FindSuccessor = %s, want self %s", peer.Addr, n1.addr)
	}
	if pred := n1.n.RoutingTable().GetPredecessor(); pred != nil {
		t.Errorf("fresh single node predecessor = %+v, want absent", pred)
	}
}

func TestTwoNodeRingConverges(t *testing.T) {
	sp := testSpace(t)
	n1 := startRingNode(t, sp, "")
	n2 := startRingNode(t, sp, n1.addr)

	for i := 0; i < 3; i++ {
		stabilizeRound(t, n1, n2)
	}

	if s := n1.n.RoutingTable().FirstSuccessor(); s == nil || s.Addr != n2.addr {
		t.Errorf("n1 successor = %+v, want %s", s, n2.addr)
	}
	if s := n2.n.RoutingTable().FirstSuccessor(); s == nil || s.Addr != n1.addr {
		t.Errorf("n2 successor = %+v, want %s", s, n1.addr)
	}
	if p := n1.n.RoutingTable().GetPredecessor(); p == nil || p.Addr != n2.addr {
		t.Errorf("n1 predecessor = %+v, want %s", p, n2.addr)
	}
	if p := n2.n.RoutingTable().GetPredecessor(); p == nil || p.Addr != n1.addr {
		t.Errorf("n2 predecessor = %+v, want %s", p, n1.addr)
	}
}

// keyOwnedBy searches for a printable key whose hash falls in (lo, hi],
// i.e. a key the node with identifier hi is primary for.
func keyOwnedBy(t *testing.T, sp ring.Space, lo, hi ring.ID) []byte {
	t.Helper()
	for i := 0; i < 100000; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		if sp.HashBytes(key).Between(lo, hi) {
			return key
		}
	}
	t.Fatal("no key found in range")
	return nil
}

func TestJoinHandsOffOwnedRange(t *testing.T) {
	sp := testSpace(t)
	n1 := startRingNode(t, sp, "")
	n2 := newTestNode(t, sp)

	key := keyOwnedBy(t, sp, n1.n.Self().ID, n2.n.Self().ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n1.n.Put(ctx, key, "v1", 0, 1); err != nil {
		t.Fatalf("Put before join: %v", err)
	}
	if n1.n.Store().Len() != 1 {
		t.Fatalf("n1 store len = %d before join, want 1", n1.n.Store().Len())
	}

	if err := n2.n.Bootstrap(ctx, n1.addr); err != nil {
		t.Fatalf("join: %v", err)
	}

	if n2.n.Store().Len() != 1 {
		t.Fatalf("n2 store len = %d after join, want 1 (handoff)", n2.n.Store().Len())
	}
	if n1.n.Store().Len() != 0 {
		t.Fatalf("n1 store len = %d after join, want 0 (drained)", n1.n.Store().Len())
	}

	// Once n1 has adopted n2 as successor, a Get through n1 must route to
	// the new primary and still find the value.
	stabilizeRound(t, n1, n2)
	reply, err := n1.n.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after handoff: %v", err)
	}
	if reply.Status != transport.StatusOK || reply.Value != "v1" {
		t.Fatalf("Get after handoff = (%v, %q), want (OK, v1)", reply.Status, reply.Value)
	}
}

func TestPutFansOutToReplica(t *testing.T) {
	sp := testSpace(t)
	n1 := startRingNode(t, sp, "")
	n2 := startRingNode(t, sp, n1.addr)
	for i := 0; i < 3; i++ {
		stabilizeRound(t, n1, n2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n1.n.Put(ctx, []byte("replicated"), "v", 0, 2); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The replica forward is fire-and-forget; poll until both stores hold
	// the pair.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if n1.n.Store().Len() == 1 && n2.n.Store().Len() == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("replica did not converge: n1=%d n2=%d pairs",
				n1.n.Store().Len(), n2.n.Store().Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFixFingersConverges(t *testing.T) {
	sp := testSpace(t)
	n1 := startRingNode(t, sp, "")
	n2 := startRingNode(t, sp, n1.addr)
	for i := 0; i < 3; i++ {
		stabilizeRound(t, n1, n2)
	}

	for i := 0; i < sp.Bits; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		n1.n.TriggerFixFingers(ctx)
		cancel()
	}

	rt := n1.n.RoutingTable()
	id1, id2 := n1.n.Self().ID, n2.n.Self().ID
	for i := 0; i < sp.Bits; i++ {
		target, err := rt.FingerTarget(i)
		if err != nil {
			t.Fatalf("FingerTarget(%d): %v", i, err)
		}
		want := id1
		if target.Between(id1, id2) {
			want = id2
		}
		f := rt.GetFinger(i)
		if f == nil {
			t.Fatalf("finger %d unset after full fix_fingers sweep", i)
		}
		if !f.ID.Equal(want) {
			t.Errorf("finger %d = %s, want %s (target %s)",
				i, f.ID.ToHexString(false), want.ToHexString(false), target.ToHexString(false))
		}
	}
}

func TestSuccessorFailureIsolatesButKeepsServing(t *testing.T) {
	sp := testSpace(t)
	n1 := startRingNode(t, sp, "")
	n2 := newTestNode(t, sp)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n2.n.Bootstrap(ctx, n1.addr); err != nil {
		t.Fatalf("join: %v", err)
	}
	for i := 0; i < 3; i++ {
		stabilizeRound(t, n1, n2)
	}

	key := keyOwnedBy(t, sp, n2.n.Self().ID, n1.n.Self().ID)
	if err := n1.n.Put(ctx, key, "mine", 0, 1); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Kill n2 and let n1's stabilize discover the dead successor. With a
	// successor list of one live peer, n1 ends up isolated but must keep
	// serving the keys it owns.
	n2.n.Stop()
	n2.srv.Stop()
	for i := 0; i < 3; i++ {
		stabilizeRound(t, n1)
	}

	reply, err := n1.n.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get on isolated node: %v", err)
	}
	if reply.Status != transport.StatusOK || reply.Value != "mine" {
		t.Fatalf("Get on isolated node = (%v, %q), want (OK, mine)", reply.Status, reply.Value)
	}
}

// nopNotifyStream satisfies transport.NotifyServerStream for direct
// handler invocations that must never stream anything.
type nopNotifyStream struct {
	grpc.ServerStream
	sent int
}

func (s *nopNotifyStream) Send(*transport.KvPair) error {
	s.sent++
	return nil
}

func TestNotifyRejectsForgedToken(t *testing.T) {
	sp := testSpace(t)

	cfg := node.DefaultConfig()
	cfg.PowDifficulty = 16

	p := pool.New()
	t.Cleanup(p.Close)
	self := ring.Peer{ID: sp.HashString("victim:9000"), Addr: "victim:9000"}
	n := node.New(self, sp, cfg, p)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.Bootstrap(ctx, ""); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	// A token computed for one address presented under another does not
	// meet the difficulty for the claimed address.
	tok := pow.Compute("someone-else:9000", 16)
	stream := &nopNotifyStream{}
	err := n.HandleNotify(&transport.NotifyRequest{
		Address:       "attacker:9000",
		PowTimestamp:  tok.Timestamp,
		PowNonce:      tok.Nonce,
		PowDifficulty: tok.Difficulty,
	}, stream)

	if !errors.Is(transport.FromStatus(err), transport.ErrPermissionDenied) {
		t.Fatalf("err = %v, want PermissionDenied", err)
	}
	if stream.sent != 0 {
		t.Errorf("rejected notify streamed %d pairs, want 0", stream.sent)
	}
	if pred := n.RoutingTable().GetPredecessor(); pred != nil {
		t.Errorf("rejected notify advanced predecessor to %+v", pred)
	}
}
