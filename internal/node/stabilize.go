package node

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"time"

	"chorddht/internal/logger"
	"chorddht/internal/pow"
	"chorddht/internal/ring"
	"chorddht/internal/store"
	"chorddht/internal/transport"
)

// Start launches the three periodic stabilization goroutines. They share a
// single cancellation signal (Stop) observed at every suspension point, so
// shutdown is cooperative rather than forced.
func (n *Node) Start() {
	go n.runLoop("stabilize", n.cfg.StabilizeInterval, n.stabilizeOnce)
	go n.runLoop("fix_fingers", n.cfg.FixFingersInterval, n.fixFingersOnce)
	go n.runLoop("check_predecessor", n.cfg.CheckPredecessorInterval, n.checkPredecessorOnce)
}

// Stop broadcasts the cancellation signal to every running loop.
func (n *Node) Stop() {
	select {
	case <-n.stop:
	default:
		close(n.stop)
	}
}

func (n *Node) runLoop(name string, interval time.Duration, fn func(ctx context.Context)) {
	n.lgr.Debug("starting periodic loop", logger.F("loop", name), logger.F("interval", interval))
	for {
		d := jitter(interval, n.cfg.DevMode)
		select {
		case <-n.stop:
			return
		case <-time.After(d):
		}
		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.LookupDeadline)
		fn(ctx)
		cancel()
		select {
		case <-n.stop:
			return
		default:
		}
	}
}

// jitter spreads out a periodic interval by up to ±20%, except in dev_mode
// where fast local iteration wants a predictable cadence.
func jitter(d time.Duration, devMode bool) time.Duration {
	if devMode {
		return d
	}
	factor := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * factor)
}

// stabilizeOnce runs one stabilization round: it learns of a closer
// predecessor from its successor, refreshes the successor list, and
// notifies the successor so handoff can proceed.
func (n *Node) stabilizeOnce(ctx context.Context) {
	s := n.currentSuccessorWithFailover(ctx)
	if s == nil {
		return
	}

	if pred, err := n.remoteGetPredecessor(ctx, s.Addr); err == nil && pred != nil {
		// The degenerate case matters: when the successor is still self
		// (one-node ring), any predecessor learned from a joiner's notify
		// is the new successor — the open-open test alone can never fire
		// with equal endpoints.
		closer := pred.ID.BetweenOpen(n.self.ID, s.ID)
		degenerate := s.ID.Equal(n.self.ID) && !pred.ID.Equal(n.self.ID)
		if closer || degenerate {
			n.rt.SetSuccessor(0, pred)
			s = pred
		}
	} else if err != nil && !errors.Is(err, transport.ErrTransport) {
		n.lgr.Warn("stabilize: get_predecessor failed", logger.F("err", err))
	}

	if s.Addr == n.self.Addr {
		return
	}

	if list, err := n.remoteGetSuccessorList(ctx, s.Addr); err == nil {
		merged := mergeSuccessorList(*s, list, n.self, n.rt.SuccListSize())
		n.rt.SetSuccessorList(merged)
	}

	n.notifySuccessor(ctx, *s)
}

// currentSuccessorWithFailover returns the first successor, promoting past
// dead entries (Transport failure on a lightweight Health probe) until a
// live one is found or the list is exhausted.
func (n *Node) currentSuccessorWithFailover(ctx context.Context) *ring.Peer {
	for i := 0; i < n.rt.SuccListSize(); i++ {
		s := n.rt.FirstSuccessor()
		if s == nil {
			return nil
		}
		if s.Addr == n.self.Addr {
			return s
		}
		if err := n.callHealth(ctx, s.Addr); err == nil {
			return s
		} else if !errors.Is(err, transport.ErrTransport) {
			return s
		}
		n.pool.Invalidate(s.Addr)
		n.promoteSuccessor()
	}
	return nil
}

func mergeSuccessorList(head ring.Peer, tail transport.SuccessorListReply, self ring.Peer, size int) []ring.Peer {
	out := make([]ring.Peer, 0, size)
	out = append(out, head)
	for _, f := range tail.Successors {
		p := ring.Peer{ID: ring.ID(f.ID), Addr: f.Addr}
		if p.ID.Equal(self.ID) {
			continue
		}
		dup := false
		for _, existing := range out {
			if existing.Addr == p.Addr {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
		if len(out) == size {
			break
		}
	}
	return out
}

// notifySuccessor computes a fresh admission token for self and calls
// s.Notify, ingesting whatever key range the successor hands off as a
// consequence of this node becoming (or remaining) its predecessor.
func (n *Node) notifySuccessor(ctx context.Context, s ring.Peer) {
	difficulty := n.cfg.PowDifficulty
	if n.cfg.DevMode {
		difficulty = 1
	}
	tok := pow.Compute(n.self.Addr, difficulty)

	pairs, err := n.callNotify(ctx, s.Addr, tok)
	if err != nil {
		if !errors.Is(err, transport.ErrTransport) {
			n.lgr.Warn("stabilize: notify rejected", logger.F("successor", s.Addr), logger.F("err", err))
		}
		return
	}
	if len(pairs) > 0 {
		n.store.MergeReplica(pairs)
		n.lgr.Debug("stabilize: ingested handoff range", logger.F("count", len(pairs)), logger.F("from", s.Addr))
	}
}

// fixFingersOnce refreshes a single finger per invocation, round-robin,
// amortizing repair cost across rounds.
func (n *Node) fixFingersOnce(ctx context.Context) {
	i := n.rt.NextFingerToFix()
	target, err := n.rt.FingerTarget(i)
	if err != nil {
		n.lgr.Warn("fix_fingers: bad target", logger.F("index", i), logger.F("err", err))
		return
	}
	peer, err := n.FindSuccessor(ctx, target)
	if err != nil {
		return
	}
	n.rt.SetFinger(i, &peer)
}

// checkPredecessorOnce pings the predecessor and clears the slot on
// failure; the next successful notify will repopulate it.
func (n *Node) checkPredecessorOnce(ctx context.Context) {
	pred := n.rt.GetPredecessor()
	if pred == nil || pred.Addr == n.self.Addr {
		return
	}
	if err := n.callHealth(ctx, pred.Addr); err != nil {
		n.lgr.Warn("check_predecessor: predecessor unreachable, clearing", logger.F("addr", pred.Addr))
		n.pool.Invalidate(pred.Addr)
		// Only clear if a notify hasn't advanced the pointer while the
		// failed health probe was in flight.
		n.notifyMu.Lock()
		if cur := n.rt.GetPredecessor(); cur != nil && cur.Addr == pred.Addr {
			n.rt.SetPredecessor(nil)
		}
		n.notifyMu.Unlock()
	}
}

// HandleNotify implements the server side of Notify: it validates the
// caller's proof-of-work token, advances the predecessor pointer when the
// caller is closer than the current one, and streams the key range being
// handed off. The handoff range is computed against the predecessor value
// from before the swap, and range computation, swap, and drain happen
// under one lock so two concurrent notifies cannot hand off overlapping
// ranges or skip one.
func (n *Node) HandleNotify(req *transport.NotifyRequest, stream transport.NotifyServerStream) error {
	tok := pow.Token{
		Address:    req.Address,
		Timestamp:  req.PowTimestamp,
		Nonce:      req.PowNonce,
		Difficulty: req.PowDifficulty,
	}
	if err := n.veri.Validate(tok, req.Address); err != nil {
		n.lgr.Warn("notify: rejected proof-of-work token", logger.F("caller", req.Address), logger.F("err", err))
		return transport.ToStatus(transport.ErrPermissionDenied)
	}

	caller := ring.Peer{ID: n.sp.HashString(req.Address), Addr: req.Address}
	if caller.ID.Equal(n.self.ID) {
		if caller.Addr != n.self.Addr {
			n.lgr.Warn("notify: caller id collides with own id", logger.F("caller", req.Address))
			return transport.ToStatus(transport.ErrConflict)
		}
		return nil
	}

	n.notifyMu.Lock()
	prevPred := n.rt.GetPredecessor()
	advance := prevPred == nil || caller.ID.BetweenOpen(prevPred.ID, n.self.ID)
	var pairs []store.Pair
	if advance {
		lo := n.self.ID
		if prevPred != nil {
			lo = prevPred.ID
		}
		n.rt.SetPredecessor(&caller)
		pairs = n.store.DrainRange(lo, caller.ID)
	}
	n.notifyMu.Unlock()

	for i, p := range pairs {
		if err := stream.Send(&transport.KvPair{Key: p.Key, Value: p.Value, ExpirationDate: p.Expiration}); err != nil {
			// The remaining pairs were already drained; put them back so a
			// broken stream doesn't lose keys. The caller will retry on its
			// next stabilize round.
			n.store.MergeReplica(pairs[i:])
			return err
		}
	}

	go n.pushReplicas()
	return nil
}

// pushReplicas fire-and-forgets the currently-owned key range to every
// member of the successor list, so replicas converge after any successor
// list or predecessor change. Failures are logged, not retried: the next
// stabilize round will try again.
func (n *Node) pushReplicas() {
	pred := n.rt.GetPredecessor()
	if pred == nil {
		return
	}
	pairs := n.store.CloneRange(pred.ID, n.self.ID)
	if len(pairs) == 0 {
		return
	}
	for _, succ := range n.rt.SuccessorList() {
		if succ.Addr == n.self.Addr {
			continue
		}
		go n.sendReplicaPush(succ.Addr, pairs)
	}
}

func (n *Node) sendReplicaPush(addr string, pairs []store.Pair) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.LookupDeadline)
	defer cancel()
	if err := n.callHandoff(ctx, addr, pairs); err != nil {
		n.lgr.Debug("replica push failed", logger.F("addr", addr), logger.F("err", err))
	}
}

// callHealth, callGetPredecessor etc. are the typed client-side helpers
// wrapping the shared pool, kept next to the handlers that mirror them.

func (n *Node) callHealth(ctx context.Context, addr string) error {
	return n.pool.Do(ctx, addr, func(c *transport.Client) error {
		return c.Health(ctx)
	})
}

func (n *Node) remoteGetPredecessor(ctx context.Context, addr string) (*ring.Peer, error) {
	var out *ring.Peer
	err := n.pool.Do(ctx, addr, func(c *transport.Client) error {
		reply, err := c.GetPredecessor(ctx)
		if err != nil {
			return err
		}
		if reply.Present {
			out = &ring.Peer{ID: ring.ID(reply.ID), Addr: reply.Addr}
		}
		return nil
	})
	return out, err
}

func (n *Node) remoteGetSuccessorList(ctx context.Context, addr string) (transport.SuccessorListReply, error) {
	var out transport.SuccessorListReply
	err := n.pool.Do(ctx, addr, func(c *transport.Client) error {
		reply, err := c.GetSuccessorList(ctx)
		if err != nil {
			return err
		}
		out = *reply
		return nil
	})
	return out, err
}

func (n *Node) callNotify(ctx context.Context, addr string, tok pow.Token) ([]store.Pair, error) {
	var pairs []store.Pair
	err := n.pool.Do(ctx, addr, func(c *transport.Client) error {
		stream, err := c.Notify(ctx, &transport.NotifyRequest{
			Address:       n.self.Addr,
			PowTimestamp:  tok.Timestamp,
			PowNonce:      tok.Nonce,
			PowDifficulty: tok.Difficulty,
		})
		if err != nil {
			return err
		}
		for {
			kv, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			pairs = append(pairs, store.Pair{Key: kv.Key, Value: kv.Value, Expiration: kv.ExpirationDate})
		}
	})
	return pairs, err
}

func (n *Node) callHandoff(ctx context.Context, addr string, pairs []store.Pair) error {
	return n.pool.Do(ctx, addr, func(c *transport.Client) error {
		stream, err := c.Handoff(ctx)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			if err := stream.Send(&transport.KvPair{Key: p.Key, Value: p.Value, ExpirationDate: p.Expiration}); err != nil {
				return err
			}
		}
		_, err = stream.CloseAndRecv()
		return err
	})
}

// HandleHandoff implements the server side of Handoff: it ingests a
// stream of pairs transferred either as a voluntary-departure dump or a
// replica-reconciliation push, resolving duplicates by keeping the later
// expiration (store.MergeReplica's latest-writer-wins proxy).
func (n *Node) HandleHandoff(stream transport.HandoffServerStream) error {
	var pairs []store.Pair
	for {
		kv, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		pairs = append(pairs, store.Pair{Key: kv.Key, Value: kv.Value, Expiration: kv.ExpirationDate})
	}
	n.store.MergeReplica(pairs)
	return stream.SendAndClose(&transport.Empty{})
}

// Health answers the Health RPC: reaching this handler at all proves
// liveness, so there is nothing further to check.
func (n *Node) Health(ctx context.Context) error {
	return nil
}

// TriggerStabilize runs one stabilize round synchronously, for the
// Stabilize RPC and for tests that drive rounds deterministically.
func (n *Node) TriggerStabilize(ctx context.Context) {
	n.stabilizeOnce(ctx)
}

// TriggerFixFingers runs one fix_fingers round synchronously, for the
// FixFingers RPC and for tests that drive rounds deterministically.
func (n *Node) TriggerFixFingers(ctx context.Context) {
	n.fixFingersOnce(ctx)
}

// Leave streams the entire local store to the first successor and retires
// from the ring (the voluntary-departure path). The caller is
// responsible for calling Stop() and deregistering from bootstrap
// discovery; Leave only handles the key transfer.
func (n *Node) Leave(ctx context.Context) error {
	s := n.rt.FirstSuccessor()
	if s == nil || s.Addr == n.self.Addr {
		return nil
	}
	all := n.store.DrainAll()
	return n.callHandoff(ctx, s.Addr, all)
}
