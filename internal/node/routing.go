package node

import (
	"context"
	"errors"

	"chorddht/internal/ctxutil"
	"chorddht/internal/logger"
	"chorddht/internal/ring"
	"chorddht/internal/transport"
)

// lookupState names where a single find_successor resolution stands, per
// the design note that the retry policy be an explicit state machine
// rather than exception-driven control flow.
type lookupState int

const (
	lookupInitial lookupState = iota
	lookupRetry
	lookupFailed
)

// FindSuccessor resolves the node currently responsible for target,
// following closest_preceding hops over the network up to cfg.RoutingRetries
// times. A Transport failure along a hop evicts the offending routing
// entry and retries via the next-closest candidate; any other error is
// returned as-is, and exhausting the retry budget returns
// transport.ErrRouting.
func (n *Node) FindSuccessor(ctx context.Context, target ring.ID) (ring.Peer, error) {
	if succ := n.rt.FirstSuccessor(); succ != nil && target.Between(n.self.ID, succ.ID) {
		return *succ, nil
	}

	state := lookupInitial
	for attempt := 0; attempt < n.cfg.RoutingRetries; attempt++ {
		next := n.rt.ClosestPreceding(target)
		if next.ID.Equal(n.self.ID) {
			if succ := n.rt.FirstSuccessor(); succ != nil {
				return *succ, nil
			}
			return n.self, nil
		}

		peer, err := n.remoteFindSuccessor(ctx, next.Addr, target)
		if err == nil {
			return peer, nil
		}
		if !errors.Is(err, transport.ErrTransport) {
			return ring.Peer{}, err
		}

		state = lookupRetry
		ctx = ctxutil.IncHops(ctx)
		n.lgr.Warn("find_successor hop failed, evicting and retrying",
			logger.FPeer("hop", next), logger.F("attempt", attempt),
			logger.F("hops", ctxutil.HopsFromContext(ctx)), logger.F("trace", ctxutil.TraceIDFromContext(ctx)))
		n.evictRoutingEntry(next.Addr)
	}

	state = lookupFailed
	n.lgr.Warn("find_successor exhausted retry budget", logger.F("state", state),
		logger.F("trace", ctxutil.TraceIDFromContext(ctx)))
	return ring.Peer{}, transport.ErrRouting
}

// remoteFindSuccessor issues the FindSuccessor RPC to addr.
func (n *Node) remoteFindSuccessor(ctx context.Context, addr string, target ring.ID) (ring.Peer, error) {
	var out ring.Peer
	err := n.pool.Do(ctx, addr, func(c *transport.Client) error {
		reply, err := c.FindSuccessor(ctx, target)
		if err != nil {
			return err
		}
		out = ring.Peer{ID: ring.ID(reply.ID), Addr: reply.Addr}
		return nil
	})
	if err != nil {
		n.pool.Invalidate(addr)
		return ring.Peer{}, classifyDialErr(err)
	}
	return out, nil
}

// classifyDialErr normalizes pool.Acquire's dial error (which bypasses the
// gRPC invoke path FromStatus already covers) into the transport taxonomy.
func classifyDialErr(err error) error {
	if errors.Is(err, transport.ErrTransport) || errors.Is(err, transport.ErrRouting) ||
		errors.Is(err, transport.ErrPermissionDenied) || errors.Is(err, transport.ErrConflict) ||
		errors.Is(err, transport.ErrInvariant) {
		return err
	}
	return transport.ErrTransport
}

// ClosestPrecedingFinger answers the FindClosestPrecedingFinger RPC: a
// single local finger-table lookup, exposed so an iterative-lookup client
// could be built against it even though this engine's own FindSuccessor is
// recursive.
func (n *Node) ClosestPrecedingFinger(target ring.ID) ring.Peer {
	return n.rt.ClosestPreceding(target)
}

// evictRoutingEntry replaces every finger pointing at addr with self and
// clears every non-head successor-list slot pointing at addr, so no further
// lookup routes through the dead peer before fix_fingers repairs the entry.
// Evicting the head of the successor list instead promotes the next
// surviving candidate so routing through first_successor keeps working.
func (n *Node) evictRoutingEntry(addr string) {
	sp := n.sp
	self := n.self
	for i := 0; i < sp.Bits; i++ {
		if f := n.rt.GetFinger(i); f != nil && f.Addr == addr {
			n.rt.SetFinger(i, &self)
		}
	}
	for i := 0; i < n.rt.SuccListSize(); i++ {
		s := n.rt.GetSuccessor(i)
		if s == nil || s.Addr != addr {
			continue
		}
		if i == 0 {
			n.promoteSuccessor()
		} else {
			n.rt.SetSuccessor(i, nil)
		}
	}
}

// promoteSuccessor drops the (presumed dead) head of the successor list,
// promoting the first surviving candidate. If every entry is dead the node
// is isolated: it keeps serving local data and waits for the next notify
// to repopulate its links.
func (n *Node) promoteSuccessor() {
	for i := 1; i < n.rt.SuccListSize(); i++ {
		if n.rt.GetSuccessor(i) != nil {
			n.rt.PromoteCandidate(i)
			return
		}
	}
	n.rt.SetSuccessorList(nil)
	n.lgr.Warn("successor list exhausted, node isolated")
}
