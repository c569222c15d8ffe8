package node

import (
	"context"
	"time"

	"chorddht/internal/ctxutil"
	"chorddht/internal/logger"
	"chorddht/internal/store"
	"chorddht/internal/telemetry/lookuptrace"
	"chorddht/internal/transport"
)

// Get resolves the primary for key and either serves it locally or
// forwards the request. Replicas are never consulted on a primary miss:
// they converge asynchronously and may lag the last write, so a read
// either reaches the primary or fails. The call is marked as a lookup
// chain so the FindSuccessor hops it triggers get traced, and tagged with
// a trace id so its hops can be correlated in the logs.
func (n *Node) Get(ctx context.Context, key []byte) (*transport.GetReply, error) {
	ctx = lookuptrace.WithLookup(ctx)
	ctx = ctxutil.EnsureTraceID(ctx, n.self.ID)
	ctx = ctxutil.InitHops(ctx)

	id := n.sp.HashBytes(key)
	primary, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return nil, err
	}
	if primary.Addr == n.self.Addr {
		return n.localGet(key, id), nil
	}

	var out *transport.GetReply
	err = n.pool.Do(ctx, primary.Addr, func(c *transport.Client) error {
		reply, err := c.Get(ctx, key)
		out = reply
		return err
	})
	return out, err
}

func (n *Node) localGet(key []byte, id []byte) *transport.GetReply {
	p, status := n.store.Get(id)
	switch status {
	case store.StatusOK:
		return &transport.GetReply{Value: p.Value, Status: transport.StatusOK}
	case store.StatusExpired:
		return &transport.GetReply{Status: transport.StatusExpired}
	default:
		return &transport.GetReply{Status: transport.StatusNotFound}
	}
}

// Put implements the replicated write fan-out: resolve the primary for key, then
// either store-and-fan-out locally or forward the unmodified replication
// budget to the primary (it is the one that decrements it once stored).
func (n *Node) Put(ctx context.Context, key []byte, value string, ttl time.Duration, replication int32) error {
	if replication <= 0 {
		replication = int32(n.cfg.ReplicationFactor)
	}
	id := n.sp.HashBytes(key)
	primary, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return err
	}
	if primary.Addr == n.self.Addr {
		return n.HandlePut(ctx, &transport.PutRequest{
			Key: key, Ttl: int64(ttl), Replication: replication, Value: value,
		})
	}
	return n.pool.Do(ctx, primary.Addr, func(c *transport.Client) error {
		return c.Put(ctx, &transport.PutRequest{Key: key, Ttl: int64(ttl), Replication: replication, Value: value})
	})
}

// HandlePut implements the server side of Put: the receiving node is
// always either the primary (replication == the client's requested N) or
// a replica taking a fan-out hop (replication == 0, no further forward).
func (n *Node) HandlePut(ctx context.Context, req *transport.PutRequest) error {
	id := n.sp.HashBytes(req.Key)
	n.store.Put(id, string(req.Key), req.Value, time.Duration(req.Ttl))

	fanout := int(req.Replication) - 1
	if fanout <= 0 {
		return nil
	}
	succs := n.rt.SuccessorList()
	sent := 0
	for _, succ := range succs {
		if sent == fanout {
			break
		}
		if succ.Addr == n.self.Addr {
			continue
		}
		addr := succ.Addr
		go n.forwardReplicaPut(addr, req.Key, req.Ttl, req.Value)
		sent++
	}
	return nil
}

func (n *Node) forwardReplicaPut(addr string, key []byte, ttl int64, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.LookupDeadline)
	defer cancel()
	err := n.pool.Do(ctx, addr, func(c *transport.Client) error {
		return c.Put(ctx, &transport.PutRequest{Key: key, Ttl: ttl, Replication: 0, Value: value})
	})
	if err != nil {
		n.lgr.Debug("replica put forward failed", logger.F("addr", addr), logger.F("err", err))
	}
}
