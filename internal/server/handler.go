// Package server adapts a *node.Node to the transport.DHTServer interface
// and hosts it behind a gRPC server, keeping the protocol engine free of
// wire-level concerns.
package server

import (
	"context"
	"time"

	"chorddht/internal/node"
	"chorddht/internal/ring"
	"chorddht/internal/transport"
)

// Handler implements transport.DHTServer by delegating every RPC to the
// node it wraps. There is nothing generated to embed: the transport
// package already declares the full interface and service descriptor.
type Handler struct {
	node *node.Node
}

// NewHandler wraps n for serving.
func NewHandler(n *node.Node) *Handler {
	return &Handler{node: n}
}

func (h *Handler) FindSuccessor(ctx context.Context, req *transport.HashPos) (*transport.FindSuccessorReply, error) {
	target := ring.ID(req.Key)
	peer, err := h.node.FindSuccessor(ctx, target)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	return &transport.FindSuccessorReply{ID: []byte(peer.ID), Addr: peer.Addr}, nil
}

func (h *Handler) GetPredecessor(ctx context.Context, _ *transport.Empty) (*transport.GetPredecessorReply, error) {
	pred := h.node.RoutingTable().GetPredecessor()
	if pred == nil {
		return &transport.GetPredecessorReply{Present: false}, nil
	}
	return &transport.GetPredecessorReply{Present: true, ID: []byte(pred.ID), Addr: pred.Addr}, nil
}

func (h *Handler) GetSuccessorList(ctx context.Context, _ *transport.Empty) (*transport.SuccessorListReply, error) {
	rt := h.node.RoutingTable()
	out := &transport.SuccessorListReply{OwnAddress: h.node.Self().Addr}
	for _, s := range rt.SuccessorList() {
		out.Successors = append(out.Successors, transport.FingerEntry{ID: []byte(s.ID), Addr: s.Addr})
	}
	return out, nil
}

func (h *Handler) FindClosestPrecedingFinger(ctx context.Context, req *transport.HashPos) (*transport.FingerEntry, error) {
	peer := h.node.ClosestPrecedingFinger(ring.ID(req.Key))
	return &transport.FingerEntry{ID: []byte(peer.ID), Addr: peer.Addr}, nil
}

func (h *Handler) FixFingers(ctx context.Context, _ *transport.Empty) (*transport.Empty, error) {
	h.node.TriggerFixFingers(ctx)
	return &transport.Empty{}, nil
}

func (h *Handler) Stabilize(ctx context.Context, _ *transport.Empty) (*transport.Empty, error) {
	h.node.TriggerStabilize(ctx)
	return &transport.Empty{}, nil
}

func (h *Handler) Health(ctx context.Context, _ *transport.Empty) (*transport.Empty, error) {
	if err := h.node.Health(ctx); err != nil {
		return nil, transport.ToStatus(err)
	}
	return &transport.Empty{}, nil
}

func (h *Handler) Notify(req *transport.NotifyRequest, stream transport.NotifyServerStream) error {
	return h.node.HandleNotify(req, stream)
}

func (h *Handler) Handoff(stream transport.HandoffServerStream) error {
	return h.node.HandleHandoff(stream)
}

func (h *Handler) Get(ctx context.Context, req *transport.GetRequest) (*transport.GetReply, error) {
	reply, err := h.node.Get(ctx, req.Key)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	return reply, nil
}

// Put distinguishes the two wire uses of the same RPC: replication == 0
// is a replica fan-out hop ("store here, don't forward"), anything else
// is a client write that must still be routed to the primary.
func (h *Handler) Put(ctx context.Context, req *transport.PutRequest) (*transport.Empty, error) {
	var err error
	if req.Replication == 0 {
		err = h.node.HandlePut(ctx, req)
	} else {
		err = h.node.Put(ctx, req.Key, req.Value, time.Duration(req.Ttl), req.Replication)
	}
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	return &transport.Empty{}, nil
}

func (h *Handler) GetNodeSummary(ctx context.Context, _ *transport.Empty) (*transport.NodeSummary, error) {
	return h.node.GetNodeSummary(), nil
}

func (h *Handler) GetKvStoreSize(ctx context.Context, _ *transport.Empty) (*transport.KvStoreSizeReply, error) {
	return h.node.GetKvStoreSize(), nil
}

func (h *Handler) GetKvStoreData(ctx context.Context, _ *transport.Empty) (*transport.KvStoreDataReply, error) {
	return h.node.GetKvStoreData(), nil
}
