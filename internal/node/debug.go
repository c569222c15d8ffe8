package node

import "chorddht/internal/transport"

// GetNodeSummary answers the debug RPC with a snapshot of this node's
// routing state: identity, predecessor, successor list, and how many
// finger-table slots are currently populated.
func (n *Node) GetNodeSummary() *transport.NodeSummary {
	out := &transport.NodeSummary{
		ID:   []byte(n.self.ID),
		Addr: n.self.Addr,
	}

	if pred := n.rt.GetPredecessor(); pred != nil {
		out.HasPredecessor = true
		out.PredecessorAddr = pred.Addr
	}

	for _, s := range n.rt.SuccessorList() {
		out.Successors = append(out.Successors, transport.FingerEntry{ID: []byte(s.ID), Addr: s.Addr})
	}

	for i := 0; i < n.sp.Bits; i++ {
		if n.rt.GetFinger(i) != nil {
			out.NonEmptyFingers++
		}
	}
	return out
}

// GetKvStoreSize answers the debug RPC with the number of pairs this node
// currently holds, expired or not.
func (n *Node) GetKvStoreSize() *transport.KvStoreSizeReply {
	return &transport.KvStoreSizeReply{Size: int64(n.store.Len())}
}

// GetKvStoreData answers the debug RPC with a full snapshot of this node's
// store, for inspection by the interactive client and the load tester.
func (n *Node) GetKvStoreData() *transport.KvStoreDataReply {
	snap := n.store.Snapshot()
	pairs := make([]transport.KvPair, 0, len(snap))
	for _, p := range snap {
		pairs = append(pairs, transport.KvPair{
			Key:            []byte(p.Key),
			Value:          p.Value,
			ExpirationDate: p.Expiration,
		})
	}
	return &transport.KvStoreDataReply{Pairs: pairs}
}
