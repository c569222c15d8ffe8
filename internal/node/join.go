package node

import (
	"context"
	"fmt"

	"chorddht/internal/logger"
	"chorddht/internal/pow"
	"chorddht/internal/transport"
)

// Bootstrap runs the join procedure. An empty bootstrapAddr means
// "create a new ring": the node initializes a single-node routing table
// and owns the whole key space until someone joins it. Otherwise the node
// contacts bootstrapAddr, learns its successor, and notifies it with a
// freshly computed proof-of-work token to receive the key range it now
// owns.
func (n *Node) Bootstrap(ctx context.Context, bootstrapAddr string) error {
	if bootstrapAddr == "" {
		n.rt.InitSingleNode()
		n.lgr.Info("bootstrapped as the first node of a new ring")
		return nil
	}

	succ, err := n.remoteFindSuccessor(ctx, bootstrapAddr, n.self.ID)
	if err != nil {
		return fmt.Errorf("join: find_successor against bootstrap %s: %w", bootstrapAddr, err)
	}
	if succ.ID.Equal(n.self.ID) && succ.Addr != n.self.Addr {
		return fmt.Errorf("join: %w (address %s collides with %s)", transport.ErrConflict, n.self.Addr, succ.Addr)
	}

	n.rt.SetSuccessor(0, &succ)
	n.lgr.Info("join: resolved initial successor", logger.FPeer("successor", succ))

	difficulty := n.cfg.PowDifficulty
	if n.cfg.DevMode {
		difficulty = 1
	}
	tok := pow.Compute(n.self.Addr, difficulty)

	pairs, err := n.callNotify(ctx, succ.Addr, tok)
	if err != nil {
		return fmt.Errorf("join: notify %s: %w", succ.Addr, err)
	}
	if len(pairs) > 0 {
		n.store.MergeReplica(pairs)
		n.lgr.Info("join: ingested handed-off key range", logger.F("count", len(pairs)))
	}
	return nil
}
