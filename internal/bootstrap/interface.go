package bootstrap

import (
	"context"

	"chorddht/internal/ring"
)

// Bootstrap resolves the set of peers a joining node should attempt to
// contact, and optionally publishes/retracts this node's own presence for
// the next joiner to discover.
type Bootstrap interface {
	// Discover returns known peer addresses, in the order the backend yields
	// them; no recency ordering is applied.
	Discover(ctx context.Context) ([]string, error)
	// Register publishes self, if the backend supports discovery by others.
	Register(ctx context.Context, self ring.Peer) error
	// Deregister retracts a prior Register. Safe to call even if Register
	// was never called or failed.
	Deregister(ctx context.Context, self ring.Peer) error
}
