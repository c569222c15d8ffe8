package bootstrap

import (
	"context"

	"chorddht/internal/ring"
)

// StaticBootstrap hands back a fixed, operator-configured peer list. Used
// for the first node in a ring (empty list) and for deployments where peer
// addresses are known ahead of time (e.g. a docker-compose cluster).
type StaticBootstrap struct {
	peers []string
}

func NewStaticBootstrap(peers []string) *StaticBootstrap {
	return &StaticBootstrap{peers: peers}
}

func (s *StaticBootstrap) Discover(ctx context.Context) ([]string, error) {
	return s.peers, nil
}

func (s *StaticBootstrap) Register(ctx context.Context, self ring.Peer) error { return nil }

func (s *StaticBootstrap) Deregister(ctx context.Context, self ring.Peer) error { return nil }
