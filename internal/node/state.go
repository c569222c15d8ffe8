// Package node implements the Chord protocol engine: routing
// (find_successor, closest_preceding), the stabilization/notify/fix-fingers
// loops, the proof-of-work join procedure, and the replicated key-value
// surface. It owns no live handles to other nodes — every peer is an
// address dialed through internal/pool/internal/transport, exactly as
// internal/routingtable's Peer values are passed around.
package node

import (
	"sync"
	"time"

	"chorddht/internal/logger"
	"chorddht/internal/pool"
	"chorddht/internal/pow"
	"chorddht/internal/ring"
	"chorddht/internal/routingtable"
	"chorddht/internal/store"
)

// Config holds the protocol knobs a Node needs beyond its identity: the
// retry budget and deadline for routing, the periodic loop intervals, and
// the admission gate's difficulty floor. It mirrors the dht/faultTolerance
// sections of internal/config.Config without depending on that package, so
// node stays usable in tests without a YAML file.
type Config struct {
	ReplicationFactor int
	PowDifficulty     int
	DevMode           bool

	RoutingRetries int           // K: max alternate-path attempts per find_successor
	LookupDeadline time.Duration // total budget for one find_successor resolution

	StabilizeInterval        time.Duration
	FixFingersInterval       time.Duration
	CheckPredecessorInterval time.Duration
}

// DefaultConfig returns the usual protocol tuning: 500ms
// stabilize/fix_fingers, 1s check_predecessor, a 3-way routing retry
// budget and a 2s end-to-end lookup deadline.
func DefaultConfig() Config {
	return Config{
		ReplicationFactor:        2,
		PowDifficulty:            16,
		RoutingRetries:           3,
		LookupDeadline:           2 * time.Second,
		StabilizeInterval:        500 * time.Millisecond,
		FixFingersInterval:       500 * time.Millisecond,
		CheckPredecessorInterval: time.Second,
	}
}

// Node is the protocol engine owned by one Chord participant: its routing
// state, its share of the key-value store, and the connection pool and
// admission verifier it needs to talk to the rest of the ring.
type Node struct {
	lgr  logger.Logger
	sp   ring.Space
	self ring.Peer
	cfg  Config

	rt    *routingtable.RoutingTable
	store *store.Store
	pool  *pool.Pool
	veri  *pow.Verifier

	// notifyMu serializes predecessor advancement with the handoff-range
	// computation that depends on the pre-swap value.
	notifyMu sync.Mutex

	stop chan struct{}
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithLogger overrides the node's logger (and propagates it to the
// routing table and store it owns).
func WithLogger(l logger.Logger) Option {
	return func(n *Node) { n.lgr = l }
}

// New creates a Node for self in identifier space sp. The caller supplies
// the connection pool so the same pool can be shared with ambient tooling
// (the interactive client, the load tester) that also needs to dial peers.
func New(self ring.Peer, sp ring.Space, cfg Config, p *pool.Pool, opts ...Option) *Node {
	minDifficulty := cfg.PowDifficulty
	if cfg.DevMode {
		minDifficulty = 1
	}
	n := &Node{
		lgr:  logger.NopLogger{},
		sp:   sp,
		self: self,
		cfg:  cfg,
		pool: p,
		veri: pow.NewVerifier(minDifficulty),
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.lgr = n.lgr.WithNode(self)
	n.rt = routingtable.New(self, sp, sp.SuccListSize, routingtable.WithLogger(n.lgr.Named("routingtable")))
	n.store = store.New(n.lgr.Named("store"))
	return n
}

// Self returns the node's own ring identity.
func (n *Node) Self() ring.Peer { return n.self }

// Space returns the identifier space this node was built for.
func (n *Node) Space() ring.Space { return n.sp }

// RoutingTable exposes the routing state for debug endpoints and tests.
func (n *Node) RoutingTable() *routingtable.RoutingTable { return n.rt }

// Store exposes the key-value store for debug endpoints and tests.
func (n *Node) Store() *store.Store { return n.store }
