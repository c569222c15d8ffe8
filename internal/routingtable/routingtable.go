// Package routingtable holds the per-node routing state of the Chord ring:
// the finger table, the successor list, and the predecessor pointer. All
// three are owned exclusively by one node and mutated under a single
// logical lock, per entry, so routing reads never block on storage and
// vice versa.
package routingtable

import (
	"fmt"
	"sync"

	"chorddht/internal/logger"
	"chorddht/internal/ring"
)

// entry holds one routing pointer (a finger, a successor-list slot, or the
// predecessor), synchronized independently so readers of one slot never
// wait on a write to another.
type entry struct {
	mu   sync.RWMutex
	peer *ring.Peer
}

func (e *entry) get() *ring.Peer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.peer
}

func (e *entry) set(p *ring.Peer) {
	e.mu.Lock()
	e.peer = p
	e.mu.Unlock()
}

// RoutingTable is the routing state owned by one Chord node: a finger
// table (sp.Bits entries), a bounded successor list, and an optional
// predecessor.
type RoutingTable struct {
	lgr  logger.Logger
	sp   ring.Space
	self ring.Peer

	fingers []*entry // length sp.Bits; fingers[i] ~= successor(self.id + 2^i)
	nextFix int       // round-robin cursor for fix_fingers, range [0, len(fingers))

	succList     []*entry
	succListSize int

	predecessor *entry
}

// Option configures a RoutingTable at construction time.
type Option func(*RoutingTable)

// WithLogger overrides the routing table's logger.
func WithLogger(l logger.Logger) Option {
	return func(rt *RoutingTable) { rt.lgr = l }
}

// New creates a routing table for self. succListSize is taken explicitly
// (rather than derived from sp.SuccListSize) so tests can shrink it.
func New(self ring.Peer, sp ring.Space, succListSize int, opts ...Option) *RoutingTable {
	rt := &RoutingTable{
		lgr:          logger.NopLogger{},
		sp:           sp,
		self:         self,
		fingers:      make([]*entry, sp.Bits),
		succList:     make([]*entry, succListSize),
		succListSize: succListSize,
		predecessor:  &entry{},
	}
	for i := range rt.fingers {
		rt.fingers[i] = &entry{}
	}
	for i := range rt.succList {
		rt.succList[i] = &entry{}
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.lgr.Debug("routing table initialized", logger.FPeer("self", self))
	return rt
}

// InitSingleNode configures the table for a brand-new, single-node ring:
// the first successor slot and every finger resolve to self until fix_fingers
// has run. The predecessor stays absent so the first joiner's notify can
// claim it — with an open-open interval test, a predecessor of self would
// never be displaced.
func (rt *RoutingTable) InitSingleNode() {
	rt.succList[0].set(&rt.self)
	for _, f := range rt.fingers {
		f.set(&rt.self)
	}
	rt.lgr.Debug("routing table reset to single-node ring")
}

// Space returns the identifier space this table was built for.
func (rt *RoutingTable) Space() ring.Space { return rt.sp }

// Self returns the local peer this table belongs to.
func (rt *RoutingTable) Self() ring.Peer { return rt.self }

// SuccListSize returns the configured successor list length.
func (rt *RoutingTable) SuccListSize() int { return rt.succListSize }

// GetFinger returns finger i (0-indexed, covering self.id + 2^i), or nil
// if unset. i must be in [0, sp.Bits).
func (rt *RoutingTable) GetFinger(i int) *ring.Peer {
	if i < 0 || i >= len(rt.fingers) {
		rt.lgr.Warn("GetFinger: index out of range", logger.F("index", i))
		return nil
	}
	return rt.fingers[i].get()
}

// SetFinger sets finger i.
func (rt *RoutingTable) SetFinger(i int, p *ring.Peer) {
	if i < 0 || i >= len(rt.fingers) {
		rt.lgr.Warn("SetFinger: index out of range", logger.F("index", i))
		return
	}
	rt.fingers[i].set(p)
}

// FingerTarget returns the ring position finger i is responsible for:
// self.id + 2^i.
func (rt *RoutingTable) FingerTarget(i int) (ring.ID, error) {
	return rt.sp.AddMod(rt.self.ID, rt.sp.Pow2(i))
}

// NextFingerToFix returns the index fix_fingers should refresh next and
// advances the round-robin cursor modulo len(fingers).
func (rt *RoutingTable) NextFingerToFix() int {
	i := rt.nextFix
	rt.nextFix = (rt.nextFix + 1) % len(rt.fingers)
	return i
}

// ClosestPreceding scans the finger table from the highest index down and
// returns the first finger whose id lies strictly between self and target
// (open-open). Falls back to the best successor-list candidate, then self.
func (rt *RoutingTable) ClosestPreceding(target ring.ID) ring.Peer {
	for i := len(rt.fingers) - 1; i >= 0; i-- {
		f := rt.fingers[i].get()
		if f == nil {
			continue
		}
		if f.ID.BetweenOpen(rt.self.ID, target) {
			return *f
		}
	}
	for i := len(rt.succList) - 1; i >= 0; i-- {
		s := rt.succList[i].get()
		if s == nil {
			continue
		}
		if s.ID.BetweenOpen(rt.self.ID, target) {
			return *s
		}
	}
	return rt.self
}

// GetSuccessor returns successor-list slot i, or nil if unset or i is out
// of range.
func (rt *RoutingTable) GetSuccessor(i int) *ring.Peer {
	if i < 0 || i >= len(rt.succList) {
		rt.lgr.Warn("GetSuccessor: index out of range", logger.F("index", i),
			logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.succList)-1)))
		return nil
	}
	return rt.succList[i].get()
}

// SetSuccessor sets successor-list slot i.
func (rt *RoutingTable) SetSuccessor(i int, p *ring.Peer) {
	if i < 0 || i >= len(rt.succList) {
		rt.lgr.Warn("SetSuccessor: index out of range", logger.F("index", i))
		return
	}
	rt.succList[i].set(p)
}

// FirstSuccessor is a convenience for GetSuccessor(0).
func (rt *RoutingTable) FirstSuccessor() *ring.Peer {
	return rt.GetSuccessor(0)
}

// SuccessorList returns the non-nil successors, in order.
func (rt *RoutingTable) SuccessorList() []ring.Peer {
	out := make([]ring.Peer, 0, len(rt.succList))
	for _, e := range rt.succList {
		if p := e.get(); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// SetSuccessorList replaces the successor list wholesale. peers is padded
// or truncated to the configured size.
func (rt *RoutingTable) SetSuccessorList(peers []ring.Peer) {
	for i := 0; i < len(rt.succList); i++ {
		if i < len(peers) {
			p := peers[i]
			rt.SetSuccessor(i, &p)
		} else {
			rt.SetSuccessor(i, nil)
		}
	}
	rt.lgr.Debug("successor list replaced", logger.F("count", len(peers)))
}

// PromoteCandidate drops the dead head of the successor list, promoting
// the successor at index i to position 0. Successors before i are
// discarded (presumed dead too); the list is re-padded with nil.
func (rt *RoutingTable) PromoteCandidate(i int) {
	if i <= 0 || i >= len(rt.succList) {
		rt.lgr.Warn("PromoteCandidate: invalid index", logger.F("index", i))
		return
	}
	candidate := rt.GetSuccessor(i)
	if candidate == nil {
		rt.lgr.Warn("PromoteCandidate: candidate slot empty", logger.F("index", i))
		return
	}
	newList := make([]ring.Peer, 0, len(rt.succList))
	newList = append(newList, *candidate)
	for j := i + 1; j < len(rt.succList); j++ {
		if s := rt.GetSuccessor(j); s != nil {
			newList = append(newList, *s)
		}
	}
	rt.SetSuccessorList(newList)
	rt.lgr.Debug("successor list promoted", logger.F("from_index", i), logger.FPeer("candidate", *candidate))
}

// GetPredecessor returns the current predecessor, or nil if absent.
func (rt *RoutingTable) GetPredecessor() *ring.Peer {
	return rt.predecessor.get()
}

// SetPredecessor sets the predecessor pointer. Pass nil to clear it.
func (rt *RoutingTable) SetPredecessor(p *ring.Peer) {
	rt.predecessor.set(p)
	rt.lgr.Debug("predecessor updated")
}

// DebugLog emits a structured snapshot of the routing table's non-empty
// entries at debug level.
func (rt *RoutingTable) DebugLog() {
	fingers := make([]map[string]any, 0)
	for i, e := range rt.fingers {
		if p := e.get(); p != nil {
			fingers = append(fingers, map[string]any{"i": i, "id": p.ID.ToHexString(false), "addr": p.Addr})
		}
	}
	succs := make([]map[string]any, 0)
	for i, e := range rt.succList {
		if p := e.get(); p != nil {
			succs = append(succs, map[string]any{"i": i, "id": p.ID.ToHexString(false), "addr": p.Addr})
		}
	}
	pred := "<nil>"
	if p := rt.GetPredecessor(); p != nil {
		pred = p.Addr
	}
	rt.lgr.Debug("routing table snapshot",
		logger.F("fingers", fingers),
		logger.F("successors", succs),
		logger.F("predecessor", pred),
	)
}
