// Package pool manages reusable gRPC connections to peer nodes. It is the
// single connection-management concern for the whole process: one pool per
// node, refcounted per in-flight call, with idle eviction in the
// background. Earlier iterations of this codebase grew two divergent,
// partially-overlapping pool types (a plain map-of-conns client pool and a
// separate idle-evicting connection manager); this package merges them.
package pool

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"

	"chorddht/internal/logger"
	"chorddht/internal/transport"
)

// entry is one pooled connection: the dialed conn, its typed client
// wrapper, an in-flight refcount, and the last time a caller released it.
type entry struct {
	conn     *grpc.ClientConn
	client   *transport.Client
	refs     int
	lastUsed time.Time
}

// Pool is a concurrency-safe, address-keyed cache of peer connections.
// Dialing is lazy: a connection is created on first Acquire and kept alive
// until it has been idle (zero refs) for longer than idleTTL.
type Pool struct {
	lgr     logger.Logger
	idleTTL time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithLogger overrides the pool's logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.lgr = l }
}

// WithIdleTTL overrides how long an unreferenced connection is kept before
// the background sweep closes it. idleTTL <= 0 disables eviction.
func WithIdleTTL(d time.Duration) Option {
	return func(p *Pool) { p.idleTTL = d }
}

// defaultIdleTTL is the eviction threshold used when WithIdleTTL is not
// supplied: long enough that steady-state stabilization traffic keeps a
// peer's connection warm, short enough to reclaim connections to peers
// that have left the ring.
const defaultIdleTTL = 2 * time.Minute

const sweepInterval = 15 * time.Second

// New creates an empty Pool and starts its idle-eviction sweep.
func New(opts ...Option) *Pool {
	p := &Pool{
		lgr:     logger.NopLogger{},
		idleTTL: defaultIdleTTL,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.idleTTL > 0 {
		go p.sweepLoop()
	}
	return p
}

// Acquire returns a typed client for addr, dialing lazily if no connection
// exists yet. The returned release func must be called exactly once when
// the caller is done with the client; it does not close the connection
// immediately, only marks it eligible for the next idle sweep.
func (p *Pool) Acquire(addr string) (*transport.Client, func(), error) {
	p.mu.Lock()
	if e, ok := p.entries[addr]; ok {
		e.refs++
		p.mu.Unlock()
		return e.client, p.releaseFunc(addr), nil
	}
	p.mu.Unlock()

	conn, err := transport.Dial(addr)
	if err != nil {
		return nil, nil, err
	}
	client := transport.NewClient(conn)

	p.mu.Lock()
	if e, ok := p.entries[addr]; ok {
		// lost the race against a concurrent Acquire; keep theirs, close ours.
		e.refs++
		p.mu.Unlock()
		_ = conn.Close()
		return e.client, p.releaseFunc(addr), nil
	}
	p.entries[addr] = &entry{conn: conn, client: client, refs: 1, lastUsed: time.Now()}
	p.mu.Unlock()
	p.lgr.Debug("pool: dialed new connection", logger.F("addr", addr))
	return client, p.releaseFunc(addr), nil
}

func (p *Pool) releaseFunc(addr string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			if e, ok := p.entries[addr]; ok {
				e.refs--
				e.lastUsed = time.Now()
			}
			p.mu.Unlock()
		})
	}
}

// Do dials (if needed) and invokes fn with a client for addr, releasing the
// reference when fn returns regardless of error. This is the common case;
// Acquire is exposed for callers that need the client to outlive a single
// call, such as an open stream.
func (p *Pool) Do(_ context.Context, addr string, fn func(*transport.Client) error) error {
	client, release, err := p.Acquire(addr)
	if err != nil {
		return err
	}
	defer release()
	return fn(client)
}

// Invalidate forcibly closes and forgets the connection to addr,
// regardless of its refcount. Called when the routing layer has
// determined a peer is unreachable and wants the next Acquire to redial
// rather than reuse a broken connection.
func (p *Pool) Invalidate(addr string) {
	p.mu.Lock()
	e, ok := p.entries[addr]
	if ok {
		delete(p.entries, addr)
	}
	p.mu.Unlock()
	if ok {
		_ = e.conn.Close()
		p.lgr.Debug("pool: connection invalidated", logger.F("addr", addr))
	}
}

// Close stops the eviction sweep and closes every pooled connection,
// regardless of refcount.
func (p *Pool) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, e := range p.entries {
		_ = e.conn.Close()
		delete(p.entries, addr)
	}
}

func (p *Pool) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			p.sweepIdle()
		}
	}
}

func (p *Pool) sweepIdle() {
	now := time.Now()
	var dead []*entry

	p.mu.Lock()
	for addr, e := range p.entries {
		if e.refs <= 0 && now.Sub(e.lastUsed) >= p.idleTTL {
			dead = append(dead, e)
			delete(p.entries, addr)
		}
	}
	p.mu.Unlock()

	for _, e := range dead {
		_ = e.conn.Close()
	}
	if len(dead) > 0 {
		p.lgr.Debug("pool: evicted idle connections", logger.F("count", len(dead)))
	}
}
