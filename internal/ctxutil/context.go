package ctxutil

import (
	"context"
	"time"

	"chorddht/internal/ring"
	"chorddht/internal/trace"
)

// unexported keys to avoid collisions with other packages' context values.
type hopsKey struct{}

// ContextOption configures the behavior of NewContext. Multiple options can
// be combined.
type ContextOption func(*ctxConfig)

type ctxConfig struct {
	withTrace bool
	withHops  bool
	nodeID    ring.ID
	timeout   time.Duration
}

// WithTrace attaches a fresh trace id derived from nodeID to the created
// context.
func WithTrace(nodeID ring.ID) ContextOption {
	return func(cfg *ctxConfig) {
		cfg.withTrace = true
		cfg.nodeID = nodeID
	}
}

// WithTimeout applies a deadline to the created context. The caller must
// defer the returned cancel function.
func WithTimeout(d time.Duration) ContextOption {
	return func(cfg *ctxConfig) {
		cfg.timeout = d
	}
}

// WithHops initializes the hop counter at 0, used to bound lookup retries
// along a single find_successor chain.
func WithHops() ContextOption {
	return func(cfg *ctxConfig) {
		cfg.withHops = true
	}
}

// NewContext builds a context.Background() derived context configured by
// the given options.
func NewContext(opts ...ContextOption) (context.Context, context.CancelFunc) {
	cfg := &ctxConfig{}
	for _, o := range opts {
		o(cfg)
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), cfg.timeout)
	} else {
		ctx = context.Background()
	}
	if cfg.withTrace {
		ctx, _ = trace.AttachTraceID(ctx, cfg.nodeID)
	}
	if cfg.withHops {
		ctx = context.WithValue(ctx, hopsKey{}, 0)
	}

	return ctx, cancel
}

// TraceIDFromContext extracts the trace id, or "" if none is attached.
func TraceIDFromContext(ctx context.Context) string {
	return trace.GetTraceID(ctx)
}

// EnsureTraceID attaches a trace id derived from nodeID if ctx doesn't
// already carry one.
func EnsureTraceID(ctx context.Context, nodeID ring.ID) context.Context {
	if id := trace.GetTraceID(ctx); id == "" {
		ctx, _ = trace.AttachTraceID(ctx, nodeID)
	}
	return ctx
}

// InitHops initializes the hop counter at 0 on an existing ctx, preserving
// whatever deadline or cancellation it already carries (unlike NewContext,
// which always derives from context.Background()).
func InitHops(ctx context.Context) context.Context {
	return context.WithValue(ctx, hopsKey{}, 0)
}

// HopsFromContext returns the current hop counter, or -1 if not set.
func HopsFromContext(ctx context.Context) int {
	val := ctx.Value(hopsKey{})
	if hops, ok := val.(int); ok {
		return hops
	}
	return -1
}

// IncHops increments the hop counter if present. A counter of -1 means
// "don't count" and is left unchanged.
func IncHops(ctx context.Context) context.Context {
	val := ctx.Value(hopsKey{})
	if hops, ok := val.(int); ok {
		if hops == -1 {
			return ctx
		}
		return context.WithValue(ctx, hopsKey{}, hops+1)
	}
	return ctx
}
