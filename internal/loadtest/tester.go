package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"chorddht/internal/bootstrap"
	"chorddht/internal/loadtest/writer"
	"chorddht/internal/logger"
	"chorddht/internal/pool"
	"chorddht/internal/ring"
	"chorddht/internal/transport"
)

// Tester drives randomized Get/Put traffic against a running ring,
// discovering members through a Bootstrap backend and recording
// per-operation latency through a writer.Writer.
type Tester struct {
	cfg   *Config
	lgr   logger.Logger
	w     writer.Writer
	boot  bootstrap.Bootstrap
	sp    ring.Space
	pool  *pool.Pool

	started time.Time
}

// newBootstrap builds the Bootstrap backend named by cfg.Bootstrap.Mode.
func newBootstrap(cfg BootstrapConfig) (bootstrap.Bootstrap, error) {
	switch cfg.Mode {
	case "docker":
		return bootstrap.NewDockerBootstrap(cfg.Docker.ContainerSuffix, cfg.Docker.Network, cfg.Docker.Port)
	case "route53":
		return bootstrap.NewRoute53Bootstrap(cfg.Route53)
	case "static":
		return bootstrap.NewStaticBootstrap(cfg.Peers), nil
	default:
		return nil, fmt.Errorf("unknown bootstrap mode %q", cfg.Mode)
	}
}

// New builds a Tester from cfg, resolving its bootstrap backend and
// identifier space.
func New(cfg *Config, lgr logger.Logger, w writer.Writer) (*Tester, error) {
	boot, err := newBootstrap(cfg.Bootstrap)
	if err != nil {
		return nil, fmt.Errorf("build bootstrap backend: %w", err)
	}
	sp, err := ring.NewSpace(cfg.Ring.IDBits, 1)
	if err != nil {
		return nil, fmt.Errorf("build identifier space: %w", err)
	}
	return &Tester{
		cfg:  cfg,
		lgr:  lgr,
		w:    w,
		boot: boot,
		sp:   sp,
		pool: pool.New(pool.WithLogger(lgr.Named("pool"))),
	}, nil
}

// Run drives query waves at cfg.Query.Rate until cfg.Simulation.Duration
// elapses or ctx is cancelled.
func (t *Tester) Run(ctx context.Context) error {
	defer t.pool.Close()

	t.lgr.Info("load test started", logger.F("duration", t.cfg.Simulation.Duration.Std()))
	t.started = time.Now()
	deadline := t.started.Add(t.cfg.Simulation.Duration.Std())

	ticker := time.NewTicker(time.Duration(float64(time.Second) / t.cfg.Query.Rate))
	defer ticker.Stop()

	for {
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.runWave(ctx); err != nil {
				t.lgr.Error("query wave failed", logger.F("err", err))
			}
		}
	}

	t.lgr.Info("load test finished")
	return t.w.Close()
}

// runWave discovers the current ring membership and fires a batch of
// parallel operations at it, sized between the configured worker bounds.
func (t *Tester) runWave(ctx context.Context) error {
	nodes, err := t.boot.Discover(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap discovery: %w", err)
	}
	if len(nodes) == 0 {
		t.lgr.Warn("no nodes discovered")
		return nil
	}

	n := randomInt(t.cfg.Query.Parallelism.MinWorkers, t.cfg.Query.Parallelism.MaxWorkers)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			t.doOp(ctx, nodes)
		}()
	}
	wg.Wait()
	return nil
}

// doOp performs a single Get or Put against a random ring member and
// records the outcome and latency.
func (t *Tester) doOp(ctx context.Context, nodes []string) {
	addr := nodes[rand.Intn(len(nodes))]
	key := t.randomKey()

	opCtx, cancel := context.WithTimeout(ctx, t.cfg.Query.Timeout.Std())
	defer cancel()

	isPut := rand.Float64() < t.cfg.Query.PutFraction
	start := time.Now()
	var result string

	err := t.pool.Do(opCtx, addr, func(c *transport.Client) error {
		if isPut {
			return c.Put(opCtx, &transport.PutRequest{
				Key: key, Ttl: 0, Replication: t.cfg.Query.Replication, Value: "loadtest",
			})
		}
		reply, err := c.Get(opCtx, key)
		if err != nil {
			return err
		}
		switch reply.Status {
		case transport.StatusOK:
			result = "OK"
		case transport.StatusExpired:
			result = "EXPIRED"
		default:
			result = "NOT_FOUND"
		}
		return nil
	})
	delay := time.Since(start)

	switch {
	case errors.Is(err, transport.ErrTransport):
		t.pool.Invalidate(addr)
		t.lgr.Debug("node unreachable, skipping row", logger.F("addr", addr))
		return
	case errors.Is(err, context.DeadlineExceeded):
		result = "TIMEOUT"
	case err != nil:
		result = fmt.Sprintf("ERROR_%v", err)
	case isPut:
		result = "PUT_OK"
	}

	t.lgr.Info("operation result",
		logger.F("addr", addr), logger.F("put", isPut), logger.F("result", result),
		logger.F("delay_ms", delay.Milliseconds()))

	if err := t.w.WriteRow(addr, result, delay); err != nil {
		t.lgr.Warn("failed to write result row", logger.F("err", err))
	}
}

func (t *Tester) randomKey() []byte {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return buf
}

func randomInt(min, max int) int {
	if min >= max {
		return min
	}
	return rand.Intn(max-min+1) + min
}
