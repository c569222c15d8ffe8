package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chorddht/internal/bootstrap"
	"chorddht/internal/config"
	"chorddht/internal/logger"
	zapfactory "chorddht/internal/logger/zap"
	"chorddht/internal/node"
	"chorddht/internal/pool"
	"chorddht/internal/ring"
	"chorddht/internal/server"
	"chorddht/internal/telemetry"

	"google.golang.org/grpc"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.NewCore(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.New(zapLog)
	} else {
		lgr = logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	lis, err := cfg.Node.Listen()
	if err != nil {
		lgr.Error("failed to bind listener", logger.F("err", err))
		os.Exit(1)
	}
	defer func() { _ = lis.Close() }()

	advertised, err := cfg.Node.AdvertiseAddr(lis)
	if err != nil {
		lgr.Error("failed to determine advertised address", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Debug("listener bound", logger.F("advertised", advertised))

	sp, err := ring.NewSpace(cfg.DHT.IDBits, cfg.DHT.FaultTolerance.SuccessorListSize)
	if err != nil {
		lgr.Error("failed to initialize identifier space", logger.F("err", err))
		os.Exit(1)
	}

	self := ring.Peer{ID: sp.HashString(advertised), Addr: advertised}
	lgr = lgr.Named("node").WithNode(self)
	lgr.Info("node identity resolved", logger.F("id", self.ID.ToHexString(true)))

	shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "chorddht-node", self.ID)
	defer func() { _ = shutdownTracer(context.Background()) }()

	ncfg := node.DefaultConfig()
	ncfg.ReplicationFactor = cfg.DHT.ReplicationFactor
	ncfg.PowDifficulty = cfg.DHT.PowDifficulty
	ncfg.DevMode = cfg.DHT.DevMode
	ft := cfg.DHT.FaultTolerance
	ncfg.StabilizeInterval = ft.StabilizeInterval.Std()
	ncfg.FixFingersInterval = ft.FixFingersInterval.Std()
	ncfg.CheckPredecessorInterval = ft.CheckPredecessorInterval.Std()
	ncfg.LookupDeadline = ft.FailureTimeout.Std()

	p := pool.New(pool.WithLogger(lgr.Named("pool")))
	defer p.Close()

	n := node.New(self, sp, ncfg, p, node.WithLogger(lgr))

	srv, err := server.New(lis, n, []grpc.ServerOption{})
	if err != nil {
		lgr.Error("failed to initialize gRPC server", logger.F("err", err))
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()
	lgr.Debug("gRPC server started")

	disco, err := bootstrap.New(cfg.DHT.Bootstrap)
	if err != nil {
		lgr.Error("failed to initialize bootstrap backend", logger.F("err", err))
		srv.Stop()
		os.Exit(1)
	}

	discoverCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	peers, err := disco.Discover(discoverCtx)
	cancel()
	if err != nil {
		lgr.Error("failed to resolve bootstrap peers", logger.F("err", err))
		srv.Stop()
		os.Exit(1)
	}

	var bootstrapAddr string
	if len(peers) > 0 {
		bootstrapAddr = peers[0]
	}
	joinCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = n.Bootstrap(joinCtx, bootstrapAddr)
	cancel()
	if err != nil {
		lgr.Error("failed to join ring", logger.F("err", err))
		srv.Stop()
		os.Exit(1)
	}

	registerCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := disco.Register(registerCtx, self); err != nil {
		lgr.Warn("failed to register with bootstrap backend", logger.F("err", err))
	}
	cancel()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := disco.Deregister(ctx, self); err != nil {
			lgr.Warn("failed to deregister from bootstrap backend", logger.F("err", err))
		}
	}()

	n.Start()
	lgr.Info("node ready")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		lgr.Info("shutdown signal received")
		n.Stop()

		leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.Leave(leaveCtx); err != nil {
			lgr.Warn("failed to hand off keys on leave", logger.F("err", err))
		}
		cancel()

		done := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
			lgr.Info("server stopped gracefully")
		case <-time.After(5 * time.Second):
			lgr.Warn("graceful stop timed out, forcing shutdown")
			srv.Stop()
		}

	case err := <-serveErr:
		lgr.Error("gRPC server terminated unexpectedly", logger.F("err", err))
		n.Stop()
		os.Exit(1)
	}
}
