package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chorddht/internal/loadtest"
	"chorddht/internal/loadtest/writer"
	"chorddht/internal/logger"
	zapfactory "chorddht/internal/logger/zap"
)

var defaultConfigPath = "config/tester/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := loadtest.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	if err := cfg.Validate(); err != nil {
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

	var w writer.Writer
	if cfg.CSV.Enabled {
		w, err = writer.NewCSVWriter(cfg.CSV.Path)
		if err != nil {
			lgr.Error("failed to initialize CSV writer", logger.F("err", err))
			os.Exit(1)
		}
	} else {
		w = writer.NopWriter{}
	}

	runner, err := loadtest.New(cfg, lgr.Named("loadtest"), w)
	if err != nil {
		lgr.Error("failed to initialize load test harness", logger.F("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := runner.Run(ctx); err != nil {
		lgr.Error("load test run failed", logger.F("err", err))
	}
	lgr.Info("load test finished", logger.F("elapsed", time.Since(start)))
}
