package config

import (
	"fmt"
	"net"
	"strings"

	"chorddht/internal/configloader"
	"chorddht/internal/logger"
)

// LoggerConfig and FileLoggerConfig are the generic logging shapes shared
// across every node-like binary in this module.
type LoggerConfig = configloader.LoggerConfig
type FileLoggerConfig = configloader.FileLoggerConfig

// TracingConfig controls the otel tracer attached to lookup RPCs.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// Route53Config configures SRV-record-based bootstrap discovery.
type Route53Config struct {
	HostedZoneID string `yaml:"hostedZoneId"`
	DomainSuffix string `yaml:"domainSuffix"`
	TTL          int64  `yaml:"ttl"`
	Region       string `yaml:"region"`
}

// BootstrapConfig selects how a joining node discovers an existing ring.
type BootstrapConfig struct {
	Mode    string        `yaml:"mode"` // "static", "route53", or "init"
	Peers   []string      `yaml:"peers"`
	Route53 Route53Config `yaml:"route53"`
}

// FaultToleranceConfig tunes the stabilization and failure-detection loops.
type FaultToleranceConfig struct {
	SuccessorListSize        int                   `yaml:"successorListSize"`
	StabilizeInterval        configloader.Duration `yaml:"stabilizeInterval"`
	FixFingersInterval       configloader.Duration `yaml:"fixFingersInterval"`
	CheckPredecessorInterval configloader.Duration `yaml:"checkPredecessorInterval"`
	FailureTimeout           configloader.Duration `yaml:"failureTimeout"`
}

// DHTConfig is the core ring protocol configuration.
type DHTConfig struct {
	IDBits            int                  `yaml:"idBits"`
	ReplicationFactor int                  `yaml:"replicationFactor"`
	PowDifficulty     int                  `yaml:"powDifficulty"`
	DevMode           bool                 `yaml:"devMode"`
	FaultTolerance    FaultToleranceConfig `yaml:"faultTolerance"`
	Bootstrap         BootstrapConfig      `yaml:"bootstrap"`
}

// NodeConfig is the network identity of this process.
type NodeConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	APIAddress    string `yaml:"apiAddress"`
	WebAddress    string `yaml:"webAddress"`
	AdvertiseMode string `yaml:"advertiseMode"` // "private" or "public", used only when Host is empty
}

type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	DHT       DHTConfig       `yaml:"dht"`
	Node      NodeConfig      `yaml:"node"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoadConfig reads and parses a YAML config file. Call ApplyEnvOverrides and
// then ValidateConfig before using the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := configloader.LoadYAML(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnvOverrides lets deployment tooling override selected fields without
// rewriting the YAML file, the way container orchestration typically injects
// per-replica identity.
func (cfg *Config) ApplyEnvOverrides() {
	configloader.OverrideBool(&cfg.Logger.Active, "LOGGER_ENABLED")
	configloader.OverrideString(&cfg.Logger.Level, "LOGGER_LEVEL")
	configloader.OverrideString(&cfg.Logger.Encoding, "LOGGER_ENCODING")
	configloader.OverrideString(&cfg.Logger.Mode, "LOGGER_MODE")
	configloader.OverrideString(&cfg.Logger.File.Path, "LOGGER_FILE_PATH")

	configloader.OverrideString(&cfg.Node.Host, "NODE_HOST")
	configloader.OverrideInt(&cfg.Node.Port, "NODE_PORT")
	configloader.OverrideString(&cfg.Node.APIAddress, "NODE_API_ADDRESS")
	configloader.OverrideString(&cfg.Node.WebAddress, "NODE_WEB_ADDRESS")
	configloader.OverrideString(&cfg.Node.AdvertiseMode, "NODE_ADVERTISE_MODE")

	configloader.OverrideInt(&cfg.DHT.PowDifficulty, "DHT_POW_DIFFICULTY")
	configloader.OverrideBool(&cfg.DHT.DevMode, "DHT_DEV_MODE")
	configloader.OverrideInt(&cfg.DHT.ReplicationFactor, "DHT_REPLICATION_FACTOR")

	configloader.OverrideString(&cfg.DHT.Bootstrap.Mode, "BOOTSTRAP_MODE")
	configloader.OverrideStringSlice(&cfg.DHT.Bootstrap.Peers, "BOOTSTRAP_PEERS")
	configloader.OverrideString(&cfg.DHT.Bootstrap.Route53.HostedZoneID, "BOOTSTRAP_ROUTE53_ZONE_ID")
	configloader.OverrideString(&cfg.DHT.Bootstrap.Route53.DomainSuffix, "BOOTSTRAP_ROUTE53_SUFFIX")
	configloader.OverrideInt64(&cfg.DHT.Bootstrap.Route53.TTL, "BOOTSTRAP_ROUTE53_TTL")
	configloader.OverrideString(&cfg.DHT.Bootstrap.Route53.Region, "BOOTSTRAP_ROUTE53_REGION")

	configloader.OverrideBool(&cfg.Telemetry.Tracing.Enabled, "TRACE_ENABLED")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Exporter, "TRACE_EXPORTER")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Endpoint, "TRACE_ENDPOINT")
}

// ValidateConfig checks structural correctness only: required fields,
// ranges, and enum-like values. It does not second-guess the operator's
// chosen protocol parameters (e.g. a low pow difficulty is legal).
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	if cfg.DHT.IDBits <= 0 || cfg.DHT.IDBits%8 != 0 {
		errs = append(errs, "dht.idBits must be a positive multiple of 8")
	}
	if cfg.DHT.ReplicationFactor < 1 {
		errs = append(errs, "dht.replicationFactor must be >= 1")
	}
	if cfg.DHT.PowDifficulty < 0 {
		errs = append(errs, "dht.powDifficulty must be >= 0")
	}
	ft := cfg.DHT.FaultTolerance
	if ft.SuccessorListSize <= 0 {
		errs = append(errs, "dht.faultTolerance.successorListSize must be > 0")
	}
	if ft.StabilizeInterval <= 0 {
		errs = append(errs, "dht.faultTolerance.stabilizeInterval must be > 0")
	}
	if ft.FixFingersInterval <= 0 {
		errs = append(errs, "dht.faultTolerance.fixFingersInterval must be > 0")
	}
	if ft.CheckPredecessorInterval <= 0 {
		errs = append(errs, "dht.faultTolerance.checkPredecessorInterval must be > 0")
	}
	if ft.FailureTimeout <= 0 {
		errs = append(errs, "dht.faultTolerance.failureTimeout must be > 0")
	}

	b := cfg.DHT.Bootstrap
	switch b.Mode {
	case "static":
		if len(b.Peers) == 0 {
			errs = append(errs, "bootstrap.peers is required in mode=static")
		}
		for _, p := range b.Peers {
			if _, _, err := net.SplitHostPort(p); err != nil {
				errs = append(errs, fmt.Sprintf("invalid peer address %q in bootstrap.peers: %v", p, err))
			}
		}
	case "route53":
		if b.Route53.HostedZoneID == "" {
			errs = append(errs, "bootstrap.route53.hostedZoneId is required in mode=route53")
		}
		if b.Route53.DomainSuffix == "" {
			errs = append(errs, "bootstrap.route53.domainSuffix is required in mode=route53")
		}
	case "init":
	default:
		errs = append(errs, fmt.Sprintf("invalid bootstrap.mode: %s (must be static, route53 or init)", b.Mode))
	}

	if cfg.Node.Port < 0 || cfg.Node.Port > 65535 {
		errs = append(errs, fmt.Sprintf("node.port must be in [0,65535], got %d", cfg.Node.Port))
	}
	if cfg.Node.Host == "" {
		switch cfg.Node.AdvertiseMode {
		case "private", "public":
		default:
			errs = append(errs, fmt.Sprintf("invalid node.advertiseMode: %s (must be private or public when host is unset)", cfg.Node.AdvertiseMode))
		}
	}

	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s", cfg.Telemetry.Tracing.Exporter))
		}
		if cfg.Telemetry.Tracing.Endpoint == "" && cfg.Telemetry.Tracing.Exporter != "stdout" {
			errs = append(errs, "telemetry.tracing.endpoint is required for this exporter")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig emits the effective configuration at debug level, useful for
// diagnosing startup issues without reading the YAML file back.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),

		logger.F("dht.idBits", cfg.DHT.IDBits),
		logger.F("dht.replicationFactor", cfg.DHT.ReplicationFactor),
		logger.F("dht.powDifficulty", cfg.DHT.PowDifficulty),
		logger.F("dht.devMode", cfg.DHT.DevMode),

		logger.F("dht.faultTolerance.successorListSize", cfg.DHT.FaultTolerance.SuccessorListSize),
		logger.F("dht.faultTolerance.stabilizeIntervalMs", cfg.DHT.FaultTolerance.StabilizeInterval.Std().Milliseconds()),
		logger.F("dht.faultTolerance.fixFingersIntervalMs", cfg.DHT.FaultTolerance.FixFingersInterval.Std().Milliseconds()),
		logger.F("dht.faultTolerance.checkPredecessorIntervalMs", cfg.DHT.FaultTolerance.CheckPredecessorInterval.Std().Milliseconds()),
		logger.F("dht.faultTolerance.failureTimeoutMs", cfg.DHT.FaultTolerance.FailureTimeout.Std().Milliseconds()),

		logger.F("dht.bootstrap.mode", cfg.DHT.Bootstrap.Mode),
		logger.F("dht.bootstrap.peers", cfg.DHT.Bootstrap.Peers),

		logger.F("node.host", cfg.Node.Host),
		logger.F("node.port", cfg.Node.Port),
		logger.F("node.apiAddress", cfg.Node.APIAddress),
		logger.F("node.webAddress", cfg.Node.WebAddress),

		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
	)
}
