// Package loadtest drives a running ring with randomized Get/Put traffic
// and records per-operation latency, exercising the replication and
// handoff paths under realistic process-level churn rather than
// in-process simulation only.
package loadtest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"chorddht/internal/config"
	"chorddht/internal/configloader"
)

// SimulationConfig controls the overall run duration.
type SimulationConfig struct {
	Duration configloader.Duration `yaml:"duration"`
}

// RingConfig describes the identifier space of the ring under test, which
// must match the target nodes' own configuration.
type RingConfig struct {
	IDBits int `yaml:"idBits"`
}

// DockerBootstrapConfig addresses a docker-compose ring by container name.
type DockerBootstrapConfig struct {
	ContainerSuffix string `yaml:"containerSuffix"`
	Network         string `yaml:"network"`
	Port            int    `yaml:"port"`
}

// BootstrapConfig selects how the harness discovers ring members.
type BootstrapConfig struct {
	Mode    string                `yaml:"mode"` // "docker", "route53", or "static"
	Peers   []string              `yaml:"peers"`
	Route53 config.Route53Config  `yaml:"route53"`
	Docker  DockerBootstrapConfig `yaml:"docker"`
}

// CSVConfig controls result recording.
type CSVConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ParallelismConfig bounds how many concurrent workers a query wave uses.
type ParallelismConfig struct {
	MinWorkers int `yaml:"min"`
	MaxWorkers int `yaml:"max"`
}

// QueryConfig shapes the synthetic Get/Put traffic generated each wave.
type QueryConfig struct {
	Rate        float64               `yaml:"rate"` // waves per second
	Timeout     configloader.Duration `yaml:"timeout"`
	PutFraction float64               `yaml:"putFraction"` // fraction of ops that are Put vs Get
	Replication int32                 `yaml:"replication"`
	Parallelism ParallelismConfig     `yaml:"parallelism"`
}

// Config is the root configuration for the load test harness.
type Config struct {
	Logger     configloader.LoggerConfig `yaml:"logger"`
	Simulation SimulationConfig          `yaml:"simulation"`
	Ring       RingConfig                `yaml:"ring"`
	Bootstrap  BootstrapConfig           `yaml:"bootstrap"`
	CSV        CSVConfig                 `yaml:"csv"`
	Query      QueryConfig               `yaml:"query"`
}

// Load reads the YAML config at path and applies CHORD_TESTER_* environment
// overrides, mirroring internal/config's override mechanism.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	configloader.OverrideBool(&cfg.Logger.Active, "CHORD_TESTER_LOGGER_ACTIVE")
	configloader.OverrideString(&cfg.Logger.Level, "CHORD_TESTER_LOGGER_LEVEL")
	configloader.OverrideString(&cfg.Logger.Encoding, "CHORD_TESTER_LOGGER_ENCODING")

	configloader.OverrideYAMLDuration(&cfg.Simulation.Duration, "CHORD_TESTER_DURATION")
	configloader.OverrideInt(&cfg.Ring.IDBits, "CHORD_TESTER_ID_BITS")

	configloader.OverrideString(&cfg.Bootstrap.Mode, "CHORD_TESTER_BOOTSTRAP_MODE")
	configloader.OverrideStringSlice(&cfg.Bootstrap.Peers, "CHORD_TESTER_BOOTSTRAP_PEERS")
	configloader.OverrideString(&cfg.Bootstrap.Docker.ContainerSuffix, "CHORD_TESTER_DOCKER_SUFFIX")
	configloader.OverrideString(&cfg.Bootstrap.Docker.Network, "CHORD_TESTER_DOCKER_NETWORK")
	configloader.OverrideInt(&cfg.Bootstrap.Docker.Port, "CHORD_TESTER_DOCKER_PORT")

	configloader.OverrideBool(&cfg.CSV.Enabled, "CHORD_TESTER_CSV_ENABLED")
	configloader.OverrideString(&cfg.CSV.Path, "CHORD_TESTER_CSV_PATH")

	configloader.OverrideFloat(&cfg.Query.Rate, "CHORD_TESTER_QUERY_RATE")
	configloader.OverrideYAMLDuration(&cfg.Query.Timeout, "CHORD_TESTER_QUERY_TIMEOUT")
	configloader.OverrideFloat(&cfg.Query.PutFraction, "CHORD_TESTER_PUT_FRACTION")
	configloader.OverrideInt(&cfg.Query.Parallelism.MinWorkers, "CHORD_TESTER_PARALLELISM_MIN")
	configloader.OverrideInt(&cfg.Query.Parallelism.MaxWorkers, "CHORD_TESTER_PARALLELISM_MAX")

	return cfg, nil
}

// Validate structurally checks cfg before the harness starts.
func (c *Config) Validate() error {
	var errs []string

	if c.Simulation.Duration <= 0 {
		errs = append(errs, fmt.Sprintf("simulation.duration must be > 0 (got %v)", c.Simulation.Duration.Std()))
	}
	if c.Ring.IDBits <= 0 {
		errs = append(errs, fmt.Sprintf("ring.idBits must be > 0 (got %d)", c.Ring.IDBits))
	}

	switch c.Bootstrap.Mode {
	case "docker":
		if c.Bootstrap.Docker.ContainerSuffix == "" {
			errs = append(errs, "bootstrap.docker.containerSuffix must not be empty when mode = docker")
		}
		if c.Bootstrap.Docker.Port <= 0 {
			errs = append(errs, fmt.Sprintf("bootstrap.docker.port must be > 0 (got %d)", c.Bootstrap.Docker.Port))
		}
	case "route53":
		if c.Bootstrap.Route53.HostedZoneID == "" {
			errs = append(errs, "bootstrap.route53.hostedZoneId must not be empty when mode = route53")
		}
	case "static":
		if len(c.Bootstrap.Peers) == 0 {
			errs = append(errs, "bootstrap.peers must not be empty when mode = static")
		}
	default:
		errs = append(errs, fmt.Sprintf("bootstrap.mode must be one of [docker, route53, static], got %q", c.Bootstrap.Mode))
	}

	if c.CSV.Enabled && c.CSV.Path == "" {
		errs = append(errs, "csv.path must be set when csv.enabled = true")
	}
	if c.Query.Rate <= 0 {
		errs = append(errs, fmt.Sprintf("query.rate must be > 0 (got %f)", c.Query.Rate))
	}
	if c.Query.Parallelism.MinWorkers <= 0 {
		errs = append(errs, "query.parallelism.min must be > 0")
	}
	if c.Query.Parallelism.MaxWorkers < c.Query.Parallelism.MinWorkers {
		errs = append(errs, "query.parallelism.max must be >= query.parallelism.min")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
