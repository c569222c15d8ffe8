package bootstrap

import "chorddht/internal/config"

// New builds the Bootstrap backend selected by cfg.Mode. mode=init is the
// first-node case: an empty static list, Discover returns nothing, and the
// caller is expected to treat that as "found no ring, start one".
func New(cfg config.BootstrapConfig) (Bootstrap, error) {
	switch cfg.Mode {
	case "static":
		return NewStaticBootstrap(cfg.Peers), nil
	case "init":
		return NewStaticBootstrap(nil), nil
	case "route53":
		return NewRoute53Bootstrap(cfg.Route53)
	default:
		return NewStaticBootstrap(nil), nil
	}
}
