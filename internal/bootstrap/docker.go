package bootstrap

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"chorddht/internal/ring"
)

// DockerBootstrap discovers peers through the Docker Engine API, matching
// container names against a suffix within a given network. It is used by
// the load test harness (internal/loadtest) to address a docker-compose
// ring without a fixed bootstrap address per container. Register and
// Deregister are no-ops: container membership is already self-describing,
// there is nothing to publish.
type DockerBootstrap struct {
	cli     *client.Client
	suffix  string
	port    int
	network string
}

// NewDockerBootstrap builds a client from the ambient DOCKER_HOST/TLS
// environment, negotiating the API version against the daemon.
func NewDockerBootstrap(suffix, network string, port int) (*DockerBootstrap, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &DockerBootstrap{
		cli:     cli,
		suffix:  strings.TrimSpace(suffix),
		port:    port,
		network: strings.TrimSpace(network),
	}, nil
}

// Discover lists running containers, filters to names containing the
// configured suffix, and keeps those attached to the configured network.
// The returned addresses use the container name as host, relying on
// docker's embedded DNS rather than the inspected IP directly.
func (d *DockerBootstrap) Discover(ctx context.Context) ([]string, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	var addrs []string
	for _, c := range containers {
		name := containerName(c.Names)
		if name == "" || !strings.Contains(name, d.suffix) {
			continue
		}
		net, ok := c.NetworkSettings.Networks[d.network]
		if !ok || net == nil || net.IPAddress == "" {
			continue
		}
		addrs = append(addrs, name+":"+strconv.Itoa(d.port))
	}
	return addrs, nil
}

// containerName strips the leading slash Docker's API puts on container
// names and returns the first one, or "" if names is empty.
func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

func (d *DockerBootstrap) Register(ctx context.Context, self ring.Peer) error { return nil }

func (d *DockerBootstrap) Deregister(ctx context.Context, self ring.Peer) error { return nil }
