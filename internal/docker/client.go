package docker

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/docker/docker/client"
)

// Config holds the Docker client settings. TLS is configured through
// DOCKER_TLS_VERIFY and DOCKER_CERT_PATH.
type Config struct {
	// Host overrides DOCKER_HOST when set, e.g. unix:///var/run/docker.sock.
	Host    string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

// Client wraps the Docker API client. A single Client is shared by every
// stats worker.
type Client struct {
	cli *client.Client
}

// NewClient connects to the daemon and pings it once so a missing daemon
// fails at startup instead of inside the workers.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "docker: failed to create client")
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if _, err := cli.Ping(pctx); err != nil {
		_ = cli.Close()
		return nil, errors.Wrap(err, "docker: daemon did not answer ping")
	}

	return &Client{cli: cli}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.cli != nil {
		return c.cli.Close()
	}
	return nil
}
