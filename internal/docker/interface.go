// internal/docker/interface.go
package docker

import (
	"context"

	"github.com/rusenback/perfverse/internal/model"
)

// StatsStreamer opens a live stats stream for one container. Each value on
// the returned channel is one raw JSON stats document. Both channels are
// closed when the stream ends.
type StatsStreamer interface {
	StreamStats(ctx context.Context, id string) (<-chan []byte, <-chan error)
}

// ContainerResolver looks up the containers to monitor and the details
// recorded in the run metadata.
type ContainerResolver interface {
	RunningContainers(ctx context.Context) ([]model.Container, error)
	InspectContainer(ctx context.Context, id string) (model.Container, error)
}

// Make sure Client satisfies both interfaces.
var (
	_ StatsStreamer     = (*Client)(nil)
	_ ContainerResolver = (*Client)(nil)
)
