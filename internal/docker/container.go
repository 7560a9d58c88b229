// internal/docker/container.go
package docker

import (
	"context"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/docker/docker/api/types/container"
	"github.com/rusenback/perfverse/internal/model"
)

// RunningContainers returns every running container.
func (c *Client) RunningContainers(ctx context.Context) ([]model.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	containers, err := c.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "docker: failed to list containers")
	}

	result := make([]model.Container, 0, len(containers))
	for _, cont := range containers {
		var name string
		if len(cont.Names) > 0 {
			name = trimName(cont.Names[0])
		}

		result = append(result, model.Container{
			ID:      cont.ID,
			Name:    name,
			Image:   cont.Image,
			State:   cont.State,
			Created: time.Unix(cont.Created, 0),
		})
	}

	return result, nil
}

// InspectContainer returns the details of a single container.
func (c *Client) InspectContainer(ctx context.Context, id string) (model.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ins, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return model.Container{}, errors.WrapWithDetails(err, "docker: failed to inspect container", "container", id)
	}

	out := model.Container{ID: id}
	if ins.ContainerJSONBase != nil {
		out.ID = ins.ID
		out.Name = trimName(ins.Name)
		if ins.State != nil {
			out.State = ins.State.Status
		}
		if created, err := time.Parse(time.RFC3339Nano, ins.Created); err == nil {
			out.Created = created
		}
	}
	if ins.Config != nil {
		out.Image = ins.Config.Image
	}

	return out, nil
}

// trimName removes the leading "/" Docker puts in front of container names.
func trimName(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, "/"))
}
