package docker

import (
	"context"
	"errors"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

// ErrPortNotPublished is returned when no candidate container publishes the private port.
var ErrPortNotPublished = errors.New("port not published")

// PublishedPort returns the host port that the first running container among names
// maps to privatePort. Names are matched exactly.
func PublishedPort(ctx context.Context, api ContainerAPI, privatePort uint16, names ...string) (int, error) {
	for _, name := range names {
		filterArgs := filters.NewArgs()
		filterArgs.Add("name", "^/"+name+"$")

		containers, err := api.ContainerList(ctx, container.ListOptions{Filters: filterArgs})
		if err != nil {
			return 0, fmt.Errorf("list containers named %s: %w", name, err)
		}

		for _, summary := range containers {
			for _, port := range summary.Ports {
				if port.PrivatePort == privatePort && port.PublicPort > 0 {
					return int(port.PublicPort), nil
				}
			}
		}
	}

	return 0, fmt.Errorf("%w: %d on %v", ErrPortNotPublished, privatePort, names)
}
