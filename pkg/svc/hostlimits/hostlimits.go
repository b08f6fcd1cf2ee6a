// Package hostlimits raises the inotify limits of the container runtime's kernel,
// which a k3s node with many watchers exhausts quickly at the distribution defaults.
package hostlimits

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/devantler-tech/standalone/pkg/client/docker"
)

// HelperImage runs sysctl in a privileged container so no host privileges are needed.
const HelperImage = "busybox:1.36"

// Limit is a kernel parameter and the minimum value the cluster needs.
type Limit struct {
	Key     string
	Minimum int
}

// DefaultLimits are the inotify limits raised by Tuner.
func DefaultLimits() []Limit {
	return []Limit{
		{Key: "fs.inotify.max_user_watches", Minimum: 524288},
		{Key: "fs.inotify.max_user_instances", Minimum: 512},
	}
}

// Tuner reads and raises kernel parameters through the container runtime.
type Tuner struct {
	api    docker.ContainerAPI
	limits []Limit
}

// NewTuner returns a Tuner for limits.
func NewTuner(api docker.ContainerAPI, limits []Limit) *Tuner {
	return &Tuner{api: api, limits: limits}
}

// Current returns the current value of every limit.
func (t *Tuner) Current(ctx context.Context) (map[string]int, error) {
	keys := make([]string, 0, len(t.limits))
	for _, limit := range t.limits {
		keys = append(keys, limit.Key)
	}

	out, err := docker.RunOnce(ctx, t.api, docker.RunSpec{
		Image:      HelperImage,
		Cmd:        append([]string{"sysctl"}, keys...),
		Privileged: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query kernel limits: %w", err)
	}

	return parseSysctl(out)
}

// Satisfied reports whether every limit is already at or above its minimum.
func (t *Tuner) Satisfied(ctx context.Context) (bool, error) {
	current, err := t.Current(ctx)
	if err != nil {
		return false, err
	}

	return len(t.below(current)) == 0, nil
}

// Apply raises every limit that is below its minimum.
func (t *Tuner) Apply(ctx context.Context) error {
	current, err := t.Current(ctx)
	if err != nil {
		return err
	}

	pending := t.below(current)
	if len(pending) == 0 {
		return nil
	}

	args := []string{"sysctl", "-w"}
	for _, limit := range pending {
		args = append(args, fmt.Sprintf("%s=%d", limit.Key, limit.Minimum))
	}

	_, err = docker.RunOnce(ctx, t.api, docker.RunSpec{Image: HelperImage, Cmd: args, Privileged: true})
	if err != nil {
		return fmt.Errorf("raise kernel limits: %w", err)
	}

	return nil
}

func (t *Tuner) below(current map[string]int) []Limit {
	var pending []Limit

	for _, limit := range t.limits {
		if value, ok := current[limit.Key]; !ok || value < limit.Minimum {
			pending = append(pending, limit)
		}
	}

	return pending
}

// parseSysctl parses "key = value" lines as printed by sysctl.
func parseSysctl(out string) (map[string]int, error) {
	values := make(map[string]int)

	for line := range strings.SplitSeq(out, "\n") {
		key, raw, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		value, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", strings.TrimSpace(line), err)
		}

		values[strings.TrimSpace(key)] = value
	}

	return values, nil
}
