package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/devantler-tech/standalone/pkg/pipeline"
	k3dprovisioner "github.com/devantler-tech/standalone/pkg/svc/provisioner/cluster/k3d"
)

// Step names.
const (
	StepDelete = "lifecycle-delete"
	StepStart  = "lifecycle-start"
	StepStop   = "lifecycle-stop"
)

// ErrClusterNotFound is returned when start or stop targets a cluster that does not exist.
var ErrClusterNotFound = errors.New("cluster not found")

// ClusterController is the subset of the cluster provisioner these pipelines use.
type ClusterController interface {
	Get(ctx context.Context, name string) (k3dprovisioner.Cluster, bool, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

// CleanupPipeline deletes the cluster. An absent cluster counts as already cleaned up.
func CleanupPipeline(controller ClusterController) *pipeline.Pipeline {
	return pipeline.New("cleanup", pipeline.Step{
		Name:  StepDelete,
		Title: "Delete cluster",
		Emoji: "🗑️",
		Check: func(ctx context.Context, rc *pipeline.RunContext) (bool, error) {
			_, exists, err := controller.Get(ctx, rc.ClusterName)

			return !exists, err
		},
		Action: func(ctx context.Context, rc *pipeline.RunContext) error {
			return controller.Delete(ctx, rc.ClusterName)
		},
	})
}

// StartPipeline starts a stopped cluster.
func StartPipeline(controller ClusterController) *pipeline.Pipeline {
	return pipeline.New("start", pipeline.Step{
		Name:  StepStart,
		Title: "Start cluster",
		Emoji: "▶️",
		Check: func(ctx context.Context, rc *pipeline.RunContext) (bool, error) {
			cluster, err := mustGet(ctx, controller, rc.ClusterName)
			if err != nil {
				return false, err
			}

			return cluster.Running(), nil
		},
		Action: func(ctx context.Context, rc *pipeline.RunContext) error {
			return controller.Start(ctx, rc.ClusterName)
		},
	})
}

// StopPipeline stops a running cluster.
func StopPipeline(controller ClusterController) *pipeline.Pipeline {
	return pipeline.New("stop", pipeline.Step{
		Name:  StepStop,
		Title: "Stop cluster",
		Emoji: "⏹️",
		Check: func(ctx context.Context, rc *pipeline.RunContext) (bool, error) {
			cluster, err := mustGet(ctx, controller, rc.ClusterName)
			if err != nil {
				return false, err
			}

			return !anyNodeRunning(cluster), nil
		},
		Action: func(ctx context.Context, rc *pipeline.RunContext) error {
			return controller.Stop(ctx, rc.ClusterName)
		},
	})
}

func mustGet(ctx context.Context, controller ClusterController, name string) (k3dprovisioner.Cluster, error) {
	cluster, exists, err := controller.Get(ctx, name)
	if err != nil {
		return k3dprovisioner.Cluster{}, err
	}

	if !exists {
		return k3dprovisioner.Cluster{}, fmt.Errorf("%w: %s", ErrClusterNotFound, name)
	}

	return cluster, nil
}

func anyNodeRunning(cluster k3dprovisioner.Cluster) bool {
	for _, node := range cluster.Nodes {
		if node.State.Running {
			return true
		}
	}

	return false
}
