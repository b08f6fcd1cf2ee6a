package lifecycle_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/devantler-tech/standalone/pkg/cli/lifecycle"
	"github.com/devantler-tech/standalone/pkg/pipeline"
	k3dprovisioner "github.com/devantler-tech/standalone/pkg/svc/provisioner/cluster/k3d"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	clusters map[string]bool // name -> running
	calls    []string
}

func newFakeController() *fakeController {
	return &fakeController{clusters: map[string]bool{}}
}

func (f *fakeController) Get(_ context.Context, name string) (k3dprovisioner.Cluster, bool, error) {
	running, ok := f.clusters[name]
	if !ok {
		return k3dprovisioner.Cluster{}, false, nil
	}

	return k3dprovisioner.Cluster{
		Name: name,
		Nodes: []k3dprovisioner.Node{
			{Name: "k3d-" + name + "-server-0", Role: "server", State: k3dprovisioner.NodeState{Running: running}},
		},
	}, true, nil
}

func (f *fakeController) Start(_ context.Context, name string) error {
	f.calls = append(f.calls, "start")
	f.clusters[name] = true

	return nil
}

func (f *fakeController) Stop(_ context.Context, name string) error {
	f.calls = append(f.calls, "stop")
	f.clusters[name] = false

	return nil
}

func (f *fakeController) Delete(_ context.Context, name string) error {
	f.calls = append(f.calls, "delete")
	delete(f.clusters, name)

	return nil
}

func run(t *testing.T, p *pipeline.Pipeline) (pipeline.Report, error) {
	t.Helper()

	return pipeline.NewRunner(pipeline.WithOutput(&bytes.Buffer{})).
		Run(context.Background(), p, &pipeline.RunContext{ClusterName: "standalone-cluster"})
}

func TestCleanupPipeline_DeletesThenTolerantOfAbsence(t *testing.T) {
	t.Parallel()

	controller := newFakeController()
	controller.clusters["standalone-cluster"] = true

	report, err := run(t, lifecycle.CleanupPipeline(controller))
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeApplied, report.Outcome(lifecycle.StepDelete))
	assert.Empty(t, controller.clusters)

	report, err = run(t, lifecycle.CleanupPipeline(controller))
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeAdopted, report.Outcome(lifecycle.StepDelete))
	assert.Equal(t, []string{"delete"}, controller.calls)
}

func TestStartAndStopPipelines(t *testing.T) {
	t.Parallel()

	controller := newFakeController()
	controller.clusters["standalone-cluster"] = false

	_, err := run(t, lifecycle.StopPipeline(controller))
	require.NoError(t, err)

	_, err = run(t, lifecycle.StartPipeline(controller))
	require.NoError(t, err)

	report, err := run(t, lifecycle.StartPipeline(controller))
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeAdopted, report.Outcome(lifecycle.StepStart))

	_, err = run(t, lifecycle.StopPipeline(controller))
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "stop"}, controller.calls)
}

func TestStartPipeline_MissingCluster(t *testing.T) {
	t.Parallel()

	_, err := run(t, lifecycle.StartPipeline(newFakeController()))
	require.ErrorIs(t, err, lifecycle.ErrClusterNotFound)
}
