package setup_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/devantler-tech/standalone/pkg/cli/setup"
	"github.com/devantler-tech/standalone/pkg/config"
	"github.com/devantler-tech/standalone/pkg/pipeline"
	"github.com/devantler-tech/standalone/pkg/svc/acquirer"
	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSysctlDenied = errors.New("sysctl: permission denied")

type fixture struct {
	world *world
	deps  setup.Dependencies
	rc    *pipeline.RunContext
	out   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	w := newWorld(filepath.Join(root, "caroot"))
	out := &bytes.Buffer{}

	deps := setup.Dependencies{
		Out:       out,
		Timeout:   time.Second,
		HostTuner: w,
		Acquirer:  w,
		Binaries: func(toolsDir string) []acquirer.Binary {
			return acquirer.DefaultBinaries(toolsDir, "linux", "amd64")
		},
		CertificateAuthority: func(mkcertPath string) setup.CertificateAuthority {
			return authority{w: w, mkcert: mkcertPath}
		},
		Ports:   w,
		Cluster: w,
		Connect: w.connect,
		RegistryPort: func(context.Context, string) (int, error) {
			return 5111, nil
		},
	}

	rc := setup.NewRunContext(&config.Config{
		ClusterName:  "standalone-cluster",
		Domain:       "127-0-0-1.sslip.io",
		ToolsDir:     filepath.Join(root, "tools"),
		CertsDir:     filepath.Join(root, "certs"),
		DataDir:      filepath.Join(root, "data"),
		HTTPPort:     8080,
		HTTPSPort:    8443,
		RegistryName: "standalone-registry",
		Timeout:      time.Second,
		Kubeconfig:   filepath.Join(root, "kubeconfig"),
	})

	return &fixture{world: w, deps: deps, rc: rc, out: out}
}

func (f *fixture) run(t *testing.T) (pipeline.Report, error) {
	t.Helper()

	return pipeline.NewRunner(pipeline.WithOutput(f.out)).Run(context.Background(), setup.Pipeline(f.deps), f.rc)
}

func TestPipeline_PlanOrder(t *testing.T) {
	t.Parallel()

	plan, err := setup.Pipeline(newFixture(t).deps).Plan()
	require.NoError(t, err)

	names := make([]string, 0, len(plan))
	for _, entry := range plan {
		names = append(names, entry.Name)
	}

	assert.Equal(t, []string{
		setup.StepFixHostLimits,
		setup.StepAcquireBinaries,
		setup.StepProvisionCertificates,
		setup.StepLifecycleCreate,
		setup.StepDeployInfrastructure,
		setup.StepDeployGitOps,
		setup.StepDeployWorkload,
		setup.StepSummarize,
	}, names)
	assert.Equal(t, pipeline.PolicyWarn, plan[0].Policy)
	assert.Equal(t, "node Ready", plan[3].Gate)
	assert.Contains(t, plan[5].DependsOn, setup.StepDeployInfrastructure)
}

func TestPipeline_FullRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.run(t)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"tune",
		"acquire",
		"install-root mkcert",
		"issue-leaf",
		"allocate",
		"create standalone-cluster",
		"install cert-manager with rootCA.pem",
		"install argocd for 127-0-0-1.sslip.io",
		"deploy workload for 127-0-0-1.sslip.io",
	}, f.world.events)

	assert.Equal(t, 8080, f.rc.HTTPPort)
	assert.Equal(t, 8443, f.rc.HTTPSPort)
	assert.Equal(t, "k3d-standalone-cluster", f.rc.KubeContext)
	assert.Equal(t, "mkcert-ca-issuer", f.rc.Issuer)
	assert.Equal(t, "https://argocd.127-0-0-1.sslip.io:8443", f.rc.ArgoCDURL)
	assert.Equal(t, "https://standalone.127-0-0-1.sslip.io:8443", f.rc.WorkloadURL)
	assert.Equal(t, filepath.Join(f.rc.CertsDir, "_wildcard.127-0-0-1.sslip.io.pem"), f.rc.Certificates.Cert)
	assert.False(t, f.rc.ClusterReused)
	assert.Equal(t, 1, f.world.connects, "cluster services are built once per context")

	summary := f.out.String()
	assert.Contains(t, summary, "https://standalone.127-0-0-1.sslip.io:8443")
	assert.Contains(t, summary, "s3cret")
	assert.Contains(t, summary, "localhost:5111")
}

func TestPipeline_RerunAdoptsExistingState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.run(t)
	require.NoError(t, err)

	f.world.events = nil
	f.world.tunerSatisfied = true
	f.rc = setup.NewRunContext(&config.Config{
		ClusterName: f.rc.ClusterName, Domain: f.rc.Domain, ToolsDir: f.rc.ToolsDir,
		CertsDir: f.rc.CertsDir, DataDir: f.rc.DataDir, HTTPPort: 8080, HTTPSPort: 8443,
		RegistryName: f.rc.RegistryName, Kubeconfig: f.rc.Kubeconfig,
	})

	report, err := f.run(t)
	require.NoError(t, err)

	for _, name := range []string{
		setup.StepFixHostLimits, setup.StepAcquireBinaries,
		setup.StepProvisionCertificates, setup.StepLifecycleCreate,
	} {
		assert.Equal(t, pipeline.OutcomeAdopted, report.Outcome(name), name)
	}

	assert.Equal(t, []string{
		"merge-kubeconfig standalone-cluster",
		"install cert-manager with rootCA.pem",
		"install argocd for 127-0-0-1.sslip.io",
		"deploy workload for 127-0-0-1.sslip.io",
	}, f.world.events)
	assert.True(t, f.rc.ClusterReused)
	assert.Equal(t, "mkcert", filepath.Base(f.rc.Binary("mkcert")))
	assert.NotEmpty(t, f.rc.Certificates.CACert)
}

func TestPipeline_HostTuningFailureOnlyWarns(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.world.tunerErr = errSysctlDenied

	report, err := f.run(t)
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeWarned, report.Outcome(setup.StepFixHostLimits))
	assert.Equal(t, pipeline.OutcomeApplied, report.Outcome(setup.StepSummarize))
	assert.Contains(t, f.out.String(), "permission denied")
}

func TestPipeline_PortExhaustionStopsBeforeCreate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.world.portsErr = &provisionerr.PortExhaustedError{Base: 8080, Attempts: 100}

	report, err := f.run(t)

	var stepErr *pipeline.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, setup.StepLifecycleCreate, stepErr.Step)
	require.ErrorIs(t, err, provisionerr.ErrPortExhausted)

	assert.NotContains(t, f.world.events, "create standalone-cluster")
	assert.Equal(t, pipeline.OutcomeNotRun, report.Outcome(setup.StepDeployInfrastructure))
}

func TestPipeline_AdoptStartsStoppedCluster(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.world.clusters["standalone-cluster"] = clusterWithPorts("standalone-cluster", 8081, 8444, false)

	_, err := f.run(t)
	require.NoError(t, err)

	assert.Contains(t, f.world.events, "start standalone-cluster")
	assert.NotContains(t, f.world.events, "allocate")
	assert.Equal(t, 8081, f.rc.HTTPPort)
	assert.Equal(t, 8444, f.rc.HTTPSPort)
	assert.Equal(t, "https://argocd.127-0-0-1.sslip.io:8444", f.rc.ArgoCDURL)
}

func TestPipeline_ClusterWithoutIngressPortsIsReused(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cluster := clusterWithPorts("standalone-cluster", 0, 0, true)
	cluster.Nodes = cluster.Nodes[:1]
	f.world.clusters["standalone-cluster"] = cluster

	report, err := f.run(t)
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeAdopted, report.Outcome(setup.StepLifecycleCreate))
	assert.Equal(t, pipeline.OutcomeApplied, report.Outcome(setup.StepSummarize))
	assert.NotContains(t, f.world.events, "create standalone-cluster")
	assert.Equal(t, 8080, f.rc.HTTPPort)
	assert.Equal(t, 8443, f.rc.HTTPSPort)
	assert.Contains(t, f.out.String(), "publishes no ingress ports")
}

func TestPipeline_NodeNeverReadyIsACreateFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.world.nodeNotReady = true
	f.deps.Timeout = 50 * time.Millisecond

	report, err := f.run(t)

	require.ErrorIs(t, err, provisionerr.ErrClusterCreate)

	var timeoutErr *provisionerr.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "node Ready", timeoutErr.Condition)
	assert.Equal(t, pipeline.OutcomeFailed, report.Outcome(setup.StepLifecycleCreate))
}

func TestPipeline_ReusedClusterNodeTimeoutStaysATimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.world.clusters["standalone-cluster"] = clusterWithPorts("standalone-cluster", 8080, 8443, true)
	f.world.nodeNotReady = true
	f.deps.Timeout = 50 * time.Millisecond

	_, err := f.run(t)

	require.ErrorIs(t, err, provisionerr.ErrTimeout)
	require.NotErrorIs(t, err, provisionerr.ErrClusterCreate)
}

func TestToolsPipeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	report, err := pipeline.NewRunner(pipeline.WithOutput(f.out)).
		Run(context.Background(), setup.ToolsPipeline(f.deps), f.rc)
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeApplied, report.Outcome(setup.StepAcquireBinaries))
	assert.Len(t, f.rc.Binaries, 4)
	assert.Contains(t, f.out.String(), "kubectl installed")
}
