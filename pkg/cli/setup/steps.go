package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/devantler-tech/standalone/pkg/k8s"
	"github.com/devantler-tech/standalone/pkg/k8s/readiness"
	"github.com/devantler-tech/standalone/pkg/pipeline"
	"github.com/devantler-tech/standalone/pkg/svc/acquirer"
	"github.com/devantler-tech/standalone/pkg/svc/certs"
	argocdinstaller "github.com/devantler-tech/standalone/pkg/svc/installer/argocd"
	certmanagerinstaller "github.com/devantler-tech/standalone/pkg/svc/installer/certmanager"
	k3dprovisioner "github.com/devantler-tech/standalone/pkg/svc/provisioner/cluster/k3d"
	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	"github.com/devantler-tech/standalone/pkg/svc/workload"
	"github.com/devantler-tech/standalone/pkg/utils/notify"
)

// Step names.
const (
	StepFixHostLimits         = "fix-host-limits"
	StepAcquireBinaries       = "acquire-binaries"
	StepProvisionCertificates = "provision-certificates"
	StepLifecycleCreate       = "lifecycle-create"
	StepDeployInfrastructure  = "deploy-infrastructure"
	StepDeployGitOps          = "deploy-gitops"
	StepDeployWorkload        = "deploy-workload"
	StepSummarize             = "summarize"
)

const dataDirMode = 0o750

var errClusterGone = errors.New("cluster disappeared while being adopted")

// builder holds the dependencies and the per-run cluster connection.
type builder struct {
	deps     Dependencies
	services *ClusterServices
	context  string
}

// Pipeline returns the setup pipeline.
func Pipeline(deps Dependencies) *pipeline.Pipeline {
	b := &builder{deps: deps}

	return pipeline.New("setup",
		b.fixHostLimits(),
		b.acquireBinaries(),
		b.provisionCertificates(),
		b.lifecycleCreate(),
		b.deployInfrastructure(),
		b.deployGitOps(),
		b.deployWorkload(),
		b.summarize(),
	)
}

// ToolsPipeline returns a pipeline that only acquires the tool binaries.
func ToolsPipeline(deps Dependencies) *pipeline.Pipeline {
	b := &builder{deps: deps}

	return pipeline.New("tools", b.acquireBinaries())
}

// connect returns the cluster services for the current kube context, reusing them
// while the context is unchanged.
func (b *builder) connect(rc *pipeline.RunContext) (*ClusterServices, error) {
	if b.services != nil && b.context == rc.KubeContext {
		return b.services, nil
	}

	services, err := b.deps.Connect(rc)
	if err != nil {
		return nil, fmt.Errorf("connect to cluster %s: %w", rc.ClusterName, err)
	}

	b.services, b.context = services, rc.KubeContext

	return services, nil
}

func (b *builder) fixHostLimits() pipeline.Step {
	return pipeline.Step{
		Name:   StepFixHostLimits,
		Title:  "Tune host limits",
		Emoji:  "🔧",
		Policy: pipeline.PolicyWarn,
		Check: func(ctx context.Context, _ *pipeline.RunContext) (bool, error) {
			return b.deps.HostTuner.Satisfied(ctx)
		},
		Action: func(ctx context.Context, _ *pipeline.RunContext) error {
			return b.deps.HostTuner.Apply(ctx)
		},
	}
}

func (b *builder) acquireBinaries() pipeline.Step {
	return pipeline.Step{
		Name:     StepAcquireBinaries,
		Title:    "Acquire tools",
		Emoji:    "📦",
		Produces: []pipeline.Field{pipeline.FieldBinaries},
		Check: func(_ context.Context, rc *pipeline.RunContext) (bool, error) {
			for _, bin := range b.deps.Binaries(rc.ToolsDir) {
				if !acquirer.Present(bin) {
					return false, nil
				}
			}

			return true, nil
		},
		Adopt: func(_ context.Context, rc *pipeline.RunContext) error {
			recordBinaries(rc, b.deps.Binaries(rc.ToolsDir))

			return nil
		},
		Action: func(ctx context.Context, rc *pipeline.RunContext) error {
			binaries := b.deps.Binaries(rc.ToolsDir)

			outcomes, err := b.deps.Acquirer.EnsureAll(ctx, binaries)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(outcomes))
			for name := range outcomes {
				names = append(names, name)
			}

			slices.Sort(names)

			for _, name := range names {
				notify.Activityf(b.deps.Out, "%s %s", name, outcomes[name])
			}

			recordBinaries(rc, binaries)

			return nil
		},
	}
}

func recordBinaries(rc *pipeline.RunContext, binaries []acquirer.Binary) {
	if rc.Binaries == nil {
		rc.Binaries = make(map[string]string, len(binaries))
	}

	for _, bin := range binaries {
		rc.Binaries[bin.Name] = bin.Path
	}
}

func (b *builder) provisionCertificates() pipeline.Step {
	authority := func(rc *pipeline.RunContext) CertificateAuthority {
		return b.deps.CertificateAuthority(rc.Binary("mkcert"))
	}

	return pipeline.Step{
		Name:     StepProvisionCertificates,
		Title:    "Provision certificates",
		Emoji:    "🔏",
		Requires: []pipeline.Field{pipeline.FieldBinaries},
		Produces: []pipeline.Field{pipeline.FieldCertificates},
		Check: func(ctx context.Context, rc *pipeline.RunContext) (bool, error) {
			certPath, keyPath := certs.LeafPaths(rc.CertsDir, rc.Domain)
			_, issued := authority(rc).Issued(ctx, certPath, keyPath)

			return issued, nil
		},
		Adopt: func(ctx context.Context, rc *pipeline.RunContext) error {
			certPath, keyPath := certs.LeafPaths(rc.CertsDir, rc.Domain)

			material, issued := authority(rc).Issued(ctx, certPath, keyPath)
			if !issued {
				return fmt.Errorf("certificate material for %s vanished", rc.Domain)
			}

			recordCertificates(rc, material)

			return nil
		},
		Action: func(ctx context.Context, rc *pipeline.RunContext) error {
			ca := authority(rc)

			err := ca.InstallRoot(ctx)
			if err != nil {
				return err
			}

			certPath, keyPath := certs.LeafPaths(rc.CertsDir, rc.Domain)

			material, err := ca.IssueLeaf(ctx, certs.DomainPatterns(rc.Domain), certPath, keyPath)
			if err != nil {
				return err
			}

			recordCertificates(rc, material)

			return nil
		},
	}
}

func recordCertificates(rc *pipeline.RunContext, material certs.Material) {
	rc.Certificates = pipeline.CertificatePaths{
		CACert: material.CACert,
		CAKey:  material.CAKey,
		Cert:   material.Cert,
		Key:    material.Key,
	}
}

func (b *builder) lifecycleCreate() pipeline.Step {
	return pipeline.Step{
		Name:     StepLifecycleCreate,
		Title:    "Create cluster",
		Emoji:    "🚢",
		Produces: []pipeline.Field{pipeline.FieldPorts, pipeline.FieldCluster},
		Check: func(ctx context.Context, rc *pipeline.RunContext) (bool, error) {
			_, exists, err := b.deps.Cluster.Get(ctx, rc.ClusterName)

			return exists, err
		},
		Adopt:  b.adoptCluster,
		Action: b.createCluster,
		Gate: &pipeline.Gate{
			Condition: "node Ready",
			Timeout:   b.deps.Timeout,
			Ready: func(ctx context.Context, rc *pipeline.RunContext) (bool, error) {
				services, err := b.connect(rc)
				if err != nil {
					return false, err
				}

				reachable, err := readiness.APIServerReachable(services.Clientset)(ctx)
				if err != nil || !reachable {
					return false, err
				}

				return readiness.NodeReady(services.Clientset)(ctx)
			},
			Wrap: func(rc *pipeline.RunContext, err error) error {
				if rc.ClusterReused {
					return err
				}

				return &provisionerr.ClusterCreateError{Name: rc.ClusterName, Err: err}
			},
		},
	}
}

func (b *builder) createCluster(ctx context.Context, rc *pipeline.RunContext) error {
	httpPort, httpsPort, err := b.deps.Ports.Allocate(ctx, rc.BaseHTTPPort, rc.BaseHTTPSPort)
	if err != nil {
		return err
	}

	rc.HTTPPort, rc.HTTPSPort = httpPort, httpsPort
	notify.Activityf(b.deps.Out, "using ports %d (http) and %d (https)", httpPort, httpsPort)

	dataDir, err := filepath.Abs(rc.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}

	err = os.MkdirAll(dataDir, dataDirMode)
	if err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	err = b.deps.Cluster.Create(ctx, k3dprovisioner.CreateOptions{
		Name:           rc.ClusterName,
		HTTPPort:       httpPort,
		HTTPSPort:      httpsPort,
		RegistryName:   rc.RegistryName,
		VolumeHostPath: dataDir,
		Timeout:        b.deps.Timeout,
	})
	if err != nil {
		return err
	}

	rc.KubeContext = KubeContext(rc.ClusterName)

	return nil
}

// adoptCluster starts a stopped cluster and reads its ports back. Ports and
// volumes of an existing cluster are not reconciled against the configuration.
func (b *builder) adoptCluster(ctx context.Context, rc *pipeline.RunContext) error {
	cluster, exists, err := b.deps.Cluster.Get(ctx, rc.ClusterName)
	if err != nil {
		return err
	}

	if !exists {
		return errClusterGone
	}

	if !cluster.Running() {
		notify.Activityf(b.deps.Out, "starting stopped cluster %s", rc.ClusterName)

		err = b.deps.Cluster.Start(ctx, rc.ClusterName)
		if err != nil {
			return err
		}

		cluster, _, err = b.deps.Cluster.Get(ctx, rc.ClusterName)
		if err != nil {
			return err
		}
	}

	httpPort, httpsPort, ok := cluster.IngressPorts()
	if !ok {
		notify.Warningf(b.deps.Out, "cluster %s publishes no ingress ports, assuming %d/%d",
			rc.ClusterName, rc.BaseHTTPPort, rc.BaseHTTPSPort)

		httpPort, httpsPort = rc.BaseHTTPPort, rc.BaseHTTPSPort
	}

	rc.HTTPPort, rc.HTTPSPort = httpPort, httpsPort
	rc.KubeContext = KubeContext(rc.ClusterName)
	rc.ClusterReused = true

	if httpPort != rc.BaseHTTPPort || httpsPort != rc.BaseHTTPSPort {
		notify.Infof(b.deps.Out, "reusing cluster %s on ports %d/%d", rc.ClusterName, httpPort, httpsPort)
	}

	hasContext, err := k8s.HasContext(rc.Kubeconfig, rc.KubeContext)
	if err != nil {
		return err
	}

	if hasContext {
		return nil
	}

	notify.Activityf(b.deps.Out, "merging context %s into %s", rc.KubeContext, rc.Kubeconfig)

	return b.deps.Cluster.MergeKubeconfig(ctx, rc.ClusterName)
}

func (b *builder) deployInfrastructure() pipeline.Step {
	return pipeline.Step{
		Name:     StepDeployInfrastructure,
		Title:    "Deploy cert-manager",
		Emoji:    "🔐",
		Requires: []pipeline.Field{pipeline.FieldCertificates, pipeline.FieldCluster},
		Produces: []pipeline.Field{pipeline.FieldIssuer},
		Action: func(ctx context.Context, rc *pipeline.RunContext) error {
			services, err := b.connect(rc)
			if err != nil {
				return err
			}

			err = services.Infrastructure.Install(ctx, rc.Certificates.CACert, rc.Certificates.CAKey)
			if err != nil {
				return err
			}

			rc.Issuer = certmanagerinstaller.IssuerName

			return nil
		},
	}
}

func (b *builder) deployGitOps() pipeline.Step {
	return pipeline.Step{
		Name:     StepDeployGitOps,
		Title:    "Deploy Argo CD",
		Emoji:    "🐙",
		Requires: []pipeline.Field{pipeline.FieldIssuer, pipeline.FieldPorts},
		Produces: []pipeline.Field{pipeline.FieldGitOps},
		Action: func(ctx context.Context, rc *pipeline.RunContext) error {
			services, err := b.connect(rc)
			if err != nil {
				return err
			}

			err = services.GitOps.Install(ctx, rc.Domain)
			if err != nil {
				return err
			}

			rc.ArgoCDURL = url(argocdinstaller.Host(rc.Domain), rc.HTTPSPort)

			return nil
		},
	}
}

func (b *builder) deployWorkload() pipeline.Step {
	return pipeline.Step{
		Name:     StepDeployWorkload,
		Title:    "Deploy test workload",
		Emoji:    "🚀",
		Requires: []pipeline.Field{pipeline.FieldIssuer, pipeline.FieldPorts},
		Produces: []pipeline.Field{pipeline.FieldWorkload},
		Action: func(ctx context.Context, rc *pipeline.RunContext) error {
			services, err := b.connect(rc)
			if err != nil {
				return err
			}

			err = services.Workload.Deploy(ctx, rc.Domain)
			if err != nil {
				return err
			}

			rc.WorkloadURL = url(workload.Host(rc.Domain), rc.HTTPSPort)

			return nil
		},
	}
}

func url(host string, httpsPort int) string {
	if httpsPort == 443 {
		return "https://" + host
	}

	return fmt.Sprintf("https://%s:%d", host, httpsPort)
}
