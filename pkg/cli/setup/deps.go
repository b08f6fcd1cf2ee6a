package setup

import (
	"context"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/devantler-tech/standalone/pkg/client/docker"
	"github.com/devantler-tech/standalone/pkg/client/helm"
	"github.com/devantler-tech/standalone/pkg/cmd/runner"
	"github.com/devantler-tech/standalone/pkg/config"
	"github.com/devantler-tech/standalone/pkg/k8s"
	"github.com/devantler-tech/standalone/pkg/pipeline"
	"github.com/devantler-tech/standalone/pkg/svc/acquirer"
	"github.com/devantler-tech/standalone/pkg/svc/certs"
	"github.com/devantler-tech/standalone/pkg/svc/hostlimits"
	argocdinstaller "github.com/devantler-tech/standalone/pkg/svc/installer/argocd"
	certmanagerinstaller "github.com/devantler-tech/standalone/pkg/svc/installer/certmanager"
	"github.com/devantler-tech/standalone/pkg/svc/portalloc"
	k3dprovisioner "github.com/devantler-tech/standalone/pkg/svc/provisioner/cluster/k3d"
	"github.com/devantler-tech/standalone/pkg/svc/workload"
	"k8s.io/client-go/kubernetes"
)

// FieldManager owns the fields this tool applies server-side.
const FieldManager = "standalone"

// registryContainerPort is the port the k3d registry listens on inside its container.
const registryContainerPort = 5000

// HostTuner raises kernel limits on the container runtime host.
type HostTuner interface {
	Satisfied(ctx context.Context) (bool, error)
	Apply(ctx context.Context) error
}

// BinaryAcquirer fetches missing tool binaries.
type BinaryAcquirer interface {
	EnsureAll(ctx context.Context, binaries []acquirer.Binary) (map[string]acquirer.Outcome, error)
}

// CertificateAuthority installs the local root and issues the wildcard leaf.
type CertificateAuthority interface {
	InstallRoot(ctx context.Context) error
	IssueLeaf(ctx context.Context, patterns []string, certPath, keyPath string) (certs.Material, error)
	Issued(ctx context.Context, certPath, keyPath string) (certs.Material, bool)
}

// PortAllocator picks free host ports for ingress.
type PortAllocator interface {
	Allocate(ctx context.Context, baseHTTP, baseHTTPS int) (int, int, error)
}

// ClusterManager creates and inspects k3d clusters.
type ClusterManager interface {
	Create(ctx context.Context, opts k3dprovisioner.CreateOptions) error
	Start(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (k3dprovisioner.Cluster, bool, error)
	MergeKubeconfig(ctx context.Context, name string) error
}

// InfrastructureInstaller deploys certificate automation trusting the local CA.
type InfrastructureInstaller interface {
	Install(ctx context.Context, caCertPath, caKeyPath string) error
}

// GitOpsInstaller deploys the GitOps controller behind a TLS ingress.
type GitOpsInstaller interface {
	Install(ctx context.Context, domain string) error
	AdminPassword(ctx context.Context) (string, bool, error)
}

// WorkloadDeployer deploys the test workload.
type WorkloadDeployer interface {
	Deploy(ctx context.Context, domain string) error
}

// ClusterServices are the in-cluster collaborators, available once the cluster exists.
type ClusterServices struct {
	Clientset      kubernetes.Interface
	Infrastructure InfrastructureInstaller
	GitOps         GitOpsInstaller
	Workload       WorkloadDeployer
}

// Connector builds ClusterServices for the cluster recorded in rc.
type Connector func(rc *pipeline.RunContext) (*ClusterServices, error)

// Dependencies are the collaborators of the setup steps.
type Dependencies struct {
	Out     io.Writer
	Timeout time.Duration

	HostTuner HostTuner
	Acquirer  BinaryAcquirer
	// Binaries lists the tools for a tools directory.
	Binaries func(toolsDir string) []acquirer.Binary
	// CertificateAuthority returns the CA driven by the mkcert binary at mkcertPath.
	CertificateAuthority func(mkcertPath string) CertificateAuthority
	Ports                PortAllocator
	Cluster              ClusterManager
	Connect              Connector
	// RegistryPort returns the host port of the named registry. Optional.
	RegistryPort func(ctx context.Context, registryName string) (int, error)
}

// NativeBinaries returns the default tool set for the running platform.
func NativeBinaries(toolsDir string) []acquirer.Binary {
	return acquirer.DefaultBinaries(toolsDir, runtime.GOOS, runtime.GOARCH)
}

// NewRunContext seeds a RunContext from cfg.
func NewRunContext(cfg *config.Config) *pipeline.RunContext {
	return &pipeline.RunContext{
		ClusterName:   cfg.ClusterName,
		Domain:        cfg.Domain,
		ToolsDir:      cfg.ToolsDir,
		CertsDir:      cfg.CertsDir,
		DataDir:       cfg.DataDir,
		RegistryName:  cfg.RegistryName,
		Kubeconfig:    cfg.Kubeconfig,
		BaseHTTPPort:  cfg.HTTPPort,
		BaseHTTPSPort: cfg.HTTPSPort,
		Binaries:      map[string]string{},
	}
}

// KubeContext is the kubeconfig context k3d writes for cluster name.
func KubeContext(clusterName string) string {
	return "k3d-" + clusterName
}

// DefaultConnector connects to the cluster with client-go and the Helm SDK.
func DefaultConnector(timeout time.Duration) Connector {
	return func(rc *pipeline.RunContext) (*ClusterServices, error) {
		clients, err := k8s.NewClients(rc.Kubeconfig, rc.KubeContext, FieldManager)
		if err != nil {
			return nil, err
		}

		helmClient, err := helm.NewClient(rc.Kubeconfig, rc.KubeContext)
		if err != nil {
			return nil, err
		}

		return &ClusterServices{
			Clientset: clients.Clientset,
			Infrastructure: certmanagerinstaller.NewInstaller(
				helmClient, clients.Clientset, clients.Dynamic, clients.Applier, timeout,
			),
			GitOps: argocdinstaller.NewInstaller(
				helmClient, clients.Clientset, clients.Applier, certmanagerinstaller.IssuerName, timeout,
			),
			Workload: workload.NewDeployer(
				clients.Clientset, clients.Dynamic, clients.Applier, certmanagerinstaller.IssuerName, timeout,
			),
		}, nil
	}
}

// DefaultDependencies wires the production collaborators.
func DefaultDependencies(
	cfg *config.Config,
	dockerAPI docker.ContainerAPI,
	processRunner runner.ProcessRunner,
	cluster ClusterManager,
	out io.Writer,
) Dependencies {
	if out == nil {
		out = os.Stdout
	}

	return Dependencies{
		Out:       out,
		Timeout:   cfg.Timeout,
		HostTuner: hostlimits.NewTuner(dockerAPI, hostlimits.DefaultLimits()),
		Acquirer:  acquirer.New(acquirer.WithOutput(out)),
		Binaries:  NativeBinaries,
		CertificateAuthority: func(mkcertPath string) CertificateAuthority {
			return certs.NewProvisioner(mkcertPath, processRunner, out)
		},
		Ports:   portalloc.New(),
		Cluster: cluster,
		Connect: DefaultConnector(cfg.Timeout),
		RegistryPort: func(ctx context.Context, registryName string) (int, error) {
			return docker.PublishedPort(ctx, dockerAPI, registryContainerPort, "k3d-"+registryName, registryName)
		},
	}
}
