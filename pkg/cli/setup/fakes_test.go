package setup_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/devantler-tech/standalone/pkg/cli/setup"
	"github.com/devantler-tech/standalone/pkg/pipeline"
	"github.com/devantler-tech/standalone/pkg/svc/acquirer"
	"github.com/devantler-tech/standalone/pkg/svc/certs"
	k3dprovisioner "github.com/devantler-tech/standalone/pkg/svc/provisioner/cluster/k3d"
	"github.com/docker/go-connections/nat"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

// world is the fake external state shared by all collaborators of one test.
type world struct {
	events []string

	tunerSatisfied bool
	tunerErr       error

	caDir    string
	clusters map[string]k3dprovisioner.Cluster

	httpPort, httpsPort int
	portsErr            error
	createErr           error
	connects            int
	nodeNotReady        bool
}

func newWorld(caDir string) *world {
	return &world{
		caDir:     caDir,
		clusters:  map[string]k3dprovisioner.Cluster{},
		httpPort:  8080,
		httpsPort: 8443,
	}
}

func (w *world) record(event string) { w.events = append(w.events, event) }

func (w *world) Satisfied(context.Context) (bool, error) { return w.tunerSatisfied, nil }

func (w *world) Apply(context.Context) error {
	w.record("tune")

	return w.tunerErr
}

func (w *world) EnsureAll(_ context.Context, binaries []acquirer.Binary) (map[string]acquirer.Outcome, error) {
	w.record("acquire")

	outcomes := map[string]acquirer.Outcome{}

	for _, bin := range binaries {
		if acquirer.Present(bin) {
			outcomes[bin.Name] = acquirer.AlreadyPresent

			continue
		}

		err := touch(bin.Path)
		if err != nil {
			return nil, err
		}

		outcomes[bin.Name] = acquirer.Installed
	}

	return outcomes, nil
}

// authority is the fake mkcert; it remembers the binary it was built for.
type authority struct {
	w      *world
	mkcert string
}

func (a authority) InstallRoot(context.Context) error {
	a.w.record("install-root " + filepath.Base(a.mkcert))

	err := touch(filepath.Join(a.w.caDir, "rootCA.pem"))
	if err != nil {
		return err
	}

	return touch(filepath.Join(a.w.caDir, "rootCA-key.pem"))
}

func (a authority) IssueLeaf(_ context.Context, _ []string, certPath, keyPath string) (certs.Material, error) {
	a.w.record("issue-leaf")

	err := touch(certPath)
	if err != nil {
		return certs.Material{}, err
	}

	err = touch(keyPath)
	if err != nil {
		return certs.Material{}, err
	}

	return a.material(certPath, keyPath), nil
}

func (a authority) Issued(_ context.Context, certPath, keyPath string) (certs.Material, bool) {
	material := a.material(certPath, keyPath)
	for _, path := range []string{material.CACert, material.CAKey, certPath, keyPath} {
		_, err := os.Stat(path)
		if err != nil {
			return certs.Material{}, false
		}
	}

	return material, true
}

func (a authority) material(certPath, keyPath string) certs.Material {
	return certs.Material{
		CACert: filepath.Join(a.w.caDir, "rootCA.pem"),
		CAKey:  filepath.Join(a.w.caDir, "rootCA-key.pem"),
		Cert:   certPath,
		Key:    keyPath,
	}
}

func (w *world) Allocate(context.Context, int, int) (int, int, error) {
	w.record("allocate")

	return w.httpPort, w.httpsPort, w.portsErr
}

func (w *world) Create(_ context.Context, opts k3dprovisioner.CreateOptions) error {
	w.record("create " + opts.Name)

	if w.createErr != nil {
		return w.createErr
	}

	w.clusters[opts.Name] = clusterWithPorts(opts.Name, opts.HTTPPort, opts.HTTPSPort, true)

	return nil
}

func (w *world) Start(_ context.Context, name string) error {
	w.record("start " + name)

	cluster := w.clusters[name]
	for i := range cluster.Nodes {
		cluster.Nodes[i].State.Running = true
	}

	return nil
}

func (w *world) Get(_ context.Context, name string) (k3dprovisioner.Cluster, bool, error) {
	cluster, ok := w.clusters[name]

	return cluster, ok, nil
}

func (w *world) MergeKubeconfig(_ context.Context, name string) error {
	w.record("merge-kubeconfig " + name)

	return nil
}

type infrastructure struct{ w *world }

func (i infrastructure) Install(_ context.Context, caCertPath, _ string) error {
	i.w.record("install cert-manager with " + filepath.Base(caCertPath))

	return nil
}

type gitops struct{ w *world }

func (g gitops) Install(_ context.Context, domain string) error {
	g.w.record("install argocd for " + domain)

	return nil
}

func (gitops) AdminPassword(context.Context) (string, bool, error) {
	return "s3cret", true, nil
}

type deployer struct{ w *world }

func (d deployer) Deploy(_ context.Context, domain string) error {
	d.w.record("deploy workload for " + domain)

	return nil
}

func (w *world) connect(*pipeline.RunContext) (*setup.ClusterServices, error) {
	w.connects++

	ready := corev1.ConditionTrue
	if w.nodeNotReady {
		ready = corev1.ConditionFalse
	}

	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "k3d-standalone-cluster-server-0"},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: ready}},
		},
	}

	return &setup.ClusterServices{
		Clientset:      fake.NewClientset(node),
		Infrastructure: infrastructure{w},
		GitOps:         gitops{w},
		Workload:       deployer{w},
	}, nil
}

func clusterWithPorts(name string, httpPort, httpsPort int, running bool) k3dprovisioner.Cluster {
	return k3dprovisioner.Cluster{
		Name: name,
		Nodes: []k3dprovisioner.Node{
			{Name: "k3d-" + name + "-server-0", Role: "server", State: k3dprovisioner.NodeState{Running: running}},
			{
				Name: "k3d-" + name + "-serverlb",
				Role: "loadbalancer",
				Ports: nat.PortMap{
					"80/tcp":  {{HostIP: "0.0.0.0", HostPort: strconv.Itoa(httpPort)}},
					"443/tcp": {{HostIP: "0.0.0.0", HostPort: strconv.Itoa(httpsPort)}},
				},
				State: k3dprovisioner.NodeState{Running: running},
			},
		},
	}
}

func touch(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return err
	}

	return os.WriteFile(path, []byte("x"), 0o600)
}
