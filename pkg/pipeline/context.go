package pipeline

// Field names a piece of RunContext written by a step.
type Field string

// Fields produced during a run.
const (
	FieldBinaries     Field = "binaries"
	FieldCertificates Field = "certificates"
	FieldPorts        Field = "ports"
	FieldCluster      Field = "cluster"
	FieldIssuer       Field = "issuer"
	FieldGitOps       Field = "gitops"
	FieldWorkload     Field = "workload"
)

// CertificatePaths locates the CA and leaf material on disk.
type CertificatePaths struct {
	CACert string
	CAKey  string
	Cert   string
	Key    string
}

// RunContext is the state shared by the steps of one run. The configuration
// fields are set before the run starts; the others are written only by the step
// that declares the matching Field in Produces.
type RunContext struct {
	ClusterName  string
	Domain       string
	ToolsDir     string
	CertsDir     string
	DataDir      string
	RegistryName string
	Kubeconfig   string

	// BaseHTTPPort and BaseHTTPSPort are where port probing starts.
	BaseHTTPPort  int
	BaseHTTPSPort int

	// Binaries maps tool names to their local paths. FieldBinaries.
	Binaries map[string]string
	// Certificates is FieldCertificates.
	Certificates CertificatePaths
	// HTTPPort and HTTPSPort are FieldPorts.
	HTTPPort  int
	HTTPSPort int
	// KubeContext is FieldCluster.
	KubeContext string
	// Issuer is the ClusterIssuer name. FieldIssuer.
	Issuer string
	// ArgoCDURL is FieldGitOps.
	ArgoCDURL string
	// WorkloadURL is FieldWorkload.
	WorkloadURL string
	// ClusterReused is true when an existing cluster was adopted.
	ClusterReused bool
}

// Binary returns the local path recorded for the named tool.
func (rc *RunContext) Binary(name string) string {
	return rc.Binaries[name]
}
