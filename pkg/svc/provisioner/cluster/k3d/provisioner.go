package k3dprovisioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/devantler-tech/standalone/pkg/cmd/runner"
	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	clustercommand "github.com/k3d-io/k3d/v5/cmd/cluster"
	kubeconfigcommand "github.com/k3d-io/k3d/v5/cmd/kubeconfig"
	l "github.com/k3d-io/k3d/v5/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// DataMountPath is where the host data directory appears inside the server node.
const DataMountPath = "/data"

// ErrFatalExit is returned when a k3d command tried to terminate the process.
var ErrFatalExit = errors.New("k3d command exited fatally")

var (
	// stdoutMutex protects os.Stdout while it is redirected during List.
	stdoutMutex sync.Mutex //nolint:gochecknoglobals // process-wide stdout redirection

	// logrusConfigOnce configures k3d's logger exactly once.
	logrusConfigOnce sync.Once //nolint:gochecknoglobals // one-time logger initialization
)

// CreateOptions describes the cluster requested by Create.
type CreateOptions struct {
	Name           string
	HTTPPort       int
	HTTPSPort      int
	RegistryName   string
	VolumeHostPath string
	Timeout        time.Duration
}

// Provisioner executes k3d lifecycle commands via Cobra.
type Provisioner struct {
	runner runner.CommandRunner
}

// NewProvisioner constructs a provisioner whose k3d output goes to out.
// A nil out defaults to os.Stdout.
func NewProvisioner(out io.Writer) *Provisioner {
	if out == nil {
		out = os.Stdout
	}

	logrusConfigOnce.Do(func() {
		configureLogger(out)
	})

	return &Provisioner{runner: runner.NewCobraCommandRunner(out, out)}
}

// configureLogger routes k3d's logrus output to out and turns its Fatal calls into
// panics so a failing command does not terminate the process.
func configureLogger(out io.Writer) {
	logger := l.Log()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   false,
		TimestampFormat: "2006-01-02T15:04:05Z",
	})
	logger.SetLevel(logrus.InfoLevel)
	logger.ExitFunc = func(code int) {
		panic(fatalExit{code: code})
	}
}

type fatalExit struct {
	code int
}

// CreateArgs returns the `k3d cluster create` arguments for opts.
func CreateArgs(opts CreateOptions) []string {
	args := []string{
		opts.Name,
		"--servers", "1",
		"--agents", "0",
		"--port", strconv.Itoa(opts.HTTPPort) + ":80@loadbalancer",
		"--port", strconv.Itoa(opts.HTTPSPort) + ":443@loadbalancer",
	}

	if opts.RegistryName != "" {
		args = append(args, "--registry-create", opts.RegistryName)
	}

	if opts.VolumeHostPath != "" {
		args = append(args, "--volume", opts.VolumeHostPath+":"+DataMountPath+"@server:0")
	}

	args = append(args, "--wait")

	if opts.Timeout > 0 {
		args = append(args, "--timeout", opts.Timeout.String())
	}

	return args
}

// Create provisions a cluster with one server, no agents, both ingress ports bound
// on the load balancer, a local registry and the data volume. It blocks until the
// server is ready or opts.Timeout elapses.
func (p *Provisioner) Create(ctx context.Context, opts CreateOptions) error {
	err := p.run(ctx, clustercommand.NewCmdClusterCreate, CreateArgs(opts))
	if err != nil {
		return &provisionerr.ClusterCreateError{Name: opts.Name, Err: err}
	}

	return nil
}

// Delete removes the cluster. A cluster that does not exist is not an error.
func (p *Provisioner) Delete(ctx context.Context, name string) error {
	exists, err := p.Exists(ctx, name)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	err = p.run(ctx, clustercommand.NewCmdClusterDelete, []string{name})
	if err != nil {
		return fmt.Errorf("cluster delete: %w", err)
	}

	return nil
}

// Start resumes a stopped cluster. Starting a running cluster is a no-op in k3d.
func (p *Provisioner) Start(ctx context.Context, name string) error {
	err := p.run(ctx, clustercommand.NewCmdClusterStart, []string{name})
	if err != nil {
		return fmt.Errorf("cluster start: %w", err)
	}

	return nil
}

// Stop halts a running cluster.
func (p *Provisioner) Stop(ctx context.Context, name string) error {
	err := p.run(ctx, clustercommand.NewCmdClusterStop, []string{name})
	if err != nil {
		return fmt.Errorf("cluster stop: %w", err)
	}

	return nil
}

// MergeKubeconfig writes the cluster's kubeconfig into the default kubeconfig file
// without switching the current context.
func (p *Provisioner) MergeKubeconfig(ctx context.Context, name string) error {
	err := p.run(ctx, kubeconfigcommand.NewCmdKubeconfigMerge, []string{
		name,
		"--kubeconfig-merge-default",
		"--kubeconfig-switch-context=false",
	})
	if err != nil {
		return fmt.Errorf("kubeconfig merge: %w", err)
	}

	return nil
}

// Exists reports whether name appears in the live cluster list.
func (p *Provisioner) Exists(ctx context.Context, name string) (bool, error) {
	_, found, err := p.Get(ctx, name)

	return found, err
}

// Get looks name up in the live cluster list.
func (p *Provisioner) Get(ctx context.Context, name string) (Cluster, bool, error) {
	clusters, err := p.List(ctx)
	if err != nil {
		return Cluster{}, false, err
	}

	for _, cluster := range clusters {
		if cluster.Name == name {
			return cluster, true, nil
		}
	}

	return Cluster{}, false, nil
}

// List returns the clusters known to k3d.
//
// k3d prints the list straight to os.Stdout, so stdout is redirected into a pipe
// for the duration of the command.
func (p *Provisioner) List(ctx context.Context) ([]Cluster, error) {
	logger := l.Log()
	originalLogOutput := logger.Out

	logger.SetOutput(io.Discard)
	defer logger.SetOutput(originalLogOutput)

	stdoutMutex.Lock()
	defer stdoutMutex.Unlock()

	pipeReader, pipeWriter, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("cluster list: create stdout pipe: %w", err)
	}

	captured := make(chan []byte, 1)

	go func() {
		data, _ := io.ReadAll(pipeReader)
		captured <- data
	}()

	originalStdout := os.Stdout
	os.Stdout = pipeWriter

	listRunner := runner.NewCobraCommandRunner(io.Discard, io.Discard)
	res, runErr := runRecovering(func() (runner.CommandResult, error) {
		return listRunner.Run(ctx, clustercommand.NewCmdClusterList(), []string{"--output", "json"})
	})

	_ = pipeWriter.Close()
	os.Stdout = originalStdout

	output := <-captured
	_ = pipeReader.Close()

	if runErr != nil {
		return nil, fmt.Errorf("cluster list: %w", runErr)
	}

	if len(output) == 0 {
		output = []byte(res.Stdout)
	}

	return ParseClusterList(output)
}

func (p *Provisioner) run(ctx context.Context, builder func() *cobra.Command, args []string) error {
	_, err := runRecovering(func() (runner.CommandResult, error) {
		return p.runner.Run(ctx, builder(), args)
	})

	return err
}

// runRecovering converts the panic raised by a fatal k3d log call into an error.
func runRecovering(fn func() (runner.CommandResult, error)) (res runner.CommandResult, err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		exit, ok := recovered.(fatalExit)
		if !ok {
			panic(recovered)
		}

		err = fmt.Errorf("%w (exit code %d)", ErrFatalExit, exit.code)
	}()

	return fn()
}
