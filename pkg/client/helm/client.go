package helm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	helmv4action "helm.sh/helm/v4/pkg/action"
	helmv4loader "helm.sh/helm/v4/pkg/chart/loader"
	chartv2 "helm.sh/helm/v4/pkg/chart/v2"
	helmv4cli "helm.sh/helm/v4/pkg/cli"
	helmv4kube "helm.sh/helm/v4/pkg/kube"
	v1 "helm.sh/helm/v4/pkg/release/v1"
)

// DefaultTimeout defines the fallback Helm chart installation timeout.
const DefaultTimeout = 5 * time.Minute

var (
	errReleaseNameRequired = errors.New("helm: release name is required")
	errChartSpecRequired   = errors.New("helm: chart spec is required")
	errUnexpectedRelease   = errors.New("helm: unexpected release type")
	errUnexpectedChart     = errors.New("helm: unexpected chart type")
)

// stderrCaptureMu protects process-wide stderr redirection from concurrent access.
var stderrCaptureMu sync.Mutex //nolint:gochecknoglobals // global lock required to coordinate stderr interception

// ChartSpec describes one upgrade --install of a chart.
type ChartSpec struct {
	ReleaseName string
	// ChartName is either "<repo>/<chart>" for a repository added with AddRepository
	// or a local chart path.
	ChartName string
	Namespace string
	Version   string

	CreateNamespace bool
	Wait            bool
	WaitForJobs     bool
	Timeout         time.Duration
	Silent          bool

	ValuesYaml string
	SetValues  map[string]string
}

// RepositoryEntry describes a Helm repository that should be added locally
// before performing chart operations.
type RepositoryEntry struct {
	Name string
	URL  string
}

// ReleaseInfo captures metadata about a Helm release after an operation.
type ReleaseInfo struct {
	Name       string
	Namespace  string
	Revision   int
	Status     string
	Chart      string
	AppVersion string
	Updated    time.Time
}

// Interface is the subset of Helm used by the installers.
//
//go:generate mockery --name=Interface --output=. --filename=mocks.go
type Interface interface {
	AddRepository(ctx context.Context, entry *RepositoryEntry, timeout time.Duration) error
	InstallOrUpgradeChart(ctx context.Context, spec *ChartSpec) (*ReleaseInfo, error)
}

// Client is the Helm SDK backed implementation of Interface.
type Client struct {
	actionConfig *helmv4action.Configuration
	settings     *helmv4cli.EnvSettings
	debugLog     func(string, ...any)
}

var _ Interface = (*Client)(nil)

// NewClient creates a Helm client using the provided kubeconfig and context.
func NewClient(kubeConfig, kubeContext string) (*Client, error) {
	settings := helmv4cli.New()
	if kubeConfig != "" {
		settings.KubeConfig = kubeConfig
	}

	if kubeContext != "" {
		settings.KubeContext = kubeContext
	}

	actionConfig := new(helmv4action.Configuration)

	initErr := actionConfig.Init(
		settings.RESTClientGetter(),
		settings.Namespace(),
		os.Getenv("HELM_DRIVER"),
	)
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", initErr)
	}

	return &Client{
		actionConfig: actionConfig,
		settings:     settings,
		debugLog:     func(string, ...any) {},
	}, nil
}

// InstallOrUpgradeChart upgrades a release when it has history and installs it otherwise.
func (c *Client) InstallOrUpgradeChart(ctx context.Context, spec *ChartSpec) (*ReleaseInfo, error) {
	if spec == nil {
		return nil, errChartSpecRequired
	}

	if spec.ReleaseName == "" {
		return nil, errReleaseNameRequired
	}

	cleanup, err := c.switchNamespace(spec.Namespace)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	histClient := helmv4action.NewHistory(c.actionConfig)
	histClient.Max = 1

	var run func() (any, error)

	releases, histErr := histClient.Run(spec.ReleaseName)
	if histErr == nil && len(releases) > 0 {
		run, err = c.upgradeRun(ctx, spec)
	} else {
		run, err = c.installRun(ctx, spec)
	}

	if err != nil {
		return nil, err
	}

	var releaser any
	if spec.Silent {
		releaser, err = runWithSilencedStderr(run)
	} else {
		releaser, err = run()
	}

	if err != nil {
		return nil, fmt.Errorf("install or upgrade release %q: %w", spec.ReleaseName, err)
	}

	rel, ok := releaser.(*v1.Release)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errUnexpectedRelease, releaser)
	}

	return releaseToInfo(rel), nil
}

func (c *Client) installRun(ctx context.Context, spec *ChartSpec) (func() (any, error), error) {
	client := helmv4action.NewInstall(c.actionConfig)
	client.ReleaseName = spec.ReleaseName
	client.Namespace = spec.Namespace
	client.CreateNamespace = spec.CreateNamespace
	client.Version = spec.Version
	client.WaitForJobs = spec.WaitForJobs
	client.Timeout = timeoutOrDefault(spec.Timeout)

	if spec.Wait {
		client.WaitStrategy = helmv4kube.StatusWatcherStrategy
	}

	chart, vals, err := c.loadChartAndValues(spec, &client.ChartPathOptions)
	if err != nil {
		return nil, err
	}

	return func() (any, error) {
		return client.RunWithContext(ctx, chart, vals)
	}, nil
}

func (c *Client) upgradeRun(ctx context.Context, spec *ChartSpec) (func() (any, error), error) {
	client := helmv4action.NewUpgrade(c.actionConfig)
	client.Namespace = spec.Namespace
	client.Version = spec.Version
	client.WaitForJobs = spec.WaitForJobs
	client.Timeout = timeoutOrDefault(spec.Timeout)

	if spec.Wait {
		client.WaitStrategy = helmv4kube.StatusWatcherStrategy
	}

	chart, vals, err := c.loadChartAndValues(spec, &client.ChartPathOptions)
	if err != nil {
		return nil, err
	}

	return func() (any, error) {
		return client.RunWithContext(ctx, spec.ReleaseName, chart, vals)
	}, nil
}

func (c *Client) loadChartAndValues(
	spec *ChartSpec,
	pathOptions *helmv4action.ChartPathOptions,
) (*chartv2.Chart, map[string]any, error) {
	pathOptions.Version = spec.Version

	chartPath, err := pathOptions.LocateChart(spec.ChartName, c.settings)
	if err != nil {
		return nil, nil, fmt.Errorf("locate chart %q: %w", spec.ChartName, err)
	}

	loaded, err := helmv4loader.Load(chartPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load chart %q: %w", spec.ChartName, err)
	}

	chart, ok := loaded.(*chartv2.Chart)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %T", errUnexpectedChart, loaded)
	}

	vals, err := mergeValues(spec)
	if err != nil {
		return nil, nil, err
	}

	return chart, vals, nil
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}

	return timeout
}

func (c *Client) switchNamespace(namespace string) (func(), error) {
	if namespace == "" {
		return func() {}, nil
	}

	previousNamespace := c.settings.Namespace()
	if previousNamespace == namespace {
		return func() {}, nil
	}

	c.settings.SetNamespace(namespace)

	reinitErr := c.actionConfig.Init(
		c.settings.RESTClientGetter(),
		namespace,
		os.Getenv("HELM_DRIVER"),
	)
	if reinitErr != nil {
		c.settings.SetNamespace(previousNamespace)
		_ = c.actionConfig.Init(
			c.settings.RESTClientGetter(),
			previousNamespace,
			os.Getenv("HELM_DRIVER"),
		)

		return nil, fmt.Errorf("failed to set helm namespace %q: %w", namespace, reinitErr)
	}

	return func() {
		c.settings.SetNamespace(previousNamespace)

		restoreErr := c.actionConfig.Init(
			c.settings.RESTClientGetter(),
			previousNamespace,
			os.Getenv("HELM_DRIVER"),
		)
		if restoreErr != nil {
			c.debugLog("failed to restore helm namespace: %v", restoreErr)
		}
	}, nil
}

func releaseToInfo(rel *v1.Release) *ReleaseInfo {
	if rel == nil {
		return nil
	}

	info := &ReleaseInfo{
		Name:      rel.Name,
		Namespace: rel.Namespace,
		Revision:  rel.Version,
	}

	if rel.Info != nil {
		info.Status = rel.Info.Status.String()
		info.Updated = rel.Info.LastDeployed
	}

	if rel.Chart != nil && rel.Chart.Metadata != nil {
		info.Chart = rel.Chart.Metadata.Name
		info.AppVersion = rel.Chart.Metadata.AppVersion
	}

	return info
}

// runWithSilencedStderr captures stderr written by the Helm SDK while operation runs
// and appends it to the returned error, if any.
func runWithSilencedStderr(operation func() (any, error)) (any, error) {
	readPipe, writePipe, pipeErr := os.Pipe()
	if pipeErr != nil {
		return operation()
	}

	stderrCaptureMu.Lock()
	defer stderrCaptureMu.Unlock()

	originalStderr := os.Stderr

	var (
		stderrBuffer bytes.Buffer
		waitGroup    sync.WaitGroup
	)

	waitGroup.Go(func() {
		_, _ = io.Copy(&stderrBuffer, readPipe)
	})

	os.Stderr = writePipe

	result, runErr := operation()

	_ = writePipe.Close()

	waitGroup.Wait()

	_ = readPipe.Close()
	os.Stderr = originalStderr

	if runErr != nil {
		logs := strings.TrimSpace(stderrBuffer.String())
		if logs != "" {
			runErr = fmt.Errorf("%w: %s", runErr, logs)
		}
	}

	return result, runErr
}
