package helm

import (
	"context"
	"fmt"
	"time"

	"github.com/devantler-tech/standalone/pkg/client/netretry"
)

const (
	// ContextTimeoutBuffer is added to the Helm timeout so the Go context does not
	// cancel while Helm's own wait is still running.
	ContextTimeoutBuffer = 5 * time.Minute

	chartInstallAttempts      = 5
	chartInstallRetryBaseWait = 3 * time.Second
	chartInstallRetryMaxWait  = 30 * time.Second
)

// RepoConfig names the repository a chart is fetched from.
type RepoConfig struct {
	// Name is the local repository alias, e.g. "jetstack".
	Name string
	URL  string
	// RepoName is a human readable name used in error messages.
	RepoName string
}

// ChartConfig describes the release to install or upgrade.
type ChartConfig struct {
	ReleaseName     string
	ChartName       string
	Namespace       string
	Version         string
	CreateNamespace bool
	ValuesYaml      string
	SetValues       map[string]string
}

// InstallOrUpgradeChart adds the repository and then runs upgrade --install for the
// chart, waiting for its resources and jobs. Transient failures of the install are
// retried.
func InstallOrUpgradeChart(
	ctx context.Context,
	client Interface,
	repoConfig RepoConfig,
	chartConfig ChartConfig,
	timeout time.Duration,
	retryOpts ...netretry.Option,
) error {
	addRepoErr := client.AddRepository(ctx, &RepositoryEntry{Name: repoConfig.Name, URL: repoConfig.URL}, timeout)
	if addRepoErr != nil {
		return fmt.Errorf("failed to add %s repository: %w", repoConfig.RepoName, addRepoErr)
	}

	spec := &ChartSpec{
		ReleaseName:     chartConfig.ReleaseName,
		ChartName:       chartConfig.ChartName,
		Namespace:       chartConfig.Namespace,
		Version:         chartConfig.Version,
		CreateNamespace: chartConfig.CreateNamespace,
		Silent:          true,
		Timeout:         timeout,
		Wait:            true,
		WaitForJobs:     true,
		ValuesYaml:      chartConfig.ValuesYaml,
		SetValues:       chartConfig.SetValues,
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout+ContextTimeoutBuffer)
	defer cancel()

	opts := append([]netretry.Option{
		netretry.WithAttempts(chartInstallAttempts),
		netretry.WithDelays(chartInstallRetryBaseWait, chartInstallRetryMaxWait),
	}, retryOpts...)

	err := netretry.Do(timeoutCtx, func(ctx context.Context) error {
		_, installErr := client.InstallOrUpgradeChart(ctx, spec)

		return installErr
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to install %s chart: %w", repoConfig.RepoName, err)
	}

	return nil
}
