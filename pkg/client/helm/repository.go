package helm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devantler-tech/standalone/pkg/client/netretry"
	helmv4cli "helm.sh/helm/v4/pkg/cli"
	helmv4getter "helm.sh/helm/v4/pkg/getter"
	repov1 "helm.sh/helm/v4/pkg/repo/v1"
)

const (
	repoDirMode  = 0o750
	repoFileMode = 0o640

	repoIndexAttempts      = 3
	repoIndexRetryBaseWait = 2 * time.Second
	repoIndexRetryMaxWait  = 15 * time.Second
)

var (
	errRepositoryEntryRequired = errors.New("helm: repository entry is required")
	errRepositoryNameRequired  = errors.New("helm: repository name is required")
	errRepositoryCacheUnset    = errors.New("helm: repository cache path is not set")
	errRepositoryConfigUnset   = errors.New("helm: repository config path is not set")
)

// AddRepository registers a Helm repository and refreshes its index, the
// equivalent of `helm repo add` followed by `helm repo update`. The timeout bounds
// each index download request.
func (c *Client) AddRepository(ctx context.Context, entry *RepositoryEntry, timeout time.Duration) error {
	requestErr := validateRepositoryRequest(ctx, entry)
	if requestErr != nil {
		return requestErr
	}

	repoFile, err := ensureRepositoryConfig(c.settings)
	if err != nil {
		return err
	}

	repoCache, err := ensureRepositoryCache(c.settings)
	if err != nil {
		return err
	}

	repoEntry := &repov1.Entry{Name: entry.Name, URL: entry.URL}

	chartRepository, err := newChartRepository(c.settings, repoEntry, repoCache, timeout)
	if err != nil {
		return err
	}

	err = downloadRepositoryIndex(ctx, chartRepository)
	if err != nil {
		return err
	}

	repositoryFile := loadOrInitRepositoryFile(repoFile)
	repositoryFile.Update(repoEntry)

	writeErr := repositoryFile.WriteFile(repoFile, repoFileMode)
	if writeErr != nil {
		return fmt.Errorf("write repository file: %w", writeErr)
	}

	return nil
}

func validateRepositoryRequest(ctx context.Context, entry *RepositoryEntry) error {
	if entry == nil {
		return errRepositoryEntryRequired
	}

	if entry.Name == "" {
		return errRepositoryNameRequired
	}

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return fmt.Errorf("add repository context cancelled: %w", ctxErr)
	}

	return nil
}

func ensureRepositoryConfig(settings *helmv4cli.EnvSettings) (string, error) {
	repoFile := settings.RepositoryConfig
	if repoFile == "" {
		return "", errRepositoryConfigUnset
	}

	mkdirErr := os.MkdirAll(filepath.Dir(repoFile), repoDirMode)
	if mkdirErr != nil {
		return "", fmt.Errorf("create repository directory: %w", mkdirErr)
	}

	return repoFile, nil
}

func ensureRepositoryCache(settings *helmv4cli.EnvSettings) (string, error) {
	repoCache := settings.RepositoryCache
	if repoCache == "" {
		return "", errRepositoryCacheUnset
	}

	mkdirErr := os.MkdirAll(repoCache, repoDirMode)
	if mkdirErr != nil {
		return "", fmt.Errorf("create repository cache directory: %w", mkdirErr)
	}

	return repoCache, nil
}

func loadOrInitRepositoryFile(repoFile string) *repov1.File {
	repositoryFile, err := repov1.LoadFile(repoFile)
	if err != nil {
		return repov1.NewFile()
	}

	return repositoryFile
}

func newChartRepository(
	settings *helmv4cli.EnvSettings,
	repoEntry *repov1.Entry,
	repoCache string,
	timeout time.Duration,
) (*repov1.ChartRepository, error) {
	getterOpts := []helmv4getter.Option{}
	if timeout > 0 {
		getterOpts = append(getterOpts, helmv4getter.WithTimeout(timeout))
	}

	chartRepository, err := repov1.NewChartRepository(repoEntry, helmv4getter.All(settings, getterOpts...))
	if err != nil {
		return nil, fmt.Errorf("create chart repository: %w", err)
	}

	chartRepository.CachePath = repoCache

	return chartRepository, nil
}

func downloadRepositoryIndex(ctx context.Context, chartRepository *repov1.ChartRepository) error {
	err := netretry.Do(ctx, func(context.Context) error {
		indexPath, err := chartRepository.DownloadIndexFile()
		if err != nil {
			return fmt.Errorf("download repository index file: %w", err)
		}

		_, statErr := os.Stat(indexPath)
		if statErr != nil {
			return fmt.Errorf("verify repository index file: %w", statErr)
		}

		return nil
	},
		netretry.WithAttempts(repoIndexAttempts),
		netretry.WithDelays(repoIndexRetryBaseWait, repoIndexRetryMaxWait),
	)
	if err != nil {
		return fmt.Errorf("repository %s: %w", chartRepository.Config.Name, err)
	}

	return nil
}
