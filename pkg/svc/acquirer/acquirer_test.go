package acquirer_test

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devantler-tech/standalone/pkg/client/netretry"
	"github.com/devantler-tech/standalone/pkg/svc/acquirer"
	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastAcquirer(opts ...acquirer.Option) *acquirer.Acquirer {
	return acquirer.New(append([]acquirer.Option{
		acquirer.WithRetry(netretry.WithAttempts(3), netretry.WithDelays(time.Millisecond, 2*time.Millisecond)),
	}, opts...)...)
}

func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names
}

func TestEnsure_ExistingPathMakesNoNetworkCalls(t *testing.T) {
	t.Parallel()

	server, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("new"))
	})

	target := filepath.Join(t.TempDir(), "k3d")
	require.NoError(t, os.WriteFile(target, []byte("stale"), 0o600))

	outcome, err := fastAcquirer().Ensure(context.Background(), acquirer.Binary{
		Name: "k3d", URL: server.URL, Path: target,
	})

	require.NoError(t, err)
	assert.Equal(t, acquirer.AlreadyPresent, outcome)
	assert.Zero(t, hits.Load())

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "stale", string(content))
}

func TestEnsure_DownloadsAndMarksExecutable(t *testing.T) {
	t.Parallel()

	server, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("#!/bin/sh\necho kubectl\n"))
	})

	target := filepath.Join(t.TempDir(), "nested", "tools", "kubectl")

	outcome, err := fastAcquirer().Ensure(context.Background(), acquirer.Binary{
		Name: "kubectl", URL: server.URL, Path: target,
	})

	require.NoError(t, err)
	assert.Equal(t, acquirer.Installed, outcome)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "owner execute bit must be set")
	assert.Equal(t, []string{"kubectl"}, dirEntries(t, filepath.Dir(target)))
}

func TestEnsure_FailedDownloadLeavesNoPartialFile(t *testing.T) {
	t.Parallel()

	server, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	dir := t.TempDir()
	bin := acquirer.Binary{Name: "mkcert", URL: server.URL + "/missing", Path: filepath.Join(dir, "mkcert")}

	outcome, err := fastAcquirer().Ensure(context.Background(), bin)

	require.ErrorIs(t, err, provisionerr.ErrAcquisition)
	assert.Equal(t, acquirer.NotAcquired, outcome)

	var acqErr *provisionerr.AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, "mkcert", acqErr.Name)
	assert.Equal(t, int32(1), hits.Load(), "404 must not be retried")
	assert.Empty(t, dirEntries(t, dir))
}

func TestEnsure_UnreachableURL(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	dir := t.TempDir()

	_, err := fastAcquirer().Ensure(context.Background(), acquirer.Binary{
		Name: "helm", URL: url, Path: filepath.Join(dir, "helm"),
	})

	require.ErrorIs(t, err, provisionerr.ErrAcquisition)
	assert.Empty(t, dirEntries(t, dir))
}

func TestEnsure_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("partial"))

			return
		}

		_, _ = w.Write([]byte("ok"))
	})

	target := filepath.Join(t.TempDir(), "k3d")

	var out bytes.Buffer

	_, err := fastAcquirer(acquirer.WithOutput(&out)).Ensure(context.Background(), acquirer.Binary{
		Name: "k3d", URL: server.URL, Path: target,
	})

	require.NoError(t, err)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(content))
	assert.Contains(t, out.String(), "retrying")
}

func helmArchive(t *testing.T, member string, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "linux-amd64/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "linux-amd64/LICENSE", Typeflag: tar.TypeReg, Mode: 0o644, Size: 3}))
	_, err := tw.Write([]byte("MIT"))
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: member, Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(payload))}))
	_, err = tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func TestEnsure_ExtractsArchiveMember(t *testing.T) {
	t.Parallel()

	archive := helmArchive(t, "linux-amd64/helm", []byte("helm-binary"))
	server, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	})

	target := filepath.Join(t.TempDir(), "helm")

	_, err := fastAcquirer().Ensure(context.Background(), acquirer.Binary{
		Name: "helm", URL: server.URL, Path: target, ArchiveMember: "linux-amd64/helm",
	})

	require.NoError(t, err)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "helm-binary", string(content))
}

func TestEnsure_MissingArchiveMemberFails(t *testing.T) {
	t.Parallel()

	archive := helmArchive(t, "linux-amd64/helm", []byte("helm-binary"))
	server, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	})

	dir := t.TempDir()

	_, err := fastAcquirer().Ensure(context.Background(), acquirer.Binary{
		Name: "helm", URL: server.URL, Path: filepath.Join(dir, "helm"), ArchiveMember: "darwin-arm64/helm",
	})

	require.ErrorIs(t, err, provisionerr.ErrAcquisition)
	assert.Contains(t, err.Error(), "archive member not found")
	assert.Empty(t, dirEntries(t, dir))
}

func TestEnsureAll_ReportsOutcomePerBinary(t *testing.T) {
	t.Parallel()

	server, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("bin"))
	})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "k3d"), []byte("x"), 0o600))

	var out bytes.Buffer

	outcomes, err := fastAcquirer(acquirer.WithOutput(&out)).EnsureAll(context.Background(), []acquirer.Binary{
		{Name: "k3d", URL: server.URL, Path: filepath.Join(dir, "k3d")},
		{Name: "kubectl", URL: server.URL, Path: filepath.Join(dir, "kubectl")},
		{Name: "mkcert", URL: server.URL, Path: filepath.Join(dir, "mkcert")},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]acquirer.Outcome{
		"k3d":     acquirer.AlreadyPresent,
		"kubectl": acquirer.Installed,
		"mkcert":  acquirer.Installed,
	}, outcomes)
	assert.Equal(t, int32(2), hits.Load())
	assert.Contains(t, out.String(), "downloading kubectl")
	assert.Contains(t, out.String(), "downloading mkcert")
	assert.NotContains(t, out.String(), "downloading k3d")
}

func TestDefaultBinaries(t *testing.T) {
	t.Parallel()

	bins := byName(acquirer.DefaultBinaries("tools", "linux", "arm64"))
	require.Len(t, bins, 4)

	helm := bins["helm"]
	assert.Equal(t, "https://get.helm.sh/helm-v3.18.3-linux-arm64.tar.gz", helm.URL)
	assert.Equal(t, "linux-arm64/helm", helm.ArchiveMember)
	assert.Equal(t, filepath.Join("tools", "helm"), helm.Path)

	assert.Equal(t, "https://github.com/k3d-io/k3d/releases/download/v5.8.3/k3d-linux-arm64", bins["k3d"].URL)
	assert.Equal(t, "https://dl.k8s.io/release/v1.33.1/bin/linux/arm64/kubectl", bins["kubectl"].URL)
	assert.Equal(t, "https://dl.filippo.io/mkcert/latest?for=linux/arm64", bins["mkcert"].URL)

	win := byName(acquirer.DefaultBinaries("tools", "windows", "amd64"))
	assert.Equal(t, filepath.Join("tools", "kubectl.exe"), win["kubectl"].Path)
}

func byName(binaries []acquirer.Binary) map[string]acquirer.Binary {
	named := make(map[string]acquirer.Binary, len(binaries))
	for _, bin := range binaries {
		named[bin.Name] = bin
	}

	return named
}
