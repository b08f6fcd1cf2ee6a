package certs_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/devantler-tech/standalone/pkg/cmd/runner"
	"github.com/devantler-tech/standalone/pkg/svc/certs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const mkcertBin = "/tools/mkcert"

var errExit = errors.New("exit status 1")

func caRoot(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "rootCA.pem"), []byte("ca"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "rootCA-key.pem"), []byte("key"), 0o600))

	return root
}

func expectCARoot(m *runner.MockProcessRunner, root string) {
	m.On("Exec", mock.Anything, mkcertBin, []string{"-CAROOT"}, []string(nil)).
		Return(runner.CommandResult{Stdout: root + "\n"}, nil)
}

func writeLeaf(certPath, keyPath string) func(mock.Arguments) {
	return func(mock.Arguments) {
		_ = os.WriteFile(certPath, []byte("cert"), 0o600)
		_ = os.WriteFile(keyPath, []byte("key"), 0o600)
	}
}

func TestDomainPatternsAndLeafPaths(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"*.127-0-0-1.sslip.io", "127-0-0-1.sslip.io"}, certs.DomainPatterns("127-0-0-1.sslip.io"))

	cert, key := certs.LeafPaths("certs", "example.test")
	assert.Equal(t, filepath.Join("certs", "_wildcard.example.test.pem"), cert)
	assert.Equal(t, filepath.Join("certs", "_wildcard.example.test-key.pem"), key)
}

func TestInstallRoot(t *testing.T) {
	t.Parallel()

	mockRunner := runner.NewMockProcessRunner()
	mockRunner.On("Exec", mock.Anything, mkcertBin, []string{"-install"}, []string(nil)).
		Return(runner.CommandResult{Stderr: "The local CA is already installed in the system trust store! 👍\n"}, nil)

	var out bytes.Buffer

	err := certs.NewProvisioner(mkcertBin, mockRunner, &out).InstallRoot(context.Background())

	require.NoError(t, err)
	assert.Empty(t, out.String())
	mockRunner.AssertExpectations(t)
}

func TestInstallRoot_Failure(t *testing.T) {
	t.Parallel()

	mockRunner := runner.NewMockProcessRunner()
	mockRunner.On("Exec", mock.Anything, mkcertBin, []string{"-install"}, []string(nil)).
		Return(runner.CommandResult{}, errExit)

	err := certs.NewProvisioner(mkcertBin, mockRunner, nil).InstallRoot(context.Background())

	require.ErrorIs(t, err, errExit)
	assert.Contains(t, err.Error(), "install local CA")
}

func TestRootMaterialPaths(t *testing.T) {
	t.Parallel()

	mockRunner := runner.NewMockProcessRunner()
	expectCARoot(mockRunner, "/home/dev/.local/share/mkcert")

	caCert, caKey, err := certs.NewProvisioner(mkcertBin, mockRunner, nil).RootMaterialPaths(context.Background())

	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/dev/.local/share/mkcert", "rootCA.pem"), caCert)
	assert.Equal(t, filepath.Join("/home/dev/.local/share/mkcert", "rootCA-key.pem"), caKey)
}

func TestRootMaterialPaths_Empty(t *testing.T) {
	t.Parallel()

	mockRunner := runner.NewMockProcessRunner()
	expectCARoot(mockRunner, "  ")

	_, _, err := certs.NewProvisioner(mkcertBin, mockRunner, nil).RootMaterialPaths(context.Background())

	require.Error(t, err)
}

func TestIssueLeaf_ToleratesDiagnostics(t *testing.T) {
	t.Parallel()

	root := caRoot(t)
	certPath, keyPath := certs.LeafPaths(filepath.Join(t.TempDir(), "certs"), "example.test")
	patterns := certs.DomainPatterns("example.test")

	mockRunner := runner.NewMockProcessRunner()
	mockRunner.On("Exec", mock.Anything, mkcertBin,
		append([]string{"-cert-file", certPath, "-key-file", keyPath}, patterns...), []string(nil)).
		Run(writeLeaf(certPath, keyPath)).
		Return(runner.CommandResult{Stderr: "Note: the local CA is not installed in the Java trust store.\n"}, errExit)
	expectCARoot(mockRunner, root)

	var out bytes.Buffer

	material, err := certs.NewProvisioner(mkcertBin, mockRunner, &out).
		IssueLeaf(context.Background(), patterns, certPath, keyPath)

	require.NoError(t, err)
	assert.Equal(t, certs.Material{
		CACert: filepath.Join(root, "rootCA.pem"),
		CAKey:  filepath.Join(root, "rootCA-key.pem"),
		Cert:   certPath,
		Key:    keyPath,
	}, material)
	assert.Contains(t, out.String(), "⚠ mkcert: Note: the local CA is not installed in the Java trust store.")
	assert.Contains(t, out.String(), "exited with an error but wrote the certificate")
}

func TestIssueLeaf_FailsWhenFilesMissing(t *testing.T) {
	t.Parallel()

	certPath, keyPath := certs.LeafPaths(t.TempDir(), "example.test")

	mockRunner := runner.NewMockProcessRunner()
	mockRunner.On("Exec", mock.Anything, mkcertBin, mock.Anything, []string(nil)).
		Return(runner.CommandResult{Stderr: "ERROR: failed to save certificate\n"}, errExit)

	_, err := certs.NewProvisioner(mkcertBin, mockRunner, nil).
		IssueLeaf(context.Background(), []string{"*.example.test"}, certPath, keyPath)

	require.Error(t, err)
	require.ErrorIs(t, err, errExit)
	assert.Contains(t, err.Error(), "leaf certificate files missing")
}

func TestIssueLeaf_RequiresPatterns(t *testing.T) {
	t.Parallel()

	_, err := certs.NewProvisioner(mkcertBin, runner.NewMockProcessRunner(), nil).
		IssueLeaf(context.Background(), nil, "c", "k")

	require.Error(t, err)
}

func TestIssued(t *testing.T) {
	t.Parallel()

	root := caRoot(t)
	certPath, keyPath := certs.LeafPaths(t.TempDir(), "example.test")

	mockRunner := runner.NewMockProcessRunner()
	expectCARoot(mockRunner, root)

	provisioner := certs.NewProvisioner(mkcertBin, mockRunner, nil)

	_, ok := provisioner.Issued(context.Background(), certPath, keyPath)
	assert.False(t, ok, "missing leaf")

	writeLeaf(certPath, keyPath)(nil)

	material, ok := provisioner.Issued(context.Background(), certPath, keyPath)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "rootCA.pem"), material.CACert)
}
