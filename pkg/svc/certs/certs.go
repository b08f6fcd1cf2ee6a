// Package certs manages the local certificate authority and the wildcard leaf
// certificate used by the cluster's ingress routes.
package certs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/devantler-tech/standalone/pkg/cmd/runner"
	"github.com/devantler-tech/standalone/pkg/utils/notify"
)

const (
	rootCertFile = "rootCA.pem"
	rootKeyFile  = "rootCA-key.pem"
)

var (
	errEmptyCARoot   = errors.New("mkcert reported an empty CAROOT")
	errLeafMissing   = errors.New("leaf certificate files missing after issuance")
	errNoDomainNames = errors.New("no domain patterns given")
)

// Material is the certificate chain on local disk.
type Material struct {
	CACert string
	CAKey  string
	Cert   string
	Key    string
}

// Provisioner drives the mkcert binary.
type Provisioner struct {
	mkcert string
	runner runner.ProcessRunner
	out    io.Writer
}

// NewProvisioner returns a Provisioner that runs the mkcert binary at mkcertPath.
func NewProvisioner(mkcertPath string, processRunner runner.ProcessRunner, out io.Writer) *Provisioner {
	if out == nil {
		out = io.Discard
	}

	return &Provisioner{mkcert: mkcertPath, runner: processRunner, out: out}
}

// DomainPatterns returns the names the leaf certificate covers for domain.
func DomainPatterns(domain string) []string {
	return []string{"*." + domain, domain}
}

// LeafPaths returns where the wildcard leaf for domain is stored under certsDir.
func LeafPaths(certsDir, domain string) (string, string) {
	base := "_wildcard." + domain

	return filepath.Join(certsDir, base+".pem"), filepath.Join(certsDir, base+"-key.pem")
}

// InstallRoot creates the local CA if needed and adds it to the system trust stores.
// Installing an already trusted root is a no-op for mkcert.
func (p *Provisioner) InstallRoot(ctx context.Context) error {
	res, err := p.runner.Exec(ctx, p.mkcert, []string{"-install"})
	p.reportDiagnostics(res.Stderr)

	if err != nil {
		return fmt.Errorf("install local CA: %w", err)
	}

	return nil
}

// RootMaterialPaths returns the CA certificate and key paths. It only queries mkcert.
func (p *Provisioner) RootMaterialPaths(ctx context.Context) (string, string, error) {
	res, err := p.runner.Exec(ctx, p.mkcert, []string{"-CAROOT"})
	if err != nil {
		return "", "", fmt.Errorf("query CAROOT: %w", err)
	}

	root := strings.TrimSpace(res.Stdout)
	if root == "" {
		return "", "", errEmptyCARoot
	}

	return filepath.Join(root, rootCertFile), filepath.Join(root, rootKeyFile), nil
}

// IssueLeaf issues a certificate for patterns into certPath and keyPath.
// mkcert diagnostics and a non-zero exit are reported as warnings; issuance only
// fails when the certificate or key file is missing afterwards.
func (p *Provisioner) IssueLeaf(ctx context.Context, patterns []string, certPath, keyPath string) (Material, error) {
	if len(patterns) == 0 {
		return Material{}, errNoDomainNames
	}

	for _, dir := range []string{filepath.Dir(certPath), filepath.Dir(keyPath)} {
		err := os.MkdirAll(dir, 0o750)
		if err != nil {
			return Material{}, fmt.Errorf("create certificate directory: %w", err)
		}
	}

	args := append([]string{"-cert-file", certPath, "-key-file", keyPath}, patterns...)

	res, execErr := p.runner.Exec(ctx, p.mkcert, args)
	p.reportDiagnostics(res.Stderr)

	if !fileExists(certPath) || !fileExists(keyPath) {
		if execErr != nil {
			return Material{}, fmt.Errorf("issue leaf certificate: %w", errors.Join(errLeafMissing, execErr))
		}

		return Material{}, fmt.Errorf("issue leaf certificate: %w", errLeafMissing)
	}

	if execErr != nil {
		notify.Warningf(p.out, "mkcert exited with an error but wrote the certificate: %v", execErr)
	}

	caCert, caKey, err := p.RootMaterialPaths(ctx)
	if err != nil {
		return Material{}, err
	}

	return Material{CACert: caCert, CAKey: caKey, Cert: certPath, Key: keyPath}, nil
}

// Issued reports whether the leaf pair and the CA pair all exist.
func (p *Provisioner) Issued(ctx context.Context, certPath, keyPath string) (Material, bool) {
	if !fileExists(certPath) || !fileExists(keyPath) {
		return Material{}, false
	}

	caCert, caKey, err := p.RootMaterialPaths(ctx)
	if err != nil || !fileExists(caCert) || !fileExists(caKey) {
		return Material{}, false
	}

	return Material{CACert: caCert, CAKey: caKey, Cert: certPath, Key: keyPath}, true
}

func (p *Provisioner) reportDiagnostics(stderr string) {
	scanner := bufio.NewScanner(strings.NewReader(stderr))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		lower := strings.ToLower(line)
		if strings.Contains(lower, "warning") || strings.Contains(lower, "error") ||
			strings.HasPrefix(lower, "note:") {
			notify.Warningf(p.out, "mkcert: %s", line)
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
