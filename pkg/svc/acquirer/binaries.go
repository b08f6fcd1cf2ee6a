package acquirer

import (
	"fmt"
	"path/filepath"
)

// Pinned tool versions.
const (
	K3dVersion     = "v5.8.3"
	KubectlVersion = "v1.33.1"
	HelmVersion    = "v3.18.3"
)

// Binary describes an external tool: where it comes from and where it lives locally.
// The existence of Path is the only record that the tool is installed.
type Binary struct {
	Name string
	URL  string
	Path string
	// ArchiveMember is the path of the executable inside a .tar.gz download.
	// Empty means the download is the executable itself.
	ArchiveMember string
}

// DefaultBinaries returns the cluster-manager, control-plane-client, chart-installer
// and local-CA binaries for the given platform, rooted in toolsDir.
func DefaultBinaries(toolsDir, goos, goarch string) []Binary {
	suffix := ""
	if goos == "windows" {
		suffix = ".exe"
	}

	return []Binary{
		{
			Name: "k3d",
			URL: fmt.Sprintf(
				"https://github.com/k3d-io/k3d/releases/download/%s/k3d-%s-%s%s",
				K3dVersion, goos, goarch, suffix,
			),
			Path: filepath.Join(toolsDir, "k3d"+suffix),
		},
		{
			Name: "kubectl",
			URL: fmt.Sprintf(
				"https://dl.k8s.io/release/%s/bin/%s/%s/kubectl%s",
				KubectlVersion, goos, goarch, suffix,
			),
			Path: filepath.Join(toolsDir, "kubectl"+suffix),
		},
		{
			Name:          "helm",
			URL:           fmt.Sprintf("https://get.helm.sh/helm-%s-%s-%s.tar.gz", HelmVersion, goos, goarch),
			Path:          filepath.Join(toolsDir, "helm"+suffix),
			ArchiveMember: fmt.Sprintf("%s-%s/helm%s", goos, goarch, suffix),
		},
		{
			Name: "mkcert",
			URL:  fmt.Sprintf("https://dl.filippo.io/mkcert/latest?for=%s/%s", goos, goarch),
			Path: filepath.Join(toolsDir, "mkcert"+suffix),
		},
	}
}
