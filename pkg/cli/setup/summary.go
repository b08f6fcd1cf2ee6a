package setup

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/devantler-tech/standalone/pkg/pipeline"
	"github.com/devantler-tech/standalone/pkg/utils/notify"
)

func (b *builder) summarize() pipeline.Step {
	return pipeline.Step{
		Name:  StepSummarize,
		Title: "Summary",
		Emoji: "📋",
		Requires: []pipeline.Field{
			pipeline.FieldCertificates, pipeline.FieldCluster, pipeline.FieldGitOps, pipeline.FieldWorkload,
		},
		Action: func(ctx context.Context, rc *pipeline.RunContext) error {
			notify.Banner(b.deps.Out, "Cluster "+rc.ClusterName+" is ready", b.summaryLines(ctx, rc))

			return nil
		},
	}
}

// summaryLines never fails: values that cannot be read are reported as warnings and left out.
func (b *builder) summaryLines(ctx context.Context, rc *pipeline.RunContext) []notify.BannerLine {
	password := ""

	services, err := b.connect(rc)
	if err == nil {
		var found bool

		password, found, err = services.GitOps.AdminPassword(ctx)
		if err == nil && !found {
			notify.Infof(b.deps.Out, "argocd initial admin secret not present")
		}
	}

	if err != nil {
		notify.Warningf(b.deps.Out, "read argocd admin password: %v", err)
	}

	registry := ""

	if b.deps.RegistryPort != nil && rc.RegistryName != "" {
		port, portErr := b.deps.RegistryPort(ctx, rc.RegistryName)
		if portErr != nil {
			notify.Warningf(b.deps.Out, "look up registry port: %v", portErr)
		} else {
			registry = "localhost:" + strconv.Itoa(port)
		}
	}

	toolsDir, err := filepath.Abs(rc.ToolsDir)
	if err != nil {
		toolsDir = rc.ToolsDir
	}

	status := "created"
	if rc.ClusterReused {
		status = "reused"
	}

	return []notify.BannerLine{
		{Label: "Cluster", Value: rc.ClusterName + " (" + status + ")"},
		{Label: "Context", Value: rc.KubeContext},
		{Label: "HTTP port", Value: strconv.Itoa(rc.HTTPPort)},
		{Label: "HTTPS port", Value: strconv.Itoa(rc.HTTPSPort)},
		{Label: "Argo CD", Value: rc.ArgoCDURL},
		{Label: "Argo CD user", Value: adminUser(password)},
		{Label: "Argo CD password", Value: password},
		{Label: "Test workload", Value: rc.WorkloadURL},
		{Label: "Registry", Value: registry},
		{Label: "Certificates", Value: rc.CertsDir},
		{Label: "Tools", Value: "export PATH=\"" + toolsDir + ":$PATH\""},
	}
}

func adminUser(password string) string {
	if password == "" {
		return ""
	}

	return "admin"
}
