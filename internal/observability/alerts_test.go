package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "billtrack.yml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))
	require.NotEmpty(t, spec.Groups)

	var group *alertGroup
	for i := range spec.Groups {
		if spec.Groups[i].Name == "billtrack" {
			group = &spec.Groups[i]
			break
		}
	}
	require.NotNil(t, group, "billtrack alert group missing")

	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"HighErrorRate":        {severity: "critical", runbook: "docs/runbook.md#high-error-rate"},
		"HighLatency":          {severity: "warning", runbook: "docs/runbook.md#high-latency"},
		"StaleProposalSpike":   {severity: "warning", runbook: "docs/runbook.md#stale-proposals"},
		"NotificationFailures": {severity: "warning", runbook: "docs/runbook.md#notification-failures"},
	}
	require.Len(t, group.Rules, len(expected))

	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		require.Equal(t, want.runbook, rule.Annotations["runbook"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.NotEmpty(t, rule.Expr, rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
	}
}
