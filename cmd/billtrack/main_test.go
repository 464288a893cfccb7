package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/billtrack/billtrack/internal/testing/guard"
)

func TestStagesCommandPrintsCatalog(t *testing.T) {
	root := rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"stages"})

	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 16)
	require.Contains(t, lines[0], "KEY")
	require.Contains(t, lines[1], "introduced")
	require.Contains(t, lines[15], "failed")
	require.Contains(t, lines[15], "true")
}

func TestRootRegistersSubcommands(t *testing.T) {
	root := rootCommand()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.Subset(t, names, []string{"serve", "migrate", "stages", "admin", "jobs"})
}

func TestServeSkipsInTestMode(t *testing.T) {
	root := rootCommand()
	root.SetArgs([]string{"serve"})
	require.NoError(t, root.Execute())
}
