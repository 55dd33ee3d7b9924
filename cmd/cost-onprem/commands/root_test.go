package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot_Subcommands(t *testing.T) {
	cmd := Root()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"install", "status", "health", "cleanup", "version"}, names)
}

func TestRoot_PersistentFlags(t *testing.T) {
	cmd := Root()

	for _, name := range []string{"namespace", "release-name", "values", "kubeconfig", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "n", cmd.PersistentFlags().Lookup("namespace").Shorthand)
	assert.Equal(t, "f", cmd.PersistentFlags().Lookup("values").Shorthand)
}

func TestRoot_DefaultsToInstallFlags(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("set"))
	assert.NotNil(t, cmd.Flags().Lookup("dry-run"))
}

func TestInstall_SetIsRepeatableAndOrdered(t *testing.T) {
	cmd := Root()
	install, _, err := cmd.Find([]string{"install"})
	require.NoError(t, err)

	require.NoError(t, install.ParseFlags([]string{"--set", "a=1", "--set", "b=x,y", "--set", "a=2", "--dry-run"}))

	set, err := install.Flags().GetStringArray("set")
	require.NoError(t, err)
	assert.Equal(t, []string{"a=1", "b=x,y", "a=2"}, set)
	dryRun, err := install.Flags().GetBool("dry-run")
	require.NoError(t, err)
	assert.True(t, dryRun)
}

func TestCleanup_Flags(t *testing.T) {
	cmd := Root()
	cleanup, _, err := cmd.Find([]string{"cleanup"})
	require.NoError(t, err)

	assert.NotNil(t, cleanup.Flags().Lookup("complete"))
	assert.Equal(t, "y", cleanup.Flags().Lookup("yes").Shorthand)
}

func TestVersion_Output(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer SetVersionInfo(origVersion, origCommit, origDate)

	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	var buf bytes.Buffer
	cmd := Version()
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	assert.Contains(t, buf.String(), "cost-onprem 1.2.3")
	assert.Contains(t, buf.String(), "commit: abc123")
	assert.Contains(t, buf.String(), "built:  2026-01-01")
}
