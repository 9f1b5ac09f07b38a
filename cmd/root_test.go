package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()

	assert.Equal(t, "ghcr-prune", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	expectedKeywords := []string{
		"artifact",
		"ghcr.io",
		"attestations",
	}

	for _, keyword := range expectedKeywords {
		assert.Contains(t, cmd.Long, keyword)
	}
}

func TestRootCommandHasExpectedSubcommands(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()

	for _, name := range []string{"run", "list", "graph", "tag", "completion"} {
		_, _, err := cmd.Find([]string{name})
		require.NoError(t, err, "expected %q subcommand to be registered", name)
	}
}

func TestRootCommandHelp(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--help"})

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()

	assert.NoError(t, err, "Expected --help to succeed")
}

func TestRootCommandVersion(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()

	assert.NotEmpty(t, cmd.Version, "cmd.Version should not be empty")

	validVersion := cmd.Version == "dev" || strings.HasPrefix(cmd.Version, "v")
	assert.True(t, validVersion, "Expected version to be 'dev' or start with 'v', got %q", cmd.Version)
}

func TestRootCommandOutputIncludesVersion(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()
	cmd.SetArgs([]string{})

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	_ = cmd.Execute()

	output := stdout.String()
	assert.Contains(t, output, "ghcr-prune version", "Expected root command output to contain version")
}

func TestRootCommandHasQuietFlag(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()

	quietFlag := cmd.PersistentFlags().Lookup("quiet")
	assert.NotNil(t, quietFlag, "Expected --quiet persistent flag to exist")

	qFlag := cmd.PersistentFlags().ShorthandLookup("q")
	assert.NotNil(t, qFlag, "Expected -q shorthand for --quiet flag")
}
