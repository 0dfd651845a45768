package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "huf", cmd.Use)
	assert.Contains(t, cmd.Long, "discarded")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "sweep", "validate", "runs", "replay", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestRunsSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"list", "show"} {
		sub, _, err := cmd.Find([]string{"runs", name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestJobFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "sweep"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)

		for _, flag := range []string{"plan", "data", "tau", "tau-local", "exclusion", "budget-type",
			"seed", "metric", "out", "db", "taus", "top-k", "parallelism"} {
			assert.NotNil(t, sub.Flags().Lookup(flag), "%s --%s", name, flag)
		}
	}

	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.NotNil(t, runCmd.Flags().Lookup("sweep"))
	assert.Equal(t, "o", runCmd.Flags().Lookup("out").Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	_, err := execute(t, cmd, "--format", "xml", "validate", "x.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}
