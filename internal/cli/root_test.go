package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/isaac/internal/ir"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "isaac", cmd.Use)
	assert.Contains(t, cmd.Long, "EXTERNAL")
	assert.Equal(t, ir.LibraryVersion, cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"inspect"},
		{"merge"},
		{"latest"},
		{"test"},
		{"config"},
		{"config", "validate"},
		{"config", "show"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
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

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestMergeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	mergeCmd, _, err := cmd.Find([]string{"merge"})
	require.NoError(t, err)

	outputFlag := mergeCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
	// --output is required, so default is empty
	assert.Equal(t, "", outputFlag.DefValue)
}

func TestLatestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	latestCmd, _, err := cmd.Find([]string{"latest"})
	require.NoError(t, err)

	for _, name := range []string{"path", "time", "precedence", "status"} {
		assert.NotNil(t, latestCmd.Flags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "PATH", latestCmd.Flags().Lookup("precedence").DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	require.NotNil(t, testCmd.Flags().Lookup("filter"))
	require.NotNil(t, testCmd.Flags().Lookup("golden-dir"))
}

func TestCommandHelp(t *testing.T) {
	cmd := NewRootCommand()

	assert.Contains(t, cmd.Short, "isaac")
	assert.Contains(t, cmd.Long, "chronicles")
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "config", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
