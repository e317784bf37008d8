package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"resolve", "match", "registry", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "catalog-resolver", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestResolveCommand_Flags(t *testing.T) {
	for _, name := range []string{"entries", "catalog", "out", "metrics-file"} {
		require.NotNil(t, resolveCmd.Flags().Lookup(name), "resolve command should have --%s flag", name)
	}
}

func TestMatchCommand_Flags(t *testing.T) {
	flag := matchCmd.Flags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestRegistryCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range registryCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["seed"])

	flag := registryListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}
