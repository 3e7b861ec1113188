package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicecore/internal/config"
)

func TestRunConfigInitWritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(oldWd)) }()

	require.NoError(t, runConfigInit(configInitCmd, nil))

	data, err := os.ReadFile(filepath.Join(dir, ".slice", "config.json"))
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, config.DefaultConfig().Slice.DefaultMaxCards, cfg.Slice.DefaultMaxCards)
}

func TestRunConfigShowPrintsWithoutError(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(oldWd)) }()

	require.NoError(t, runConfigShow(configShowCmd, nil))
}
