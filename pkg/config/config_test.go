package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-labs/hyperdiff/pkg/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Positive(t, cfg.Match.MinHeight)
	assert.InDelta(t, 0.5, cfg.Match.SimThreshold, 0.001)
	assert.Equal(t, 100, cfg.Match.SizeThreshold)
	assert.True(t, cfg.Match.EnablePhase3)
	assert.Equal(t, config.DefaultCacheViewMaxEntries, cfg.Cache.ViewMaxEntries)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	configContent := `
match:
  min_height: 4
  sim_threshold: 0.7
  size_threshold: 200

cache:
  view_max_entries: 256
`

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(configContent)
	require.NoError(t, writeErr)

	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.NoError(t, loadErr)

	assert.Equal(t, 4, cfg.Match.MinHeight)
	assert.InDelta(t, 0.7, cfg.Match.SimThreshold, 0.001)
	assert.Equal(t, 200, cfg.Match.SizeThreshold)
	assert.Equal(t, 256, cfg.Cache.ViewMaxEntries)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("HYPERDIFF_MATCH_MIN_HEIGHT", "5")
	t.Setenv("HYPERDIFF_CACHE_VIEW_MAX_ENTRIES", "32")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Match.MinHeight)
	assert.Equal(t, 32, cfg.Cache.ViewMaxEntries)
}

func TestValidateConfig_RejectsBadWeights(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(`
match:
  label_weight: 0.9
  position_weight: 0.9
`)
	require.NoError(t, writeErr)
	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.ErrorIs(t, loadErr, config.ErrInvalidWeights)
	assert.Nil(t, cfg)
}

func TestValidateConfig_RejectsZeroCacheSize(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(`
cache:
  view_max_entries: 0
`)
	require.NoError(t, writeErr)
	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.ErrorIs(t, loadErr, config.ErrInvalidCacheSize)
	assert.Nil(t, cfg)
}

func TestLoadConfigFromFile_MinHeightZero_RoundTripsToOptions(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(`
match:
  min_height: 0
`)
	require.NoError(t, writeErr)
	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.NoError(t, loadErr)
	require.NotNil(t, cfg)

	assert.Equal(t, 0, cfg.Match.MinHeight)
	assert.Equal(t, 0, cfg.Options().MinHeight)
}

func TestValidateConfig_RejectsNegativeMinHeight(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "test-config-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(`
match:
  min_height: -1
`)
	require.NoError(t, writeErr)
	tmpFile.Close()

	cfg, loadErr := config.LoadConfig(tmpFile.Name())
	require.ErrorIs(t, loadErr, config.ErrInvalidMinHeight)
	assert.Nil(t, cfg)
}

func TestOptions_MapsFromMatchConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	opts := cfg.Options()

	assert.Equal(t, cfg.Match.MinHeight, opts.MinHeight)
	assert.InDelta(t, cfg.Match.SimThreshold, opts.SimThreshold, 0.0001)
	assert.Equal(t, cfg.Match.SizeThreshold, opts.SizeThreshold)
	assert.Equal(t, cfg.Match.EnablePhase3, opts.EnablePhase3)
}
