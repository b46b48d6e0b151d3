package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendkrig/pkg/variogram"
)

// TestDefaultConfig verifies that the defaults describe a runnable setup
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "spherical", cfg.Variogram.Type)
	assert.Equal(t, 2.0, cfg.Kriging.P)
	assert.Greater(t, cfg.Kriging.NumCores, 0)

	s := cfg.Surface()
	assert.Equal(t, 100, s.NI)
	assert.Equal(t, 100, s.NJ)
	assert.Len(t, s.Data, 100*100)
}

// TestLoadMissingFile verifies that a missing file yields the defaults
func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Grid, cfg.Grid)
}

// TestSaveAndLoad verifies a round trip through a nested directory
func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "trendkrig.yaml")

	cfg := DefaultConfig()
	cfg.Grid.NI = 40
	cfg.Variogram.Type = "matern52"
	cfg.Kriging.KrigAll = true
	cfg.Output.Image = "out.png"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 40, loaded.Grid.NI)
	assert.Equal(t, "matern52", loaded.Variogram.Type)
	assert.True(t, loaded.Kriging.KrigAll)
	assert.Equal(t, "out.png", loaded.Output.Image)
}

// TestPartialFileKeepsDefaults verifies that absent keys keep their default values
func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	content := "grid:\n  ni: 12\n  nj: 8\nvariogram:\n  type: exp\n  rangeX: 3\n  rangeY: 6\n  azimuth: 90\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Grid.NI)
	assert.Equal(t, 1.0, cfg.Grid.DX)
	assert.Equal(t, 2.0, cfg.Kriging.P)

	v, err := cfg.VariogramModel()
	require.NoError(t, err)
	assert.Equal(t, variogram.Exponential, v.Type())

	// 90 degrees swaps the axes: the long range now runs along x
	assert.InDelta(t, math.Exp(-3), v.Corr(6, 0), 1e-9)
}

// TestLoadInvalidYAML verifies that parse errors are reported
func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid: [1, 2"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

// TestValidate verifies that every invalid field is reported
func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grid.NI = 0
	cfg.Grid.DY = -1
	cfg.Kriging.P = 0
	cfg.Kriging.Folds = 1
	cfg.Variogram.Type = "linear"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"grid size", "grid spacing", "halo size", "folds", "linear"} {
		assert.Contains(t, err.Error(), want)
	}
}

// TestKrigingOptions verifies the mapping to kriging options
func TestKrigingOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kriging.P = 3
	cfg.Kriging.GetResiduals = true
	cfg.Kriging.UseIndexGrid = true
	cfg.Kriging.NumCores = 3

	opts := cfg.KrigingOptions()
	assert.Equal(t, 3.0, opts.P)
	assert.True(t, opts.GetResiduals)
	assert.True(t, opts.UseIndexGrid)
	assert.False(t, opts.KrigAll)
	assert.Equal(t, 3, opts.Workers)

	cfg.Kriging.NumCores = 0
	assert.Greater(t, cfg.KrigingOptions().Workers, 0)
}

// TestCreateDefaultConfigFile verifies the generated file loads back
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
