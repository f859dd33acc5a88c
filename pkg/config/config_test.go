package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDefaultConfig checks the shipped defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "gridrec", cfg.Reconstruction.Method)
	require.Equal(t, 1, cfg.Reconstruction.Iterations)
	require.Equal(t, 0, cfg.Reconstruction.GridSize)
	require.Equal(t, 4, cfg.Gridrec.KernelWidth)
	require.Equal(t, 2.0, cfg.Gridrec.Oversampling)
	require.Equal(t, "ramp", cfg.Gridrec.Filter)
	require.Equal(t, 0.5, cfg.Center.Tolerance)
	require.Positive(t, cfg.Processing.NumWorkers)
	require.False(t, cfg.Output.Verbose)
}

// TestLoadMissingFile falls back to defaults without an error.
func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Reconstruction, cfg.Reconstruction)
}

// TestSaveLoadRoundTrip writes a modified configuration and reads it
// back unchanged.
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "tomogo.yaml")

	cfg := DefaultConfig()
	cfg.Reconstruction.Method = "mlem"
	cfg.Reconstruction.Iterations = 8
	cfg.Processing.NumWorkers = 3
	cfg.Gridrec.Filter = "shepp"
	cfg.Output.Verbose = true

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

// TestLoadPartialFile keeps defaults for keys the file does not set.
func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	body := "reconstruction:\n  method: art\n  iterations: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "art", cfg.Reconstruction.Method)
	require.Equal(t, 5, cfg.Reconstruction.Iterations)
	require.Equal(t, "ramp", cfg.Gridrec.Filter, "unset keys keep their defaults")
}

// TestLoadBadFile reports a parse error.
func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

// TestCreateDefaultConfigFile materializes a loadable default file.
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}
