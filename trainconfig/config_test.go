package trainconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesReferenceDriver(t *testing.T) {
	cfg := Default()
	require.Equal(t, 4, cfg.BatchSize)
	require.Equal(t, 64, cfg.SeqLen)
	require.Equal(t, float32(3e-4), cfg.LearningRate)
	require.Equal(t, float32(0.9), cfg.Beta1)
	require.Equal(t, float32(0.999), cfg.Beta2)
	require.Equal(t, float32(0.0), cfg.WeightDecay)
}

func TestLoadOverridesOnlyFieldsPresentInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 8\nlearning_rate: 0.001\n"), 0o644))

	cfg := Default()
	require.NoError(t, Load(path, &cfg))

	require.Equal(t, 8, cfg.BatchSize)
	require.Equal(t, float32(0.001), cfg.LearningRate)
	// untouched fields keep their defaults
	require.Equal(t, 64, cfg.SeqLen)
	require.Equal(t, float32(0.999), cfg.Beta2)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	cfg := Default()
	err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	require.Error(t, err)
}
