package gpt2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tinyConfig() Config {
	return Config{
		MaxSeqLen: 8,
		VocabSize: 12,
		NumLayers: 2,
		NumHeads:  2,
		Channels:  4,
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, tinyConfig().Validate())

	bad := tinyConfig()
	bad.Channels = 5
	require.Error(t, bad.Validate())

	bad = tinyConfig()
	bad.NumHeads = 0
	require.Error(t, bad.Validate())

	bad = tinyConfig()
	bad.VocabSize = 0
	require.Error(t, bad.Validate())
}

func TestConfigHeadSize(t *testing.T) {
	require.Equal(t, 2, tinyConfig().HeadSize())
}
