// Package trainconfig defines the training-run configuration, loadable
// from an optional YAML file and overridable by CLI flags.
package trainconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TrainConfig mirrors the reference train_gpt2.c driver's defaults.
type TrainConfig struct {
	CheckpointPath  string `yaml:"checkpoint_path"`
	TrainTokensPath string `yaml:"train_tokens_path"`
	ValTokensPath   string `yaml:"val_tokens_path"`

	BatchSize int `yaml:"batch_size"`
	SeqLen    int `yaml:"seq_len"`

	NumSteps    int `yaml:"num_steps"`
	ValEvery    int `yaml:"val_every"`
	ValBatches  int `yaml:"val_batches"`
	SampleEvery int `yaml:"sample_every"`
	SampleLen   int `yaml:"sample_len"`

	LearningRate float32 `yaml:"learning_rate"`
	Beta1        float32 `yaml:"beta1"`
	Beta2        float32 `yaml:"beta2"`
	Eps          float32 `yaml:"eps"`
	WeightDecay  float32 `yaml:"weight_decay"`

	RNGSeed    uint64 `yaml:"rng_seed"`
	NumWorkers int    `yaml:"num_workers"`
}

// Default returns the reference driver's defaults; every field a loaded
// YAML file leaves unset keeps these values.
func Default() TrainConfig {
	return TrainConfig{
		BatchSize:    4,
		SeqLen:       64,
		NumSteps:     20,
		ValEvery:     20,
		ValBatches:   5,
		SampleEvery:  20,
		SampleLen:    64,
		LearningRate: 3e-4,
		Beta1:        0.9,
		Beta2:        0.999,
		Eps:          1e-8,
		WeightDecay:  0.0,
		RNGSeed:      1337,
		NumWorkers:   0,
	}
}

// Load reads a YAML file into cfg, keeping every field the file omits at
// whatever value cfg already held (Default() is the usual starting
// point).
func Load(path string, cfg *TrainConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("trainconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("trainconfig: parse %s: %w", path, err)
	}
	return nil
}
