package main

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/juliusm254/llm.c/checkpoint"
	"github.com/juliusm254/llm.c/gpt2"
	"github.com/juliusm254/llm.c/rng"
	"github.com/juliusm254/llm.c/sampler"
	"github.com/juliusm254/llm.c/server"
	"github.com/juliusm254/llm.c/tokendata"
	"github.com/juliusm254/llm.c/trainconfig"
)

func newTrainCmd() *cobra.Command {
	var (
		configPath string
		overrides  trainconfig.TrainConfig
		serve      bool
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the forward/backward/AdamW training loop over a checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := trainconfig.Default()
			if configPath != "" {
				if err := trainconfig.Load(configPath, &cfg); err != nil {
					return err
				}
			}
			applyTrainOverrides(&cfg, cmd, &overrides)
			return runTrain(cfg, serve, listenAddr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML training config")
	cmd.Flags().StringVar(&overrides.CheckpointPath, "checkpoint", "", "checkpoint file path")
	cmd.Flags().StringVar(&overrides.TrainTokensPath, "train-tokens", "", "training token file path")
	cmd.Flags().StringVar(&overrides.ValTokensPath, "val-tokens", "", "validation token file path")
	cmd.Flags().IntVar(&overrides.NumSteps, "steps", 0, "number of training steps (unset = use config value)")
	cmd.Flags().BoolVar(&serve, "serve", false, "start the status/sample HTTP server alongside training")
	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "address for --serve")

	return cmd
}

// applyTrainOverrides copies every flag the user actually set on the
// command line over cfg, leaving config-file or default values alone
// otherwise.
func applyTrainOverrides(cfg *trainconfig.TrainConfig, cmd *cobra.Command, o *trainconfig.TrainConfig) {
	if cmd.Flags().Changed("checkpoint") {
		cfg.CheckpointPath = o.CheckpointPath
	}
	if cmd.Flags().Changed("train-tokens") {
		cfg.TrainTokensPath = o.TrainTokensPath
	}
	if cmd.Flags().Changed("val-tokens") {
		cfg.ValTokensPath = o.ValTokensPath
	}
	if cmd.Flags().Changed("steps") {
		cfg.NumSteps = o.NumSteps
	}
}

func runTrain(cfg trainconfig.TrainConfig, serve bool, listenAddr string) error {
	if cfg.CheckpointPath == "" {
		return fmt.Errorf("gpt2train: --checkpoint is required")
	}
	if cfg.TrainTokensPath == "" {
		return fmt.Errorf("gpt2train: --train-tokens is required")
	}

	model, err := checkpoint.Load(cfg.CheckpointPath, cfg.NumWorkers)
	if err != nil {
		return err
	}
	log.Info().
		Int("params", model.NumParameters()).
		Int("vocab_size", model.Config.VocabSize).
		Int("layers", model.Config.NumLayers).
		Msg("loaded checkpoint")

	trainLoader, err := tokendata.NewLoader(cfg.TrainTokensPath, cfg.BatchSize, cfg.SeqLen)
	if err != nil {
		return err
	}

	var valLoader *tokendata.Loader
	if cfg.ValTokensPath != "" {
		valLoader, err = tokendata.NewLoader(cfg.ValTokensPath, cfg.BatchSize, cfg.SeqLen)
		if err != nil {
			return err
		}
	}

	var mu sync.Mutex
	var srv *server.Server
	if serve {
		srv = server.New(model, &mu, runID)
		gin.SetMode(gin.ReleaseMode)
		engine := gin.New()
		srv.RegisterRoutes(engine)
		go func() {
			if err := engine.Run(listenAddr); err != nil {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
		log.Info().Str("addr", listenAddr).Msg("status server listening")
	}

	r := rng.New(cfg.RNGSeed)

	for step := 1; step <= cfg.NumSteps; step++ {
		mu.Lock()
		inputs, targets, err := trainLoader.NextBatch()
		if err != nil {
			mu.Unlock()
			return err
		}
		if err := model.Forward(inputs, targets, cfg.BatchSize, cfg.SeqLen); err != nil {
			mu.Unlock()
			return err
		}
		model.ZeroGrad()
		if err := model.Backward(); err != nil {
			mu.Unlock()
			return err
		}
		if err := model.Update(cfg.LearningRate, cfg.Beta1, cfg.Beta2, cfg.Eps, cfg.WeightDecay); err != nil {
			mu.Unlock()
			return err
		}
		meanLoss := model.MeanLoss
		if srv != nil {
			srv.ReportStep(step, meanLoss)
		}
		mu.Unlock()

		log.Info().Int("step", step).Float32("train_loss", meanLoss).Msg("step complete")

		if valLoader != nil && cfg.ValEvery > 0 && step%cfg.ValEvery == 0 {
			if err := runValidation(model, valLoader, cfg, &mu); err != nil {
				return err
			}
		}

		if cfg.SampleEvery > 0 && step%cfg.SampleEvery == 0 {
			mu.Lock()
			tokens, err := sampler.GenerateGreedyCDF(model, inputs[:cfg.SeqLen], cfg.SampleLen, r)
			mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Msg("sample generation failed")
			} else {
				log.Info().Int("step", step).Ints32("tokens", tokens).Msg("sample")
			}
		}
	}

	return checkpoint.Save(cfg.CheckpointPath, model)
}

func runValidation(model *gpt2.Model, loader *tokendata.Loader, cfg trainconfig.TrainConfig, mu *sync.Mutex) error {
	loader.Reset()
	var sum float32
	n := cfg.ValBatches
	if n <= 0 {
		n = 1
	}
	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		inputs, targets, err := loader.NextBatch()
		if err != nil {
			return err
		}
		if err := model.Forward(inputs, targets, cfg.BatchSize, cfg.SeqLen); err != nil {
			return err
		}
		sum += model.MeanLoss
	}
	log.Info().Float32("val_loss", sum/float32(n)).Msg("validation")
	return nil
}
