package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juliusm254/llm.c/checkpoint"
)

func newInspectCmd() *cobra.Command {
	var checkpointPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a checkpoint's header fields and parameter count",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := checkpoint.Load(checkpointPath, 0)
			if err != nil {
				return err
			}
			cfg := model.Config
			fmt.Printf("max_seq_len=%d vocab_size=%d num_layers=%d num_heads=%d channels=%d\n",
				cfg.MaxSeqLen, cfg.VocabSize, cfg.NumLayers, cfg.NumHeads, cfg.Channels)
			fmt.Printf("parameters=%d\n", model.NumParameters())
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "checkpoint file path")
	_ = cmd.MarkFlagRequired("checkpoint")

	return cmd
}
