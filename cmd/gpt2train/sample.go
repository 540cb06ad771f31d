package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juliusm254/llm.c/checkpoint"
	"github.com/juliusm254/llm.c/rng"
	"github.com/juliusm254/llm.c/sampler"
)

func newSampleCmd() *cobra.Command {
	var (
		checkpointPath string
		prompt         []int
		n              int
		seed           uint64
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Load a checkpoint and print sampled token ids to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := checkpoint.Load(checkpointPath, 0)
			if err != nil {
				return err
			}

			promptTokens := make([]int32, len(prompt))
			for i, t := range prompt {
				promptTokens[i] = int32(t)
			}
			if len(promptTokens) == 0 {
				promptTokens = []int32{0}
			}

			r := rng.New(seed)
			tokens, err := sampler.GenerateGreedyCDF(model, promptTokens, n, r)
			if err != nil {
				return err
			}
			for i, t := range tokens {
				if i > 0 {
					fmt.Print(" ")
				}
				fmt.Print(t)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "checkpoint file path")
	cmd.Flags().IntSliceVar(&prompt, "prompt", nil, "comma-separated prompt token ids")
	cmd.Flags().IntVar(&n, "n", 32, "number of tokens to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 1337, "xorshift64 seed")
	_ = cmd.MarkFlagRequired("checkpoint")

	return cmd
}
