// Command gpt2train trains, samples from, and inspects GPT-2-family
// checkpoints produced by the gpt2 package.
package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runID = uuid.New()

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("run_id", runID.String()).Logger()

	root := &cobra.Command{
		Use:   "gpt2train",
		Short: "Train, sample from, and inspect GPT-2-family checkpoints",
	}
	root.AddCommand(newTrainCmd())
	root.AddCommand(newSampleCmd())
	root.AddCommand(newInspectCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
