// Package backfillcmder provides the `recall backfill` CLI command.
package backfillcmder

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/cmd/recall/runtime"
	"github.com/papercomputeco/recall/pkg/backfill"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/logger"
)

const backfillLongDesc string = `Re-run extraction over a scope's stored memories.

Scans every memory in the scope, re-extracts structured cards with the
current rule engine for memories an older engine version processed, and
repairs embeddings for memories stored while the embedding provider was
down. Already-processed memories are skipped.

Examples:
  recall backfill
  recall backfill --scope alice --verbose
  recall backfill --workers 8 --queue-size 512`

const backfillShortDesc string = "Re-run extraction over stored memories"

type backfillCommander struct {
	scope     string
	workers   uint
	queueSize uint
	verbose   bool

	debug  bool
	viper  *viper.Viper
	logger *zap.Logger
}

// NewBackfillCmd creates the backfill cobra command.
func NewBackfillCmd() *cobra.Command {
	cmder := &backfillCommander{}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: backfillShortDesc,
		Long:  backfillLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.DefaultFlagSet(), []string{
				config.FlagSQLite,
				config.FlagVectorPersist,
				config.FlagEmbeddingProv,
				config.FlagEmbeddingTgt,
				config.FlagEmbeddingModel,
				config.FlagWorkers,
				config.FlagQueueSize,
			})

			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.scope, err = cmd.Flags().GetString("scope")
			if err != nil {
				return fmt.Errorf("could not get scope flag: %w", err)
			}

			return cmder.run(cmd)
		},
	}

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagSQLite, new(string))
	config.AddStringFlag(cmd, fs, config.FlagVectorPersist, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, new(string))
	config.AddUintFlag(cmd, fs, config.FlagWorkers, &cmder.workers)
	config.AddUintFlag(cmd, fs, config.FlagQueueSize, &cmder.queueSize)
	cmd.Flags().BoolVarP(&cmder.verbose, "verbose", "v", false, "Show per-memory progress")

	return cmd
}

func (c *backfillCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	rt, err := runtime.Build(runtime.OptionsFromViper(c.viper), c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	backfiller := backfill.NewBackfiller(&backfill.Config{
		Store:      rt.Store,
		Vectors:    rt.Vectors,
		Embedder:   rt.Embedder,
		Extractor:  rt.Extractor,
		Applier:    rt.Applier,
		Tracker:    rt.Tracker,
		NumWorkers: c.viper.GetUint("backfill.workers"),
		QueueSize:  c.viper.GetUint("backfill.queue_size"),
		Logger:     c.logger,
	})

	var progress chan backfill.Progress
	done := make(chan struct{})

	if c.verbose {
		progress = make(chan backfill.Progress, 64)
		go func() {
			defer close(done)
			for p := range progress {
				if p.Err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s %s %v\n", cliui.FailMark, p.MemoryID, p.Err)
					continue
				}

				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s %s\n",
					cliui.SuccessMark,
					p.MemoryID,
					cliui.DimStyle.Render(fmt.Sprintf("cards=%d embedding_repaired=%t", p.CardsCreated, p.EmbeddingRepaired)),
				)
			}
		}()
	} else {
		close(done)
	}

	result, err := backfiller.Run(cmd.Context(), c.scope, progress)
	if progress != nil {
		close(progress)
		<-done
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"\n  Scanned %d memories: %d extracted, %d cards created, %d embeddings repaired, %d skipped, %d failed\n\n",
		result.Scanned, result.Extracted, result.CardsCreated, result.EmbeddingsRepaired, result.Skipped, result.Failed,
	)

	return nil
}
