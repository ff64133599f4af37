// Package storecmder provides the store command for ingesting one memory.
package storecmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/cmd/recall/runtime"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/logger"
)

const storeLongDesc string = `Store one conversation turn as a memory.

The text is deduplicated against existing memories, embedded for semantic
search, and run through pattern extraction so structured facts (location,
preferences, identity) become queryable cards. Storing the exact same text
twice reinforces the existing memory instead of duplicating it.

Use --happened-at to record when the remembered event occurred; it is kept
as context but never changes which value wins a conflict.

Examples:
  recall store "我现在住在北京朝阳区"
  recall store "I love drinking coffee" --scope alice
  recall store "moved to Berlin" --happened-at 2026-07-01T00:00:00Z`

const storeShortDesc string = "Store a memory"

type storeCommander struct {
	text       string
	scope      string
	happenedAt string
	sqlitePath string

	debug  bool
	viper  *viper.Viper
	logger *zap.Logger
}

func NewStoreCmd() *cobra.Command {
	cmder := &storeCommander{}

	cmd := &cobra.Command{
		Use:   "store <text>",
		Short: storeShortDesc,
		Long:  storeLongDesc,
		Args:  cobra.ExactArgs(1),
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
			})

			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.text = args[0]

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
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagVectorPersist, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, new(string))
	cmd.Flags().StringVar(&cmder.happenedAt, "happened-at", "", "When the event occurred (RFC 3339)")

	return cmd
}

func (c *storeCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	var happenedAt time.Time
	if c.happenedAt != "" {
		parsed, err := time.Parse(time.RFC3339, c.happenedAt)
		if err != nil {
			return fmt.Errorf("invalid --happened-at value %q: %w", c.happenedAt, err)
		}
		happenedAt = parsed
	}

	rt, err := runtime.Build(runtime.OptionsFromViper(c.viper), c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	id, err := rt.Engine.StoreTurn(cmd.Context(), c.scope, c.text, happenedAt)
	if err != nil {
		return fmt.Errorf("storing memory: %w", err)
	}

	fmt.Printf("\n  %s %s %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render("stored"),
		cliui.DimStyle.Render(id),
	)

	return nil
}
