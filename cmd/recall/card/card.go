// Package cardcmder provides the card command for inspecting structured
// memory cards and their version history.
package cardcmder

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/recall/cmd/recall/runtime"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/logger"
)

const cardLongDesc string = `Inspect structured memory cards.

Cards are entity/slot/value triples extracted from stored memories. Each
slot holds exactly one active value; superseded values stay in the version
chain and remain queryable through history.

Use subcommands to read the current value or walk the chain:
  recall card get <entity> <slot>        Current active value
  recall card history <entity> <slot>    Full version chain, newest first

Examples:
  recall card get user location
  recall card history user location --scope alice`

const cardShortDesc string = "Inspect structured memory cards"

func NewCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: cardShortDesc,
		Long:  cardLongDesc,
	}

	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// initRuntimeViper resolves the viper configuration and binds the storage
// flags shared by the card subcommands.
func initRuntimeViper(cmd *cobra.Command) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}

	config.BindRegisteredFlags(v, cmd, config.DefaultFlagSet(), []string{
		config.FlagSQLite,
		config.FlagVectorPersist,
		config.FlagEmbeddingProv,
		config.FlagEmbeddingTgt,
		config.FlagEmbeddingModel,
	})

	return v, nil
}

func addRuntimeFlags(cmd *cobra.Command) {
	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagSQLite, new(string))
	config.AddStringFlag(cmd, fs, config.FlagVectorPersist, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, new(string))
}

func buildRuntime(cmd *cobra.Command, v *viper.Viper) (*runtime.Runtime, string, error) {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, "", fmt.Errorf("could not get debug flag: %w", err)
	}

	scope, err := cmd.Flags().GetString("scope")
	if err != nil {
		return nil, "", fmt.Errorf("could not get scope flag: %w", err)
	}

	rt, err := runtime.Build(runtime.OptionsFromViper(v), logger.NewLogger(debug))
	if err != nil {
		return nil, "", err
	}

	return rt, scope, nil
}
