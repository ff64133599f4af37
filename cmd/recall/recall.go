// Package recallcmder
package recallcmder

import (
	"github.com/spf13/cobra"

	backfillcmder "github.com/papercomputeco/recall/cmd/recall/backfill"
	cardcmder "github.com/papercomputeco/recall/cmd/recall/card"
	configcmder "github.com/papercomputeco/recall/cmd/recall/config"
	initcmder "github.com/papercomputeco/recall/cmd/recall/init"
	searchcmder "github.com/papercomputeco/recall/cmd/recall/search"
	storecmder "github.com/papercomputeco/recall/cmd/recall/store"
	versioncmder "github.com/papercomputeco/recall/cmd/version"
)

const recallLongDesc string = `Recall is a long-term memory engine for assistants.

Store conversation turns and recall them later:
  recall store "I live in Beijing"     Store one memory
  recall search "where do I live"      Fused structured/semantic/keyword search
  recall card get user location        Read the current structured value
  recall backfill                      Re-run extraction over stored memories`

const recallShortDesc string = "Recall - Assistant Memory"

func NewRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: recallShortDesc,
		Long:  recallLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .recall/ config directory")
	cmd.PersistentFlags().String("scope", "default", "Memory scope (tenant/user partition)")

	// Add subcommands
	cmd.AddCommand(storecmder.NewStoreCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(cardcmder.NewCardCmd())
	cmd.AddCommand(backfillcmder.NewBackfillCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
