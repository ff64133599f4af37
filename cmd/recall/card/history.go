package cardcmder

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/recall/pkg/cliui"
)

const historyLongDesc string = `Show the full version chain for an entity/slot.

Lists every card ever written for the slot, newest first, including the
superseded and retracted versions that are no longer active.

Examples:
  recall card history user location
  recall card history user preference --scope alice`

const historyShortDesc string = "Show the version chain for an entity/slot"

func newHistoryCmd() *cobra.Command {
	var v *viper.Viper

	cmd := &cobra.Command{
		Use:   "history <entity> <slot>",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			v, err = initRuntimeViper(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, v, args[0], args[1])
		},
	}

	addRuntimeFlags(cmd)

	return cmd
}

func runHistory(cmd *cobra.Command, v *viper.Viper, entity, slot string) error {
	rt, scope, err := buildRuntime(cmd, v)
	if err != nil {
		return err
	}
	defer rt.Close()

	history, err := rt.Engine.CardHistory(cmd.Context(), scope, entity, slot)
	if err != nil {
		return err
	}

	if len(history) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("no history for %s.%s", entity, slot)))
		return nil
	}

	fmt.Printf("\n  %s\n\n", cliui.KeyStyle.Render(entity+"."+slot))

	for _, card := range history {
		marker := cliui.DimStyle.Render("○")
		if card.Active {
			marker = cliui.SuccessMark
		}

		fmt.Printf("  %s %s  %s\n",
			marker,
			cliui.ValueStyle.Render(card.Value),
			cliui.DimStyle.Render(fmt.Sprintf("%s, %s", card.Relation, card.CreatedAt.Format("2006-01-02 15:04"))),
		)
	}

	fmt.Println()

	return nil
}
