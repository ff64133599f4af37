package cardcmder

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/recall/pkg/cliui"
)

const getLongDesc string = `Get the current active value for an entity/slot.

A slot with no active value prints nothing and exits successfully; an
unset slot is a normal state, not an error.

Examples:
  recall card get user location
  recall card get user user_type --scope alice`

const getShortDesc string = "Get the active card for an entity/slot"

func newGetCmd() *cobra.Command {
	var v *viper.Viper

	cmd := &cobra.Command{
		Use:   "get <entity> <slot>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			v, err = initRuntimeViper(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, v, args[0], args[1])
		},
	}

	addRuntimeFlags(cmd)

	return cmd
}

func runGet(cmd *cobra.Command, v *viper.Viper, entity, slot string) error {
	rt, scope, err := buildRuntime(cmd, v)
	if err != nil {
		return err
	}
	defer rt.Close()

	card, err := rt.Engine.GetCard(cmd.Context(), scope, entity, slot)
	if err != nil {
		return err
	}

	if card == nil {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("no active value for %s.%s", entity, slot)))
		return nil
	}

	fmt.Printf("\n  %s  %s\n",
		cliui.KeyStyle.Render(entity+"."+slot),
		cliui.ValueStyle.Render(card.Value),
	)
	fmt.Printf("  %s\n\n",
		cliui.DimStyle.Render(fmt.Sprintf("confidence %.2f, %s, since %s",
			card.Confidence, card.Relation, card.UpdatedAt.Format("2006-01-02 15:04"))),
	)

	return nil
}
