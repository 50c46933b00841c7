package cmd

import (
	"betboard/service"

	"github.com/spf13/cobra"
)

func newStakeCommand(opts *RootOptions) *cobra.Command {
	var (
		params service.AdmitParams
		amount string
	)

	cmd := &cobra.Command{
		Use:     "stake",
		Short:   "Place a stake on an event outcome",
		Example: "  betboard stake --user bob --action 12 --amount 25",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if params.Stake, err = parseAmount("amount", amount); err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				participation, err := app.Participation.Admit(cmd.Context(), params)
				if err != nil {
					return err
				}
				return opts.printer(cmd).participation(participation)
			})
		},
	}

	cmd.Flags().StringVar(&params.Username, "user", "", "username placing the stake")
	cmd.Flags().Int64Var(&params.ActionID, "action", 0, "outcome id")
	cmd.Flags().StringVar(&amount, "amount", "", "stake amount")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
