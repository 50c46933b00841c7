package cmd

import (
	"context"

	"betboard/models"
	"betboard/service"

	"github.com/spf13/cobra"
)

func newDepositsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposits",
		Short: "Reconcile bank transfers with user balances",
	}

	cmd.AddCommand(newSyncCommand(opts, "sync", "Credit incoming transfers", service.DepositService.SyncDeposits))
	cmd.AddCommand(newSyncCommand(opts, "withdrawals", "Debit outgoing transfers", service.DepositService.SyncWithdrawals))

	return cmd
}

type syncFunc func(s service.DepositService, ctx context.Context) (*models.ReconcileReport, error)

func newSyncCommand(opts *RootOptions, use, short string, sync syncFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				if app.Deposits == nil {
					return ErrBankFeedDisabled
				}
				report, err := sync(app.Deposits, cmd.Context())
				if err != nil {
					return err
				}
				return opts.printer(cmd).report(use, report)
			})
		},
	}
}
