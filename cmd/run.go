package cmd

import (
	"context"
	"errors"
	"time"

	"betboard/metrics"
	"betboard/models"
	"betboard/service"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics endpoint, integrations and the bank deposit poller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.loadConfig()
			return opts.withApp(cmd, func(app *App) error {
				return Run(cmd.Context(), app, cfg.MetricsPort, cfg.DepositWindow, cfg.WithdrawWindow)
			})
		},
	}
}

// Run serves metrics and polls the bank feed until ctx is cancelled
func Run(ctx context.Context, app *App, metricsPort string, depositEvery, withdrawEvery time.Duration) error {
	log.Info("Starting betboard...")

	srv := metrics.StartServer(metricsPort, prometheus.DefaultGatherer, func(ctx context.Context) error {
		if !app.DB.Healthy(ctx) {
			return errors.New("database unreachable")
		}
		return nil
	})

	if app.Deposits != nil {
		go pollBank(ctx, "deposits", depositEvery, app.Deposits, service.DepositService.SyncDeposits)
		go pollBank(ctx, "withdrawals", withdrawEvery, app.Deposits, service.DepositService.SyncWithdrawals)
	} else {
		log.Info("Bank feed not configured, deposit polling disabled")
	}

	log.Info("Betboard is running")
	<-ctx.Done()

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Error shutting down metrics server")
	}

	log.Info("Shutdown completed")
	return nil
}

// pollBank runs one reconciliation per interval; the statement window equals the interval
func pollBank(ctx context.Context, kind string, interval time.Duration, deposits service.DepositService, sync syncFunc) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := sync(deposits, ctx)
			if err != nil {
				log.WithError(err).WithField("kind", kind).Error("Bank reconciliation failed")
				continue
			}
			logReport(kind, report)
		}
	}
}

func logReport(kind string, report *models.ReconcileReport) {
	entry := log.WithFields(log.Fields{
		"kind":       kind,
		"fetched":    report.Fetched,
		"applied":    report.Applied,
		"duplicates": report.Duplicates,
		"unmatched":  report.Unmatched,
		"rejected":   report.Rejected,
		"total":      report.Total.StringFixed(2),
	})
	if report.Fetched == 0 {
		entry.Debug("Bank reconciliation found nothing")
		return
	}
	entry.Info("Bank reconciliation completed")
}
