package service

import (
	"context"
	"fmt"
	"time"

	"betboard/events"
	"betboard/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DepositConfig holds the look-back windows for bank statement polling
type DepositConfig struct {
	DepositWindow  time.Duration
	WithdrawWindow time.Duration
}

// depositService implements the DepositService interface
type depositService struct {
	uowFactory UnitOfWorkFactory
	feed       BankFeed
	config     DepositConfig
	now        func() time.Time
}

// NewDepositService creates a new deposit reconciliation service
func NewDepositService(uowFactory UnitOfWorkFactory, feed BankFeed, config DepositConfig, now func() time.Time) DepositService {
	if now == nil {
		now = time.Now
	}
	return &depositService{
		uowFactory: uowFactory,
		feed:       feed,
		config:     config,
		now:        now,
	}
}

type reconcileOutcome int

const (
	outcomeApplied reconcileOutcome = iota
	outcomeDuplicate
	outcomeUnmatched
	outcomeRejected
)

// SyncDeposits credits incoming transfers from the deposit window to the
// matching verified users
func (s *depositService) SyncDeposits(ctx context.Context) (*models.ReconcileReport, error) {
	return s.sync(ctx, s.config.DepositWindow, models.TransactionTypeDeposit)
}

// SyncWithdrawals debits outgoing transfers from the withdrawal window from
// the matching verified users
func (s *depositService) SyncWithdrawals(ctx context.Context) (*models.ReconcileReport, error) {
	return s.sync(ctx, s.config.WithdrawWindow, models.TransactionTypeWithdrawal)
}

func (s *depositService) sync(ctx context.Context, window time.Duration, txType models.TransactionType) (*models.ReconcileReport, error) {
	to := s.now()
	from := to.Add(-window)

	items, err := s.feed.Statement(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bank statement: %w", err)
	}

	report := &models.ReconcileReport{Total: decimal.Zero}
	for _, item := range items {
		if item.IsDeposit() != (txType == models.TransactionTypeDeposit) || item.Amount.IsZero() {
			continue
		}
		report.Fetched++

		outcome, err := s.reconcile(ctx, item, txType)
		if err != nil {
			return report, err
		}
		switch outcome {
		case outcomeApplied:
			report.Applied++
			report.Total = report.Total.Add(item.Amount.Abs())
		case outcomeDuplicate:
			report.Duplicates++
		case outcomeUnmatched:
			report.Unmatched++
		case outcomeRejected:
			report.Rejected++
		}
	}

	if report.Fetched > 0 {
		log.WithFields(log.Fields{
			"type":       txType,
			"fetched":    report.Fetched,
			"applied":    report.Applied,
			"duplicates": report.Duplicates,
			"unmatched":  report.Unmatched,
			"rejected":   report.Rejected,
			"total":      report.Total.StringFixed(2),
		}).Info("Bank statement reconciled")
	}
	return report, nil
}

// reconcile applies a single statement item in its own unit of work
func (s *depositService) reconcile(ctx context.Context, item *models.BankTransaction, txType models.TransactionType) (reconcileOutcome, error) {
	fields := log.Fields{"external_id": item.ExternalID, "amount": item.Amount.StringFixed(2)}

	firstName, lastName, ok := item.PayerName()
	if !ok {
		log.WithFields(fields).WithField("description", item.Description).Warn("Bank transaction description has no payer name")
		return outcomeUnmatched, nil
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, storeError("begin reconcile", err, fields)
	}
	defer uow.Rollback()

	exists, err := uow.BankTransactionRepository().Exists(ctx, item.ExternalID)
	if err != nil {
		return 0, storeError("check bank transaction", err, fields)
	}
	if exists {
		return outcomeDuplicate, nil
	}

	match, err := uow.UserRepository().FindVerifiedByName(ctx, firstName, lastName)
	if err != nil {
		return 0, storeError("find verified user", err, fields)
	}
	if match == nil {
		log.WithFields(fields).WithFields(log.Fields{
			"first_name": firstName,
			"last_name":  lastName,
		}).Warn("No verified user matches bank transaction")
		return outcomeUnmatched, nil
	}

	user, err := uow.UserRepository().GetByUsernameForUpdate(ctx, match.Username)
	if err != nil {
		return 0, storeError("lock user", err, fields)
	}
	if user == nil {
		return outcomeUnmatched, nil
	}
	fields["username"] = user.Username

	if !user.Balance.Add(item.Amount).GreaterThanOrEqual(decimal.Zero) {
		log.WithFields(fields).WithField("balance", user.Balance.StringFixed(2)).Warn("Withdrawal exceeds user balance")
		return outcomeRejected, nil
	}

	item.Username = &user.Username
	item.ProcessedAt = s.now().UTC()
	if err := uow.BankTransactionRepository().Create(ctx, item); err != nil {
		return 0, storeError("record bank transaction", err, fields)
	}

	if err := applyBalanceChange(ctx, uow, user, balanceChange{
		delta:  item.Amount,
		txType: txType,
		metadata: map[string]any{
			"external_id": item.ExternalID,
			"description": item.Description,
		},
	}); err != nil {
		return 0, storeError("apply bank transaction", err, fields)
	}

	uow.EventBus().Publish(events.DepositReconciledEvent{
		ExternalID: item.ExternalID,
		Username:   user.Username,
		Amount:     item.Amount,
	})

	if err := uow.Commit(); err != nil {
		return 0, storeError("commit reconcile", err, fields)
	}

	log.WithFields(fields).Info("Bank transaction applied")
	return outcomeApplied, nil
}
