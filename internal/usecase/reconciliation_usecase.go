package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/infrastructure/metrics"
)

// ReconciliationUseCase checks stored balances against the event log.
type ReconciliationUseCase struct {
	balanceRepo BalanceRepository
	eventRepo   EventRepository
	metrics     *metrics.Metrics
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(balanceRepo BalanceRepository, eventRepo EventRepository, metrics *metrics.Metrics) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		balanceRepo: balanceRepo,
		eventRepo:   eventRepo,
		metrics:     metrics,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountRef        string
	Kind              domain.BalanceKind
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	EventCount        int
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount folds the account's event log and compares the result
// with both stored balances.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, account string) ([]*ReconciliationResult, error) {
	if err := domain.ValidateAccountRef(account); err != nil {
		return nil, err
	}

	events, err := uc.eventRepo.ListByAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	results := make([]*ReconciliationResult, 0, len(domain.BalanceKinds))

	for _, kind := range domain.BalanceKinds {
		stored, err := uc.balanceRepo.Get(ctx, account, kind)
		if err != nil {
			return nil, err
		}

		calculated := decimal.Zero
		for _, ev := range events {
			calculated = calculated.Add(ev.Delta(kind))
		}

		diff := stored.Balance.Sub(calculated)
		result := &ReconciliationResult{
			AccountRef:        account,
			Kind:              kind,
			RecordedBalance:   stored.Balance,
			CalculatedBalance: calculated,
			Difference:        diff,
			EventCount:        len(events),
			IsReconciled:      diff.IsZero(),
			LastChecked:       now,
		}

		if !result.IsReconciled && uc.metrics != nil {
			uc.metrics.ReconciliationMismatches.WithLabelValues(string(kind)).Inc()
		}

		results = append(results, result)
	}

	return results, nil
}

// ReconcileAccounts reconciles every listed account.
func (uc *ReconciliationUseCase) ReconcileAccounts(ctx context.Context, accounts []string) ([]*ReconciliationResult, error) {
	results := make([]*ReconciliationResult, 0, len(accounts)*len(domain.BalanceKinds))
	for _, account := range accounts {
		r, err := uc.ReconcileAccount(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile account %s: %w", account, err)
		}
		results = append(results, r...)
	}

	return results, nil
}
