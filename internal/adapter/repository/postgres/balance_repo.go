package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/infrastructure/postgres/generated"
	"github.com/iho/txconsumer/internal/usecase"
)

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	queries *generated.Queries
	now     func() time.Time
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db generated.DBTX) *BalanceRepository {
	return &BalanceRepository{
		queries: generated.New(db),
		now:     time.Now,
	}
}

// Get retrieves a balance, or a zero record for an untouched account.
func (r *BalanceRepository) Get(ctx context.Context, account string, kind domain.BalanceKind) (*domain.BalanceRecord, error) {
	row, err := r.queries.GetBalance(ctx, generated.GetBalanceParams{
		AccountRef: account,
		Kind:       string(kind),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewBalanceRecord(account, kind), nil
		}
		return nil, domain.StorageFailure("get balance", err)
	}

	return rowToBalance(row), nil
}

// Set inserts or updates the balance if the stored version still matches.
func (r *BalanceRepository) Set(ctx context.Context, tx usecase.Transaction, record *domain.BalanceRecord) error {
	pgxTx, err := pgxTx(tx)
	if err != nil {
		return err
	}
	queries := r.queries.WithTx(pgxTx)
	updatedAt := timeToPgTimestamptz(r.now().UTC())

	var affected int64
	if record.Version == 0 {
		affected, err = queries.InsertBalance(ctx, generated.InsertBalanceParams{
			AccountRef:          record.AccountRef,
			Kind:                string(record.Kind),
			Balance:             decimalToNumeric(record.Balance),
			LastTransactionDate: int32(record.LastTransactionDate),
			LastTransactionTime: int32(record.LastTransactionTime),
			LastEventKey:        record.LastEventKey,
			UpdatedAt:           updatedAt,
		})
	} else {
		affected, err = queries.UpdateBalance(ctx, generated.UpdateBalanceParams{
			AccountRef:          record.AccountRef,
			Kind:                string(record.Kind),
			Balance:             decimalToNumeric(record.Balance),
			LastTransactionDate: int32(record.LastTransactionDate),
			LastTransactionTime: int32(record.LastTransactionTime),
			LastEventKey:        record.LastEventKey,
			UpdatedAt:           updatedAt,
			Version:             record.Version,
		})
	}
	if err != nil {
		return mapError("set balance", err)
	}
	if affected == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}

// Accounts lists every account holding a balance.
func (r *BalanceRepository) Accounts(ctx context.Context) ([]string, error) {
	accounts, err := r.queries.ListBalanceAccounts(ctx)
	if err != nil {
		return nil, domain.StorageFailure("list accounts", err)
	}
	return accounts, nil
}

func rowToBalance(row generated.AccountBalance) *domain.BalanceRecord {
	return &domain.BalanceRecord{
		AccountRef:          row.AccountRef,
		Kind:                domain.BalanceKind(row.Kind),
		Balance:             numericToDecimal(row.Balance),
		LastTransactionDate: int(row.LastTransactionDate),
		LastTransactionTime: int(row.LastTransactionTime),
		LastEventKey:        row.LastEventKey,
		Version:             row.Version,
		UpdatedAt:           pgTimestamptzToTime(row.UpdatedAt),
	}
}
