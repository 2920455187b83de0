package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/txconsumer/internal/domain"
)

var (
	balanceColumns = []string{
		"account_ref", "kind", "balance", "last_transaction_date", "last_transaction_time",
		"last_event_key", "version", "updated_at",
	}
	eventColumns = []string{
		"seq", "account_ref", "stage", "s3_bucket", "s3_key", "transaction_date", "transaction_time",
		"raw_payload", "amount", "transaction_type", "request_id", "previous_request_id_reference",
		"effect_on_actual_balance", "effect_on_available_balance", "actual_delta", "available_delta", "created_at",
	}
)

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func beginTx(t *testing.T, mock pgxmock.PgxPoolIface) *Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := newTxManagerWithPool(mock).Begin(context.Background())
	require.NoError(t, err)
	return tx.(*Tx)
}

func TestBalanceRepository_Get(t *testing.T) {
	mock := newMockPool(t)
	repo := NewBalanceRepository(mock)
	ctx := context.Background()
	now := time.Date(2022, 11, 14, 4, 13, 22, 0, time.UTC)

	mock.ExpectQuery("FROM account_balances").
		WithArgs("1000", "ACTUAL").
		WillReturnError(pgx.ErrNoRows)

	b, err := repo.Get(ctx, "1000", domain.BalanceActual)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Version)
	assert.True(t, b.Balance.IsZero())

	mock.ExpectQuery("FROM account_balances").
		WithArgs("1000", "AVAILABLE").
		WillReturnRows(pgxmock.NewRows(balanceColumns).AddRow(
			"1000", "AVAILABLE", decimalToNumeric(decimal.RequireFromString("100.50")),
			int32(20221114), int32(41322), "in-1.event", int64(3), timeToPgTimestamptz(now),
		))

	b, err = repo.Get(ctx, "1000", domain.BalanceAvailable)
	require.NoError(t, err)
	assert.Equal(t, "100.5", b.Balance.String())
	assert.Equal(t, 20221114, b.LastTransactionDate)
	assert.Equal(t, 41322, b.LastTransactionTime)
	assert.Equal(t, "in-1.event", b.LastEventKey)
	assert.Equal(t, int64(3), b.Version)
	assert.True(t, b.UpdatedAt.Equal(now))

	mock.ExpectQuery("FROM account_balances").
		WithArgs("1000", "ACTUAL").
		WillReturnError(errors.New("connection refused"))

	_, err = repo.Get(ctx, "1000", domain.BalanceActual)
	require.ErrorIs(t, err, domain.ErrStorageFailure)

	assertExpectations(t, mock)
}

func TestBalanceRepository_SetInsertsFirstVersion(t *testing.T) {
	mock := newMockPool(t)
	repo := NewBalanceRepository(mock)
	ctx := context.Background()

	tx := beginTx(t, mock)
	mock.ExpectExec("INSERT INTO account_balances").
		WithArgs(append([]interface{}{"1000", "ACTUAL"}, anyArgs(5)...)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	record := domain.NewBalanceRecord("1000", domain.BalanceActual).
		Apply(decimal.RequireFromString("25"), domain.EventStamp{Date: 20221114, Time: 41322}, "dep-1.event")
	require.NoError(t, repo.Set(ctx, tx, record))
	require.NoError(t, tx.Commit(ctx))

	assertExpectations(t, mock)
}

func TestBalanceRepository_SetDetectsStaleVersion(t *testing.T) {
	mock := newMockPool(t)
	repo := NewBalanceRepository(mock)
	ctx := context.Background()

	record := domain.NewBalanceRecord("1000", domain.BalanceAvailable)
	record.Version = 4

	tx := beginTx(t, mock)
	mock.ExpectExec("UPDATE account_balances").
		WithArgs(append([]interface{}{"1000", "AVAILABLE"}, append(anyArgs(5), int64(4))...)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	require.ErrorIs(t, repo.Set(ctx, tx, record), domain.ErrVersionConflict)
	require.NoError(t, tx.Rollback(ctx))

	assertExpectations(t, mock)
}

func TestBalanceRepository_SetMapsLostRaces(t *testing.T) {
	mock := newMockPool(t)
	repo := NewBalanceRepository(mock)
	ctx := context.Background()

	record := domain.NewBalanceRecord("1000", domain.BalanceActual)
	record.Version = 1

	tx := beginTx(t, mock)
	mock.ExpectExec("UPDATE account_balances").
		WithArgs(anyArgs(8)...).
		WillReturnError(&pgconn.PgError{Code: codeDeadlockDetected})

	require.ErrorIs(t, repo.Set(ctx, tx, record), domain.ErrVersionConflict)
	require.ErrorIs(t, repo.Set(ctx, &fakeForeignTx{}, record), errForeignTx)

	assertExpectations(t, mock)
}

func TestEventRepository_Append(t *testing.T) {
	mock := newMockPool(t)
	repo := NewEventRepository(mock)
	ctx := context.Background()

	ev := &domain.TransactionEvent{
		EventTimeStamp:          1668399202,
		Amount:                  decimal.RequireFromString("12.34"),
		TransactionType:         domain.TxCashDeposit,
		RequestID:               "dep-1",
		ReferenceAccount:        "1000",
		EventSourceDataResource: domain.Provenance{S3Bucket: "bucket", S3Key: "dep-1.event"},
		Raw:                     []byte(`{}`),
	}
	rec := domain.NewEventRecord(ev, "1000", domain.StagePending, domain.EffectIncrease, domain.EffectNone, ev.Amount, decimal.Zero, time.Now())

	tx := beginTx(t, mock)
	mock.ExpectExec("INSERT INTO transaction_events").
		WithArgs(append([]interface{}{"1000", "PENDING", "bucket", "dep-1.event", int32(20221114), int32(41322), "{}"}, anyArgs(9)...)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transaction_events").
		WithArgs(anyArgs(16)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO transaction_events").
		WithArgs(anyArgs(16)...).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation})

	require.NoError(t, repo.Append(ctx, tx, rec))
	require.ErrorIs(t, repo.Append(ctx, tx, rec), domain.ErrDuplicateEvent)
	require.ErrorIs(t, repo.Append(ctx, tx, rec), domain.ErrDuplicateEvent)

	assertExpectations(t, mock)
}

func TestEventRepository_Lookups(t *testing.T) {
	mock := newMockPool(t)
	repo := NewEventRepository(mock)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	row := []interface{}{
		int64(7), "1000", "PENDING", "bucket", "out-1.event", int32(20221114), int32(41322),
		`{"requestId":"out-1"}`, decimalToNumeric(decimal.RequireFromString("80")),
		"UnverifiedOutgoingPayment", "out-1", "",
		"None", "Decrease", decimalToNumeric(decimal.Zero), decimalToNumeric(decimal.RequireFromString("-80")),
		timeToPgTimestamptz(now),
	}

	mock.ExpectQuery("FROM transaction_events").
		WithArgs("1000", "out-1").
		WillReturnRows(pgxmock.NewRows(eventColumns).AddRow(row...))

	got, err := repo.FindByRequestID(ctx, "1000", "out-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StagePending, got.Stage)
	assert.Equal(t, "out-1.event", got.EventKey())
	assert.Equal(t, domain.EffectDecrease, got.EffectOnAvailableBalance)
	assert.True(t, got.AvailableDelta.Equal(decimal.RequireFromString("-80")))
	assert.True(t, got.CreatedAt.Equal(now))

	mock.ExpectQuery("FROM transaction_events").
		WithArgs("1000", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.FindByRequestID(ctx, "1000", "missing")
	require.ErrorIs(t, err, domain.ErrPredecessorNotFound)

	mock.ExpectQuery("FROM transaction_events").
		WithArgs("1000", "out-1").
		WillReturnError(pgx.ErrNoRows)

	settled, err := repo.FindByPreviousRequestID(ctx, "1000", "out-1")
	require.NoError(t, err)
	assert.Nil(t, settled)

	mock.ExpectQuery("FROM transaction_events").
		WithArgs("1000").
		WillReturnRows(pgxmock.NewRows(eventColumns).AddRow(row...).AddRow(row...))

	all, err := repo.ListByAccount(ctx, "1000")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mock.ExpectQuery("FROM transaction_events").
		WithArgs("1000").
		WillReturnError(errors.New("timeout"))

	_, err = repo.ListByAccount(ctx, "1000")
	require.ErrorIs(t, err, domain.ErrStorageFailure)

	assertExpectations(t, mock)
}

func TestStateRepository(t *testing.T) {
	mock := newMockPool(t)
	repo := NewStateRepository(mock)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	state := &domain.ObjectState{
		ObjectKey:         "dep-1.event",
		SourceBucket:      "bucket",
		InNewEventsBucket: true,
		Stage:             domain.StateReceived,
		UpdatedAt:         now,
	}

	mock.ExpectExec("INSERT INTO object_states").
		WithArgs(append([]interface{}{"dep-1.event", "bucket", true, false}, anyArgs(6)...)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.MarkState(ctx, state))

	mock.ExpectExec("INSERT INTO object_states").
		WithArgs(anyArgs(10)...).
		WillReturnError(errors.New("connection reset"))
	require.ErrorIs(t, repo.MarkState(ctx, state), domain.ErrStorageFailure)

	mock.ExpectQuery("FROM object_states").
		WithArgs("missing.event").
		WillReturnError(pgx.ErrNoRows)
	_, err := repo.GetState(ctx, "missing.event")
	require.ErrorIs(t, err, domain.ErrStateNotFound)

	mock.ExpectQuery("FROM object_states").
		WithArgs("dep-1.event").
		WillReturnRows(pgxmock.NewRows([]string{
			"object_key", "source_bucket", "in_new_events_bucket", "processed", "account_number",
			"transaction_type", "stage", "error_state", "error_reason", "updated_at",
		}).AddRow("dep-1.event", "bucket", false, true, "1000", "CashDeposit", "Committed", false, "", timeToPgTimestamptz(now)))
	got, err := repo.GetState(ctx, "dep-1.event")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, got.Stage)
	assert.True(t, got.Processed)
	assert.Equal(t, domain.TxCashDeposit, got.TransactionType)

	mock.ExpectExec("INSERT INTO object_audit_events").
		WithArgs(append([]interface{}{"01H", "dep-1.event", "transaction.committed"}, anyArgs(4)...)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.AppendAuditEvent(ctx, &domain.AuditEvent{
		ID:        "01H",
		ObjectKey: "dep-1.event",
		EventType: domain.AuditEventCommitted,
		CreatedAt: now,
	}))

	mock.ExpectQuery("FROM object_audit_events").
		WithArgs("dep-1.event").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "object_key", "event_type", "transaction_type", "is_error", "error_message", "created_at",
		}).AddRow("01H", "dep-1.event", "transaction.committed", "CashDeposit", false, "", timeToPgTimestamptz(now)))
	audits, err := repo.ListAuditEvents(ctx, "dep-1.event")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, domain.AuditEventCommitted, audits[0].EventType)

	assertExpectations(t, mock)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("op", nil))
	assert.ErrorIs(t, mapError("op", &pgconn.PgError{Code: codeSerializationFailure}), domain.ErrVersionConflict)
	assert.ErrorIs(t, mapError("op", &pgconn.PgError{Code: codeDeadlockDetected}), domain.ErrVersionConflict)
	assert.ErrorIs(t, mapError("op", &pgconn.PgError{Code: "53300"}), domain.ErrStorageFailure)
	assert.ErrorIs(t, mapError("op", errors.New("boom")), domain.ErrStorageFailure)
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0.1", "-80", "123456789.123456789", "1000000"} {
		d := decimal.RequireFromString(s)
		assert.Truef(t, numericToDecimal(decimalToNumeric(d)).Equal(d), "round trip %s", s)
	}
	assert.True(t, numericToDecimal(decimalToNumeric(decimal.Zero)).IsZero())
}

type fakeForeignTx struct{}

func (fakeForeignTx) Commit(context.Context) error   { return nil }
func (fakeForeignTx) Rollback(context.Context) error { return nil }
