package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/infrastructure/retry"
	"github.com/iho/txconsumer/internal/usecase"
)

const (
	ledgerTable = "ledger"
	stateTable  = "object-state"
	bucket      = "lab4-new-events-qpwoeiryt"
)

type repos struct {
	client   *fakeClient
	tm       *TxManager
	balances *BalanceRepository
	events   *EventRepository
	states   *StateRepository
}

func newRepos(pageSize int32) *repos {
	client := newFakeClient()
	return &repos{
		client:   client,
		tm:       NewTxManager(client),
		balances: NewBalanceRepository(client, ledgerTable),
		events:   NewEventRepository(client, ledgerTable, pageSize),
		states:   NewStateRepository(client, stateTable),
	}
}

func sampleEvent(txType domain.TransactionType, account, requestID, previous string) *domain.TransactionEvent {
	return &domain.TransactionEvent{
		EventTimeStamp:             1668399202,
		Amount:                     decimal.RequireFromString("12.34"),
		TransactionType:            txType,
		RequestID:                  requestID,
		ReferenceAccount:           account,
		PreviousRequestIDReference: previous,
		EventSourceDataResource:    domain.Provenance{S3Bucket: bucket, S3Key: requestID + ".event"},
		Raw:                        []byte(`{"requestId":"` + requestID + `"}`),
	}
}

func commitEvents(t *testing.T, r *repos, recs ...*domain.EventRecord) error {
	t.Helper()
	ctx := context.Background()

	tx, err := r.tm.Begin(ctx)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, r.events.Append(ctx, tx, rec))
	}
	return tx.Commit(ctx)
}

func TestBalanceRepository_ConditionalWrites(t *testing.T) {
	r := newRepos(0)
	ctx := context.Background()

	b, err := r.balances.Get(ctx, "1000", domain.BalanceActual)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Version)
	assert.True(t, b.Balance.IsZero())

	next := b.Apply(decimal.RequireFromString("0.1"), domain.EventStamp{Date: 20221114, Time: 41322}, "k1")
	tx, err := r.tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, r.balances.Set(ctx, tx, next))
	require.NoError(t, tx.Commit(ctx))

	stored, err := r.balances.Get(ctx, "1000", domain.BalanceActual)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, "0.1", stored.Balance.String())
	assert.Equal(t, 20221114, stored.LastTransactionDate)
	assert.Equal(t, 41322, stored.LastTransactionTime)
	assert.Equal(t, "k1", stored.LastEventKey)

	raw := r.client.tables[ledgerTable]["1000\x00SAVINGS#BALANCE#ACTUAL"]
	require.NotNil(t, raw)
	assert.IsType(t, &types.AttributeValueMemberN{}, raw["Balance"])

	// A writer still holding version 0 loses.
	tx, err = r.tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, r.balances.Set(ctx, tx, next))
	require.ErrorIs(t, tx.Commit(ctx), domain.ErrVersionConflict)

	tx, err = r.tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, r.balances.Set(ctx, tx, stored.Apply(decimal.RequireFromString("0.2"), domain.EventStamp{}, "k2")))
	require.NoError(t, tx.Commit(ctx))

	stored, err = r.balances.Get(ctx, "1000", domain.BalanceActual)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, "0.3", stored.Balance.String())
}

func TestEventRepository_AppendIsWriteOnce(t *testing.T) {
	r := newRepos(0)
	now := time.Now().UTC()
	ev := sampleEvent(domain.TxCashDeposit, "1000", "dep-1", "")
	rec := domain.NewEventRecord(ev, "1000", domain.StagePending, domain.EffectIncrease, domain.EffectNone, ev.Amount, decimal.Zero, now)

	require.NoError(t, commitEvents(t, r, rec))
	require.ErrorIs(t, commitEvents(t, r, rec), domain.ErrDuplicateEvent)

	raw := r.client.tables[ledgerTable]["1000\x00"+rec.Tag()]
	assert.Equal(t, notApplicable, str(raw["PreviousRequestIdReference"]))
	assert.Equal(t, "dep-1.event", str(raw["EventKey"]))

	got, err := r.events.FindByRequestID(context.Background(), "1000", "dep-1")
	require.NoError(t, err)
	assert.Empty(t, got.PreviousRequestIDReference)
	assert.Equal(t, domain.StagePending, got.Stage)
	assert.Equal(t, bucket, got.Provenance.S3Bucket)
	assert.True(t, got.Amount.Equal(ev.Amount))
	assert.Equal(t, domain.EffectIncrease, got.EffectOnActualBalance)
	assert.JSONEq(t, string(ev.Raw), string(got.RawPayload))
}

func TestTx_AllOrNothing(t *testing.T) {
	r := newRepos(0)
	ctx := context.Background()
	ev := sampleEvent(domain.TxIncomingPayment, "1000", "in-1", "")
	rec := domain.NewEventRecord(ev, "1000", domain.StageVerified, domain.EffectIncrease, domain.EffectIncrease, ev.Amount, ev.Amount, time.Now())

	stale := domain.NewBalanceRecord("1000", domain.BalanceAvailable)
	stale.Version = 3

	tx, err := r.tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, r.events.Append(ctx, tx, rec))
	require.NoError(t, r.balances.Set(ctx, tx, stale))
	require.ErrorIs(t, tx.Commit(ctx), domain.ErrVersionConflict)

	_, err = r.events.FindByRequestID(ctx, "1000", "in-1")
	require.ErrorIs(t, err, domain.ErrPredecessorNotFound)
	assert.Empty(t, r.client.tables[ledgerTable])
}

func TestTx_Lifecycle(t *testing.T) {
	r := newRepos(0)
	ctx := context.Background()

	tx, err := r.tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx), "empty commit")
	require.Error(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	tx, err = r.tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	require.Error(t, r.balances.Set(ctx, tx, domain.NewBalanceRecord("1000", domain.BalanceActual)))

	r.client.transactErr = errors.New("connection reset")
	tx, err = r.tm.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, r.balances.Set(ctx, tx, domain.NewBalanceRecord("1000", domain.BalanceActual)))
	require.ErrorIs(t, tx.Commit(ctx), domain.ErrStorageFailure)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.tm.Begin(cancelled)
	require.ErrorIs(t, err, domain.ErrStorageFailure)
}

func TestTx_MapError(t *testing.T) {
	tests := []struct {
		name  string
		kinds []itemKind
		err   error
		want  error
	}{
		{
			name:  "event condition",
			kinds: []itemKind{kindEvent, kindBalance},
			err: &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: aws.String(reasonConditionalCheckFailed)},
				{Code: aws.String("None")},
			}},
			want: domain.ErrDuplicateEvent,
		},
		{
			name:  "balance condition",
			kinds: []itemKind{kindEvent, kindBalance},
			err: &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: aws.String("None")},
				{Code: aws.String(reasonConditionalCheckFailed)},
			}},
			want: domain.ErrVersionConflict,
		},
		{
			name:  "concurrent transaction",
			kinds: []itemKind{kindBalance},
			err: &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: aws.String(reasonTransactionConflict)},
			}},
			want: domain.ErrVersionConflict,
		},
		{
			name: "conflict exception",
			err:  &types.TransactionConflictException{},
			want: domain.ErrVersionConflict,
		},
		{
			name:  "throttled",
			kinds: []itemKind{kindBalance},
			err: &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: aws.String("ThrottlingError")},
			}},
			want: domain.ErrStorageFailure,
		},
		{
			name: "network",
			err:  errors.New("connection reset"),
			want: domain.ErrStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Tx{kinds: tt.kinds}
			assert.ErrorIs(t, tx.mapError(tt.err), tt.want)
		})
	}
}

func TestEventRepository_FindScansEveryPage(t *testing.T) {
	r := newRepos(2)
	ctx := context.Background()
	now := time.Now().UTC()

	var recs []*domain.EventRecord
	for i := 0; i < 7; i++ {
		ev := sampleEvent(domain.TxIncomingPayment, "1000", fmt.Sprintf("in-%d", i), "")
		recs = append(recs, domain.NewEventRecord(ev, "1000", domain.StageVerified, domain.EffectIncrease, domain.EffectIncrease, ev.Amount, ev.Amount, now.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, commitEvents(t, r, recs...))

	got, err := r.events.FindByRequestID(ctx, "1000", "in-6")
	require.NoError(t, err)
	assert.Equal(t, "in-6", got.RequestID)
	assert.GreaterOrEqual(t, r.client.queryCalls, 4)

	_, err = r.events.FindByRequestID(ctx, "1000", "missing")
	require.ErrorIs(t, err, domain.ErrPredecessorNotFound)

	all, err := r.events.ListByAccount(ctx, "1000")
	require.NoError(t, err)
	require.Len(t, all, 7)
	for i, rec := range all {
		assert.Equal(t, fmt.Sprintf("in-%d", i), rec.RequestID)
	}

	none, err := r.events.ListByAccount(ctx, "2000")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEventRepository_PendingWins(t *testing.T) {
	r := newRepos(1)
	ctx := context.Background()
	now := time.Now().UTC()

	pendingEv := sampleEvent(domain.TxUnverifiedOutgoingPayment, "1000", "out-1", "")
	pending := domain.NewEventRecord(pendingEv, "1000", domain.StagePending, domain.EffectNone, domain.EffectDecrease, decimal.Zero, pendingEv.Amount.Neg(), now)

	verifiedEv := sampleEvent(domain.TxVerifiedOutgoingPayment, "1000", "out-1", "")
	verified := domain.NewEventRecord(verifiedEv, "1000", domain.StageVerified, domain.EffectNone, domain.EffectNone, decimal.Zero, decimal.Zero, now)

	require.NoError(t, commitEvents(t, r, verified, pending))

	got, err := r.events.FindByRequestID(ctx, "1000", "out-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StagePending, got.Stage)
	assert.Equal(t, domain.TxUnverifiedOutgoingPayment, got.TransactionType)
}

func TestEventRepository_FindByPreviousRequestID(t *testing.T) {
	r := newRepos(1)
	ctx := context.Background()
	now := time.Now().UTC()

	hold := sampleEvent(domain.TxUnverifiedOutgoingPayment, "1000", "out-1", "")
	settle := sampleEvent(domain.TxRejectedOutgoingPayment, "1000", "out-1-no", "out-1")
	require.NoError(t, commitEvents(t, r,
		domain.NewEventRecord(hold, "1000", domain.StagePending, domain.EffectDecrease, domain.EffectDecrease, hold.Amount.Neg(), hold.Amount.Neg(), now),
	))

	got, err := r.events.FindByPreviousRequestID(ctx, "1000", "out-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, commitEvents(t, r,
		domain.NewEventRecord(settle, "1000", domain.StageVerified, domain.EffectIncrease, domain.EffectIncrease, settle.Amount, settle.Amount, now),
	))

	got, err = r.events.FindByPreviousRequestID(ctx, "1000", "out-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "out-1-no", got.RequestID)
	assert.Equal(t, "out-1", got.PreviousRequestIDReference)
}

func TestStateRepository(t *testing.T) {
	r := newRepos(0)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := r.states.GetState(ctx, "obj.event")
	require.ErrorIs(t, err, domain.ErrStateNotFound)

	state := &domain.ObjectState{
		ObjectKey:         "obj.event",
		SourceBucket:      bucket,
		InNewEventsBucket: true,
		AccountNumber:     "1000",
		TransactionType:   domain.TxCashDeposit,
		Stage:             domain.StateReceived,
		UpdatedAt:         now,
	}
	require.NoError(t, r.states.MarkState(ctx, state))

	state.Stage = domain.StateCommitted
	state.Processed = true
	state.InNewEventsBucket = false
	require.NoError(t, r.states.MarkState(ctx, state))

	got, err := r.states.GetState(ctx, "obj.event")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, got.Stage)
	assert.True(t, got.Processed)
	assert.False(t, got.InNewEventsBucket)
	assert.Equal(t, "1000", got.AccountNumber)
	assert.True(t, got.UpdatedAt.Equal(now))

	first := &domain.AuditEvent{ID: "01A", ObjectKey: "obj.event", EventType: domain.AuditEventRejected, IsError: true, ErrorMessage: "insufficient funds", CreatedAt: now}
	second := &domain.AuditEvent{ID: "01B", ObjectKey: "obj.event", EventType: domain.AuditEventCommitted, TransactionType: domain.TxCashDeposit, CreatedAt: now.Add(time.Second)}
	require.NoError(t, r.states.AppendAuditEvent(ctx, second))
	require.NoError(t, r.states.AppendAuditEvent(ctx, first))
	require.ErrorIs(t, r.states.AppendAuditEvent(ctx, first), domain.ErrStorageFailure)

	audits, err := r.states.ListAuditEvents(ctx, "obj.event")
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, "01A", audits[0].ID)
	assert.True(t, audits[0].IsError)
	assert.Equal(t, domain.AuditEventCommitted, audits[1].EventType)
}

func TestTransactionUseCase_OnDynamoDB(t *testing.T) {
	r := newRepos(2)
	ctx := context.Background()
	retrier := retry.NewRetrier(retry.Config{
		MaxRetries:      20,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
	}, zerolog.Nop())
	uc := usecase.NewTransactionUseCase(r.tm, r.balances, r.events, retrier, nil, zerolog.Nop())

	deposit := sampleEvent(domain.TxCashDeposit, "1000", "dep-1", "")
	deposit.Amount = decimal.RequireFromString("500")
	_, err := uc.CashDeposit(ctx, deposit)
	require.NoError(t, err)

	verify := sampleEvent(domain.TxVerifyCashDeposit, "1000", "ver-1", "dep-1")
	verify.Amount = decimal.RequireFromString("480")
	_, err = uc.VerifyCashDeposit(ctx, verify)
	require.NoError(t, err)

	_, err = uc.VerifyCashDeposit(ctx, sampleEvent(domain.TxVerifyCashDeposit, "1000", "ver-2", "dep-1"))
	require.ErrorIs(t, err, domain.ErrPredecessorAlreadySettled)

	transfer := sampleEvent(domain.TxInterAccountTransfer, "1000", "tr-1", "")
	transfer.Amount = decimal.RequireFromString("80")
	transfer.SourceAccount = "1000"
	transfer.TargetAccount = "2000"
	_, err = uc.InterAccountTransfer(ctx, transfer)
	require.NoError(t, err)

	_, err = uc.CashDeposit(ctx, deposit)
	require.ErrorIs(t, err, domain.ErrDuplicateEvent)

	expect := map[string]string{"1000": "400", "2000": "80"}
	for account, want := range expect {
		for _, kind := range domain.BalanceKinds {
			b, err := r.balances.Get(ctx, account, kind)
			require.NoError(t, err)
			assert.Truef(t, b.Balance.Equal(decimal.RequireFromString(want)), "%s %s = %s", account, kind, b.Balance)
		}
	}
}
