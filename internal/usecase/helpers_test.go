package usecase_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/txconsumer/internal/adapter/repository/memory"
	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/infrastructure/idgen"
	"github.com/iho/txconsumer/internal/infrastructure/metrics"
	"github.com/iho/txconsumer/internal/infrastructure/retry"
	"github.com/iho/txconsumer/internal/usecase"
)

const testBucket = "lab4-new-events-qpwoeiryt"

type fixture struct {
	store      *memory.Store
	metrics    *metrics.Metrics
	tx         *usecase.TransactionUseCase
	dispatcher *usecase.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	retrier := retry.NewRetrier(retry.Config{
		MaxRetries:      50,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  10 * time.Second,
	}, zerolog.Nop())

	txUC := usecase.NewTransactionUseCase(store, store, store, retrier, m, zerolog.Nop())
	dispatcher := usecase.NewDispatcher(txUC.Handlers(), store, nil, idgen.NewULIDGenerator(), m, zerolog.Nop(), usecase.DispatcherConfig{})

	return &fixture{store: store, metrics: m, tx: txUC, dispatcher: dispatcher}
}

type eventOption func(*domain.TransactionEvent)

func withPrevious(requestID string) eventOption {
	return func(e *domain.TransactionEvent) { e.PreviousRequestIDReference = requestID }
}

func withTransfer(source, target string) eventOption {
	return func(e *domain.TransactionEvent) {
		e.SourceAccount = source
		e.TargetAccount = target
	}
}

func newEvent(txType domain.TransactionType, account, requestID, amount string, opts ...eventOption) *domain.TransactionEvent {
	ev := &domain.TransactionEvent{
		EventTimeStamp:   1668399202,
		Amount:           decimal.RequireFromString(amount),
		TransactionType:  txType,
		RequestID:        requestID,
		ReferenceAccount: account,
		EventSourceDataResource: domain.Provenance{
			S3Bucket: testBucket,
			S3Key:    requestID + ".event",
		},
	}
	for _, opt := range opts {
		opt(ev)
	}
	raw, _ := json.Marshal(ev)
	ev.Raw = raw
	return ev
}

func message(t *testing.T, ev *domain.TransactionEvent) usecase.Message {
	t.Helper()
	return usecase.Message{ID: "msg-" + ev.RequestID, Body: ev.Raw}
}

func (f *fixture) balances(t *testing.T, account string) (decimal.Decimal, decimal.Decimal) {
	t.Helper()
	ctx := context.Background()

	actual, err := f.store.Get(ctx, account, domain.BalanceActual)
	require.NoError(t, err)
	available, err := f.store.Get(ctx, account, domain.BalanceAvailable)
	require.NoError(t, err)

	return actual.Balance, available.Balance
}

func (f *fixture) events(t *testing.T, account string) []*domain.EventRecord {
	t.Helper()
	events, err := f.store.ListByAccount(context.Background(), account)
	require.NoError(t, err)
	return events
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}
