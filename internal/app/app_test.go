package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/infrastructure/config"
	"github.com/iho/txconsumer/internal/infrastructure/metrics"
	"github.com/iho/txconsumer/internal/usecase"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StorageBackend:       config.BackendMemory,
		ProcessedTTL:         time.Hour,
		InFlightTTL:          time.Minute,
		RetryMaxAttempts:     3,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
		RetryMaxElapsedTime:  time.Second,
	}
}

func buildTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := Build(context.Background(), cfg, zerolog.Nop(), Options{
		Metrics: metrics.NewWithRegisterer(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func body(txType, account, requestID, amount, key string) []byte {
	return []byte(fmt.Sprintf(`{
		"EventTimeStamp": 1700000000,
		"Amount": %s,
		"TransactionType": %q,
		"RequestId": %q,
		"ReferenceAccount": %q,
		"EventSourceDataResource": {"S3Bucket": "incoming", "S3Key": %q}
	}`, amount, txType, requestID, account, key))
}

func TestBuild_MemoryBackendProcessesBatch(t *testing.T) {
	a := buildTestApp(t, memoryConfig())
	ctx := context.Background()

	report := a.Dispatcher.ProcessBatch(ctx, []usecase.Message{
		{ID: "m1", Body: body("IncomingPayment", "1000", "r1", "500", "obj-1")},
		{ID: "m2", Body: body("CashWithdrawal", "1000", "r2", "100", "obj-2")},
		{ID: "m3", Body: body("Unknown", "1000", "r3", "1", "obj-3")},
	})

	assert.Equal(t, 2, report.Committed)
	assert.Equal(t, 1, report.Rejected)
	assert.Empty(t, report.Retryable())

	balances, err := a.Queries.GetBalances(ctx, "1000")
	require.NoError(t, err)
	assert.Equal(t, "400", balances.Actual.Balance.String())
	assert.Equal(t, "400", balances.Available.Balance.String())

	results, err := a.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.IsReconciled, "kind %s", r.Kind)
	}

	history, err := a.Queries.GetObjectState(ctx, "obj-3")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRejected, history.State.Stage)
}

func TestBuild_GuardRejectsRepeatedObject(t *testing.T) {
	s := miniredis.RunT(t)

	cfg := memoryConfig()
	cfg.RedisURL = "redis://" + s.Addr()

	a := buildTestApp(t, cfg)
	require.NotNil(t, a.Guard)
	require.Contains(t, a.Storage.Checks, "redis")
	require.NoError(t, a.Storage.Checks["redis"](context.Background()))

	msg := usecase.Message{ID: "m1", Body: body("CashDeposit", "2000", "r1", "50", "obj-1")}
	first := a.Dispatcher.Process(context.Background(), msg)
	assert.Equal(t, domain.StateCommitted, first.State)

	second := a.Dispatcher.Process(context.Background(), msg)
	assert.Equal(t, domain.StateRejected, second.State)
	assert.ErrorIs(t, second.Err, domain.ErrDuplicateMessage)

	marker, err := a.GuardStatus(context.Background(), "incoming", "obj-1")
	require.NoError(t, err)
	assert.Equal(t, "done", marker)

	history, err := a.Queries.GetObjectState(context.Background(), "obj-1")
	require.NoError(t, err)
	assert.True(t, history.State.Processed)
	assert.Len(t, history.Audits, 2)
}

func TestGuardStatus_Disabled(t *testing.T) {
	a := buildTestApp(t, memoryConfig())

	marker, err := a.GuardStatus(context.Background(), "incoming", "obj-1")
	require.NoError(t, err)
	assert.Empty(t, marker)
}

func TestBuild_RedisUnavailable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	cfg := memoryConfig()
	cfg.RedisURL = "redis://" + addr
	cfg.RedisDialTimeout = 100 * time.Millisecond

	_, err := Build(context.Background(), cfg, zerolog.Nop(), Options{
		Metrics: metrics.NewWithRegisterer(prometheus.NewRegistry()),
	})
	require.Error(t, err)
}

func TestNewStorage_UnknownBackend(t *testing.T) {
	_, err := NewStorage(context.Background(), &config.Config{StorageBackend: "cassandra"}, zerolog.Nop())
	require.Error(t, err)
}

func TestReconcileAll_BackendWithoutListing(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Accounts = nil
	storage.Backend = config.BackendDynamoDB

	a, err := Build(context.Background(), memoryConfig(), zerolog.Nop(), Options{
		Metrics: metrics.NewWithRegisterer(prometheus.NewRegistry()),
		Storage: storage,
	})
	require.NoError(t, err)

	_, err = a.ReconcileAll(context.Background())
	require.ErrorIs(t, err, ErrNoAccountListing)
}
