// Package app assembles the ledger processor from configuration. The Lambda
// consumer, the read API server and the CLI all start from Build.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	dynamoRepo "github.com/iho/txconsumer/internal/adapter/repository/dynamodb"
	"github.com/iho/txconsumer/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/txconsumer/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/txconsumer/internal/adapter/repository/redis"
	"github.com/iho/txconsumer/internal/infrastructure/config"
	"github.com/iho/txconsumer/internal/infrastructure/dynamodb"
	"github.com/iho/txconsumer/internal/infrastructure/idgen"
	"github.com/iho/txconsumer/internal/infrastructure/metrics"
	"github.com/iho/txconsumer/internal/infrastructure/postgres"
	"github.com/iho/txconsumer/internal/infrastructure/redis"
	"github.com/iho/txconsumer/internal/infrastructure/retry"
	"github.com/iho/txconsumer/internal/usecase"
)

// Check probes one external dependency.
type Check func(ctx context.Context) error

// AccountLister enumerates accounts with stored balances. Only stores that
// can list accounts cheaply provide one.
type AccountLister interface {
	Accounts(ctx context.Context) ([]string, error)
}

// Storage is one backend's implementation of the usecase ports.
type Storage struct {
	Backend   string
	TxManager usecase.TransactionManager
	Balances  usecase.BalanceRepository
	Events    usecase.EventRepository
	States    usecase.StateRepository
	Accounts  AccountLister
	Checks    map[string]Check

	closers []func()
}

// Close releases backend connections.
func (s *Storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// App is the assembled processor.
type App struct {
	Config         *config.Config
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	Storage        *Storage
	Guard          usecase.ProcessedStore
	Transactions   *usecase.TransactionUseCase
	Dispatcher     *usecase.Dispatcher
	Queries        *usecase.QueryUseCase
	Reconciliation *usecase.ReconciliationUseCase

	processed *redisRepo.ProcessedStore
	closers   []func()
}

// Close releases every connection opened by Build.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.Storage != nil {
		a.Storage.Close()
	}
}

// Options tweak Build for a specific entry point.
type Options struct {
	// Metrics overrides the process-wide metrics. Tests pass one built on
	// a private registry.
	Metrics *metrics.Metrics
	// Storage overrides the configured backend.
	Storage *Storage
}

// Build wires storage, the optional processed-object guard and every use
// case from cfg.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: opts.Metrics,
		Storage: opts.Storage,
	}
	if a.Metrics == nil {
		a.Metrics = metrics.New()
	}

	if a.Storage == nil {
		storage, err := NewStorage(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.Storage = storage
	}

	if a.Storage.Checks == nil {
		a.Storage.Checks = make(map[string]Check)
	}

	if cfg.GuardEnabled() {
		client, err := redis.NewClientWithConfig(ctx, redis.Config{
			URL:         cfg.RedisURL,
			PoolSize:    cfg.RedisPoolSize,
			DialTimeout: cfg.RedisDialTimeout,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		a.Storage.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		a.processed = redisRepo.NewProcessedStore(client)
		a.Guard = a.processed
		logger.Info().Msg("processed-object guard enabled")
	}

	retrier := retry.NewRetrier(retry.Config{
		MaxRetries:      int(cfg.RetryMaxAttempts),
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		MaxElapsedTime:  cfg.RetryMaxElapsedTime,
	}, logger)

	a.Transactions = usecase.NewTransactionUseCase(
		a.Storage.TxManager,
		a.Storage.Balances,
		a.Storage.Events,
		retrier,
		a.Metrics,
		logger,
	)

	a.Dispatcher = usecase.NewDispatcher(
		a.Transactions.Handlers(),
		a.Storage.States,
		a.Guard,
		idgen.NewULIDGenerator(),
		a.Metrics,
		logger,
		usecase.DispatcherConfig{
			ProcessedTTL: cfg.ProcessedTTL,
			InFlightTTL:  cfg.InFlightTTL,
		},
	)

	a.Queries = usecase.NewQueryUseCase(a.Storage.Balances, a.Storage.Events, a.Storage.States)
	a.Reconciliation = usecase.NewReconciliationUseCase(a.Storage.Balances, a.Storage.Events, a.Metrics)

	return a, nil
}

// NewStorage opens the backend named by cfg.StorageBackend.
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return NewMemoryStorage(), nil
	case config.BackendDynamoDB:
		return newDynamoDBStorage(ctx, cfg, logger)
	case config.BackendPostgres:
		return newPostgresStorage(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// NewMemoryStorage keeps everything in process memory.
func NewMemoryStorage() *Storage {
	store := memory.NewStore()
	return &Storage{
		Backend:   config.BackendMemory,
		TxManager: store,
		Balances:  store,
		Events:    store,
		States:    store,
		Accounts:  store,
		Checks:    map[string]Check{},
	}
}

func newDynamoDBStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	client, err := dynamodb.NewClient(ctx, dynamodb.Config{
		Region:   cfg.AWSRegion,
		Endpoint: cfg.DynamoDBEndpoint,
	})
	if err != nil {
		return nil, err
	}

	if err := dynamodb.CheckTables(ctx, client, cfg.DynamoDBLedgerTable, cfg.DynamoDBStateTable); err != nil {
		return nil, err
	}
	logger.Info().
		Str("ledger_table", cfg.DynamoDBLedgerTable).
		Str("state_table", cfg.DynamoDBStateTable).
		Msg("connected to dynamodb")

	return &Storage{
		Backend:   config.BackendDynamoDB,
		TxManager: dynamoRepo.NewTxManager(client),
		Balances:  dynamoRepo.NewBalanceRepository(client, cfg.DynamoDBLedgerTable),
		Events:    dynamoRepo.NewEventRepository(client, cfg.DynamoDBLedgerTable, cfg.DynamoDBPageSize),
		States:    dynamoRepo.NewStateRepository(client, cfg.DynamoDBStateTable),
		Checks: map[string]Check{
			"dynamodb": func(ctx context.Context) error {
				return dynamodb.CheckTables(ctx, client, cfg.DynamoDBLedgerTable, cfg.DynamoDBStateTable)
			},
		},
	}, nil
}

func newPostgresStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, logger).Up(); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to postgres")

	balances := postgresRepo.NewBalanceRepository(pool)
	return &Storage{
		Backend:   config.BackendPostgres,
		TxManager: postgresRepo.NewTxManager(pool),
		Balances:  balances,
		Events:    postgresRepo.NewEventRepository(pool),
		States:    postgresRepo.NewStateRepository(pool),
		Accounts:  balances,
		Checks: map[string]Check{
			"postgres": pool.Ping,
		},
		closers: []func(){pool.Close},
	}, nil
}

// GuardStatus returns the processed-object guard marker of bucket/key, or ""
// when the guard is disabled or holds no marker.
func (a *App) GuardStatus(ctx context.Context, bucket, key string) (string, error) {
	if a.processed == nil {
		return "", nil
	}
	return a.processed.Status(ctx, bucket+"/"+key)
}

// ErrNoAccountListing is returned when the backend cannot enumerate accounts.
var ErrNoAccountListing = errors.New("storage backend cannot list accounts")

// ReconcileAll reconciles every account the backend can list.
func (a *App) ReconcileAll(ctx context.Context) ([]*usecase.ReconciliationResult, error) {
	if a.Storage.Accounts == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoAccountListing, a.Storage.Backend)
	}

	accounts, err := a.Storage.Accounts.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	return a.Reconciliation.ReconcileAccounts(ctx, accounts)
}
