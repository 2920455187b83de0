package usecase

import (
	"context"
	"time"

	"github.com/iho/txconsumer/internal/domain"
)

// BalanceRepository defines data access for account balances.
type BalanceRepository interface {
	// Get returns the stored balance, or a zero record with Version 0 when
	// the account has never been touched.
	Get(ctx context.Context, account string, kind domain.BalanceKind) (*domain.BalanceRecord, error)
	// Set stores record inside tx if the stored version still equals
	// record.Version, and bumps it. Otherwise it fails with
	// domain.ErrVersionConflict, possibly only at commit.
	Set(ctx context.Context, tx Transaction, record *domain.BalanceRecord) error
}

// EventRepository defines data access for the transaction event log.
type EventRepository interface {
	// Append writes a new record inside tx. An existing (account, tag) key
	// fails with domain.ErrDuplicateEvent, possibly only at commit.
	Append(ctx context.Context, tx Transaction, event *domain.EventRecord) error
	// FindByRequestID scans every page of the account's log. PENDING records
	// win over VERIFIED ones with the same request ID.
	FindByRequestID(ctx context.Context, account, requestID string) (*domain.EventRecord, error)
	// FindByPreviousRequestID returns the record settling requestID, if any.
	FindByPreviousRequestID(ctx context.Context, account, requestID string) (*domain.EventRecord, error)
	ListByAccount(ctx context.Context, account string) ([]*domain.EventRecord, error)
}

// StateRepository defines data access for object processing state.
type StateRepository interface {
	MarkState(ctx context.Context, state *domain.ObjectState) error
	AppendAuditEvent(ctx context.Context, event *domain.AuditEvent) error
	GetState(ctx context.Context, objectKey string) (*domain.ObjectState, error)
	ListAuditEvents(ctx context.Context, objectKey string) ([]*domain.AuditEvent, error)
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// ProcessedStore guards source objects against concurrent or repeated
// processing.
type ProcessedStore interface {
	// Acquire atomically claims key. It returns false if the key is already
	// claimed.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Complete marks a claimed key as processed for ttl.
	Complete(ctx context.Context, key string, ttl time.Duration) error
	// Release drops a claim so the object can be processed again.
	Release(ctx context.Context, key string) error
}

// Retrier retries operations that lost an optimistic-lock race.
type Retrier interface {
	Retry(ctx context.Context, op func() error) error
}
