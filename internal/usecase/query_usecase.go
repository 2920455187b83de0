package usecase

import (
	"context"

	"github.com/iho/txconsumer/internal/domain"
)

// QueryUseCase serves read-only views of the ledger and the state tracker.
type QueryUseCase struct {
	balanceRepo BalanceRepository
	eventRepo   EventRepository
	stateRepo   StateRepository
}

// NewQueryUseCase creates a new QueryUseCase.
func NewQueryUseCase(balanceRepo BalanceRepository, eventRepo EventRepository, stateRepo StateRepository) *QueryUseCase {
	return &QueryUseCase{
		balanceRepo: balanceRepo,
		eventRepo:   eventRepo,
		stateRepo:   stateRepo,
	}
}

// AccountBalances is the pair of balances of one account.
type AccountBalances struct {
	AccountRef string
	Actual     *domain.BalanceRecord
	Available  *domain.BalanceRecord
}

// GetBalances returns both balances of an account.
func (uc *QueryUseCase) GetBalances(ctx context.Context, account string) (*AccountBalances, error) {
	if err := domain.ValidateAccountRef(account); err != nil {
		return nil, err
	}

	actual, err := uc.balanceRepo.Get(ctx, account, domain.BalanceActual)
	if err != nil {
		return nil, err
	}

	available, err := uc.balanceRepo.Get(ctx, account, domain.BalanceAvailable)
	if err != nil {
		return nil, err
	}

	return &AccountBalances{AccountRef: account, Actual: actual, Available: available}, nil
}

// ListEvents returns a page of the account's event log.
func (uc *QueryUseCase) ListEvents(ctx context.Context, account string, limit, offset int) ([]*domain.EventRecord, error) {
	if err := domain.ValidateAccountRef(account); err != nil {
		return nil, err
	}

	limit, offset, _ = domain.ValidatePagination(limit, offset)

	events, err := uc.eventRepo.ListByAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	if offset >= len(events) {
		return []*domain.EventRecord{}, nil
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}

	return events[offset:end], nil
}

// ObjectHistory is the state row of a source object and its audit trail.
type ObjectHistory struct {
	State  *domain.ObjectState
	Audits []*domain.AuditEvent
}

// GetObjectState returns the processing history of a source object.
func (uc *QueryUseCase) GetObjectState(ctx context.Context, objectKey string) (*ObjectHistory, error) {
	state, err := uc.stateRepo.GetState(ctx, objectKey)
	if err != nil {
		return nil, err
	}

	audits, err := uc.stateRepo.ListAuditEvents(ctx, objectKey)
	if err != nil {
		return nil, err
	}

	return &ObjectHistory{State: state, Audits: audits}, nil
}
