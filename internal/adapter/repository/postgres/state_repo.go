package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/infrastructure/postgres/generated"
)

// StateRepository implements usecase.StateRepository.
type StateRepository struct {
	queries *generated.Queries
}

// NewStateRepository creates a new StateRepository.
func NewStateRepository(db generated.DBTX) *StateRepository {
	return &StateRepository{queries: generated.New(db)}
}

// MarkState upserts the state row.
func (r *StateRepository) MarkState(ctx context.Context, state *domain.ObjectState) error {
	err := r.queries.UpsertObjectState(ctx, generated.UpsertObjectStateParams{
		ObjectKey:         state.ObjectKey,
		SourceBucket:      state.SourceBucket,
		InNewEventsBucket: state.InNewEventsBucket,
		Processed:         state.Processed,
		AccountNumber:     state.AccountNumber,
		TransactionType:   string(state.TransactionType),
		Stage:             string(state.Stage),
		ErrorState:        state.ErrorState,
		ErrorReason:       state.ErrorReason,
		UpdatedAt:         timeToPgTimestamptz(state.UpdatedAt),
	})
	if err != nil {
		return domain.StorageFailure("mark state", err)
	}
	return nil
}

// AppendAuditEvent inserts one audit row.
func (r *StateRepository) AppendAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	err := r.queries.InsertObjectAuditEvent(ctx, generated.InsertObjectAuditEventParams{
		ID:              event.ID,
		ObjectKey:       event.ObjectKey,
		EventType:       string(event.EventType),
		TransactionType: string(event.TransactionType),
		IsError:         event.IsError,
		ErrorMessage:    event.ErrorMessage,
		CreatedAt:       timeToPgTimestamptz(event.CreatedAt),
	})
	if err != nil {
		return domain.StorageFailure("append audit event", err)
	}
	return nil
}

// GetState retrieves the state row of a source object.
func (r *StateRepository) GetState(ctx context.Context, objectKey string) (*domain.ObjectState, error) {
	row, err := r.queries.GetObjectState(ctx, objectKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStateNotFound
		}
		return nil, domain.StorageFailure("get state", err)
	}

	return &domain.ObjectState{
		ObjectKey:         row.ObjectKey,
		SourceBucket:      row.SourceBucket,
		InNewEventsBucket: row.InNewEventsBucket,
		Processed:         row.Processed,
		AccountNumber:     row.AccountNumber,
		TransactionType:   domain.TransactionType(row.TransactionType),
		Stage:             domain.ProcessingState(row.Stage),
		ErrorState:        row.ErrorState,
		ErrorReason:       row.ErrorReason,
		UpdatedAt:         pgTimestamptzToTime(row.UpdatedAt),
	}, nil
}

// ListAuditEvents returns the audit rows of a source object, oldest first.
func (r *StateRepository) ListAuditEvents(ctx context.Context, objectKey string) ([]*domain.AuditEvent, error) {
	rows, err := r.queries.ListObjectAuditEvents(ctx, objectKey)
	if err != nil {
		return nil, domain.StorageFailure("list audit events", err)
	}

	events := make([]*domain.AuditEvent, len(rows))
	for i, row := range rows {
		events[i] = &domain.AuditEvent{
			ID:              row.ID,
			ObjectKey:       row.ObjectKey,
			EventType:       domain.AuditEventType(row.EventType),
			TransactionType: domain.TransactionType(row.TransactionType),
			IsError:         row.IsError,
			ErrorMessage:    row.ErrorMessage,
			CreatedAt:       pgTimestamptzToTime(row.CreatedAt),
		}
	}

	return events, nil
}
