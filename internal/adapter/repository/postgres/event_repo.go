package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/infrastructure/postgres/generated"
	"github.com/iho/txconsumer/internal/usecase"
)

// EventRepository implements usecase.EventRepository.
type EventRepository struct {
	queries *generated.Queries
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db generated.DBTX) *EventRepository {
	return &EventRepository{queries: generated.New(db)}
}

// Append inserts a new event record. An existing key is a duplicate.
func (r *EventRepository) Append(ctx context.Context, tx usecase.Transaction, event *domain.EventRecord) error {
	pgxTx, err := pgxTx(tx)
	if err != nil {
		return err
	}

	affected, err := r.queries.WithTx(pgxTx).InsertTransactionEvent(ctx, generated.InsertTransactionEventParams{
		AccountRef:                 event.AccountRef,
		Stage:                      string(event.Stage),
		S3Bucket:                   event.Provenance.S3Bucket,
		S3Key:                      event.Provenance.S3Key,
		TransactionDate:            int32(event.TransactionDate),
		TransactionTime:            int32(event.TransactionTime),
		RawPayload:                 string(event.RawPayload),
		Amount:                     decimalToNumeric(event.Amount),
		TransactionType:            string(event.TransactionType),
		RequestID:                  event.RequestID,
		PreviousRequestIDReference: event.PreviousRequestIDReference,
		EffectOnActualBalance:      string(event.EffectOnActualBalance),
		EffectOnAvailableBalance:   string(event.EffectOnAvailableBalance),
		ActualDelta:                decimalToNumeric(event.ActualDelta),
		AvailableDelta:             decimalToNumeric(event.AvailableDelta),
		CreatedAt:                  timeToPgTimestamptz(event.CreatedAt),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return domain.ErrDuplicateEvent
		}
		return mapError("append event", err)
	}
	if affected == 0 {
		return domain.ErrDuplicateEvent
	}

	return nil
}

// FindByRequestID returns the record carrying requestID, PENDING first.
func (r *EventRepository) FindByRequestID(ctx context.Context, account, requestID string) (*domain.EventRecord, error) {
	row, err := r.queries.GetEventByRequestID(ctx, generated.GetEventByRequestIDParams{
		AccountRef: account,
		RequestID:  requestID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPredecessorNotFound
		}
		return nil, domain.StorageFailure("find event by request id", err)
	}

	return rowToEvent(row), nil
}

// FindByPreviousRequestID returns the record settling requestID, or nil.
func (r *EventRepository) FindByPreviousRequestID(ctx context.Context, account, requestID string) (*domain.EventRecord, error) {
	row, err := r.queries.GetEventByPreviousRequestID(ctx, generated.GetEventByPreviousRequestIDParams{
		AccountRef:                 account,
		PreviousRequestIDReference: requestID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.StorageFailure("find event by previous request id", err)
	}

	return rowToEvent(row), nil
}

// ListByAccount returns the account's log in commit order.
func (r *EventRepository) ListByAccount(ctx context.Context, account string) ([]*domain.EventRecord, error) {
	rows, err := r.queries.ListEventsByAccount(ctx, account)
	if err != nil {
		return nil, domain.StorageFailure("list events", err)
	}

	events := make([]*domain.EventRecord, len(rows))
	for i, row := range rows {
		events[i] = rowToEvent(row)
	}

	return events, nil
}

func rowToEvent(row generated.TransactionEvent) *domain.EventRecord {
	return &domain.EventRecord{
		AccountRef:                 row.AccountRef,
		Stage:                      domain.Stage(row.Stage),
		Provenance:                 domain.Provenance{S3Bucket: row.S3Bucket, S3Key: row.S3Key},
		TransactionDate:            int(row.TransactionDate),
		TransactionTime:            int(row.TransactionTime),
		RawPayload:                 []byte(row.RawPayload),
		Amount:                     numericToDecimal(row.Amount),
		TransactionType:            domain.TransactionType(row.TransactionType),
		RequestID:                  row.RequestID,
		PreviousRequestIDReference: row.PreviousRequestIDReference,
		EffectOnActualBalance:      domain.Effect(row.EffectOnActualBalance),
		EffectOnAvailableBalance:   domain.Effect(row.EffectOnAvailableBalance),
		ActualDelta:                numericToDecimal(row.ActualDelta),
		AvailableDelta:             numericToDecimal(row.AvailableDelta),
		CreatedAt:                  pgTimestamptzToTime(row.CreatedAt),
	}
}
