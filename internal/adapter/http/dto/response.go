package dto

import (
	"encoding/json"
	"time"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/usecase"
)

// BalanceResponse represents one balance of an account.
type BalanceResponse struct {
	Kind                string    `json:"kind"`
	Balance             string    `json:"balance"`
	LastTransactionDate int       `json:"last_transaction_date,omitempty"`
	LastTransactionTime int       `json:"last_transaction_time,omitempty"`
	LastEventKey        string    `json:"last_event_key,omitempty"`
	Version             int64     `json:"version"`
	UpdatedAt           time.Time `json:"updated_at,omitempty"`
}

// AccountBalancesResponse represents both balances of an account.
type AccountBalancesResponse struct {
	AccountRef string           `json:"account_ref"`
	Actual     *BalanceResponse `json:"actual"`
	Available  *BalanceResponse `json:"available"`
}

// BalanceFromDomain converts a balance record to response.
func BalanceFromDomain(b *domain.BalanceRecord) *BalanceResponse {
	return &BalanceResponse{
		Kind:                string(b.Kind),
		Balance:             b.Balance.String(),
		LastTransactionDate: b.LastTransactionDate,
		LastTransactionTime: b.LastTransactionTime,
		LastEventKey:        b.LastEventKey,
		Version:             b.Version,
		UpdatedAt:           b.UpdatedAt,
	}
}

// AccountBalancesFromDomain converts an account balance pair to response.
func AccountBalancesFromDomain(b *usecase.AccountBalances) *AccountBalancesResponse {
	return &AccountBalancesResponse{
		AccountRef: b.AccountRef,
		Actual:     BalanceFromDomain(b.Actual),
		Available:  BalanceFromDomain(b.Available),
	}
}

// EventResponse represents a recorded transaction event.
type EventResponse struct {
	AccountRef                 string          `json:"account_ref"`
	Stage                      string          `json:"stage"`
	S3Bucket                   string          `json:"s3_bucket"`
	S3Key                      string          `json:"s3_key"`
	TransactionType            string          `json:"transaction_type"`
	Amount                     string          `json:"amount"`
	RequestID                  string          `json:"request_id"`
	PreviousRequestIDReference string          `json:"previous_request_id_reference,omitempty"`
	EffectOnActualBalance      string          `json:"effect_on_actual_balance"`
	EffectOnAvailableBalance   string          `json:"effect_on_available_balance"`
	ActualDelta                string          `json:"actual_delta"`
	AvailableDelta             string          `json:"available_delta"`
	TransactionDate            int             `json:"transaction_date"`
	TransactionTime            int             `json:"transaction_time"`
	RawPayload                 json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt                  time.Time       `json:"created_at"`
}

// EventFromDomain converts an event record to response.
func EventFromDomain(e *domain.EventRecord) *EventResponse {
	return &EventResponse{
		AccountRef:                 e.AccountRef,
		Stage:                      string(e.Stage),
		S3Bucket:                   e.Provenance.S3Bucket,
		S3Key:                      e.Provenance.S3Key,
		TransactionType:            string(e.TransactionType),
		Amount:                     e.Amount.String(),
		RequestID:                  e.RequestID,
		PreviousRequestIDReference: e.PreviousRequestIDReference,
		EffectOnActualBalance:      string(e.EffectOnActualBalance),
		EffectOnAvailableBalance:   string(e.EffectOnAvailableBalance),
		ActualDelta:                e.ActualDelta.String(),
		AvailableDelta:             e.AvailableDelta.String(),
		TransactionDate:            e.TransactionDate,
		TransactionTime:            e.TransactionTime,
		RawPayload:                 e.RawPayload,
		CreatedAt:                  e.CreatedAt,
	}
}

// EventsFromDomain converts event records to responses.
func EventsFromDomain(events []*domain.EventRecord) []*EventResponse {
	result := make([]*EventResponse, len(events))
	for i, e := range events {
		result[i] = EventFromDomain(e)
	}
	return result
}

// ReconciliationResponse represents the check of one balance.
type ReconciliationResponse struct {
	AccountRef        string    `json:"account_ref"`
	Kind              string    `json:"kind"`
	RecordedBalance   string    `json:"recorded_balance"`
	CalculatedBalance string    `json:"calculated_balance"`
	Difference        string    `json:"difference"`
	EventCount        int       `json:"event_count"`
	IsReconciled      bool      `json:"is_reconciled"`
	LastChecked       time.Time `json:"last_checked"`
}

// ReconciliationFromDomain converts reconciliation results to responses.
func ReconciliationFromDomain(results []*usecase.ReconciliationResult) []*ReconciliationResponse {
	out := make([]*ReconciliationResponse, len(results))
	for i, r := range results {
		out[i] = &ReconciliationResponse{
			AccountRef:        r.AccountRef,
			Kind:              string(r.Kind),
			RecordedBalance:   r.RecordedBalance.String(),
			CalculatedBalance: r.CalculatedBalance.String(),
			Difference:        r.Difference.String(),
			EventCount:        r.EventCount,
			IsReconciled:      r.IsReconciled,
			LastChecked:       r.LastChecked,
		}
	}
	return out
}

// ObjectStateResponse represents the processing history of a source object.
type ObjectStateResponse struct {
	ObjectKey         string                `json:"object_key"`
	SourceBucket      string                `json:"source_bucket"`
	InNewEventsBucket bool                  `json:"in_new_events_bucket"`
	Processed         bool                  `json:"processed"`
	AccountNumber     string                `json:"account_number,omitempty"`
	TransactionType   string                `json:"transaction_type,omitempty"`
	Stage             string                `json:"stage"`
	ErrorState        bool                  `json:"error_state"`
	ErrorReason       string                `json:"error_reason,omitempty"`
	UpdatedAt         time.Time             `json:"updated_at"`
	GuardMarker       string                `json:"guard_marker,omitempty"`
	Audits            []*AuditEventResponse `json:"audits"`
}

// AuditEventResponse represents one processing attempt.
type AuditEventResponse struct {
	ID              string    `json:"id"`
	EventType       string    `json:"event_type"`
	TransactionType string    `json:"transaction_type,omitempty"`
	IsError         bool      `json:"is_error"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ObjectStateFromDomain converts an object history to response.
func ObjectStateFromDomain(h *usecase.ObjectHistory) *ObjectStateResponse {
	s := h.State
	resp := &ObjectStateResponse{
		ObjectKey:         s.ObjectKey,
		SourceBucket:      s.SourceBucket,
		InNewEventsBucket: s.InNewEventsBucket,
		Processed:         s.Processed,
		AccountNumber:     s.AccountNumber,
		TransactionType:   string(s.TransactionType),
		Stage:             string(s.Stage),
		ErrorState:        s.ErrorState,
		ErrorReason:       s.ErrorReason,
		UpdatedAt:         s.UpdatedAt,
		Audits:            make([]*AuditEventResponse, len(h.Audits)),
	}
	for i, a := range h.Audits {
		resp.Audits[i] = &AuditEventResponse{
			ID:              a.ID,
			EventType:       string(a.EventType),
			TransactionType: string(a.TransactionType),
			IsError:         a.IsError,
			ErrorMessage:    a.ErrorMessage,
			CreatedAt:       a.CreatedAt,
		}
	}
	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
