package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Provenance identifies the stored object an event was read from.
type Provenance struct {
	S3Bucket string `json:"S3Bucket"`
	S3Key    string `json:"S3Key"`
}

// TransactionEvent is the message body delivered to the processor. Field
// names follow the upstream JSON documents.
type TransactionEvent struct {
	EventTimeStamp             int64           `json:"EventTimeStamp"`
	Amount                     decimal.Decimal `json:"Amount"`
	TransactionType            TransactionType `json:"TransactionType"`
	RequestID                  string          `json:"RequestId"`
	ReferenceAccount           string          `json:"ReferenceAccount"`
	EventSourceDataResource    Provenance      `json:"EventSourceDataResource"`
	PreviousRequestIDReference string          `json:"PreviousRequestIdReference,omitempty"`
	TargetAccount              string          `json:"TargetAccount,omitempty"`
	SourceAccount              string          `json:"SourceAccount,omitempty"`
	SourceInstitution          string          `json:"SourceInstitution,omitempty"`
	Reference                  string          `json:"Reference,omitempty"`

	// Raw is the body as received; it is persisted verbatim on event records.
	Raw json.RawMessage `json:"-"`
}

// ParseTransactionEvent decodes a message body. It checks only that the
// document is well formed and carries a transaction type; Validate does the
// per-type checks once the type is known to be recognized.
func ParseTransactionEvent(body []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if strings.TrimSpace(string(ev.TransactionType)) == "" {
		return nil, fmt.Errorf("%w: TransactionType is required", ErrInvalidEvent)
	}
	ev.Raw = append(json.RawMessage(nil), body...)
	return &ev, nil
}

// ObjectKey is the provenance key used to track processing state.
func (e *TransactionEvent) ObjectKey() string {
	return e.EventSourceDataResource.S3Key
}

// Stamp returns the date/time stamp of the event.
func (e *TransactionEvent) Stamp() EventStamp {
	return StampFromUnix(e.EventTimeStamp)
}

// TransferSource is the debited account of an inter-account transfer.
func (e *TransactionEvent) TransferSource() string {
	if e.SourceAccount != "" {
		return e.SourceAccount
	}
	return e.ReferenceAccount
}

// Validate checks the fields every handler relies on, plus the fields
// specific to e.TransactionType.
func (e *TransactionEvent) Validate() error {
	var missing []string
	if e.ReferenceAccount == "" {
		missing = append(missing, "ReferenceAccount")
	}
	if e.RequestID == "" {
		missing = append(missing, "RequestId")
	}
	if e.EventSourceDataResource.S3Bucket == "" {
		missing = append(missing, "EventSourceDataResource.S3Bucket")
	}
	if e.EventSourceDataResource.S3Key == "" {
		missing = append(missing, "EventSourceDataResource.S3Key")
	}
	if _, linked := e.TransactionType.Predecessor(); linked && e.PreviousRequestIDReference == "" {
		missing = append(missing, "PreviousRequestIdReference")
	}
	if e.TransactionType == TxInterAccountTransfer && e.TargetAccount == "" {
		missing = append(missing, "TargetAccount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidEvent, strings.Join(missing, ", "))
	}

	for _, ref := range []string{e.ReferenceAccount, e.TargetAccount, e.SourceAccount} {
		if ref == "" {
			continue
		}
		if err := ValidateAccountRef(ref); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
	}
	if e.EventTimeStamp <= 0 {
		return fmt.Errorf("%w: EventTimeStamp must be positive", ErrInvalidEvent)
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if e.TransactionType == TxInterAccountTransfer && e.TransferSource() == e.TargetAccount {
		return ErrSameAccount
	}
	return nil
}
