package domain

import "time"

// ProcessingState is the dispatcher state of one message.
type ProcessingState string

const (
	StateReceived   ProcessingState = "Received"
	StateClassified ProcessingState = "Classified"
	StateDispatched ProcessingState = "Dispatched"
	StateCommitted  ProcessingState = "Committed"
	StateRejected   ProcessingState = "Rejected"
)

// IsTerminal reports whether no further transition can follow s.
func (s ProcessingState) IsTerminal() bool {
	return s == StateCommitted || s == StateRejected
}

// StateTag and the audit prefix are the sort keys of object state rows.
const (
	StateTag         = "STATE"
	AuditEventPrefix = "EVENT#"
)

// ObjectState is the mutable lifecycle row of a source object.
type ObjectState struct {
	ObjectKey         string
	SourceBucket      string
	InNewEventsBucket bool
	Processed         bool
	AccountNumber     string
	TransactionType   TransactionType
	Stage             ProcessingState
	ErrorState        bool
	ErrorReason       string
	UpdatedAt         time.Time
}

// AuditEventType classifies audit rows.
type AuditEventType string

const (
	AuditEventCommitted AuditEventType = "transaction.committed"
	AuditEventRejected  AuditEventType = "transaction.rejected"
)

// AuditEvent is one append-only processing attempt of a source object.
type AuditEvent struct {
	ID              string
	ObjectKey       string
	EventType       AuditEventType
	TransactionType TransactionType
	IsError         bool
	ErrorMessage    string
	CreatedAt       time.Time
}

// Tag returns the sort key of the audit row. Nanosecond timestamps keep
// attempts ordered; the ID disambiguates attempts in the same instant.
func (a *AuditEvent) Tag() string {
	return AuditEventPrefix + a.CreatedAt.UTC().Format("20060102T150405.000000000Z") + "#" + a.ID
}
