package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stage is the settlement stage recorded in an event tag.
type Stage string

const (
	StagePending  Stage = "PENDING"
	StageVerified Stage = "VERIFIED"
)

const eventTagPrefix = "TRANSACTIONS#"

// EventTag builds the sort key of an event record:
// TRANSACTIONS#<stage>#<bucket>#<key>.
func EventTag(stage Stage, p Provenance) string {
	return eventTagPrefix + string(stage) + "#" + p.S3Bucket + "#" + p.S3Key
}

// IsEventTag reports whether a sort key belongs to an event record.
func IsEventTag(tag string) bool {
	return strings.HasPrefix(tag, eventTagPrefix)
}

// ParseEventTag splits an event tag into stage and provenance. Bucket names
// cannot contain '#', so everything after the third separator is the key.
func ParseEventTag(tag string) (Stage, Provenance, error) {
	if !IsEventTag(tag) {
		return "", Provenance{}, fmt.Errorf("not an event tag: %q", tag)
	}
	parts := strings.SplitN(strings.TrimPrefix(tag, eventTagPrefix), "#", 3)
	if len(parts) != 3 {
		return "", Provenance{}, fmt.Errorf("malformed event tag: %q", tag)
	}
	return Stage(parts[0]), Provenance{S3Bucket: parts[1], S3Key: parts[2]}, nil
}

// EventRecord is one immutable entry of an account's transaction log.
type EventRecord struct {
	AccountRef                 string
	Stage                      Stage
	Provenance                 Provenance
	TransactionDate            int
	TransactionTime            int
	RawPayload                 json.RawMessage
	Amount                     decimal.Decimal
	TransactionType            TransactionType
	RequestID                  string
	PreviousRequestIDReference string
	EffectOnActualBalance      Effect
	EffectOnAvailableBalance   Effect
	ActualDelta                decimal.Decimal
	AvailableDelta             decimal.Decimal
	CreatedAt                  time.Time
}

// Tag returns the record's sort key.
func (r *EventRecord) Tag() string {
	return EventTag(r.Stage, r.Provenance)
}

// EventKey is the source object key, kept under its storage name.
func (r *EventRecord) EventKey() string {
	return r.Provenance.S3Key
}

// NewEventRecord builds the log entry for one account leg of an event.
func NewEventRecord(ev *TransactionEvent, account string, stage Stage, actual, available Effect, actualDelta, availableDelta decimal.Decimal, now time.Time) *EventRecord {
	stamp := ev.Stamp()
	return &EventRecord{
		AccountRef:                 account,
		Stage:                      stage,
		Provenance:                 ev.EventSourceDataResource,
		TransactionDate:            stamp.Date,
		TransactionTime:            stamp.Time,
		RawPayload:                 ev.Raw,
		Amount:                     ev.Amount,
		TransactionType:            ev.TransactionType,
		RequestID:                  ev.RequestID,
		PreviousRequestIDReference: ev.PreviousRequestIDReference,
		EffectOnActualBalance:      actual,
		EffectOnAvailableBalance:   available,
		ActualDelta:                actualDelta,
		AvailableDelta:             availableDelta,
		CreatedAt:                  now,
	}
}

// Delta returns the signed amount the record applied to a balance kind.
func (r *EventRecord) Delta(kind BalanceKind) decimal.Decimal {
	if kind == BalanceActual {
		return r.ActualDelta
	}
	return r.AvailableDelta
}
