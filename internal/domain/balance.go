package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceKind selects one of the two balances kept per account.
type BalanceKind string

const (
	// BalanceActual is the settled amount on the account.
	BalanceActual BalanceKind = "ACTUAL"
	// BalanceAvailable is the amount that may be spent right now.
	BalanceAvailable BalanceKind = "AVAILABLE"
)

// BalanceKinds lists the kinds in storage order.
var BalanceKinds = []BalanceKind{BalanceActual, BalanceAvailable}

// Tag returns the sort key used by single-table stores.
func (k BalanceKind) Tag() string {
	return "SAVINGS#BALANCE#" + string(k)
}

// ParseBalanceKind accepts the kind in any letter case.
func ParseBalanceKind(s string) (BalanceKind, error) {
	switch BalanceKind(strings.ToUpper(strings.TrimSpace(s))) {
	case BalanceActual:
		return BalanceActual, nil
	case BalanceAvailable:
		return BalanceAvailable, nil
	}
	return "", fmt.Errorf("unknown balance kind %q", s)
}

// BalanceRecord is the current value of one balance of one account.
// Version is the optimistic-lock counter; 0 means the record was never stored.
type BalanceRecord struct {
	AccountRef          string
	Kind                BalanceKind
	Balance             decimal.Decimal
	LastTransactionDate int
	LastTransactionTime int
	LastEventKey        string
	Version             int64
	UpdatedAt           time.Time
}

// NewBalanceRecord returns the zero balance for an account that has never
// been touched.
func NewBalanceRecord(account string, kind BalanceKind) *BalanceRecord {
	return &BalanceRecord{
		AccountRef: account,
		Kind:       kind,
		Balance:    decimal.Zero,
	}
}

// Apply returns a copy carrying the new balance and the stamp of the event
// that produced it. Version is left unchanged: it is the expected stored
// version for the conditional write.
func (b *BalanceRecord) Apply(delta decimal.Decimal, stamp EventStamp, eventKey string) *BalanceRecord {
	next := *b
	next.Balance = b.Balance.Add(delta)
	next.LastTransactionDate = stamp.Date
	next.LastTransactionTime = stamp.Time
	next.LastEventKey = eventKey
	return &next
}

// Effect describes how a transaction moved a balance.
type Effect string

const (
	EffectIncrease Effect = "Increase"
	EffectDecrease Effect = "Decrease"
	EffectAdjusted Effect = "Adjusted"
	EffectNone     Effect = "None"
)

// EffectOf classifies a signed delta. Adjusted is never inferred; handlers
// set it explicitly for corrections.
func EffectOf(delta decimal.Decimal) Effect {
	switch delta.Sign() {
	case 1:
		return EffectIncrease
	case -1:
		return EffectDecrease
	default:
		return EffectNone
	}
}

// EventStamp is the YYYYMMDD / HHMMSS pair derived from an event timestamp.
type EventStamp struct {
	Date int
	Time int
}

// StampFromUnix converts epoch seconds into the numeric date and time stamps
// kept on balance and event records. UTC is used throughout.
func StampFromUnix(sec int64) EventStamp {
	t := time.Unix(sec, 0).UTC()
	return EventStamp{
		Date: t.Year()*10000 + int(t.Month())*100 + t.Day(),
		Time: t.Hour()*10000 + t.Minute()*100 + t.Second(),
	}
}
