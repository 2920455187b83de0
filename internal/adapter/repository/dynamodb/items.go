package dynamodb

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/iho/txconsumer/internal/domain"
)

// Attribute names shared by every item kind.
const (
	attrPK      = "PK"
	attrSK      = "SK"
	attrVersion = "Version"

	// notApplicable marks an absent predecessor reference, as upstream
	// producers write it.
	notApplicable = "n/a"
)

// number stores a decimal as a DynamoDB number without float rounding.
type number struct {
	decimal.Decimal
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (n number) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: n.String()}, nil
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (n *number) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		n.Decimal = decimal.Zero
		return nil
	default:
		return fmt.Errorf("unsupported attribute type %T for decimal", av)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	n.Decimal = d
	return nil
}

type balanceItem struct {
	PK                  string    `dynamodbav:"PK"`
	SK                  string    `dynamodbav:"SK"`
	Balance             number    `dynamodbav:"Balance"`
	LastTransactionDate int       `dynamodbav:"LastTransactionDate"`
	LastTransactionTime int       `dynamodbav:"LastTransactionTime"`
	EventKey            string    `dynamodbav:"EventKey"`
	Version             int64     `dynamodbav:"Version"`
	UpdatedAt           time.Time `dynamodbav:"UpdatedAt"`
}

func balanceItemFrom(r *domain.BalanceRecord, now time.Time) balanceItem {
	return balanceItem{
		PK:                  r.AccountRef,
		SK:                  r.Kind.Tag(),
		Balance:             number{r.Balance},
		LastTransactionDate: r.LastTransactionDate,
		LastTransactionTime: r.LastTransactionTime,
		EventKey:            r.LastEventKey,
		Version:             r.Version + 1,
		UpdatedAt:           now,
	}
}

func (i balanceItem) record(kind domain.BalanceKind) *domain.BalanceRecord {
	return &domain.BalanceRecord{
		AccountRef:          i.PK,
		Kind:                kind,
		Balance:             i.Balance.Decimal,
		LastTransactionDate: i.LastTransactionDate,
		LastTransactionTime: i.LastTransactionTime,
		LastEventKey:        i.EventKey,
		Version:             i.Version,
		UpdatedAt:           i.UpdatedAt,
	}
}

type eventItem struct {
	PK                         string    `dynamodbav:"PK"`
	SK                         string    `dynamodbav:"SK"`
	TransactionDate            int       `dynamodbav:"TransactionDate"`
	TransactionTime            int       `dynamodbav:"TransactionTime"`
	EventKey                   string    `dynamodbav:"EventKey"`
	EventRawData               string    `dynamodbav:"EventRawData"`
	Amount                     number    `dynamodbav:"Amount"`
	TransactionType            string    `dynamodbav:"TransactionType"`
	RequestID                  string    `dynamodbav:"RequestId"`
	PreviousRequestIDReference string    `dynamodbav:"PreviousRequestIdReference"`
	EffectOnActualBalance      string    `dynamodbav:"EffectOnActualBalance"`
	EffectOnAvailableBalance   string    `dynamodbav:"EffectOnAvailableBalance"`
	ActualDelta                number    `dynamodbav:"ActualDelta"`
	AvailableDelta             number    `dynamodbav:"AvailableDelta"`
	CreatedAt                  time.Time `dynamodbav:"CreatedAt"`
}

func eventItemFrom(r *domain.EventRecord) eventItem {
	prev := r.PreviousRequestIDReference
	if prev == "" {
		prev = notApplicable
	}

	return eventItem{
		PK:                         r.AccountRef,
		SK:                         r.Tag(),
		TransactionDate:            r.TransactionDate,
		TransactionTime:            r.TransactionTime,
		EventKey:                   r.EventKey(),
		EventRawData:               string(r.RawPayload),
		Amount:                     number{r.Amount},
		TransactionType:            string(r.TransactionType),
		RequestID:                  r.RequestID,
		PreviousRequestIDReference: prev,
		EffectOnActualBalance:      string(r.EffectOnActualBalance),
		EffectOnAvailableBalance:   string(r.EffectOnAvailableBalance),
		ActualDelta:                number{r.ActualDelta},
		AvailableDelta:             number{r.AvailableDelta},
		CreatedAt:                  r.CreatedAt,
	}
}

func (i eventItem) record() (*domain.EventRecord, error) {
	stage, provenance, err := domain.ParseEventTag(i.SK)
	if err != nil {
		return nil, err
	}

	prev := i.PreviousRequestIDReference
	if prev == notApplicable {
		prev = ""
	}

	return &domain.EventRecord{
		AccountRef:                 i.PK,
		Stage:                      stage,
		Provenance:                 provenance,
		TransactionDate:            i.TransactionDate,
		TransactionTime:            i.TransactionTime,
		RawPayload:                 []byte(i.EventRawData),
		Amount:                     i.Amount.Decimal,
		TransactionType:            domain.TransactionType(i.TransactionType),
		RequestID:                  i.RequestID,
		PreviousRequestIDReference: prev,
		EffectOnActualBalance:      domain.Effect(i.EffectOnActualBalance),
		EffectOnAvailableBalance:   domain.Effect(i.EffectOnAvailableBalance),
		ActualDelta:                i.ActualDelta.Decimal,
		AvailableDelta:             i.AvailableDelta.Decimal,
		CreatedAt:                  i.CreatedAt,
	}, nil
}

type stateItem struct {
	PK                string    `dynamodbav:"PK"`
	SK                string    `dynamodbav:"SK"`
	SourceBucket      string    `dynamodbav:"SourceBucket"`
	InNewEventsBucket bool      `dynamodbav:"InNewEventsBucket"`
	Processed         bool      `dynamodbav:"Processed"`
	AccountNumber     string    `dynamodbav:"AccountNumber"`
	TransactionType   string    `dynamodbav:"TransactionType"`
	Stage             string    `dynamodbav:"Stage"`
	ErrorState        bool      `dynamodbav:"ErrorState"`
	ErrorReason       string    `dynamodbav:"ErrorReason"`
	UpdatedAt         time.Time `dynamodbav:"UpdatedAt"`
}

func stateItemFrom(s *domain.ObjectState) stateItem {
	return stateItem{
		PK:                s.ObjectKey,
		SK:                domain.StateTag,
		SourceBucket:      s.SourceBucket,
		InNewEventsBucket: s.InNewEventsBucket,
		Processed:         s.Processed,
		AccountNumber:     s.AccountNumber,
		TransactionType:   string(s.TransactionType),
		Stage:             string(s.Stage),
		ErrorState:        s.ErrorState,
		ErrorReason:       s.ErrorReason,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (i stateItem) state() *domain.ObjectState {
	return &domain.ObjectState{
		ObjectKey:         i.PK,
		SourceBucket:      i.SourceBucket,
		InNewEventsBucket: i.InNewEventsBucket,
		Processed:         i.Processed,
		AccountNumber:     i.AccountNumber,
		TransactionType:   domain.TransactionType(i.TransactionType),
		Stage:             domain.ProcessingState(i.Stage),
		ErrorState:        i.ErrorState,
		ErrorReason:       i.ErrorReason,
		UpdatedAt:         i.UpdatedAt,
	}
}

type auditItem struct {
	PK              string    `dynamodbav:"PK"`
	SK              string    `dynamodbav:"SK"`
	ID              string    `dynamodbav:"Id"`
	EventType       string    `dynamodbav:"EventType"`
	TransactionType string    `dynamodbav:"TransactionType"`
	IsError         bool      `dynamodbav:"IsError"`
	ErrorMessage    string    `dynamodbav:"ErrorMessage"`
	CreatedAt       time.Time `dynamodbav:"CreatedAt"`
}

func auditItemFrom(a *domain.AuditEvent) auditItem {
	return auditItem{
		PK:              a.ObjectKey,
		SK:              a.Tag(),
		ID:              a.ID,
		EventType:       string(a.EventType),
		TransactionType: string(a.TransactionType),
		IsError:         a.IsError,
		ErrorMessage:    a.ErrorMessage,
		CreatedAt:       a.CreatedAt,
	}
}

func (i auditItem) event() *domain.AuditEvent {
	return &domain.AuditEvent{
		ID:              i.ID,
		ObjectKey:       i.PK,
		EventType:       domain.AuditEventType(i.EventType),
		TransactionType: domain.TransactionType(i.TransactionType),
		IsError:         i.IsError,
		ErrorMessage:    i.ErrorMessage,
		CreatedAt:       i.CreatedAt,
	}
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

func marshal(v any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return item, nil
}
