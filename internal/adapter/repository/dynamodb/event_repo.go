package dynamodb

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/usecase"
)

// DefaultPageSize is the number of items evaluated per Query page.
const DefaultPageSize = 100

const eventTagPrefix = "TRANSACTIONS#"

// EventRepository implements usecase.EventRepository.
type EventRepository struct {
	client   Client
	table    string
	pageSize int32
}

// NewEventRepository creates a new EventRepository on the ledger table.
func NewEventRepository(client Client, table string, pageSize int32) *EventRepository {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &EventRepository{client: client, table: table, pageSize: pageSize}
}

// Append queues a put that fails if the event tag already exists.
func (r *EventRepository) Append(ctx context.Context, tx usecase.Transaction, event *domain.EventRecord) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	item, err := marshal(eventItemFrom(event))
	if err != nil {
		return domain.StorageFailure("encode event", err)
	}

	return t.add(kindEvent, &types.Put{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrPK + ")"),
	})
}

// FindByRequestID walks every page of the account's events. A PENDING
// record is returned as soon as it is seen.
func (r *EventRepository) FindByRequestID(ctx context.Context, account, requestID string) (*domain.EventRecord, error) {
	var found *domain.EventRecord

	err := r.query(ctx, account, "RequestId", requestID, func(rec *domain.EventRecord) bool {
		if found == nil || rec.Stage == domain.StagePending {
			found = rec
		}
		return rec.Stage != domain.StagePending
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, domain.ErrPredecessorNotFound
	}
	return found, nil
}

// FindByPreviousRequestID returns the first record referencing requestID,
// or nil.
func (r *EventRepository) FindByPreviousRequestID(ctx context.Context, account, requestID string) (*domain.EventRecord, error) {
	var found *domain.EventRecord

	err := r.query(ctx, account, "PreviousRequestIdReference", requestID, func(rec *domain.EventRecord) bool {
		found = rec
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ListByAccount returns the account's events in commit order.
func (r *EventRepository) ListByAccount(ctx context.Context, account string) ([]*domain.EventRecord, error) {
	var out []*domain.EventRecord

	err := r.query(ctx, account, "", "", func(rec *domain.EventRecord) bool {
		out = append(out, rec)
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// query pages through the account's event items, optionally filtered by
// attr = value, until visit returns false.
func (r *EventRepository) query(ctx context.Context, account, attr, value string, visit func(*domain.EventRecord) bool) error {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("#pk = :pk AND begins_with(#sk, :prefix)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
			"#sk": attrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: account},
			":prefix": &types.AttributeValueMemberS{Value: eventTagPrefix},
		},
		ConsistentRead: aws.Bool(true),
		Limit:          aws.Int32(r.pageSize),
	}
	if attr != "" {
		input.FilterExpression = aws.String("#f = :f")
		input.ExpressionAttributeNames["#f"] = attr
		input.ExpressionAttributeValues[":f"] = &types.AttributeValueMemberS{Value: value}
	}

	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return domain.StorageFailure("query events", err)
		}

		var items []eventItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return domain.StorageFailure("decode events", err)
		}

		for _, item := range items {
			rec, err := item.record()
			if err != nil {
				return domain.StorageFailure("decode event tag", err)
			}
			if !visit(rec) {
				return nil
			}
		}
	}

	return nil
}
