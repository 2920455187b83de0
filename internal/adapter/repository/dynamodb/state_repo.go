package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/iho/txconsumer/internal/domain"
)

// StateRepository implements usecase.StateRepository on the state table.
type StateRepository struct {
	client Client
	table  string
}

// NewStateRepository creates a new StateRepository.
func NewStateRepository(client Client, table string) *StateRepository {
	return &StateRepository{client: client, table: table}
}

// MarkState overwrites the STATE item of the object.
func (r *StateRepository) MarkState(ctx context.Context, state *domain.ObjectState) error {
	item, err := marshal(stateItemFrom(state))
	if err != nil {
		return domain.StorageFailure("encode state", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return domain.StorageFailure("put state", err)
	}
	return nil
}

// AppendAuditEvent writes a new audit item. Existing items are never
// overwritten.
func (r *StateRepository) AppendAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	item, err := marshal(auditItemFrom(event))
	if err != nil {
		return domain.StorageFailure("encode audit event", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrPK + ")"),
	})
	if err != nil {
		return domain.StorageFailure("put audit event", err)
	}
	return nil
}

// GetState reads the STATE item of the object.
func (r *StateRepository) GetState(ctx context.Context, objectKey string) (*domain.ObjectState, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            key(objectKey, domain.StateTag),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, domain.StorageFailure("get state", err)
	}
	if len(out.Item) == 0 {
		return nil, domain.ErrStateNotFound
	}

	var item stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, domain.StorageFailure("decode state", err)
	}
	return item.state(), nil
}

// ListAuditEvents returns the audit items of the object, oldest first.
func (r *StateRepository) ListAuditEvents(ctx context.Context, objectKey string) ([]*domain.AuditEvent, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("#pk = :pk AND begins_with(#sk, :prefix)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
			"#sk": attrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: objectKey},
			":prefix": &types.AttributeValueMemberS{Value: domain.AuditEventPrefix},
		},
	})

	var events []*domain.AuditEvent
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, domain.StorageFailure("query audit events", err)
		}

		var items []auditItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, domain.StorageFailure("decode audit events", err)
		}
		for _, item := range items {
			events = append(events, item.event())
		}
	}

	return events, nil
}
