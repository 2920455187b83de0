package dynamodb

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/usecase"
)

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	client Client
	table  string
	now    func() time.Time
}

// NewBalanceRepository creates a new BalanceRepository on the ledger table.
func NewBalanceRepository(client Client, table string) *BalanceRepository {
	return &BalanceRepository{client: client, table: table, now: time.Now}
}

// Get retrieves a balance with a strongly consistent read.
func (r *BalanceRepository) Get(ctx context.Context, account string, kind domain.BalanceKind) (*domain.BalanceRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            key(account, kind.Tag()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, domain.StorageFailure("get balance", err)
	}
	if len(out.Item) == 0 {
		return domain.NewBalanceRecord(account, kind), nil
	}

	var item balanceItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, domain.StorageFailure("decode balance", err)
	}
	return item.record(kind), nil
}

// Set queues a put conditioned on the stored version.
func (r *BalanceRepository) Set(ctx context.Context, tx usecase.Transaction, record *domain.BalanceRecord) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	item, err := marshal(balanceItemFrom(record, r.now().UTC()))
	if err != nil {
		return domain.StorageFailure("encode balance", err)
	}

	put := &types.Put{
		TableName: aws.String(r.table),
		Item:      item,
	}
	if record.Version == 0 {
		put.ConditionExpression = aws.String("attribute_not_exists(" + attrPK + ")")
	} else {
		put.ConditionExpression = aws.String("#v = :expected")
		put.ExpressionAttributeNames = map[string]string{"#v": attrVersion}
		put.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(record.Version, 10)},
		}
	}

	return t.add(kindBalance, put)
}
