package dynamodb

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is an in-memory table store that understands the handful of
// expressions the repositories emit.
type fakeClient struct {
	mu          sync.Mutex
	tables      map[string]map[string]map[string]types.AttributeValue
	queryCalls  int
	transactErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{tables: make(map[string]map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func itemID(item map[string]types.AttributeValue) string {
	return str(item[attrPK]) + "\x00" + str(item[attrSK])
}

func (c *fakeClient) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := c.tables[name]
	if !ok {
		t = make(map[string]map[string]types.AttributeValue)
		c.tables[name] = t
	}
	return t
}

func (c *fakeClient) conditionHolds(existing map[string]types.AttributeValue, expr *string, names map[string]string, values map[string]types.AttributeValue) bool {
	switch aws.ToString(expr) {
	case "":
		return true
	case "attribute_not_exists(" + attrPK + ")":
		return existing == nil
	case "#v = :expected":
		return existing != nil && str(existing[names["#v"]]) == str(values[":expected"])
	}
	panic("unsupported condition " + aws.ToString(expr))
}

func (c *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &dynamodb.GetItemOutput{Item: c.table(aws.ToString(in.TableName))[itemID(in.Key)]}, nil
}

func (c *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.table(aws.ToString(in.TableName))
	id := itemID(in.Item)
	if !c.conditionHolds(t[id], in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	t[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (c *fakeClient) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transactErr != nil {
		return nil, c.transactErr
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		put := ti.Put
		existing := c.table(aws.ToString(put.TableName))[itemID(put.Item)]
		code := "None"
		if !c.conditionHolds(existing, put.ConditionExpression, put.ExpressionAttributeNames, put.ExpressionAttributeValues) {
			code = reasonConditionalCheckFailed
			failed = true
		}
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		c.table(aws.ToString(ti.Put.TableName))[itemID(ti.Put.Item)] = ti.Put.Item
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (c *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryCalls++

	if aws.ToString(in.KeyConditionExpression) != "#pk = :pk AND begins_with(#sk, :prefix)" {
		return nil, errors.New("unsupported key condition")
	}
	pk := str(in.ExpressionAttributeValues[":pk"])
	prefix := str(in.ExpressionAttributeValues[":prefix"])

	var matched []map[string]types.AttributeValue
	for _, item := range c.table(aws.ToString(in.TableName)) {
		if str(item[attrPK]) == pk && strings.HasPrefix(str(item[attrSK]), prefix) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return str(matched[i][attrSK]) < str(matched[j][attrSK])
	})

	start := 0
	if in.ExclusiveStartKey != nil {
		after := str(in.ExclusiveStartKey[attrSK])
		for start < len(matched) && str(matched[start][attrSK]) <= after {
			start++
		}
	}

	end := len(matched)
	if limit := int(aws.ToInt32(in.Limit)); limit > 0 && start+limit < end {
		end = start + limit
	}

	out := &dynamodb.QueryOutput{}
	for _, item := range matched[start:end] {
		if in.FilterExpression != nil {
			attr := in.ExpressionAttributeNames["#f"]
			if str(item[attr]) != str(in.ExpressionAttributeValues[":f"]) {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	if end < len(matched) {
		last := matched[end-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			attrPK: last[attrPK],
			attrSK: last[attrSK],
		}
	}
	return out, nil
}
