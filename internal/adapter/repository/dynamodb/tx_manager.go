// Package dynamodb stores the ledger and the state tracker in DynamoDB.
//
// The ledger table is keyed by account (PK) and a sort-key tag (SK): one
// item per balance kind and one item per event record. The state table is
// keyed by object key with a STATE item and append-only audit items.
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/usecase"
)

// MaxTransactItems is the DynamoDB limit for one TransactWriteItems call.
const MaxTransactItems = 100

const (
	reasonConditionalCheckFailed = "ConditionalCheckFailed"
	reasonTransactionConflict    = "TransactionConflict"
)

var (
	errForeignTx  = errors.New("transaction does not belong to this client")
	errTxClosed   = errors.New("transaction already closed")
	errTxTooLarge = fmt.Errorf("transaction exceeds %d items", MaxTransactItems)
)

// Client is the subset of the DynamoDB API the repositories use.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type itemKind int

const (
	kindBalance itemKind = iota
	kindEvent
)

// TxManager implements usecase.TransactionManager on TransactWriteItems.
type TxManager struct {
	client Client
}

// NewTxManager creates a new TxManager.
func NewTxManager(client Client) *TxManager {
	return &TxManager{client: client}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageFailure("begin", err)
	}
	return &Tx{client: m.client}, nil
}

// Tx buffers conditional puts and submits them as one TransactWriteItems
// call on Commit.
type Tx struct {
	client Client
	items  []types.TransactWriteItem
	kinds  []itemKind
	done   bool
}

func (t *Tx) add(kind itemKind, put *types.Put) error {
	if t.done {
		return errTxClosed
	}
	if len(t.items) >= MaxTransactItems {
		return errTxTooLarge
	}
	t.items = append(t.items, types.TransactWriteItem{Put: put})
	t.kinds = append(t.kinds, kind)
	return nil
}

// Commit writes every buffered item, or none of them.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxClosed
	}
	t.done = true

	if len(t.items) == 0 {
		return nil
	}

	_, err := t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: t.items,
	})
	if err != nil {
		return t.mapError(err)
	}
	return nil
}

// Rollback discards buffered items. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.done = true
	t.items = nil
	t.kinds = nil
	return nil
}

// mapError turns a cancelled transaction into the domain error of the first
// item whose condition failed.
func (t *Tx) mapError(err error) error {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for i, reason := range canceled.CancellationReasons {
			switch aws.ToString(reason.Code) {
			case reasonConditionalCheckFailed:
				if i < len(t.kinds) && t.kinds[i] == kindEvent {
					return domain.ErrDuplicateEvent
				}
				return domain.ErrVersionConflict
			case reasonTransactionConflict:
				return domain.ErrVersionConflict
			}
		}
		return domain.StorageFailure("transact write items", err)
	}

	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return domain.ErrVersionConflict
	}

	return domain.StorageFailure("transact write items", err)
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	dt, ok := tx.(*Tx)
	if !ok {
		return nil, errForeignTx
	}
	return dt, nil
}
