package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sethvargo/go-retry"
	"github.com/smartfix-api/internal/domain"
)

// itemAPI is the slice of the DynamoDB client a versioned table needs.
type itemAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// versionedTable stores one record type keyed by a single string attribute
// and guarded by a numeric version attribute, the same way AccountRepo guards
// accounts.
type versionedTable[T any] struct {
	client   itemAPI
	table    string
	keyField string
	entity   string
	notFound error
	retries  uint64
	backoff  time.Duration
	key      func(*T) string
	version  func(*T) *int64
}

// create writes a new record at version 1. An existing key is a duplicate.
func (t *versionedTable[T]) create(ctx context.Context, v *T) error {
	*t.version(v) = 1
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", t.entity, err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(t.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": t.keyField},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%s %s already exists: %w", t.entity, t.key(v), domain.ErrDuplicateKey)
		}
		return fmt.Errorf("create %s: %w", t.entity, err)
	}
	return nil
}

func (t *versionedTable[T]) get(ctx context.Context, id string) (*T, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.table),
		Key:            strKey(t.keyField, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t.entity, err)
	}
	if out.Item == nil {
		return nil, t.notFound
	}
	var v T
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// mutate is the read-modify-write loop: load, apply fn, put conditioned on
// the version read, retry on conflict. Errors from fn abort immediately.
func (t *versionedTable[T]) mutate(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	var result *T
	b := retry.WithMaxRetries(t.retries, retry.NewExponential(t.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		v, err := t.get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		if err := t.putVersioned(ctx, v); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t *versionedTable[T]) putVersioned(ctx context.Context, v *T) error {
	ver := t.version(v)
	prev := *ver
	*ver = prev + 1
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		*ver = prev
		return fmt.Errorf("marshal %s: %w", t.entity, err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(t.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_exists(#id) AND #v = :prev"),
		ExpressionAttributeNames: map[string]string{"#id": t.keyField, "#v": fieldVersion},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: fmt.Sprint(prev)},
		},
	})
	if err != nil {
		*ver = prev
		if isConditionFailed(err) {
			return fmt.Errorf("%s %s changed concurrently: %w", t.entity, t.key(v), domain.ErrVersionConflict)
		}
		return fmt.Errorf("put %s: %w", t.entity, err)
	}
	return nil
}

// scanAll reads the whole table. Filtering and ordering happen in the
// service layer.
func (t *versionedTable[T]) scanAll(ctx context.Context) ([]T, error) {
	p := dynamodb.NewScanPaginator(t.client, &dynamodb.ScanInput{TableName: aws.String(t.table)})
	all := []T{}
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.table, err)
		}
		var page []T
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	return all, nil
}
