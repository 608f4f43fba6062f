package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sethvargo/go-retry"
	"github.com/smartfix-api/internal/domain"
)

const emailIndex = "email-index"

// AccountRepo provides typed DynamoDB operations for the accounts table.
// Writes after creation go through Mutate, which guards every record with
// its version attribute and retries the read-modify-write on conflict.
type AccountRepo struct {
	client     *dynamodb.Client
	tableName  string
	emailTable string
	retries    uint64
	backoff    time.Duration
}

func NewAccountRepo(client *dynamodb.Client, tableName, emailTable string, retries uint64) *AccountRepo {
	return &AccountRepo{
		client:     client,
		tableName:  tableName,
		emailTable: emailTable,
		retries:    retries,
		backoff:    20 * time.Millisecond,
	}
}

// Create writes the account and claims its email in one transaction.
// A taken email yields domain.ErrDuplicateKey.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	a.Email = strings.ToLower(a.Email)
	a.Version = 1
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	emailItem := map[string]types.AttributeValue{
		fieldEmail:     &types.AttributeValueMemberS{Value: a.Email},
		fieldAccountID: &types.AttributeValueMemberS{Value: a.AccountID},
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.emailTable),
				Item:                     emailItem,
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": fieldAccountID},
			}},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("email %s already registered: %w", a.Email, domain.ErrDuplicateKey)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldAccountID, accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmail resolves an account by its lower-cased email through the GSI.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(emailIndex),
		KeyConditionExpression:    aws.String("#e = :v"),
		ExpressionAttributeNames:  map[string]string{"#e": fieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: strings.ToLower(email)}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	// The index is eventually consistent; re-read the base item for the
	// current lockout counters and version.
	return r.Get(ctx, a.AccountID)
}

// Mutate loads the account, applies fn and writes it back conditioned on the
// version it read. Concurrent writers lose the condition and are retried with
// a fresh copy, so no update is lost. Errors returned by fn abort without
// retrying.
func (r *AccountRepo) Mutate(ctx context.Context, accountID string, fn func(*domain.Account) error) (*domain.Account, error) {
	var result *domain.Account
	b := retry.WithMaxRetries(r.retries, retry.NewExponential(r.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		a, err := r.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		if err := r.putVersioned(ctx, a); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *AccountRepo) putVersioned(ctx context.Context, a *domain.Account) error {
	prev := a.Version
	a.Version = prev + 1
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		a.Version = prev
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_exists(#id) AND #v = :prev"),
		ExpressionAttributeNames: map[string]string{"#id": fieldAccountID, "#v": fieldVersion},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: fmt.Sprint(prev)},
		},
	})
	if err != nil {
		a.Version = prev
		if isConditionFailed(err) {
			return fmt.Errorf("account %s changed concurrently: %w", a.AccountID, domain.ErrVersionConflict)
		}
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// List scans every account and applies filter in memory, newest first.
// The dashboard population is small enough that a full scan is acceptable.
func (r *AccountRepo) List(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	accounts := []domain.Account{}
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan accounts: %w", err)
		}
		var page []domain.Account
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		for _, a := range page {
			if filter.Role != "" && a.Role != filter.Role {
				continue
			}
			if filter.Status != "" && a.Status != filter.Status {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(a.DisplayName), search) &&
				!strings.Contains(a.Email, search) {
				continue
			}
			accounts = append(accounts, a)
		}
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	return accounts, nil
}
