package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/logger"
)

const accountSessionsIndex = "account_id-index"

// SessionRepo provides typed DynamoDB operations for the sessions table.
type SessionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSessionRepo(client *dynamodb.Client, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldSessionID, sessionID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.Session
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Update(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldSessionID, sessionID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *SessionRepo) Disable(ctx context.Context, sessionID string) error {
	return r.Update(ctx, sessionID, map[string]interface{}{fieldEnable: false})
}

// MarkTwoFactorVerified records that the session holder passed the second factor.
func (r *SessionRepo) MarkTwoFactorVerified(ctx context.Context, sessionID string, at time.Time) error {
	return r.Update(ctx, sessionID, map[string]interface{}{
		fieldTwoFAVerified:   true,
		fieldTwoFAVerifiedAt: at,
	})
}

// DisableByAccount revokes every session of an account. All sessions are
// attempted; the first failure is returned.
func (r *SessionRepo) DisableByAccount(ctx context.Context, accountID string) error {
	return r.DisableByAccountExcept(ctx, accountID, "")
}

// DisableByAccountExcept revokes every session of an account apart from
// keepSessionID.
func (r *SessionRepo) DisableByAccountExcept(ctx context.Context, accountID, keepSessionID string) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(accountSessionsIndex),
		KeyConditionExpression: aws.String("account_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	if err != nil {
		return err
	}
	var firstErr error
	for _, item := range out.Items {
		sidAttr, ok := item[fieldSessionID].(*types.AttributeValueMemberS)
		if !ok || sidAttr.Value == keepSessionID {
			continue
		}
		if err := r.Disable(ctx, sidAttr.Value); err != nil {
			logger.FromContext(ctx).Warn().Err(err).
				Str("session_id", sidAttr.Value).
				Str("account_id", accountID).
				Msg("failed to disable session")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
