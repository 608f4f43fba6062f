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
)

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	if n.ReadBy == nil {
		n.ReadBy = map[string]time.Time{}
	}
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldNotificationID, notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, domain.ErrNotificationNotFound
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListActive returns every notification still flagged active. Visibility and
// expiry are evaluated by the caller so that listing and counting share one
// predicate.
func (r *NotificationRepo) ListActive(ctx context.Context) ([]domain.Notification, error) {
	return r.scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          aws.String("#a = :t"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldIsActive},
		ExpressionAttributeValues: map[string]types.AttributeValue{":t": &types.AttributeValueMemberBOOL{Value: true}},
	})
}

// ListAll returns every notification, active or not. Used for statistics.
func (r *NotificationRepo) ListAll(ctx context.Context) ([]domain.Notification, error) {
	return r.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
}

func (r *NotificationRepo) scan(ctx context.Context, input *dynamodb.ScanInput) ([]domain.Notification, error) {
	p := dynamodb.NewScanPaginator(r.client, input)
	notifications := []domain.Notification{}
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan notifications: %w", err)
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		notifications = append(notifications, page...)
	}
	return notifications, nil
}

// MarkRead records accountID as a reader. The first timestamp wins, so
// repeated or concurrent calls leave exactly one entry.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, accountID string, at time.Time) error {
	now, err := attributevalue.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal read time: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldNotificationID, notificationID),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		UpdateExpression:    aws.String("SET #rb.#uid = if_not_exists(#rb.#uid, :now)"),
		ExpressionAttributeNames: map[string]string{
			"#id":  fieldNotificationID,
			"#rb":  fieldReadBy,
			"#uid": accountID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": now},
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.ErrNotificationNotFound
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// ClaimDispatch marks an active, unsent notification as sent. It reports
// false when another caller already claimed it or it was deactivated.
func (r *NotificationRepo) ClaimDispatch(ctx context.Context, notificationID string, at time.Time) (bool, error) {
	input, err := r.updateInput(notificationID, map[string]interface{}{
		fieldSent:      true,
		fieldSentAt:    at,
		fieldUpdatedAt: at,
	})
	if err != nil {
		return false, err
	}
	input.ConditionExpression = aws.String("attribute_exists(#id) AND #sentc = :false AND #active = :true")
	input.ExpressionAttributeNames["#id"] = fieldNotificationID
	input.ExpressionAttributeNames["#sentc"] = fieldSent
	input.ExpressionAttributeNames["#active"] = fieldIsActive
	input.ExpressionAttributeValues[":false"] = &types.AttributeValueMemberBOOL{Value: false}
	input.ExpressionAttributeValues[":true"] = &types.AttributeValueMemberBOOL{Value: true}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("claim notification dispatch: %w", err)
	}
	return true, nil
}

// RecordDispatch stores the delivery counters of a claimed broadcast.
func (r *NotificationRepo) RecordDispatch(ctx context.Context, notificationID string, report domain.DeliveryReport, at time.Time) error {
	input, err := r.updateInput(notificationID, map[string]interface{}{
		fieldDeliveryStatus: report,
		fieldUpdatedAt:      at,
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, input)
	return err
}

// Deactivate flips is_active off. It reports false when the notification was
// already inactive, which makes concurrent sweeps and deletes harmless.
func (r *NotificationRepo) Deactivate(ctx context.Context, notificationID string, at time.Time) (bool, error) {
	input, err := r.updateInput(notificationID, map[string]interface{}{
		fieldIsActive:  false,
		fieldUpdatedAt: at,
	})
	if err != nil {
		return false, err
	}
	input.ConditionExpression = aws.String("#active = :true")
	input.ExpressionAttributeNames["#active"] = fieldIsActive
	input.ExpressionAttributeValues[":true"] = &types.AttributeValueMemberBOOL{Value: true}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("deactivate notification: %w", err)
	}
	return true, nil
}

func (r *NotificationRepo) updateInput(notificationID string, updates map[string]interface{}) (*dynamodb.UpdateItemInput, error) {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldNotificationID, notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	}, nil
}
