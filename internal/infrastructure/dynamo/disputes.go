package dynamo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/smartfix-api/internal/domain"
)

// DisputeRepo provides typed DynamoDB operations for the disputes table.
type DisputeRepo struct {
	t versionedTable[domain.Dispute]
}

func NewDisputeRepo(client *dynamodb.Client, tableName string, retries uint64) *DisputeRepo {
	return &DisputeRepo{t: versionedTable[domain.Dispute]{
		client:   client,
		table:    tableName,
		keyField: fieldDisputeID,
		entity:   "dispute",
		notFound: domain.ErrDisputeNotFound,
		retries:  retries,
		backoff:  20 * time.Millisecond,
		key:      func(d *domain.Dispute) string { return d.DisputeID },
		version:  func(d *domain.Dispute) *int64 { return &d.Version },
	}}
}

func (r *DisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	return r.t.create(ctx, d)
}

func (r *DisputeRepo) Get(ctx context.Context, disputeID string) (*domain.Dispute, error) {
	return r.t.get(ctx, disputeID)
}

func (r *DisputeRepo) Mutate(ctx context.Context, disputeID string, fn func(*domain.Dispute) error) (*domain.Dispute, error) {
	return r.t.mutate(ctx, disputeID, fn)
}

func (r *DisputeRepo) ListAll(ctx context.Context) ([]domain.Dispute, error) {
	return r.t.scanAll(ctx)
}
