package dynamo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/smartfix-api/internal/domain"
)

// JobRepo provides typed DynamoDB operations for the jobs table. Updates go
// through Mutate so timeline appends from concurrent requests are not lost.
type JobRepo struct {
	t versionedTable[domain.Job]
}

func NewJobRepo(client *dynamodb.Client, tableName string, retries uint64) *JobRepo {
	return newJobRepo(client, tableName, retries)
}

func newJobRepo(client itemAPI, tableName string, retries uint64) *JobRepo {
	return &JobRepo{t: versionedTable[domain.Job]{
		client:   client,
		table:    tableName,
		keyField: fieldJobID,
		entity:   "job",
		notFound: domain.ErrJobNotFound,
		retries:  retries,
		backoff:  20 * time.Millisecond,
		key:      func(j *domain.Job) string { return j.JobID },
		version:  func(j *domain.Job) *int64 { return &j.Version },
	}}
}

func (r *JobRepo) Create(ctx context.Context, j *domain.Job) error {
	return r.t.create(ctx, j)
}

func (r *JobRepo) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return r.t.get(ctx, jobID)
}

func (r *JobRepo) Mutate(ctx context.Context, jobID string, fn func(*domain.Job) error) (*domain.Job, error) {
	return r.t.mutate(ctx, jobID, fn)
}

// ListAll scans every job.
func (r *JobRepo) ListAll(ctx context.Context) ([]domain.Job, error) {
	return r.t.scanAll(ctx)
}
