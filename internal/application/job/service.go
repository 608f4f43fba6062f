package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/logger"
	"github.com/smartfix-api/internal/pkg/id"
	"github.com/smartfix-api/internal/pkg/page"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page is one page of the job listing.
type Page struct {
	Jobs       []domain.Job `json:"jobs"`
	Pagination page.Meta    `json:"pagination"`
}

type Service interface {
	List(ctx context.Context, q domain.JobQuery) (*Page, error)
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	Create(ctx context.Context, actor *domain.Account, req domain.CreateJobRequest) (*domain.Job, error)
	UpdateStatus(ctx context.Context, actor *domain.Account, jobID string, req domain.UpdateJobStatusRequest) (*domain.Job, error)
	Assign(ctx context.Context, actor *domain.Account, jobID string, req domain.AssignJobRequest) (*domain.Job, error)
	Stats(ctx context.Context) (*domain.JobStats, error)
}

type jobStore interface {
	Create(ctx context.Context, j *domain.Job) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	Mutate(ctx context.Context, jobID string, fn func(*domain.Job) error) (*domain.Job, error)
	ListAll(ctx context.Context) ([]domain.Job, error)
}

type accountGetter interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
}

// notifier is the notification service as seen by job workflows.
type notifier interface {
	Create(ctx context.Context, actor *domain.Account, req domain.CreateNotificationRequest) (*domain.Notification, error)
}

type service struct {
	repo     jobStore
	accounts accountGetter
	notify   notifier
	now      func() time.Time
	log      *logger.Logger
}

type ServiceDeps struct {
	JobRepo     jobStore
	AccountRepo accountGetter
	Notifier    notifier
	Now         func() time.Time
	Logger      *logger.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:     deps.JobRepo,
		accounts: deps.AccountRepo,
		notify:   deps.Notifier,
		now:      deps.Now,
		log:      deps.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

func (s *service) List(ctx context.Context, q domain.JobQuery) (*Page, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	filtered := all[:0]
	for i := range all {
		if q.Matches(&all[i]) {
			filtered = append(filtered, all[i])
		}
	}
	domain.SortJobs(filtered, q.SortBy, q.SortOrder)
	items, meta := page.Slice(filtered, q.Page, q.Limit, defaultPageSize, maxPageSize)
	return &Page{Jobs: items, Pagination: meta}, nil
}

func (s *service) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.repo.Get(ctx, jobID)
}

func (s *service) Create(ctx context.Context, actor *domain.Account, req domain.CreateJobRequest) (*domain.Job, error) {
	if req.Customer == nil {
		return nil, fmt.Errorf("customer is required: %w", domain.ErrValidation)
	}
	now := s.now().UTC()
	priority := req.Priority
	if priority == "" {
		priority = domain.WorkPriorityMedium
	}
	j := &domain.Job{
		JobID:         id.New(),
		Reference:     id.Reference("SF", now),
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Status:        domain.JobPending,
		Priority:      priority,
		Category:      req.Category,
		Customer:      *req.Customer,
		EstimatedCost: req.EstimatedCost,
		ScheduledDate: req.ScheduledDate,
		Tags:          req.Tags,
		IsUrgent:      req.IsUrgent || priority == domain.WorkPriorityUrgent,
		CreatedAt:     now,
	}
	j.AddTimelineEntry(domain.TimelineCreated, "Job created", actor.AccountID, now)
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	s.log.Info().Str("job_id", j.JobID).Str("reference", j.Reference).Str("created_by", actor.AccountID).Msg("job created")

	typ, prio := domain.NotificationInfo, domain.PriorityNormal
	if j.IsUrgent {
		typ, prio = domain.NotificationUrgent, domain.PriorityUrgent
	}
	s.send(ctx, actor, j, domain.CreateNotificationRequest{
		Title:    "New job " + j.Reference,
		Message:  j.Title,
		Type:     typ,
		Target:   domain.TargetTechnicians,
		Priority: prio,
	})
	return j, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor *domain.Account, jobID string, req domain.UpdateJobStatusRequest) (*domain.Job, error) {
	now := s.now().UTC()
	j, err := s.repo.Mutate(ctx, jobID, func(j *domain.Job) error {
		if err := j.SetStatus(req.Status, req.Notes, actor.AccountID, now); err != nil {
			return err
		}
		if req.ActualCost != nil {
			j.ActualCost = req.ActualCost
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("job_id", j.JobID).Str("status", j.Status).Str("updated_by", actor.AccountID).Msg("job status changed")

	n := domain.CreateNotificationRequest{
		Title:   "Job " + j.Reference + " is " + strings.ReplaceAll(j.Status, "_", " "),
		Message: j.Timeline[len(j.Timeline)-1].Notes,
		Type:    domain.NotificationInfo,
		Target:  domain.TargetTechnicians,
	}
	if j.Status == domain.JobCompleted {
		n.Type = domain.NotificationSuccess
	}
	if j.Technician != nil {
		n.Target = domain.TargetSpecificUser
		n.TargetID = &j.Technician.AccountID
	}
	s.send(ctx, actor, j, n)
	return j, nil
}

func (s *service) Assign(ctx context.Context, actor *domain.Account, jobID string, req domain.AssignJobRequest) (*domain.Job, error) {
	tech, err := s.accounts.Get(ctx, req.TechnicianID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("technician %s does not exist: %w", req.TechnicianID, domain.ErrValidation)
		}
		return nil, err
	}
	now := s.now().UTC()
	j, err := s.repo.Mutate(ctx, jobID, func(j *domain.Job) error {
		return j.AssignTechnician(tech, req.EstimatedDuration, actor.AccountID, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("job_id", j.JobID).Str("technician_id", tech.AccountID).Str("assigned_by", actor.AccountID).Msg("job assigned")

	n := domain.CreateNotificationRequest{
		Title:    "You have been assigned job " + j.Reference,
		Message:  j.Title,
		Type:     domain.NotificationInfo,
		Target:   domain.TargetSpecificUser,
		TargetID: &tech.AccountID,
		Priority: domain.PriorityHigh,
	}
	if j.IsUrgent {
		n.Type = domain.NotificationUrgent
		n.Priority = domain.PriorityUrgent
		n.Channels = []string{domain.ChannelInApp, domain.ChannelSMS}
	}
	s.send(ctx, actor, j, n)
	return j, nil
}

func (s *service) Stats(ctx context.Context) (*domain.JobStats, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(all, s.now().UTC()), nil
}

// Summarize computes the job overview at now.
func Summarize(jobs []domain.Job, now time.Time) *domain.JobStats {
	monthStart := domain.MonthStart(now)
	counts := map[string]int{}
	stats := &domain.JobStats{Total: len(jobs)}
	for i := range jobs {
		j := &jobs[i]
		counts[j.Status]++
		switch j.Status {
		case domain.JobPending, domain.JobInProgress:
			stats.Active++
		case domain.JobCompleted:
			stats.Completed++
		}
		if j.IsUrgent {
			stats.Urgent++
		}
		if !j.CreatedAt.Before(monthStart) {
			stats.ThisMonth++
		}
	}
	stats.StatusBreakdown = domain.Breakdown(counts)
	return stats
}

// send publishes a job_update notification. The job change has already been
// stored, so a failure here is logged and not returned.
func (s *service) send(ctx context.Context, actor *domain.Account, j *domain.Job, req domain.CreateNotificationRequest) {
	if s.notify == nil {
		return
	}
	jobID := j.JobID
	req.Category = domain.CategoryJobUpdate
	req.Data = &domain.NotificationData{JobID: &jobID}
	if _, err := s.notify.Create(ctx, actor, req); err != nil {
		s.log.Warn().Err(err).Str("job_id", j.JobID).Msg("failed to notify about job")
	}
}
