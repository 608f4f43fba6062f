package dispute

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

// Page is one page of the dispute listing.
type Page struct {
	Disputes   []domain.Dispute `json:"disputes"`
	Pagination page.Meta        `json:"pagination"`
}

type Service interface {
	List(ctx context.Context, q domain.DisputeQuery) (*Page, error)
	Get(ctx context.Context, disputeID string) (*domain.Dispute, error)
	Create(ctx context.Context, actor *domain.Account, req domain.CreateDisputeRequest) (*domain.Dispute, error)
	Assign(ctx context.Context, actor *domain.Account, disputeID string, req domain.AssignDisputeRequest) (*domain.Dispute, error)
	AddComment(ctx context.Context, actor *domain.Account, disputeID string, req domain.DisputeCommentRequest) (*domain.Dispute, error)
	Resolve(ctx context.Context, actor *domain.Account, disputeID string, req domain.ResolveDisputeRequest) (*domain.Dispute, error)
	Escalate(ctx context.Context, actor *domain.Account, disputeID string, req domain.EscalateDisputeRequest) (*domain.Dispute, error)
	Stats(ctx context.Context) (*domain.DisputeStats, error)
}

type disputeStore interface {
	Create(ctx context.Context, d *domain.Dispute) error
	Get(ctx context.Context, disputeID string) (*domain.Dispute, error)
	Mutate(ctx context.Context, disputeID string, fn func(*domain.Dispute) error) (*domain.Dispute, error)
	ListAll(ctx context.Context) ([]domain.Dispute, error)
}

type jobGetter interface {
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

type accountGetter interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
}

type notifier interface {
	Create(ctx context.Context, actor *domain.Account, req domain.CreateNotificationRequest) (*domain.Notification, error)
}

type service struct {
	repo     disputeStore
	jobs     jobGetter
	accounts accountGetter
	notify   notifier
	now      func() time.Time
	log      *logger.Logger
}

type ServiceDeps struct {
	DisputeRepo disputeStore
	JobRepo     jobGetter
	AccountRepo accountGetter
	Notifier    notifier
	Now         func() time.Time
	Logger      *logger.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:     deps.DisputeRepo,
		jobs:     deps.JobRepo,
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

func (s *service) List(ctx context.Context, q domain.DisputeQuery) (*Page, error) {
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
	domain.SortDisputes(filtered, q.SortBy, q.SortOrder)
	items, meta := page.Slice(filtered, q.Page, q.Limit, defaultPageSize, maxPageSize)
	return &Page{Disputes: items, Pagination: meta}, nil
}

func (s *service) Get(ctx context.Context, disputeID string) (*domain.Dispute, error) {
	return s.repo.Get(ctx, disputeID)
}

func (s *service) Create(ctx context.Context, actor *domain.Account, req domain.CreateDisputeRequest) (*domain.Dispute, error) {
	if _, err := s.jobs.Get(ctx, req.JobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("job %s does not exist: %w", req.JobID, domain.ErrValidation)
		}
		return nil, err
	}
	now := s.now().UTC()
	priority := req.Priority
	if priority == "" {
		priority = domain.WorkPriorityMedium
	}
	d := &domain.Dispute{
		DisputeID:     id.New(),
		Reference:     id.Reference("DP", now),
		JobID:         req.JobID,
		CustomerID:    req.CustomerID,
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Status:        domain.DisputeOpen,
		Priority:      priority,
		Category:      req.Category,
		DueDate:       req.DueDate,
		Tags:          req.Tags,
		IsUrgent:      req.IsUrgent || priority == domain.WorkPriorityUrgent,
		Comments:      []domain.DisputeComment{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info().Str("dispute_id", d.DisputeID).Str("reference", d.Reference).Str("created_by", actor.AccountID).Msg("dispute created")

	support := domain.RoleSupport
	n := domain.CreateNotificationRequest{
		Title:      "New dispute " + d.Reference,
		Message:    d.Title,
		Type:       domain.NotificationWarning,
		Target:     domain.TargetRole,
		TargetRole: &support,
		Priority:   domain.PriorityHigh,
	}
	if d.IsUrgent {
		n.Type, n.Priority = domain.NotificationUrgent, domain.PriorityUrgent
	}
	s.send(ctx, actor, d, n)
	return d, nil
}

func (s *service) Assign(ctx context.Context, actor *domain.Account, disputeID string, req domain.AssignDisputeRequest) (*domain.Dispute, error) {
	assignee, err := s.staffAccount(ctx, req.AssignedTo)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	d, err := s.repo.Mutate(ctx, disputeID, func(d *domain.Dispute) error {
		return d.AssignTo(assignee, actor.AccountID, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("dispute_id", d.DisputeID).Str("assigned_to", assignee.AccountID).Msg("dispute assigned")

	s.send(ctx, actor, d, domain.CreateNotificationRequest{
		Title:    "Dispute " + d.Reference + " assigned to you",
		Message:  d.Title,
		Type:     domain.NotificationInfo,
		Target:   domain.TargetSpecificUser,
		TargetID: &assignee.AccountID,
		Priority: domain.PriorityHigh,
	})
	return d, nil
}

func (s *service) AddComment(ctx context.Context, actor *domain.Account, disputeID string, req domain.DisputeCommentRequest) (*domain.Dispute, error) {
	name := actor.DisplayName
	if name == "" {
		name = actor.Email
	}
	now := s.now().UTC()
	d, err := s.repo.Mutate(ctx, disputeID, func(d *domain.Dispute) error {
		return d.AddComment(actor.AccountID, name, req.Message, req.IsInternal, now)
	})
	if err != nil {
		return nil, err
	}
	if d.AssignedTo != nil && *d.AssignedTo != actor.AccountID {
		s.send(ctx, actor, d, domain.CreateNotificationRequest{
			Title:    "New comment on dispute " + d.Reference,
			Message:  d.Comments[len(d.Comments)-1].Message,
			Type:     domain.NotificationInfo,
			Target:   domain.TargetSpecificUser,
			TargetID: d.AssignedTo,
		})
	}
	return d, nil
}

func (s *service) Resolve(ctx context.Context, actor *domain.Account, disputeID string, req domain.ResolveDisputeRequest) (*domain.Dispute, error) {
	now := s.now().UTC()
	d, err := s.repo.Mutate(ctx, disputeID, func(d *domain.Dispute) error {
		return d.Resolve(actor.AccountID, req.Notes, req.ResolutionType, req.CustomerSatisfied, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("dispute_id", d.DisputeID).Str("resolved_by", actor.AccountID).Msg("dispute resolved")

	support := domain.RoleSupport
	s.send(ctx, actor, d, domain.CreateNotificationRequest{
		Title:      "Dispute " + d.Reference + " resolved",
		Message:    d.Resolution.Notes,
		Type:       domain.NotificationSuccess,
		Target:     domain.TargetRole,
		TargetRole: &support,
	})
	return d, nil
}

func (s *service) Escalate(ctx context.Context, actor *domain.Account, disputeID string, req domain.EscalateDisputeRequest) (*domain.Dispute, error) {
	to, err := s.staffAccount(ctx, req.EscalatedTo)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	d, err := s.repo.Mutate(ctx, disputeID, func(d *domain.Dispute) error {
		return d.Escalate(actor.AccountID, to, req.Reason, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn().Str("dispute_id", d.DisputeID).Str("escalated_to", to.AccountID).Msg("dispute escalated")

	s.send(ctx, actor, d, domain.CreateNotificationRequest{
		Title:    "Dispute " + d.Reference + " escalated to you",
		Message:  d.Escalation.Reason,
		Type:     domain.NotificationUrgent,
		Target:   domain.TargetSpecificUser,
		TargetID: &to.AccountID,
		Priority: domain.PriorityUrgent,
	})
	return d, nil
}

func (s *service) Stats(ctx context.Context) (*domain.DisputeStats, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(all, s.now().UTC()), nil
}

// Summarize computes the dispute overview at now.
func Summarize(disputes []domain.Dispute, now time.Time) *domain.DisputeStats {
	monthStart := domain.MonthStart(now)
	counts := map[string]int{}
	stats := &domain.DisputeStats{Total: len(disputes)}
	for i := range disputes {
		d := &disputes[i]
		counts[d.Status]++
		switch d.Status {
		case domain.DisputeOpen, domain.DisputeInReview, domain.DisputeEscalated:
			stats.Open++
		case domain.DisputeResolved, domain.DisputeClosed:
			stats.Resolved++
		}
		if d.IsUrgent {
			stats.Urgent++
		}
		if !d.CreatedAt.Before(monthStart) {
			stats.ThisMonth++
		}
	}
	stats.StatusBreakdown = domain.Breakdown(counts)
	return stats
}

func (s *service) staffAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("account %s does not exist: %w", accountID, domain.ErrValidation)
		}
		return nil, err
	}
	return a, nil
}

// send publishes a dispute_alert notification; failures are logged only.
func (s *service) send(ctx context.Context, actor *domain.Account, d *domain.Dispute, req domain.CreateNotificationRequest) {
	if s.notify == nil {
		return
	}
	disputeID, jobID := d.DisputeID, d.JobID
	req.Category = domain.CategoryDisputeAlert
	req.Data = &domain.NotificationData{DisputeID: &disputeID, JobID: &jobID}
	if _, err := s.notify.Create(ctx, actor, req); err != nil {
		s.log.Warn().Err(err).Str("dispute_id", d.DisputeID).Msg("failed to notify about dispute")
	}
}
