package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/logger"
	"github.com/smartfix-api/internal/pkg/id"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SweepResult counts what one sweep changed.
type SweepResult struct {
	Deactivated int `json:"deactivated"`
	Dispatched  int `json:"dispatched"`
}

type Service interface {
	List(ctx context.Context, actor *domain.Account, q domain.NotificationQuery) (*domain.NotificationPage, error)
	UnreadCount(ctx context.Context, actor *domain.Account) (int, error)
	Create(ctx context.Context, actor *domain.Account, req domain.CreateNotificationRequest) (*domain.Notification, error)
	MarkRead(ctx context.Context, actor *domain.Account, notificationID string) error
	MarkAllRead(ctx context.Context, actor *domain.Account) (int, error)
	Delete(ctx context.Context, notificationID string) error
	Stats(ctx context.Context) (*domain.NotificationStats, error)
	Sweep(ctx context.Context) (SweepResult, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListActive(ctx context.Context) ([]domain.Notification, error)
	ListAll(ctx context.Context) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, accountID string, at time.Time) error
	ClaimDispatch(ctx context.Context, notificationID string, at time.Time) (bool, error)
	RecordDispatch(ctx context.Context, notificationID string, report domain.DeliveryReport, at time.Time) error
	Deactivate(ctx context.Context, notificationID string, at time.Time) (bool, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification) domain.DeliveryReport
}

type service struct {
	repo       notificationStore
	accounts   accountGetter
	dispatcher dispatcher
	now        func() time.Time
	log        *logger.Logger
}

type ServiceDeps struct {
	NotificationRepo notificationStore
	AccountRepo      accountGetter
	Dispatcher       dispatcher
	Now              func() time.Time
	Logger           *logger.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:       deps.NotificationRepo,
		accounts:   deps.AccountRepo,
		dispatcher: deps.Dispatcher,
		now:        deps.Now,
		log:        deps.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// visible returns the notifications actor may see at now, in listing order.
func (s *service) visible(ctx context.Context, actor *domain.Account, now time.Time) ([]domain.Notification, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := active[:0]
	for i := range active {
		if active[i].VisibleTo(actor, now) {
			out = append(out, active[i])
		}
	}
	domain.SortForListing(out)
	return out, nil
}

func (s *service) List(ctx context.Context, actor *domain.Account, q domain.NotificationQuery) (*domain.NotificationPage, error) {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	all, err := s.visible(ctx, actor, s.now().UTC())
	if err != nil {
		return nil, err
	}
	filtered := all[:0]
	for _, n := range all {
		if q.Type != "" && n.Type != q.Type {
			continue
		}
		if q.Category != "" && n.Category != q.Category {
			continue
		}
		filtered = append(filtered, n)
	}

	total := len(filtered)
	totalPages := (total + limit - 1) / limit
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	items := make([]domain.Notification, end-start)
	copy(items, filtered[start:end])

	return &domain.NotificationPage{
		Notifications: items,
		CurrentPage:   page,
		TotalPages:    totalPages,
		Total:         total,
		HasNext:       page < totalPages,
		HasPrev:       page > 1,
	}, nil
}

func (s *service) UnreadCount(ctx context.Context, actor *domain.Account) (int, error) {
	all, err := s.visible(ctx, actor, s.now().UTC())
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range all {
		if !all[i].IsReadBy(actor.AccountID) {
			count++
		}
	}
	return count, nil
}

func (s *service) Create(ctx context.Context, actor *domain.Account, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	now := s.now().UTC()
	n := &domain.Notification{
		NotificationID: id.New(),
		Title:          strings.TrimSpace(req.Title),
		Message:        strings.TrimSpace(req.Message),
		Type:           orDefault(req.Type, domain.NotificationInfo),
		Category:       orDefault(req.Category, domain.CategorySystem),
		Target:         orDefault(req.Target, domain.TargetAll),
		Priority:       orDefault(req.Priority, domain.PriorityNormal),
		Channels:       req.Channels,
		ScheduledFor:   req.ScheduledFor,
		ExpiresAt:      req.ExpiresAt,
		IsActive:       true,
		ReadBy:         map[string]time.Time{},
		CreatedBy:      actor.AccountID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(n.Channels) == 0 {
		n.Channels = []string{domain.ChannelInApp}
	}
	if req.Data != nil {
		n.Data = *req.Data
	}
	if err := s.resolveTarget(ctx, n, req); err != nil {
		return nil, err
	}
	if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
		return nil, fmt.Errorf("expiresAt must be in the future: %w", domain.ErrValidation)
	}
	if n.ScheduledFor != nil && n.ExpiresAt != nil && !n.ScheduledFor.Before(*n.ExpiresAt) {
		return nil, fmt.Errorf("scheduledFor must be before expiresAt: %w", domain.ErrValidation)
	}

	if err := s.repo.Put(ctx, n); err != nil {
		return nil, err
	}
	s.log.Info().Str("notification_id", n.NotificationID).Str("target", n.Target).Str("created_by", actor.AccountID).Msg("notification created")

	if n.IsDue(now) {
		s.dispatch(ctx, n, now)
	}
	return n, nil
}

// resolveTarget keeps only the targeting field that matches the mode.
func (s *service) resolveTarget(ctx context.Context, n *domain.Notification, req domain.CreateNotificationRequest) error {
	switch n.Target {
	case domain.TargetSpecificUser:
		if req.TargetID == nil || *req.TargetID == "" {
			return fmt.Errorf("targetId is required for specific_user: %w", domain.ErrValidation)
		}
		if _, err := s.accounts.Get(ctx, *req.TargetID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("target account %s does not exist: %w", *req.TargetID, domain.ErrValidation)
			}
			return err
		}
		n.TargetID = req.TargetID
	case domain.TargetRole:
		if req.TargetRole == nil || !domain.ValidRole(*req.TargetRole) {
			return fmt.Errorf("a valid targetRole is required for role: %w", domain.ErrValidation)
		}
		n.TargetRole = req.TargetRole
	}
	return nil
}

// dispatch claims n and broadcasts it. Only the caller that flips sent
// publishes, so overlapping sweeps push a notification once. It reports
// whether this call did the push. A failure to store the delivery counters
// is logged and the notification stays sent.
func (s *service) dispatch(ctx context.Context, n *domain.Notification, now time.Time) bool {
	won, err := s.repo.ClaimDispatch(ctx, n.NotificationID, now)
	if err != nil {
		s.log.Error().Err(err).Str("notification_id", n.NotificationID).Msg("failed to claim dispatch")
		return false
	}
	if !won {
		return false
	}
	n.Sent = true
	n.SentAt = &now
	n.UpdatedAt = now

	report := s.dispatcher.Dispatch(ctx, n)
	n.DeliveryStatus = report
	if err := s.repo.RecordDispatch(ctx, n.NotificationID, report, now); err != nil {
		s.log.Error().Err(err).Str("notification_id", n.NotificationID).Msg("failed to record dispatch")
	}
	return true
}

func (s *service) MarkRead(ctx context.Context, actor *domain.Account, notificationID string) error {
	now := s.now().UTC()
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return err
	}
	if !n.VisibleTo(actor, now) {
		return domain.ErrNotificationNotFound
	}
	if n.IsReadBy(actor.AccountID) {
		return nil
	}
	return s.repo.MarkRead(ctx, notificationID, actor.AccountID, now)
}

// MarkAllRead marks every visible unread notification and returns how many
// were marked.
func (s *service) MarkAllRead(ctx context.Context, actor *domain.Account) (int, error) {
	now := s.now().UTC()
	all, err := s.visible(ctx, actor, now)
	if err != nil {
		return 0, err
	}
	marked := 0
	for i := range all {
		if all[i].IsReadBy(actor.AccountID) {
			continue
		}
		if err := s.repo.MarkRead(ctx, all[i].NotificationID, actor.AccountID, now); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return marked, err
		}
		marked++
	}
	return marked, nil
}

// Delete hides the notification from everyone; the record is kept.
func (s *service) Delete(ctx context.Context, notificationID string) error {
	if _, err := s.repo.Get(ctx, notificationID); err != nil {
		return err
	}
	_, err := s.repo.Deactivate(ctx, notificationID, s.now().UTC())
	return err
}

func (s *service) Stats(ctx context.Context) (*domain.NotificationStats, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	type key struct {
		typ  string
		sent bool
	}
	breakdown := map[key]int{}
	stats := &domain.NotificationStats{Total: len(all)}
	for _, n := range all {
		if n.Sent {
			stats.Sent++
		} else {
			stats.Pending++
		}
		if n.IsActive {
			stats.Active++
		}
		if !n.CreatedAt.Before(monthStart) {
			stats.ThisMonth++
		}
		breakdown[key{n.Type, n.Sent}]++
	}
	stats.TypeBreakdown = make([]domain.NotificationTypeStat, 0, len(breakdown))
	for k, c := range breakdown {
		stats.TypeBreakdown = append(stats.TypeBreakdown, domain.NotificationTypeStat{Type: k.typ, Sent: k.sent, Count: c})
	}
	sort.Slice(stats.TypeBreakdown, func(i, j int) bool {
		a, b := stats.TypeBreakdown[i], stats.TypeBreakdown[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return !a.Sent && b.Sent
	})
	return stats, nil
}

// Sweep deactivates expired notifications and dispatches scheduled ones that
// have come due. Running it twice in a row changes nothing the second time.
func (s *service) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	var res SweepResult
	var errs []error
	for i := range active {
		n := &active[i]
		switch {
		case n.IsExpired(now):
			changed, err := s.repo.Deactivate(ctx, n.NotificationID, now)
			if err != nil {
				errs = append(errs, fmt.Errorf("deactivate %s: %w", n.NotificationID, err))
				continue
			}
			if changed {
				res.Deactivated++
			}
		case n.IsDue(now):
			if s.dispatch(ctx, n, now) {
				res.Dispatched++
			}
		}
	}
	if res.Deactivated > 0 || res.Dispatched > 0 {
		s.log.Info().Int("deactivated", res.Deactivated).Int("dispatched", res.Dispatched).Msg("notification sweep")
	}
	return res, errors.Join(errs...)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
