// Package analytics computes dashboard figures across accounts, jobs,
// disputes and notifications.
package analytics

import (
	"context"
	"math"
	"time"

	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/logger"
	"golang.org/x/sync/errgroup"
)

type Overview struct {
	TotalUsers         int `json:"totalUsers"`
	TotalJobs          int `json:"totalJobs"`
	TotalDisputes      int `json:"totalDisputes"`
	TotalNotifications int `json:"totalNotifications"`
	ActiveUsers        int `json:"activeUsers"`
	ActiveJobs         int `json:"activeJobs"`
	CompletedJobs      int `json:"completedJobs"`
	ResolvedDisputes   int `json:"resolvedDisputes"`
}

type Trends struct {
	Period           string    `json:"period"`
	Since            time.Time `json:"since"`
	NewUsers         int       `json:"newUsers"`
	NewJobs          int       `json:"newJobs"`
	NewDisputes      int       `json:"newDisputes"`
	CompletedJobs    int       `json:"completedJobs"`
	ResolvedDisputes int       `json:"resolvedDisputes"`
}

// Performance rates are percentages rounded to one decimal place. Average
// durations are in hours; zero when nothing has finished yet.
type Performance struct {
	JobCompletionRate      float64 `json:"jobCompletionRate"`
	DisputeResolutionRate  float64 `json:"disputeResolutionRate"`
	AverageCompletionHours float64 `json:"averageCompletionHours"`
	AverageResolutionHours float64 `json:"averageResolutionHours"`
	CustomerSatisfaction   float64 `json:"customerSatisfaction"`
}

type RevenueMonth struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Jobs    int     `json:"jobs"`
}

type Revenue struct {
	Period      string         `json:"period"`
	Total       float64        `json:"total"`
	RevenueData []RevenueMonth `json:"revenueData"`
}

type Service interface {
	Overview(ctx context.Context) (*Overview, error)
	Trends(ctx context.Context, period string) (*Trends, error)
	Performance(ctx context.Context) (*Performance, error)
	Revenue(ctx context.Context, period string) (*Revenue, error)
}

type accountLister interface {
	List(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error)
}

type jobLister interface {
	ListAll(ctx context.Context) ([]domain.Job, error)
}

type disputeLister interface {
	ListAll(ctx context.Context) ([]domain.Dispute, error)
}

type notificationLister interface {
	ListAll(ctx context.Context) ([]domain.Notification, error)
}

type service struct {
	accounts      accountLister
	jobs          jobLister
	disputes      disputeLister
	notifications notificationLister
	now           func() time.Time
	log           *logger.Logger
}

type ServiceDeps struct {
	AccountRepo      accountLister
	JobRepo          jobLister
	DisputeRepo      disputeLister
	NotificationRepo notificationLister
	Now              func() time.Time
	Logger           *logger.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts:      deps.AccountRepo,
		jobs:          deps.JobRepo,
		disputes:      deps.DisputeRepo,
		notifications: deps.NotificationRepo,
		now:           deps.Now,
		log:           deps.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// snapshot is every table read in one go.
type snapshot struct {
	accounts      []domain.Account
	jobs          []domain.Job
	disputes      []domain.Dispute
	notifications []domain.Notification
}

type tables uint8

const (
	withAccounts tables = 1 << iota
	withJobs
	withDisputes
	withNotifications
)

// load scans the requested tables concurrently. The first failure cancels
// the remaining scans.
func (s *service) load(ctx context.Context, want tables) (*snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)
	if want&withAccounts != 0 {
		g.Go(func() error {
			var err error
			snap.accounts, err = s.accounts.List(ctx, domain.AccountFilter{})
			return err
		})
	}
	if want&withJobs != 0 {
		g.Go(func() error {
			var err error
			snap.jobs, err = s.jobs.ListAll(ctx)
			return err
		})
	}
	if want&withDisputes != 0 {
		g.Go(func() error {
			var err error
			snap.disputes, err = s.disputes.ListAll(ctx)
			return err
		})
	}
	if want&withNotifications != 0 {
		g.Go(func() error {
			var err error
			snap.notifications, err = s.notifications.ListAll(ctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Msg("analytics load failed")
		return nil, err
	}
	return &snap, nil
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	snap, err := s.load(ctx, withAccounts|withJobs|withDisputes|withNotifications)
	if err != nil {
		return nil, err
	}
	o := &Overview{
		TotalUsers:         len(snap.accounts),
		TotalJobs:          len(snap.jobs),
		TotalDisputes:      len(snap.disputes),
		TotalNotifications: len(snap.notifications),
	}
	for i := range snap.accounts {
		if snap.accounts[i].Status == domain.StatusActive {
			o.ActiveUsers++
		}
	}
	for i := range snap.jobs {
		switch snap.jobs[i].Status {
		case domain.JobPending, domain.JobInProgress:
			o.ActiveJobs++
		case domain.JobCompleted:
			o.CompletedJobs++
		}
	}
	for i := range snap.disputes {
		if snap.disputes[i].Status == domain.DisputeResolved {
			o.ResolvedDisputes++
		}
	}
	return o, nil
}

// trendWindows maps a trend period to its look-back. Unknown periods use 7d.
var trendWindows = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

func (s *service) Trends(ctx context.Context, period string) (*Trends, error) {
	window, ok := trendWindows[period]
	if !ok {
		period, window = "7d", trendWindows["7d"]
	}
	snap, err := s.load(ctx, withAccounts|withJobs|withDisputes)
	if err != nil {
		return nil, err
	}
	since := s.now().UTC().Add(-window)
	t := &Trends{Period: period, Since: since}
	for i := range snap.accounts {
		if !snap.accounts[i].CreatedAt.Before(since) {
			t.NewUsers++
		}
	}
	for i := range snap.jobs {
		j := &snap.jobs[i]
		if !j.CreatedAt.Before(since) {
			t.NewJobs++
		}
		if j.CompletedAt != nil && !j.CompletedAt.Before(since) {
			t.CompletedJobs++
		}
	}
	for i := range snap.disputes {
		d := &snap.disputes[i]
		if !d.CreatedAt.Before(since) {
			t.NewDisputes++
		}
		if d.Resolution != nil && !d.Resolution.ResolvedAt.Before(since) {
			t.ResolvedDisputes++
		}
	}
	return t, nil
}

func (s *service) Performance(ctx context.Context) (*Performance, error) {
	snap, err := s.load(ctx, withJobs|withDisputes)
	if err != nil {
		return nil, err
	}
	var (
		completed, resolved, answered, satisfied int
		completionHours, resolutionHours         float64
	)
	for i := range snap.jobs {
		j := &snap.jobs[i]
		if j.Status == domain.JobCompleted {
			completed++
			if j.CompletedAt != nil {
				completionHours += j.CompletedAt.Sub(j.CreatedAt).Hours()
			}
		}
	}
	for i := range snap.disputes {
		d := &snap.disputes[i]
		if d.Status != domain.DisputeResolved || d.Resolution == nil {
			continue
		}
		resolved++
		resolutionHours += d.Resolution.ResolvedAt.Sub(d.CreatedAt).Hours()
		if d.Resolution.CustomerSatisfied != nil {
			answered++
			if *d.Resolution.CustomerSatisfied {
				satisfied++
			}
		}
	}
	return &Performance{
		JobCompletionRate:      percent(completed, len(snap.jobs)),
		DisputeResolutionRate:  percent(resolved, len(snap.disputes)),
		AverageCompletionHours: average(completionHours, completed),
		AverageResolutionHours: average(resolutionHours, resolved),
		CustomerSatisfaction:   percent(satisfied, answered),
	}, nil
}

// revenueMonths maps a revenue period to a month count. Unknown periods use 6m.
var revenueMonths = map[string]int{"3m": 3, "6m": 6, "1y": 12}

// Revenue sums the actual cost of jobs completed in each of the last months,
// oldest first. The current month is the last bucket.
func (s *service) Revenue(ctx context.Context, period string) (*Revenue, error) {
	months, ok := revenueMonths[period]
	if !ok {
		period, months = "6m", revenueMonths["6m"]
	}
	snap, err := s.load(ctx, withJobs)
	if err != nil {
		return nil, err
	}
	first := domain.MonthStart(s.now()).AddDate(0, -(months - 1), 0)
	rev := &Revenue{Period: period, RevenueData: make([]RevenueMonth, months)}
	for i := range rev.RevenueData {
		rev.RevenueData[i].Month = first.AddDate(0, i, 0).Format("Jan 2006")
	}
	for i := range snap.jobs {
		j := &snap.jobs[i]
		if j.Status != domain.JobCompleted || j.CompletedAt == nil {
			continue
		}
		done := j.CompletedAt.UTC()
		idx := (done.Year()-first.Year())*12 + int(done.Month()) - int(first.Month())
		if idx < 0 || idx >= months {
			continue
		}
		rev.RevenueData[idx].Jobs++
		if j.ActualCost != nil {
			rev.RevenueData[idx].Revenue += *j.ActualCost
			rev.Total += *j.ActualCost
		}
	}
	return rev, nil
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

func average(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*10) / 10
}
