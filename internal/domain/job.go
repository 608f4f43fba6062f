package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Job statuses.
const (
	JobPending    = "pending"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobCancelled  = "cancelled"
	JobOnHold     = "on_hold"
)

// Work priorities shared by jobs and disputes.
const (
	WorkPriorityLow    = "low"
	WorkPriorityMedium = "medium"
	WorkPriorityHigh   = "high"
	WorkPriorityUrgent = "urgent"
)

// Timeline events that are not statuses.
const (
	TimelineCreated  = "created"
	TimelineAssigned = "assigned"
)

// ErrJobNotFound wraps ErrNotFound.
var ErrJobNotFound = notFound("job not found")

// ValidJobStatus reports whether s is a known job status.
func ValidJobStatus(s string) bool {
	switch s {
	case JobPending, JobInProgress, JobCompleted, JobCancelled, JobOnHold:
		return true
	}
	return false
}

// Job is one service call-out.
type Job struct {
	JobID         string          `json:"id" dynamodbav:"job_id"`
	Reference     string          `json:"reference" dynamodbav:"reference"`
	Title         string          `json:"title" dynamodbav:"title"`
	Description   string          `json:"description" dynamodbav:"description"`
	Status        string          `json:"status" dynamodbav:"status"`
	Priority      string          `json:"priority" dynamodbav:"priority"`
	Category      string          `json:"category" dynamodbav:"category"`
	Customer      Customer        `json:"customer" dynamodbav:"customer"`
	Technician    *JobTechnician  `json:"technician" dynamodbav:"technician"`
	Timeline      []TimelineEntry `json:"timeline" dynamodbav:"timeline"`
	EstimatedCost *float64        `json:"estimated_cost" dynamodbav:"estimated_cost"`
	ActualCost    *float64        `json:"actual_cost" dynamodbav:"actual_cost"`
	ScheduledDate *time.Time      `json:"scheduled_date" dynamodbav:"scheduled_date"`
	CompletedAt   *time.Time      `json:"completed_at" dynamodbav:"completed_at"`
	Tags          []string        `json:"tags" dynamodbav:"tags"`
	IsUrgent      bool            `json:"is_urgent" dynamodbav:"is_urgent"`
	Version       int64           `json:"-" dynamodbav:"version"`
	CreatedAt     time.Time       `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time       `json:"updated" dynamodbav:"updated_at"`
}

type Customer struct {
	Name    string  `json:"name" dynamodbav:"name" validate:"required"`
	Email   string  `json:"email" dynamodbav:"email" validate:"required,email"`
	Phone   string  `json:"phone" dynamodbav:"phone" validate:"required"`
	Address Address `json:"address" dynamodbav:"address"`
}

type Address struct {
	Street  string `json:"street" dynamodbav:"street"`
	City    string `json:"city" dynamodbav:"city"`
	State   string `json:"state" dynamodbav:"state"`
	ZipCode string `json:"zipCode" dynamodbav:"zip_code"`
}

type JobTechnician struct {
	AccountID         string    `json:"id" dynamodbav:"account_id"`
	Name              string    `json:"name" dynamodbav:"name"`
	AssignedAt        time.Time `json:"assigned_at" dynamodbav:"assigned_at"`
	EstimatedDuration *int      `json:"estimated_duration" dynamodbav:"estimated_duration"` // minutes
}

// TimelineEntry records a status change or assignment.
type TimelineEntry struct {
	Status    string    `json:"status" dynamodbav:"status"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
	Notes     string    `json:"notes" dynamodbav:"notes"`
	UpdatedBy string    `json:"updated_by" dynamodbav:"updated_by"`
}

// AddTimelineEntry appends an event to the job's history.
func (j *Job) AddTimelineEntry(status, notes, by string, at time.Time) {
	j.Timeline = append(j.Timeline, TimelineEntry{Status: status, Timestamp: at, Notes: notes, UpdatedBy: by})
	j.UpdatedAt = at
}

// SetStatus moves the job to status and records it on the timeline. Reaching
// completed stamps CompletedAt; leaving it clears the stamp.
func (j *Job) SetStatus(status, notes, by string, at time.Time) error {
	if !ValidJobStatus(status) {
		return fmt.Errorf("invalid status %q: %w", status, ErrValidation)
	}
	if strings.TrimSpace(notes) == "" {
		notes = "Status changed to " + status
	}
	j.Status = status
	if status == JobCompleted {
		j.CompletedAt = &at
	} else {
		j.CompletedAt = nil
	}
	j.AddTimelineEntry(status, notes, by, at)
	return nil
}

// AssignTechnician hands the job to tech, replacing any previous assignee.
func (j *Job) AssignTechnician(tech *Account, estimatedMinutes *int, by string, at time.Time) error {
	if tech.Role != RoleTechnician {
		return fmt.Errorf("account %s is not a technician: %w", tech.AccountID, ErrValidation)
	}
	if tech.Status != StatusActive {
		return fmt.Errorf("technician %s is not active: %w", tech.AccountID, ErrValidation)
	}
	switch j.Status {
	case JobCompleted, JobCancelled:
		return fmt.Errorf("job %s is %s: %w", j.Reference, j.Status, ErrConflict)
	}
	name := tech.DisplayName
	if name == "" {
		name = tech.Email
	}
	j.Technician = &JobTechnician{AccountID: tech.AccountID, Name: name, AssignedAt: at, EstimatedDuration: estimatedMinutes}
	j.AddTimelineEntry(TimelineAssigned, "Assigned to "+name, by, at)
	return nil
}

// CreateJobRequest is the staff payload for a new job.
type CreateJobRequest struct {
	Title         string     `json:"title" validate:"required"`
	Description   string     `json:"description" validate:"required"`
	Priority      string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category      string     `json:"category" validate:"required,oneof=electrical plumbing hvac appliance general emergency"`
	Customer      *Customer  `json:"customer" validate:"required"`
	EstimatedCost *float64   `json:"estimatedCost" validate:"omitempty,gte=0"`
	ScheduledDate *time.Time `json:"scheduledDate"`
	Tags          []string   `json:"tags"`
	IsUrgent      bool       `json:"isUrgent"`
}

type UpdateJobStatusRequest struct {
	Status     string   `json:"status" validate:"required,oneof=pending in_progress completed cancelled on_hold"`
	Notes      string   `json:"notes"`
	ActualCost *float64 `json:"actualCost" validate:"omitempty,gte=0"`
}

type AssignJobRequest struct {
	TechnicianID      string `json:"technicianId" validate:"required"`
	EstimatedDuration *int   `json:"estimatedDuration" validate:"omitempty,gt=0"`
}

// JobQuery filters and orders the job listing. Search matches the title,
// reference and customer name or email, case-insensitively.
type JobQuery struct {
	Page         int
	Limit        int
	Search       string
	Status       string
	Priority     string
	Category     string
	TechnicianID string
	SortBy       string
	SortOrder    string
}

// Matches reports whether j passes every filter set on q.
func (q JobQuery) Matches(j *Job) bool {
	if q.Status != "" && j.Status != q.Status {
		return false
	}
	if q.Priority != "" && j.Priority != q.Priority {
		return false
	}
	if q.Category != "" && j.Category != q.Category {
		return false
	}
	if q.TechnicianID != "" && (j.Technician == nil || j.Technician.AccountID != q.TechnicianID) {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		return containsFold(s, j.Title, j.Reference, j.Customer.Name, j.Customer.Email)
	}
	return true
}

// SortJobs orders jobs by createdAt, updatedAt or scheduledDate. Unknown keys
// fall back to createdAt; order is descending unless "asc".
func SortJobs(jobs []Job, by, order string) {
	key := func(j *Job) time.Time {
		switch by {
		case "updatedAt":
			return j.UpdatedAt
		case "scheduledDate":
			if j.ScheduledDate != nil {
				return *j.ScheduledDate
			}
			return time.Time{}
		default:
			return j.CreatedAt
		}
	}
	asc := order == "asc"
	sort.SliceStable(jobs, func(a, b int) bool {
		ka, kb := key(&jobs[a]), key(&jobs[b])
		if ka.Equal(kb) {
			return jobs[a].JobID < jobs[b].JobID
		}
		if asc {
			return ka.Before(kb)
		}
		return ka.After(kb)
	})
}

// StatusCount is one row of a status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// JobStats is the staff overview of jobs.
type JobStats struct {
	Total           int           `json:"totalJobs"`
	Active          int           `json:"activeJobs"`
	Completed       int           `json:"completedJobs"`
	Urgent          int           `json:"urgentJobs"`
	ThisMonth       int           `json:"jobsThisMonth"`
	StatusBreakdown []StatusCount `json:"statusBreakdown"`
}

// Breakdown turns a status→count map into rows sorted by status.
func Breakdown(counts map[string]int) []StatusCount {
	out := make([]StatusCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, StatusCount{Status: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}

// MonthStart is midnight UTC on the first day of now's month.
func MonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func containsFold(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
