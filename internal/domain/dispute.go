package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Dispute statuses.
const (
	DisputeOpen      = "open"
	DisputeInReview  = "in_review"
	DisputeResolved  = "resolved"
	DisputeClosed    = "closed"
	DisputeEscalated = "escalated"
)

// SystemAuthor names comments the service writes on state changes.
const SystemAuthor = "System"

// ErrDisputeNotFound wraps ErrNotFound.
var ErrDisputeNotFound = notFound("dispute not found")

// Dispute is a customer complaint raised against a job.
type Dispute struct {
	DisputeID     string             `json:"id" dynamodbav:"dispute_id"`
	Reference     string             `json:"reference" dynamodbav:"reference"`
	JobID         string             `json:"job_id" dynamodbav:"job_id"`
	CustomerID    string             `json:"customer_id" dynamodbav:"customer_id"`
	CustomerEmail string             `json:"customer_email" dynamodbav:"customer_email"`
	Title         string             `json:"title" dynamodbav:"title"`
	Description   string             `json:"description" dynamodbav:"description"`
	Status        string             `json:"status" dynamodbav:"status"`
	Priority      string             `json:"priority" dynamodbav:"priority"`
	Category      string             `json:"category" dynamodbav:"category"`
	AssignedTo    *string            `json:"assigned_to" dynamodbav:"assigned_to"`
	AssignedAt    *time.Time         `json:"assigned_at" dynamodbav:"assigned_at"`
	Comments      []DisputeComment   `json:"comments" dynamodbav:"comments"`
	Resolution    *DisputeResolution `json:"resolution" dynamodbav:"resolution"`
	Escalation    *DisputeEscalation `json:"escalation" dynamodbav:"escalation"`
	DueDate       *time.Time         `json:"due_date" dynamodbav:"due_date"`
	Tags          []string           `json:"tags" dynamodbav:"tags"`
	IsUrgent      bool               `json:"is_urgent" dynamodbav:"is_urgent"`
	Version       int64              `json:"-" dynamodbav:"version"`
	CreatedAt     time.Time          `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time          `json:"updated" dynamodbav:"updated_at"`
}

type DisputeComment struct {
	AuthorID   string    `json:"author_id" dynamodbav:"author_id"`
	AuthorName string    `json:"author_name" dynamodbav:"author_name"`
	Message    string    `json:"message" dynamodbav:"message"`
	IsInternal bool      `json:"is_internal" dynamodbav:"is_internal"`
	Timestamp  time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

type DisputeResolution struct {
	Notes             string    `json:"notes" dynamodbav:"notes"`
	ResolvedBy        string    `json:"resolved_by" dynamodbav:"resolved_by"`
	ResolvedAt        time.Time `json:"resolved_at" dynamodbav:"resolved_at"`
	ResolutionType    string    `json:"resolution_type" dynamodbav:"resolution_type"`
	CustomerSatisfied *bool     `json:"customer_satisfied" dynamodbav:"customer_satisfied"`
}

type DisputeEscalation struct {
	EscalatedAt time.Time `json:"escalated_at" dynamodbav:"escalated_at"`
	EscalatedBy string    `json:"escalated_by" dynamodbav:"escalated_by"`
	EscalatedTo string    `json:"escalated_to" dynamodbav:"escalated_to"`
	Reason      string    `json:"reason" dynamodbav:"reason"`
}

// IsSettled reports whether the dispute no longer accepts workflow changes.
func (d *Dispute) IsSettled() bool {
	return d.Status == DisputeResolved || d.Status == DisputeClosed
}

// AddComment appends a message to the thread.
func (d *Dispute) AddComment(authorID, authorName, message string, internal bool, at time.Time) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("comment message is required: %w", ErrValidation)
	}
	d.Comments = append(d.Comments, DisputeComment{
		AuthorID:   authorID,
		AuthorName: authorName,
		Message:    message,
		IsInternal: internal,
		Timestamp:  at,
	})
	d.UpdatedAt = at
	return nil
}

// AssignTo hands the dispute to assignee and moves it into review.
func (d *Dispute) AssignTo(assignee *Account, by string, at time.Time) error {
	if d.IsSettled() {
		return fmt.Errorf("dispute %s is %s: %w", d.Reference, d.Status, ErrConflict)
	}
	if assignee.Status != StatusActive {
		return fmt.Errorf("assignee %s is not active: %w", assignee.AccountID, ErrValidation)
	}
	if assignee.Role == RoleViewer {
		return fmt.Errorf("viewers cannot own disputes: %w", ErrValidation)
	}
	d.AssignedTo = &assignee.AccountID
	d.AssignedAt = &at
	d.Status = DisputeInReview
	return d.AddComment(by, SystemAuthor, "Dispute assigned to "+displayName(assignee), true, at)
}

// Resolve closes the workflow with a resolution.
func (d *Dispute) Resolve(by, notes, resolutionType string, satisfied *bool, at time.Time) error {
	if d.IsSettled() {
		return fmt.Errorf("dispute %s is already %s: %w", d.Reference, d.Status, ErrConflict)
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return fmt.Errorf("resolution notes are required: %w", ErrValidation)
	}
	d.Status = DisputeResolved
	d.Resolution = &DisputeResolution{
		Notes:             notes,
		ResolvedBy:        by,
		ResolvedAt:        at,
		ResolutionType:    resolutionType,
		CustomerSatisfied: satisfied,
	}
	return d.AddComment(by, SystemAuthor, "Dispute resolved: "+notes, true, at)
}

// Escalate hands the dispute up to another staff member.
func (d *Dispute) Escalate(by string, to *Account, reason string, at time.Time) error {
	if d.IsSettled() {
		return fmt.Errorf("dispute %s is %s: %w", d.Reference, d.Status, ErrConflict)
	}
	if to.Role != RoleAdmin {
		return fmt.Errorf("disputes escalate to an admin: %w", ErrValidation)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("escalation reason is required: %w", ErrValidation)
	}
	d.Status = DisputeEscalated
	d.Escalation = &DisputeEscalation{EscalatedAt: at, EscalatedBy: by, EscalatedTo: to.AccountID, Reason: reason}
	return d.AddComment(by, SystemAuthor, "Dispute escalated: "+reason, true, at)
}

func displayName(a *Account) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Email
}

type CreateDisputeRequest struct {
	JobID         string     `json:"jobId" validate:"required"`
	CustomerID    string     `json:"customerId" validate:"required"`
	CustomerEmail string     `json:"customerEmail" validate:"required,email"`
	Title         string     `json:"title" validate:"required"`
	Description   string     `json:"description" validate:"required"`
	Priority      string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category      string     `json:"category" validate:"required,oneof=billing service_quality technician_behavior scheduling equipment other"`
	DueDate       *time.Time `json:"dueDate"`
	Tags          []string   `json:"tags"`
	IsUrgent      bool       `json:"isUrgent"`
}

type AssignDisputeRequest struct {
	AssignedTo string `json:"assignedTo" validate:"required"`
}

type DisputeCommentRequest struct {
	Message    string `json:"message" validate:"required"`
	IsInternal bool   `json:"isInternal"`
}

type ResolveDisputeRequest struct {
	Notes             string `json:"notes" validate:"required"`
	ResolutionType    string `json:"resolutionType" validate:"omitempty,oneof=refund rework compensation apology other"`
	CustomerSatisfied *bool  `json:"customerSatisfied"`
}

type EscalateDisputeRequest struct {
	EscalatedTo string `json:"escalatedTo" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
}

// DisputeQuery filters and orders the dispute listing. Search matches the
// title, reference and customer email.
type DisputeQuery struct {
	Page       int
	Limit      int
	Search     string
	Status     string
	Priority   string
	Category   string
	AssignedTo string
	SortBy     string
	SortOrder  string
}

func (q DisputeQuery) Matches(d *Dispute) bool {
	if q.Status != "" && d.Status != q.Status {
		return false
	}
	if q.Priority != "" && d.Priority != q.Priority {
		return false
	}
	if q.Category != "" && d.Category != q.Category {
		return false
	}
	if q.AssignedTo != "" && (d.AssignedTo == nil || *d.AssignedTo != q.AssignedTo) {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		return containsFold(s, d.Title, d.Reference, d.CustomerEmail)
	}
	return true
}

// SortDisputes orders by createdAt, updatedAt or dueDate, descending unless
// order is "asc".
func SortDisputes(ds []Dispute, by, order string) {
	key := func(d *Dispute) time.Time {
		switch by {
		case "updatedAt":
			return d.UpdatedAt
		case "dueDate":
			if d.DueDate != nil {
				return *d.DueDate
			}
			return time.Time{}
		default:
			return d.CreatedAt
		}
	}
	asc := order == "asc"
	sort.SliceStable(ds, func(a, b int) bool {
		ka, kb := key(&ds[a]), key(&ds[b])
		if ka.Equal(kb) {
			return ds[a].DisputeID < ds[b].DisputeID
		}
		if asc {
			return ka.Before(kb)
		}
		return ka.After(kb)
	})
}

// DisputeStats is the staff overview of disputes.
type DisputeStats struct {
	Total           int           `json:"totalDisputes"`
	Open            int           `json:"openDisputes"`
	Resolved        int           `json:"resolvedDisputes"`
	Urgent          int           `json:"urgentDisputes"`
	ThisMonth       int           `json:"disputesThisMonth"`
	StatusBreakdown []StatusCount `json:"statusBreakdown"`
}
