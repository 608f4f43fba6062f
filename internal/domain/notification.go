package domain

import "time"

// Notification types.
const (
	NotificationInfo    = "info"
	NotificationWarning = "warning"
	NotificationError   = "error"
	NotificationSuccess = "success"
	NotificationUrgent  = "urgent"
)

// Notification categories.
const (
	CategoryJobUpdate    = "job_update"
	CategoryDisputeAlert = "dispute_alert"
	CategorySystem       = "system"
	CategoryPromotion    = "promotion"
	CategoryMaintenance  = "maintenance"
	CategorySecurity     = "security"
)

// Targeting modes. Exactly one applies to a notification.
const (
	TargetAll          = "all"
	TargetSpecificUser = "specific_user"
	TargetRole         = "role"
	TargetTechnicians  = "technicians"
)

// Priorities, lowest first.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Delivery channels.
const (
	ChannelInApp = "in_app"
	ChannelSMS   = "sms"
)

type Notification struct {
	NotificationID string               `json:"id" dynamodbav:"notification_id"`
	Title          string               `json:"title" dynamodbav:"title"`
	Message        string               `json:"message" dynamodbav:"message"`
	Type           string               `json:"type" dynamodbav:"type"`
	Category       string               `json:"category" dynamodbav:"category"`
	Target         string               `json:"target" dynamodbav:"target"`
	TargetID       *string              `json:"target_id" dynamodbav:"target_id"`
	TargetRole     *string              `json:"target_role" dynamodbav:"target_role"`
	Priority       string               `json:"priority" dynamodbav:"priority"`
	Channels       []string             `json:"channels" dynamodbav:"channels"`
	Data           NotificationData     `json:"data" dynamodbav:"data"`
	ScheduledFor   *time.Time           `json:"scheduled_for" dynamodbav:"scheduled_for"`
	ExpiresAt      *time.Time           `json:"expires_at" dynamodbav:"expires_at"`
	IsActive       bool                 `json:"is_active" dynamodbav:"is_active"`
	ReadBy         map[string]time.Time `json:"read_by" dynamodbav:"read_by"`
	Sent           bool                 `json:"sent" dynamodbav:"sent"`
	SentAt         *time.Time           `json:"sent_at" dynamodbav:"sent_at"`
	DeliveryStatus DeliveryReport       `json:"delivery_status" dynamodbav:"delivery_status"`
	CreatedBy      string               `json:"created_by" dynamodbav:"created_by"`
	CreatedAt      time.Time            `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time            `json:"updated" dynamodbav:"updated_at"`
}

// NotificationPush is what a recipient receives over a push channel. Reader
// receipts, delivery counters and the author stay server-side.
type NotificationPush struct {
	NotificationID string           `json:"id"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Type           string           `json:"type"`
	Category       string           `json:"category"`
	Target         string           `json:"target"`
	Priority       string           `json:"priority"`
	Data           NotificationData `json:"data"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	CreatedAt      time.Time        `json:"created"`
}

// Push trims n down to the fields a recipient may see.
func (n *Notification) Push() NotificationPush {
	return NotificationPush{
		NotificationID: n.NotificationID,
		Title:          n.Title,
		Message:        n.Message,
		Type:           n.Type,
		Category:       n.Category,
		Target:         n.Target,
		Priority:       n.Priority,
		Data:           n.Data,
		ExpiresAt:      n.ExpiresAt,
		CreatedAt:      n.CreatedAt,
	}
}

// NotificationData links a notification to the record it is about.
type NotificationData struct {
	JobID     *string `json:"job_id" dynamodbav:"job_id"`
	DisputeID *string `json:"dispute_id" dynamodbav:"dispute_id"`
	UserID    *string `json:"user_id" dynamodbav:"user_id"`
	ActionURL *string `json:"action_url" dynamodbav:"action_url"`
}

// DeliveryReport carries the counters a broadcast channel reports back.
type DeliveryReport struct {
	Sent      int `json:"sent" dynamodbav:"sent"`
	Delivered int `json:"delivered" dynamodbav:"delivered"`
	Failed    int `json:"failed" dynamodbav:"failed"`
	Pending   int `json:"pending" dynamodbav:"pending"`
}

// Add sums two reports.
func (r DeliveryReport) Add(o DeliveryReport) DeliveryReport {
	return DeliveryReport{
		Sent:      r.Sent + o.Sent,
		Delivered: r.Delivered + o.Delivered,
		Failed:    r.Failed + o.Failed,
		Pending:   r.Pending + o.Pending,
	}
}

// CreateNotificationRequest is the admin/support payload for a new notification.
type CreateNotificationRequest struct {
	Title        string            `json:"title" validate:"required"`
	Message      string            `json:"message" validate:"required"`
	Type         string            `json:"type" validate:"omitempty,oneof=info warning error success urgent"`
	Category     string            `json:"category" validate:"omitempty,oneof=job_update dispute_alert system promotion maintenance security"`
	Target       string            `json:"target" validate:"omitempty,oneof=all specific_user role technicians"`
	TargetID     *string           `json:"targetId"`
	TargetRole   *string           `json:"targetRole" validate:"omitempty,oneof=admin support viewer technician"`
	Priority     string            `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Channels     []string          `json:"channels" validate:"omitempty,dive,oneof=in_app sms"`
	Data         *NotificationData `json:"data"`
	ScheduledFor *time.Time        `json:"scheduledFor"`
	ExpiresAt    *time.Time        `json:"expiresAt"`
}

// NotificationQuery is a page request against the visibility-filtered listing.
type NotificationQuery struct {
	Page     int
	Limit    int
	Type     string
	Category string
}

// NotificationPage is one page of a listing plus its pagination metadata.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	CurrentPage   int            `json:"currentPage"`
	TotalPages    int            `json:"totalPages"`
	Total         int            `json:"totalNotifications"`
	HasNext       bool           `json:"hasNext"`
	HasPrev       bool           `json:"hasPrev"`
}

// NotificationStats is the admin overview.
type NotificationStats struct {
	Total         int                    `json:"totalNotifications"`
	Sent          int                    `json:"sentNotifications"`
	Pending       int                    `json:"pendingNotifications"`
	Active        int                    `json:"activeNotifications"`
	ThisMonth     int                    `json:"notificationsThisMonth"`
	TypeBreakdown []NotificationTypeStat `json:"typeBreakdown"`
}

type NotificationTypeStat struct {
	Type  string `json:"type"`
	Sent  bool   `json:"sent"`
	Count int    `json:"count"`
}
