package dynamo

// DynamoDB attribute names used in update and condition expressions.
const (
	fieldAccountID       = "account_id"
	fieldEmail           = "email"
	fieldVersion         = "version"
	fieldSessionID       = "session_id"
	fieldNotificationID  = "notification_id"
	fieldJobID           = "job_id"
	fieldDisputeID       = "dispute_id"
	fieldEnable          = "enable"
	fieldIsActive        = "is_active"
	fieldReadBy          = "read_by"
	fieldSent            = "sent"
	fieldSentAt          = "sent_at"
	fieldDeliveryStatus  = "delivery_status"
	fieldUpdatedAt       = "updated_at"
	fieldTwoFAVerified   = "two_factor_verified"
	fieldTwoFAVerifiedAt = "two_factor_verified_at"
)
