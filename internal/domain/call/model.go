package call

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of a ScheduledCall. Transitions after placement
// are driven by webhook events from the call provider, so the set mirrors
// the provider's ended reasons rather than an internal state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusNoAnswer   Status = "no_answer"
	StatusMissed     Status = "missed"
	StatusCancelled  Status = "cancelled"
)

// ScheduledCall is one outbound reminder call, real or simulated. The row
// is created when the call is placed and mutated by the webhook reconciler
// as provider events arrive. VapiCallID is backfilled on the first event
// resolved through the correlation id.
type ScheduledCall struct {
	ID               uuid.UUID  `json:"id"`
	ReminderID       *uuid.UUID `json:"reminder_id,omitempty"`
	PatientID        string     `json:"patient_id"`
	CaregiverID      string     `json:"caregiver_id"`
	PhoneNumber      string     `json:"phone_number"`
	ScheduledTime    time.Time  `json:"scheduled_time"`
	Status           Status     `json:"status"`
	VapiCallID       *string    `json:"vapi_call_id,omitempty"`
	CallDuration     *int       `json:"call_duration,omitempty"`
	CallSummary      *string    `json:"call_summary,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	CallAttempts     int        `json:"call_attempts"`
	IsDemo           bool       `json:"is_demo"`
	WebhookProcessed bool       `json:"webhook_processed"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// visibleTo reports whether a user may read or delete the row. Both sides
// of the call relationship have access.
func (c *ScheduledCall) visibleTo(userID string) bool {
	return c.PatientID == userID || c.CaregiverID == userID
}
