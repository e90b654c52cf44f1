package caregiver

import (
	"time"

	"github.com/google/uuid"
)

// Relationship links a caregiver to a patient with a display label and a
// coarse permission list. Both ids come from the auth provider.
type Relationship struct {
	ID           uuid.UUID `json:"id"`
	CaregiverID  string    `json:"caregiver_id"`
	PatientID    string    `json:"patient_id"`
	Relationship string    `json:"relationship"`
	Permissions  []string  `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile holds the per-user settings the backend needs beyond what the
// auth provider stores, primarily the phone number reminder calls dial.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasPermission reports whether the relationship grants the named
// permission.
func (r *Relationship) HasPermission(perm string) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
