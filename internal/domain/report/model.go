package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of a MedicalReport. There is no retry path; a
// failed report stays failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// MedicalReport is the AI-generated report for one completed transcript,
// one-to-one with the transcript via a unique constraint on transcript_id.
// The JSON-valued sections are stored as jsonb and passed through opaquely.
type MedicalReport struct {
	ID                  uuid.UUID       `json:"id"`
	TranscriptID        uuid.UUID       `json:"transcript_id"`
	RecordingID         uuid.UUID       `json:"recording_id"`
	OwnerID             string          `json:"owner_id"`
	Status              Status          `json:"status"`
	PatientDemographics json.RawMessage `json:"patient_demographics,omitempty"`
	ChiefComplaint      *string         `json:"chief_complaint,omitempty"`
	HPIDetails          *string         `json:"hpi_details,omitempty"`
	MedicalHistory      json.RawMessage `json:"medical_history,omitempty"`
	SOAPNote            json.RawMessage `json:"soap_note,omitempty"`
	RedFlags            []string        `json:"red_flags"`
	PatientSummary      *string         `json:"patient_summary,omitempty"`
	SharedCaregivers    []string        `json:"shared_caregivers"`
	ErrorMessage        *string         `json:"error_message,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
