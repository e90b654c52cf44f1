package recording

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of a Recording. A row is immutable once it
// reaches ready or failed.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusConverting Status = "converting"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Recording is one uploaded visit audio file. The blob lives in the audio
// store at FilePath; DurationSeconds is estimated from blob size.
type Recording struct {
	ID              uuid.UUID `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Title           string    `json:"title"`
	FilePath        string    `json:"file_path,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
