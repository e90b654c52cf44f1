package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of a Transcript. The retry controller may move a
// failed transcript back to pending, bounded by MaxRetries.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// MaxRetries bounds the retry controller. A transcript at the bound is
// terminally failed.
const MaxRetries = 3

// Transcript is the speech-to-text result for one recording, one-to-one
// with its Recording row. StructuredTranscript is the best-effort speaker
// labelled rendition; it is filled in after completion and its absence
// never regresses the status.
type Transcript struct {
	ID                   uuid.UUID `json:"id"`
	RecordingID          uuid.UUID `json:"recording_id"`
	OwnerID              string    `json:"owner_id"`
	Status               Status    `json:"status"`
	TranscriptionText    *string   `json:"transcription_text,omitempty"`
	StructuredTranscript *string   `json:"structured_transcript,omitempty"`
	ErrorMessage         *string   `json:"error_message,omitempty"`
	RetryCount           int       `json:"retry_count"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
