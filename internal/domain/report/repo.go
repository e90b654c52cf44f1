package report

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateOrGet inserts a pending report for the transcript or, if one
	// already exists, returns the existing row. Uniqueness is enforced by
	// the database constraint on transcript_id, not by a pre-check.
	CreateOrGet(ctx context.Context, r *MedicalReport) (*MedicalReport, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalReport, error)
	GetByTranscriptID(ctx context.Context, transcriptID uuid.UUID) (*MedicalReport, error)
	Update(ctx context.Context, r *MedicalReport) error
	// AppendSharedCaregiver atomically adds a caregiver to the shared list
	// if not already present.
	AppendSharedCaregiver(ctx context.Context, id uuid.UUID, caregiverID string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*MedicalReport, int, error)
}
