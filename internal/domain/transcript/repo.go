package transcript

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Transcript) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transcript, error)
	GetByRecordingID(ctx context.Context, recordingID uuid.UUID) (*Transcript, error)
	Update(ctx context.Context, t *Transcript) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Transcript, int, error)
}
