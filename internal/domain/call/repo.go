package call

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *ScheduledCall) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduledCall, error)
	// GetByVapiCallID resolves a call by the provider's own id, the fallback
	// path when an event carries no correlation id.
	GetByVapiCallID(ctx context.Context, vapiCallID string) (*ScheduledCall, error)
	Update(ctx context.Context, c *ScheduledCall) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListForUser returns calls where the user is either the patient or the
	// caregiver.
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*ScheduledCall, int, error)
}
