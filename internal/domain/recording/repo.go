package recording

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Recording) error
	GetByID(ctx context.Context, id uuid.UUID) (*Recording, error)
	Update(ctx context.Context, r *Recording) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Recording, int, error)
}
