package caregiver

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateRelationship(ctx context.Context, r *Relationship) error
	GetRelationship(ctx context.Context, id uuid.UUID) (*Relationship, error)
	// GetRelationshipBetween returns the row for one caregiver/patient pair,
	// used both for duplicate checks and permission lookups.
	GetRelationshipBetween(ctx context.Context, caregiverID, patientID string) (*Relationship, error)
	UpdateRelationship(ctx context.Context, r *Relationship) error
	DeleteRelationship(ctx context.Context, id uuid.UUID) error
	// ListRelationships returns every row where the user appears on either
	// side.
	ListRelationships(ctx context.Context, userID string, limit, offset int) ([]*Relationship, int, error)

	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// UpsertProfile creates or replaces the user's profile row.
	UpsertProfile(ctx context.Context, p *Profile) error
}
