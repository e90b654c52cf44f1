package caregiver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound  = errors.New("relationship not found")
	ErrForbidden = errors.New("relationship belongs to other users")
	ErrDuplicate = errors.New("relationship already exists")
	ErrSelfLink  = errors.New("caregiver and patient must differ")
)

// knownPermissions is the accepted permission vocabulary. Unknown values
// are rejected at creation so downstream checks stay simple string
// comparisons.
var knownPermissions = map[string]bool{
	"view_recordings": true,
	"view_reports":    true,
	"receive_calls":   true,
	"manage_calls":    true,
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "caregiver").Logger(),
	}
}

// CreateRelationship links the calling patient to a caregiver. The caller
// is always the patient side; caregivers cannot grant themselves access.
func (s *Service) CreateRelationship(ctx context.Context, patientID, caregiverID, label string, permissions []string) (*Relationship, error) {
	if caregiverID == "" {
		return nil, errors.New("caregiver id is required")
	}
	if caregiverID == patientID {
		return nil, ErrSelfLink
	}
	for _, p := range permissions {
		if !knownPermissions[p] {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
	}
	if permissions == nil {
		permissions = []string{}
	}

	if _, err := s.repo.GetRelationshipBetween(ctx, caregiverID, patientID); err == nil {
		return nil, ErrDuplicate
	}

	rel := &Relationship{
		CaregiverID:  caregiverID,
		PatientID:    patientID,
		Relationship: label,
		Permissions:  permissions,
	}
	if err := s.repo.CreateRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("creating relationship: %w", err)
	}
	s.logger.Info().Str("patient_id", patientID).Str("caregiver_id", caregiverID).Msg("relationship created")
	return rel, nil
}

// UpdateRelationship changes the label or permissions. Only the patient
// side may change what a caregiver is allowed to do.
func (s *Service) UpdateRelationship(ctx context.Context, userID string, id uuid.UUID, label string, permissions []string) (*Relationship, error) {
	rel, err := s.repo.GetRelationship(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if rel.PatientID != userID {
		return nil, ErrForbidden
	}
	for _, p := range permissions {
		if !knownPermissions[p] {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
	}

	if label != "" {
		rel.Relationship = label
	}
	if permissions != nil {
		rel.Permissions = permissions
	}
	if err := s.repo.UpdateRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("updating relationship: %w", err)
	}
	return rel, nil
}

// DeleteRelationship removes the link. Either side may sever it.
func (s *Service) DeleteRelationship(ctx context.Context, userID string, id uuid.UUID) error {
	rel, err := s.repo.GetRelationship(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if rel.PatientID != userID && rel.CaregiverID != userID {
		return ErrForbidden
	}
	return s.repo.DeleteRelationship(ctx, id)
}

func (s *Service) ListRelationships(ctx context.Context, userID string, limit, offset int) ([]*Relationship, int, error) {
	return s.repo.ListRelationships(ctx, userID, limit, offset)
}

// CaregiverCan reports whether a caregiver holds the named permission for
// a patient. Used by other domains for authorization checks.
func (s *Service) CaregiverCan(ctx context.Context, caregiverID, patientID, permission string) bool {
	rel, err := s.repo.GetRelationshipBetween(ctx, caregiverID, patientID)
	if err != nil {
		return false
	}
	return rel.HasPermission(permission)
}

// GetProfile returns the user's profile, or an empty one if none has been
// saved yet.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return &Profile{UserID: userID}, nil
	}
	return p, nil
}

// SaveProfile upserts the user's profile.
func (s *Service) SaveProfile(ctx context.Context, userID, displayName, phoneNumber string) (*Profile, error) {
	p := &Profile{
		UserID:      userID,
		DisplayName: displayName,
		PhoneNumber: phoneNumber,
	}
	if err := s.repo.UpsertProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return p, nil
}

// PhoneNumberFor resolves the number reminder calls should dial for a user.
func (s *Service) PhoneNumberFor(ctx context.Context, userID string) (string, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("no profile for user %s", userID)
	}
	if p.PhoneNumber == "" {
		return "", fmt.Errorf("user %s has no phone number", userID)
	}
	return p.PhoneNumber, nil
}
