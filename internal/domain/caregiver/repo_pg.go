package caregiver

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type caregiverRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &caregiverRepoPG{pool: pool}
}

const relationshipCols = `id, caregiver_id, patient_id, relationship, permissions, created_at, updated_at`

func (r *caregiverRepoPG) scanRelationship(row pgx.Row) (*Relationship, error) {
	var rel Relationship
	err := row.Scan(&rel.ID, &rel.CaregiverID, &rel.PatientID, &rel.Relationship,
		&rel.Permissions, &rel.CreatedAt, &rel.UpdatedAt)
	return &rel, err
}

func (r *caregiverRepoPG) CreateRelationship(ctx context.Context, rel *Relationship) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO caregiver_relationships (id, caregiver_id, patient_id, relationship, permissions)
		VALUES ($1,$2,$3,$4,$5)`,
		rel.ID, rel.CaregiverID, rel.PatientID, rel.Relationship, rel.Permissions)
	return err
}

func (r *caregiverRepoPG) GetRelationship(ctx context.Context, id uuid.UUID) (*Relationship, error) {
	return r.scanRelationship(r.pool.QueryRow(ctx,
		`SELECT `+relationshipCols+` FROM caregiver_relationships WHERE id = $1`, id))
}

func (r *caregiverRepoPG) GetRelationshipBetween(ctx context.Context, caregiverID, patientID string) (*Relationship, error) {
	return r.scanRelationship(r.pool.QueryRow(ctx,
		`SELECT `+relationshipCols+` FROM caregiver_relationships
		WHERE caregiver_id = $1 AND patient_id = $2`, caregiverID, patientID))
}

func (r *caregiverRepoPG) UpdateRelationship(ctx context.Context, rel *Relationship) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE caregiver_relationships SET relationship=$2, permissions=$3, updated_at=NOW()
		WHERE id = $1`,
		rel.ID, rel.Relationship, rel.Permissions)
	return err
}

func (r *caregiverRepoPG) DeleteRelationship(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM caregiver_relationships WHERE id = $1`, id)
	return err
}

func (r *caregiverRepoPG) ListRelationships(ctx context.Context, userID string, limit, offset int) ([]*Relationship, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM caregiver_relationships
		WHERE caregiver_id = $1 OR patient_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+relationshipCols+` FROM caregiver_relationships
		WHERE caregiver_id = $1 OR patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Relationship
	for rows.Next() {
		rel, err := r.scanRelationship(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rel)
	}
	return items, total, nil
}

func (r *caregiverRepoPG) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `SELECT user_id, display_name, phone_number, created_at, updated_at
		FROM user_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.DisplayName, &p.PhoneNumber, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *caregiverRepoPG) UpsertProfile(ctx context.Context, p *Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, display_name, phone_number)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			phone_number = EXCLUDED.phone_number,
			updated_at = NOW()`,
		p.UserID, p.DisplayName, p.PhoneNumber)
	return err
}
