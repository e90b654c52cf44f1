package report

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &reportRepoPG{pool: pool}
}

const reportCols = `id, transcript_id, recording_id, owner_id, status, patient_demographics,
	chief_complaint, hpi_details, medical_history, soap_note, red_flags,
	patient_summary, shared_caregivers, error_message, created_at, updated_at`

func (r *reportRepoPG) scanRow(row pgx.Row) (*MedicalReport, error) {
	var rep MedicalReport
	err := row.Scan(&rep.ID, &rep.TranscriptID, &rep.RecordingID, &rep.OwnerID, &rep.Status,
		&rep.PatientDemographics, &rep.ChiefComplaint, &rep.HPIDetails, &rep.MedicalHistory,
		&rep.SOAPNote, &rep.RedFlags, &rep.PatientSummary, &rep.SharedCaregivers,
		&rep.ErrorMessage, &rep.CreatedAt, &rep.UpdatedAt)
	return &rep, err
}

// CreateOrGet relies on the unique index on transcript_id: ON CONFLICT DO
// NOTHING plus a follow-up read makes concurrent generation requests
// converge on a single row.
func (r *reportRepoPG) CreateOrGet(ctx context.Context, rep *MedicalReport) (*MedicalReport, bool, error) {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO medical_reports (id, transcript_id, recording_id, owner_id, status, red_flags, shared_caregivers)
		VALUES ($1,$2,$3,$4,$5,'{}','{}')
		ON CONFLICT (transcript_id) DO NOTHING`,
		rep.ID, rep.TranscriptID, rep.RecordingID, rep.OwnerID, rep.Status)
	if err != nil {
		return nil, false, err
	}

	existing, err := r.GetByTranscriptID(ctx, rep.TranscriptID)
	if err != nil {
		return nil, false, err
	}
	return existing, tag.RowsAffected() == 1, nil
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalReport, error) {
	rep, err := r.scanRow(r.pool.QueryRow(ctx, `SELECT `+reportCols+` FROM medical_reports WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return rep, err
}

func (r *reportRepoPG) GetByTranscriptID(ctx context.Context, transcriptID uuid.UUID) (*MedicalReport, error) {
	return r.scanRow(r.pool.QueryRow(ctx, `SELECT `+reportCols+` FROM medical_reports WHERE transcript_id = $1`, transcriptID))
}

func (r *reportRepoPG) Update(ctx context.Context, rep *MedicalReport) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE medical_reports SET status=$2, patient_demographics=$3, chief_complaint=$4,
			hpi_details=$5, medical_history=$6, soap_note=$7, red_flags=$8,
			patient_summary=$9, error_message=$10, updated_at=NOW()
		WHERE id = $1`,
		rep.ID, rep.Status, rep.PatientDemographics, rep.ChiefComplaint,
		rep.HPIDetails, rep.MedicalHistory, rep.SOAPNote, rep.RedFlags,
		rep.PatientSummary, rep.ErrorMessage)
	return err
}

// AppendSharedCaregiver uses array_append guarded by a membership check in
// the same statement, so concurrent shares cannot overwrite each other.
func (r *reportRepoPG) AppendSharedCaregiver(ctx context.Context, id uuid.UUID, caregiverID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE medical_reports
		SET shared_caregivers = array_append(shared_caregivers, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(shared_caregivers))`,
		id, caregiverID)
	return err
}

func (r *reportRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM medical_reports WHERE id = $1`, id)
	return err
}

func (r *reportRepoPG) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*MedicalReport, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM medical_reports WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+reportCols+` FROM medical_reports
		WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicalReport
	for rows.Next() {
		rep, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rep)
	}
	return items, total, nil
}
