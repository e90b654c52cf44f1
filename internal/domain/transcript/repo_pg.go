package transcript

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type transcriptRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &transcriptRepoPG{pool: pool}
}

const transcriptCols = `id, recording_id, owner_id, status, transcription_text,
	structured_transcript, error_message, retry_count, created_at, updated_at`

func (r *transcriptRepoPG) scanRow(row pgx.Row) (*Transcript, error) {
	var t Transcript
	err := row.Scan(&t.ID, &t.RecordingID, &t.OwnerID, &t.Status, &t.TranscriptionText,
		&t.StructuredTranscript, &t.ErrorMessage, &t.RetryCount, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *transcriptRepoPG) Create(ctx context.Context, t *Transcript) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transcripts (id, recording_id, owner_id, status, transcription_text,
			structured_transcript, error_message, retry_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.RecordingID, t.OwnerID, t.Status, t.TranscriptionText,
		t.StructuredTranscript, t.ErrorMessage, t.RetryCount)
	return err
}

func (r *transcriptRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transcript, error) {
	return r.scanRow(r.pool.QueryRow(ctx, `SELECT `+transcriptCols+` FROM transcripts WHERE id = $1`, id))
}

func (r *transcriptRepoPG) GetByRecordingID(ctx context.Context, recordingID uuid.UUID) (*Transcript, error) {
	return r.scanRow(r.pool.QueryRow(ctx, `SELECT `+transcriptCols+` FROM transcripts WHERE recording_id = $1`, recordingID))
}

func (r *transcriptRepoPG) Update(ctx context.Context, t *Transcript) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transcripts SET status=$2, transcription_text=$3, structured_transcript=$4,
			error_message=$5, retry_count=$6, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Status, t.TranscriptionText, t.StructuredTranscript, t.ErrorMessage, t.RetryCount)
	return err
}

func (r *transcriptRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM transcripts WHERE id = $1`, id)
	return err
}

func (r *transcriptRepoPG) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Transcript, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transcripts WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transcriptCols+` FROM transcripts
		WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Transcript
	for rows.Next() {
		t, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}
