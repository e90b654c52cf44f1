package recording

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type recordingRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &recordingRepoPG{pool: pool}
}

const recordingCols = `id, owner_id, title, file_path, duration_seconds, status, created_at, updated_at`

func (r *recordingRepoPG) scanRow(row pgx.Row) (*Recording, error) {
	var rec Recording
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.FilePath, &rec.DurationSeconds,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	return &rec, err
}

func (r *recordingRepoPG) Create(ctx context.Context, rec *Recording) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO recordings (id, owner_id, title, file_path, duration_seconds, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.OwnerID, rec.Title, rec.FilePath, rec.DurationSeconds, rec.Status)
	return err
}

func (r *recordingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Recording, error) {
	return r.scanRow(r.pool.QueryRow(ctx, `SELECT `+recordingCols+` FROM recordings WHERE id = $1`, id))
}

func (r *recordingRepoPG) Update(ctx context.Context, rec *Recording) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE recordings SET title=$2, file_path=$3, duration_seconds=$4, status=$5, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.Title, rec.FilePath, rec.DurationSeconds, rec.Status)
	return err
}

func (r *recordingRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM recordings WHERE id = $1`, id)
	return err
}

func (r *recordingRepoPG) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Recording, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recordings WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordingCols+` FROM recordings
		WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Recording
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, nil
}
