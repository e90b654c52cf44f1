package call

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type callRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &callRepoPG{pool: pool}
}

const callCols = `id, reminder_id, patient_id, caregiver_id, phone_number, scheduled_time,
	status, vapi_call_id, call_duration, call_summary, error_message,
	call_attempts, is_demo, webhook_processed, created_at, updated_at`

func (r *callRepoPG) scanRow(row pgx.Row) (*ScheduledCall, error) {
	var c ScheduledCall
	err := row.Scan(&c.ID, &c.ReminderID, &c.PatientID, &c.CaregiverID, &c.PhoneNumber,
		&c.ScheduledTime, &c.Status, &c.VapiCallID, &c.CallDuration, &c.CallSummary,
		&c.ErrorMessage, &c.CallAttempts, &c.IsDemo, &c.WebhookProcessed,
		&c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *callRepoPG) Create(ctx context.Context, c *ScheduledCall) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_calls (id, reminder_id, patient_id, caregiver_id, phone_number,
			scheduled_time, status, vapi_call_id, call_attempts, is_demo)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.ReminderID, c.PatientID, c.CaregiverID, c.PhoneNumber,
		c.ScheduledTime, c.Status, c.VapiCallID, c.CallAttempts, c.IsDemo)
	return err
}

func (r *callRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ScheduledCall, error) {
	return r.scanRow(r.pool.QueryRow(ctx, `SELECT `+callCols+` FROM scheduled_calls WHERE id = $1`, id))
}

func (r *callRepoPG) GetByVapiCallID(ctx context.Context, vapiCallID string) (*ScheduledCall, error) {
	return r.scanRow(r.pool.QueryRow(ctx, `SELECT `+callCols+` FROM scheduled_calls WHERE vapi_call_id = $1`, vapiCallID))
}

func (r *callRepoPG) Update(ctx context.Context, c *ScheduledCall) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduled_calls SET status=$2, vapi_call_id=$3, call_duration=$4,
			call_summary=$5, error_message=$6, call_attempts=$7,
			webhook_processed=$8, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Status, c.VapiCallID, c.CallDuration, c.CallSummary,
		c.ErrorMessage, c.CallAttempts, c.WebhookProcessed)
	return err
}

func (r *callRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scheduled_calls WHERE id = $1`, id)
	return err
}

func (r *callRepoPG) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*ScheduledCall, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scheduled_calls
		WHERE patient_id = $1 OR caregiver_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+callCols+` FROM scheduled_calls
		WHERE patient_id = $1 OR caregiver_id = $1
		ORDER BY scheduled_time DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ScheduledCall
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}
