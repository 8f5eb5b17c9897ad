package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type SpoolRepository struct {
	pool PgxPool
}

func NewSpoolRepository(pool PgxPool) *SpoolRepository {
	return &SpoolRepository{pool: pool}
}

// Enqueue stores a frame whose delivery failed
func (r *SpoolRepository) Enqueue(ctx context.Context, sub *domain.PendingSubmission) error {
	query := `
		INSERT INTO submission_spool (id, device_id, frame, latitude, longitude, accuracy, captured_at, attempts, max_attempts, next_retry_at, status, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	`

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Status == "" {
		sub.Status = domain.SpoolPending
	}

	var lat, lon, acc *float64
	if sub.Position != nil {
		lat = &sub.Position.Latitude
		lon = &sub.Position.Longitude
		acc = &sub.Position.Accuracy
	}

	_, err := r.pool.Exec(ctx, query,
		sub.ID,
		sub.DeviceID,
		sub.Frame,
		lat,
		lon,
		acc,
		sub.CapturedAt,
		sub.Attempts,
		sub.MaxAttempts,
		sub.NextRetryAt,
		sub.Status,
		sub.LastError,
	)
	if err != nil {
		return fmt.Errorf("enqueue submission: %w", err)
	}

	return nil
}

// ListDue returns pending submissions whose retry time has passed, oldest
// first. Rows are not locked: the agent runs a single worker per device, so
// there is no competing consumer.
func (r *SpoolRepository) ListDue(ctx context.Context, deviceID string, limit int) ([]domain.PendingSubmission, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, device_id, frame, latitude, longitude, accuracy, captured_at, attempts, max_attempts, next_retry_at, status, last_error
		FROM submission_spool
		WHERE device_id = $1 AND status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY captured_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query submission spool: %w", err)
	}
	defer rows.Close()

	var subs []domain.PendingSubmission
	for rows.Next() {
		var sub domain.PendingSubmission
		var lat, lon, acc *float64
		err := rows.Scan(
			&sub.ID,
			&sub.DeviceID,
			&sub.Frame,
			&lat,
			&lon,
			&acc,
			&sub.CapturedAt,
			&sub.Attempts,
			&sub.MaxAttempts,
			&sub.NextRetryAt,
			&sub.Status,
			&sub.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pending submission: %w", err)
		}
		if lat != nil && lon != nil {
			sub.Position = &domain.Position{Latitude: *lat, Longitude: *lon}
			if acc != nil {
				sub.Position.Accuracy = *acc
			}
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission spool: %w", err)
	}

	return subs, nil
}

// MarkDelivered finishes a spool entry after a successful resubmission
func (r *SpoolRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE submission_spool
		SET status = 'delivered', last_error = '', updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark submission delivered: %w", err)
	}
	return nil
}

// Reschedule bumps the attempt counter and sets the next retry time
func (r *SpoolRepository) Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextRetryAt time.Time, lastError string) error {
	query := `
		UPDATE submission_spool
		SET attempts = $2, next_retry_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id, attempts, nextRetryAt, lastError); err != nil {
		return fmt.Errorf("reschedule submission: %w", err)
	}
	return nil
}

// MarkExhausted gives up on a spool entry after max attempts
func (r *SpoolRepository) MarkExhausted(ctx context.Context, id uuid.UUID, lastError string) error {
	query := `
		UPDATE submission_spool
		SET status = 'exhausted', last_error = $2, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id, lastError); err != nil {
		return fmt.Errorf("mark submission exhausted: %w", err)
	}
	return nil
}

// CountPending returns the spool backlog for the status endpoint
func (r *SpoolRepository) CountPending(ctx context.Context, deviceID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM submission_spool
		WHERE device_id = $1 AND status = 'pending'
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, deviceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending submissions: %w", err)
	}

	return count, nil
}

var _ SpoolRepositoryInterface = (*SpoolRepository)(nil)
