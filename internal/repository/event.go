package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type EventRepository struct {
	pool PgxPool
}

func NewEventRepository(pool PgxPool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Create inserts one capture event
func (r *EventRepository) Create(ctx context.Context, event *domain.CaptureEvent) error {
	query := `
		INSERT INTO capture_events (id, device_id, occurred_at, outcome, message, employee, confidence, latency_ms, manual)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.DeviceID,
		event.OccurredAt,
		event.Outcome,
		event.Message,
		event.Employee,
		event.Confidence,
		event.LatencyMs,
		event.Manual,
	)
	if err != nil {
		return fmt.Errorf("insert capture event: %w", err)
	}

	return nil
}

// ListRecent returns the newest events for the device, newest first
func (r *EventRepository) ListRecent(ctx context.Context, deviceID string, limit int) ([]domain.CaptureEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, device_id, occurred_at, outcome, message, employee, confidence, latency_ms, manual
		FROM capture_events
		WHERE device_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query capture events: %w", err)
	}
	defer rows.Close()

	var events []domain.CaptureEvent
	for rows.Next() {
		var event domain.CaptureEvent
		err := rows.Scan(
			&event.ID,
			&event.DeviceID,
			&event.OccurredAt,
			&event.Outcome,
			&event.Message,
			&event.Employee,
			&event.Confidence,
			&event.LatencyMs,
			&event.Manual,
		)
		if err != nil {
			return nil, fmt.Errorf("scan capture event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate capture events: %w", err)
	}

	return events, nil
}

// CountSince counts events with the given outcome since a point in time
func (r *EventRepository) CountSince(ctx context.Context, deviceID string, since time.Time, outcome domain.CaptureOutcome) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM capture_events
		WHERE device_id = $1 AND occurred_at >= $2 AND outcome = $3
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, deviceID, since, outcome).Scan(&count); err != nil {
		return 0, fmt.Errorf("count capture events: %w", err)
	}

	return count, nil
}

var _ EventRepositoryInterface = (*EventRepository)(nil)
