package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// PgxPool is the pgxpool.Pool subset the repositories use. pgxmock
// implements the same surface for tests.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EventRepositoryInterface defines operations for the capture event log
type EventRepositoryInterface interface {
	Create(ctx context.Context, event *domain.CaptureEvent) error
	ListRecent(ctx context.Context, deviceID string, limit int) ([]domain.CaptureEvent, error)
	CountSince(ctx context.Context, deviceID string, since time.Time, outcome domain.CaptureOutcome) (int, error)
}

// SpoolRepositoryInterface defines operations for the submission spool
type SpoolRepositoryInterface interface {
	Enqueue(ctx context.Context, sub *domain.PendingSubmission) error
	ListDue(ctx context.Context, deviceID string, limit int) ([]domain.PendingSubmission, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextRetryAt time.Time, lastError string) error
	MarkExhausted(ctx context.Context, id uuid.UUID, lastError string) error
	CountPending(ctx context.Context, deviceID string) (int, error)
}
