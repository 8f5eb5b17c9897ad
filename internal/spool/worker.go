package spool

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/auth"
	"github.com/saturnino-fabrica-de-software/ponto/internal/capture"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/feedback"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
)

const retryBatchSize = 10

// maxBackoff caps the per-entry retry backoff
const maxBackoff = 10 * time.Minute

// SubmissionGate serializes spool retries with live captures. The capture
// engine implements it with its in-flight slot.
type SubmissionGate interface {
	TryAcquire() bool
	Release()
}

// Worker drains the submission spool: frames whose delivery failed are
// resubmitted with exponential backoff until they deliver or exhaust
// their attempts.
type Worker struct {
	repo     repository.SpoolRepositoryInterface
	client   capture.SubmitClient
	sessions capture.SessionStore
	notifier feedback.Notifier
	logger   *slog.Logger
	deviceID string
	interval time.Duration
	gate     SubmissionGate
	done     chan struct{}
}

// Option configures optional Worker collaborators.
type Option func(*Worker)

// WithGate shares the capture engine's submission slot with the worker.
func WithGate(gate SubmissionGate) Option {
	return func(w *Worker) { w.gate = gate }
}

func NewWorker(
	repo repository.SpoolRepositoryInterface,
	client capture.SubmitClient,
	sessions capture.SessionStore,
	notifier feedback.Notifier,
	logger *slog.Logger,
	deviceID string,
	interval time.Duration,
	opts ...Option,
) *Worker {
	if interval == 0 {
		interval = 30 * time.Second
	}

	w := &Worker{
		repo:     repo,
		client:   client,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
		deviceID: deviceID,
		interval: interval,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("spool worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("spool worker stopped")
			return
		case <-w.done:
			w.logger.Info("spool worker stopped")
			return
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

func (w *Worker) Stop() {
	close(w.done)
}

func (w *Worker) process(ctx context.Context) {
	session, err := w.sessions.Load()
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			w.logger.Warn("spool cycle skipped, session unreadable", "error", err)
		}
		return
	}

	subs, err := w.repo.ListDue(ctx, w.deviceID, retryBatchSize)
	if err != nil {
		w.logger.Error("failed to list due submissions", "error", err)
		return
	}

	for i := range subs {
		if w.gate != nil && !w.gate.TryAcquire() {
			// A live capture holds the slot; the batch keeps until next cycle.
			return
		}
		err := w.retry(ctx, session, &subs[i])
		if w.gate != nil {
			w.gate.Release()
		}
		if err != nil {
			w.logger.Error("failed to retry submission",
				"submission_id", subs[i].ID,
				"attempts", subs[i].Attempts,
				"error", err,
			)
		}
	}
}

func (w *Worker) retry(ctx context.Context, session *domain.Session, sub *domain.PendingSubmission) error {
	result, err := w.client.SubmitAttendance(ctx, session.Token, sub.Frame, sub.Position)
	if err == nil {
		w.logger.Info("spooled submission delivered",
			"submission_id", sub.ID,
			"employee", result.Employee,
			"captured_at", sub.CapturedAt,
		)
		return w.repo.MarkDelivered(ctx, sub.ID)
	}

	// A definitive rejection will never succeed on retry; the frame is spent.
	if errors.Is(err, domain.ErrNoFaceDetected) || errors.Is(err, domain.ErrFaceNotRecognized) {
		w.logger.Info("spooled submission rejected, dropping",
			"submission_id", sub.ID,
			"error", err,
		)
		return w.repo.MarkExhausted(ctx, sub.ID, err.Error())
	}

	if errors.Is(err, domain.ErrSessionExpired) {
		if clearErr := w.sessions.Clear(); clearErr != nil {
			w.logger.Error("failed to clear rejected session", "error", clearErr)
		}
		return err
	}

	attempts := sub.Attempts + 1
	if attempts >= sub.MaxAttempts {
		w.notifier.Notify(ctx, feedback.Notification{
			Severity: feedback.SeverityError,
			Title:    "Submission dropped",
			Message:  "A spooled attendance capture exhausted its retries",
		})
		return w.repo.MarkExhausted(ctx, sub.ID, err.Error())
	}

	return w.repo.Reschedule(ctx, sub.ID, attempts, time.Now().Add(retryBackoff(attempts)), err.Error())
}

// retryBackoff returns 30s, 1m, 2m, ... capped at maxBackoff
func retryBackoff(attempt int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
