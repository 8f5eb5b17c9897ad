package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/auth"
	"github.com/saturnino-fabrica-de-software/ponto/internal/camera"
	"github.com/saturnino-fabrica-de-software/ponto/internal/detector"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/feedback"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
)

// SubmitClient is the backend surface the engine needs.
type SubmitClient interface {
	SubmitAttendance(ctx context.Context, token string, frame []byte, pos *domain.Position) (*domain.AttendanceResult, error)
}

// SessionStore is the auth surface the engine needs.
type SessionStore interface {
	Load() (*domain.Session, error)
	Clear() error
}

// Locator resolves the optional device position.
type Locator interface {
	Locate(ctx context.Context) (*domain.Position, error)
}

// Settings tune the capture loop.
type Settings struct {
	DeviceID          string
	SampleInterval    time.Duration
	RequiredStreak    int
	SuccessCooldown   time.Duration
	RejectionCooldown time.Duration
	RetryCooldown     time.Duration
	SpoolMaxAttempts  int
}

func (s *Settings) applyDefaults() {
	if s.SampleInterval == 0 {
		s.SampleInterval = 2 * time.Second
	}
	if s.RequiredStreak <= 0 {
		s.RequiredStreak = 2
	}
	if s.SuccessCooldown == 0 {
		s.SuccessCooldown = 60 * time.Second
	}
	if s.RejectionCooldown == 0 {
		s.RejectionCooldown = 10 * time.Second
	}
	if s.RetryCooldown == 0 {
		s.RetryCooldown = 5 * time.Second
	}
	if s.SpoolMaxAttempts <= 0 {
		s.SpoolMaxAttempts = 5
	}
}

// Engine runs the auto-capture attendance cycle: sample a frame, probe it
// for a face, debounce, submit, map the answer to feedback, schedule the
// next window. Repositories are optional; a kiosk without a database keeps
// capturing, it just stops remembering.
type Engine struct {
	source   camera.Source
	detector detector.Detector
	client   SubmitClient
	sessions SessionStore
	locator  Locator
	notifier feedback.Notifier
	events   repository.EventRepositoryInterface
	spool    repository.SpoolRepositoryInterface
	logger   *slog.Logger
	settings Settings
	now      func() time.Time
	done     chan struct{}

	mu            sync.Mutex
	inFlight      bool
	streak        int
	faceDetected  bool
	nextAllowedAt time.Time
	lastSampleAt  time.Time
	lastSubmitAt  time.Time
	lastOutcome   domain.CaptureOutcome
	lastMessage   string
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithEventRepository enables the local capture event log.
func WithEventRepository(events repository.EventRepositoryInterface) Option {
	return func(e *Engine) { e.events = events }
}

// WithSpoolRepository enables spooling of transport-failed submissions.
func WithSpoolRepository(spool repository.SpoolRepositoryInterface) Option {
	return func(e *Engine) { e.spool = spool }
}

// WithClock overrides the engine clock (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	source camera.Source,
	det detector.Detector,
	client SubmitClient,
	sessions SessionStore,
	locator Locator,
	notifier feedback.Notifier,
	logger *slog.Logger,
	settings Settings,
	opts ...Option,
) *Engine {
	settings.applyDefaults()

	e := &Engine{
		source:   source,
		detector: det,
		client:   client,
		sessions: sessions,
		locator:  locator,
		notifier: notifier,
		logger:   logger,
		settings: settings,
		now:      time.Now,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run drives the sampling loop until the context is cancelled or Stop is
// called.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.settings.SampleInterval)
	defer ticker.Stop()

	e.logger.Info("capture engine started",
		"interval", e.settings.SampleInterval,
		"required_streak", e.settings.RequiredStreak,
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("capture engine stopped")
			return
		case <-e.done:
			e.logger.Info("capture engine stopped")
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Stop ends the Run loop.
func (e *Engine) Stop() {
	close(e.done)
}

// Tick runs one sampling cycle. Exported so tests and the Run loop share
// the exact same path.
func (e *Engine) Tick(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	if e.inFlight || now.Before(e.nextAllowedAt) {
		e.mu.Unlock()
		return
	}
	e.lastSampleAt = now
	e.mu.Unlock()

	session, err := e.sessions.Load()
	if err != nil {
		e.handleSignedOut(ctx, err, now)
		return
	}

	frame, err := e.source.Grab(ctx)
	if err != nil {
		e.logger.Warn("frame grab failed", "error", err)
		e.resetStreak()
		return
	}
	if frame == nil {
		return
	}

	faces, err := e.detector.Detect(ctx, frame.Data)
	if err != nil {
		e.logger.Warn("face probe failed", "error", err)
		e.resetStreak()
		return
	}

	e.mu.Lock()
	e.faceDetected = len(faces) > 0
	if len(faces) == 0 {
		e.streak = 0
		e.mu.Unlock()
		return
	}
	e.streak++
	ready := e.streak >= e.settings.RequiredStreak
	e.mu.Unlock()

	e.logger.Debug("face present", "faces", len(faces), "confidence", faces[0].Confidence)

	if !ready {
		return
	}

	e.submit(ctx, session, frame, false)
}

// TriggerNow submits immediately, skipping debounce and cooldown. The
// in-flight guard still applies.
func (e *Engine) TriggerNow(ctx context.Context) (*domain.AttendanceResult, error) {
	session, err := e.sessions.Load()
	if err != nil {
		return nil, domain.ErrNotSignedIn.WithError(err)
	}

	frame, err := e.source.Grab(ctx)
	if err != nil {
		return nil, domain.ErrNoFrame.WithError(err)
	}
	if frame == nil {
		return nil, domain.ErrNoFrame
	}

	return e.submit(ctx, session, frame, true)
}

// handleSignedOut surfaces the missing session once per retry window so an
// unattended kiosk does not spam its operators every two seconds.
func (e *Engine) handleSignedOut(ctx context.Context, cause error, now time.Time) {
	e.mu.Lock()
	e.streak = 0
	e.nextAllowedAt = now.Add(e.settings.RetryCooldown)
	e.mu.Unlock()

	if errors.Is(cause, auth.ErrNoSession) {
		e.logger.Debug("no stored session, capture idle")
	} else {
		e.logger.Warn("session blob unreadable", "error", cause)
	}

	e.notifier.Notify(ctx, feedback.Notification{
		Severity: feedback.SeverityWarning,
		Title:    "Not signed in",
		Message:  "Sign in on this device before clocking in",
	})
}

func (e *Engine) resetStreak() {
	e.mu.Lock()
	e.streak = 0
	e.faceDetected = false
	e.mu.Unlock()
}

// TryAcquire reserves the single submission slot. The slot is shared with
// the spool worker so a retry never runs concurrently with a live capture.
func (e *Engine) TryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight {
		return false
	}
	e.inFlight = true
	return true
}

// Release frees the submission slot.
func (e *Engine) Release() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}

// submit sends one frame and maps the answer to cooldown, feedback and the
// event log. Exactly one submission runs at a time.
func (e *Engine) submit(ctx context.Context, session *domain.Session, frame *camera.Frame, manual bool) (*domain.AttendanceResult, error) {
	if !e.TryAcquire() {
		return nil, domain.ErrCaptureBusy
	}
	defer e.Release()

	e.mu.Lock()
	e.streak = 0
	e.mu.Unlock()

	var pos *domain.Position
	if e.locator != nil {
		p, err := e.locator.Locate(ctx)
		if err != nil {
			// Best-effort: submit without a position.
			e.logger.Debug("position unavailable", "error", err)
		} else {
			pos = p
		}
	}

	start := e.now()
	result, err := e.client.SubmitAttendance(ctx, session.Token, frame.Data, pos)
	latency := e.now().Sub(start)

	event := domain.CaptureEvent{
		DeviceID:   e.settings.DeviceID,
		OccurredAt: start.UTC(),
		LatencyMs:  latency.Milliseconds(),
		Manual:     manual,
	}

	switch {
	case err == nil:
		e.finishCycle(start, e.settings.SuccessCooldown, domain.OutcomeAccepted, result.Message)
		event.Outcome = domain.OutcomeAccepted
		event.Message = result.Message
		event.Employee = result.Employee
		event.Confidence = result.Confidence
		e.notifier.Notify(ctx, acceptedNotification(result))

	case errors.Is(err, domain.ErrSessionExpired):
		if clearErr := e.sessions.Clear(); clearErr != nil {
			e.logger.Error("failed to clear rejected session", "error", clearErr)
		}
		e.finishCycle(start, e.settings.RetryCooldown, domain.OutcomeFailed, err.Error())
		event.Outcome = domain.OutcomeFailed
		event.Message = err.Error()
		e.notifier.Notify(ctx, feedback.Notification{
			Severity: feedback.SeverityError,
			Title:    "Signed out",
			Message:  "Session expired, sign in again",
			Speech:   "Session expired. Please sign in again.",
		})

	case errors.Is(err, domain.ErrNoFaceDetected), errors.Is(err, domain.ErrFaceNotRecognized):
		e.finishCycle(start, e.settings.RejectionCooldown, domain.OutcomeRejected, err.Error())
		event.Outcome = domain.OutcomeRejected
		event.Message = rejectionMessage(err)
		e.notifier.Notify(ctx, feedback.Notification{
			Severity: feedback.SeverityWarning,
			Title:    "Try again",
			Message:  rejectionMessage(err),
			Speech:   rejectionMessage(err),
		})

	default:
		outcome := domain.OutcomeFailed
		if e.enqueueFrame(ctx, frame, pos, err) {
			outcome = domain.OutcomeSpooled
		}
		e.finishCycle(start, e.settings.RetryCooldown, outcome, err.Error())
		event.Outcome = outcome
		event.Message = err.Error()
		e.notifier.Notify(ctx, feedback.Notification{
			Severity: feedback.SeverityError,
			Title:    "Submission failed",
			Message:  "Could not reach the attendance service, will retry",
		})
	}

	e.recordEvent(&event)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// finishCycle updates the gate state after a completed submission.
func (e *Engine) finishCycle(at time.Time, cooldown time.Duration, outcome domain.CaptureOutcome, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastSubmitAt = at
	e.nextAllowedAt = at.Add(cooldown)
	e.lastOutcome = outcome
	e.lastMessage = message
}

// enqueueFrame spools a transport-failed submission for the retry worker.
func (e *Engine) enqueueFrame(ctx context.Context, frame *camera.Frame, pos *domain.Position, cause error) bool {
	if e.spool == nil {
		return false
	}

	retryAt := e.now().Add(e.settings.RetryCooldown)
	sub := &domain.PendingSubmission{
		DeviceID:    e.settings.DeviceID,
		Frame:       frame.Data,
		Position:    pos,
		CapturedAt:  frame.CapturedAt,
		MaxAttempts: e.settings.SpoolMaxAttempts,
		NextRetryAt: &retryAt,
		Status:      domain.SpoolPending,
		LastError:   cause.Error(),
	}

	if err := e.spool.Enqueue(ctx, sub); err != nil {
		e.logger.Error("failed to spool submission", "error", err)
		return false
	}
	return true
}

func (e *Engine) recordEvent(event *domain.CaptureEvent) {
	if e.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.events.Create(ctx, event); err != nil {
		e.logger.Error("failed to record capture event", "error", err)
	}
}

func acceptedNotification(result *domain.AttendanceResult) feedback.Notification {
	title := "Attendance recorded"
	speech := fmt.Sprintf("Welcome, %s.", result.Employee)
	if result.Status == domain.StatusCheckedOut {
		speech = fmt.Sprintf("Goodbye, %s.", result.Employee)
	}

	message := result.Message
	if message == "" {
		message = fmt.Sprintf("%s (%.0f%% match)", result.Employee, result.Confidence*100)
	}

	return feedback.Notification{
		Severity: feedback.SeveritySuccess,
		Title:    title,
		Message:  message,
		Speech:   speech,
	}
}

func rejectionMessage(err error) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
