package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/auth"
	"github.com/saturnino-fabrica-de-software/ponto/internal/camera"
	"github.com/saturnino-fabrica-de-software/ponto/internal/detector"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/feedback"
)

type fakeSource struct {
	frame *camera.Frame
	err   error
	grabs int
}

func (f *fakeSource) Grab(ctx context.Context) (*camera.Frame, error) {
	f.grabs++
	return f.frame, f.err
}

type fakeDetector struct {
	faces []detector.Face
	err   error
}

func (f *fakeDetector) Detect(ctx context.Context, image []byte) ([]detector.Face, error) {
	return f.faces, f.err
}

type fakeClient struct {
	mu      sync.Mutex
	result  *domain.AttendanceResult
	err     error
	calls   int
	block   chan struct{}
	lastPos *domain.Position
}

func (f *fakeClient) SubmitAttendance(ctx context.Context, token string, frame []byte, pos *domain.Position) (*domain.AttendanceResult, error) {
	f.mu.Lock()
	f.calls++
	f.lastPos = pos
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return f.result, f.err
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSessions struct {
	session *domain.Session
	loadErr error
	cleared bool
}

func (f *fakeSessions) Load() (*domain.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.session, nil
}

func (f *fakeSessions) Clear() error {
	f.cleared = true
	f.session = nil
	f.loadErr = auth.ErrNoSession
	return nil
}

type fakeLocator struct {
	pos *domain.Position
	err error
}

func (f *fakeLocator) Locate(ctx context.Context) (*domain.Position, error) {
	return f.pos, f.err
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []feedback.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n feedback.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingNotifier) last() (feedback.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return feedback.Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}

type fakeSpool struct {
	mu       sync.Mutex
	enqueued []*domain.PendingSubmission
	err      error
}

func (f *fakeSpool) Enqueue(ctx context.Context, sub *domain.PendingSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, sub)
	return nil
}

func (f *fakeSpool) ListDue(ctx context.Context, deviceID string, limit int) ([]domain.PendingSubmission, error) {
	return nil, nil
}
func (f *fakeSpool) MarkDelivered(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeSpool) Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextRetryAt time.Time, lastError string) error {
	return nil
}
func (f *fakeSpool) MarkExhausted(ctx context.Context, id uuid.UUID, lastError string) error {
	return nil
}
func (f *fakeSpool) CountPending(ctx context.Context, deviceID string) (int, error) { return 0, nil }

type fakeEvents struct {
	mu     sync.Mutex
	events []*domain.CaptureEvent
}

func (f *fakeEvents) Create(ctx context.Context, event *domain.CaptureEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) ListRecent(ctx context.Context, deviceID string, limit int) ([]domain.CaptureEvent, error) {
	return nil, nil
}
func (f *fakeEvents) CountSince(ctx context.Context, deviceID string, since time.Time, outcome domain.CaptureOutcome) (int, error) {
	return 0, nil
}

type testRig struct {
	engine   *Engine
	source   *fakeSource
	detector *fakeDetector
	client   *fakeClient
	sessions *fakeSessions
	notifier *recordingNotifier
	spool    *fakeSpool
	events   *fakeEvents
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func oneFace() []detector.Face {
	return []detector.Face{{Confidence: 0.95}}
}

func newTestRig(t *testing.T, settings Settings) *testRig {
	t.Helper()

	rig := &testRig{
		source: &fakeSource{frame: &camera.Frame{
			Data:       []byte("jpeg-bytes"),
			CapturedAt: time.Now().UTC(),
		}},
		detector: &fakeDetector{faces: oneFace()},
		client: &fakeClient{result: &domain.AttendanceResult{
			Status:     domain.StatusCheckedIn,
			Employee:   "Maria Souza",
			Confidence: 0.97,
		}},
		sessions: &fakeSessions{session: &domain.Session{Token: "tkn_1", Name: "Maria Souza"}},
		notifier: &recordingNotifier{},
		spool:    &fakeSpool{},
		events:   &fakeEvents{},
		clock:    &fakeClock{now: time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)},
	}

	settings.DeviceID = "kiosk-01"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rig.engine = NewEngine(
		rig.source,
		rig.detector,
		rig.client,
		rig.sessions,
		&fakeLocator{},
		rig.notifier,
		logger,
		settings,
		WithEventRepository(rig.events),
		WithSpoolRepository(rig.spool),
		WithClock(rig.clock.Now),
	)

	return rig
}

func TestEngine_DebounceBeforeSubmit(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 3})
	ctx := context.Background()

	// The first two face sightings only build the streak.
	rig.engine.Tick(ctx)
	assert.Equal(t, 0, rig.client.callCount())
	rig.engine.Tick(ctx)
	assert.Equal(t, 0, rig.client.callCount())

	rig.engine.Tick(ctx)
	assert.Equal(t, 1, rig.client.callCount())
}

func TestEngine_NoFaceResetsStreak(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 2})
	ctx := context.Background()

	rig.engine.Tick(ctx)
	require.Equal(t, 1, rig.engine.Status().Streak)

	rig.detector.faces = nil
	rig.engine.Tick(ctx)
	assert.Equal(t, 0, rig.engine.Status().Streak)

	// Back to one sighting: the debounce starts over.
	rig.detector.faces = oneFace()
	rig.engine.Tick(ctx)
	assert.Equal(t, 0, rig.client.callCount())
}

func TestEngine_SuccessCooldownGatesSampling(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1, SuccessCooldown: 60 * time.Second})
	ctx := context.Background()

	rig.engine.Tick(ctx)
	require.Equal(t, 1, rig.client.callCount())

	// Within the cooldown nothing runs, not even a grab.
	grabs := rig.source.grabs
	rig.clock.Advance(30 * time.Second)
	rig.engine.Tick(ctx)
	assert.Equal(t, 1, rig.client.callCount())
	assert.Equal(t, grabs, rig.source.grabs)

	rig.clock.Advance(31 * time.Second)
	rig.engine.Tick(ctx)
	assert.Equal(t, 2, rig.client.callCount())
}

func TestEngine_RejectionUsesShorterCooldown(t *testing.T) {
	rig := newTestRig(t, Settings{
		RequiredStreak:    1,
		SuccessCooldown:   60 * time.Second,
		RejectionCooldown: 10 * time.Second,
	})
	ctx := context.Background()

	rig.client.err = domain.ErrFaceNotRecognized
	rig.engine.Tick(ctx)
	require.Equal(t, 1, rig.client.callCount())

	status := rig.engine.Status()
	assert.Equal(t, domain.OutcomeRejected, status.LastOutcome)
	assert.Equal(t, 10*time.Second, status.CooldownLeft)

	note, ok := rig.notifier.last()
	require.True(t, ok)
	assert.Equal(t, feedback.SeverityWarning, note.Severity)
	assert.Equal(t, "Face not recognized", note.Message)

	rig.clock.Advance(11 * time.Second)
	rig.engine.Tick(ctx)
	assert.Equal(t, 2, rig.client.callCount())
}

func TestEngine_SessionExpiredClearsSession(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1, RetryCooldown: 5 * time.Second})
	ctx := context.Background()

	rig.client.err = domain.ErrSessionExpired
	rig.engine.Tick(ctx)

	assert.True(t, rig.sessions.cleared)
	assert.Equal(t, domain.OutcomeFailed, rig.engine.Status().LastOutcome)
	assert.Empty(t, rig.spool.enqueued)

	note, ok := rig.notifier.last()
	require.True(t, ok)
	assert.Equal(t, feedback.SeverityError, note.Severity)
	assert.Equal(t, "Signed out", note.Title)

	// The next window finds no session and stays idle.
	rig.clock.Advance(6 * time.Second)
	rig.engine.Tick(ctx)
	assert.Equal(t, 1, rig.client.callCount())
}

func TestEngine_TransportFailureSpools(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1, RetryCooldown: 5 * time.Second})
	ctx := context.Background()

	rig.client.err = domain.ErrBackendUnavailable
	rig.engine.Tick(ctx)

	require.Len(t, rig.spool.enqueued, 1)
	sub := rig.spool.enqueued[0]
	assert.Equal(t, "kiosk-01", sub.DeviceID)
	assert.Equal(t, []byte("jpeg-bytes"), sub.Frame)
	assert.Equal(t, domain.SpoolPending, sub.Status)
	require.NotNil(t, sub.NextRetryAt)

	assert.Equal(t, domain.OutcomeSpooled, rig.engine.Status().LastOutcome)
}

func TestEngine_SpoolInsertFailureIsFailedOutcome(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1})
	ctx := context.Background()

	rig.client.err = domain.ErrBackendUnavailable
	rig.spool.err = errors.New("database is down")
	rig.engine.Tick(ctx)

	assert.Empty(t, rig.spool.enqueued)
	assert.Equal(t, domain.OutcomeFailed, rig.engine.Status().LastOutcome)
}

func TestEngine_SubmissionSlotIsExclusive(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1})

	require.True(t, rig.engine.TryAcquire())
	assert.False(t, rig.engine.TryAcquire())
	assert.True(t, rig.engine.Status().InFlight)

	// The loop yields while the slot is held elsewhere.
	rig.engine.Tick(context.Background())
	assert.Equal(t, 0, rig.client.callCount())

	rig.engine.Release()
	rig.engine.Tick(context.Background())
	assert.Equal(t, 1, rig.client.callCount())
}

func TestEngine_RunsWithoutStorage(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1, RetryCooldown: 5 * time.Second})
	rig.engine.events = nil
	rig.engine.spool = nil
	ctx := context.Background()

	// An unreachable backend with no spool is a plain failed cycle.
	rig.client.err = domain.ErrBackendUnavailable
	rig.engine.Tick(ctx)
	assert.Equal(t, domain.OutcomeFailed, rig.engine.Status().LastOutcome)

	// The loop keeps capturing; only the persistence is gone.
	rig.client.err = nil
	rig.clock.Advance(6 * time.Second)
	rig.engine.Tick(ctx)
	assert.Equal(t, 2, rig.client.callCount())
	assert.Equal(t, domain.OutcomeAccepted, rig.engine.Status().LastOutcome)
}

func TestEngine_GrabFailureResetsStreakWithoutCooldown(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 2})
	ctx := context.Background()

	rig.engine.Tick(ctx)
	require.Equal(t, 1, rig.engine.Status().Streak)

	rig.source.err = errors.New("device busy")
	rig.engine.Tick(ctx)
	assert.Equal(t, 0, rig.engine.Status().Streak)

	// The loop keeps sampling without any gate.
	rig.source.err = nil
	rig.engine.Tick(ctx)
	assert.Equal(t, 1, rig.engine.Status().Streak)
}

func TestEngine_NilFrameIsSilent(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1})
	ctx := context.Background()

	rig.source.frame = nil
	rig.engine.Tick(ctx)

	assert.Equal(t, 0, rig.client.callCount())
	_, notified := rig.notifier.last()
	assert.False(t, notified)
}

func TestEngine_NotSignedInNotifiesOncePerWindow(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1, RetryCooldown: 5 * time.Second})
	ctx := context.Background()

	rig.sessions.session = nil
	rig.sessions.loadErr = auth.ErrNoSession

	rig.engine.Tick(ctx)
	rig.engine.Tick(ctx)

	rig.notifier.mu.Lock()
	count := len(rig.notifier.notifications)
	rig.notifier.mu.Unlock()
	assert.Equal(t, 1, count)

	rig.clock.Advance(6 * time.Second)
	rig.engine.Tick(ctx)

	rig.notifier.mu.Lock()
	count = len(rig.notifier.notifications)
	rig.notifier.mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestEngine_SubmitAttachesPosition(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1})
	rig.engine.locator = &fakeLocator{pos: &domain.Position{Latitude: -23.5, Longitude: -46.6, Accuracy: 10}}

	rig.engine.Tick(context.Background())
	require.Equal(t, 1, rig.client.callCount())
	require.NotNil(t, rig.client.lastPos)
	assert.InDelta(t, -23.5, rig.client.lastPos.Latitude, 0.001)
}

func TestEngine_LocatorFailureStillSubmits(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1})
	rig.engine.locator = &fakeLocator{err: errors.New("gps timeout")}

	rig.engine.Tick(context.Background())
	require.Equal(t, 1, rig.client.callCount())
	assert.Nil(t, rig.client.lastPos)
}

func TestEngine_TriggerNow(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 3, SuccessCooldown: 60 * time.Second})
	ctx := context.Background()

	// Manual trigger ignores debounce.
	result, err := rig.engine.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCheckedIn, result.Status)

	// And ignores the cooldown the first trigger installed.
	result, err = rig.engine.TriggerNow(ctx)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, 2, rig.client.callCount())
}

func TestEngine_TriggerNowNotSignedIn(t *testing.T) {
	rig := newTestRig(t, Settings{})
	rig.sessions.session = nil
	rig.sessions.loadErr = auth.ErrNoSession

	_, err := rig.engine.TriggerNow(context.Background())
	assert.True(t, errors.Is(err, domain.ErrNotSignedIn))
}

func TestEngine_TriggerNowNoFrame(t *testing.T) {
	rig := newTestRig(t, Settings{})
	rig.source.frame = nil

	_, err := rig.engine.TriggerNow(context.Background())
	assert.True(t, errors.Is(err, domain.ErrNoFrame))
}

func TestEngine_InFlightGuard(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1})
	ctx := context.Background()

	block := make(chan struct{})
	rig.client.block = block

	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		close(started)
		rig.engine.Tick(ctx)
		close(finished)
	}()
	<-started

	// Wait until the first submission is actually in flight.
	require.Eventually(t, func() bool {
		return rig.engine.Status().InFlight
	}, time.Second, 5*time.Millisecond)

	_, err := rig.engine.TriggerNow(ctx)
	assert.True(t, errors.Is(err, domain.ErrCaptureBusy))

	close(block)
	<-finished
	assert.Equal(t, 1, rig.client.callCount())
}

func TestEngine_RecordsEvents(t *testing.T) {
	rig := newTestRig(t, Settings{RequiredStreak: 1})
	rig.engine.Tick(context.Background())

	rig.events.mu.Lock()
	defer rig.events.mu.Unlock()
	require.Len(t, rig.events.events, 1)
	event := rig.events.events[0]
	assert.Equal(t, "kiosk-01", event.DeviceID)
	assert.Equal(t, domain.OutcomeAccepted, event.Outcome)
	assert.Equal(t, "Maria Souza", event.Employee)
	assert.False(t, event.Manual)
}

func TestEngine_AcceptedSpeech(t *testing.T) {
	tests := []struct {
		name   string
		status domain.AttendanceStatus
		want   string
	}{
		{"check in", domain.StatusCheckedIn, "Welcome, Maria Souza."},
		{"check out", domain.StatusCheckedOut, "Goodbye, Maria Souza."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, Settings{RequiredStreak: 1})
			rig.client.result.Status = tt.status

			rig.engine.Tick(context.Background())

			note, ok := rig.notifier.last()
			require.True(t, ok)
			assert.Equal(t, feedback.SeveritySuccess, note.Severity)
			assert.Equal(t, tt.want, note.Speech)
		})
	}
}

func TestEngine_RunStops(t *testing.T) {
	rig := newTestRig(t, Settings{SampleInterval: 10 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		rig.engine.Run(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	rig.engine.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
}
