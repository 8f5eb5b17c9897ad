package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/ponto/internal/capture"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/feedback"
)

const maxEventLimit = 100

// CaptureEngine is the engine surface the control API needs.
type CaptureEngine interface {
	Status() capture.Status
	TriggerNow(ctx context.Context) (*domain.AttendanceResult, error)
}

// EventLister reads the local capture event log.
type EventLister interface {
	ListRecent(ctx context.Context, deviceID string, limit int) ([]domain.CaptureEvent, error)
	CountSince(ctx context.Context, deviceID string, since time.Time, outcome domain.CaptureOutcome) (int, error)
}

// SpoolCounter reports the spool backlog.
type SpoolCounter interface {
	CountPending(ctx context.Context, deviceID string) (int, error)
}

// SessionStore is the auth surface the control API needs.
type SessionStore interface {
	Load() (*domain.Session, error)
	Clear() error
}

// AgentHandler serves the operator-facing control endpoints.
type AgentHandler struct {
	engine   CaptureEngine
	events   EventLister
	spool    SpoolCounter
	sessions SessionStore
	board    *feedback.Board
	deviceID string
	logger   *slog.Logger
}

func NewAgentHandler(
	engine CaptureEngine,
	events EventLister,
	spool SpoolCounter,
	sessions SessionStore,
	board *feedback.Board,
	deviceID string,
	logger *slog.Logger,
) *AgentHandler {
	return &AgentHandler{
		engine:   engine,
		events:   events,
		spool:    spool,
		sessions: sessions,
		board:    board,
		deviceID: deviceID,
		logger:   logger,
	}
}

// StatusResponse for GET /v1/status
type StatusResponse struct {
	DeviceID      string                  `json:"device_id"`
	SignedIn      bool                    `json:"signed_in"`
	Operator      string                  `json:"operator,omitempty"`
	Capture       capture.Status          `json:"capture"`
	Notifications []feedback.Notification `json:"notifications"`
	SpoolPending  int                     `json:"spool_pending"`
	AcceptedToday int                     `json:"accepted_today"`
}

// Status GET /v1/status - agent state snapshot
func (h *AgentHandler) Status(c *fiber.Ctx) error {
	resp := StatusResponse{
		DeviceID:      h.deviceID,
		Capture:       h.engine.Status(),
		Notifications: h.board.Active(),
	}

	if session, err := h.sessions.Load(); err == nil {
		resp.SignedIn = true
		resp.Operator = session.Name
	}

	if h.spool != nil {
		pending, err := h.spool.CountPending(c.Context(), h.deviceID)
		if err != nil {
			h.logger.Warn("failed to count spool backlog", "error", err)
		} else {
			resp.SpoolPending = pending
		}
	}

	if h.events != nil {
		midnight := time.Now().UTC().Truncate(24 * time.Hour)
		accepted, err := h.events.CountSince(c.Context(), h.deviceID, midnight, domain.OutcomeAccepted)
		if err != nil {
			h.logger.Warn("failed to count accepted captures", "error", err)
		} else {
			resp.AcceptedToday = accepted
		}
	}

	return c.JSON(resp)
}

// EventsResponse for GET /v1/events
type EventsResponse struct {
	Events []domain.CaptureEvent `json:"events"`
}

// Events GET /v1/events - recent capture events
func (h *AgentHandler) Events(c *fiber.Ctx) error {
	if h.events == nil {
		return domain.ErrEventsDisabled
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxEventLimit {
			return domain.ErrBadRequest.WithError(errors.New("limit must be between 1 and 100"))
		}
		limit = parsed
	}

	events, err := h.events.ListRecent(c.Context(), h.deviceID, limit)
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}
	if events == nil {
		events = []domain.CaptureEvent{}
	}

	return c.JSON(EventsResponse{Events: events})
}

// TriggerResponse for POST /v1/captures
type TriggerResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Employee   string  `json:"employee,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Trigger POST /v1/captures - manual capture, bypasses debounce and cooldown
func (h *AgentHandler) Trigger(c *fiber.Ctx) error {
	result, err := h.engine.TriggerNow(c.Context())
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return domain.ErrInternal.WithError(err)
	}

	return c.JSON(TriggerResponse{
		Status:     string(result.Status),
		Message:    result.Message,
		Employee:   result.Employee,
		Confidence: result.Confidence,
	})
}

// Logout POST /v1/session/logout - clear the stored session blob
func (h *AgentHandler) Logout(c *fiber.Ctx) error {
	if err := h.sessions.Clear(); err != nil {
		return domain.ErrInternal.WithError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
