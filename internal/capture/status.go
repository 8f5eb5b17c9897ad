package capture

import (
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Status is a point-in-time snapshot of the capture loop for operators.
type Status struct {
	InFlight      bool                  `json:"in_flight"`
	FaceDetected  bool                  `json:"face_detected"`
	Streak        int                   `json:"streak"`
	NextAllowedAt time.Time             `json:"next_allowed_at"`
	CooldownLeft  time.Duration         `json:"cooldown_left"`
	LastSampleAt  time.Time             `json:"last_sample_at"`
	LastSubmitAt  time.Time             `json:"last_submit_at"`
	LastOutcome   domain.CaptureOutcome `json:"last_outcome,omitempty"`
	LastMessage   string                `json:"last_message,omitempty"`
}

// Status returns the current loop state.
func (e *Engine) Status() Status {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	cooldown := time.Duration(0)
	if e.nextAllowedAt.After(now) {
		cooldown = e.nextAllowedAt.Sub(now)
	}

	return Status{
		InFlight:      e.inFlight,
		FaceDetected:  e.faceDetected,
		Streak:        e.streak,
		NextAllowedAt: e.nextAllowedAt,
		CooldownLeft:  cooldown,
		LastSampleAt:  e.lastSampleAt,
		LastSubmitAt:  e.lastSubmitAt,
		LastOutcome:   e.lastOutcome,
		LastMessage:   e.lastMessage,
	}
}
