package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is the locally persisted auth blob attached to backend requests.
type Session struct {
	Token    string    `json:"token"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	Location string    `json:"location"`
	IssuedAt time.Time `json:"issued_at"`
}

// Valid reports whether the session carries a usable token.
func (s *Session) Valid() bool {
	return s != nil && s.Token != ""
}

// Position is an optional device geolocation attached to a submission.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// AttendanceStatus classifies the backend's answer to a submission.
type AttendanceStatus string

const (
	StatusCheckedIn     AttendanceStatus = "checked_in"
	StatusCheckedOut    AttendanceStatus = "checked_out"
	StatusNoFace        AttendanceStatus = "no_face"
	StatusNotRecognized AttendanceStatus = "not_recognized"
	StatusError         AttendanceStatus = "error"
)

// AttendanceResult is the backend's answer to one submitted frame.
type AttendanceResult struct {
	Status     AttendanceStatus `json:"status"`
	Message    string           `json:"message"`
	Employee   string           `json:"employee"`
	Confidence float64          `json:"confidence"`
	CheckIn    *time.Time       `json:"check_in,omitempty"`
	CheckOut   *time.Time       `json:"check_out,omitempty"`
}

// Accepted reports whether the submission was recorded as attendance.
func (r *AttendanceResult) Accepted() bool {
	return r.Status == StatusCheckedIn || r.Status == StatusCheckedOut
}

// CaptureOutcome classifies one completed capture cycle for the event log.
type CaptureOutcome string

const (
	OutcomeAccepted CaptureOutcome = "accepted"
	OutcomeRejected CaptureOutcome = "rejected"
	OutcomeFailed   CaptureOutcome = "failed"
	OutcomeSpooled  CaptureOutcome = "spooled"
)

// CaptureEvent is the persisted record of one capture cycle.
type CaptureEvent struct {
	ID         uuid.UUID      `json:"id"`
	DeviceID   string         `json:"device_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Outcome    CaptureOutcome `json:"outcome"`
	Message    string         `json:"message"`
	Employee   string         `json:"employee,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	LatencyMs  int64          `json:"latency_ms"`
	Manual     bool           `json:"manual"`
}

// PendingSubmission is a frame whose delivery failed and waits in the spool.
type PendingSubmission struct {
	ID          uuid.UUID  `json:"id"`
	DeviceID    string     `json:"device_id"`
	Frame       []byte     `json:"-"`
	Position    *Position  `json:"position,omitempty"`
	CapturedAt  time.Time  `json:"captured_at"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	Status      string     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
}

// Spool statuses.
const (
	SpoolPending   = "pending"
	SpoolDelivered = "delivered"
	SpoolExhausted = "exhausted"
)
