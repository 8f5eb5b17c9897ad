package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so wrapped copies still compare equal to the
// predefined sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotSignedIn = &AppError{
		Code:       "NOT_SIGNED_IN",
		Message:    "No stored session, sign in first",
		StatusCode: 401,
	}

	ErrSessionExpired = &AppError{
		Code:       "SESSION_EXPIRED",
		Message:    "Session rejected by the backend, sign in again",
		StatusCode: 401,
	}

	ErrLoginFailed = &AppError{
		Code:       "LOGIN_FAILED",
		Message:    "Invalid username or password",
		StatusCode: 401,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrFaceNotRecognized = &AppError{
		Code:       "FACE_NOT_RECOGNIZED",
		Message:    "Face not recognized",
		StatusCode: 422,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrBackendUnavailable = &AppError{
		Code:       "BACKEND_UNAVAILABLE",
		Message:    "Attendance backend unreachable",
		StatusCode: 503,
	}

	ErrCaptureBusy = &AppError{
		Code:       "CAPTURE_BUSY",
		Message:    "A capture is already in flight",
		StatusCode: 409,
	}

	ErrNoFrame = &AppError{
		Code:       "NO_FRAME",
		Message:    "Camera produced no frame",
		StatusCode: 503,
	}

	ErrSpoolExhausted = &AppError{
		Code:       "SPOOL_EXHAUSTED",
		Message:    "Submission retries exhausted",
		StatusCode: 500,
	}

	ErrEventsDisabled = &AppError{
		Code:       "EVENTS_DISABLED",
		Message:    "Event persistence is not configured",
		StatusCode: 503,
	}
)
