package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Config holds the configuration for the attendance backend client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8080",
		Timeout:    30 * time.Second,
		RetryCount: 2,
	}
}

// Client is the HTTP client for the attendance backend
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a new backend client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// Login exchanges credentials for a session blob.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	body, err := json.Marshal(LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	var resp LoginResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", "", bytes.NewReader(body), "application/json", &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, domain.ErrLoginFailed
	}
	if status >= 400 {
		return nil, fmt.Errorf("%w: login returned status %d", domain.ErrBackendUnavailable, status)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: login response without token", domain.ErrBackendUnavailable)
	}

	return &domain.Session{
		Token:    resp.Token,
		Name:     resp.Name,
		Role:     resp.Role,
		Location: resp.Location,
		IssuedAt: time.Now().UTC(),
	}, nil
}

// SubmitAttendance uploads one frame (plus optional position) for matching.
// Transport failures and 5xx are retried with exponential backoff; the
// multipart body is rebuilt per attempt.
func (c *Client) SubmitAttendance(ctx context.Context, token string, frame []byte, pos *domain.Position) (*domain.AttendanceResult, error) {
	if len(frame) == 0 {
		return nil, domain.ErrInvalidImage
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		result, retryable, err := c.submitOnce(ctx, token, frame, pos)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, domain.ErrBackendUnavailable.WithError(lastErr)
}

func (c *Client) submitOnce(ctx context.Context, token string, frame []byte, pos *domain.Position) (*domain.AttendanceResult, bool, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("photo", "capture.jpg")
	if err != nil {
		return nil, false, fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return nil, false, fmt.Errorf("write photo part: %w", err)
	}

	if pos != nil {
		fields := map[string]float64{
			"latitude":  pos.Latitude,
			"longitude": pos.Longitude,
			"accuracy":  pos.Accuracy,
		}
		for name, value := range fields {
			if err := writer.WriteField(name, strconv.FormatFloat(value, 'f', -1, 64)); err != nil {
				return nil, false, fmt.Errorf("write %s field: %w", name, err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, false, fmt.Errorf("close multipart writer: %w", err)
	}

	var resp AttendanceResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/attendance", token, &buf, writer.FormDataContentType(), &resp)
	if err != nil {
		return nil, true, err
	}

	switch {
	case status == http.StatusUnauthorized:
		return nil, false, domain.ErrSessionExpired
	case status >= 500:
		return nil, true, fmt.Errorf("backend returned status %d: %s", status, resp.Message)
	case status >= 400:
		return nil, false, mapRejection(resp.Message)
	}

	return toResult(&resp), false, nil
}

// RegisterDevice announces the device (and its push token) to the backend.
func (c *Client) RegisterDevice(ctx context.Context, token, deviceID, pushToken, location string) error {
	body, err := json.Marshal(RegisterDeviceRequest{
		DeviceID:  deviceID,
		PushToken: pushToken,
		Location:  location,
	})
	if err != nil {
		return fmt.Errorf("marshal device registration: %w", err)
	}

	status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/devices", token, bytes.NewReader(body), "application/json", nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return domain.ErrSessionExpired
	}
	if status >= 400 {
		return fmt.Errorf("%w: device registration returned status %d", domain.ErrBackendUnavailable, status)
	}
	return nil
}

// doJSON executes one request and decodes a JSON body when result is non-nil.
// HTTP status handling is left to the caller; only transport and decode
// failures are errors here.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body io.Reader, contentType string, result interface{}) (int, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			if resp.StatusCode < 400 {
				return resp.StatusCode, fmt.Errorf("decode response: %w", err)
			}
			// Error bodies are sometimes plain text; keep the status and
			// surface the raw text through the message field.
			setMessage(result, strings.TrimSpace(string(respBody)))
		}
	}

	return resp.StatusCode, nil
}

func setMessage(result interface{}, msg string) {
	switch r := result.(type) {
	case *AttendanceResponse:
		r.Message = msg
	case *ErrorResponse:
		r.Message = msg
	}
}

// mapRejection turns the backend's known rejection messages into typed errors.
func mapRejection(message string) error {
	switch {
	case strings.EqualFold(message, "No face detected"):
		return domain.ErrNoFaceDetected
	case strings.EqualFold(message, "Face not recognized"):
		return domain.ErrFaceNotRecognized
	case message == "":
		return domain.ErrBadRequest
	default:
		return domain.ErrBadRequest.WithError(fmt.Errorf("%s", message))
	}
}

func toResult(resp *AttendanceResponse) *domain.AttendanceResult {
	result := &domain.AttendanceResult{
		Status:     domain.AttendanceStatus(resp.Status),
		Message:    resp.Message,
		Employee:   resp.Employee,
		Confidence: resp.Confidence,
	}
	if t, err := time.Parse(time.RFC3339, resp.CheckIn); err == nil {
		result.CheckIn = &t
	}
	if t, err := time.Parse(time.RFC3339, resp.CheckOut); err == nil {
		result.CheckOut = &t
	}
	return result
}

// maxBackoff caps the retry backoff
const maxBackoff = 30 * time.Second

// backoff returns 1s, 2s, 4s, ... capped at maxBackoff
func backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	seconds := 1
	for i := 1; i < attempt && i < 6; i++ {
		seconds *= 2
	}
	d := time.Duration(seconds) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
