package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// StatusData mirrors the GET /v1/status payload
type StatusData struct {
	DeviceID     string `json:"device_id" example:"kiosk-entrance-1"`
	SignedIn     bool   `json:"signed_in" example:"true"`
	Operator     string `json:"operator" example:"Maria Souza"`
	SpoolPending int    `json:"spool_pending" example:"0"`
}

// EventData mirrors one entry of GET /v1/events
type EventData struct {
	ID         string  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Outcome    string  `json:"outcome" example:"accepted"`
	Employee   string  `json:"employee" example:"Maria Souza"`
	Confidence float64 `json:"confidence" example:"0.97"`
	OccurredAt string  `json:"occurred_at" example:"2024-01-01T08:00:00Z"`
}

// TriggerData mirrors the POST /v1/captures payload
type TriggerData struct {
	Status     string  `json:"status" example:"checked_in"`
	Message    string  `json:"message" example:"Welcome"`
	Employee   string  `json:"employee" example:"Maria Souza"`
	Confidence float64 `json:"confidence" example:"0.97"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"CAPTURE_BUSY"`
	Message string `json:"message" example:"A capture is already in flight"`
}

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Ponto Agent Control API",
		Version:     "v0.1.0",
		Description: "Local control surface for the ponto attendance capture agent",
		Host:        "localhost:7600",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// GET /v1/status - Agent status
		endpoint.New(
			endpoint.GET,
			"/status",
			endpoint.WithTags("Agent"),
			endpoint.WithSummary("Agent status snapshot"),
			endpoint.WithDescription("Returns the capture loop state, active notifications, session presence and spool backlog"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StatusData{}, "200", "Current agent status"),
			}),
		),

		// GET /v1/events - Recent capture events
		endpoint.New(
			endpoint.GET,
			"/events",
			endpoint.WithTags("Agent"),
			endpoint.WithSummary("Recent capture events"),
			endpoint.WithDescription("Returns the newest capture events recorded by this device, newest first"),
			endpoint.WithParams(
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Maximum number of events (default: 20, max: 100)")),
			),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]EventData{}, "200", "Recent events"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "EVENTS_DISABLED", Message: "Event persistence is not configured"}, "503", "Service Unavailable"),
			}),
		),

		// POST /v1/captures - Manual capture
		endpoint.New(
			endpoint.POST,
			"/captures",
			endpoint.WithTags("Agent"),
			endpoint.WithSummary("Trigger a capture now"),
			endpoint.WithDescription("Grabs a frame and submits it immediately, bypassing debounce and cooldown. Fails while another capture is in flight."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(TriggerData{}, "200", "Submission result"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "CAPTURE_BUSY", Message: "A capture is already in flight"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "NOT_SIGNED_IN", Message: "No stored session, sign in first"}, "401", "Unauthorized"),
				response.New(ErrorResponse{Code: "NO_FRAME", Message: "Camera produced no frame"}, "503", "Service Unavailable"),
			}),
		),

		// POST /v1/session/logout - Clear session
		endpoint.New(
			endpoint.POST,
			"/session/logout",
			endpoint.WithTags("Session"),
			endpoint.WithSummary("Clear the stored session"),
			endpoint.WithDescription("Removes the persisted auth blob; the capture loop idles until the next sign-in"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(struct{}{}, "204", "Session cleared"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
