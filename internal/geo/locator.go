package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Locator resolves the device position attached to submissions. Position is
// best-effort; callers must treat a failure as "no position", never as a
// reason to drop the submission.
type Locator interface {
	Locate(ctx context.Context) (*domain.Position, error)
}

// NewLocator creates a Locator based on configuration.
func NewLocator(cfg *config.Config) (Locator, error) {
	switch cfg.GeoMode {
	case "disabled", "":
		return Disabled{}, nil
	case "static":
		return &Static{
			Position: domain.Position{
				Latitude:  cfg.GeoLatitude,
				Longitude: cfg.GeoLongitude,
				Accuracy:  cfg.GeoAccuracy,
			},
		}, nil
	case "http":
		if cfg.GeoURL == "" {
			return nil, fmt.Errorf("geo mode %q requires PONTO_GEO_URL", cfg.GeoMode)
		}
		return NewHTTP(cfg.GeoURL, cfg.GeoTimeout), nil
	default:
		return nil, fmt.Errorf("unknown geo mode: %s (supported: disabled, static, http)", cfg.GeoMode)
	}
}

// Disabled reports no position.
type Disabled struct{}

func (Disabled) Locate(ctx context.Context) (*domain.Position, error) {
	return nil, nil
}

// Static reports the position configured for a fixed kiosk.
type Static struct {
	Position domain.Position
}

func (s *Static) Locate(ctx context.Context) (*domain.Position, error) {
	pos := s.Position
	return &pos, nil
}

// HTTP polls a local position endpoint (a gpsd bridge or similar) that
// answers with {"latitude": .., "longitude": .., "accuracy": ..}.
type HTTP struct {
	url        string
	httpClient *http.Client
}

func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &HTTP{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (h *HTTP) Locate(ctx context.Context) (*domain.Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create position request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch position: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("position endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read position response: %w", err)
	}

	var pos domain.Position
	if err := json.Unmarshal(body, &pos); err != nil {
		return nil, fmt.Errorf("decode position response: %w", err)
	}

	return &pos, nil
}
