package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
)

// Frame is one captured image.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
	Source     string
}

// Source produces frames for the capture loop. Grab returns (nil, nil) when
// no new frame is available; that is not an error.
type Source interface {
	Grab(ctx context.Context) (*Frame, error)
}

// NewSource creates a Source based on configuration.
func NewSource(cfg *config.Config) (Source, error) {
	switch cfg.CameraSource {
	case "command", "":
		return NewCommandSource(cfg.CaptureCommand, cfg.CaptureTimeout), nil
	case "dir":
		if cfg.FrameDir == "" {
			return nil, fmt.Errorf("camera source %q requires PONTO_FRAME_DIR", cfg.CameraSource)
		}
		return NewDirSource(cfg.FrameDir), nil
	default:
		return nil, fmt.Errorf("unknown camera source: %s (supported: command, dir)", cfg.CameraSource)
	}
}
