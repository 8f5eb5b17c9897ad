package mock

import (
	"context"

	"github.com/saturnino-fabrica-de-software/ponto/internal/detector"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Provider implements detector.Detector for tests and development.
// Frames below minFrameSize are rejected as invalid; everything else
// contains exactly one centered face.
type Provider struct{}

const minFrameSize = 1000

// New creates a mock detector
func New() *Provider {
	return &Provider{}
}

var _ detector.Detector = (*Provider)(nil)

// Detect simulates face detection
func (p *Provider) Detect(ctx context.Context, image []byte) ([]detector.Face, error) {
	if len(image) < minFrameSize {
		return nil, domain.ErrInvalidImage
	}

	return []detector.Face{
		{
			BoundingBox: detector.BoundingBox{
				X:      0.1,
				Y:      0.1,
				Width:  0.8,
				Height: 0.8,
			},
			Confidence: 0.99,
		},
	}, nil
}
