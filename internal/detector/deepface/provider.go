package deepface

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/ponto/internal/detector"
)

const (
	// minFaceArea is the minimum face area (in pixels²) worth reporting
	minFaceArea = 2500 // 50x50 pixels
	// maxFaceArea is used for confidence scaling
	maxFaceArea = 250000 // 500x500 pixels
)

// Provider implements detector.Detector using a DeepFace sidecar
type Provider struct {
	client *Client
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

var _ detector.Detector = (*Provider)(nil)

// Detect locates faces in the frame
func (p *Provider) Detect(ctx context.Context, image []byte) ([]detector.Face, error) {
	imageBase64 := base64.StdEncoding.EncodeToString(image)

	resp, err := p.client.ExtractFaces(ctx, imageBase64)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]detector.Face, 0, len(resp.Results))
	for _, result := range resp.Results {
		confidence := result.Confidence
		if confidence == 0 {
			// Older sidecars omit confidence; estimate from face area since
			// larger faces are more likely to be accurately detected.
			faceArea := float64(result.FacialArea.W * result.FacialArea.H)
			confidence = estimateConfidence(faceArea)
		}

		faces = append(faces, detector.Face{
			BoundingBox: detector.BoundingBox{
				X:      float64(result.FacialArea.X),
				Y:      float64(result.FacialArea.Y),
				Width:  float64(result.FacialArea.W),
				Height: float64(result.FacialArea.H),
			},
			Confidence: confidence,
		})
	}

	return faces, nil
}

// estimateConfidence scales 0.7..0.99 with face area
func estimateConfidence(faceArea float64) float64 {
	if faceArea < minFaceArea {
		return 0.5
	}
	normalized := math.Min(1.0, (faceArea-minFaceArea)/(maxFaceArea-minFaceArea))
	return 0.7 + (normalized * 0.29)
}
