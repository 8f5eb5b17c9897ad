package facecheck

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/detector"
	"github.com/saturnino-fabrica-de-software/ponto/internal/detector/deepface"
	"github.com/saturnino-fabrica-de-software/ponto/internal/detector/mock"
	"github.com/saturnino-fabrica-de-software/ponto/internal/detector/rekognition"
)

// DetectorType defines supported face detector types
type DetectorType string

const (
	// DetectorTypeDeepFace probes a local DeepFace sidecar (default, offline)
	DetectorTypeDeepFace DetectorType = "deepface"
	// DetectorTypeRekognition probes AWS Rekognition DetectFaces (cloud)
	DetectorTypeRekognition DetectorType = "rekognition"
	// DetectorTypeMock always reports one face; tests and dry runs
	DetectorTypeMock DetectorType = "mock"
)

// NewDetector creates a detector.Detector instance based on configuration.
//
// Environment variables:
//   - PONTO_DETECTOR: "deepface", "rekognition" or "mock" (default: "deepface")
//   - PONTO_DEEPFACE_URL: DeepFace sidecar URL (default: "http://localhost:5005")
//   - PONTO_AWS_REGION: AWS region for Rekognition (default: "us-east-1")
//   - AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY: via AWS SDK credential chain
func NewDetector(ctx context.Context, cfg *config.Config) (detector.Detector, error) {
	detectorType := DetectorType(cfg.Detector)

	switch detectorType {
	case DetectorTypeRekognition:
		return createRekognitionDetector(ctx, cfg)

	case DetectorTypeDeepFace, "":
		// Default to DeepFace so a kiosk works without cloud credentials
		return createDeepFaceDetector(cfg), nil

	case DetectorTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown detector type: %s (supported: %s, %s, %s)",
			cfg.Detector, DetectorTypeDeepFace, DetectorTypeRekognition, DetectorTypeMock)
	}
}

// createRekognitionDetector creates an AWS Rekognition detector instance
func createRekognitionDetector(ctx context.Context, cfg *config.Config) (detector.Detector, error) {
	rekogConfig := rekognition.Config{
		Region: cfg.AWSRegion,
	}

	det, err := rekognition.NewProvider(ctx, rekogConfig)
	if err != nil {
		return nil, fmt.Errorf("create rekognition detector: %w", err)
	}

	return det, nil
}

// createDeepFaceDetector creates a DeepFace detector instance
func createDeepFaceDetector(cfg *config.Config) detector.Detector {
	deepfaceConfig := deepface.Config{
		BaseURL: cfg.DeepFaceURL,
	}

	// Use defaults for other fields (timeout, detector backend, retry)
	if deepfaceConfig.BaseURL == "" {
		deepfaceConfig.BaseURL = deepface.DefaultConfig().BaseURL
	}
	if deepfaceConfig.Timeout == 0 {
		deepfaceConfig.Timeout = deepface.DefaultConfig().Timeout
	}
	if deepfaceConfig.Detector == "" {
		deepfaceConfig.Detector = deepface.DefaultConfig().Detector
	}

	return deepface.NewProvider(deepfaceConfig)
}
