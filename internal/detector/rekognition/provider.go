package rekognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"github.com/saturnino-fabrica-de-software/ponto/internal/detector"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100

	errCodeAccessDenied     = "AccessDeniedException"
	errCodeInvalidImage     = "InvalidImageFormatException"
	errCodeImageTooLarge    = "ImageTooLargeException"
	errCodeThrottling       = "ThrottlingException"
	errCodeProvisionedLimit = "ProvisionedThroughputExceededException"
)

var (
	ErrInvalidImage = errors.New("invalid image for rekognition")
	ErrAccessDenied = errors.New("rekognition access denied")
	ErrThrottled    = errors.New("rekognition request throttled")
	ErrDetectFailed = errors.New("rekognition detect faces failed")
)

// Config holds configuration for the AWS Rekognition detector
type Config struct {
	// Region is the AWS region where Rekognition will be called (e.g. "us-east-1")
	Region string

	// MinConfidence filters out detections below this percentage (0 keeps the
	// Rekognition default)
	MinConfidence float32
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region: "us-east-1",
	}
}

// Provider implements detector.Detector using AWS Rekognition DetectFaces.
// Only presence matters here; indexing and matching stay on the backend.
type Provider struct {
	client *rekognition.Client
	config Config
}

var _ detector.Detector = (*Provider)(nil)

// NewProvider creates a Rekognition detector using the AWS default
// credential chain
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Provider{
		client: rekognition.NewFromConfig(awsCfg),
		config: cfg,
	}, nil
}

// Detect runs DetectFaces on the frame
func (p *Provider) Detect(ctx context.Context, image []byte) ([]detector.Face, error) {
	if err := validateImage(image); err != nil {
		return nil, err
	}

	input := &rekognition.DetectFacesInput{
		Image: &types.Image{
			Bytes: image,
		},
		Attributes: []types.Attribute{types.AttributeDefault},
	}

	output, err := p.client.DetectFaces(ctx, input)
	if err != nil {
		return nil, mapAPIError(err)
	}

	faces := make([]detector.Face, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		confidence := float64(aws.ToFloat32(detail.Confidence)) / 100.0
		if p.config.MinConfidence > 0 && aws.ToFloat32(detail.Confidence) < p.config.MinConfidence {
			continue
		}

		face := detector.Face{Confidence: confidence}
		if box := detail.BoundingBox; box != nil {
			// Rekognition boxes are ratios of the frame dimensions.
			face.BoundingBox = detector.BoundingBox{
				X:      float64(aws.ToFloat32(box.Left)),
				Y:      float64(aws.ToFloat32(box.Top)),
				Width:  float64(aws.ToFloat32(box.Width)),
				Height: float64(aws.ToFloat32(box.Height)),
			}
		}
		faces = append(faces, face)
	}

	return faces, nil
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

func mapAPIError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeInvalidImage, errCodeImageTooLarge:
			return fmt.Errorf("%w: %s", ErrInvalidImage, apiErr.ErrorMessage())
		case errCodeAccessDenied:
			return fmt.Errorf("%w: %s", ErrAccessDenied, apiErr.ErrorMessage())
		case errCodeThrottling, errCodeProvisionedLimit:
			return fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
		}
	}
	return fmt.Errorf("%w: %v", ErrDetectFailed, err)
}
