package mock

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

func TestProvider_Detect(t *testing.T) {
	provider := New()

	faces, err := provider.Detect(context.Background(), bytes.Repeat([]byte("x"), 2000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	if faces[0].Confidence != 0.99 {
		t.Errorf("expected confidence 0.99, got %v", faces[0].Confidence)
	}
}

func TestProvider_DetectTinyFrame(t *testing.T) {
	provider := New()

	_, err := provider.Detect(context.Background(), []byte("tiny"))
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}
