package deepface

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) Config {
	return Config{
		BaseURL:    url,
		Timeout:    5 * time.Second,
		Detector:   "retinaface",
		RetryCount: 0,
	}
}

func TestProvider_Detect(t *testing.T) {
	image := []byte("jpeg-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/extract_faces", r.URL.Path)

		var req ExtractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, base64.StdEncoding.EncodeToString(image), req.Img)
		assert.Equal(t, "retinaface", req.Detector)

		_ = json.NewEncoder(w).Encode(ExtractResponse{
			Results: []ExtractResult{
				{
					Confidence: 0.98,
					FacialArea: FacialArea{X: 120, Y: 80, W: 200, H: 220},
				},
			},
		})
	}))
	defer server.Close()

	faces, err := NewProvider(testConfig(server.URL)).Detect(context.Background(), image)
	require.NoError(t, err)

	require.Len(t, faces, 1)
	assert.InDelta(t, 0.98, faces[0].Confidence, 0.001)
	assert.InDelta(t, 120.0, faces[0].BoundingBox.X, 0.001)
	assert.InDelta(t, 200.0, faces[0].BoundingBox.Width, 0.001)
}

func TestProvider_DetectNoFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ExtractResponse{})
	}))
	defer server.Close()

	faces, err := NewProvider(testConfig(server.URL)).Detect(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestProvider_DetectEstimatesMissingConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ExtractResponse{
			Results: []ExtractResult{
				{FacialArea: FacialArea{X: 0, Y: 0, W: 500, H: 500}},
			},
		})
	}))
	defer server.Close()

	faces, err := NewProvider(testConfig(server.URL)).Detect(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)

	require.Len(t, faces, 1)
	assert.InDelta(t, 0.99, faces[0].Confidence, 0.001)
}

func TestProvider_DetectSidecarDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewProvider(testConfig(server.URL)).Detect(context.Background(), []byte("jpeg-bytes"))
	assert.True(t, errors.Is(err, ErrDetectorUnavailable))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(ExtractResponse{})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RetryCount = 1

	_, err := NewClient(cfg).ExtractFaces(context.Background(), "aW1n")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RetryCount = 2

	_, err := NewClient(cfg).ExtractFaces(context.Background(), "not-base64!")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_InvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>proxy error</html>"))
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL)).ExtractFaces(context.Background(), "aW1n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDetectorUnavailable))
	assert.Contains(t, err.Error(), "invalid response")
}

func TestEstimateConfidence(t *testing.T) {
	tests := []struct {
		name string
		area float64
		want float64
	}{
		{"below minimum", 1000, 0.5},
		{"at minimum", minFaceArea, 0.7},
		{"at maximum", maxFaceArea, 0.99},
		{"above maximum", 1000000, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, estimateConfidence(tt.area), 0.001)
		})
	}
}
