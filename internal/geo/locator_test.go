package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

func TestDisabled(t *testing.T) {
	pos, err := Disabled{}.Locate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestStatic(t *testing.T) {
	locator := &Static{Position: domain.Position{Latitude: -23.5, Longitude: -46.6, Accuracy: 15}}

	pos, err := locator.Locate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, -23.5, pos.Latitude, 0.001)
	assert.InDelta(t, -46.6, pos.Longitude, 0.001)
	assert.InDelta(t, 15.0, pos.Accuracy, 0.001)

	// Callers get a copy, not the shared struct.
	pos.Latitude = 0
	again, err := locator.Locate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -23.5, again.Latitude, 0.001)
}

func TestHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"latitude": -23.5505, "longitude": -46.6333, "accuracy": 8.2}`))
	}))
	defer server.Close()

	pos, err := NewHTTP(server.URL, 0).Locate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, -23.5505, pos.Latitude, 0.0001)
	assert.InDelta(t, -46.6333, pos.Longitude, 0.0001)
	assert.InDelta(t, 8.2, pos.Accuracy, 0.001)
}

func TestHTTP_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTP(server.URL, 0).Locate(context.Background())
	assert.Error(t, err)
}

func TestHTTP_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewHTTP(server.URL, 0).Locate(context.Background())
	assert.Error(t, err)
}

func TestNewLocator(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr bool
	}{
		{"disabled", &config.Config{GeoMode: "disabled"}, false},
		{"default", &config.Config{}, false},
		{"static", &config.Config{GeoMode: "static", GeoLatitude: -23.5}, false},
		{"http", &config.Config{GeoMode: "http", GeoURL: "http://localhost:2947/position"}, false},
		{"http without url", &config.Config{GeoMode: "http"}, true},
		{"unknown", &config.Config{GeoMode: "gps"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locator, err := NewLocator(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, locator)
			}
		})
	}
}
