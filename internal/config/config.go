package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Agent identity
	Environment string `envconfig:"ENV" default:"development"`
	DeviceID    string `envconfig:"DEVICE_ID" required:"true"`
	Location    string `envconfig:"LOCATION" default:""`

	// Control API
	ControlPort int `envconfig:"CONTROL_PORT" default:"7600"`

	// Attendance backend
	BackendURL     string        `envconfig:"BACKEND_URL" required:"true"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s"`
	PushToken      string        `envconfig:"PUSH_TOKEN" default:""`

	// Capture loop
	SampleInterval    time.Duration `envconfig:"SAMPLE_INTERVAL" default:"2s"`
	RequiredStreak    int           `envconfig:"REQUIRED_STREAK" default:"2"`
	SuccessCooldown   time.Duration `envconfig:"SUCCESS_COOLDOWN" default:"60s"`
	RejectionCooldown time.Duration `envconfig:"REJECTION_COOLDOWN" default:"10s"`
	RetryCooldown     time.Duration `envconfig:"RETRY_COOLDOWN" default:"5s"`

	// Face detector
	Detector    string `envconfig:"DETECTOR" default:"deepface"`
	DeepFaceURL string `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	AWSRegion   string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Camera
	CameraSource   string        `envconfig:"CAMERA_SOURCE" default:"command"`
	CaptureCommand string        `envconfig:"CAPTURE_COMMAND" default:"fswebcam --no-banner -r 1280x720 --jpeg 90"`
	CaptureTimeout time.Duration `envconfig:"CAPTURE_TIMEOUT" default:"5s"`
	FrameDir       string        `envconfig:"FRAME_DIR" default:""`

	// Geolocation
	GeoMode      string        `envconfig:"GEO_MODE" default:"disabled"`
	GeoLatitude  float64       `envconfig:"GEO_LATITUDE" default:"0"`
	GeoLongitude float64       `envconfig:"GEO_LONGITUDE" default:"0"`
	GeoAccuracy  float64       `envconfig:"GEO_ACCURACY" default:"0"`
	GeoURL       string        `envconfig:"GEO_URL" default:""`
	GeoTimeout   time.Duration `envconfig:"GEO_TIMEOUT" default:"2s"`

	// Feedback
	ToastTTL      time.Duration `envconfig:"TOAST_TTL" default:"4s"`
	SpeechCommand string        `envconfig:"SPEECH_COMMAND" default:""`

	// Local storage
	SessionFile string `envconfig:"SESSION_FILE" default:"/var/lib/ponto/session.json"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// Spool
	SpoolInterval    time.Duration `envconfig:"SPOOL_INTERVAL" default:"30s"`
	SpoolMaxAttempts int           `envconfig:"SPOOL_MAX_ATTEMPTS" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("PONTO", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// EventsEnabled reports whether local event persistence is configured.
func (c *Config) EventsEnabled() bool {
	return c.DatabaseURL != ""
}
