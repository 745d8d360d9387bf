// Package config provides configuration helpers for go-wayfinder commands.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Default service configuration.
const (
	DefaultPort        = "8090"
	DefaultAPIURL      = "http://192.168.0.105:3001"
	DefaultDetectURL   = "http://192.168.0.105:8010"
	DefaultStorePath   = "data/wayfinder.db"
	DefaultYOLOModel   = "models/yolov8n.onnx"
	DefaultCountry     = "ke"
	DefaultLanguage    = "en"
	DefaultDetectEvery = 500 * time.Millisecond
	DefaultStepEvery   = 15 * time.Second
)

// Config is the full runtime configuration of the service.
type Config struct {
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=debug info warn error"`
	LogFile  string

	// Collaborators
	APIURL    string `validate:"required,url"`
	DetectURL string `validate:"required,url"`

	// Detection
	DetectMode     string        `validate:"oneof=remote local"`
	DetectInterval time.Duration `validate:"min=500ms,max=700ms"`
	YOLOModel      string
	GuidanceFlavor string `validate:"oneof=area height"`

	// Camera: snapshot, webcam or webrtc
	CameraMode   string `validate:"oneof=snapshot webcam webrtc"`
	CameraURL    string
	CameraDevice int `validate:"min=0"`

	// Navigation
	StepInterval   time.Duration `validate:"min=1s"`
	AdvanceMode    string        `validate:"oneof=timer proximity"`
	ArrivalRadiusM float64       `validate:"gt=0"`

	// Google APIs
	MapsAPIKey     string
	TTSAPIKey      string
	TTSVoice       string
	TTSRate        float64 `validate:"omitempty,gte=0.25,lte=4"`
	PlacesCountry  string
	SpeechLanguage string

	// Local state
	StorePath string `validate:"required"`

	Debug bool
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	cfg := &Config{
		Port:           Env("WAYFINDER_PORT", DefaultPort),
		LogLevel:       Env("LOG_LEVEL", "info"),
		LogFile:        os.Getenv("LOG_FILE"),
		APIURL:         NormalizeURL(os.Getenv("API_URL"), DefaultAPIURL),
		DetectURL:      NormalizeURL(os.Getenv("DETECT_URL"), DefaultDetectURL),
		DetectMode:     Env("DETECT_MODE", "remote"),
		DetectInterval: EnvDuration("DETECT_INTERVAL", DefaultDetectEvery),
		YOLOModel:      Env("YOLO_MODEL", DefaultYOLOModel),
		GuidanceFlavor: Env("GUIDANCE_FLAVOR", "area"),
		CameraMode:     Env("CAMERA_MODE", "snapshot"),
		CameraURL:      os.Getenv("CAMERA_URL"),
		CameraDevice:   EnvInt("CAMERA_DEVICE", 0),
		StepInterval:   EnvDuration("NAV_STEP_INTERVAL", DefaultStepEvery),
		AdvanceMode:    Env("NAV_ADVANCE", "timer"),
		ArrivalRadiusM: EnvFloat("NAV_ARRIVAL_RADIUS_M", 20),
		MapsAPIKey:     os.Getenv("GOOGLE_MAPS_API_KEY"),
		TTSAPIKey:      os.Getenv("GOOGLE_TTS_API_KEY"),
		TTSVoice:       os.Getenv("GOOGLE_TTS_VOICE"),
		TTSRate:        EnvFloat("TTS_RATE", 1.0),
		PlacesCountry:  Env("PLACES_COUNTRY", DefaultCountry),
		SpeechLanguage: Env("SPEECH_LANGUAGE", DefaultLanguage),
		StorePath:      Env("STORE_PATH", DefaultStorePath),
	}

	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.CameraMode == "snapshot" && c.CameraURL == "" {
		return fmt.Errorf("invalid config: CAMERA_URL is required in snapshot mode")
	}
	return nil
}

// NormalizeURL trims input, adds an http scheme when missing and drops
// trailing slashes. Empty or unparseable input yields the fallback.
func NormalizeURL(input, fallback string) string {
	v := strings.TrimSpace(input)
	if v == "" {
		return strings.TrimRight(fallback, "/")
	}

	lower := strings.ToLower(v)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		v = "http://" + v
	}

	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return strings.TrimRight(fallback, "/")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return strings.TrimRight(u.String(), "/")
}

// Env returns the env var value or def when unset.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt parses an integer env var, falling back to def.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// EnvFloat parses a float env var, falling back to def.
func EnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// EnvDuration parses a duration env var ("500ms", "15s"), falling back to def.
func EnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
