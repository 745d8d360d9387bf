package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fallback string
		want     string
	}{
		{"empty uses fallback", "", "http://10.0.0.1:8010/", "http://10.0.0.1:8010"},
		{"adds scheme", "192.168.0.5:8010", "", "http://192.168.0.5:8010"},
		{"keeps https", "https://detect.example.com", "", "https://detect.example.com"},
		{"drops trailing slashes", "http://host:3001///", "", "http://host:3001"},
		{"trims path slashes", "http://host/api/", "", "http://host/api"},
		{"whitespace", "  host:1  ", "", "http://host:1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeURL(tc.input, tc.fallback))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DETECT_URL", "")
	t.Setenv("NAV_STEP_INTERVAL", "")
	t.Setenv("CAMERA_URL", "http://phone.local/shot.jpg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultDetectURL, cfg.DetectURL)
	assert.Equal(t, 15*time.Second, cfg.StepInterval)
	assert.Equal(t, "area", cfg.GuidanceFlavor)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DETECT_URL", "detector:9000/")
	t.Setenv("NAV_STEP_INTERVAL", "5s")
	t.Setenv("GUIDANCE_FLAVOR", "height")
	t.Setenv("CAMERA_MODE", "webrtc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://detector:9000", cfg.DetectURL)
	assert.Equal(t, 5*time.Second, cfg.StepInterval)
	assert.Equal(t, "height", cfg.GuidanceFlavor)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("CAMERA_URL", "http://phone.local/shot.jpg")
	cfg, err := Load()
	require.NoError(t, err)

	cfg.GuidanceFlavor = "loud"
	assert.Error(t, cfg.Validate())

	cfg.GuidanceFlavor = "area"
	cfg.CameraURL = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_DetectIntervalRange(t *testing.T) {
	t.Setenv("CAMERA_URL", "http://phone.local/shot.jpg")

	for _, tc := range []struct {
		value string
		ok    bool
	}{
		{"400ms", false},
		{"500ms", true},
		{"650ms", true},
		{"700ms", true},
		{"1s", false},
	} {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("DETECT_INTERVAL", tc.value)
			cfg, err := Load()
			require.NoError(t, err)
			if tc.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}
