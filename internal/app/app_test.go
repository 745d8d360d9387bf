package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/internal/app"
	"github.com/teslashibe/go-wayfinder/internal/config"
	"github.com/teslashibe/go-wayfinder/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:           "0",
		LogLevel:       "info",
		APIURL:         "http://127.0.0.1:1",
		DetectURL:      "http://127.0.0.1:1",
		DetectMode:     "remote",
		DetectInterval: 600 * time.Millisecond,
		GuidanceFlavor: "area",
		CameraMode:     "snapshot",
		CameraURL:      "http://127.0.0.1:1/shot.jpg",
		StepInterval:   15 * time.Second,
		AdvanceMode:    "timer",
		ArrivalRadiusM: 20,
		PlacesCountry:  "ke",
		SpeechLanguage: "en",
		StorePath:      filepath.Join(t.TempDir(), "wayfinder.db"),
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdvanceMode = "teleport"

	_, err := app.New(cfg, log.Discard())
	assert.Error(t, err)
}

func TestInit_WiresServer(t *testing.T) {
	a, err := app.New(testConfig(t), log.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(a.Shutdown)

	resp, err := a.Server().App().Test(httptest.NewRequest(http.MethodGet, "/api/status", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = a.Server().App().Test(httptest.NewRequest(http.MethodGet, "/api/places/autocomplete?input=library", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "no maps key configured")

	resp, err = a.Server().App().Test(httptest.NewRequest(http.MethodGet, "/api/prefs/accessibility", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
