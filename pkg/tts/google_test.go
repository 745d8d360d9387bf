package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/tts"
)

func TestGoogle_Synthesize(t *testing.T) {
	audio := make([]byte, 4800)

	var gotKey string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "text:synthesize") {
			http.NotFound(w, r)
			return
		}
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString(audio),
		})
	}))
	defer server.Close()

	g, err := tts.NewGoogle(context.Background(),
		tts.WithAPIKey("test-key"),
		tts.WithBaseURL(server.URL+"/"),
		tts.WithLanguage("en"),
	)
	if err != nil {
		t.Fatalf("NewGoogle: %v", err)
	}

	result, err := g.Synthesize(context.Background(), "Turn left onto Moi Avenue")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("expected API key in query, got %q", gotKey)
	}
	voice, _ := gotBody["voice"].(map[string]any)
	if voice["languageCode"] != "en-US" {
		t.Errorf("expected en-US voice, got %v", voice["languageCode"])
	}
	if len(result.Audio) != len(audio) {
		t.Errorf("expected %d bytes, got %d", len(audio), len(result.Audio))
	}
	if result.Format.Encoding != tts.EncodingWAV {
		t.Errorf("expected wav, got %s", result.Format.Encoding)
	}
	if result.Duration != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", result.Duration)
	}
}

func TestGoogle_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"code":503,"message":"backend busy"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"audioContent": ""})
	}))
	defer server.Close()

	g, err := tts.NewGoogle(context.Background(),
		tts.WithAPIKey("k"),
		tts.WithBaseURL(server.URL+"/"),
		tts.WithRetry(2, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewGoogle: %v", err)
	}

	if _, err := g.Synthesize(context.Background(), "hello"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestGoogle_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"API key not valid","errors":[{"reason":"keyInvalid"}]}}`))
	}))
	defer server.Close()

	g, _ := tts.NewGoogle(context.Background(), tts.WithAPIKey("bad"), tts.WithBaseURL(server.URL+"/"))

	_, err := g.Synthesize(context.Background(), "hello")
	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.Reason != "keyInvalid" {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
}

func TestGoogle_RequiresKey(t *testing.T) {
	if _, err := tts.NewGoogle(context.Background()); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}
