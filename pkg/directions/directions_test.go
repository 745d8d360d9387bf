package directions_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/directions"
	"github.com/teslashibe/go-wayfinder/pkg/geo"
)

func newClient(t *testing.T, h http.HandlerFunc) *directions.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := directions.New(
		directions.WithAPIKey("test-key"),
		directions.WithBaseURL(srv.URL),
		directions.WithAutocompleteInterval(0),
		directions.WithLogger(log.Discard()),
	)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := directions.New()
	assert.ErrorIs(t, err, directions.ErrNoAPIKey)
}

func TestAutocomplete_ShortInputSkipsProvider(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]any{"status": "OK", "predictions": []any{}})
	})

	for _, in := range []string{"", "a", "ab", "  ab  "} {
		got, err := c.Autocomplete(context.Background(), in)
		require.NoError(t, err)
		assert.Empty(t, got, "input %q", in)
	}
	assert.Zero(t, calls.Load())
}

func TestAutocomplete_Query(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/place/autocomplete/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Westl", q.Get("input"))
		assert.Equal(t, "country:ke", q.Get("components"))
		assert.Equal(t, "en", q.Get("language"))
		assert.Equal(t, "test-key", q.Get("key"))

		writeJSON(w, map[string]any{
			"status": "OK",
			"predictions": []map[string]any{
				{
					"place_id":    "p1",
					"description": "Westlands, Nairobi, Kenya",
					"structured_formatting": map[string]any{
						"main_text": "Westlands",
					},
				},
			},
		})
	})

	got, err := c.Autocomplete(context.Background(), "Westl")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, directions.Suggestion{
		PlaceID:     "p1",
		Description: "Westlands, Nairobi, Kenya",
		MainText:    "Westlands",
	}, got[0])
}

func TestAutocomplete_StatusError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":        "REQUEST_DENIED",
			"error_message": "The provided API key is invalid.",
		})
	})

	_, err := c.Autocomplete(context.Background(), "Westlands")
	require.Error(t, err)

	var apiErr *directions.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "REQUEST_DENIED", apiErr.Status)
	assert.True(t, apiErr.IsUnauthorized())
	assert.False(t, apiErr.IsRetryable())
}

func TestPlaceLocation(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/place/details/json", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("placeid"))
		assert.Equal(t, "geometry", r.URL.Query().Get("fields"))

		writeJSON(w, map[string]any{
			"status": "OK",
			"result": map[string]any{
				"geometry": map[string]any{
					"location": map[string]any{"lat": -1.2676, "lng": 36.8108},
				},
			},
		})
	})

	p, err := c.PlaceLocation(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, geo.Point{Lat: -1.2676, Lng: 36.8108}, p)
}

func TestPlaceLocation_NoGeometry(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "OK", "result": map[string]any{}})
	})

	_, err := c.PlaceLocation(context.Background(), "p1")
	assert.ErrorIs(t, err, directions.ErrNoGeometry)
}

func TestWalking(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		assert.Equal(t, "walking", r.URL.Query().Get("mode"))

		writeJSON(w, map[string]any{
			"status": "OK",
			"routes": []map[string]any{{
				"legs": []map[string]any{{
					"distance": map[string]any{"text": "1.2 km", "value": 1234},
					"duration": map[string]any{"text": "15 mins", "value": 929},
					"steps": []map[string]any{
						{
							"html_instructions": "Head <b>north</b> on <b>Moi Ave</b>",
							"end_location":      map[string]any{"lat": -1.28, "lng": 36.82},
						},
						{
							"html_instructions": "Turn <b>left</b><div style=\"font-size:0.9em\">Destination will be on the right</div>",
							"end_location":      map[string]any{"lat": -1.27, "lng": 36.81},
						},
					},
				}},
			}},
		})
	})

	route, err := c.Walking(context.Background(),
		geo.Point{Lat: -1.29, Lng: 36.82},
		geo.Point{Lat: -1.27, Lng: 36.81},
	)
	require.NoError(t, err)

	assert.Equal(t, "1.2 km", route.Distance)
	assert.Equal(t, "15 min", route.Duration)
	assert.Equal(t, 1234, route.DistanceMeters)
	assert.Equal(t, []string{
		"Head north on Moi Ave",
		"Turn left Destination will be on the right",
	}, route.Instructions())
	assert.Equal(t, geo.Point{Lat: -1.28, Lng: 36.82}, route.Steps[0].End)
}

func TestWalking_LegWithoutSteps(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status": "OK",
			"routes": []map[string]any{{
				"legs": []map[string]any{{
					"distance": map[string]any{"value": 60},
					"duration": map[string]any{"value": 30},
				}},
			}},
		})
	})

	dest := geo.Point{Lat: -1.27, Lng: 36.81}
	route, err := c.Walking(context.Background(), geo.Point{Lat: -1.2701, Lng: 36.81}, dest)
	require.NoError(t, err)

	assert.Equal(t, "0.1 km", route.Distance)
	assert.Equal(t, "1 min", route.Duration)
	assert.Equal(t, []string{directions.DefaultStep}, route.Instructions())
	assert.Equal(t, dest, route.Steps[0].End)
}

func TestWalking_ZeroResults(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ZERO_RESULTS", "routes": []any{}})
	})

	_, err := c.Walking(context.Background(), geo.Point{Lat: 1, Lng: 1}, geo.Point{Lat: 2, Lng: 2})
	assert.ErrorIs(t, err, directions.ErrNoRoute)
}
