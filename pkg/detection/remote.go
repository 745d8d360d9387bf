package detection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-wayfinder/internal/httpc"
)

// DefaultRemoteTimeout bounds a single /detect round trip.
const DefaultRemoteTimeout = 15 * time.Second

// RemoteDetector posts frames to an HTTP inference backend.
//
//	POST {baseURL}/detect {"image": "data:image/jpeg;base64,..."}
//	-> {"width": W, "height": H, "detections": [{"name","score","bbox"}]}
type RemoteDetector struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// RemoteOption configures a RemoteDetector.
type RemoteOption func(*RemoteDetector)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteDetector) { r.http = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) RemoteOption {
	return func(r *RemoteDetector) { r.logger = l }
}

// NewRemote creates a detector for the backend at baseURL.
func NewRemote(baseURL string, opts ...RemoteOption) *RemoteDetector {
	r := &RemoteDetector{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpc.NewClient(DefaultRemoteTimeout),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "detection.remote")
	return r
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Width      *float64        `json:"width"`
	Height     *float64        `json:"height"`
	Detections json.RawMessage `json:"detections"`
}

type rawDetection struct {
	Name  string    `json:"name"`
	Score float64   `json:"score"`
	BBox  []float64 `json:"bbox"`
}

// Detect sends the frame to the backend and returns unclassified detections.
func (r *RemoteDetector) Detect(ctx context.Context, img Image) (*Result, error) {
	if len(img.JPEG) == 0 {
		return nil, ErrNoImage
	}

	payload := detectRequest{
		Image: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img.JPEG),
	}

	start := time.Now()
	resp, err := httpc.PostJSON(ctx, r.http, r.baseURL+"/detect", payload)
	if err != nil {
		return nil, fmt.Errorf("detect request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(resp.Body))}
	}

	var parsed detectResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := &Result{
		Frame: Frame{
			Width:  dimOr(parsed.Width, img.Width),
			Height: dimOr(parsed.Height, img.Height),
		},
		Detections: parseDetections(parsed.Detections),
	}

	r.logger.Debug("detect complete",
		"detections", len(result.Detections),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// Health checks that the backend answers.
func (r *RemoteDetector) Health(ctx context.Context) error {
	resp, err := httpc.Get(ctx, r.http, r.baseURL+"/health")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

// Close is a no-op for the remote detector.
func (r *RemoteDetector) Close() error {
	return nil
}

func dimOr(v *float64, fallback int) int {
	if v == nil || *v <= 0 {
		return fallback
	}
	return int(*v)
}

// parseDetections is lenient: anything that is not an array of
// well-formed detections yields fewer (or zero) entries, not an error.
func parseDetections(raw json.RawMessage) []Detection {
	if len(raw) == 0 {
		return []Detection{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []Detection{}
	}

	out := make([]Detection, 0, len(items))
	for _, item := range items {
		var d rawDetection
		if err := json.Unmarshal(item, &d); err != nil || len(d.BBox) != 4 {
			continue
		}
		out = append(out, Detection{
			Name:  d.Name,
			Score: d.Score,
			BBox:  Box{d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]},
		})
	}
	return out
}

// Verify RemoteDetector implements Detector at compile time.
var _ Detector = (*RemoteDetector)(nil)
