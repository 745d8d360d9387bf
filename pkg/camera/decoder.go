package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os/exec"
	"sync"
	"time"
)

// minH264Bytes is the smallest buffer worth handing to ffmpeg.
const minH264Bytes = 100

// Decoder turns an Annex-B H264 buffer into a JPEG using a single-shot
// ffmpeg process over pipes. Decoding is rate limited; between decodes the
// last good frame is returned.
type Decoder struct {
	binary      string
	quality     int
	timeout     time.Duration
	minInterval time.Duration

	mu         sync.Mutex
	lastDecode time.Time
	latest     []byte
}

// NewDecoder creates a decoder that runs at most once per interval.
func NewDecoder(interval time.Duration) *Decoder {
	return &Decoder{
		binary:      "ffmpeg",
		quality:     3,
		timeout:     500 * time.Millisecond,
		minInterval: interval,
	}
}

// Decode returns the newest JPEG it can produce from h264, or the last
// good frame when decoding is throttled or fails. A nil result means no
// frame has been decoded yet.
func (d *Decoder) Decode(ctx context.Context, h264 []byte) ([]byte, error) {
	if len(h264) < minH264Bytes {
		return d.Latest(), nil
	}

	d.mu.Lock()
	if time.Since(d.lastDecode) < d.minInterval {
		d.mu.Unlock()
		return d.Latest(), nil
	}
	d.lastDecode = time.Now()
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary,
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", fmt.Sprint(d.quality),
		"pipe:1",
	)

	var stdout bytes.Buffer
	cmd.Stdin = bytes.NewReader(h264)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		// ffmpeg exits non-zero until a keyframe has arrived.
		if ctx.Err() == nil {
			if _, lookErr := exec.LookPath(d.binary); lookErr != nil {
				return nil, fmt.Errorf("ffmpeg not installed: %w", lookErr)
			}
		}
		return d.Latest(), nil
	}

	data := stdout.Bytes()
	if isGrayJPEG(data) {
		return d.Latest(), nil
	}

	d.mu.Lock()
	d.latest = data
	d.mu.Unlock()
	return data, nil
}

// Latest returns a copy of the most recently decoded frame.
func (d *Decoder) Latest() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == nil {
		return nil
	}
	out := make([]byte, len(d.latest))
	copy(out, d.latest)
	return out
}

// isGrayJPEG flags the flat gray frames a decoder emits before the first
// keyframe.
func isGrayJPEG(data []byte) bool {
	if len(data) < 1000 {
		return true
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return true
	}

	bounds := img.Bounds()
	if bounds.Dx() < 100 || bounds.Dy() < 100 {
		return true
	}

	var rSum, gSum, bSum, samples int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += bounds.Dy() / 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += bounds.Dx() / 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += int(r >> 8)
			gSum += int(g >> 8)
			bSum += int(b >> 8)
			samples++
		}
	}
	if samples == 0 {
		return true
	}

	avgR, avgG, avgB := rSum/samples, gSum/samples, bSum/samples
	if avgR < 30 && avgG < 30 && avgB < 30 {
		return true
	}

	colorDiff := absInt(avgR-avgG) + absInt(avgG-avgB) + absInt(avgR-avgB)
	return colorDiff < 15 && avgR > 100 && avgR < 150
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
