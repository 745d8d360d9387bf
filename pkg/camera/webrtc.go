package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-wayfinder/pkg/detection"
)

const (
	// maxAccessUnitBuffer drops the H264 buffer if no keyframe resets it.
	maxAccessUnitBuffer = 4 << 20

	// pliInterval is how often a keyframe is requested from the phone.
	pliInterval = 2 * time.Second

	nalTypeSPS = 7
)

// WebRTC receives the phone camera as an H264 WebRTC track. The phone
// posts an SDP offer (see HandleOffer); frames become available once the
// first keyframe decodes.
type WebRTC struct {
	cfg     Config
	logger  *slog.Logger
	decoder *Decoder

	mu     sync.Mutex
	pc     *webrtc.PeerConnection
	latest detection.Image
	closed bool
}

// NewWebRTC creates an idle WebRTC source.
func NewWebRTC(cfg Config, logger *slog.Logger) *WebRTC {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebRTC{
		cfg:     cfg,
		logger:  logger.With("component", "camera.webrtc"),
		decoder: NewDecoder(cfg.DecodeInterval),
	}
}

// HandleOffer accepts a new publisher, replacing any previous one, and
// returns the complete (non-trickle) answer.
func (w *WebRTC) HandleOffer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if offer.Type != webrtc.SDPTypeOffer {
		return nil, fmt.Errorf("expected offer, got %s", offer.Type)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	old := w.pc
	w.pc = nil
	w.latest = detection.Image{}
	w.mu.Unlock()

	if old != nil {
		old.Close()
	}

	pc, err := newReceiver()
	if err != nil {
		return nil, err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		w.logger.Info("track received", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		go w.requestKeyframes(pc, track)
		go w.readTrack(pc, track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		w.logger.Info("connection state", "state", state.String())
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		pc.Close()
		return nil, ErrClosed
	}
	w.pc = pc
	w.mu.Unlock()

	return pc.LocalDescription(), nil
}

func newReceiver() (*webrtc.PeerConnection, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m))

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add transceiver: %w", err)
	}
	return pc, nil
}

// requestKeyframes sends PLI so a decoder joining mid-stream recovers.
func (w *WebRTC) requestKeyframes(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	for range ticker.C {
		if w.stale(pc) {
			return
		}
		err := pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
		if err != nil {
			return
		}
	}
}

func (w *WebRTC) readTrack(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	var (
		depacketizer codecs.H264Packet
		au           bytes.Buffer
	)

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			w.logger.Debug("track ended", "error", err)
			return
		}
		if w.stale(pc) {
			return
		}

		nal, err := depacketizer.Unmarshal(pkt.Payload)
		if err != nil || len(nal) == 0 {
			continue
		}

		// Each SPS starts a new decodable run; a buffer that never sees
		// one is dropped before it grows unbounded.
		switch {
		case firstNALType(nal) == nalTypeSPS:
			au.Reset()
		case au.Len()+len(nal) > maxAccessUnitBuffer:
			au.Reset()
			continue
		}
		au.Write(nal)

		if !pkt.Marker {
			continue
		}

		jpeg, err := w.decoder.Decode(context.Background(), au.Bytes())
		if err != nil {
			w.logger.Warn("decode failed", "error", err)
			continue
		}
		if jpeg == nil {
			continue
		}
		img, err := ImageFromJPEG(jpeg)
		if err != nil {
			continue
		}

		w.mu.Lock()
		if !w.closed && (w.pc == nil || w.pc == pc) {
			w.latest = img
		}
		w.mu.Unlock()
	}
}

// stale reports whether pc has been replaced or the source closed.
// A nil current connection means HandleOffer has not finished yet.
func (w *WebRTC) stale(pc *webrtc.PeerConnection) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed || (w.pc != nil && w.pc != pc)
}

// firstNALType returns the type of the first NAL unit in an Annex-B
// buffer, or -1 if none is found.
func firstNALType(annexB []byte) int {
	for i := 0; i+3 < len(annexB); i++ {
		if annexB[i] != 0 || annexB[i+1] != 0 {
			continue
		}
		if annexB[i+2] == 1 {
			return int(annexB[i+3] & 0x1F)
		}
		if annexB[i+2] == 0 && i+4 < len(annexB) && annexB[i+3] == 1 {
			return int(annexB[i+4] & 0x1F)
		}
	}
	return -1
}

// Ready reports whether a decoded frame is available.
func (w *WebRTC) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && len(w.latest.JPEG) > 0
}

// Capture returns the most recent decoded frame.
func (w *WebRTC) Capture(ctx context.Context) (detection.Image, error) {
	if err := ctx.Err(); err != nil {
		return detection.Image{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return detection.Image{}, ErrClosed
	}
	if len(w.latest.JPEG) == 0 {
		return detection.Image{}, ErrNotReady
	}

	img := w.latest
	img.JPEG = bytes.Clone(w.latest.JPEG)
	return img, nil
}

// Close hangs up the current publisher.
func (w *WebRTC) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	pc := w.pc
	w.pc = nil
	w.mu.Unlock()

	if pc != nil {
		return pc.Close()
	}
	return nil
}

// ErrNoPublisher is returned by Status when no phone is connected.
var ErrNoPublisher = errors.New("camera: no publisher connected")

// Status reports the peer connection state of the current publisher.
func (w *WebRTC) Status() (webrtc.PeerConnectionState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pc == nil {
		return webrtc.PeerConnectionStateNew, ErrNoPublisher
	}
	return w.pc.ConnectionState(), nil
}

// Verify WebRTC implements Source at compile time.
var _ Source = (*WebRTC)(nil)
