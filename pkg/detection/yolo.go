package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YOLOConfig configures the on-device detector.
type YOLOConfig struct {
	ModelPath string

	// MinScore drops candidates below this class score.
	MinScore float32
	// NMSThreshold is the IoU above which overlapping boxes are merged.
	NMSThreshold float32

	// InputSize is the square model input edge in pixels.
	InputSize int

	// Classes limits reported labels; empty reports all 80 COCO classes.
	Classes []string
}

// DefaultYOLOConfig returns YOLOv8n at 640px, reporting the classes that
// matter to someone walking.
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:    "models/yolov8n.onnx",
		MinScore:     0.5,
		NMSThreshold: 0.45,
		InputSize:    640,
		Classes:      WalkingClasses,
	}
}

// WalkingClasses are obstacles and hazards on a pedestrian route.
var WalkingClasses = []string{
	"person", "bicycle", "car", "motorcycle", "bus", "truck",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"dog", "cow", "chair", "couch", "potted plant", "dining table", "bed",
	"suitcase", "backpack", "umbrella", "bottle", "toilet", "sink",
	"refrigerator", "tv", "laptop",
}

// YOLODetector runs a YOLOv8 ONNX model through OpenCV DNN.
type YOLODetector struct {
	cfg    YOLOConfig
	allow  map[int]bool
	logger *slog.Logger

	mu  sync.Mutex
	net gocv.Net
}

// NewYOLO loads the model.
func NewYOLO(cfg YOLOConfig, logger *slog.Logger) (*YOLODetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: cannot load %s", ErrModelNotFound, cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if logger == nil {
		logger = slog.Default()
	}
	return &YOLODetector{
		cfg:    cfg,
		allow:  classFilter(cfg.Classes),
		net:    net,
		logger: logger.With("component", "detection.yolo"),
	}, nil
}

// classFilter maps label names to COCO ids; nil allows everything.
func classFilter(names []string) map[int]bool {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	allow := make(map[int]bool, len(names))
	for id, n := range COCOClasses {
		if want[n] {
			allow[id] = true
		}
	}
	return allow
}

// Detect finds objects in the JPEG. Boxes are in source pixels.
func (d *YOLODetector) Detect(ctx context.Context, in Image) (*Result, error) {
	if len(in.JPEG) == 0 {
		return nil, ErrNoImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(in.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrNoImage
	}
	frame := Frame{Width: img.Cols(), Height: img.Rows()}

	size := image.Pt(d.cfg.InputSize, d.cfg.InputSize)
	blob := gocv.BlobFromImage(img, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	// Output is [1, 4+classes, anchors].
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	cands := decodeYOLOv8(data, out.Size()[1], out.Size()[2], d.cfg.MinScore, d.allow)
	dets := d.suppress(cands, frame)

	d.logger.Debug("inference", "candidates", len(cands), "kept", len(dets))
	return &Result{Frame: frame, Detections: dets}, nil
}

// candidate is one decoded anchor in model input coordinates.
type candidate struct {
	class int
	score float32
	box   Box
}

// decodeYOLOv8 reads a channel-major [attrs][anchors] tensor: cx, cy, w, h
// then one score per class. Anchors whose best class is below minScore or
// not allowed are skipped.
func decodeYOLOv8(data []float32, attrs, anchors int, minScore float32, allow map[int]bool) []candidate {
	if attrs <= 4 || len(data) < attrs*anchors {
		return nil
	}
	var out []candidate
	for a := 0; a < anchors; a++ {
		best, class := float32(0), -1
		for c := 4; c < attrs; c++ {
			if s := data[c*anchors+a]; s > best {
				best, class = s, c-4
			}
		}
		if class < 0 || best < minScore {
			continue
		}
		if allow != nil && !allow[class] {
			continue
		}
		cx, cy := data[a], data[anchors+a]
		w, h := data[2*anchors+a], data[3*anchors+a]
		out = append(out, candidate{
			class: class,
			score: best,
			box: Box{
				float64(cx - w/2), float64(cy - h/2),
				float64(cx + w/2), float64(cy + h/2),
			},
		})
	}
	return out
}

// suppress runs NMS and rescales survivors from model input to frame
// pixels, clamped to the frame.
func (d *YOLODetector) suppress(cands []candidate, frame Frame) []Detection {
	if len(cands) == 0 {
		return []Detection{}
	}
	sx := float64(frame.Width) / float64(d.cfg.InputSize)
	sy := float64(frame.Height) / float64(d.cfg.InputSize)

	rects := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		rects[i] = image.Rect(int(c.box[0]), int(c.box[1]), int(c.box[2]), int(c.box[3]))
		scores[i] = c.score
	}
	keep := gocv.NMSBoxes(rects, scores, d.cfg.MinScore, d.cfg.NMSThreshold)

	dets := make([]Detection, 0, len(keep))
	for _, i := range keep {
		c := cands[i]
		dets = append(dets, Detection{
			Name:  ClassName(c.class),
			Score: float64(c.score),
			BBox:  clampBox(Box{c.box[0] * sx, c.box[1] * sy, c.box[2] * sx, c.box[3] * sy}, frame),
		})
	}
	return dets
}

func clampBox(b Box, f Frame) Box {
	w, h := float64(f.Width), float64(f.Height)
	clamp := func(v, hi float64) float64 { return min(max(v, 0), hi) }
	return Box{clamp(b[0], w), clamp(b[1], h), clamp(b[2], w), clamp(b[3], h)}
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// ClassName returns the COCO label for id, or "object" when out of range.
func ClassName(id int) string {
	if id < 0 || id >= len(COCOClasses) {
		return "object"
	}
	return COCOClasses[id]
}

// COCOClasses are the 80 labels YOLOv8 is trained on, by class id.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

var _ Detector = (*YOLODetector)(nil)
