package detect

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/moodfi/vibecheck/internal/httpc"
	"github.com/moodfi/vibecheck/pkg/emotion"
)

// ferPlusLabels maps expression-model output indices to labels.
// The model emits an eighth "contempt" class which is folded into
// disgusted below.
var ferPlusLabels = []emotion.Label{
	emotion.Neutral,
	emotion.Happy,
	emotion.Surprised,
	emotion.Sad,
	emotion.Angry,
	emotion.Disgusted,
	emotion.Fearful,
}

const emotionInputSize = 64

// YuNetDetector runs YuNet face detection and a FER+ expression
// classifier through OpenCV's DNN module.
type YuNetDetector struct {
	config Config
	guard  SingleFlight

	mu       sync.Mutex // Protects inference
	faces    gocv.FaceDetectorYN
	emotions gocv.Net
}

// NewYuNet creates a YuNet-based detector. Models are loaded lazily
// on the first LoadModels or Detect call.
func NewYuNet(cfg Config) *YuNetDetector {
	return &YuNetDetector{config: cfg}
}

// Name implements Detector.
func (d *YuNetDetector) Name() string { return "yunet" }

// Loaded reports whether the models are open and ready.
func (d *YuNetDetector) Loaded() bool { return d.guard.Loaded() }

// LoadModels fetches (if needed) and opens the face and expression
// models. Concurrent callers share one load; on failure the detector
// returns to the unloaded state so a later call can retry.
func (d *YuNetDetector) LoadModels(ctx context.Context) error {
	return d.guard.Do(ctx, func(ctx context.Context) error {
		faces, emotions, err := openModels(ctx, d.config)
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.faces = faces
		d.emotions = emotions
		d.mu.Unlock()
		return nil
	})
}

func openModels(ctx context.Context, cfg Config) (gocv.FaceDetectorYN, gocv.Net, error) {
	if err := ensureModel(ctx, cfg.FaceModelPath, cfg.FaceModelURL); err != nil {
		return gocv.FaceDetectorYN{}, gocv.Net{}, WrapError("yunet", err)
	}
	if err := ensureModel(ctx, cfg.EmotionModelPath, cfg.EmotionModelURL); err != nil {
		return gocv.FaceDetectorYN{}, gocv.Net{}, WrapError("yunet", err)
	}

	faces := gocv.NewFaceDetectorYNWithParams(
		cfg.FaceModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.MinFaceScore),
		float32(cfg.NMSThreshold),
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	emotions := gocv.ReadNet(cfg.EmotionModelPath, "")
	if emotions.Empty() {
		faces.Close()
		return gocv.FaceDetectorYN{}, gocv.Net{}, WrapError("yunet",
			fmt.Errorf("read expression model %s: empty network", cfg.EmotionModelPath))
	}

	return faces, emotions, nil
}

// ensureModel downloads the model asset when it is not already cached
// on disk. A detector configured without a URL requires the file to
// exist.
func ensureModel(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if url == "" {
		return fmt.Errorf("model file not found: %s", path)
	}
	return httpc.Download(ctx, url, path)
}

// Detect finds faces in the JPEG frame and scores their expressions.
func (d *YuNetDetector) Detect(ctx context.Context, jpeg []byte) ([]Face, error) {
	if err := d.LoadModels(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.guard.Loaded() {
		return nil, ErrModelsNotLoaded
	}

	if len(jpeg) == 0 {
		return nil, ErrEmptyFrame
	}

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, WrapError("yunet", fmt.Errorf("decode image: %w", err))
	}
	defer img.Close()

	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	d.faces.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	d.faces.Detect(img, &out)

	var detections []Face
	for r := 0; r < out.Rows(); r++ {
		// YuNet output format (15 columns):
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-13: 5 facial landmarks (x,y pairs)
		// 14: face score
		face := Face{
			X:     float64(out.GetFloatAt(r, 0)) / imgW,
			Y:     float64(out.GetFloatAt(r, 1)) / imgH,
			W:     float64(out.GetFloatAt(r, 2)) / imgW,
			H:     float64(out.GetFloatAt(r, 3)) / imgH,
			Score: float64(out.GetFloatAt(r, 14)),
			Landmarks: Landmarks{
				RightEye:   landmarkAt(out, r, 4, imgW, imgH),
				LeftEye:    landmarkAt(out, r, 6, imgW, imgH),
				Nose:       landmarkAt(out, r, 8, imgW, imgH),
				MouthRight: landmarkAt(out, r, 10, imgW, imgH),
				MouthLeft:  landmarkAt(out, r, 12, imgW, imgH),
			},
		}

		scores, err := d.classifyExpressions(img, face)
		if err != nil {
			return nil, err
		}
		face.Expressions = scores

		detections = append(detections, face)
	}

	return detections, nil
}

func landmarkAt(m gocv.Mat, row, col int, imgW, imgH float64) Point {
	return Point{
		X: float64(m.GetFloatAt(row, col)) / imgW,
		Y: float64(m.GetFloatAt(row, col+1)) / imgH,
	}
}

// classifyExpressions crops the face region, runs the expression net,
// and returns a softmax distribution over the emotion labels.
func (d *YuNetDetector) classifyExpressions(img gocv.Mat, f Face) (emotion.Scores, error) {
	rect := clampRect(f, img.Cols(), img.Rows())
	if rect.Dx() < 2 || rect.Dy() < 2 {
		return nil, WrapError("yunet", fmt.Errorf("face region too small: %v", rect))
	}

	crop := img.Region(rect)
	defer crop.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)

	blob := gocv.BlobFromImage(gray, 1.0,
		image.Pt(emotionInputSize, emotionInputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.emotions.SetInput(blob, "")
	prob := d.emotions.Forward("")
	defer prob.Close()

	logits, err := prob.DataPtrFloat32()
	if err != nil {
		return nil, WrapError("yunet", fmt.Errorf("read expression output: %w", err))
	}

	return softmaxScores(logits), nil
}

func clampRect(f Face, imgW, imgH int) image.Rectangle {
	x0 := int(f.X * float64(imgW))
	y0 := int(f.Y * float64(imgH))
	x1 := int((f.X + f.W) * float64(imgW))
	y1 := int((f.Y + f.H) * float64(imgH))

	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > imgW {
		x1 = imgW
	}
	if y1 > imgH {
		y1 = imgH
	}
	return image.Rect(x0, y0, x1, y1)
}

// softmaxScores converts raw logits to an emotion distribution.
// The eighth (contempt) output, when present, folds into disgusted.
func softmaxScores(logits []float32) emotion.Scores {
	max := float64(math.Inf(-1))
	for _, v := range logits {
		if float64(v) > max {
			max = float64(v)
		}
	}

	exps := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		exps[i] = math.Exp(float64(v) - max)
		sum += exps[i]
	}

	scores := make(emotion.Scores, len(ferPlusLabels))
	for _, l := range ferPlusLabels {
		scores[l] = 0
	}
	for i, e := range exps {
		p := e / sum
		switch {
		case i < len(ferPlusLabels):
			scores[ferPlusLabels[i]] += p
		default:
			scores[emotion.Disgusted] += p
		}
	}
	return scores
}

// Close releases the underlying models.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.guard.Loaded() {
		return nil
	}
	d.guard.Reset()
	d.faces.Close()
	return d.emotions.Close()
}

// Verify YuNetDetector implements Detector at compile time.
var _ Detector = (*YuNetDetector)(nil)
