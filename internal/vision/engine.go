package vision

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sahadipankar/PresenSense/internal/config"
	"github.com/Sahadipankar/PresenSense/internal/models"
	"github.com/Sahadipankar/PresenSense/internal/observability"
)

var (
	// ErrNoFaceDetected is returned when an image contains no detectable face.
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrMultipleFaces is returned by ExtractEmbedding when an enrollment
	// photo contains more than one face.
	ErrMultipleFaces = errors.New("multiple faces detected in image")
)

// FrameAnalysis is the per-frame output of the emotion/eye-contact path.
type FrameAnalysis struct {
	FaceBBox             models.BoundingBox
	FaceConfidence       float32
	DominantEmotion      models.Emotion
	EmotionConfidence    float64
	IsLookingAtCamera    bool
	EyeContactConfidence float64
}

// Engine runs the full inference stack: face detection, embedding
// extraction and emotion classification. ONNX sessions have pre-bound
// tensors, so all inference is serialized behind a mutex.
type Engine struct {
	mu       sync.Mutex
	detector *Detector
	embedder *Embedder
	emotion  *EmotionPredictor
}

// NewEngine loads all ONNX models and returns a ready engine.
func NewEngine(cfg config.VisionConfig) (*Engine, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "facenet.onnx")
	emoPath := filepath.Join(cfg.ModelsDir, "emotion_fer.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath, cfg.EmbeddingDim)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("loading emotion model", "path", emoPath)
	emo, err := NewEmotionPredictor(emoPath)
	if err != nil {
		det.Close()
		emb.Close()
		return nil, fmt.Errorf("load emotion model: %w", err)
	}

	slog.Info("vision engine ready", "embedding_dim", cfg.EmbeddingDim)

	return &Engine{
		detector: det,
		embedder: emb,
		emotion:  emo,
	}, nil
}

// EmbeddingDim returns the embedding vector dimension.
func (e *Engine) EmbeddingDim() int {
	return e.embedder.EmbeddingDim()
}

// ExtractEmbedding extracts the embedding from an enrollment photo.
// The photo must contain exactly one face; zero faces or several faces
// are rejected so a registration can never bind to the wrong person.
func (e *Engine) ExtractEmbedding(imageData []byte) ([]float32, float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, detections, err := e.detect(imageData)
	if err != nil {
		return nil, 0, err
	}
	if len(detections) == 0 {
		return nil, 0, ErrNoFaceDetected
	}
	if len(detections) > 1 {
		return nil, 0, fmt.Errorf("%w: found %d", ErrMultipleFaces, len(detections))
	}

	embedding, err := e.embedDetection(img, detections[0])
	if err != nil {
		return nil, 0, err
	}
	return embedding, detections[0].Confidence, nil
}

// EmbedBestFace extracts the embedding of the highest-confidence face in
// a probe image. Used for verification, where background faces may be
// present.
func (e *Engine) EmbedBestFace(imageData []byte) ([]float32, float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, detections, err := e.detect(imageData)
	if err != nil {
		return nil, 0, err
	}
	if len(detections) == 0 {
		return nil, 0, ErrNoFaceDetected
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	embedding, err := e.embedDetection(img, best)
	if err != nil {
		return nil, 0, err
	}
	return embedding, best.Confidence, nil
}

// AnalyzeFrame classifies the emotion and eye contact of the
// highest-confidence face in a monitoring frame.
func (e *Engine) AnalyzeFrame(imageData []byte) (*FrameAnalysis, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, detections, err := e.detect(imageData)
	if err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		return nil, ErrNoFaceDetected
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	faceCrop := cropFace(img, best.BBox)
	if faceCrop == nil {
		return nil, ErrNoFaceDetected
	}

	start := time.Now()
	emoInput := preprocessForEmotion(faceCrop, e.emotion.inputW, e.emotion.inputH)
	pred, err := e.emotion.Predict(emoInput)
	if err != nil {
		return nil, fmt.Errorf("classify emotion: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("emotion").Observe(time.Since(start).Seconds())

	gaze := EstimateGaze(best.Landmarks)

	return &FrameAnalysis{
		FaceBBox: models.BoundingBox{
			X:      int(best.BBox[0]),
			Y:      int(best.BBox[1]),
			Width:  int(best.BBox[2] - best.BBox[0]),
			Height: int(best.BBox[3] - best.BBox[1]),
		},
		FaceConfidence:       best.Confidence,
		DominantEmotion:      pred.Dominant,
		EmotionConfidence:    float64(pred.Confidence),
		IsLookingAtCamera:    gaze.LookingAtCamera,
		EyeContactConfidence: float64(gaze.Confidence),
	}, nil
}

// detect decodes the image and runs face detection. Callers must hold e.mu.
func (e *Engine) detect(imageData []byte) (image.Image, []Detection, error) {
	img, err := decodeImage(imageData)
	if err != nil {
		return nil, nil, err
	}

	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	start := time.Now()
	detInput := preprocessForDetection(img, e.detector.inputW, e.detector.inputH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := e.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	return img, detections, nil
}

// embedDetection crops a detection and extracts its embedding. Callers
// must hold e.mu.
func (e *Engine) embedDetection(img image.Image, det Detection) ([]float32, error) {
	faceCrop := cropFace(img, det.BBox)
	if faceCrop == nil {
		return nil, ErrNoFaceDetected
	}

	start := time.Now()
	embInput := preprocessForEmbedding(faceCrop, e.embedder.inputW, e.embedder.inputH)
	embedding, err := e.embedder.Extract(embInput)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	return embedding, nil
}

// Close releases all ONNX sessions.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
	if e.emotion != nil {
		e.emotion.Close()
	}
}
