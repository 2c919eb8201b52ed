package vision

import (
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Sahadipankar/PresenSense/internal/models"
)

// EmotionPrediction is the classified facial expression of a face crop.
type EmotionPrediction struct {
	Dominant   models.Emotion
	Confidence float32
	Scores     map[models.Emotion]float32
}

// emotionLabels follows the FER class ordering used by the training set.
var emotionLabels = []models.Emotion{
	models.EmotionAngry,
	models.EmotionDisgust,
	models.EmotionFear,
	models.EmotionHappy,
	models.EmotionSad,
	models.EmotionSurprise,
	models.EmotionNeutral,
}

// EmotionPredictor classifies facial expressions using a FER ONNX model.
type EmotionPredictor struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
}

// NewEmotionPredictor loads the emotion classification ONNX model.
func NewEmotionPredictor(modelPath string) (*EmotionPredictor, error) {
	// FER model expects a 64x64 grayscale crop
	inputW, inputH := 64, 64

	inputShape := ort.NewShape(1, 1, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(len(emotionLabels)))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"output"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create emotion session: %w", err)
	}

	return &EmotionPredictor{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Predict classifies the facial expression of a face crop.
// faceData should be grayscale CHW format [1, 64, 64], normalized to [0,1].
func (p *EmotionPredictor) Predict(faceData []float32) (*EmotionPrediction, error) {
	inputSlice := p.inputTensor.GetData()
	copy(inputSlice, faceData)

	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("run emotion: %w", err)
	}

	logits := p.outputTensor.GetData()
	if len(logits) < len(emotionLabels) {
		return nil, fmt.Errorf("unexpected output size: %d", len(logits))
	}

	probs := softmax(logits[:len(emotionLabels)])

	best := 0
	for i, pr := range probs {
		if pr > probs[best] {
			best = i
		}
	}

	scores := make(map[models.Emotion]float32, len(emotionLabels))
	for i, label := range emotionLabels {
		scores[label] = probs[i]
	}

	return &EmotionPrediction{
		Dominant:   emotionLabels[best],
		Confidence: probs[best],
		Scores:     scores,
	}, nil
}

// InputSize returns the expected face crop dimensions.
func (p *EmotionPredictor) InputSize() (int, int) {
	return p.inputW, p.inputH
}

func (p *EmotionPredictor) Close() {
	if p.session != nil {
		p.session.Destroy()
	}
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
	}
	if p.outputTensor != nil {
		p.outputTensor.Destroy()
	}
}

// softmax converts logits to a probability distribution.
func softmax(logits []float32) []float32 {
	maxv := logits[0]
	for _, v := range logits[1:] {
		if v > maxv {
			maxv = v
		}
	}

	probs := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxv))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}
