package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateGaze(t *testing.T) {
	t.Run("frontal face counts as eye contact", func(t *testing.T) {
		// Nose centered between level eyes.
		lm := [5][2]float32{
			{100, 100}, // left eye
			{160, 100}, // right eye
			{130, 130}, // nose
			{105, 160},
			{155, 160},
		}
		g := EstimateGaze(lm)
		assert.True(t, g.LookingAtCamera)
		assert.InDelta(t, 1.0, float64(g.Confidence), 1e-6)
	})

	t.Run("turned head scores low", func(t *testing.T) {
		// Nose shifted far toward the right eye (strong yaw).
		lm := [5][2]float32{
			{100, 100},
			{160, 100},
			{158, 130},
			{105, 160},
			{155, 160},
		}
		g := EstimateGaze(lm)
		assert.False(t, g.LookingAtCamera)
		assert.Less(t, float64(g.Confidence), 0.5)
	})

	t.Run("rolled head reduces confidence", func(t *testing.T) {
		level := EstimateGaze([5][2]float32{
			{100, 100}, {160, 100}, {130, 130}, {105, 160}, {155, 160},
		})
		rolled := EstimateGaze([5][2]float32{
			{100, 100}, {160, 120}, {130, 130}, {105, 160}, {155, 160},
		})
		assert.Less(t, float64(rolled.Confidence), float64(level.Confidence))
	})

	t.Run("degenerate landmarks", func(t *testing.T) {
		g := EstimateGaze([5][2]float32{})
		assert.False(t, g.LookingAtCamera)
		assert.Zero(t, g.Confidence)
	})
}

func TestSoftmax(t *testing.T) {
	t.Run("sums to one", func(t *testing.T) {
		probs := softmax([]float32{1.0, 2.0, 3.0, 4.0})
		var sum float64
		for _, p := range probs {
			sum += float64(p)
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	})

	t.Run("preserves ordering", func(t *testing.T) {
		probs := softmax([]float32{0.1, 2.5, -1.0})
		assert.Greater(t, probs[1], probs[0])
		assert.Greater(t, probs[0], probs[2])
	})

	t.Run("stable for large logits", func(t *testing.T) {
		probs := softmax([]float32{1000, 1000})
		assert.InDelta(t, 0.5, float64(probs[0]), 1e-5)
		assert.InDelta(t, 0.5, float64(probs[1]), 1e-5)
	})
}

func TestNMS(t *testing.T) {
	t.Run("suppresses overlapping boxes", func(t *testing.T) {
		dets := []Detection{
			{BBox: [4]float32{0, 0, 100, 100}, Confidence: 0.9},
			{BBox: [4]float32{5, 5, 105, 105}, Confidence: 0.8},
			{BBox: [4]float32{200, 200, 300, 300}, Confidence: 0.7},
		}
		kept := nms(dets, 0.4)
		require.Len(t, kept, 2)
		assert.Equal(t, float32(0.9), kept[0].Confidence)
		assert.Equal(t, float32(0.7), kept[1].Confidence)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, nms(nil, 0.4))
	})
}

func TestIOU(t *testing.T) {
	t.Run("identical boxes", func(t *testing.T) {
		b := [4]float32{0, 0, 10, 10}
		assert.InDelta(t, 1.0, float64(iou(b, b)), 1e-6)
	})

	t.Run("disjoint boxes", func(t *testing.T) {
		a := [4]float32{0, 0, 10, 10}
		b := [4]float32{20, 20, 30, 30}
		assert.Zero(t, iou(a, b))
	})

	t.Run("half overlap", func(t *testing.T) {
		a := [4]float32{0, 0, 10, 10}
		b := [4]float32{5, 0, 15, 10}
		// intersection 50, union 150
		assert.InDelta(t, 1.0/3.0, float64(iou(a, b)), 1e-5)
	})
}

func TestPreprocess(t *testing.T) {
	solid := func(c color.RGBA, w, h int) image.Image {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Set(x, y, c)
			}
		}
		return img
	}

	t.Run("CHW layout and normalization", func(t *testing.T) {
		img := solid(color.RGBA{R: 255, G: 0, B: 128, A: 255}, 4, 4)
		data := imageToFloat32CHW(img, 2, 2, [3]float32{127.5, 127.5, 127.5}, [3]float32{128, 128, 128})
		require.Len(t, data, 3*2*2)
		assert.InDelta(t, (255.0-127.5)/128.0, float64(data[0]), 1e-5) // R plane
		assert.InDelta(t, (0.0-127.5)/128.0, float64(data[4]), 1e-5)  // G plane
		assert.InDelta(t, (128.0-127.5)/128.0, float64(data[8]), 1e-5)
	})

	t.Run("grayscale in unit range", func(t *testing.T) {
		img := solid(color.RGBA{R: 255, G: 255, B: 255, A: 255}, 8, 8)
		data := preprocessForEmotion(img, 4, 4)
		require.Len(t, data, 16)
		for _, v := range data {
			assert.InDelta(t, 1.0, float64(v), 1e-3)
		}
	})
}

func TestCropFace(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	t.Run("valid crop", func(t *testing.T) {
		crop := cropFace(img, [4]float32{20, 20, 60, 60})
		require.NotNil(t, crop)
		// 40x40 box padded by 10% per side
		assert.Equal(t, 48, crop.Bounds().Dx())
		assert.Equal(t, 48, crop.Bounds().Dy())
	})

	t.Run("out of bounds box clamps", func(t *testing.T) {
		crop := cropFace(img, [4]float32{80, 80, 200, 200})
		require.NotNil(t, crop)
		// 20px after clamping plus 10% padding on the inner side
		assert.Equal(t, 22, crop.Bounds().Dx())
	})

	t.Run("degenerate box", func(t *testing.T) {
		assert.Nil(t, cropFace(img, [4]float32{50, 50, 50, 50}))
	})
}
