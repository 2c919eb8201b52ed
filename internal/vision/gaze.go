package vision

import "math"

// Gaze is the eye-contact estimate for a detected face.
type Gaze struct {
	LookingAtCamera bool
	Confidence      float32
}

// eyeContactThreshold is the minimum frontality score counted as eye contact.
const eyeContactThreshold = 0.5

// EstimateGaze derives an eye-contact estimate from the 5-point facial
// landmarks of a detection. A frontal face has its nose centered between
// the eyes and a level eye line; deviation from both is measured relative
// to the inter-ocular distance, so the score is scale invariant.
func EstimateGaze(lm [5][2]float32) Gaze {
	leftEye := lm[0]
	rightEye := lm[1]
	nose := lm[2]

	eyeDX := float64(rightEye[0] - leftEye[0])
	eyeDY := float64(rightEye[1] - leftEye[1])
	interOcular := math.Hypot(eyeDX, eyeDY)
	if interOcular <= 0 {
		return Gaze{}
	}

	// Horizontal offset of the nose from the eye midpoint: grows as the
	// head turns left or right (yaw).
	midX := float64(leftEye[0]+rightEye[0]) / 2
	yawDev := math.Abs(float64(nose[0])-midX) / interOcular

	// Eye line tilt: grows as the head rolls.
	rollDev := math.Abs(eyeDY) / interOcular

	score := 1.0 - 1.8*yawDev - 0.8*rollDev
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return Gaze{
		LookingAtCamera: score >= eyeContactThreshold,
		Confidence:      float32(score),
	}
}
