package recognition

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when two embeddings differ in length.
	// Mismatched vectors are a hard error, never a zero score.
	ErrShapeMismatch = errors.New("embedding shape mismatch")

	// ErrNoCandidates is returned when the identity store is empty.
	ErrNoCandidates = errors.New("no registered users to match against")
)

// NoMatchError is returned when the best candidate scores below the
// configured threshold. It carries the best score for diagnostics.
type NoMatchError struct {
	BestScore float64
	Threshold float64
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no match found (best score=%.3f, threshold=%.3f)", e.BestScore, e.Threshold)
}

// IsNoMatch reports whether err is a below-threshold outcome.
func IsNoMatch(err error) bool {
	var nm *NoMatchError
	return errors.As(err, &nm)
}
