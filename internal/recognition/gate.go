package recognition

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Sahadipankar/PresenSense/internal/models"
)

// AttendanceLog is the persistence contract the gate needs. RecordOnce
// must atomically check for an event at or after cutoff and insert a new
// one only if none exists; two concurrent calls for the same user must
// never both insert.
type AttendanceLog interface {
	RecordOnce(ctx context.Context, userID uuid.UUID, cutoff time.Time) (*models.AttendanceEvent, bool, error)
}

// Decision is the gate's verdict for an accepted match.
type Decision struct {
	Match Match
	// Event is the attendance event covering this match: freshly written
	// when Created is true, the pre-existing in-window event otherwise.
	Event   *models.AttendanceEvent
	Created bool
}

// Dedup reports whether the match was accepted without a new write.
func (d *Decision) Dedup() bool {
	return !d.Created
}

// Gate applies the threshold and the write-once-per-window rule to a
// resolved match. Threshold and window come from runtime configuration.
type Gate struct {
	resolver  *Resolver
	log       AttendanceLog
	threshold float64
	window    time.Duration
	now       func() time.Time
}

func NewGate(resolver *Resolver, log AttendanceLog, threshold float64, window time.Duration) *Gate {
	return &Gate{
		resolver:  resolver,
		log:       log,
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

// Verify resolves the query embedding against the stored identities and
// applies the acceptance decision:
//
//	score < threshold            -> *NoMatchError (carries best score)
//	score >= threshold, recent   -> Decision{Created: false}
//	score >= threshold, no event -> new attendance event, Decision{Created: true}
func (g *Gate) Verify(ctx context.Context, query []float32) (*Decision, error) {
	match, err := g.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	if match.Score < g.threshold {
		return nil, &NoMatchError{BestScore: match.Score, Threshold: g.threshold}
	}

	cutoff := g.now().Add(-g.window)
	event, created, err := g.log.RecordOnce(ctx, match.UserID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("record attendance: %w", err)
	}

	return &Decision{Match: *match, Event: event, Created: created}, nil
}
