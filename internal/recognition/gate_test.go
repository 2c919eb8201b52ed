package recognition

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sahadipankar/PresenSense/internal/models"
)

// memoryLog is an in-memory AttendanceLog with the same atomic
// check-then-insert semantics the Postgres store provides.
type memoryLog struct {
	mu     sync.Mutex
	events []models.AttendanceEvent
	now    func() time.Time
}

func (l *memoryLog) RecordOnce(ctx context.Context, userID uuid.UUID, cutoff time.Time) (*models.AttendanceEvent, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.events {
		ev := l.events[i]
		if ev.UserID == userID && !ev.RecordedAt.Before(cutoff) {
			return &ev, false, nil
		}
	}

	ev := models.AttendanceEvent{ID: uuid.New(), UserID: userID, RecordedAt: l.now()}
	l.events = append(l.events, ev)
	return &ev, true, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestGate(candidates []Candidate, threshold float64, window time.Duration) (*Gate, *memoryLog, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	log := &memoryLog{now: clock.Now}
	gate := NewGate(NewResolver(&staticSource{candidates: candidates}), log, threshold, window)
	gate.now = clock.Now
	return gate, log, clock
}

func TestGateBelowThreshold(t *testing.T) {
	candidates := []Candidate{
		{UserID: uuid.New(), Name: "a", Embedding: []float32{0.3, 0.954}},
		{UserID: uuid.New(), Name: "b", Embedding: []float32{0.55, 0.835}},
		{UserID: uuid.New(), Name: "c", Embedding: []float32{0.59, 0.807}},
	}
	gate, log, _ := newTestGate(candidates, 0.6, 5*time.Minute)

	_, err := gate.Verify(context.Background(), []float32{1, 0})
	require.Error(t, err)
	require.True(t, IsNoMatch(err))

	var nm *NoMatchError
	require.ErrorAs(t, err, &nm)
	assert.InDelta(t, 0.59, nm.BestScore, 1e-3)
	assert.Equal(t, 0.6, nm.Threshold)
	assert.Empty(t, log.events, "no-match must not write attendance")
}

func TestGateDedupWindow(t *testing.T) {
	userID := uuid.New()
	emb := []float32{0.1, 0.2, 0.3, 0.4}
	gate, log, clock := newTestGate([]Candidate{{UserID: userID, Name: "alice", Embedding: emb}}, 0.6, 300*time.Second)

	// First accepted match writes an event.
	d1, err := gate.Verify(context.Background(), emb)
	require.NoError(t, err)
	assert.True(t, d1.Created)
	assert.False(t, d1.Dedup())
	assert.InDelta(t, 1.0, d1.Match.Score, tol)
	require.Len(t, log.events, 1)

	// Immediate repeat within the window is accepted but deduplicated.
	d2, err := gate.Verify(context.Background(), emb)
	require.NoError(t, err)
	assert.False(t, d2.Created)
	assert.True(t, d2.Dedup())
	assert.Equal(t, d1.Event.ID, d2.Event.ID, "dedup returns the in-window event")
	require.Len(t, log.events, 1)

	// After the window elapses a fresh event is written.
	clock.Advance(301 * time.Second)
	d3, err := gate.Verify(context.Background(), emb)
	require.NoError(t, err)
	assert.True(t, d3.Created)
	require.Len(t, log.events, 2)
}

func TestGateConcurrentSameUser(t *testing.T) {
	userID := uuid.New()
	emb := []float32{1, 0, 0}
	gate, log, _ := newTestGate([]Candidate{{UserID: userID, Name: "bob", Embedding: emb}}, 0.6, time.Minute)

	var wg sync.WaitGroup
	created := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := gate.Verify(context.Background(), emb)
			if err == nil {
				created <- d.Created
			}
		}()
	}
	wg.Wait()
	close(created)

	writes := 0
	for c := range created {
		if c {
			writes++
		}
	}
	assert.Equal(t, 1, writes, "exactly one write per user per window")
	assert.Len(t, log.events, 1)
}

func TestGateEmptyStore(t *testing.T) {
	gate, _, _ := newTestGate(nil, 0.6, time.Minute)
	_, err := gate.Verify(context.Background(), []float32{1, 0})
	require.ErrorIs(t, err, ErrNoCandidates)
}
