package session

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

// memoryStore implements Store with the same per-user atomicity the
// Postgres store guarantees.
type memoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]bool
	sessions map[uuid.UUID]*models.EmotionSession
	records  map[uuid.UUID][]models.EmotionRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    make(map[uuid.UUID]bool),
		sessions: make(map[uuid.UUID]*models.EmotionSession),
		records:  make(map[uuid.UUID][]models.EmotionRecord),
	}
}

func (s *memoryStore) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID], nil
}

func (s *memoryStore) StartSession(ctx context.Context, userID uuid.UUID, startedAt time.Time) (*models.EmotionSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.EndedAt == nil {
			cp := *sess
			return &cp, false, nil
		}
	}
	sess := &models.EmotionSession{ID: uuid.New(), UserID: userID, StartedAt: startedAt}
	s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, true, nil
}

func (s *memoryStore) GetSession(ctx context.Context, id uuid.UUID) (*models.EmotionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *memoryStore) CloseSession(ctx context.Context, id uuid.UUID, endedAt time.Time, attentionSecs, durationSecs, attentionPct float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	sess.EndedAt = &endedAt
	sess.TotalAttentionSecs = attentionSecs
	sess.TotalDurationSecs = durationSecs
	sess.AttentionPercentage = attentionPct
	return nil
}

func (s *memoryStore) AddEmotionRecord(ctx context.Context, rec *models.EmotionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = append(s.records[rec.SessionID], *rec)
	return nil
}

func (s *memoryStore) ListEmotionRecords(ctx context.Context, sessionID uuid.UUID) ([]models.EmotionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EmotionRecord(nil), s.records[sessionID]...), nil
}

func (s *memoryStore) ListSessions(ctx context.Context, userID *uuid.UUID, limit int) ([]models.EmotionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EmotionSession
	for _, sess := range s.sessions {
		if userID != nil && sess.UserID != *userID {
			continue
		}
		out = append(out, *sess)
	}
	return out, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestAggregator(t *testing.T) (*Aggregator, *memoryStore, *testClock, uuid.UUID) {
	t.Helper()
	store := newMemoryStore()
	clock := &testClock{t: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)}
	agg := NewAggregator(store, 5*time.Second, 50)
	agg.now = clock.Now

	userID := uuid.New()
	store.users[userID] = true
	return agg, store, clock, userID
}

func TestStartIsIdempotent(t *testing.T) {
	agg, _, _, userID := newTestAggregator(t)
	ctx := context.Background()

	s1, created, err := agg.Start(ctx, userID)
	require.NoError(t, err)
	assert.True(t, created)

	s2, created, err := agg.Start(ctx, userID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s1.ID, s2.ID, "second start must return the open session")
}

func TestStartUnknownUser(t *testing.T) {
	agg, _, _, _ := newTestAggregator(t)
	_, _, err := agg.Start(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRecordFrameLifecycleErrors(t *testing.T) {
	agg, _, _, userID := newTestAggregator(t)
	ctx := context.Background()

	result := FrameResult{DominantEmotion: models.EmotionNeutral, IsLookingAtCamera: true}

	_, err := agg.RecordFrame(ctx, uuid.New(), result)
	require.ErrorIs(t, err, ErrSessionNotFound)

	sess, _, err := agg.Start(ctx, userID)
	require.NoError(t, err)

	_, err = agg.RecordFrame(ctx, sess.ID, result)
	require.NoError(t, err)

	_, err = agg.End(ctx, sess.ID)
	require.NoError(t, err)

	_, err = agg.RecordFrame(ctx, sess.ID, result)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestEndFreezesAttentionStats(t *testing.T) {
	agg, _, clock, userID := newTestAggregator(t)
	ctx := context.Background()

	sess, _, err := agg.Start(ctx, userID)
	require.NoError(t, err)

	// 4 frames, 3 looking at the camera, 5s nominal slice, 30s wall clock:
	// attention = 15s of 30s = 50%.
	looking := []bool{true, true, false, true}
	for _, l := range looking {
		_, err := agg.RecordFrame(ctx, sess.ID, FrameResult{
			DominantEmotion:   models.EmotionHappy,
			IsLookingAtCamera: l,
		})
		require.NoError(t, err)
	}

	clock.Advance(30 * time.Second)
	summary, err := agg.End(ctx, sess.ID)
	require.NoError(t, err)

	assert.Equal(t, 30.0, summary.TotalDurationSecs)
	assert.Equal(t, 15.0, summary.AttentionSecs)
	assert.Equal(t, 50.0, summary.AttentionPercentage)
	assert.Equal(t, 4, summary.TotalRecords)
}

func TestEndTwiceFails(t *testing.T) {
	agg, _, _, userID := newTestAggregator(t)
	ctx := context.Background()

	sess, _, err := agg.Start(ctx, userID)
	require.NoError(t, err)

	_, err = agg.End(ctx, sess.ID)
	require.NoError(t, err)

	_, err = agg.End(ctx, sess.ID)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestEndUnknownSession(t *testing.T) {
	agg, _, _, _ := newTestAggregator(t)
	_, err := agg.End(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStatsOnOpenSessionUsesNow(t *testing.T) {
	agg, _, clock, userID := newTestAggregator(t)
	ctx := context.Background()

	sess, _, err := agg.Start(ctx, userID)
	require.NoError(t, err)

	_, err = agg.RecordFrame(ctx, sess.ID, FrameResult{
		DominantEmotion:   models.EmotionSurprise,
		IsLookingAtCamera: true,
	})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	stats, err := agg.Stats(ctx, sess.ID)
	require.NoError(t, err)

	assert.True(t, stats.Active)
	assert.Equal(t, 10.0, stats.DurationSecs)
	assert.Equal(t, 5.0, stats.AttentionSecs)
	assert.Equal(t, 50.0, stats.AttentionPercentage)
	assert.Equal(t, 1, stats.EmotionDistribution[models.EmotionSurprise])
}

func TestStatsZeroDuration(t *testing.T) {
	agg, _, _, userID := newTestAggregator(t)
	ctx := context.Background()

	sess, _, err := agg.Start(ctx, userID)
	require.NoError(t, err)

	stats, err := agg.Stats(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.AttentionPercentage, "zero duration must not divide")
}

func TestStatsRecentRecordsCapped(t *testing.T) {
	agg, _, _, userID := newTestAggregator(t)
	ctx := context.Background()

	sess, _, err := agg.Start(ctx, userID)
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		_, err := agg.RecordFrame(ctx, sess.ID, FrameResult{DominantEmotion: models.EmotionNeutral})
		require.NoError(t, err)
	}

	stats, err := agg.Stats(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, stats.TotalRecords)
	assert.Len(t, stats.RecentRecords, 10)
}

func TestConcurrentStartSingleOpenSession(t *testing.T) {
	agg, store, _, userID := newTestAggregator(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan uuid.UUID, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, _, err := agg.Start(ctx, userID)
			if err == nil {
				ids <- sess.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uuid.UUID]bool)
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1, "all concurrent starts must land on one session")
	assert.Len(t, store.sessions, 1)
}
