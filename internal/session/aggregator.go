package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Sahadipankar/PresenSense/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session already ended")
)

// Store is the persistence contract for sessions and their records.
// StartSession must be atomic per user: when an open session exists it is
// returned instead of creating a second one, even under concurrent calls.
type Store interface {
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
	StartSession(ctx context.Context, userID uuid.UUID, startedAt time.Time) (*models.EmotionSession, bool, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.EmotionSession, error)
	CloseSession(ctx context.Context, id uuid.UUID, endedAt time.Time, attentionSecs, durationSecs, attentionPct float64) error
	AddEmotionRecord(ctx context.Context, rec *models.EmotionRecord) error
	ListEmotionRecords(ctx context.Context, sessionID uuid.UUID) ([]models.EmotionRecord, error)
	ListSessions(ctx context.Context, userID *uuid.UUID, limit int) ([]models.EmotionSession, error)
}

// FrameResult is the vision capability's per-frame classification output.
type FrameResult struct {
	FaceBBox             *models.BoundingBox
	DominantEmotion      models.Emotion
	EmotionConfidence    float64
	IsLookingAtCamera    bool
	EyeContactConfidence float64
}

// Summary holds the frozen aggregates of an ended session.
type Summary struct {
	SessionID           uuid.UUID `json:"session_id"`
	TotalDurationSecs   float64   `json:"total_duration_seconds"`
	AttentionSecs       float64   `json:"attention_duration_seconds"`
	AttentionPercentage float64   `json:"attention_percentage"`
	TotalRecords        int       `json:"total_emotion_records"`
}

// Stats is a read-only projection of a session, open or closed. Duration
// for open sessions is measured against now, not a frozen end time.
type Stats struct {
	SessionID           uuid.UUID              `json:"session_id"`
	Active              bool                   `json:"active"`
	DurationSecs        float64                `json:"session_duration_seconds"`
	AttentionSecs       float64                `json:"attention_duration_seconds"`
	AttentionPercentage float64                `json:"attention_percentage"`
	TotalRecords        int                    `json:"total_records"`
	EmotionDistribution map[models.Emotion]int `json:"emotion_distribution"`
	RecentRecords       []models.EmotionRecord `json:"recent_records"`
}

// recentRecordLimit bounds the recent-activity slice in Stats.
const recentRecordLimit = 10

// Aggregator manages the emotion session lifecycle:
// Closed -> Open (start) -> accumulate records -> Closed (end, stats frozen).
type Aggregator struct {
	store Store
	// slice is the nominal attention contribution of one looking-at-camera
	// record. Frame sampling is assumed uniform; inter-frame time is not
	// measured.
	slice     time.Duration
	listLimit int
	now       func() time.Time
}

func NewAggregator(store Store, attentionSlice time.Duration, listLimit int) *Aggregator {
	return &Aggregator{
		store:     store,
		slice:     attentionSlice,
		listLimit: listLimit,
		now:       time.Now,
	}
}

// Start opens a session for the user, or returns the already-open one.
// The returned bool is true when a new session was created.
func (a *Aggregator) Start(ctx context.Context, userID uuid.UUID) (*models.EmotionSession, bool, error) {
	exists, err := a.store.UserExists(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, false, ErrUserNotFound
	}

	sess, created, err := a.store.StartSession(ctx, userID, a.now())
	if err != nil {
		return nil, false, fmt.Errorf("start session: %w", err)
	}
	return sess, created, nil
}

// RecordFrame appends one analyzed frame to an open session. Aggregates are
// not recomputed here; they are derived on demand or at close.
func (a *Aggregator) RecordFrame(ctx context.Context, sessionID uuid.UUID, result FrameResult) (*models.EmotionRecord, error) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !sess.Open() {
		return nil, ErrSessionClosed
	}

	rec := &models.EmotionRecord{
		ID:                   uuid.New(),
		SessionID:            sessionID,
		RecordedAt:           a.now(),
		DominantEmotion:      result.DominantEmotion,
		EmotionConfidence:    result.EmotionConfidence,
		IsLookingAtCamera:    result.IsLookingAtCamera,
		EyeContactConfidence: result.EyeContactConfidence,
		FaceBBox:             result.FaceBBox,
	}
	if err := a.store.AddEmotionRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("add emotion record: %w", err)
	}
	return rec, nil
}

// End closes an open session and freezes its aggregates. Ending a session
// twice fails with ErrSessionClosed.
func (a *Aggregator) End(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !sess.Open() {
		return nil, ErrSessionClosed
	}

	endedAt := a.now()
	duration := endedAt.Sub(sess.StartedAt).Seconds()

	records, err := a.store.ListEmotionRecords(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load emotion records: %w", err)
	}

	attention := a.attentionSeconds(records)
	pct := attentionPercentage(attention, duration)

	if err := a.store.CloseSession(ctx, sessionID, endedAt, attention, duration, pct); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}

	return &Summary{
		SessionID:           sessionID,
		TotalDurationSecs:   duration,
		AttentionSecs:       attention,
		AttentionPercentage: pct,
		TotalRecords:        len(records),
	}, nil
}

// Stats computes the current projection of a session without mutating it.
func (a *Aggregator) Stats(ctx context.Context, sessionID uuid.UUID) (*Stats, error) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	records, err := a.store.ListEmotionRecords(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load emotion records: %w", err)
	}

	var duration float64
	if sess.Open() {
		duration = a.now().Sub(sess.StartedAt).Seconds()
	} else {
		duration = sess.EndedAt.Sub(sess.StartedAt).Seconds()
	}

	attention := a.attentionSeconds(records)
	dist := make(map[models.Emotion]int)
	for _, r := range records {
		dist[r.DominantEmotion]++
	}

	recent := records
	if len(recent) > recentRecordLimit {
		recent = recent[len(recent)-recentRecordLimit:]
	}

	return &Stats{
		SessionID:           sessionID,
		Active:              sess.Open(),
		DurationSecs:        duration,
		AttentionSecs:       attention,
		AttentionPercentage: attentionPercentage(attention, duration),
		TotalRecords:        len(records),
		EmotionDistribution: dist,
		RecentRecords:       recent,
	}, nil
}

// Get loads a session by id.
func (a *Aggregator) Get(ctx context.Context, sessionID uuid.UUID) (*models.EmotionSession, error) {
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// List returns sessions, optionally filtered by user, most recent first.
func (a *Aggregator) List(ctx context.Context, userID *uuid.UUID) ([]models.EmotionSession, error) {
	return a.store.ListSessions(ctx, userID, a.listLimit)
}

func (a *Aggregator) attentionSeconds(records []models.EmotionRecord) float64 {
	var total float64
	for _, r := range records {
		if r.IsLookingAtCamera {
			total += a.slice.Seconds()
		}
	}
	return total
}

func attentionPercentage(attention, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return attention / duration * 100
}
