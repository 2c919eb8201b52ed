package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Sahadipankar/PresenSense/internal/config"
	"github.com/Sahadipankar/PresenSense/internal/models"
	"github.com/Sahadipankar/PresenSense/internal/recognition"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist. Statements are
// idempotent so every instance can run it at startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			photo_key TEXT NOT NULL DEFAULT '',
			embedding vector(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_user_time ON attendance (user_id, recorded_at DESC)`,
		`CREATE TABLE IF NOT EXISTS emotion_sessions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			total_attention_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			attention_percentage DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_session ON emotion_sessions (user_id) WHERE ended_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS emotion_records (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES emotion_sessions(id) ON DELETE CASCADE,
			recorded_at TIMESTAMPTZ NOT NULL,
			dominant_emotion TEXT NOT NULL,
			emotion_confidence DOUBLE PRECISION NOT NULL,
			is_looking_at_camera BOOLEAN NOT NULL,
			eye_contact_confidence DOUBLE PRECISION NOT NULL,
			bbox_x INTEGER,
			bbox_y INTEGER,
			bbox_width INTEGER,
			bbox_height INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emotion_records_session ON emotion_records (session_id, recorded_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, name, photoKey string, embedding []float32) (*models.User, error) {
	u := &models.User{
		ID:        uuid.New(),
		Name:      name,
		PhotoKey:  photoKey,
		Embedding: embedding,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, name, photo_key, embedding) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		u.ID, u.Name, u.PhotoKey, pgvector.NewVector(embedding),
	).Scan(&u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, photo_key, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.PhotoKey, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, photo_key, created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.PhotoKey, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

// Candidates returns all stored identities with embeddings in registration
// order. The order is load-bearing: the resolver's tie-break picks the
// earliest-registered user on equal scores.
func (s *PostgresStore) Candidates(ctx context.Context) ([]recognition.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, embedding FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []recognition.Candidate
	for rows.Next() {
		var c recognition.Candidate
		var vec pgvector.Vector
		if err := rows.Scan(&c.UserID, &c.Name, &vec); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Embedding = vec.Slice()
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// --- Attendance ---

// RecordOnce inserts an attendance event for the user unless one exists at
// or after cutoff. The check and insert run in one transaction under a
// per-user advisory lock, so concurrent requests for the same user cannot
// both insert within the window.
func (s *PostgresStore) RecordOnce(ctx context.Context, userID uuid.UUID, cutoff time.Time) (*models.AttendanceEvent, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin attendance tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('attendance:' || $1::text, 0))`, userID); err != nil {
		return nil, false, fmt.Errorf("acquire attendance lock: %w", err)
	}

	ev := &models.AttendanceEvent{UserID: userID}
	err = tx.QueryRow(ctx,
		`SELECT id, recorded_at FROM attendance
		 WHERE user_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at DESC LIMIT 1`,
		userID, cutoff,
	).Scan(&ev.ID, &ev.RecordedAt)
	if err == nil {
		// In-window event exists: deduplicate.
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit attendance tx: %w", err)
		}
		return ev, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("check recent attendance: %w", err)
	}

	ev.ID = uuid.New()
	err = tx.QueryRow(ctx,
		`INSERT INTO attendance (id, user_id) VALUES ($1, $2) RETURNING recorded_at`,
		ev.ID, userID,
	).Scan(&ev.RecordedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert attendance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit attendance tx: %w", err)
	}
	return ev, true, nil
}

// ListAttendance returns attendance entries joined with user names,
// most recent first.
func (s *PostgresStore) ListAttendance(ctx context.Context, userID *uuid.UUID, from, to *time.Time, limit int) ([]models.AttendanceEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if userID != nil {
		where += fmt.Sprintf(" AND a.user_id = $%d", argIdx)
		args = append(args, *userID)
		argIdx++
	}
	if from != nil {
		where += fmt.Sprintf(" AND a.recorded_at >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		where += fmt.Sprintf(" AND a.recorded_at <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}

	query := fmt.Sprintf(
		`SELECT a.id, a.user_id, u.name, a.recorded_at
		 FROM attendance a JOIN users u ON u.id = a.user_id
		 %s ORDER BY a.recorded_at DESC LIMIT $%d`, where, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var entries []models.AttendanceEntry
	for rows.Next() {
		var e models.AttendanceEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan attendance entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *PostgresStore) DeleteAttendanceEvent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attendance event not found")
	}
	return nil
}

// DeleteAttendance removes attendance events, optionally scoped to a user.
// Returns the number of deleted rows.
func (s *PostgresStore) DeleteAttendance(ctx context.Context, userID *uuid.UUID) (int64, error) {
	var tag pgconn.CommandTag
	var err error
	if userID != nil {
		tag, err = s.pool.Exec(ctx, `DELETE FROM attendance WHERE user_id = $1`, *userID)
	} else {
		tag, err = s.pool.Exec(ctx, `DELETE FROM attendance`)
	}
	if err != nil {
		return 0, fmt.Errorf("delete attendance: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Emotion sessions ---

// StartSession returns the open session for the user, creating one if none
// exists. The open-session check and insert run under a per-user advisory
// lock so concurrent starts land on the same session.
func (s *PostgresStore) StartSession(ctx context.Context, userID uuid.UUID, startedAt time.Time) (*models.EmotionSession, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin session tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('session:' || $1::text, 0))`, userID); err != nil {
		return nil, false, fmt.Errorf("acquire session lock: %w", err)
	}

	sess := &models.EmotionSession{UserID: userID}
	err = tx.QueryRow(ctx,
		`SELECT id, started_at FROM emotion_sessions
		 WHERE user_id = $1 AND ended_at IS NULL`,
		userID,
	).Scan(&sess.ID, &sess.StartedAt)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit session tx: %w", err)
		}
		return sess, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("check open session: %w", err)
	}

	sess.ID = uuid.New()
	sess.StartedAt = startedAt
	if _, err := tx.Exec(ctx,
		`INSERT INTO emotion_sessions (id, user_id, started_at) VALUES ($1, $2, $3)`,
		sess.ID, userID, startedAt); err != nil {
		return nil, false, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit session tx: %w", err)
	}
	return sess, true, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.EmotionSession, error) {
	sess := &models.EmotionSession{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, started_at, ended_at, total_attention_seconds, total_duration_seconds, attention_percentage
		 FROM emotion_sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.StartedAt, &sess.EndedAt,
		&sess.TotalAttentionSecs, &sess.TotalDurationSecs, &sess.AttentionPercentage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) CloseSession(ctx context.Context, id uuid.UUID, endedAt time.Time, attentionSecs, durationSecs, attentionPct float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE emotion_sessions
		 SET ended_at = $1, total_attention_seconds = $2, total_duration_seconds = $3, attention_percentage = $4
		 WHERE id = $5 AND ended_at IS NULL`,
		endedAt, attentionSecs, durationSecs, attentionPct, id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session not open")
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID *uuid.UUID, limit int) ([]models.EmotionSession, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if userID != nil {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, started_at, ended_at, total_attention_seconds, total_duration_seconds, attention_percentage
			 FROM emotion_sessions WHERE user_id = $1 ORDER BY started_at DESC LIMIT $2`, *userID, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, started_at, ended_at, total_attention_seconds, total_duration_seconds, attention_percentage
			 FROM emotion_sessions ORDER BY started_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.EmotionSession
	for rows.Next() {
		var sess models.EmotionSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.StartedAt, &sess.EndedAt,
			&sess.TotalAttentionSecs, &sess.TotalDurationSecs, &sess.AttentionPercentage); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// --- Emotion records ---

func (s *PostgresStore) AddEmotionRecord(ctx context.Context, rec *models.EmotionRecord) error {
	var x, y, w, h *int
	if rec.FaceBBox != nil {
		x, y, w, h = &rec.FaceBBox.X, &rec.FaceBBox.Y, &rec.FaceBBox.Width, &rec.FaceBBox.Height
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO emotion_records
		 (id, session_id, recorded_at, dominant_emotion, emotion_confidence, is_looking_at_camera, eye_contact_confidence, bbox_x, bbox_y, bbox_width, bbox_height)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.SessionID, rec.RecordedAt, rec.DominantEmotion, rec.EmotionConfidence,
		rec.IsLookingAtCamera, rec.EyeContactConfidence, x, y, w, h)
	if err != nil {
		return fmt.Errorf("insert emotion record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEmotionRecords(ctx context.Context, sessionID uuid.UUID) ([]models.EmotionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, recorded_at, dominant_emotion, emotion_confidence, is_looking_at_camera, eye_contact_confidence, bbox_x, bbox_y, bbox_width, bbox_height
		 FROM emotion_records WHERE session_id = $1 ORDER BY recorded_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list emotion records: %w", err)
	}
	defer rows.Close()

	var records []models.EmotionRecord
	for rows.Next() {
		var rec models.EmotionRecord
		var x, y, w, h *int
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.RecordedAt, &rec.DominantEmotion,
			&rec.EmotionConfidence, &rec.IsLookingAtCamera, &rec.EyeContactConfidence, &x, &y, &w, &h); err != nil {
			return nil, fmt.Errorf("scan emotion record: %w", err)
		}
		if x != nil && y != nil && w != nil && h != nil {
			rec.FaceBBox = &models.BoundingBox{X: *x, Y: *y, Width: *w, Height: *h}
		}
		records = append(records, rec)
	}
	return records, nil
}

// CountOpenSessions feeds the open-sessions gauge.
func (s *PostgresStore) CountOpenSessions(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM emotion_sessions WHERE ended_at IS NULL`).Scan(&count)
	return count, err
}
