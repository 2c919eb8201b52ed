package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Sahadipankar/PresenSense/internal/models"
	"github.com/Sahadipankar/PresenSense/internal/observability"
	"github.com/Sahadipankar/PresenSense/internal/queue"
	"github.com/Sahadipankar/PresenSense/internal/session"
	"github.com/Sahadipankar/PresenSense/internal/vision"
	"github.com/Sahadipankar/PresenSense/pkg/dto"
)

type SessionHandler struct {
	aggregator *session.Aggregator
	producer   *queue.Producer
	// AnalyzeFn classifies emotion and eye contact of a frame.
	AnalyzeFn func(imageData []byte) (*vision.FrameAnalysis, error)
}

func NewSessionHandler(aggregator *session.Aggregator, producer *queue.Producer) *SessionHandler {
	return &SessionHandler{aggregator: aggregator, producer: producer}
}

// Start opens a monitoring session for a user. Starting while a session
// is already open returns the open session instead of an error.
func (h *SessionHandler) Start(c *gin.Context) {
	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, created, err := h.aggregator.Start(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if created {
		observability.OpenSessions.Inc()
		h.publishSessionEvent(c, models.LiveEventSessionStarted, sess)
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, dto.SessionResponse{
		ID:        sess.ID,
		UserID:    sess.UserID,
		StartedAt: sess.StartedAt.Format("2006-01-02T15:04:05Z"),
		Open:      true,
		Resumed:   !created,
	})
}

// RecordFrame analyzes one monitoring frame and appends the result to the
// session.
func (h *SessionHandler) RecordFrame(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	if h.AnalyzeFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision engine not initialized"})
		return
	}

	analysis, err := h.AnalyzeFn(imageData)
	if err != nil {
		if errors.Is(err, vision.ErrNoFaceDetected) {
			observability.FramesAnalyzed.WithLabelValues("no_face").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		observability.FramesAnalyzed.WithLabelValues("error").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "analyze frame: " + err.Error()})
		return
	}

	bbox := analysis.FaceBBox
	rec, err := h.aggregator.RecordFrame(c.Request.Context(), sessionID, session.FrameResult{
		FaceBBox:             &bbox,
		DominantEmotion:      analysis.DominantEmotion,
		EmotionConfidence:    analysis.EmotionConfidence,
		IsLookingAtCamera:    analysis.IsLookingAtCamera,
		EyeContactConfidence: analysis.EyeContactConfidence,
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if errors.Is(err, session.ErrSessionClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": "session already ended"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	observability.FramesAnalyzed.WithLabelValues("ok").Inc()

	c.JSON(http.StatusCreated, dto.FrameResponse{
		SessionID:            rec.SessionID,
		DominantEmotion:      string(rec.DominantEmotion),
		EmotionConfidence:    rec.EmotionConfidence,
		IsLookingAtCamera:    rec.IsLookingAtCamera,
		EyeContactConfidence: rec.EyeContactConfidence,
		FaceBBox: &dto.BBoxResponse{
			X:      bbox.X,
			Y:      bbox.Y,
			Width:  bbox.Width,
			Height: bbox.Height,
		},
	})
}

// End closes a session and returns its frozen aggregates.
func (h *SessionHandler) End(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	summary, err := h.aggregator.End(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if errors.Is(err, session.ErrSessionClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": "session already ended"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	observability.OpenSessions.Dec()

	if sess, err := h.aggregator.Get(c.Request.Context(), sessionID); err == nil && sess != nil {
		h.publishSessionEvent(c, models.LiveEventSessionEnded, sess)
	}

	c.JSON(http.StatusOK, summary)
}

// Stats returns live or frozen aggregates for a session.
func (h *SessionHandler) Stats(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	stats, err := h.aggregator.Stats(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// List returns recent sessions, optionally filtered by user.
func (h *SessionHandler) List(c *gin.Context) {
	var userID *uuid.UUID
	if uidStr := c.Query("user_id"); uidStr != "" {
		id, err := uuid.Parse(uidStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		userID = &id
	}

	sessions, err := h.aggregator.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		var endedAt *string
		if s.EndedAt != nil {
			e := s.EndedAt.Format("2006-01-02T15:04:05Z")
			endedAt = &e
		}
		resp = append(resp, dto.SessionResponse{
			ID:                    s.ID,
			UserID:                s.UserID,
			StartedAt:             s.StartedAt.Format("2006-01-02T15:04:05Z"),
			EndedAt:               endedAt,
			TotalAttentionSeconds: s.TotalAttentionSecs,
			TotalDurationSeconds:  s.TotalDurationSecs,
			AttentionPercentage:   s.AttentionPercentage,
			Open:                  s.Open(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": resp, "total": len(resp)})
}

func (h *SessionHandler) publishSessionEvent(c *gin.Context, eventType models.LiveEventType, sess *models.EmotionSession) {
	sessionID := sess.ID
	event := models.LiveEvent{
		Type:      eventType,
		UserID:    sess.UserID,
		SessionID: &sessionID,
		Timestamp: sess.StartedAt,
	}
	if sess.EndedAt != nil {
		event.Timestamp = *sess.EndedAt
	}
	if err := h.producer.PublishLiveEvent(c.Request.Context(), event); err != nil {
		slog.Error("publish session event", "error", err, "type", eventType)
	}
}
