package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sahadipankar/PresenSense/internal/models"
	"github.com/Sahadipankar/PresenSense/internal/observability"
	"github.com/Sahadipankar/PresenSense/internal/queue"
	"github.com/Sahadipankar/PresenSense/internal/recognition"
	"github.com/Sahadipankar/PresenSense/internal/vision"
	"github.com/Sahadipankar/PresenSense/pkg/dto"
)

type VerifyHandler struct {
	gate     *recognition.Gate
	producer *queue.Producer
	// EmbedFn extracts the embedding of the best face in a probe image.
	EmbedFn func(imageData []byte) ([]float32, float32, error)
}

func NewVerifyHandler(gate *recognition.Gate, producer *queue.Producer) *VerifyHandler {
	return &VerifyHandler{gate: gate, producer: producer}
}

// Verify matches a probe image against registered users and records
// attendance when the match clears the threshold.
func (h *VerifyHandler) Verify(c *gin.Context) {
	decision, ok := h.verifyImage(c)
	if !ok {
		return
	}

	if decision.Created {
		h.publishAttendance(c, decision)
	}

	c.JSON(http.StatusOK, dto.VerifyResponse{
		UserID:     decision.Match.UserID,
		Name:       decision.Match.Name,
		Score:      decision.Match.Score,
		Created:    decision.Created,
		Dedup:      decision.Dedup(),
		EventID:    decision.Event.ID,
		RecordedAt: decision.Event.RecordedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// VerifyStream is the compact variant used by the camera agent: a frame
// with no detectable face or no match answers 200 with a null user so the
// agent's loop never has to branch on status codes.
func (h *VerifyHandler) VerifyStream(c *gin.Context) {
	imageData, ok := h.readImage(c)
	if !ok {
		return
	}

	embedding, _, err := h.EmbedFn(imageData)
	if err != nil {
		observability.FramesAnalyzed.WithLabelValues("no_face").Inc()
		c.JSON(http.StatusOK, dto.StreamVerifyResponse{})
		return
	}

	decision, err := h.gate.Verify(c.Request.Context(), embedding)
	if err != nil {
		var noMatch *recognition.NoMatchError
		if errors.As(err, &noMatch) {
			observability.Verifications.WithLabelValues(observability.OutcomeNoMatch).Inc()
			c.JSON(http.StatusOK, dto.StreamVerifyResponse{Score: noMatch.BestScore})
			return
		}
		if errors.Is(err, recognition.ErrNoCandidates) {
			c.JSON(http.StatusOK, dto.StreamVerifyResponse{})
			return
		}
		slog.Error("stream verify", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}

	h.countDecision(decision)
	if decision.Created {
		h.publishAttendance(c, decision)
	}

	c.JSON(http.StatusOK, dto.StreamVerifyResponse{
		UserID:  &decision.Match.UserID,
		Name:    decision.Match.Name,
		Score:   decision.Match.Score,
		Created: decision.Created,
	})
}

// verifyImage runs the shared read-embed-verify path and writes the error
// response itself when verification does not produce a decision.
func (h *VerifyHandler) verifyImage(c *gin.Context) (*recognition.Decision, bool) {
	imageData, ok := h.readImage(c)
	if !ok {
		return nil, false
	}

	embedding, _, err := h.EmbedFn(imageData)
	if err != nil {
		if errors.Is(err, vision.ErrNoFaceDetected) {
			observability.Verifications.WithLabelValues(observability.OutcomeInvalidInput).Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		observability.Verifications.WithLabelValues(observability.OutcomeError).Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return nil, false
	}

	decision, err := h.gate.Verify(c.Request.Context(), embedding)
	if err != nil {
		var noMatch *recognition.NoMatchError
		if errors.As(err, &noMatch) {
			observability.Verifications.WithLabelValues(observability.OutcomeNoMatch).Inc()
			c.JSON(http.StatusNotFound, dto.NoMatchResponse{
				Error:     "no match found",
				BestScore: noMatch.BestScore,
				Threshold: noMatch.Threshold,
			})
			return nil, false
		}
		if errors.Is(err, recognition.ErrNoCandidates) {
			observability.Verifications.WithLabelValues(observability.OutcomeNoCandidates).Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "no registered users"})
			return nil, false
		}
		observability.Verifications.WithLabelValues(observability.OutcomeError).Inc()
		slog.Error("verify", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return nil, false
	}

	h.countDecision(decision)
	return decision, true
}

func (h *VerifyHandler) readImage(c *gin.Context) ([]byte, bool) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return nil, false
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return nil, false
	}

	if h.EmbedFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision engine not initialized"})
		return nil, false
	}
	return imageData, true
}

func (h *VerifyHandler) countDecision(decision *recognition.Decision) {
	if decision.Created {
		observability.Verifications.WithLabelValues(observability.OutcomeRecorded).Inc()
		observability.AttendanceRecorded.Inc()
	} else {
		observability.Verifications.WithLabelValues(observability.OutcomeDeduped).Inc()
	}
}

func (h *VerifyHandler) publishAttendance(c *gin.Context, decision *recognition.Decision) {
	event := models.LiveEvent{
		Type:      models.LiveEventAttendance,
		UserID:    decision.Match.UserID,
		UserName:  decision.Match.Name,
		Score:     decision.Match.Score,
		Timestamp: decision.Event.RecordedAt,
	}
	if err := h.producer.PublishLiveEvent(c.Request.Context(), event); err != nil {
		slog.Error("publish attendance event", "error", err)
	}
}
