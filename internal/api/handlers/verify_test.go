package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sahadipankar/PresenSense/internal/models"
	"github.com/Sahadipankar/PresenSense/internal/recognition"
	"github.com/Sahadipankar/PresenSense/internal/vision"
	"github.com/Sahadipankar/PresenSense/pkg/dto"
)

type stubSource struct {
	candidates []recognition.Candidate
}

func (s *stubSource) Candidates(ctx context.Context) ([]recognition.Candidate, error) {
	return s.candidates, nil
}

// stubLog always reports an existing in-window event, so accepted matches
// take the dedup path and never publish.
type stubLog struct {
	event models.AttendanceEvent
}

func (l *stubLog) RecordOnce(ctx context.Context, userID uuid.UUID, cutoff time.Time) (*models.AttendanceEvent, bool, error) {
	ev := l.event
	ev.UserID = userID
	return &ev, false, nil
}

func newVerifyRouter(t *testing.T, h *VerifyHandler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/verify", h.Verify)
	return r
}

func multipartImage(t *testing.T, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "probe.jpg")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestVerifyHandler(t *testing.T) {
	knownID := uuid.New()
	source := &stubSource{candidates: []recognition.Candidate{
		{UserID: knownID, Name: "alice", Embedding: []float32{1, 0}},
	}}
	log := &stubLog{event: models.AttendanceEvent{ID: uuid.New(), RecordedAt: time.Now()}}
	gate := recognition.NewGate(recognition.NewResolver(source), log, 0.6, 5*time.Minute)

	t.Run("missing image", func(t *testing.T) {
		h := NewVerifyHandler(gate, nil)
		h.EmbedFn = func([]byte) ([]float32, float32, error) { return []float32{1, 0}, 0.9, nil }

		req := httptest.NewRequest(http.MethodPost, "/verify", nil)
		rec := httptest.NewRecorder()
		newVerifyRouter(t, h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("vision engine unavailable", func(t *testing.T) {
		h := NewVerifyHandler(gate, nil)

		body, contentType := multipartImage(t, []byte("jpeg"))
		req := httptest.NewRequest(http.MethodPost, "/verify", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newVerifyRouter(t, h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("no face is a client error", func(t *testing.T) {
		h := NewVerifyHandler(gate, nil)
		h.EmbedFn = func([]byte) ([]float32, float32, error) { return nil, 0, vision.ErrNoFaceDetected }

		body, contentType := multipartImage(t, []byte("jpeg"))
		req := httptest.NewRequest(http.MethodPost, "/verify", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newVerifyRouter(t, h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no registered users", func(t *testing.T) {
		emptyGate := recognition.NewGate(recognition.NewResolver(&stubSource{}), log, 0.6, 5*time.Minute)
		h := NewVerifyHandler(emptyGate, nil)
		h.EmbedFn = func([]byte) ([]float32, float32, error) { return []float32{1, 0}, 0.9, nil }

		body, contentType := multipartImage(t, []byte("jpeg"))
		req := httptest.NewRequest(http.MethodPost, "/verify", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newVerifyRouter(t, h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("below threshold reports best score", func(t *testing.T) {
		h := NewVerifyHandler(gate, nil)
		// Orthogonal to the stored embedding: score 0.
		h.EmbedFn = func([]byte) ([]float32, float32, error) { return []float32{0, 1}, 0.9, nil }

		body, contentType := multipartImage(t, []byte("jpeg"))
		req := httptest.NewRequest(http.MethodPost, "/verify", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newVerifyRouter(t, h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp dto.NoMatchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.InDelta(t, 0.0, resp.BestScore, 1e-6)
		assert.InDelta(t, 0.6, resp.Threshold, 1e-6)
	})

	t.Run("accepted match deduped in window", func(t *testing.T) {
		h := NewVerifyHandler(gate, nil)
		h.EmbedFn = func([]byte) ([]float32, float32, error) { return []float32{1, 0}, 0.9, nil }

		body, contentType := multipartImage(t, []byte("jpeg"))
		req := httptest.NewRequest(http.MethodPost, "/verify", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newVerifyRouter(t, h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp dto.VerifyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, knownID, resp.UserID)
		assert.Equal(t, "alice", resp.Name)
		assert.True(t, resp.Dedup)
		assert.False(t, resp.Created)
		assert.InDelta(t, 1.0, resp.Score, 1e-6)
	})
}
