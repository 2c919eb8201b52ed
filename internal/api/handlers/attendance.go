package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Sahadipankar/PresenSense/internal/storage"
	"github.com/Sahadipankar/PresenSense/pkg/dto"
)

type AttendanceHandler struct {
	db *storage.PostgresStore
}

func NewAttendanceHandler(db *storage.PostgresStore) *AttendanceHandler {
	return &AttendanceHandler{db: db}
}

// List returns the attendance report, newest first. Supports user_id,
// from, to (RFC 3339) and limit query filters.
func (h *AttendanceHandler) List(c *gin.Context) {
	var userID *uuid.UUID
	if uidStr := c.Query("user_id"); uidStr != "" {
		id, err := uuid.Parse(uidStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		userID = &id
	}

	var from, to *time.Time
	if fromStr := c.Query("from"); fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		from = &t
	}
	if toStr := c.Query("to"); toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		to = &t
	}

	limit := 100
	if limStr := c.Query("limit"); limStr != "" {
		l, err := strconv.Atoi(limStr)
		if err != nil || l <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = l
	}

	entries, err := h.db.ListAttendance(c.Request.Context(), userID, from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AttendanceEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.AttendanceEntryResponse{
			ID:         e.ID,
			UserID:     e.UserID,
			Name:       e.UserName,
			RecordedAt: e.RecordedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"attendance": resp, "total": len(resp)})
}

// DeleteEvent removes a single attendance event.
func (h *AttendanceHandler) DeleteEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	if err := h.db.DeleteAttendanceEvent(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Clear removes attendance events, all of them or scoped to a user.
func (h *AttendanceHandler) Clear(c *gin.Context) {
	var userID *uuid.UUID
	if uidStr := c.Query("user_id"); uidStr != "" {
		id, err := uuid.Parse(uidStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		userID = &id
	}

	deleted, err := h.db.DeleteAttendance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared", "deleted": deleted})
}
