package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"parking-availability-backend/internal/model"
	"parking-availability-backend/internal/mw"
	"parking-availability-backend/internal/store"
)

// Occupy handles POST /api/slots/:slot_id/occupy: start a session on an
// available slot. An unavailable slot or an already-running session is
// reported as a conflict, not an error.
func (h *Handler) Occupy(c *gin.Context) {
	userID, ok := mw.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	slotID, err := strconv.ParseInt(c.Param("slot_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid slot ID"})
		return
	}

	result, session, err := h.store.Occupy(c.Request.Context(), userID, slotID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to occupy slot"})
		}
		return
	}

	switch result {
	case store.OccupyOK:
		c.JSON(http.StatusCreated, gin.H{"result": result, "session": session})
	default:
		c.JSON(http.StatusConflict, gin.H{"result": result})
	}
}

// Leave handles POST /api/slots/:slot_id/leave: close the caller's session
// and free the slot. The slot is freed even when no session exists; the
// result field tells the caller which case occurred.
func (h *Handler) Leave(c *gin.Context) {
	userID, ok := mw.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	slotID, err := strconv.ParseInt(c.Param("slot_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid slot ID"})
		return
	}

	// The body is optional; a bare POST leaves without feedback.
	var req struct {
		Feedback string `json:"feedback"`
	}
	_ = c.ShouldBindJSON(&req)

	result, session, err := h.store.Leave(c.Request.Context(), userID, slotID, time.Now().UTC(), req.Feedback)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave slot"})
		}
		return
	}

	// Leaving always frees the slot, so subscribers get notified either way.
	h.dispatchFreed(slotID)

	resp := gin.H{"result": result}
	if session != nil {
		resp["session"] = session
	}
	c.JSON(http.StatusOK, resp)
}

// GetSessions handles GET /api/sessions: the caller's sessions, active
// first, with a fee estimate for each open one.
func (h *Handler) GetSessions(c *gin.Context) {
	userID, ok := mw.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	sessions, err := h.store.SessionsForUser(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sessions"})
		return
	}

	type sessionEntry struct {
		Session      any      `json:"session"`
		EstimatedFee *float64 `json:"estimated_fee,omitempty"`
	}
	entries := make([]sessionEntry, 0, len(sessions))
	for i := range sessions {
		entry := sessionEntry{Session: sessions[i]}
		if sessions[i].Active() {
			estimate := h.estimateFee(&sessions[i])
			entry.EstimatedFee = &estimate
		}
		entries = append(entries, entry)
	}
	c.JSON(http.StatusOK, gin.H{"sessions": entries})
}

type payRequest struct {
	Amount float64 `json:"amount"`
}

// Pay handles POST /api/sessions/:session_id/pay. The amount charged is
// always the session's amount_due; the request's amount is echoed back so a
// client can detect a mismatch, but it is never what gets recorded.
func (h *Handler) Pay(c *gin.Context) {
	userID, ok := mw.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var owned model.Session
	if err := h.store.DB().First(&owned, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
		}
		return
	}
	if owned.UserID != userID {
		// Paying someone else's session is not supported.
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Session belongs to another user"})
		return
	}

	session, err := h.store.Pay(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":          session,
		"requested_amount": req.Amount,
		"charged_amount":   session.AmountPaid,
	})
}
