package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"parking-availability-backend/internal/auth"
	"parking-availability-backend/internal/fee"
	"parking-availability-backend/internal/model"
	"parking-availability-backend/internal/notification"
	"parking-availability-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	tokens  *auth.TokenManager
	rate    float64
	webpush *webpush.Options
	pool    *notification.WorkerPool
}

// NewHandler creates a new API handler. The worker pool may be nil when push
// notifications are not configured; freed-slot events are then dropped.
func NewHandler(s store.Store, tokens *auth.TokenManager, ratePerHalfHour float64, webpushOptions *webpush.Options, pool *notification.WorkerPool) *Handler {
	return &Handler{
		store:   s,
		tokens:  tokens,
		rate:    ratePerHalfHour,
		webpush: webpushOptions,
		pool:    pool,
	}
}

// estimateFee returns the amount due as of now for an open session, or the
// final amount for a closed one.
func (h *Handler) estimateFee(session *model.Session) float64 {
	end := time.Now().UTC()
	if session.EndTime != nil {
		end = *session.EndTime
	}
	return fee.Calculate(h.rate, session.StartTime, end)
}

// dispatchFreed hands a freed slot to the notification pool, if any.
func (h *Handler) dispatchFreed(slotID int64) {
	if h.pool != nil {
		h.pool.Dispatch(slotID)
	}
}
