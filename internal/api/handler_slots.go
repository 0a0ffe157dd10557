package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"parking-availability-backend/internal/geo"
	"parking-availability-backend/internal/model"
	"parking-availability-backend/internal/mw"
	"parking-availability-backend/internal/store"
)

// GetSlot handles GET /api/slots/:slot_id: the slot, its resolved status,
// and the caller's active session on it when authenticated.
func (h *Handler) GetSlot(c *gin.Context) {
	slotID, err := strconv.ParseInt(c.Param("slot_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid slot ID"})
		return
	}

	var slot model.Slot
	if err := h.store.DB().Preload("Area").First(&slot, slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve slot"})
		}
		return
	}

	latest, err := h.store.LatestObservation(c.Request.Context(), slot.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve slot status"})
		return
	}

	resp := gin.H{
		"slot":         slot,
		"area_name":    slot.Area.Name,
		"is_available": latest == nil || !latest.Occupied,
	}
	if latest != nil {
		resp["latest_observation"] = latest
	}

	// Authenticated callers also get their active session and a running
	// fee estimate.
	if userID, ok := mw.UserID(c); ok {
		session, err := h.store.ActiveSession(c.Request.Context(), userID, slot.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up session"})
			return
		}
		if session != nil {
			resp["active_session"] = session
			resp["estimated_fee"] = h.estimateFee(session)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// availableSlotResponse is one entry of the available-slots listing.
type availableSlotResponse struct {
	SlotID      int64    `json:"slot_id"`
	Code        string   `json:"code"`
	Area        string   `json:"area"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Handicapped bool     `json:"handicapped"`
	ReservedFor string   `json:"reserved_for,omitempty"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
}

// GetAvailableSlots handles GET /api/slots/available: all available slots
// with coordinates, optionally filtered to a radius around the caller's
// position (lat, lng, radius_km query parameters).
func (h *Handler) GetAvailableSlots(c *gin.Context) {
	var userLat, userLng float64
	var withDistance bool
	radiusKm := 2.0

	if latStr, lngStr := c.Query("lat"), c.Query("lng"); latStr != "" && lngStr != "" {
		var err1, err2 error
		userLat, err1 = strconv.ParseFloat(latStr, 64)
		userLng, err2 = strconv.ParseFloat(lngStr, 64)
		if err1 != nil || err2 != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid lat/lng"})
			return
		}
		withDistance = true
		if rStr := c.Query("radius_km"); rStr != "" {
			r, err := strconv.ParseFloat(rStr, 64)
			if err != nil || r <= 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid radius_km"})
				return
			}
			radiusKm = r
		}
	}

	var slots []model.Slot
	if err := h.store.DB().Preload("Area").
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Find(&slots).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve slots"})
		return
	}

	response := make([]availableSlotResponse, 0, len(slots))
	for _, slot := range slots {
		available, err := h.store.IsAvailable(c.Request.Context(), slot.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve slot status"})
			return
		}
		if !available {
			continue
		}

		entry := availableSlotResponse{
			SlotID:      slot.ID,
			Code:        slot.Code,
			Area:        slot.Area.Name,
			Latitude:    slot.Latitude,
			Longitude:   slot.Longitude,
			Handicapped: slot.Handicapped,
			ReservedFor: slot.ReservedFor,
		}
		if withDistance {
			d := geo.DistanceKm(userLat, userLng, *slot.Latitude, *slot.Longitude)
			if d > radiusKm {
				continue
			}
			entry.DistanceKm = &d
		}
		response = append(response, entry)
	}

	c.JSON(http.StatusOK, gin.H{"slots": response})
}

// postObservationRequest is the body of a simulated sensor update.
type postObservationRequest struct {
	Occupied   bool       `json:"occupied"`
	SensorCode string     `json:"sensor_code"`
	Timestamp  *time.Time `json:"timestamp"`
}

// PostObservation handles POST /api/slots/:slot_id/observations: record one
// occupancy reading, the simulated-IoT entry point of the web layer.
func (h *Handler) PostObservation(c *gin.Context) {
	slotID, err := strconv.ParseInt(c.Param("slot_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid slot ID"})
		return
	}

	var req postObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := store.AppendParams{SlotID: slotID, Occupied: req.Occupied}
	if req.Timestamp != nil {
		params.Timestamp = *req.Timestamp
	}
	if req.SensorCode != "" {
		sensor, err := h.store.GetOrCreateSensor(c.Request.Context(), req.SensorCode, slotID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve sensor"})
			return
		}
		params.SensorID = &sensor.ID
	}

	obs, freed, err := h.store.AppendObservation(c.Request.Context(), params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to record observation"})
		}
		return
	}
	if freed {
		h.dispatchFreed(slotID)
	}

	c.JSON(http.StatusCreated, obs)
}

// GetRecentObservations handles GET /api/observations/recent for the
// dashboard's activity feed.
func (h *Handler) GetRecentObservations(c *gin.Context) {
	limit := 10
	if lStr := c.Query("limit"); lStr != "" {
		l, err := strconv.Atoi(lStr)
		if err != nil || l <= 0 || l > 100 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = l
	}

	obs, err := h.store.RecentObservations(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve observations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"observations": obs})
}
