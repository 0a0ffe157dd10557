package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"parking-availability-backend/internal/model"
)

// AreaResponse represents the API response for a single area.
type AreaResponse struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	AreaType       model.AreaType `json:"area_type"`
	TotalCapacity  int            `json:"total_capacity"`
	OccupiedCount  int            `json:"occupied_count"`
	AvailableCount int            `json:"available_count"`
	TotalSlots     int64          `json:"total_slots"`
}

// GetAreas handles the GET /api/areas request: every area with its cached
// occupancy counts plus the actual slot total.
func (h *Handler) GetAreas(c *gin.Context) {
	db := h.store.DB()

	var areas []model.Area
	if err := db.Find(&areas).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve areas"})
		return
	}

	type aggRow struct {
		AreaID     int64
		TotalSlots int64
	}
	var aggs []aggRow
	if err := db.
		Model(&model.Slot{}).
		Select("area_id as area_id, COUNT(*) as total_slots").
		Group("area_id").
		Scan(&aggs).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate slots"})
		return
	}

	aggMap := make(map[int64]aggRow, len(aggs))
	for _, a := range aggs {
		aggMap[a.AreaID] = a
	}

	responses := make([]AreaResponse, 0, len(areas))
	for _, a := range areas {
		responses = append(responses, AreaResponse{
			ID:             a.ID,
			Name:           a.Name,
			AreaType:       a.AreaType,
			TotalCapacity:  a.TotalCapacity,
			OccupiedCount:  a.OccupiedCount,
			AvailableCount: a.AvailableCount(),
			TotalSlots:     aggMap[a.ID].TotalSlots,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// slotStatusResponse is the flattened per-slot structure for area listings.
type slotStatusResponse struct {
	model.Slot
	IsAvailable bool               `json:"is_available"`
	Latest      *model.Observation `json:"latest_observation,omitempty"`
}

// GetAreaSlots handles GET /api/areas/:area_id/slots: the current status of
// every slot in the area, resolved latest-wins from the observation log.
func (h *Handler) GetAreaSlots(c *gin.Context) {
	h.areaSlots(c, false)
}

// GetAreaFreeSlots handles GET /api/areas/:area_id/free: only the slots
// whose latest observation is not occupied.
func (h *Handler) GetAreaFreeSlots(c *gin.Context) {
	h.areaSlots(c, true)
}

func (h *Handler) areaSlots(c *gin.Context, freeOnly bool) {
	areaID, err := strconv.ParseInt(c.Param("area_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid area ID"})
		return
	}

	db := h.store.DB()

	var area model.Area
	if err := db.First(&area, areaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Area not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve area"})
		}
		return
	}

	var slots []model.Slot
	if err := db.Where("area_id = ?", areaID).Order("code").Find(&slots).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve slots"})
		return
	}

	response := make([]slotStatusResponse, 0, len(slots))
	for _, slot := range slots {
		latest, err := h.store.LatestObservation(c.Request.Context(), slot.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve slot status"})
			return
		}
		available := latest == nil || !latest.Occupied
		if freeOnly && !available {
			continue
		}
		response = append(response, slotStatusResponse{
			Slot:        slot,
			IsAvailable: available,
			Latest:      latest,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"area":  AreaResponse{ID: area.ID, Name: area.Name, AreaType: area.AreaType, TotalCapacity: area.TotalCapacity, OccupiedCount: area.OccupiedCount, AvailableCount: area.AvailableCount()},
		"slots": response,
	})
}
