package handlers

import (
	"net/http"
	"strconv"

	"ropewalk/internal/models"

	"github.com/gin-gonic/gin"
)

// CheckIn - POST /api/checkin
func (h *Handlers) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.CheckIns.CheckIn(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to check in")
		return
	}

	// A refused check-in is a result, not an error
	c.JSON(http.StatusOK, response)
}

// SyncCheckIns - POST /api/checkin/sync
// Merges one device's offline batch; the response covers every submitted item.
func (h *Handlers) SyncCheckIns(c *gin.Context) {
	var req models.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.CheckIns.Sync(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to sync check-ins")
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetCapacity - GET /api/events/:id/capacity
func (h *Handlers) GetCapacity(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	response, err := h.services.CheckIns.CapacityInfo(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err, "Failed to get capacity")
		return
	}

	c.JSON(http.StatusOK, response)
}

// ListAttendees - GET /api/events/:id/attendees
func (h *Handlers) ListAttendees(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	searchTerm := c.Query("search")
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	response, err := h.services.CheckIns.Attendees(c.Request.Context(), eventID, searchTerm, status, page, pageSize)
	if err != nil {
		respondError(c, err, "Failed to list attendees")
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetDashboard - GET /api/events/:id/dashboard
func (h *Handlers) GetDashboard(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	response, err := h.services.CheckIns.Dashboard(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err, "Failed to get dashboard")
		return
	}

	c.JSON(http.StatusOK, response)
}
