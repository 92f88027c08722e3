package handlers

import (
	"net/http"
	"strconv"

	"ropewalk/internal/models"

	"github.com/gin-gonic/gin"
)

// RSVP - POST /api/participations/rsvp
func (h *Handlers) RSVP(c *gin.Context) {
	var req models.RSVPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.Participations.RSVP(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to RSVP")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// PurchaseTicket - POST /api/participations/tickets
// A 302 with a Location header points the client at the payment gateway.
func (h *Handlers) PurchaseTicket(c *gin.Context) {
	var req models.PurchaseTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, paymentURL, err := h.services.Participations.PurchaseTicket(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to purchase ticket")
		return
	}

	if paymentURL != "" {
		c.Header("Location", paymentURL)
		c.JSON(http.StatusFound, response)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// CancelParticipation - PATCH /api/participations/cancel
func (h *Handlers) CancelParticipation(c *gin.Context) {
	var req models.CancelParticipationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.Participations.Cancel(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to cancel participation")
		return
	}

	c.JSON(http.StatusOK, response)
}

// RefundParticipation - PATCH /api/participations/:id/refund
func (h *Handlers) RefundParticipation(c *gin.Context) {
	participationID := c.Param("id")

	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional
	_ = c.ShouldBindJSON(&body)

	response, err := h.services.Participations.Refund(c.Request.Context(), participationID, body.Reason)
	if err != nil {
		respondError(c, err, "Failed to refund participation")
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetParticipationStatus - GET /api/events/:id/participation
func (h *Handlers) GetParticipationStatus(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	response, err := h.services.Participations.Status(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err, "Failed to get participation status")
		return
	}

	c.JSON(http.StatusOK, response)
}

// OnPaymentUpdates - POST /api/payments/notifications
func (h *Handlers) OnPaymentUpdates(c *gin.Context) {
	var notification struct {
		PaymentID string `json:"paymentId" binding:"required"`
		Status    string `json:"status"`
	}
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.services.Participations.HandlePaymentNotification(c.Request.Context(), notification.PaymentID, notification.Status)
	if err != nil {
		respondError(c, err, "Failed to handle payment notification")
		return
	}

	c.Status(http.StatusOK)
}
