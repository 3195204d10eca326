package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/clinic-webhook/internal/domain/models"
)

// BookingLister returns the bookings to show on the dashboard.
type BookingLister interface {
	Bookings(ctx context.Context) ([]models.Booking, error)
}

// BookingHandler serves the bookings API and dashboard.
type BookingHandler struct {
	bookings  BookingLister
	dashboard []byte
	logger    *zap.Logger
}

// NewBookingHandler wires the booking endpoints.
func NewBookingHandler(bookings BookingLister, dashboard []byte, logger *zap.Logger) *BookingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingHandler{bookings: bookings, dashboard: dashboard, logger: logger}
}

// List returns all bookings as JSON.
func (h *BookingHandler) List(c *gin.Context) {
	bookings, err := h.bookings.Bookings(c.Request.Context())
	if err != nil {
		h.logger.Error("fetch bookings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// Dashboard serves the static bookings page.
func (h *BookingHandler) Dashboard(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.dashboard)
}
