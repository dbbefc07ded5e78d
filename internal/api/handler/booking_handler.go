package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"parkingspace/internal/domain"
	"parkingspace/internal/service"
)

type BookingHandler struct {
	parkingService *service.ParkingService
	receiptService *service.ReceiptService
}

func NewBookingHandler(ps *service.ParkingService, rs *service.ReceiptService) *BookingHandler {
	return &BookingHandler{parkingService: ps, receiptService: rs}
}

// POST /api/v1/bookings
func (h *BookingHandler) Book(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var dto domain.BookSlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.parkingService.Book(c.Request.Context(), actor, dto)
	if err != nil {
		respondError(c, err, "could not book parking slot")
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /api/v1/bookings/current
func (h *BookingHandler) Current(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	views, err := h.parkingService.ListCurrentBookings(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "could not list current bookings")
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /api/v1/bookings/history
func (h *BookingHandler) History(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	views, err := h.parkingService.ListBookingHistory(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "could not list booking history")
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /api/v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.parkingService.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "could not load booking")
		return
	}
	c.JSON(http.StatusOK, view)
}

// GET /api/v1/bookings/:id/receipt
func (h *BookingHandler) Receipt(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.parkingService.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "could not load booking")
		return
	}
	pdf, err := h.receiptService.Render(view)
	if err != nil {
		respondError(c, err, "could not render receipt")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%d.pdf"`, view.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// POST /api/v1/bookings/checkout
func (h *BookingHandler) RequestCheckout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	view, err := h.parkingService.RequestCheckout(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "could not request checkout")
		return
	}
	c.JSON(http.StatusOK, view)
}

// GET /api/v1/bookings/checkout-queue
func (h *BookingHandler) CheckoutQueue(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	views, err := h.parkingService.ListCheckoutQueue(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "could not list checkout requests")
		return
	}
	c.JSON(http.StatusOK, views)
}

// POST /api/v1/bookings/:id/accept-checkout
func (h *BookingHandler) AcceptCheckout(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.parkingService.AcceptCheckout(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "could not accept checkout")
		return
	}
	c.JSON(http.StatusCreated, view)
}
