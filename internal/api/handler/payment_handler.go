package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkingspace/internal/domain"
	"parkingspace/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(ps *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: ps}
}

// POST /api/v1/payments
func (h *PaymentHandler) Record(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var dto domain.RecordPaymentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payment, err := h.paymentService.RecordPayment(c.Request.Context(), actor, dto)
	if err != nil {
		respondError(c, err, "could not record payment")
		return
	}
	c.JSON(http.StatusCreated, payment)
}
