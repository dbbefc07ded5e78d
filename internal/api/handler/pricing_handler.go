package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkingspace/internal/domain"
	"parkingspace/internal/service"
)

type PricingHandler struct {
	pricingService *service.PricingService
}

func NewPricingHandler(ps *service.PricingService) *PricingHandler {
	return &PricingHandler{pricingService: ps}
}

// GET /api/v1/pricing
func (h *PricingHandler) Get(c *gin.Context) {
	table, err := h.pricingService.GetCurrentPricing(c.Request.Context())
	if err != nil {
		respondError(c, err, "could not load pricing")
		return
	}
	c.JSON(http.StatusOK, table)
}

// POST /api/v1/pricing
func (h *PricingHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var dto domain.UpdatePricingDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	table, err := h.pricingService.UpdatePricing(c.Request.Context(), actor, dto)
	if err != nil {
		respondError(c, err, "could not update pricing")
		return
	}
	c.JSON(http.StatusOK, table)
}
