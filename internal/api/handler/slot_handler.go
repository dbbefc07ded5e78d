package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkingspace/internal/domain"
	"parkingspace/internal/service"
)

type SlotHandler struct {
	parkingService *service.ParkingService
}

func NewSlotHandler(ps *service.ParkingService) *SlotHandler {
	return &SlotHandler{parkingService: ps}
}

// GET /api/v1/slots
func (h *SlotHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	slots, err := h.parkingService.ListSlots(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "could not list parking slots")
		return
	}
	c.JSON(http.StatusOK, slots)
}

// POST /api/v1/slots
func (h *SlotHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var dto domain.CreateSlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slot, err := h.parkingService.CreateSlot(c.Request.Context(), actor, dto)
	if err != nil {
		respondError(c, err, "could not create parking slot")
		return
	}
	c.JSON(http.StatusCreated, slot)
}

// GET /api/v1/slots/:id
func (h *SlotHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	slot, err := h.parkingService.GetSlot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "could not load parking slot")
		return
	}
	c.JSON(http.StatusOK, slot)
}
