package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkingspace/internal/service"
)

type DashboardHandler struct {
	reportService *service.ReportService
}

func NewDashboardHandler(rs *service.ReportService) *DashboardHandler {
	return &DashboardHandler{reportService: rs}
}

// GET /api/v1/dashboard/availability
func (h *DashboardHandler) Availability(c *gin.Context) {
	breakdown, err := h.reportService.AvailabilityBreakdown(c.Request.Context())
	if err != nil {
		respondError(c, err, "could not compute availability")
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

// GET /api/v1/dashboard/revenue
func (h *DashboardHandler) Revenue(c *gin.Context) {
	summary, err := h.reportService.RevenueSummary(c.Request.Context())
	if err != nil {
		respondError(c, err, "could not compute revenue")
		return
	}
	c.JSON(http.StatusOK, summary)
}
