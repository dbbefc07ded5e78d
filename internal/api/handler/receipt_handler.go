package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkingspace/internal/domain"
	"parkingspace/internal/service"
)

type ReceiptHandler struct {
	receiptService *service.ReceiptService
}

func NewReceiptHandler(rs *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receiptService: rs}
}

// POST /api/v1/receipts/verify
func (h *ReceiptHandler) Verify(c *gin.Context) {
	var dto domain.VerifyReceiptDTO
	if !bindJSON(c, &dto) {
		return
	}
	c.JSON(http.StatusOK, h.receiptService.VerifyPayload(dto.Payload))
}
