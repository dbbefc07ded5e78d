package handler

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"parkingspace/internal/domain"
	"parkingspace/internal/service"
)

type LPRHandler struct {
	lprService *service.LPRService
	logger     *logrus.Logger
}

func NewLPRHandler(lprService *service.LPRService, logger *logrus.Logger) *LPRHandler {
	return &LPRHandler{lprService: lprService, logger: logger}
}

// POST /api/v1/lpr/recognize
func (h *LPRHandler) Recognize(c *gin.Context) {
	var req domain.LPRRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	imageBytes, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is not valid base64"})
		return
	}
	if len(imageBytes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is empty"})
		return
	}
	h.logger.WithField("bytes", len(imageBytes)).Debug("LPRHandler: received image")

	plate, confidence, err := h.lprService.RecognizePlate(c.Request.Context(), imageBytes)
	switch {
	case errors.Is(err, service.ErrPlateNotFound):
		c.JSON(http.StatusOK, domain.LPRResponseDTO{ErrorMessage: err.Error()})
		return
	case errors.Is(err, service.ErrLPRUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "plate recognition failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, domain.LPRResponseDTO{DetectedPlate: plate, Confidence: confidence})
}
