package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"parkingspace/internal/domain"
	"parkingspace/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(as *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// POST /auth/register
// Responds 201 with a token so the new account is signed in straight away.
func (h *AuthHandler) Register(c *gin.Context) {
	var dto domain.RegisterUserDTO
	if !bindJSON(c, &dto) {
		return
	}
	h.respondWithToken(c, http.StatusCreated, "could not register user", func(ctx context.Context) (*domain.AuthResponseDTO, error) {
		return h.authService.Register(ctx, dto)
	})
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var dto domain.LoginUserDTO
	if !bindJSON(c, &dto) {
		return
	}
	h.respondWithToken(c, http.StatusOK, "login failed", func(ctx context.Context) (*domain.AuthResponseDTO, error) {
		return h.authService.Login(ctx, dto)
	})
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, fallback string,
	issue func(context.Context) (*domain.AuthResponseDTO, error)) {
	resp, err := issue(c.Request.Context())
	if err != nil {
		respondError(c, err, fallback)
		return
	}
	c.JSON(status, resp)
}
