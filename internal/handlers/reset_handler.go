package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"medrisk/internal/services"
)

type ResetHandler struct {
	resets services.PasswordResetService
}

func NewResetHandler(resets services.PasswordResetService) *ResetHandler {
	return &ResetHandler{resets: resets}
}

// @Summary      Запрос сброса пароля
// @Tags         PasswordReset
// @Accept       json
// @Produce      json
// @Param        request  body      object  true  "identifier: email или телефон"
// @Success      200      {object}  map[string]string
// @Router       /password-reset/request [post]
func (h *ResetHandler) Request(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Ответ одинаков для существующего и несуществующего аккаунта —
	// даже при внутренней ошибке наружу уходит тот же текст.
	if err := h.resets.RequestReset(req.Identifier); err != nil {
		log.Printf("[password-reset][request] internal error: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "If the account exists, reset instructions were sent"})
}

func (h *ResetHandler) Confirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.resets.ResetPassword(req.Token, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	case errors.Is(err, services.ErrTokenAlreadyUsed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "token already used"})
	case errors.Is(err, services.ErrTokenExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "token expired"})
	case errors.Is(err, services.ErrTokenNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
	case errors.Is(err, services.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
	default:
		log.Printf("[password-reset][confirm] internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
	}
}
