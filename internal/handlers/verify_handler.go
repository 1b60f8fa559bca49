package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medrisk/internal/middleware"
	"medrisk/internal/models"
	"medrisk/internal/services"
)

type VerifyHandler struct {
	verifications services.VerificationService
}

func NewVerifyHandler(v services.VerificationService) *VerifyHandler {
	return &VerifyHandler{verifications: v}
}

// Request — запрос кода на свой email или телефон. Канал определяет тип
// кода; адресат берётся из запроса (на этапе регистрации он ещё не
// подтверждён в профиле).
func (h *VerifyHandler) Request(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no user in context"})
		return
	}

	var req struct {
		Channel     string `json:"channel" binding:"required,oneof=sms email"`
		Destination string `json:"destination" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vType := models.VerificationPhone
	if req.Channel == "email" {
		vType = models.VerificationEmail
	}

	if err := h.verifications.Request(user.ID, vType, req.Destination); err != nil {
		if errors.Is(err, services.ErrResendThrottled) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try later"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Code sent"})
}

func (h *VerifyHandler) Confirm(c *gin.Context) {
	var req struct {
		Destination string `json:"destination" binding:"required"`
		Code        string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := h.verifications.Redeem(req.Destination, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "code expired, please resend"})
		case errors.Is(err, services.ErrTooManyAttempts):
			c.JSON(http.StatusBadRequest, gin.H{"error": "too many attempts, please resend"})
		case errors.Is(err, services.ErrCodeInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verified"})
}
