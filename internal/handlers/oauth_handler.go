package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"medrisk/internal/services"
)

type OAuthHandler struct {
	oauthService services.OAuthService
	cookies      CookieConfig
	successURL   string
	failureURL   string
}

func NewOAuthHandler(oauthService services.OAuthService, cookies CookieConfig, successURL, failureURL string) *OAuthHandler {
	return &OAuthHandler{
		oauthService: oauthService,
		cookies:      cookies,
		successURL:   successURL,
		failureURL:   failureURL,
	}
}

// Start — редирект на провайдера с одноразовым state.
func (h *OAuthHandler) Start(c *gin.Context) {
	provider := c.Param("provider")
	redirectURL, err := h.oauthService.Start(provider)
	if err != nil {
		log.Printf("[oauth][start] provider=%s: %v", provider, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return
	}
	c.Redirect(http.StatusFound, redirectURL)
}

// Callback — завершение потока. Любой сбой уводит на страницу логина с
// коротким кодом ошибки; тела ответов провайдера пользователю не
// показываются.
func (h *OAuthHandler) Callback(c *gin.Context) {
	provider := c.Param("provider")
	code := c.Query("code")
	state := c.Query("state")

	user, sess, err := h.oauthService.Callback(c.Request.Context(), provider, code, state)
	if err != nil {
		c.Redirect(http.StatusFound, h.failureURL+"?error="+errorCode(err))
		return
	}

	setSessionCookies(c, h.cookies, sess, user)
	c.Redirect(http.StatusFound, h.successURL)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, services.ErrProviderExchangeFailed):
		return "exchange_failed"
	case errors.Is(err, services.ErrProviderProfileIncomplete):
		return "profile_incomplete"
	default:
		return "oauth_failed"
	}
}
