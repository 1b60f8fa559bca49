package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medrisk/internal/models"
)

// CookieConfig — контракт сессионной cookie: httpOnly, Secure в проде,
// SameSite=Lax, внутри только opaque токен. Вторая cookie (роль) —
// удобство для рендеринга на клиенте; для авторизации она не значит
// ничего, сервер её не читает.
type CookieConfig struct {
	SessionName string
	RoleName    string
	Secure      bool
}

func setSessionCookies(c *gin.Context, cfg CookieConfig, sess *models.Session, user *models.User) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.SessionName, sess.Token, maxAge, "/", "", cfg.Secure, true)
	// не httpOnly — читается клиентским кодом, и только им
	c.SetCookie(cfg.RoleName, string(user.Role), maxAge, "/", "", cfg.Secure, false)
}

func clearSessionCookies(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.SessionName, "", -1, "/", "", cfg.Secure, true)
	c.SetCookie(cfg.RoleName, "", -1, "/", "", cfg.Secure, false)
}
