package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medrisk/internal/models"
	"medrisk/internal/services"
)

const (
	CtxUser = "user"
)

// SessionTokenFromRequest — cookie с opaque токеном или Bearer-заголовок.
// Cookie с ролью (mr_role) здесь не читается никогда: это клиентский
// флаг для рендеринга, доверять ему нельзя.
func SessionTokenFromRequest(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// AuthMiddleware резолвит сессию по хранилищу на каждый запрос. Роль
// берётся из найденного пользователя, не из токена и не из cookie.
func AuthMiddleware(sessions services.SessionService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := SessionTokenFromRequest(c, cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing session"})
			return
		}

		user, err := sessions.Validate(token)
		if err != nil {
			// одна формулировка на все случаи: нет токена / просрочен / мусор
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.Set(CtxUser, user)
		c.Next()
	}
}

// CurrentUser достаёт пользователя, положенного AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}
