package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medrisk/internal/authz"
)

// RequireRoles — гейт по роли из валидированной сессии. Ставится после
// AuthMiddleware.
func RequireRoles(allowed ...authz.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no user in context"})
			return
		}
		if err := authz.RequireAnyRole(user.Role, allowed...); err != nil {
			// админским UI можно говорить прямо: это Forbidden, а не
			// "нет такого аккаунта"
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
