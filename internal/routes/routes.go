package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"medrisk/internal/authz"
	"medrisk/internal/handlers"
	"medrisk/internal/middleware"
	"medrisk/internal/services"
)

type RateLimits struct {
	Window time.Duration
	Burst  int
}

func SetupRoutes(
	r *gin.Engine,
	sessions services.SessionService,
	cookieName string,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	resetHandler *handlers.ResetHandler,
	verifyHandler *handlers.VerifyHandler,
	oauthHandler *handlers.OAuthHandler,
	limits RateLimits,
) *gin.Engine {

	// лимитер по IP на эндпоинты с перебираемыми секретами
	strict := middleware.RateLimit(limits.Window, limits.Burst, middleware.ClientIPKey)

	// ---- public
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	r.POST("/signup", strict, authHandler.Signup)
	r.POST("/login", strict, authHandler.Login)
	r.POST("/admin/login", strict, authHandler.AdminLogin)
	r.POST("/session/refresh", authHandler.RefreshSession)
	r.POST("/logout", authHandler.Logout)

	r.GET("/oauth/:provider/start", oauthHandler.Start)
	r.GET("/oauth/:provider/callback", oauthHandler.Callback)

	r.POST("/password-reset/request", strict, resetHandler.Request)
	r.POST("/password-reset/confirm", strict, resetHandler.Confirm)

	// подтверждение кода публично: на этапе регистрации сессии может не быть
	r.POST("/verify/confirm", strict, verifyHandler.Confirm)

	// ---- authenticated
	auth := middleware.AuthMiddleware(sessions, cookieName)

	me := r.Group("/", auth)
	{
		me.GET("/me", authHandler.Me)
		me.POST("/verify/request", verifyHandler.Request)
	}

	// ---- admin
	admin := r.Group("/admin", auth, middleware.RequireRoles(authz.RoleAdmin))
	{
		admin.GET("/users", userHandler.ListUsers)
		admin.GET("/users/count", userHandler.GetUserCount)
		admin.GET("/users/:id", userHandler.GetUserByID)
		admin.PUT("/users/:id/role", userHandler.UpdateRole)
	}

	return r
}
