package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"medrisk/internal/authz"
	"medrisk/internal/middleware"
	"medrisk/internal/models"
	"medrisk/internal/services"
)

type AuthHandler struct {
	userService    services.UserService
	sessionService services.SessionService
	cookies        CookieConfig
}

func NewAuthHandler(userService services.UserService, sessionService services.SessionService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{userService: userService, sessionService: sessionService, cookies: cookies}
}

// @Summary      Регистрация
// @Description  Создаёт аккаунт и выдаёт сессию
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        signup  body      models.SignupRequest  true  "Данные регистрации"
// @Success      201     {object}  map[string]interface{}
// @Failure      400     {object}  map[string]string
// @Failure      409     {object}  map[string]string
// @Router       /signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, sess, err := h.userService.Signup(&req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		case errors.Is(err, services.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		default:
			log.Printf("[auth][signup] service error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		}
		return
	}

	setSessionCookies(c, h.cookies, sess, user)
	c.JSON(http.StatusCreated, gin.H{
		"user":          user,
		"session_token": sess.Token,
		"expires_at":    sess.ExpiresAt,
	})
}

// @Summary      Вход в систему
// @Description  Аутентифицирует пользователя и выдаёт сессионный токен
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Данные для входа"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	start := time.Now()

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[auth][login] bad request: bind json failed: err=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(req.Email)
	log.Printf("[auth][login] attempt email=%q", email)

	user, sess, err := h.userService.Login(email, req.Password)
	if err != nil {
		// одна формулировка на все промахи, чтобы не раскрывать
		// существование аккаунта
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	log.Printf("[auth][login] success userID=%d role=%s took=%s",
		user.ID, user.Role, time.Since(start).Truncate(time.Millisecond))

	setSessionCookies(c, h.cookies, sess, user)
	c.JSON(http.StatusOK, gin.H{
		"message":       "Login successful",
		"user":          user, // у модели PasswordHash помечен json:"-", наружу не уйдет
		"session_token": sess.Token,
		"expires_at":    sess.ExpiresAt,
	})
}

// @Summary      Вход администратора
// @Description  Как /login, но требует role=admin и даёт расширенный TTL сессии
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Данные для входа"
// @Success      200    {object}  map[string]interface{}
// @Failure      401    {object}  map[string]string
// @Failure      403    {object}  map[string]string
// @Router       /admin/login [post]
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, sess, err := h.userService.AdminLogin(strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, authz.ErrForbidden) {
			// оператору можно сказать прямо: пароль верный, но это не админ
			c.JSON(http.StatusForbidden, gin.H{"error": "not an admin"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	setSessionCookies(c, h.cookies, sess, user)
	c.JSON(http.StatusOK, gin.H{
		"message":       "Login successful",
		"user":          user,
		"session_token": sess.Token,
		"expires_at":    sess.ExpiresAt,
	})
}

// RefreshSession ротирует токен: старый инвалидируется, выдаётся новый
// с продлённым сроком. Невалидная сессия не продлевается.
func (h *AuthHandler) RefreshSession(c *gin.Context) {
	token := middleware.SessionTokenFromRequest(c, h.cookies.SessionName)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing session"})
		return
	}

	sess, err := h.sessionService.Refresh(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
		return
	}
	user, err := h.sessionService.Validate(sess.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
		return
	}

	setSessionCookies(c, h.cookies, sess, user)
	c.JSON(http.StatusOK, gin.H{
		"session_token": sess.Token, // возвращаем новый (ротация)
		"expires_at":    sess.ExpiresAt,
	})
}

// Logout идемпотентен: повторный выход с тем же токеном — тоже 200.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.SessionTokenFromRequest(c, h.cookies.SessionName)
	if token != "" {
		if err := h.sessionService.Revoke(token); err != nil {
			log.Printf("[auth][logout] revoke failed: %v", err)
		}
	}
	clearSessionCookies(c, h.cookies)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me — профиль из валидированной сессии (ставится AuthMiddleware).
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no user in context"})
		return
	}
	c.JSON(http.StatusOK, user)
}
