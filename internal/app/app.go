package app

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"medrisk/internal/config"
	"medrisk/internal/handlers"
	"medrisk/internal/oauth"
	"medrisk/internal/repositories"
	"medrisk/internal/routes"
	"medrisk/internal/services"
	"medrisk/internal/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "medrisk/docs"
)

func Run() {
	cfg := config.LoadConfig()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Ошибка подключения к БД: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка закрытия БД: %v", err)
		}
	}()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	verificationRepo := repositories.NewVerificationCodeRepository(db)
	fedRepo := repositories.NewFederatedIdentityRepository(db)
	stateRepo := repositories.NewOAuthStateRepository(db)

	// === Services ===
	authService := services.NewAuthService()
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	smsSender := services.NewSMSSender(utils.NewSMSClient(
		cfg.SMS.APIKey,
		cfg.SMS.SenderID,
		cfg.SMS.DryRun,
	))

	sessionService := services.NewSessionService(sessionRepo, userRepo, services.SessionTTLs{
		User:  cfg.Sessions.UserTTL(),
		Admin: cfg.Sessions.AdminTTL(),
		OAuth: cfg.Sessions.OAuthTTL(),
	})
	userService := services.NewUserService(userRepo, sessionService, emailService, authService)
	verificationService := services.NewVerificationService(verificationRepo, userRepo, emailService, smsSender)
	resetService := services.NewPasswordResetService(userRepo, resetRepo, sessionService, emailService, smsSender, authService)

	providers := []oauth.Provider{
		oauth.NewGoogleProvider(
			cfg.OAuth.Google.ClientID,
			cfg.OAuth.Google.ClientSecret,
			cfg.OAuth.Google.RedirectURL,
			cfg.OAuth.HTTPTimeout(),
		),
		oauth.NewGitHubProvider(
			cfg.OAuth.GitHub.ClientID,
			cfg.OAuth.GitHub.ClientSecret,
			cfg.OAuth.GitHub.RedirectURL,
			cfg.OAuth.HTTPTimeout(),
		),
	}
	oauthService := services.NewOAuthService(
		providers, stateRepo, fedRepo, userRepo,
		sessionService, authService, cfg.OAuth.StateTTL(),
	)

	// === Handlers ===
	cookies := handlers.CookieConfig{
		SessionName: cfg.Sessions.CookieName,
		RoleName:    cfg.Sessions.RoleCookieName,
		Secure:      cfg.Sessions.CookieSecure,
	}
	authHandler := handlers.NewAuthHandler(userService, sessionService, cookies)
	userHandler := handlers.NewUserHandler(userService)
	resetHandler := handlers.NewResetHandler(resetService)
	verifyHandler := handlers.NewVerifyHandler(verificationService)
	oauthHandler := handlers.NewOAuthHandler(oauthService, cookies, cfg.OAuth.SuccessURL, cfg.OAuth.FailureURL)

	// === Housekeeping ===
	// фоновая чистка просроченных строк, чтобы таблицы не росли вечно
	stopSweeper := startSweeper(sessionRepo, resetRepo, verificationRepo, stateRepo)
	defer stopSweeper()

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(
		router,
		sessionService,
		cfg.Sessions.CookieName,
		authHandler,
		userHandler,
		resetHandler,
		verifyHandler,
		oauthHandler,
		routes.RateLimits{Window: cfg.RateLimit.Window(), Burst: cfg.RateLimit.Burst},
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Сервер запущен на %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("Ошибка запуска сервера: ", err)
	}
}

type expiredDeleter interface {
	DeleteExpired() (int64, error)
}

func startSweeper(sweepers ...expiredDeleter) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, s := range sweepers {
					if n, err := s.DeleteExpired(); err != nil {
						log.Printf("[housekeeping] sweep failed: %v", err)
					} else if n > 0 {
						log.Printf("[housekeeping] removed %d expired rows", n)
					}
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
