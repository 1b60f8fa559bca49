package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"medrisk/internal/models"
	"medrisk/internal/repositories"
	"medrisk/internal/utils"
)

const resetTokenTTL = 1 * time.Hour

type PasswordResetService interface {
	// RequestReset принимает email или телефон. Наблюдаемое поведение
	// одинаково вне зависимости от того, существует ли аккаунт, —
	// существование не раскрываем.
	RequestReset(identifier string) error
	// ResetPassword гасит токен и меняет пароль одной операцией; все
	// активные сессии пользователя после этого отзываются.
	ResetPassword(token, newPassword string) error
}

type passwordResetService struct {
	userRepo repositories.UserRepository
	repo     repositories.PasswordResetRepository
	sessions SessionService
	emails   EmailService
	sms      SMSSender
	auth     AuthService
}

func NewPasswordResetService(
	userRepo repositories.UserRepository,
	repo repositories.PasswordResetRepository,
	sessions SessionService,
	emails EmailService,
	sms SMSSender,
	auth AuthService,
) PasswordResetService {
	return &passwordResetService{
		userRepo: userRepo,
		repo:     repo,
		sessions: sessions,
		emails:   emails,
		sms:      sms,
		auth:     auth,
	}
}

func (s *passwordResetService) RequestReset(identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}

	user, err := s.resolve(identifier)
	if err != nil || user == nil {
		// don't leak existence
		log.Printf("[password-reset][request] no account for identifier (not reported to caller): %v", err)
		return nil
	}

	token, err := utils.NewOpaqueToken(32)
	if err != nil {
		return err
	}
	expires := time.Now().Add(resetTokenTTL)
	if _, err := s.repo.Create(user.ID, token, expires); err != nil {
		return err
	}

	// Сбой доставки не фатален и тоже не раскрывается наружу.
	s.deliver(user, identifier, token)
	return nil
}

func (s *passwordResetService) resolve(identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		return s.userRepo.GetByEmail(identifier)
	}
	return s.userRepo.GetByPhone(identifier)
}

func (s *passwordResetService) deliver(user *models.User, identifier, token string) {
	if strings.Contains(identifier, "@") {
		if s.emails != nil {
			if err := s.emails.SendPasswordResetEmail(user.Email, token); err != nil {
				log.Printf("[password-reset][request] failed to send email: %v", err)
			}
		}
		return
	}
	if s.sms != nil {
		if err := s.sms.SendSMS(user.Phone, fmt.Sprintf("Токен сброса пароля: %s", token)); err != nil {
			log.Printf("[password-reset][request] failed to send sms: %v", err)
		}
	}
}

func (s *passwordResetService) ResetPassword(token, newPassword string) error {
	token = strings.TrimSpace(token)
	newPassword = strings.TrimSpace(newPassword)
	if token == "" || newPassword == "" {
		return fmt.Errorf("token and password are required")
	}
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}

	// Классификация для точной ошибки; авторитативно дальше решает
	// условный UPDATE.
	pr, err := s.repo.GetByToken(token)
	if err != nil {
		return err
	}
	if pr == nil {
		return ErrTokenNotFound
	}
	if pr.Used {
		return ErrTokenAlreadyUsed
	}
	if time.Now().After(pr.ExpiresAt) {
		return ErrTokenExpired
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	userID, err := s.repo.RedeemAndSetPassword(token, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// токен погасили между проверкой и UPDATE
			return ErrTokenAlreadyUsed
		}
		return err
	}

	// Смена пароля инвалидирует все выданные сессии.
	if err := s.sessions.RevokeAllForUser(userID); err != nil {
		log.Printf("[password-reset][confirm] failed to revoke sessions userID=%d: %v", userID, err)
	}
	log.Printf("[password-reset][confirm] success userID=%d", userID)
	return nil
}
