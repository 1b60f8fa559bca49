package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"medrisk/internal/models"
	"medrisk/internal/repositories"
	"medrisk/internal/utils"
)

// Настройки безопасности кодов (троттлинг резендов и лимит попыток).
const (
	maxResendsPerWindow    = 3
	resendWindow           = 10 * time.Minute
	maxConfirmAttempts     = 5
	defaultVerificationTTL = 15 * time.Minute
	verificationCodeLength = 6
)

// SMSSender — внешний нотификатор; ядро знает только, что попытка
// доставки была, механика доставки не его забота.
type SMSSender interface {
	SendSMS(to, text string) error
}

type VerificationService interface {
	// Request выписывает код и отдаёт его нотификатору. Сбой доставки не
	// фатален: запись остаётся, код можно переотправить.
	Request(userID int, vType models.VerificationType, destination string) error
	// Redeem — последний подходящий код по назначению; одноразовый.
	// При успехе проставляет email_verified/phone_verified.
	Redeem(destination, code string) (*models.User, error)
	// RedeemTwoFactor гасит 2FA-код без мутации флагов пользователя.
	RedeemTwoFactor(userID int, code string) error
}

type verificationService struct {
	repo     repositories.VerificationCodeRepository
	userRepo repositories.UserRepository
	emails   EmailService
	sms      SMSSender
	codeTTL  time.Duration
}

func NewVerificationService(
	repo repositories.VerificationCodeRepository,
	userRepo repositories.UserRepository,
	emails EmailService,
	sms SMSSender,
) VerificationService {
	return &verificationService{
		repo:     repo,
		userRepo: userRepo,
		emails:   emails,
		sms:      sms,
		codeTTL:  defaultVerificationTTL,
	}
}

func (s *verificationService) Request(userID int, vType models.VerificationType, destination string) error {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return fmt.Errorf("destination is required")
	}

	// Троттлинг отправок: не чаще 3/10мин на одно назначение
	since := time.Now().Add(-resendWindow)
	cnt, err := s.repo.CountRecentSends(destination, since)
	if err != nil {
		return err
	}
	if cnt >= maxResendsPerWindow {
		return ErrResendThrottled
	}

	code, err := utils.NewNumericCode(verificationCodeLength)
	if err != nil {
		return err
	}
	codeHashBytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("bcrypt generate: %w", err)
	}

	v := &models.VerificationCode{
		CodeHash:  string(codeHashBytes),
		Type:      vType,
		ExpiresAt: time.Now().Add(s.codeTTL),
	}
	if userID > 0 {
		v.UserID = &userID
	}
	switch vType {
	case models.VerificationEmail:
		v.Email = strings.ToLower(destination)
	default:
		v.Phone = destination
	}
	if err := s.repo.Create(v); err != nil {
		return err
	}

	// Диспатч после записи: при сбое доставки код остаётся и может быть
	// переотправлен.
	if err := s.dispatch(v, code); err != nil {
		log.Printf("[verify][request] dispatch failed type=%s: %v", vType, err)
	}
	log.Printf("[verify][request] code issued type=%s user_id=%d", vType, userID)
	return nil
}

func (s *verificationService) dispatch(v *models.VerificationCode, code string) error {
	switch v.Type {
	case models.VerificationEmail:
		if s.emails == nil {
			return fmt.Errorf("email service is nil")
		}
		return s.emails.SendVerificationCodeEmail(v.Email, code)
	default:
		if s.sms == nil {
			return fmt.Errorf("sms sender is nil")
		}
		return s.sms.SendSMS(v.Phone, fmt.Sprintf("Код подтверждения: %s", code))
	}
}

func (s *verificationService) Redeem(destination, code string) (*models.User, error) {
	destination = strings.TrimSpace(destination)
	v, err := s.repo.GetLatestActiveByDestination(destination)
	if err != nil {
		return nil, err
	}
	if err := s.check(v, code); err != nil {
		return nil, err
	}

	// Проставляем флаг только после успешного одноразового погашения.
	var user *models.User
	if v.UserID != nil {
		user, err = s.userRepo.GetByID(*v.UserID)
		if err != nil {
			return nil, err
		}
	}
	switch v.Type {
	case models.VerificationEmail:
		if user != nil {
			if err := s.userRepo.MarkEmailVerified(user.ID); err != nil {
				return nil, err
			}
			user.EmailVerified = true
		}
	case models.VerificationPhone:
		if user != nil {
			if err := s.userRepo.MarkPhoneVerified(user.ID); err != nil {
				return nil, err
			}
			user.PhoneVerified = true
		}
	}
	log.Printf("[verify][redeem] OK type=%s", v.Type)
	return user, nil
}

func (s *verificationService) RedeemTwoFactor(userID int, code string) error {
	v, err := s.repo.GetLatestActiveByUser(userID, models.VerificationTwoFactor)
	if err != nil {
		return err
	}
	return s.check(v, code)
}

// check — сверка с bcrypt-хэшем, счётчик попыток, TTL и одноразовое
// погашение через условный UPDATE.
func (s *verificationService) check(v *models.VerificationCode, code string) error {
	if v == nil || v.Used {
		return ErrCodeInvalid
	}
	if time.Now().After(v.ExpiresAt) {
		return ErrTokenExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(strings.TrimSpace(code))); err != nil {
		// неверный код => увеличиваем attempts
		attempts, incErr := s.repo.IncrementAttempts(v.ID)
		if incErr != nil {
			return incErr
		}
		if attempts >= maxConfirmAttempts {
			_ = s.repo.ExpireNow(v.ID)
			return ErrTooManyAttempts
		}
		return ErrCodeInvalid
	}

	ok, err := s.repo.MarkUsed(v.ID)
	if err != nil {
		return err
	}
	if !ok {
		// конкурентное погашение того же кода — прошёл только один
		return ErrCodeInvalid
	}
	return nil
}
