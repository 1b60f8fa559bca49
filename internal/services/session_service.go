package services

import (
	"log"
	"strings"
	"time"

	"medrisk/internal/authz"
	"medrisk/internal/models"
	"medrisk/internal/repositories"
	"medrisk/internal/utils"
)

// LoginPath определяет, какой TTL получает сессия. Таблица TTL живёт в
// конфиге, а не в коде (разные потоки входа исторически имели разные сроки).
type LoginPath string

const (
	LoginPathUser  LoginPath = "user"
	LoginPathAdmin LoginPath = "admin"
	LoginPathOAuth LoginPath = "oauth"
)

type SessionTTLs struct {
	User  time.Duration
	Admin time.Duration
	OAuth time.Duration
}

func (t SessionTTLs) For(path LoginPath) time.Duration {
	switch path {
	case LoginPathAdmin:
		return t.Admin
	case LoginPathOAuth:
		return t.OAuth
	default:
		return t.User
	}
}

type SessionService interface {
	Create(userID int, ttl time.Duration) (*models.Session, error)
	CreateFor(user *models.User, path LoginPath) (*models.Session, error)
	// Validate закрыт по умолчанию: любой промах (нет строки, просрочена,
	// мусорный токен) — ErrSessionInvalid, без различения причин.
	Validate(token string) (*models.User, error)
	// Refresh ротирует токен; невалидную сессию не воскрешает.
	Refresh(token string) (*models.Session, error)
	Revoke(token string) error
	RevokeAllForUser(userID int) error
	TTLs() SessionTTLs
}

type sessionService struct {
	repo     repositories.SessionRepository
	userRepo repositories.UserRepository
	ttls     SessionTTLs
}

func NewSessionService(repo repositories.SessionRepository, userRepo repositories.UserRepository, ttls SessionTTLs) SessionService {
	return &sessionService{repo: repo, userRepo: userRepo, ttls: ttls}
}

func (s *sessionService) TTLs() SessionTTLs { return s.ttls }

func (s *sessionService) Create(userID int, ttl time.Duration) (*models.Session, error) {
	token, err := utils.NewOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	sess := &models.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.repo.Create(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *sessionService) CreateFor(user *models.User, path LoginPath) (*models.Session, error) {
	return s.Create(user.ID, s.ttls.For(path))
}

func (s *sessionService) Validate(token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionInvalid
	}
	sess, err := s.repo.GetByToken(token)
	if err != nil {
		log.Printf("[session][validate] store error: %v", err)
		return nil, ErrSessionInvalid
	}
	if sess == nil || sess.Expired(time.Now()) {
		return nil, ErrSessionInvalid
	}
	user, err := s.userRepo.GetByID(sess.UserID)
	if err != nil || user == nil {
		return nil, ErrSessionInvalid
	}
	if _, ok := authz.ParseRole(string(user.Role)); !ok {
		// повреждённая роль в БД — сессию не признаём
		log.Printf("[session][validate] unknown role %q for userID=%d", user.Role, user.ID)
		return nil, ErrSessionInvalid
	}
	return user, nil
}

func (s *sessionService) Refresh(token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	old, err := s.repo.GetByToken(token)
	if err != nil {
		log.Printf("[session][refresh] store error: %v", err)
		return nil, ErrSessionInvalid
	}
	if old == nil || old.Expired(time.Now()) {
		// истёкшая сессия не продлевается — нужен явный повторный вход
		return nil, ErrSessionInvalid
	}

	newToken, err := utils.NewOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	// продлеваем на исходную длину сессии
	ttl := old.ExpiresAt.Sub(old.CreatedAt)
	ns := &models.Session{
		Token:     newToken,
		UserID:    old.UserID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.repo.Rotate(token, ns); err != nil {
		// старый токен успел исчезнуть (конкурентный refresh/revoke)
		return nil, ErrSessionInvalid
	}
	return ns, nil
}

func (s *sessionService) Revoke(token string) error {
	return s.repo.Delete(strings.TrimSpace(token))
}

func (s *sessionService) RevokeAllForUser(userID int) error {
	return s.repo.DeleteAllForUser(userID)
}
