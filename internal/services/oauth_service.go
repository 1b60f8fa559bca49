package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"medrisk/internal/authz"
	"medrisk/internal/models"
	"medrisk/internal/oauth"
	"medrisk/internal/repositories"
	"medrisk/internal/utils"
)

type OAuthService interface {
	// Start выписывает одноразовый CSRF state и возвращает URL редиректа
	// на провайдера.
	Start(provider string) (string, error)
	// Callback превращает authorization code в локальную сессию. Любой
	// сбой шага (state, обмен, профиль) сворачивается в таксономию, тела
	// ответов провайдера наружу не выходят.
	Callback(ctx context.Context, provider, code, state string) (*models.User, *models.Session, error)
}

type oauthService struct {
	providers map[string]oauth.Provider
	states    repositories.OAuthStateRepository
	fedRepo   repositories.FederatedIdentityRepository
	userRepo  repositories.UserRepository
	sessions  SessionService
	auth      AuthService
	stateTTL  time.Duration
}

func NewOAuthService(
	providers []oauth.Provider,
	states repositories.OAuthStateRepository,
	fedRepo repositories.FederatedIdentityRepository,
	userRepo repositories.UserRepository,
	sessions SessionService,
	auth AuthService,
	stateTTL time.Duration,
) OAuthService {
	m := make(map[string]oauth.Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &oauthService{
		providers: m,
		states:    states,
		fedRepo:   fedRepo,
		userRepo:  userRepo,
		sessions:  sessions,
		auth:      auth,
		stateTTL:  stateTTL,
	}
}

func (s *oauthService) Start(provider string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	state, err := utils.NewOpaqueToken(16)
	if err != nil {
		return "", err
	}
	if err := s.states.Create(state, p.Name(), time.Now().Add(s.stateTTL)); err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

func (s *oauthService) Callback(ctx context.Context, provider, code, state string) (*models.User, *models.Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, nil, ErrStateMismatch
	}
	if strings.TrimSpace(code) == "" || strings.TrimSpace(state) == "" {
		return nil, nil, ErrStateMismatch
	}

	// state проверяется ДО обмена кода: чужой/просроченный/повторный
	// state не должен стоить нам похода к провайдеру.
	consumed, err := s.states.Consume(state, p.Name())
	if err != nil {
		log.Printf("[oauth][callback] state store error: %v", err)
		return nil, nil, ErrStateMismatch
	}
	if !consumed {
		return nil, nil, ErrStateMismatch
	}

	token, err := p.ExchangeCode(ctx, code)
	if err != nil {
		log.Printf("[oauth][callback] exchange failed provider=%s: %v", provider, err)
		return nil, nil, ErrProviderExchangeFailed
	}

	profile, err := p.FetchProfile(ctx, token)
	if err != nil {
		log.Printf("[oauth][callback] profile fetch failed provider=%s: %v", provider, err)
		return nil, nil, ErrProviderProfileIncomplete
	}
	if profile.ProviderUserID == "" || profile.Email == "" {
		return nil, nil, ErrProviderProfileIncomplete
	}

	user, err := s.resolveUser(profile)
	if err != nil {
		return nil, nil, err
	}

	// Привязка идемпотентна: первая успешная авторизация создаёт связь,
	// последующие её находят.
	if err := s.fedRepo.Link(profile.Provider, profile.ProviderUserID, user.ID); err != nil {
		return nil, nil, err
	}

	sess, err := s.sessions.CreateFor(user, LoginPathOAuth)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[oauth][callback] success provider=%s userID=%d", provider, user.ID)
	return user, sess, nil
}

// resolveUser: федеративная связь -> существующий email -> новый аккаунт.
func (s *oauthService) resolveUser(profile *oauth.Profile) (*models.User, error) {
	fi, err := s.fedRepo.GetByProviderID(profile.Provider, profile.ProviderUserID)
	if err != nil {
		return nil, err
	}
	if fi != nil {
		user, err := s.userRepo.GetByID(fi.UserID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
		// связь указывает в пустоту — пересоздаём аккаунт ниже
		log.Printf("[oauth][resolve] dangling identity provider=%s", profile.Provider)
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	// Новый пользователь: локальный пароль случайный и непригодный для
	// входа (OAuth-only аккаунт).
	random, err := utils.NewOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	hash, err := s.auth.HashPassword(random)
	if err != nil {
		return nil, err
	}
	user = &models.User{
		Email:        email,
		Name:         profile.Name,
		PasswordHash: hash,
		Role:         authz.RoleUser,
		// email подтверждён провайдером
		EmailVerified: true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	log.Printf("[oauth][resolve] new user created provider=%s userID=%d", profile.Provider, user.ID)
	return user, nil
}
