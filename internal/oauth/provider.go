package oauth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Profile — нормализованный профиль: одна форма вне зависимости от того,
// как провайдер называет свои поля.
type Profile struct {
	Provider       string
	ProviderUserID string
	Name           string
	Email          string
	AvatarURL      string
}

// Provider прячет специфику API конкретного провайдера за двумя шагами:
// обмен кода на токен и получение профиля.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// withTimeout — все вызовы к провайдеру идут через клиент с таймаутом:
// сеть провайдера — единственный источник латентности в ядре.
func withTimeout(ctx context.Context, timeout time.Duration) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
}
