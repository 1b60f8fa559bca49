package services

import "errors"

// Таксономия ошибок ядра. Сырые ошибки sql/провайдеров наружу не выходят:
// на границе workflow они сворачиваются в одну из этих.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too short")

	// Сессии: один тип ошибки на все случаи (нет токена / просрочен /
	// мусор на входе) — различать их наружу нельзя.
	ErrSessionInvalid = errors.New("invalid session")

	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenAlreadyUsed = errors.New("token already used")

	ErrCodeInvalid     = errors.New("code invalid")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrResendThrottled = errors.New("resend throttled")

	ErrStateMismatch             = errors.New("oauth state mismatch")
	ErrProviderExchangeFailed    = errors.New("provider code exchange failed")
	ErrProviderProfileIncomplete = errors.New("provider profile incomplete")

	ErrRateLimited = errors.New("rate limited")
)
