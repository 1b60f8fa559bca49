package models

import "time"

// Session — opaque токен в БД, срок действия проверяется по строке,
// не по содержимому токена.
type Session struct {
	Token     string    `json:"-"` // значение отдаём клиенту один раз, не логируем
	UserID    int       `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
