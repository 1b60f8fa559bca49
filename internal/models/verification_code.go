package models

import "time"

type VerificationType string

const (
	VerificationPhone     VerificationType = "phone_verification"
	VerificationEmail     VerificationType = "email_verification"
	VerificationTwoFactor VerificationType = "two_factor"
)

// VerificationCode — отдельная запись на каждую отправку кода.
// Храним только bcrypt-хэш кода (CodeHash), TTL и счётчик попыток.
type VerificationCode struct {
	ID        int64            `json:"id"`
	UserID    *int             `json:"user_id,omitempty"` // nil для pre-registration потоков
	Email     string           `json:"email,omitempty"`
	Phone     string           `json:"phone,omitempty"`
	CodeHash  string           `json:"-"`
	Type      VerificationType `json:"type"`
	ExpiresAt time.Time        `json:"expires_at"`
	Used      bool             `json:"used"`
	Attempts  int              `json:"attempts"`
	CreatedAt time.Time        `json:"created_at"`
}
