package models

import "time"

// FederatedIdentity связывает аккаунт внешнего провайдера с локальным пользователем.
type FederatedIdentity struct {
	ID             int       `json:"id"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	UserID         int       `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}
