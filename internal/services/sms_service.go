package services

import (
	"fmt"

	"medrisk/internal/utils"
)

// smsSender — адаптер над Mobizon-клиентом под интерфейс нотификатора.
type smsSender struct {
	client *utils.SMSClient
}

func NewSMSSender(client *utils.SMSClient) SMSSender {
	return &smsSender{client: client}
}

func (s *smsSender) SendSMS(to, text string) error {
	if s.client == nil {
		return fmt.Errorf("sms client is nil")
	}
	if _, err := s.client.SendSMS(to, text); err != nil {
		return fmt.Errorf("mobizon error: %w", err)
	}
	return nil
}
