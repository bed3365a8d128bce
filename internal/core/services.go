package core

type Services struct {
	Key     *KeyService
	Auth    *AuthService
	Usage   *UsageService
	Webhook *WebhookService
}

func NewServices(db DB) *Services {
	return &Services{
		Key:     NewKeyService(db),
		Auth:    NewAuthService(db),
		Usage:   NewUsageService(db),
		Webhook: NewWebhookService(db),
	}
}
