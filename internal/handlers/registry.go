package handlers

import (
	"commsub_backend/internal/services"
	appvalidator "commsub_backend/internal/validator"
)

// AppHandlers - все HTTP-обработчики приложения
type AppHandlers struct {
	Auth          *AuthHandler
	Subscriptions *SubscriptionHandler
	Admin         *AdminHandler
}

func NewAppHandlers(container *services.ServiceContainer, v *appvalidator.Validator) *AppHandlers {
	base := NewBaseHandler(v)

	return &AppHandlers{
		Auth: NewAuthHandler(base, container.Auth),
		Subscriptions: NewSubscriptionHandler(
			base,
			container.Subscriptions,
			container.Devices,
			container.Ledger,
			container.Uploads,
			container.Auth,
		),
		Admin: NewAdminHandler(base, container.Admin, container.Subscriptions, container.Ledger),
	}
}
