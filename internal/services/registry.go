package services

import (
	"commsub_backend/internal/config"
	"commsub_backend/internal/email"
	"commsub_backend/internal/repositories"
	"commsub_backend/internal/storage"
)

// ServiceContainer собирает сервисы приложения в одном месте
type ServiceContainer struct {
	Auth          *AuthService
	Subscriptions *SubscriptionService
	Devices       *DeviceService
	Admin         *AdminService
	Ledger        *LedgerService
	Uploads       *UploadService
}

// NewServiceContainer связывает репозитории, почту и хранилище
// в граф сервисов
func NewServiceContainer(cfg *config.Config, emails email.Provider, store storage.Storage) *ServiceContainer {
	userRepo := repositories.NewUserRepository()
	deviceRepo := repositories.NewDeviceRepository()
	subRepo := repositories.NewSubscriptionRepository()
	txnRepo := repositories.NewTransactionRepository()
	uploadRepo := repositories.NewUploadRepository()

	ledger := NewLedgerService(txnRepo)
	devices := NewDeviceService(deviceRepo, cfg.OTP.Issuer)
	subs := NewSubscriptionService(subRepo, deviceRepo, ledger, devices, emails)
	auth := NewAuthService(userRepo, subs, emails)
	admin := NewAdminService(subRepo, subs, ledger)
	uploads := NewUploadService(uploadRepo, subRepo, store, cfg.Upload.MaxSize, cfg.Upload.AllowedTypes)

	return &ServiceContainer{
		Auth:          auth,
		Subscriptions: subs,
		Devices:       devices,
		Admin:         admin,
		Ledger:        ledger,
		Uploads:       uploads,
	}
}
