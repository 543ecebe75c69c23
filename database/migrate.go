package database

import (
	"commsub_backend/internal/models"

	"gorm.io/gorm"
)

// Migrate прогоняет автомиграцию всех моделей приложения
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Device{},
		&models.Subscription{},
		&models.Transaction{},
		&models.Upload{},
	)
}
