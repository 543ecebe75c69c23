package repositories

import (
	"commsub_backend/internal/models"

	"gorm.io/gorm"
)

type DeviceRepository struct{}

func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{}
}

func (r *DeviceRepository) Create(db *gorm.DB, device *models.Device) error {
	return translate(db.Create(device).Error)
}

func (r *DeviceRepository) FindByIMEI(db *gorm.DB, imei string) (*models.Device, error) {
	var device models.Device
	if err := db.First(&device, "imei = ?", imei).Error; err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

// FindByUserAndIMEI ищет устройство, привязанное к паре (пользователь, IMEI)
func (r *DeviceRepository) FindByUserAndIMEI(db *gorm.DB, userID, imei string) (*models.Device, error) {
	var device models.Device
	if err := db.First(&device, "user_id = ? AND imei = ?", userID, imei).Error; err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (r *DeviceRepository) Update(db *gorm.DB, device *models.Device) error {
	return translate(db.Save(device).Error)
}

// MarkOnboarded выставляет флаг прохождения OTP-онбординга
func (r *DeviceRepository) MarkOnboarded(db *gorm.DB, deviceID string, onboarded bool) error {
	return translate(db.Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("onboarded", onboarded).Error)
}
