package models

// Device привязывает аппаратный идентификатор (IMEI) к аккаунту.
// Устройство создается при первой заявке на подписку с неизвестным IMEI
// и никогда не удаляется: новые подписки (продление, замена тарифа)
// ссылаются на ту же запись.
type Device struct {
	BaseModel
	UserID     *string `gorm:"index" json:"userId"` // nil, пока устройство не присвоено
	IMEI       string  `gorm:"column:imei;uniqueIndex;not null" json:"imei"`
	OTPSecret  string  `gorm:"column:otp_secret" json:"-"`
	DeviceName string  `json:"deviceName"`
	Onboarded  bool    `gorm:"default:false" json:"onboarded"`
}

// OwnedBy сообщает, принадлежит ли устройство пользователю
func (d *Device) OwnedBy(userID string) bool {
	return d.UserID != nil && *d.UserID == userID
}
