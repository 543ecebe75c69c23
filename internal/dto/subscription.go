package dto

// CreateSubscriptionRequest - самостоятельная заявка на подписку
// для нового или существующего устройства
type CreateSubscriptionRequest struct {
	IMEI       string `json:"imei" binding:"required" validate:"required,imei"`
	DeviceName string `json:"deviceName" validate:"omitempty,max=64"`
	Phone      string `json:"phone" validate:"omitempty,min=7,max=20"`
	Plan       string `json:"plan" binding:"required" validate:"required,is-plan"`
}

type UpgradeRequest struct {
	Plan string `json:"plan" binding:"required" validate:"required,is-plan"`
}

type DowngradeRequest struct {
	Plan string `json:"plan" binding:"required" validate:"required,is-plan"`
}

type CancelRequest struct {
	Reason    string `json:"reason" binding:"required" validate:"required,min=3"`
	Immediate bool   `json:"immediate"`
}
