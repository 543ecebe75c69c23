package dto

// SetupOTPRequest - запрос на выпуск OTP-секрета устройства
type SetupOTPRequest struct {
	IMEI       string `json:"imei" binding:"required" validate:"required,imei"`
	DeviceName string `json:"deviceName" validate:"omitempty,max=64"`
}

type SetupOTPResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qrCode"` // data URL c PNG
	URI    string `json:"uri"`    // otpauth:// provisioning URI
}

// ActivateRequest - активация подписки одноразовым кодом
type ActivateRequest struct {
	SubscriptionID string `json:"subscriptionId" binding:"required" validate:"required"`
	IMEI           string `json:"imei" binding:"required" validate:"required,imei"`
	OTPCode        string `json:"otpCode" binding:"required" validate:"required,len=6"`
}
