package dto

import "commsub_backend/internal/models"

// RegisterRequest - регистрация пользователя вместе с первой заявкой
// на подписку устройства
type RegisterRequest struct {
	Username   string `json:"username" binding:"required" validate:"required,min=3,max=32"`
	Email      string `json:"email" binding:"required" validate:"required,email"`
	Password   string `json:"password" binding:"required" validate:"required,min=8"`
	Phone      string `json:"phone" validate:"omitempty,min=7,max=20"`
	IMEI       string `json:"imei" binding:"required" validate:"required,imei"`
	DeviceName string `json:"deviceName" validate:"omitempty,max=64"`
	Plan       string `json:"plan" binding:"required" validate:"required,is-plan"`
}

type RegisterResponse struct {
	RequiresVerification bool   `json:"requiresVerification"`
	Email                string `json:"email"`
	Username             string `json:"username"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

type LoginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required" validate:"required,email"`
}
