package apperrors

import (
	"net/http"
)

/*
Фабрики и предопределенные переменные для доменных ошибок
подписок, устройств и очереди ревью.

Конфликты (уникальность, владение устройством, нелегальные переходы
статусов) по контракту API отдаются как 400, а не 409.
*/

// ErrNotFound - фабрика для ошибки "не найдено" (404)
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrAlreadyExists - фабрика для ошибки "уже существует" (400)
func ErrAlreadyExists(err error) *AppError {
	return Wrap(err, CodeAlreadyExists, "resource", "Resource already exists", http.StatusBadRequest)
}

// ErrConflict - общая фабрика для конфликтов
func ErrConflict(domain, message string) *AppError {
	return New(CodeConflict, domain, message, http.StatusBadRequest)
}

// ErrInvalidOperation - фабрика для невалидных операций (400)
func ErrInvalidOperation(domain, message string) *AppError {
	return New(CodeInvalidOperation, domain, message, http.StatusBadRequest)
}

// ErrInvalidStatus - фабрика для нелегальных переходов статуса (400)
func ErrInvalidStatus(domain, message string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusBadRequest)
}

// --- Подписки ---

// ErrInvalidPlan - неизвестный тарифный план
func ErrInvalidPlan(plan string) *AppError {
	return New(CodeInvalidPlan, "subscription", "Unknown subscription plan: "+plan, http.StatusBadRequest)
}

// ErrActiveSubscriptionExists - у пользователя или устройства уже есть активная подписка
func ErrActiveSubscriptionExists(message string) *AppError {
	return New(CodeConflict, "subscription", message, http.StatusBadRequest)
}

// --- Устройства ---

// ErrDeviceOwnershipConflict - IMEI уже привязан к другому пользователю
var ErrDeviceOwnershipConflict = New(
	CodeDeviceOwnershipConflict,
	"device",
	"Device is already bound to another account",
	http.StatusForbidden,
)

// ErrInvalidOTP - одноразовый код не прошел проверку
var ErrInvalidOTP = New(
	CodeInvalidOTP,
	"device",
	"Invalid or expired one-time code",
	http.StatusBadRequest,
)
