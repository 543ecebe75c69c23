package validator

import (
	"log"
	"unicode"

	"commsub_backend/internal/plans"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules регистрирует кастомные функции валидации в
// переданном экземпляре валидатора.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// Критическая ошибка времени запуска приложения
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	// 'imei': аппаратный идентификатор устройства, 15 цифр
	mustRegister("imei", validateIMEI)

	// 'is-plan': тарифный план из фиксированного каталога
	mustRegister("is-plan", validatePlan)
}

func validateIMEI(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // пустые значения проверяет 'required'
	}
	if len(value) != 15 {
		return false
	}
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func validatePlan(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return plans.IsValid(value)
}
