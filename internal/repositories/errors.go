package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// Сентинельные ошибки слоя хранения. Сервисы опираются только на них,
// а не на формы ошибок конкретного драйвера.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// translate приводит ошибки gorm к сентинелям пакета.
// Требует gorm.Config{TranslateError: true} при открытии соединения.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
