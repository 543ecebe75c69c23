package models

import (
	"gorm.io/datatypes"
)

// Transaction - одна запись неизменяемого журнала событий подписки.
// Журнал только дополняется: "исправление" статуса это новая запись,
// ссылающаяся на предыдущую через PreviousTransactionID.
type Transaction struct {
	BaseModel
	UserID         string  `gorm:"not null;index" json:"userId"`
	SubscriptionID string  `gorm:"not null;index" json:"subscriptionId"`
	DeviceID       *string `json:"deviceId,omitempty"`

	// Сгенерированный идентификатор, уникальный по всему журналу.
	// Случайный, а не последовательный: массовые операции не должны
	// конфликтовать при конкурентной генерации.
	TxnID string `gorm:"column:txn_id;uniqueIndex;not null" json:"txnId"`

	Type   TransactionType   `gorm:"type:varchar(30);not null;index" json:"type"`
	Status TransactionStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	Amount float64 `json:"amount"`
	Plan   string  `json:"plan"` // снимок плана на момент события

	ProcessedBy *string `json:"processedBy,omitempty"` // admin id

	Metadata datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`

	// Цепочка истории внутри одной подписки
	PreviousTransactionID *string `json:"previousTransactionId,omitempty"`
}
