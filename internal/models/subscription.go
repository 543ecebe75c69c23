package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription - центральная запись покупки тарифа: пользователь,
// устройство, план, окно действия, статус и позиция в очереди ревью.
// Записи никогда не удаляются: конечные статусы хранятся для аудита.
type Subscription struct {
	BaseModel
	UserID     string `gorm:"not null;index" json:"userId"`
	IMEI       string `gorm:"column:imei;not null;index" json:"imei"`
	DeviceName string `json:"deviceName"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`

	Plan  string  `gorm:"not null" json:"plan"`
	Price float64 `gorm:"not null" json:"price"` // выводится из плана, не из запроса

	// Позиция в очереди: 1-based, плотная в пределах IMEI
	// среди статусов pending/queued
	QueuePosition int `gorm:"default:0;index" json:"queuePosition"`
	Priority      int `gorm:"default:0" json:"priority"`

	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`

	Status SubscriptionStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	// Админ-поля ревью
	ReviewedBy *string    `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	AdminNotes string     `json:"adminNotes,omitempty"`

	// Отложенная смена плана (даунгрейд вступает в силу на EndDate)
	PendingPlanChange *string `json:"pendingPlanChange,omitempty"`

	// Отмена: при immediate=false подписка доживает до конца цикла
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`

	// Ссылки на загруженные изображения карт (upload id + URL)
	CardUploads datatypes.JSON `gorm:"type:json" json:"cardUploads,omitempty"`

	// Relations
	Transactions []Transaction `gorm:"foreignKey:SubscriptionID" json:"-"`
}

// CardUploadRef - один элемент списка CardUploads
type CardUploadRef struct {
	UploadID string `json:"uploadId"`
	URL      string `json:"url"`
}
