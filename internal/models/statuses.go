package models

type UserRole string
type UserStatus string
type SubscriptionStatus string
type TransactionType string
type TransactionStatus string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"

	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"

	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusApproved  SubscriptionStatus = "approved"
	SubscriptionStatusQueued    SubscriptionStatus = "queued"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"

	TransactionCreated             TransactionType = "created"
	TransactionApproved            TransactionType = "approved"
	TransactionActivated           TransactionType = "activated"
	TransactionUpgraded            TransactionType = "upgraded"
	TransactionDowngraded          TransactionType = "downgraded"
	TransactionCancelled           TransactionType = "cancelled"
	TransactionRejected            TransactionType = "rejected"
	TransactionExpired             TransactionType = "expired"
	TransactionRenewed             TransactionType = "renewed"
	TransactionQueuePositionUpdate TransactionType = "queue_position_updated"

	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// InQueue сообщает, занимает ли подписка с данным статусом позицию
// в очереди своего IMEI
func (s SubscriptionStatus) InQueue() bool {
	return s == SubscriptionStatusPending || s == SubscriptionStatusQueued
}

// Terminal сообщает, является ли статус конечным
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}
