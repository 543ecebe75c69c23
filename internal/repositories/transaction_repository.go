package repositories

import (
	"commsub_backend/internal/models"

	"gorm.io/gorm"
)

// TransactionRepository работает с неизменяемым журналом: есть Create
// и выборки, но нет Update/Delete - записи никогда не правятся на месте.
type TransactionRepository struct{}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

func (r *TransactionRepository) Create(db *gorm.DB, txn *models.Transaction) error {
	return translate(db.Create(txn).Error)
}

// FindLatestBySubscription - голова цепочки журнала подписки
func (r *TransactionRepository) FindLatestBySubscription(db *gorm.DB, subscriptionID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := db.Where("subscription_id = ?", subscriptionID).
		Order("created_at desc").
		Order("id desc").
		First(&txn).Error
	if err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

// FindBySubscription - вся цепочка журнала подписки в хронологическом порядке
func (r *TransactionRepository) FindBySubscription(db *gorm.DB, subscriptionID string) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := db.Where("subscription_id = ?", subscriptionID).
		Order("created_at asc").
		Order("id asc").
		Find(&txns).Error
	if err != nil {
		return nil, translate(err)
	}
	return txns, nil
}

// List - админ-выборка по типу/статусу с пагинацией
func (r *TransactionRepository) List(db *gorm.DB, txnType, status string, page, limit int) ([]models.Transaction, int64, error) {
	query := db.Model(&models.Transaction{})
	if txnType != "" {
		query = query.Where("type = ?", txnType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var txns []models.Transaction
	err := query.Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return txns, total, nil
}
