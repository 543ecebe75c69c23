package services

import (
	"encoding/json"
	"strings"

	"commsub_backend/internal/models"
	"commsub_backend/internal/repositories"
	"commsub_backend/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService ведет неизменяемый журнал событий подписок.
// Каждая смена статуса подписки зеркалируется записью журнала
// внутри той же транзакции; записи образуют цепочку через
// PreviousTransactionID и никогда не правятся задним числом.
type LedgerService struct {
	txnRepo *repositories.TransactionRepository
}

func NewLedgerService(txnRepo *repositories.TransactionRepository) *LedgerService {
	return &LedgerService{txnRepo: txnRepo}
}

// Record добавляет запись журнала и привязывает ее к голове цепочки.
// Вызывается строго внутри транзакции, в которой меняется подписка.
func (s *LedgerService) Record(
	tx *gorm.DB,
	sub *models.Subscription,
	txnType models.TransactionType,
	status models.TransactionStatus,
	amount float64,
	processedBy *string,
	metadata map[string]interface{},
) (*models.Transaction, error) {
	txn := &models.Transaction{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		TxnID:          GenerateTransactionID(),
		Type:           txnType,
		Status:         status,
		Amount:         amount,
		Plan:           sub.Plan,
		ProcessedBy:    processedBy,
	}

	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, apperrors.InternalError(err)
		}
		txn.Metadata = raw
	}

	// Привязываем к предыдущей записи цепочки, если она есть
	prev, err := s.txnRepo.FindLatestBySubscription(tx, sub.ID)
	if err != nil && err != repositories.ErrNotFound {
		return nil, apperrors.UnavailableError(err)
	}
	if prev != nil {
		txn.PreviousTransactionID = &prev.ID
	}

	if err := s.txnRepo.Create(tx, txn); err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	return txn, nil
}

// ListBySubscription возвращает цепочку журнала подписки
func (s *LedgerService) ListBySubscription(db *gorm.DB, subscriptionID string) ([]models.Transaction, error) {
	txns, err := s.txnRepo.FindBySubscription(db, subscriptionID)
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	return txns, nil
}

// List - админ-выборка журнала
func (s *LedgerService) List(db *gorm.DB, txnType, status string, page, limit int) ([]models.Transaction, int64, error) {
	txns, total, err := s.txnRepo.List(db, txnType, status, page, limit)
	if err != nil {
		return nil, 0, apperrors.UnavailableError(err)
	}
	return txns, total, nil
}

// GenerateTransactionID генерирует идентификатор, уникальный по всему
// журналу. Случайный токен, а не счетчик: конкурентные массовые
// операции не должны сталкиваться.
func GenerateTransactionID() string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:20])
}
