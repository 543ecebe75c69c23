package services

import (
	"commsub_backend/internal/dto"
	"commsub_backend/internal/models"
	"commsub_backend/internal/repositories"
	"commsub_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// AdminService - операции очереди ревью: листинг, дашборд,
// приоритеты и массовые действия.
type AdminService struct {
	subRepo *repositories.SubscriptionRepository
	subs    *SubscriptionService
	ledger  *LedgerService
}

func NewAdminService(subRepo *repositories.SubscriptionRepository, subs *SubscriptionService, ledger *LedgerService) *AdminService {
	return &AdminService{subRepo: subRepo, subs: subs, ledger: ledger}
}

// ListQueue возвращает страницу очереди с фильтрами админки
func (s *AdminService) ListQueue(db *gorm.DB, q *dto.QueueListQuery) ([]models.Subscription, int64, error) {
	subs, total, err := s.subRepo.List(db, repositories.QueueFilter{
		Status:    q.Status,
		Plan:      q.Plan,
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Page:      q.Page,
		Limit:     q.Limit,
	})
	if err != nil {
		return nil, 0, apperrors.UnavailableError(err)
	}
	return subs, total, nil
}

// Dashboard собирает агрегаты: счетчики по статусам, разбивку по
// планам, суммарный доход и среднее время обработки заявки
func (s *AdminService) Dashboard(db *gorm.DB) (*dto.DashboardStats, error) {
	counts, err := s.subRepo.CountByStatus(db)
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	planStats, err := s.subRepo.StatsByPlan(db)
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}

	var revenue float64
	for _, p := range planStats {
		revenue += p.Revenue
	}

	reviewed, err := s.subRepo.FindReviewed(db)
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}
	var avgSeconds float64
	if len(reviewed) > 0 {
		var total float64
		for _, sub := range reviewed {
			total += sub.ReviewedAt.Sub(sub.CreatedAt).Seconds()
		}
		avgSeconds = total / float64(len(reviewed))
	}

	return &dto.DashboardStats{
		CountsByStatus:       counts,
		PlanStats:            planStats,
		TotalRevenue:         revenue,
		AvgProcessingSeconds: avgSeconds,
	}, nil
}

// UpdatePriority меняет приоритет записи очереди и пересчитывает
// позиции по каноническому порядку (приоритет desc, затем FIFO)
func (s *AdminService) UpdatePriority(db *gorm.DB, id string, priority int, adminID string) (*models.Subscription, error) {
	probe, err := s.subRepo.FindByID(db, id)
	if err != nil {
		return nil, s.subs.notFoundOrUnavailable(err)
	}

	unlock := s.subs.LockIMEI(probe.IMEI)
	defer unlock()

	var sub *models.Subscription
	err = db.Transaction(func(tx *gorm.DB) error {
		sub, err = s.subRepo.FindByID(tx, id)
		if err != nil {
			return s.subs.notFoundOrUnavailable(err)
		}
		if !sub.Status.InQueue() {
			return apperrors.ErrInvalidStatus("queue", "subscription is not in the review queue")
		}

		oldPriority := sub.Priority
		sub.Priority = priority
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}
		if err := s.subs.ReorderQueue(tx, sub.IMEI); err != nil {
			return err
		}

		// Позиция могла измениться после пересчета
		sub, err = s.subRepo.FindByID(tx, id)
		if err != nil {
			return s.subs.notFoundOrUnavailable(err)
		}

		_, err = s.ledger.Record(tx, sub, models.TransactionQueuePositionUpdate,
			models.TransactionStatusCompleted, 0, &adminID, map[string]interface{}{
				"priorityFrom": oldPriority,
				"priorityTo":   priority,
				"position":     sub.QueuePosition,
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// MarkUnderReview помечает заявку взятой в работу: статус остается
// pending, проставляются поля ревью
func (s *AdminService) MarkUnderReview(db *gorm.DB, id, adminID, comments string) (*models.Subscription, error) {
	probe, err := s.subRepo.FindByID(db, id)
	if err != nil {
		return nil, s.subs.notFoundOrUnavailable(err)
	}

	unlock := s.subs.LockIMEI(probe.IMEI)
	defer unlock()

	var sub *models.Subscription
	err = db.Transaction(func(tx *gorm.DB) error {
		sub, err = s.subRepo.FindByID(tx, id)
		if err != nil {
			return s.subs.notFoundOrUnavailable(err)
		}
		if sub.Status != models.SubscriptionStatusPending {
			return apperrors.ErrInvalidStatus("subscription", "only pending subscriptions can be taken under review")
		}
		s.subs.stampReview(sub, adminID, comments)
		return s.wrapDB(s.subRepo.Update(tx, sub))
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// BulkOperation выполняет действие над списком заявок. Каждый id
// обрабатывается независимо: провал одного не откатывает остальных,
// результат сообщается по каждому id отдельно.
func (s *AdminService) BulkOperation(db *gorm.DB, req *dto.BulkOperationRequest, adminID string) ([]dto.BulkResult, error) {
	if req.Action == "reject" && req.Reason == "" {
		return nil, apperrors.NewBadRequestError("rejection reason is required for bulk reject")
	}

	results := make([]dto.BulkResult, 0, len(req.IDs))
	for _, id := range req.IDs {
		var err error
		switch req.Action {
		case "approve":
			_, _, err = s.subs.Approve(db, id, adminID, req.Reason, false)
		case "reject":
			_, _, err = s.subs.Reject(db, id, adminID, req.Reason, "")
		case "queue":
			_, _, err = s.subs.MarkQueued(db, id, adminID, req.Reason)
		case "under_review":
			_, err = s.MarkUnderReview(db, id, adminID, req.Reason)
		case "update_priority":
			_, err = s.UpdatePriority(db, id, req.Priority, adminID)
		default:
			err = apperrors.NewBadRequestError("unknown bulk action: " + req.Action)
		}

		result := dto.BulkResult{ID: id, Success: err == nil}
		if err != nil {
			if appErr, ok := apperrors.AsAppError(err); ok {
				result.Reason = appErr.Message
			} else {
				result.Reason = "internal error"
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *AdminService) wrapDB(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.UnavailableError(err)
}
