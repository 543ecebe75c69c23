package services

import (
	"time"

	"commsub_backend/internal/dto"
	"commsub_backend/internal/email"
	"commsub_backend/internal/logger"
	"commsub_backend/internal/models"
	"commsub_backend/internal/plans"
	"commsub_backend/internal/repositories"
	"commsub_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// SubscriptionService - машина состояний подписки и менеджер очереди.
//
// Жизненный цикл: pending -> {approved, queued, cancelled};
// approved -> active; queued -> active (через OTP);
// active -> {cancelled, expired}; expired -> active (продление).
// Из конечных cancelled/expired других переходов нет.
//
// Инварианты: не более одной активной подписки на пользователя и на IMEI;
// позиции очереди IMEI среди pending/queued - плотная перестановка 1..N;
// каждый переход статуса зеркалируется записью журнала в той же транзакции.
type SubscriptionService struct {
	subRepo    *repositories.SubscriptionRepository
	deviceRepo *repositories.DeviceRepository
	ledger     *LedgerService
	devices    *DeviceService
	emails     email.Provider
	locks      *imeiLock
}

func NewSubscriptionService(
	subRepo *repositories.SubscriptionRepository,
	deviceRepo *repositories.DeviceRepository,
	ledger *LedgerService,
	devices *DeviceService,
	emails email.Provider,
) *SubscriptionService {
	return &SubscriptionService{
		subRepo:    subRepo,
		deviceRepo: deviceRepo,
		ledger:     ledger,
		devices:    devices,
		emails:     emails,
		locks:      newIMEILock(),
	}
}

// LockIMEI сериализует мутации очереди одного IMEI. Возвращает unlock.
// Используется и внешними составными операциями (регистрация).
func (s *SubscriptionService) LockIMEI(imei string) func() {
	return s.locks.Lock(imei)
}

// --- Создание ---

// Create создает заявку на подписку: собственная транзакция + замок IMEI
func (s *SubscriptionService) Create(db *gorm.DB, user *models.User, req *dto.CreateSubscriptionRequest) (*models.Subscription, error) {
	unlock := s.LockIMEI(req.IMEI)
	defer unlock()

	var sub *models.Subscription
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.CreateInTx(tx, user, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CreateInTx выполняет создание внутри чужой транзакции.
// Вызывающий обязан держать замок IMEI.
func (s *SubscriptionService) CreateInTx(tx *gorm.DB, user *models.User, req *dto.CreateSubscriptionRequest) (*models.Subscription, error) {
	plan, ok := plans.Get(req.Plan)
	if !ok {
		return nil, apperrors.ErrInvalidPlan(req.Plan)
	}

	// Не более одной активной подписки на пользователя и на устройство
	if _, err := s.subRepo.FindActiveByUserID(tx, user.ID); err == nil {
		return nil, apperrors.ErrActiveSubscriptionExists("account already has an active subscription")
	} else if err != repositories.ErrNotFound {
		return nil, apperrors.UnavailableError(err)
	}
	if _, err := s.subRepo.FindActiveByIMEI(tx, req.IMEI); err == nil {
		return nil, apperrors.ErrActiveSubscriptionExists("device already has an active subscription")
	} else if err != repositories.ErrNotFound {
		return nil, apperrors.UnavailableError(err)
	}

	device, err := s.claimDevice(tx, user.ID, req.IMEI, req.DeviceName)
	if err != nil {
		return nil, err
	}

	position, err := s.GetNextQueuePosition(tx, req.IMEI)
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:        user.ID,
		IMEI:          req.IMEI,
		DeviceName:    req.DeviceName,
		Phone:         req.Phone,
		Email:         user.Email,
		Plan:          plan.Name,
		Price:         plan.Price, // всегда из каталога, не из запроса
		QueuePosition: position,
		Status:        models.SubscriptionStatusPending,
	}
	if err := s.subRepo.Create(tx, sub); err != nil {
		return nil, apperrors.UnavailableError(err)
	}

	_, err = s.ledger.Record(tx, sub, models.TransactionCreated, models.TransactionStatusCompleted,
		plan.Price, nil, map[string]interface{}{
			"queuePosition": position,
			"deviceId":      device.ID,
		})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// claimDevice находит или создает устройство IMEI и закрепляет его
// за пользователем. Чужое устройство присвоить нельзя.
func (s *SubscriptionService) claimDevice(tx *gorm.DB, userID, imei, name string) (*models.Device, error) {
	device, err := s.deviceRepo.FindByIMEI(tx, imei)
	if err == repositories.ErrNotFound {
		device = &models.Device{
			UserID:     &userID,
			IMEI:       imei,
			DeviceName: name,
		}
		if err := s.deviceRepo.Create(tx, device); err != nil {
			return nil, apperrors.UnavailableError(err)
		}
		return device, nil
	}
	if err != nil {
		return nil, apperrors.UnavailableError(err)
	}

	if device.UserID == nil {
		device.UserID = &userID
		if name != "" {
			device.DeviceName = name
		}
		if err := s.deviceRepo.Update(tx, device); err != nil {
			return nil, apperrors.UnavailableError(err)
		}
		return device, nil
	}
	if !device.OwnedBy(userID) {
		return nil, apperrors.ErrDeviceOwnershipConflict
	}
	return device, nil
}

// --- Очередь ---

// GetNextQueuePosition - следующая позиция очереди IMEI:
// max(занятых среди pending/queued) + 1, либо 1 для пустой очереди
func (s *SubscriptionService) GetNextQueuePosition(tx *gorm.DB, imei string) (int, error) {
	max, err := s.subRepo.MaxQueuePosition(tx, imei)
	if err != nil {
		return 0, apperrors.UnavailableError(err)
	}
	return max + 1, nil
}

// ReorderQueue пересчитывает очередь IMEI с нуля и переписывает
// позиции 1..N. Идемпотентна; вызывается всякий раз, когда запись
// покидает множество {pending, queued}, чтобы позиции оставались
// плотными. Вызывающий держит замок IMEI и транзакцию.
func (s *SubscriptionService) ReorderQueue(tx *gorm.DB, imei string) error {
	queue, err := s.subRepo.FindQueueByIMEI(tx, imei)
	if err != nil {
		return apperrors.UnavailableError(err)
	}
	for i := range queue {
		want := i + 1
		if queue[i].QueuePosition != want {
			if err := s.subRepo.SetQueuePosition(tx, queue[i].ID, want); err != nil {
				return apperrors.UnavailableError(err)
			}
		}
	}
	return nil
}

// UpdateQueuePosition переставляет запись на новую позицию, сдвигая
// промежуток одним атомарным батчем: позиции в каждый наблюдаемый
// момент остаются перестановкой 1..N.
func (s *SubscriptionService) UpdateQueuePosition(db *gorm.DB, id string, newPos int, adminID string) (*models.Subscription, error) {
	probe, err := s.subRepo.FindByID(db, id)
	if err != nil {
		return nil, s.notFoundOrUnavailable(err)
	}

	unlock := s.LockIMEI(probe.IMEI)
	defer unlock()

	var sub *models.Subscription
	err = db.Transaction(func(tx *gorm.DB) error {
		sub, err = s.subRepo.FindByID(tx, id)
		if err != nil {
			return s.notFoundOrUnavailable(err)
		}
		if !sub.Status.InQueue() {
			return apperrors.ErrInvalidStatus("queue", "subscription is not in the review queue")
		}

		queue, err := s.subRepo.FindQueueByIMEI(tx, sub.IMEI)
		if err != nil {
			return apperrors.UnavailableError(err)
		}
		if newPos < 1 || newPos > len(queue) {
			return apperrors.NewBadRequestError("queue position out of range")
		}

		oldPos := sub.QueuePosition
		if oldPos == newPos {
			return nil
		}

		// Сдвигаем вытесняемый промежуток, затем ставим целевую запись
		if newPos < oldPos {
			err = s.subRepo.ShiftQueuePositions(tx, sub.IMEI, newPos, oldPos-1, +1)
		} else {
			err = s.subRepo.ShiftQueuePositions(tx, sub.IMEI, oldPos+1, newPos, -1)
		}
		if err != nil {
			return apperrors.UnavailableError(err)
		}
		if err := s.subRepo.SetQueuePosition(tx, sub.ID, newPos); err != nil {
			return apperrors.UnavailableError(err)
		}
		sub.QueuePosition = newPos

		_, err = s.ledger.Record(tx, sub, models.TransactionQueuePositionUpdate,
			models.TransactionStatusCompleted, 0, &adminID, map[string]interface{}{
				"from": oldPos,
				"to":   newPos,
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// --- Переходы, выполняемые админом ---

// Approve одобряет заявку: pending -> approved, либо сразу active
// при activateNow. Повторно проверяет конфликты активности.
func (s *SubscriptionService) Approve(db *gorm.DB, id, adminID, comments string, activateNow bool) (*models.Subscription, string, error) {
	return s.reviewTransition(db, id, func(tx *gorm.DB, sub *models.Subscription) error {
		if sub.Status != models.SubscriptionStatusPending {
			return apperrors.ErrInvalidStatus("subscription", "only pending subscriptions can be approved")
		}
		if err := s.checkActiveConflicts(tx, sub); err != nil {
			return err
		}

		s.stampReview(sub, adminID, comments)
		if activateNow {
			s.startCycle(sub, sub.Plan)
		} else {
			sub.Status = models.SubscriptionStatusApproved
		}
		sub.QueuePosition = 0
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}

		if _, err := s.ledger.Record(tx, sub, models.TransactionApproved,
			models.TransactionStatusCompleted, sub.Price, &adminID,
			map[string]interface{}{"activateNow": activateNow, "comments": comments}); err != nil {
			return err
		}
		if activateNow {
			if _, err := s.ledger.Record(tx, sub, models.TransactionActivated,
				models.TransactionStatusCompleted, sub.Price, &adminID, nil); err != nil {
				return err
			}
		}
		return s.ReorderQueue(tx, sub.IMEI)
	})
}

// MarkQueued переводит заявку в очередь самостоятельной активации:
// pending -> queued. Пользователь активирует подписку OTP-кодом.
func (s *SubscriptionService) MarkQueued(db *gorm.DB, id, adminID, comments string) (*models.Subscription, string, error) {
	return s.reviewTransition(db, id, func(tx *gorm.DB, sub *models.Subscription) error {
		if sub.Status != models.SubscriptionStatusPending {
			return apperrors.ErrInvalidStatus("subscription", "only pending subscriptions can be queued")
		}
		s.stampReview(sub, adminID, comments)
		sub.Status = models.SubscriptionStatusQueued
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}
		// queued остается в множестве очереди, позиция сохраняется
		_, err := s.ledger.Record(tx, sub, models.TransactionApproved,
			models.TransactionStatusPending, sub.Price, &adminID,
			map[string]interface{}{"queued": true, "comments": comments})
		return err
	})
}

// Reject отклоняет заявку: pending -> cancelled. Причина обязательна.
func (s *SubscriptionService) Reject(db *gorm.DB, id, adminID, reason, comments string) (*models.Subscription, string, error) {
	if reason == "" {
		return nil, "", apperrors.NewBadRequestError("rejection reason is required")
	}
	return s.reviewTransition(db, id, func(tx *gorm.DB, sub *models.Subscription) error {
		if sub.Status != models.SubscriptionStatusPending {
			return apperrors.ErrInvalidStatus("subscription", "only pending subscriptions can be rejected")
		}
		s.stampReview(sub, adminID, comments)
		sub.Status = models.SubscriptionStatusCancelled
		sub.CancellationReason = reason
		now := time.Now()
		sub.CancelledAt = &now
		sub.QueuePosition = 0
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}

		if _, err := s.ledger.Record(tx, sub, models.TransactionRejected,
			models.TransactionStatusCompleted, 0, &adminID,
			map[string]interface{}{"reason": reason, "comments": comments}); err != nil {
			return err
		}
		return s.ReorderQueue(tx, sub.IMEI)
	})
}

// Activate активирует ранее одобренную заявку: approved -> active.
// Конфликты проверяются повторно - гонка с другими одобрениями.
func (s *SubscriptionService) Activate(db *gorm.DB, id, adminID string) (*models.Subscription, string, error) {
	return s.reviewTransition(db, id, func(tx *gorm.DB, sub *models.Subscription) error {
		if sub.Status != models.SubscriptionStatusApproved {
			return apperrors.ErrInvalidStatus("subscription", "only approved subscriptions can be activated")
		}
		if err := s.checkActiveConflicts(tx, sub); err != nil {
			return err
		}

		s.startCycle(sub, sub.Plan)
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}
		_, err := s.ledger.Record(tx, sub, models.TransactionActivated,
			models.TransactionStatusCompleted, sub.Price, &adminID, nil)
		return err
	})
}

// --- Самостоятельная активация через OTP ---

// ActivateViaOTP активирует подписку из статуса queued одноразовым
// кодом устройства. Успешная активация помечает устройство onboarded.
func (s *SubscriptionService) ActivateViaOTP(db *gorm.DB, userID, subID, imei, code string) (*models.Subscription, error) {
	probe, err := s.subRepo.FindByID(db, subID)
	if err != nil {
		return nil, s.notFoundOrUnavailable(err)
	}

	unlock := s.LockIMEI(probe.IMEI)
	defer unlock()

	var sub *models.Subscription
	err = db.Transaction(func(tx *gorm.DB) error {
		sub, err = s.subRepo.FindByID(tx, subID)
		if err != nil {
			return s.notFoundOrUnavailable(err)
		}
		if sub.UserID != userID {
			return apperrors.NewForbiddenError("subscription belongs to another account")
		}
		if sub.IMEI != imei {
			return apperrors.NewBadRequestError("imei does not match subscription")
		}
		if sub.Status != models.SubscriptionStatusQueued {
			return apperrors.ErrInvalidStatus("subscription", "only queued subscriptions can be activated with a one-time code")
		}

		device, err := s.deviceRepo.FindByUserAndIMEI(tx, userID, imei)
		if err == repositories.ErrNotFound {
			return apperrors.NewBadRequestError("device is not registered for this account")
		}
		if err != nil {
			return apperrors.UnavailableError(err)
		}
		if !s.devices.VerifyOTP(device, code) {
			return apperrors.ErrInvalidOTP
		}

		if err := s.checkActiveConflicts(tx, sub); err != nil {
			return err
		}

		s.startCycle(sub, sub.Plan)
		sub.QueuePosition = 0
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}
		if err := s.deviceRepo.MarkOnboarded(tx, device.ID, true); err != nil {
			return apperrors.UnavailableError(err)
		}

		if _, err := s.ledger.Record(tx, sub, models.TransactionActivated,
			models.TransactionStatusCompleted, sub.Price, nil,
			map[string]interface{}{"via": "otp", "deviceId": device.ID}); err != nil {
			return err
		}
		return s.ReorderQueue(tx, sub.IMEI)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// --- Самообслуживание активной подписки ---

// Upgrade повышает тариф активной подписки. Новый план обязан быть
// строго дороже; доплата = разница цен без взвешивания по дням,
// окно действия пересчитывается от startDate по новому плану.
func (s *SubscriptionService) Upgrade(db *gorm.DB, userID, newPlan string) (*models.Subscription, error) {
	target, ok := plans.Get(newPlan)
	if !ok {
		return nil, apperrors.ErrInvalidPlan(newPlan)
	}

	active, err := s.subRepo.FindActiveByUserID(db, userID)
	if err != nil {
		return nil, s.notFoundOrUnavailable(err)
	}
	if target.Price <= active.Price {
		return nil, apperrors.ErrConflict("subscription", "upgrade requires a strictly higher plan tier")
	}

	unlock := s.LockIMEI(active.IMEI)
	defer unlock()

	var sub *models.Subscription
	err = db.Transaction(func(tx *gorm.DB) error {
		sub, err = s.subRepo.FindByID(tx, active.ID)
		if err != nil {
			return s.notFoundOrUnavailable(err)
		}
		if sub.Status != models.SubscriptionStatusActive {
			return apperrors.ErrInvalidStatus("subscription", "only active subscriptions can be upgraded")
		}

		oldPlan := sub.Plan
		prorated := target.Price - sub.Price

		sub.Plan = target.Name
		sub.Price = target.Price
		if sub.StartDate != nil {
			end := sub.StartDate.AddDate(0, 0, target.DurationDays)
			sub.EndDate = &end
		}
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}

		// Пара записей журнала: pending фиксирует списание,
		// completed его подтверждает (платеж считается успешным)
		meta := map[string]interface{}{"fromPlan": oldPlan, "toPlan": target.Name}
		if _, err := s.ledger.Record(tx, sub, models.TransactionUpgraded,
			models.TransactionStatusPending, prorated, nil, meta); err != nil {
			return err
		}
		_, err = s.ledger.Record(tx, sub, models.TransactionUpgraded,
			models.TransactionStatusCompleted, prorated, nil, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Downgrade планирует понижение тарифа: цена и даты не меняются,
// смена плана вступает в силу на EndDate текущего цикла.
func (s *SubscriptionService) Downgrade(db *gorm.DB, userID, newPlan string) (*models.Subscription, error) {
	target, ok := plans.Get(newPlan)
	if !ok {
		return nil, apperrors.ErrInvalidPlan(newPlan)
	}

	active, err := s.subRepo.FindActiveByUserID(db, userID)
	if err != nil {
		return nil, s.notFoundOrUnavailable(err)
	}
	if target.Price >= active.Price {
		return nil, apperrors.ErrConflict("subscription", "downgrade requires a strictly lower plan tier")
	}

	unlock := s.LockIMEI(active.IMEI)
	defer unlock()

	var sub *models.Subscription
	err = db.Transaction(func(tx *gorm.DB) error {
		sub, err = s.subRepo.FindByID(tx, active.ID)
		if err != nil {
			return s.notFoundOrUnavailable(err)
		}
		if sub.Status != models.SubscriptionStatusActive {
			return apperrors.ErrInvalidStatus("subscription", "only active subscriptions can be downgraded")
		}

		plan := target.Name
		sub.PendingPlanChange = &plan
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}

		meta := map[string]interface{}{"fromPlan": sub.Plan, "toPlan": plan}
		if sub.EndDate != nil {
			meta["effectiveAt"] = sub.EndDate
		}
		// Без списания: completed сразу
		_, err = s.ledger.Record(tx, sub, models.TransactionDowngraded,
			models.TransactionStatusCompleted, 0, nil, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Cancel отменяет активную подписку: немедленно либо с дозреванием
// до конца оплаченного цикла.
func (s *SubscriptionService) Cancel(db *gorm.DB, userID, reason string, immediate bool) (*models.Subscription, error) {
	if reason == "" {
		return nil, apperrors.NewBadRequestError("cancellation reason is required")
	}

	active, err := s.subRepo.FindActiveByUserID(db, userID)
	if err != nil {
		return nil, s.notFoundOrUnavailable(err)
	}

	unlock := s.LockIMEI(active.IMEI)
	defer unlock()

	var sub *models.Subscription
	err = db.Transaction(func(tx *gorm.DB) error {
		sub, err = s.subRepo.FindByID(tx, active.ID)
		if err != nil {
			return s.notFoundOrUnavailable(err)
		}
		if sub.Status != models.SubscriptionStatusActive {
			return apperrors.ErrInvalidStatus("subscription", "only active subscriptions can be cancelled")
		}

		now := time.Now()
		sub.CancelledAt = &now
		sub.CancellationReason = reason
		meta := map[string]interface{}{"immediate": immediate, "reason": reason}
		if immediate {
			sub.Status = models.SubscriptionStatusCancelled
			sub.EndDate = &now
		} else if sub.EndDate != nil {
			// Подписка доживает до конца цикла, воркер завершит отмену
			meta["effectiveAt"] = sub.EndDate
		}
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}

		_, err = s.ledger.Record(tx, sub, models.TransactionCancelled,
			models.TransactionStatusCompleted, 0, nil, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Renew продлевает истекшую подписку: expired -> active,
// новый цикл от текущего момента, поля отмены очищаются.
func (s *SubscriptionService) Renew(db *gorm.DB, userID string) (*models.Subscription, error) {
	expired, err := s.subRepo.FindLatestByUserAndStatus(db, userID, models.SubscriptionStatusExpired)
	if err != nil {
		return nil, s.notFoundOrUnavailable(err)
	}

	unlock := s.LockIMEI(expired.IMEI)
	defer unlock()

	var sub *models.Subscription
	err = db.Transaction(func(tx *gorm.DB) error {
		sub, err = s.subRepo.FindByID(tx, expired.ID)
		if err != nil {
			return s.notFoundOrUnavailable(err)
		}
		if sub.Status != models.SubscriptionStatusExpired {
			return apperrors.ErrInvalidStatus("subscription", "only expired subscriptions can be renewed")
		}
		if err := s.checkActiveConflicts(tx, sub); err != nil {
			return err
		}

		s.startCycle(sub, sub.Plan)
		sub.CancelledAt = nil
		sub.CancellationReason = ""
		sub.PendingPlanChange = nil
		if err := s.subRepo.Update(tx, sub); err != nil {
			return apperrors.UnavailableError(err)
		}

		_, err = s.ledger.Record(tx, sub, models.TransactionRenewed,
			models.TransactionStatusCompleted, sub.Price, nil, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// --- Дожитие/истечение ---

// ProcessExpired завершает активные подписки с истекшим окном:
// применяет отложенный даунгрейд, дозревшую отмену либо помечает
// подписку истекшей. Каждая запись - отдельная транзакция.
func (s *SubscriptionService) ProcessExpired(db *gorm.DB) (int, error) {
	expired, err := s.subRepo.FindExpiredActive(db)
	if err != nil {
		return 0, apperrors.UnavailableError(err)
	}

	processed := 0
	for i := range expired {
		if err := s.expireOne(db, expired[i].ID, expired[i].IMEI); err != nil {
			logger.Error("failed to process expired subscription", "id", expired[i].ID, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *SubscriptionService) expireOne(db *gorm.DB, id, imei string) error {
	unlock := s.LockIMEI(imei)
	defer unlock()

	return db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.subRepo.FindByID(tx, id)
		if err != nil {
			return s.notFoundOrUnavailable(err)
		}
		if sub.Status != models.SubscriptionStatusActive || sub.EndDate == nil || sub.EndDate.After(time.Now()) {
			return nil // состояние изменилось, пропускаем
		}

		switch {
		case sub.PendingPlanChange != nil:
			// Отложенный даунгрейд: новый цикл на новом плане
			newPlan := *sub.PendingPlanChange
			s.startCycle(sub, newPlan)
			sub.PendingPlanChange = nil
			if err := s.subRepo.Update(tx, sub); err != nil {
				return apperrors.UnavailableError(err)
			}
			_, err = s.ledger.Record(tx, sub, models.TransactionDowngraded,
				models.TransactionStatusCompleted, sub.Price, nil,
				map[string]interface{}{"applied": true})
			return err

		case sub.CancelledAt != nil:
			// Дозревшая отложенная отмена
			sub.Status = models.SubscriptionStatusCancelled
			if err := s.subRepo.Update(tx, sub); err != nil {
				return apperrors.UnavailableError(err)
			}
			_, err = s.ledger.Record(tx, sub, models.TransactionCancelled,
				models.TransactionStatusCompleted, 0, nil,
				map[string]interface{}{"deferred": true})
			return err

		default:
			sub.Status = models.SubscriptionStatusExpired
			if err := s.subRepo.Update(tx, sub); err != nil {
				return apperrors.UnavailableError(err)
			}
			_, err = s.ledger.Record(tx, sub, models.TransactionExpired,
				models.TransactionStatusCompleted, 0, nil, nil)
			return err
		}
	})
}

// --- Чтение ---

func (s *SubscriptionService) GetByID(db *gorm.DB, id string) (*models.Subscription, error) {
	sub, err := s.subRepo.FindByID(db, id)
	if err != nil {
		return nil, s.notFoundOrUnavailable(err)
	}
	return sub, nil
}

// GetLatestForUser - последняя подписка пользователя
func (s *SubscriptionService) GetLatestForUser(db *gorm.DB, userID string) (*models.Subscription, error) {
	sub, err := s.subRepo.FindLatestByUserID(db, userID)
	if err != nil {
		return nil, s.notFoundOrUnavailable(err)
	}
	return sub, nil
}

// --- Вспомогательные ---

// reviewTransition - общий каркас админского перехода: загрузка,
// замок IMEI, транзакция, best-effort уведомление после коммита
func (s *SubscriptionService) reviewTransition(db *gorm.DB, id string, fn func(tx *gorm.DB, sub *models.Subscription) error) (*models.Subscription, string, error) {
	probe, err := s.subRepo.FindByID(db, id)
	if err != nil {
		return nil, "", s.notFoundOrUnavailable(err)
	}

	unlock := s.LockIMEI(probe.IMEI)
	defer unlock()

	var sub *models.Subscription
	err = db.Transaction(func(tx *gorm.DB) error {
		sub, err = s.subRepo.FindByID(tx, id)
		if err != nil {
			return s.notFoundOrUnavailable(err)
		}
		return fn(tx, sub)
	})
	if err != nil {
		return nil, "", err
	}

	// Уведомление строго после коммита; его провал - только warning
	warning := s.notifyStatus(sub)
	return sub, warning, nil
}

// notifyStatus шлет письмо о смене статуса. Ошибка не эскалируется.
func (s *SubscriptionService) notifyStatus(sub *models.Subscription) string {
	if s.emails == nil || sub.Email == "" {
		return ""
	}
	if err := s.emails.SendSubscriptionStatus(sub.Email, sub.Plan, string(sub.Status), sub.AdminNotes); err != nil {
		logger.Warn("status notification failed", "subscription_id", sub.ID, "error", err)
		return "status notification could not be delivered"
	}
	return ""
}

// checkActiveConflicts повторяет проверку "одна активная подписка
// на пользователя и на IMEI" непосредственно перед активацией
func (s *SubscriptionService) checkActiveConflicts(tx *gorm.DB, sub *models.Subscription) error {
	if other, err := s.subRepo.FindActiveByUserID(tx, sub.UserID); err == nil && other.ID != sub.ID {
		return apperrors.ErrActiveSubscriptionExists("account already has an active subscription")
	} else if err != nil && err != repositories.ErrNotFound {
		return apperrors.UnavailableError(err)
	}
	if other, err := s.subRepo.FindActiveByIMEI(tx, sub.IMEI); err == nil && other.ID != sub.ID {
		return apperrors.ErrActiveSubscriptionExists("device already has an active subscription")
	} else if err != nil && err != repositories.ErrNotFound {
		return apperrors.UnavailableError(err)
	}
	return nil
}

// startCycle открывает оплаченный цикл: план, цена, окно действия
func (s *SubscriptionService) startCycle(sub *models.Subscription, plan string) {
	now := time.Now()
	end := now.AddDate(0, 0, plans.DurationDays(plan))
	sub.Plan = plan
	sub.Price = plans.Price(plan)
	sub.Status = models.SubscriptionStatusActive
	sub.StartDate = &now
	sub.EndDate = &end
}

func (s *SubscriptionService) stampReview(sub *models.Subscription, adminID, comments string) {
	now := time.Now()
	sub.ReviewedBy = &adminID
	sub.ReviewedAt = &now
	if comments != "" {
		sub.AdminNotes = comments
	}
}

func (s *SubscriptionService) notFoundOrUnavailable(err error) error {
	if err == repositories.ErrNotFound {
		return apperrors.ErrNotFound(err)
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	return apperrors.UnavailableError(err)
}
