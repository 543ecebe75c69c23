package services

import (
	"testing"
	"time"

	"commsub_backend/internal/dto"
	"commsub_backend/internal/models"
	"commsub_backend/internal/plans"
	"commsub_backend/pkg/apperrors"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) createSub(t *testing.T, user *models.User, imei, plan string) *models.Subscription {
	t.Helper()
	sub, err := e.subs.Create(e.db, user, &dto.CreateSubscriptionRequest{
		IMEI:       imei,
		DeviceName: "test device",
		Plan:       plan,
	})
	require.NoError(t, err)
	return sub
}

func (e *testEnv) queuePositions(t *testing.T, imei string) map[string]int {
	t.Helper()
	queue, err := e.subRepo.FindQueueByIMEI(e.db, imei)
	require.NoError(t, err)
	out := make(map[string]int, len(queue))
	for _, s := range queue {
		out[s.ID] = s.QueuePosition
	}
	return out
}

func TestCreateSubscription(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	sub := env.createSub(t, user, imei, plans.MobileV4Basic)

	assert.Equal(t, models.SubscriptionStatusPending, sub.Status)
	assert.Equal(t, 1, sub.QueuePosition)
	assert.Equal(t, 29.99, sub.Price)
	assert.Equal(t, user.Email, sub.Email)

	// Устройство создано и привязано к пользователю
	device, err := env.deviceRepo.FindByIMEI(env.db, imei)
	require.NoError(t, err)
	assert.True(t, device.OwnedBy(user.ID))

	// Журнал открыт записью created
	txns, err := env.txnRepo.FindBySubscription(env.db, sub.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionCreated, txns[0].Type)
	assert.Equal(t, 29.99, txns[0].Amount)
	assert.Nil(t, txns[0].PreviousTransactionID)
}

func TestCreateSubscriptionUnknownPlan(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")

	_, err := env.subs.Create(env.db, user, &dto.CreateSubscriptionRequest{
		IMEI: testIMEI(1),
		Plan: "mobile-v9-ultra",
	})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidPlan, appErr.Code)
	assert.Equal(t, 400, appErr.HTTPCode)
}

func TestCreateSubscriptionQueuePositionsDense(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	s1 := env.createSub(t, user, imei, plans.MobileV4Basic)
	s2 := env.createSub(t, user, imei, plans.MobileV4Premium)
	s3 := env.createSub(t, user, imei, plans.MobileV5Basic)

	positions := env.queuePositions(t, imei)
	assert.Equal(t, 1, positions[s1.ID])
	assert.Equal(t, 2, positions[s2.ID])
	assert.Equal(t, 3, positions[s3.ID])
}

func TestCreateSubscriptionDeviceOwnershipConflict(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	imei := testIMEI(1)

	env.createSub(t, alice, imei, plans.MobileV4Basic)

	_, err := env.subs.Create(env.db, bob, &dto.CreateSubscriptionRequest{
		IMEI: imei,
		Plan: plans.MobileV4Basic,
	})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeDeviceOwnershipConflict, appErr.Code)
	assert.Equal(t, 403, appErr.HTTPCode)
}

func TestCreateSubscriptionActiveConflict(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	sub := env.createSub(t, user, imei, plans.MobileV4Basic)
	_, _, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", true)
	require.NoError(t, err)

	// Вторая заявка того же пользователя при активной подписке
	_, err = env.subs.Create(env.db, user, &dto.CreateSubscriptionRequest{
		IMEI: imei,
		Plan: plans.MobileV4Premium,
	})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, 400, appErr.HTTPCode)
}

func TestApproveActivateNow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Premium)

	approved, warning, err := env.subs.Approve(env.db, sub.ID, admin.ID, "looks good", true)
	require.NoError(t, err)
	assert.Empty(t, warning)

	assert.Equal(t, models.SubscriptionStatusActive, approved.Status)
	assert.Equal(t, 0, approved.QueuePosition)
	require.NotNil(t, approved.StartDate)
	require.NotNil(t, approved.EndDate)
	assert.WithinDuration(t,
		approved.StartDate.AddDate(0, 0, 60), *approved.EndDate, time.Second)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, admin.ID, *approved.ReviewedBy)
	assert.Equal(t, "looks good", approved.AdminNotes)

	// Цепочка журнала: created -> approved -> activated
	txns, err := env.txnRepo.FindBySubscription(env.db, sub.ID)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, models.TransactionCreated, txns[0].Type)
	assert.Equal(t, models.TransactionApproved, txns[1].Type)
	assert.Equal(t, models.TransactionActivated, txns[2].Type)
	assert.Nil(t, txns[0].PreviousTransactionID)
	require.NotNil(t, txns[1].PreviousTransactionID)
	assert.Equal(t, txns[0].ID, *txns[1].PreviousTransactionID)
	require.NotNil(t, txns[2].PreviousTransactionID)
	assert.Equal(t, txns[1].ID, *txns[2].PreviousTransactionID)

	// Уведомление отправлено после коммита
	assert.Equal(t, 1, env.emails.SentCount())
}

func TestApproveOnlyPending(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)
	_, _, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", false)
	require.NoError(t, err)

	_, _, err = env.subs.Approve(env.db, sub.ID, admin.ID, "", false)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidStatus, appErr.Code)
}

func TestApproveNotificationFailureIsSoft(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)

	env.emails.FailNext = assert.AnError
	approved, warning, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", false)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusApproved, approved.Status)
	assert.NotEmpty(t, warning)
}

func TestRejectReordersQueue(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	s1 := env.createSub(t, user, imei, plans.MobileV4Basic)
	s2 := env.createSub(t, user, imei, plans.MobileV4Premium)
	s3 := env.createSub(t, user, imei, plans.MobileV5Basic)

	rejected, _, err := env.subs.Reject(env.db, s1.ID, admin.ID, "incomplete documents", "")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, rejected.Status)
	assert.Equal(t, "incomplete documents", rejected.CancellationReason)

	// Дыра закрыта: оставшиеся позиции снова 1..N
	positions := env.queuePositions(t, imei)
	assert.Len(t, positions, 2)
	assert.Equal(t, 1, positions[s2.ID])
	assert.Equal(t, 2, positions[s3.ID])
}

func TestRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)
	_, _, err := env.subs.Reject(env.db, sub.ID, admin.ID, "", "")
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.HTTPCode)
}

func TestUpdateQueuePosition(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	s1 := env.createSub(t, user, imei, plans.MobileV4Basic)
	s2 := env.createSub(t, user, imei, plans.MobileV4Premium)
	s3 := env.createSub(t, user, imei, plans.MobileV5Basic)

	// Поднимаем третьего на первое место
	moved, err := env.subs.UpdateQueuePosition(env.db, s3.ID, 1, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.QueuePosition)

	positions := env.queuePositions(t, imei)
	assert.Equal(t, 1, positions[s3.ID])
	assert.Equal(t, 2, positions[s1.ID])
	assert.Equal(t, 3, positions[s2.ID])

	// Опускаем обратно в конец
	_, err = env.subs.UpdateQueuePosition(env.db, s3.ID, 3, admin.ID)
	require.NoError(t, err)

	positions = env.queuePositions(t, imei)
	assert.Equal(t, 1, positions[s1.ID])
	assert.Equal(t, 2, positions[s2.ID])
	assert.Equal(t, 3, positions[s3.ID])
}

func TestUpdateQueuePositionOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	sub := env.createSub(t, user, imei, plans.MobileV4Basic)

	_, err := env.subs.UpdateQueuePosition(env.db, sub.ID, 5, admin.ID)
	require.Error(t, err)

	_, err = env.subs.UpdateQueuePosition(env.db, sub.ID, 0, admin.ID)
	require.Error(t, err)
}

func TestActivateViaOTP(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	sub := env.createSub(t, user, imei, plans.MobileV4Basic)
	_, _, err := env.subs.MarkQueued(env.db, sub.ID, admin.ID, "self activation")
	require.NoError(t, err)

	setup, err := env.devices.SetupOTP(env.db, user.ID, &dto.SetupOTPRequest{IMEI: imei})
	require.NoError(t, err)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	activated, err := env.subs.ActivateViaOTP(env.db, user.ID, sub.ID, imei, code)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, activated.Status)
	require.NotNil(t, activated.StartDate)
	require.NotNil(t, activated.EndDate)

	// Устройство прошло онбординг
	onboarded, err := env.devices.CheckOnboarded(env.db, user.ID, imei)
	require.NoError(t, err)
	assert.True(t, onboarded)

	// Запись покинула очередь
	assert.Empty(t, env.queuePositions(t, imei))
}

func TestActivateViaOTPWrongCode(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	sub := env.createSub(t, user, imei, plans.MobileV4Basic)
	_, _, err := env.subs.MarkQueued(env.db, sub.ID, admin.ID, "")
	require.NoError(t, err)

	_, err = env.devices.SetupOTP(env.db, user.ID, &dto.SetupOTPRequest{IMEI: imei})
	require.NoError(t, err)

	_, err = env.subs.ActivateViaOTP(env.db, user.ID, sub.ID, imei, "000000")
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidOTP, appErr.Code)

	// Статус не изменился
	current, err := env.subs.GetByID(env.db, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusQueued, current.Status)
}

func TestActivateViaOTPRequiresQueuedStatus(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	sub := env.createSub(t, user, imei, plans.MobileV4Basic)

	setup, err := env.devices.SetupOTP(env.db, user.ID, &dto.SetupOTPRequest{IMEI: imei})
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	// pending нельзя активировать самостоятельно
	_, err = env.subs.ActivateViaOTP(env.db, user.ID, sub.ID, imei, code)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidStatus, appErr.Code)
}

func TestActivateViaOTPForeignSubscription(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	imei := testIMEI(1)

	sub := env.createSub(t, alice, imei, plans.MobileV4Basic)
	_, _, err := env.subs.MarkQueued(env.db, sub.ID, admin.ID, "")
	require.NoError(t, err)

	_, err = env.subs.ActivateViaOTP(env.db, bob.ID, sub.ID, imei, "123456")
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 403, appErr.HTTPCode)
}

func TestUpgrade(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)
	_, _, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", true)
	require.NoError(t, err)

	upgraded, err := env.subs.Upgrade(env.db, user.ID, plans.MobileV4Premium)
	require.NoError(t, err)

	assert.Equal(t, plans.MobileV4Premium, upgraded.Plan)
	assert.Equal(t, 49.99, upgraded.Price)
	require.NotNil(t, upgraded.EndDate)
	assert.WithinDuration(t,
		upgraded.StartDate.AddDate(0, 0, 60), *upgraded.EndDate, time.Second)

	// Пара записей upgraded: pending, затем completed, с доплатой
	txns, err := env.txnRepo.FindBySubscription(env.db, sub.ID)
	require.NoError(t, err)
	var upgrades []models.Transaction
	for _, txn := range txns {
		if txn.Type == models.TransactionUpgraded {
			upgrades = append(upgrades, txn)
		}
	}
	require.Len(t, upgrades, 2)
	assert.Equal(t, models.TransactionStatusPending, upgrades[0].Status)
	assert.Equal(t, models.TransactionStatusCompleted, upgrades[1].Status)
	assert.InDelta(t, 20.0, upgrades[0].Amount, 0.001)
}

func TestUpgradeRequiresHigherTier(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Premium)
	_, _, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", true)
	require.NoError(t, err)

	// Равный и более дешевый планы отклоняются
	_, err = env.subs.Upgrade(env.db, user.ID, plans.MobileV4Premium)
	require.Error(t, err)
	_, err = env.subs.Upgrade(env.db, user.ID, plans.MobileV4Basic)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestDowngradeIsDeferred(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Premium)
	_, _, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", true)
	require.NoError(t, err)

	downgraded, err := env.subs.Downgrade(env.db, user.ID, plans.MobileV4Basic)
	require.NoError(t, err)

	// План и цена текущего цикла не тронуты
	assert.Equal(t, plans.MobileV4Premium, downgraded.Plan)
	assert.Equal(t, 49.99, downgraded.Price)
	require.NotNil(t, downgraded.PendingPlanChange)
	assert.Equal(t, plans.MobileV4Basic, *downgraded.PendingPlanChange)
}

func TestDowngradeRequiresLowerTier(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)
	_, _, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", true)
	require.NoError(t, err)

	_, err = env.subs.Downgrade(env.db, user.ID, plans.MobileV4Premium)
	require.Error(t, err)
}

func TestCancelImmediate(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)
	_, _, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", true)
	require.NoError(t, err)

	cancelled, err := env.subs.Cancel(env.db, user.ID, "switching provider", true)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "switching provider", cancelled.CancellationReason)
}

func TestCancelDeferredStaysActive(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)
	_, _, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", true)
	require.NoError(t, err)

	cancelled, err := env.subs.Cancel(env.db, user.ID, "no longer needed", false)
	require.NoError(t, err)

	// Доживает до конца оплаченного цикла
	assert.Equal(t, models.SubscriptionStatusActive, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
}

func TestRenewExpired(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)
	_, _, err := env.subs.Approve(env.db, sub.ID, admin.ID, "", true)
	require.NoError(t, err)

	env.forceExpiry(t, sub.ID)
	processed, err := env.subs.ProcessExpired(env.db)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	renewed, err := env.subs.Renew(env.db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, renewed.Status)
	require.NotNil(t, renewed.EndDate)
	assert.True(t, renewed.EndDate.After(time.Now()))
	assert.Nil(t, renewed.CancelledAt)
	assert.Nil(t, renewed.PendingPlanChange)
}

func TestRenewWithoutExpired(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")

	_, err := env.subs.Renew(env.db, user.ID)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.HTTPCode)
}

// forceExpiry сдвигает окно действия в прошлое
func (e *testEnv) forceExpiry(t *testing.T, id string) {
	t.Helper()
	sub, err := e.subRepo.FindByID(e.db, id)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	sub.EndDate = &past
	require.NoError(t, e.subRepo.Update(e.db, sub))
}

func TestProcessExpired(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)

	// Обычное истечение
	alice := env.createUser(t, "alice")
	s1 := env.createSub(t, alice, testIMEI(1), plans.MobileV4Basic)
	_, _, err := env.subs.Approve(env.db, s1.ID, admin.ID, "", true)
	require.NoError(t, err)
	env.forceExpiry(t, s1.ID)

	// Отложенный даунгрейд
	bob := env.createUser(t, "bob")
	s2 := env.createSub(t, bob, testIMEI(2), plans.MobileV4Premium)
	_, _, err = env.subs.Approve(env.db, s2.ID, admin.ID, "", true)
	require.NoError(t, err)
	_, err = env.subs.Downgrade(env.db, bob.ID, plans.MobileV4Basic)
	require.NoError(t, err)
	env.forceExpiry(t, s2.ID)

	// Дозревающая отмена
	carol := env.createUser(t, "carol")
	s3 := env.createSub(t, carol, testIMEI(3), plans.MobileV5Basic)
	_, _, err = env.subs.Approve(env.db, s3.ID, admin.ID, "", true)
	require.NoError(t, err)
	_, err = env.subs.Cancel(env.db, carol.ID, "done with it", false)
	require.NoError(t, err)
	env.forceExpiry(t, s3.ID)

	processed, err := env.subs.ProcessExpired(env.db)
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	expired, err := env.subRepo.FindByID(env.db, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpired, expired.Status)

	downgraded, err := env.subRepo.FindByID(env.db, s2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, downgraded.Status)
	assert.Equal(t, plans.MobileV4Basic, downgraded.Plan)
	assert.Equal(t, 29.99, downgraded.Price)
	assert.Nil(t, downgraded.PendingPlanChange)
	assert.True(t, downgraded.EndDate.After(time.Now()))

	cancelled, err := env.subRepo.FindByID(env.db, s3.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, cancelled.Status)
}
