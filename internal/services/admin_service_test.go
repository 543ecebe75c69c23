package services

import (
	"testing"

	"commsub_backend/internal/dto"
	"commsub_backend/internal/models"
	"commsub_backend/internal/plans"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListQueueFilters(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	s1 := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)
	env.createSub(t, user, testIMEI(2), plans.MobileV4Premium)
	_, _, err := env.subs.Approve(env.db, s1.ID, admin.ID, "", false)
	require.NoError(t, err)

	pending, total, err := env.admin.ListQueue(env.db, &dto.QueueListQuery{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)
	assert.Equal(t, testIMEI(2), pending[0].IMEI)

	byPlan, total, err := env.admin.ListQueue(env.db, &dto.QueueListQuery{Plan: plans.MobileV4Basic})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, byPlan, 1)
	assert.Equal(t, s1.ID, byPlan[0].ID)

	bySearch, total, err := env.admin.ListQueue(env.db, &dto.QueueListQuery{Search: "alice@"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, bySearch, 2)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)

	alice := env.createUser(t, "alice")
	s1 := env.createSub(t, alice, testIMEI(1), plans.MobileV4Basic)
	_, _, err := env.subs.Approve(env.db, s1.ID, admin.ID, "", true)
	require.NoError(t, err)

	bob := env.createUser(t, "bob")
	env.createSub(t, bob, testIMEI(2), plans.MobileV4Premium)

	stats, err := env.admin.Dashboard(env.db)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.CountsByStatus["active"])
	assert.Equal(t, int64(1), stats.CountsByStatus["pending"])
	assert.InDelta(t, 29.99, stats.TotalRevenue, 0.001)
	assert.GreaterOrEqual(t, stats.AvgProcessingSeconds, 0.0)
}

func TestUpdatePriorityReordersQueue(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")
	imei := testIMEI(1)

	s1 := env.createSub(t, user, imei, plans.MobileV4Basic)
	s2 := env.createSub(t, user, imei, plans.MobileV4Premium)
	s3 := env.createSub(t, user, imei, plans.MobileV5Basic)

	// Высокий приоритет поднимает последнего в голову очереди
	moved, err := env.admin.UpdatePriority(env.db, s3.ID, 10, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.QueuePosition)

	positions := env.queuePositions(t, imei)
	assert.Equal(t, 1, positions[s3.ID])
	assert.Equal(t, 2, positions[s1.ID])
	assert.Equal(t, 3, positions[s2.ID])
}

func TestMarkUnderReviewKeepsPending(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")

	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)

	reviewed, err := env.admin.MarkUnderReview(env.db, sub.ID, admin.ID, "checking documents")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPending, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, admin.ID, *reviewed.ReviewedBy)
	assert.Equal(t, "checking documents", reviewed.AdminNotes)
}

func TestBulkOperationPartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)

	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	s1 := env.createSub(t, alice, testIMEI(1), plans.MobileV4Basic)
	s2 := env.createSub(t, bob, testIMEI(2), plans.MobileV4Premium)

	results, err := env.admin.BulkOperation(env.db, &dto.BulkOperationRequest{
		Action: "approve",
		IDs:    []string{s1.ID, "no-such-id", s2.ID},
	}, admin.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Reason)
	assert.True(t, results[2].Success)

	// Провал одного id не откатил остальных
	first, err := env.subRepo.FindByID(env.db, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusApproved, first.Status)
	second, err := env.subRepo.FindByID(env.db, s2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusApproved, second.Status)
}

func TestBulkRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")
	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)

	_, err := env.admin.BulkOperation(env.db, &dto.BulkOperationRequest{
		Action: "reject",
		IDs:    []string{sub.ID},
	}, admin.ID)
	require.Error(t, err)
}

func TestBulkQueueAction(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createAdmin(t)
	user := env.createUser(t, "alice")
	sub := env.createSub(t, user, testIMEI(1), plans.MobileV4Basic)

	results, err := env.admin.BulkOperation(env.db, &dto.BulkOperationRequest{
		Action: "queue",
		IDs:    []string{sub.ID},
	}, admin.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	queued, err := env.subRepo.FindByID(env.db, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusQueued, queued.Status)
	// Позиция в очереди сохраняется
	assert.Equal(t, 1, queued.QueuePosition)
}
