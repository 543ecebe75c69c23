package repositories

import (
	"strings"

	"commsub_backend/internal/models"

	"gorm.io/gorm"
)

type SubscriptionRepository struct{}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{}
}

// QueueFilter - параметры листинга очереди для админки
type QueueFilter struct {
	Status    string
	Plan      string
	Search    string // free-text по IMEI/email
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

func (r *SubscriptionRepository) Create(db *gorm.DB, sub *models.Subscription) error {
	return translate(db.Create(sub).Error)
}

func (r *SubscriptionRepository) FindByID(db *gorm.DB, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := db.First(&sub, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) Update(db *gorm.DB, sub *models.Subscription) error {
	return translate(db.Save(sub).Error)
}

// FindActiveByUserID ищет активную подписку пользователя
func (r *SubscriptionRepository) FindActiveByUserID(db *gorm.DB, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// FindActiveByIMEI ищет активную подписку устройства
func (r *SubscriptionRepository) FindActiveByIMEI(db *gorm.DB, imei string) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("imei = ? AND status = ?", imei, models.SubscriptionStatusActive).
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// FindLatestByUserAndStatus - последняя подписка пользователя в данном статусе
func (r *SubscriptionRepository) FindLatestByUserAndStatus(db *gorm.DB, userID string, status models.SubscriptionStatus) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("user_id = ? AND status = ?", userID, status).
		Order("created_at desc").
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// FindLatestByUserID - последняя подписка пользователя независимо от статуса
func (r *SubscriptionRepository) FindLatestByUserID(db *gorm.DB, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("user_id = ?", userID).
		Order("created_at desc").
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// MaxQueuePosition возвращает максимальную занятую позицию очереди IMEI
// среди статусов pending/queued (0, если очередь пуста)
func (r *SubscriptionRepository) MaxQueuePosition(db *gorm.DB, imei string) (int, error) {
	var max *int
	err := db.Model(&models.Subscription{}).
		Select("MAX(queue_position)").
		Where("imei = ? AND status IN ?", imei, queueStatuses()).
		Scan(&max).Error
	if err != nil {
		return 0, translate(err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// FindQueueByIMEI возвращает очередь IMEI в каноническом порядке:
// приоритет по убыванию, затем FIFO по времени создания
func (r *SubscriptionRepository) FindQueueByIMEI(db *gorm.DB, imei string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := db.Where("imei = ? AND status IN ?", imei, queueStatuses()).
		Order("priority desc").
		Order("created_at asc").
		Find(&subs).Error
	if err != nil {
		return nil, translate(err)
	}
	return subs, nil
}

// ShiftQueuePositions сдвигает позиции [from, to] на delta одной командой
func (r *SubscriptionRepository) ShiftQueuePositions(db *gorm.DB, imei string, from, to, delta int) error {
	return translate(db.Model(&models.Subscription{}).
		Where("imei = ? AND status IN ? AND queue_position >= ? AND queue_position <= ?",
			imei, queueStatuses(), from, to).
		Update("queue_position", gorm.Expr("queue_position + ?", delta)).Error)
}

// SetQueuePosition выставляет позицию одной записи
func (r *SubscriptionRepository) SetQueuePosition(db *gorm.DB, id string, position int) error {
	return translate(db.Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("queue_position", position).Error)
}

// List выполняет фильтрацию/пагинацию очереди для админки
func (r *SubscriptionRepository) List(db *gorm.DB, f QueueFilter) ([]models.Subscription, int64, error) {
	query := db.Model(&models.Subscription{})

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Plan != "" {
		query = query.Where("plan = ?", f.Plan)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("LOWER(imei) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	sortBy := f.SortBy
	switch sortBy {
	case "created_at", "queue_position", "priority", "reviewed_at", "price", "plan", "status":
	default:
		sortBy = "created_at"
	}
	order := "asc"
	if strings.EqualFold(f.SortOrder, "desc") {
		order = "desc"
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var subs []models.Subscription
	err := query.Order(sortBy + " " + order).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return subs, total, nil
}

// FindExpiredActive возвращает активные подписки с истекшим окном действия
func (r *SubscriptionRepository) FindExpiredActive(db *gorm.DB) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := db.Where("status = ? AND end_date IS NOT NULL AND end_date <= CURRENT_TIMESTAMP",
		models.SubscriptionStatusActive).
		Find(&subs).Error
	if err != nil {
		return nil, translate(err)
	}
	return subs, nil
}

// CountByStatus - количество подписок по каждому статусу
func (r *SubscriptionRepository) CountByStatus(db *gorm.DB) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := db.Model(&models.Subscription{}).
		Select("status, COUNT(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

// PlanStat - счетчик и доход по одному плану
type PlanStat struct {
	Plan    string  `json:"plan"`
	Total   int64   `json:"total"`
	Revenue float64 `json:"revenue"`
}

// StatsByPlan - количество и доход по планам среди активных подписок
func (r *SubscriptionRepository) StatsByPlan(db *gorm.DB) ([]PlanStat, error) {
	var stats []PlanStat
	err := db.Model(&models.Subscription{}).
		Select("plan, COUNT(*) as total, COALESCE(SUM(price), 0) as revenue").
		Where("status = ?", models.SubscriptionStatusActive).
		Group("plan").
		Order("revenue desc").
		Scan(&stats).Error
	if err != nil {
		return nil, translate(err)
	}
	return stats, nil
}

// FindReviewed возвращает пары (created_at, reviewed_at) отревьюенных заявок
// для расчета среднего времени обработки
func (r *SubscriptionRepository) FindReviewed(db *gorm.DB) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := db.Select("id, created_at, reviewed_at").
		Where("reviewed_at IS NOT NULL").
		Find(&subs).Error
	if err != nil {
		return nil, translate(err)
	}
	return subs, nil
}

func queueStatuses() []models.SubscriptionStatus {
	return []models.SubscriptionStatus{
		models.SubscriptionStatusPending,
		models.SubscriptionStatusQueued,
	}
}
