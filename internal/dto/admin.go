package dto

// ApproveRequest - одобрение заявки админом
type ApproveRequest struct {
	Comments    string `json:"comments" validate:"omitempty,max=500"`
	ActivateNow bool   `json:"activateNow"`
}

type RejectRequest struct {
	Reason   string `json:"reason" binding:"required" validate:"required,min=3"`
	Comments string `json:"comments" validate:"omitempty,max=500"`
}

type QueueMarkRequest struct {
	Comments string `json:"comments" validate:"omitempty,max=500"`
}

type UpdatePriorityRequest struct {
	Priority int `json:"priority" validate:"gte=0,lte=100"`
}

type UpdatePositionRequest struct {
	Position int `json:"position" binding:"required" validate:"required,gte=1"`
}

// BulkOperationRequest - массовая операция над заявками.
// Каждый id обрабатывается независимо: частичный провал не
// откатывает остальных.
type BulkOperationRequest struct {
	Action   string   `json:"action" binding:"required" validate:"required,oneof=approve reject queue under_review update_priority"`
	IDs      []string `json:"ids" binding:"required" validate:"required,min=1,max=100,dive,required"`
	Reason   string   `json:"reason" validate:"omitempty,max=500"`
	Priority int      `json:"priority" validate:"gte=0,lte=100"`
}

// BulkResult - результат по одному id
type BulkResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// QueueListQuery - фильтры листинга очереди
type QueueListQuery struct {
	Status    string `form:"status" validate:"omitempty,oneof=pending approved queued active cancelled expired"`
	Plan      string `form:"plan" validate:"omitempty,is-plan"`
	Search    string `form:"search" validate:"omitempty,max=64"`
	SortBy    string `form:"sortBy" validate:"omitempty,oneof=created_at queue_position priority reviewed_at price plan status"`
	SortOrder string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page      int    `form:"page" validate:"omitempty,gte=1"`
	Limit     int    `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// DashboardStats - агрегаты для админ-дашборда
type DashboardStats struct {
	CountsByStatus       map[string]int64 `json:"countsByStatus"`
	PlanStats            interface{}      `json:"planStats"`
	TotalRevenue         float64          `json:"totalRevenue"`
	AvgProcessingSeconds float64          `json:"avgProcessingSeconds"`
}
