package handlers

import (
	"strconv"

	"commsub_backend/internal/dto"
	"commsub_backend/internal/middleware"
	"commsub_backend/internal/models"
	"commsub_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler - очередь ревью, дашборд и журнал транзакций
type AdminHandler struct {
	*BaseHandler
	admin         *services.AdminService
	subscriptions *services.SubscriptionService
	ledger        *services.LedgerService
}

func NewAdminHandler(
	base *BaseHandler,
	admin *services.AdminService,
	subscriptions *services.SubscriptionService,
	ledger *services.LedgerService,
) *AdminHandler {
	return &AdminHandler{
		BaseHandler:   base,
		admin:         admin,
		subscriptions: subscriptions,
		ledger:        ledger,
	}
}

func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin",
		middleware.AuthMiddleware(),
		middleware.RoleMiddleware(string(models.UserRoleAdmin)),
	)
	{
		admin.GET("/queue", h.Queue)
		admin.GET("/dashboard", h.Dashboard)
		admin.GET("/transactions", h.Transactions)
		admin.POST("/subscriptions/bulk", h.Bulk)
		admin.POST("/subscriptions/process-expired", h.ProcessExpired)

		sub := admin.Group("/subscriptions/:id")
		{
			sub.POST("/approve", h.Approve)
			sub.POST("/reject", h.Reject)
			sub.POST("/queue", h.MarkQueued)
			sub.POST("/activate", h.Activate)
			sub.PATCH("/priority", h.UpdatePriority)
			sub.PATCH("/position", h.UpdatePosition)
		}
	}
}

// Queue - GET /admin/queue
func (h *AdminHandler) Queue(c *gin.Context) {
	var q dto.QueueListQuery
	if !h.BindAndValidateQuery(c, &q) {
		return
	}

	subs, total, err := h.admin.ListQueue(h.GetDB(c), &q)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, gin.H{
		"items": subs,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

// Dashboard - GET /admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.admin.Dashboard(h.GetDB(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, stats)
}

// Transactions - GET /admin/transactions
func (h *AdminHandler) Transactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	txns, total, err := h.ledger.List(h.GetDB(c), c.Query("type"), c.Query("status"), page, limit)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, gin.H{
		"items": txns,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// ProcessExpired - POST /admin/subscriptions/process-expired
// Ручной запуск той же обработки, что выполняет фоновый воркер
func (h *AdminHandler) ProcessExpired(c *gin.Context) {
	processed, err := h.subscriptions.ProcessExpired(h.GetDB(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, gin.H{"processed": processed})
}

// Approve - POST /admin/subscriptions/:id/approve
func (h *AdminHandler) Approve(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)

	var req dto.ApproveRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	sub, warning, err := h.subscriptions.Approve(h.GetDB(c), c.Param("id"), adminID, req.Comments, req.ActivateNow)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, h.withWarning(sub, warning))
}

// Reject - POST /admin/subscriptions/:id/reject
func (h *AdminHandler) Reject(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)

	var req dto.RejectRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	sub, warning, err := h.subscriptions.Reject(h.GetDB(c), c.Param("id"), adminID, req.Reason, req.Comments)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, h.withWarning(sub, warning))
}

// MarkQueued - POST /admin/subscriptions/:id/queue
func (h *AdminHandler) MarkQueued(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)

	var req dto.QueueMarkRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	sub, warning, err := h.subscriptions.MarkQueued(h.GetDB(c), c.Param("id"), adminID, req.Comments)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, h.withWarning(sub, warning))
}

// Activate - POST /admin/subscriptions/:id/activate
func (h *AdminHandler) Activate(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)

	sub, warning, err := h.subscriptions.Activate(h.GetDB(c), c.Param("id"), adminID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, h.withWarning(sub, warning))
}

// UpdatePriority - PATCH /admin/subscriptions/:id/priority
func (h *AdminHandler) UpdatePriority(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)

	var req dto.UpdatePriorityRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	sub, err := h.admin.UpdatePriority(h.GetDB(c), c.Param("id"), req.Priority, adminID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, sub)
}

// UpdatePosition - PATCH /admin/subscriptions/:id/position
func (h *AdminHandler) UpdatePosition(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)

	var req dto.UpdatePositionRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.UpdateQueuePosition(h.GetDB(c), c.Param("id"), req.Position, adminID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, sub)
}

// Bulk - POST /admin/subscriptions/bulk
func (h *AdminHandler) Bulk(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)

	var req dto.BulkOperationRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	results, err := h.admin.BulkOperation(h.GetDB(c), &req, adminID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, gin.H{"results": results})
}

func (h *AdminHandler) withWarning(sub *models.Subscription, warning string) gin.H {
	resp := gin.H{"subscription": sub}
	if warning != "" {
		resp["warning"] = warning
	}
	return resp
}
