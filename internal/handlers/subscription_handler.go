package handlers

import (
	"commsub_backend/internal/dto"
	"commsub_backend/internal/middleware"
	"commsub_backend/internal/models"
	"commsub_backend/internal/plans"
	"commsub_backend/internal/services"
	"commsub_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// SubscriptionHandler - пользовательский API подписок и устройств
type SubscriptionHandler struct {
	*BaseHandler
	subscriptions *services.SubscriptionService
	devices       *services.DeviceService
	ledger        *services.LedgerService
	uploads       *services.UploadService
	auth          *services.AuthService
}

func NewSubscriptionHandler(
	base *BaseHandler,
	subscriptions *services.SubscriptionService,
	devices *services.DeviceService,
	ledger *services.LedgerService,
	uploads *services.UploadService,
	auth *services.AuthService,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:   base,
		subscriptions: subscriptions,
		devices:       devices,
		ledger:        ledger,
		uploads:       uploads,
		auth:          auth,
	}
}

func (h *SubscriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	// Каталог планов публичный: клиент показывает тарифы до входа
	rg.GET("/plans", h.Plans)

	subs := rg.Group("/subscriptions", middleware.AuthMiddleware())
	{
		subs.POST("", h.Create)
		subs.GET("/me", h.MySubscription)
		subs.GET("/:id", h.GetByID)
		subs.GET("/:id/transactions", h.Transactions)
		subs.POST("/:id/card", h.UploadCard)
		subs.POST("/activate", h.ActivateViaOTP)
		subs.POST("/upgrade", h.Upgrade)
		subs.POST("/downgrade", h.Downgrade)
		subs.POST("/cancel", h.Cancel)
		subs.POST("/renew", h.Renew)
	}

	devices := rg.Group("/devices", middleware.AuthMiddleware())
	{
		devices.POST("/otp/setup", h.SetupOTP)
		devices.GET("/:imei/onboarded", h.Onboarded)
	}
}

// Plans - GET /plans
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	h.OK(c, gin.H{"plans": plans.All()})
}

// Create - POST /subscriptions
func (h *SubscriptionHandler) Create(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.CreateSubscriptionRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	db := h.GetDB(c)
	user, err := h.auth.GetUser(db, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	sub, err := h.subscriptions.Create(db, user, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.Created(c, sub)
}

// MySubscription - GET /subscriptions/me
func (h *SubscriptionHandler) MySubscription(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	sub, err := h.subscriptions.GetLatestForUser(h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, sub)
}

// GetByID - GET /subscriptions/:id (владелец или админ)
func (h *SubscriptionHandler) GetByID(c *gin.Context) {
	sub, ok := h.loadOwned(c)
	if !ok {
		return
	}
	h.OK(c, sub)
}

// Transactions - GET /subscriptions/:id/transactions
func (h *SubscriptionHandler) Transactions(c *gin.Context) {
	sub, ok := h.loadOwned(c)
	if !ok {
		return
	}

	txns, err := h.ledger.ListBySubscription(h.GetDB(c), sub.ID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, gin.H{"transactions": txns})
}

// UploadCard - POST /subscriptions/:id/card (multipart)
func (h *SubscriptionHandler) UploadCard(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	file, err := c.FormFile("file")
	if err != nil {
		h.HandleServiceError(c, apperrors.NewBadRequestError("file field is required"))
		return
	}

	upload, err := h.uploads.UploadCard(c.Request.Context(), h.GetDB(c), userID, c.Param("id"), file)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.Created(c, upload)
}

// ActivateViaOTP - POST /subscriptions/activate
func (h *SubscriptionHandler) ActivateViaOTP(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.ActivateRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.ActivateViaOTP(h.GetDB(c), userID, req.SubscriptionID, req.IMEI, req.OTPCode)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, sub)
}

// Upgrade - POST /subscriptions/upgrade
func (h *SubscriptionHandler) Upgrade(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.UpgradeRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.Upgrade(h.GetDB(c), userID, req.Plan)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, sub)
}

// Downgrade - POST /subscriptions/downgrade
func (h *SubscriptionHandler) Downgrade(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.DowngradeRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.Downgrade(h.GetDB(c), userID, req.Plan)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, sub)
}

// Cancel - POST /subscriptions/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.CancelRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	sub, err := h.subscriptions.Cancel(h.GetDB(c), userID, req.Reason, req.Immediate)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, sub)
}

// Renew - POST /subscriptions/renew
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	sub, err := h.subscriptions.Renew(h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, sub)
}

// SetupOTP - POST /devices/otp/setup
func (h *SubscriptionHandler) SetupOTP(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.SetupOTPRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	resp, err := h.devices.SetupOTP(h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, resp)
}

// Onboarded - GET /devices/:imei/onboarded
func (h *SubscriptionHandler) Onboarded(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	onboarded, err := h.devices.CheckOnboarded(h.GetDB(c), userID, c.Param("imei"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.OK(c, gin.H{"onboarded": onboarded})
}

// loadOwned загружает подписку и проверяет право чтения:
// владелец либо админ
func (h *SubscriptionHandler) loadOwned(c *gin.Context) (*models.Subscription, bool) {
	userID, _ := middleware.GetUserID(c)
	role := c.GetString(middleware.ContextRoleKey)

	sub, err := h.subscriptions.GetByID(h.GetDB(c), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return nil, false
	}
	if sub.UserID != userID && role != string(models.UserRoleAdmin) {
		h.HandleServiceError(c, apperrors.NewForbiddenError("subscription belongs to another account"))
		return nil, false
	}
	return sub, true
}
