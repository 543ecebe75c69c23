package handlers

import (
	"net/http"

	appvalidator "commsub_backend/internal/validator"
	"commsub_backend/pkg/apperrors"
	"commsub_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BaseHandler - общие хелперы HTTP-слоя: доступ к request-scoped БД,
// биндинг с валидацией и единообразный рендер ошибок
type BaseHandler struct {
	validator *appvalidator.Validator
}

func NewBaseHandler(v *appvalidator.Validator) *BaseHandler {
	return &BaseHandler{validator: v}
}

// GetDB достает *gorm.DB, положенный DBMiddleware.
// Тесты подкладывают сюда транзакцию вместо пула.
func (h *BaseHandler) GetDB(c *gin.Context) *gorm.DB {
	db, ok := c.MustGet(string(contextkeys.DBContextKey)).(*gorm.DB)
	if !ok {
		panic("db connection missing from request context")
	}
	return db
}

// BindAndValidateJSON декодирует тело и прогоняет структурную валидацию.
// Ответ с ошибкой уже отправлен, если вернулось false.
func (h *BaseHandler) BindAndValidateJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.HandleServiceError(c, apperrors.NewBadRequestError("invalid request body: "+err.Error()))
		return false
	}
	if err := h.validator.Validate(obj); err != nil {
		if vErr, ok := err.(*appvalidator.ValidationError); ok {
			h.HandleServiceError(c, apperrors.ValidationError(vErr.Errors))
			return false
		}
		h.HandleServiceError(c, apperrors.InternalError(err))
		return false
	}
	return true
}

// BindAndValidateQuery - то же для query-параметров (form-теги)
func (h *BaseHandler) BindAndValidateQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.HandleServiceError(c, apperrors.NewBadRequestError("invalid query parameters: "+err.Error()))
		return false
	}
	if err := h.validator.Validate(obj); err != nil {
		if vErr, ok := err.(*appvalidator.ValidationError); ok {
			h.HandleServiceError(c, apperrors.ValidationError(vErr.Errors))
			return false
		}
		h.HandleServiceError(c, apperrors.InternalError(err))
		return false
	}
	return true
}

// HandleServiceError рендерит ошибку сервиса в HTTP-ответ
func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	apperrors.HandleError(c, err)
}

// OK - успешный ответ с полезной нагрузкой
func (h *BaseHandler) OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// Created - ответ 201
func (h *BaseHandler) Created(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusCreated, payload)
}
