package routes

import (
	"net/http"

	"commsub_backend/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupRoutes регистрирует все маршруты API под /api/v1
func SetupRoutes(router *gin.Engine, h *handlers.AppHandlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		h.Auth.RegisterRoutes(v1)
		h.Subscriptions.RegisterRoutes(v1)
		h.Admin.RegisterRoutes(v1)
	}
}
