package middleware

import (
	"strings"

	"commsub_backend/internal/auth"
	"commsub_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "user_role"
)

// AuthMiddleware проверяет Bearer-токен и кладет user_id/role в контекст
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, apperrors.NewUnauthorizedError("authorization header required"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, apperrors.NewUnauthorizedError("invalid authorization header"))
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			if err == auth.ErrTokenExpired {
				abortWithError(c, apperrors.NewUnauthorizedError("token expired"))
				return
			}
			abortWithError(c, apperrors.NewUnauthorizedError("invalid token"))
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextRoleKey, claims.Role)
		c.Next()
	}
}

// RoleMiddleware пускает дальше только перечисленные роли
func RoleMiddleware(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRoleKey)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		abortWithError(c, apperrors.NewForbiddenError("insufficient permissions"))
	}
}

// GetUserID достает user_id, положенный AuthMiddleware
func GetUserID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextUserIDKey)
	return id, id != ""
}

func abortWithError(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.HTTPCode, gin.H{"error": err})
}
