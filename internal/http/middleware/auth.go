package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smartque-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
)

// AuthMiddleware проверяет Bearer токен и кладёт userID и роль в контекст.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			abortWithError(c, apperror.ErrUnauthorized)
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		userID, role, err := tokens.Parse(raw)
		if err != nil || userID == uuid.Nil {
			abortWithError(c, apperror.ErrInvalidToken)
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRole пропускает только пользователей с указанной ролью.
// Ставится после AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRoleKey) != role {
			abortWithError(c, apperror.ErrForbidden)
			return
		}
		c.Next()
	}
}
