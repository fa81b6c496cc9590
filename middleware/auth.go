package middleware

import (
	"net/http"
	"strings"

	"backend_taskly/models"
	"backend_taskly/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware проверяет аутентификацию пользователя
type AuthMiddleware struct {
	Auth *services.AuthService
}

// NewAuthMiddleware создает новый экземпляр AuthMiddleware
func NewAuthMiddleware(auth *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{Auth: auth}
}

// RequireAuth middleware для проверки аутентификации
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Authorization header is required",
			})
			c.Abort()
			return
		}

		authCtx, err := am.Auth.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Invalid or expired token: " + err.Error(),
			})
			c.Abort()
			return
		}

		// Сохраняем контекст авторизации для последующих обработчиков
		c.Set("auth", authCtx)
		c.Set("user_id", authCtx.UserID)
		c.Set("company_id", authCtx.CompanyID)

		c.Next()
	}
}

// RequireRole middleware для проверки роли пользователя
func (am *AuthMiddleware) RequireRole(roleNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx := GetAuthContext(c)
		if authCtx == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Требуется аутентификация",
			})
			c.Abort()
			return
		}

		for _, name := range roleNames {
			if authCtx.RoleName == name {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"status": "error",
			"error":  "Недостаточно прав для выполнения операции",
		})
		c.Abort()
	}
}

// RequireAdmin middleware для операций, доступных только администратору платформы
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return am.RequireRole(models.RoleAdmin)
}

// extractToken извлекает токен из заголовка Authorization
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		authHeader = c.GetHeader("authorization")
	}
	if authHeader == "" {
		return ""
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if strings.HasPrefix(authHeader, "Token ") {
		return strings.TrimPrefix(authHeader, "Token ")
	}
	return authHeader
}

// GetAuthContext возвращает контекст авторизации из контекста запроса
func GetAuthContext(c *gin.Context) *services.AuthContext {
	if auth, exists := c.Get("auth"); exists {
		if authCtx, ok := auth.(*services.AuthContext); ok {
			return authCtx
		}
	}
	return nil
}
