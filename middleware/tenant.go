package middleware

import (
	"net/http"
	"strings"
	"time"

	"backend_taskly/database"
	"backend_taskly/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TenantMiddleware определяет текущую компанию по контексту авторизации.
// Тенантность построена на колонке company_id, без отдельных схем БД.
type TenantMiddleware struct {
	DB *gorm.DB
}

// NewTenantMiddleware создает новый экземпляр TenantMiddleware
func NewTenantMiddleware(db *gorm.DB) *TenantMiddleware {
	return &TenantMiddleware{DB: db}
}

// SetTenant загружает компанию текущего пользователя и проверяет ее активность
func (tm *TenantMiddleware) SetTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Пропускаем публичные маршруты
		if isPublicRoute(c.Request.URL.Path) {
			c.Next()
			return
		}

		authCtx := GetAuthContext(c)
		if authCtx == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Требуется аутентификация",
			})
			c.Abort()
			return
		}

		// Администратор платформы работает вне контекста компании
		if authCtx.IsAdmin() && authCtx.CompanyID == 0 {
			c.Next()
			return
		}

		company, err := tm.getCompanyByID(authCtx.CompanyID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Не удалось определить компанию: " + err.Error(),
			})
			c.Abort()
			return
		}

		if !company.IsActive {
			c.JSON(http.StatusForbidden, gin.H{
				"status": "error",
				"error":  "Компания деактивирована",
			})
			c.Abort()
			return
		}

		c.Set("company", company)

		c.Next()
	}
}

// getCompanyByID получает компанию по ID с кэшированием
func (tm *TenantMiddleware) getCompanyByID(companyID uint) (*models.Company, error) {
	cacheKey := database.GenerateCompanyCacheKey(companyID, "profile")

	var company models.Company
	if database.GetRedis() != nil {
		if err := database.CacheGetJSON(cacheKey, &company); err == nil {
			return &company, nil
		}
	}

	if err := tm.DB.First(&company, companyID).Error; err != nil {
		return nil, err
	}

	// Кэшируем на 15 минут
	if database.GetRedis() != nil {
		_ = database.CacheSetJSON(cacheKey, &company, 15*time.Minute)
	}

	return &company, nil
}

// isPublicRoute проверяет, является ли маршрут публичным
func isPublicRoute(path string) bool {
	publicRoutes := []string{
		"/ping",
		"/health",
		"/api/auth/login",
		"/api/payments/notifications",
	}

	for _, route := range publicRoutes {
		if strings.HasPrefix(path, route) {
			return true
		}
	}
	return false
}

// GetCurrentCompany возвращает текущую компанию из контекста
func GetCurrentCompany(c *gin.Context) *models.Company {
	if company, exists := c.Get("company"); exists {
		if comp, ok := company.(*models.Company); ok {
			return comp
		}
	}
	return nil
}
