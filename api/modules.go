package api

import (
	"errors"
	"net/http"
	"strconv"

	"backend_taskly/models"
	"backend_taskly/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ModulesAPI управляет API для модулей и разрешений
type ModulesAPI struct {
	DB      *gorm.DB
	Pricing *services.PricingService
}

// NewModulesAPI создает новый экземпляр ModulesAPI
func NewModulesAPI(db *gorm.DB, pricing *services.PricingService) *ModulesAPI {
	return &ModulesAPI{DB: db, Pricing: pricing}
}

// ModuleRequest структура для создания/обновления модуля
type ModuleRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=100"`
	Slug        string          `json:"slug,omitempty"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty"`
	Scope       string          `json:"scope,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// PermissionRequest структура для создания/обновления разрешения
type PermissionRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=100"`
	DisplayName string          `json:"display_name,omitempty"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty"`
	Scope       string          `json:"scope,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ModuleID    *uint           `json:"module_id,omitempty"`
}

// RegisterModulesRoutes регистрирует маршруты для управления модулями
func (api *ModulesAPI) RegisterModulesRoutes(r *gin.RouterGroup, admin *gin.RouterGroup) {
	r.GET("/modules", api.GetModules)
	r.GET("/modules/:id", api.GetModule)
	r.GET("/modules/:id/price", api.GetModulePrice)

	modules := admin.Group("/modules")
	{
		modules.POST("", api.CreateModule)
		modules.PUT("/:id", api.UpdateModule)
		modules.DELETE("/:id", api.DeleteModule)
	}

	permissions := admin.Group("/permissions")
	{
		permissions.GET("", api.GetPermissions)
		permissions.POST("", api.CreatePermission)
		permissions.PUT("/:id", api.UpdatePermission)
		permissions.PUT("/:id/module", api.AssignPermissionModule)
		permissions.DELETE("/:id/module", api.RemovePermissionModule)
	}
}

// GetModules получает список модулей
func (api *ModulesAPI) GetModules(c *gin.Context) {
	query := api.DB.Model(&models.Module{})

	if moduleType := c.Query("type"); moduleType != "" {
		query = query.Where("type = ?", moduleType)
	}
	if c.Query("is_active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var modules []models.Module
	if err := query.Preload("Permissions").Order("name ASC").Find(&modules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения модулей: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   modules,
	})
}

// GetModule получает модуль по ID
func (api *ModulesAPI) GetModule(c *gin.Context) {
	id := c.Param("id")

	var module models.Module
	if err := api.DB.Preload("Permissions").Where("id = ?", id).First(&module).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Модуль не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения модуля: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   module,
	})
}

// GetModulePrice возвращает расчетную цену модуля. Для стандартных модулей
// это сумма оплачиваемых разрешений, для дополнений прямая цена.
func (api *ModulesAPI) GetModulePrice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID модуля",
		})
		return
	}

	price, err := api.Pricing.ModulePrice(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Модуль не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка расчета цены модуля: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"module_id": uint(id),
			"price":     price,
		},
	})
}

// CreateModule создает новый модуль
func (api *ModulesAPI) CreateModule(c *gin.Context) {
	var req ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Цена не может быть отрицательной",
		})
		return
	}

	module := &models.Module{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Type:        req.Type,
		Scope:       req.Scope,
		Price:       req.Price,
		IsActive:    true,
	}
	if module.Type == "" {
		module.Type = models.ModuleTypeStandard
	}
	if module.Scope == "" {
		module.Scope = models.ScopeCompany
	}

	if err := api.DB.Create(module).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка создания модуля: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   module,
	})
}

// UpdateModule обновляет модуль
func (api *ModulesAPI) UpdateModule(c *gin.Context) {
	id := c.Param("id")

	var module models.Module
	if err := api.DB.Where("id = ?", id).First(&module).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Модуль не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения модуля: " + err.Error(),
		})
		return
	}

	var req ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	module.Name = req.Name
	module.Description = req.Description
	module.Price = req.Price
	if req.Slug != "" {
		module.Slug = req.Slug
	}
	if req.Type != "" {
		module.Type = req.Type
	}
	if req.Scope != "" {
		module.Scope = req.Scope
	}

	if err := api.DB.Save(&module).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка обновления модуля: " + err.Error(),
		})
		return
	}

	// Цена модуля могла измениться
	if cache := services.GetCacheService(); cache != nil {
		_ = cache.InvalidateModulePrice(module.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   module,
	})
}

// DeleteModule деактивирует модуль. Модуль, подключенный компаниям как
// дополнение, не удаляется.
func (api *ModulesAPI) DeleteModule(c *gin.Context) {
	id := c.Param("id")

	var module models.Module
	if err := api.DB.Where("id = ?", id).First(&module).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Модуль не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения модуля: " + err.Error(),
		})
		return
	}

	var activeAddOns int64
	if err := api.DB.Model(&models.CompanyAddOn{}).
		Where("module_id = ? AND is_active = ?", module.ID, true).
		Count(&activeAddOns).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка проверки подключений модуля: " + err.Error(),
		})
		return
	}

	if activeAddOns > 0 {
		if err := api.DB.Model(&module).Update("is_active", false).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "error",
				"error":  "Ошибка деактивации модуля: " + err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Модуль деактивирован: есть активные подключения",
		})
		return
	}

	if err := api.DB.Delete(&module).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка удаления модуля: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Модуль удален",
	})
}

// GetPermissions получает список разрешений
func (api *ModulesAPI) GetPermissions(c *gin.Context) {
	query := api.DB.Model(&models.Permission{})

	if c.Query("homeless") == "true" {
		query = query.Where("module_id IS NULL")
	}
	if moduleID := c.Query("module_id"); moduleID != "" {
		query = query.Where("module_id = ?", moduleID)
	}

	var permissions []models.Permission
	if err := query.Preload("Module").Order("name ASC").Find(&permissions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения разрешений: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   permissions,
	})
}

// CreatePermission создает новое разрешение
func (api *ModulesAPI) CreatePermission(c *gin.Context) {
	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Цена не может быть отрицательной",
		})
		return
	}

	permission := &models.Permission{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Type:        req.Type,
		Scope:       req.Scope,
		Price:       req.Price,
		ModuleID:    req.ModuleID,
		IsActive:    true,
	}
	if permission.Type == "" {
		permission.Type = models.PermissionTypeGeneral
	}
	if permission.Scope == "" {
		permission.Scope = models.ScopeCompany
	}

	// Системные разрешения бесплатны, цена обнуляется в BeforeSave
	if err := api.DB.Create(permission).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка создания разрешения: " + err.Error(),
		})
		return
	}

	if permission.ModuleID != nil {
		if cache := services.GetCacheService(); cache != nil {
			_ = cache.InvalidateModulePrice(*permission.ModuleID)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   permission,
	})
}

// UpdatePermission обновляет разрешение
func (api *ModulesAPI) UpdatePermission(c *gin.Context) {
	id := c.Param("id")

	var permission models.Permission
	if err := api.DB.Where("id = ?", id).First(&permission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Разрешение не найдено",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения разрешения: " + err.Error(),
		})
		return
	}

	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	permission.Name = req.Name
	permission.DisplayName = req.DisplayName
	permission.Description = req.Description
	permission.Price = req.Price
	if req.Type != "" {
		permission.Type = req.Type
	}
	if req.Scope != "" {
		permission.Scope = req.Scope
	}

	if err := api.DB.Save(&permission).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка обновления разрешения: " + err.Error(),
		})
		return
	}

	if permission.ModuleID != nil {
		if cache := services.GetCacheService(); cache != nil {
			_ = cache.InvalidateModulePrice(*permission.ModuleID)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   permission,
	})
}

// AssignPermissionModule привязывает разрешение к модулю
func (api *ModulesAPI) AssignPermissionModule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID разрешения",
		})
		return
	}

	var req struct {
		ModuleID uint `json:"module_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	if err := api.Pricing.AssignPermissionToModule(uint(id), req.ModuleID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка привязки разрешения: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Разрешение привязано к модулю",
	})
}

// RemovePermissionModule отвязывает разрешение от модуля
func (api *ModulesAPI) RemovePermissionModule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID разрешения",
		})
		return
	}

	if err := api.Pricing.RemovePermissionFromModule(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка отвязки разрешения: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Разрешение отвязано от модуля",
	})
}
