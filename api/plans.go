package api

import (
	"errors"
	"net/http"
	"time"

	"backend_taskly/database"
	"backend_taskly/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlansAPI управляет API для тарифных планов
type PlansAPI struct {
	DB *gorm.DB
}

// NewPlansAPI создает новый экземпляр PlansAPI
func NewPlansAPI(db *gorm.DB) *PlansAPI {
	return &PlansAPI{DB: db}
}

// PlanRequest структура для создания/обновления тарифного плана
type PlanRequest struct {
	Name         string           `json:"name" binding:"required,min=1,max=100"`
	Slug         string           `json:"slug,omitempty"`
	Description  string           `json:"description,omitempty"`
	PriceMonthly decimal.Decimal  `json:"price_monthly" binding:"required"`
	PriceYearly  *decimal.Decimal `json:"price_yearly,omitempty"`
	Currency     string           `json:"currency,omitempty"`
	IsBasic      bool             `json:"is_basic"`
	ModuleIDs    []uint           `json:"module_ids,omitempty"`
}

// RegisterPlansRoutes регистрирует маршруты для управления тарифными планами
func (api *PlansAPI) RegisterPlansRoutes(r *gin.RouterGroup, admin *gin.RouterGroup) {
	r.GET("/plans", api.GetPlans)
	r.GET("/plans/:id", api.GetPlan)

	plans := admin.Group("/plans")
	{
		plans.POST("", api.CreatePlan)
		plans.PUT("/:id", api.UpdatePlan)
		plans.DELETE("/:id", api.DeletePlan)
		plans.PUT("/:id/modules", api.SetPlanModules)
	}
}

// GetPlans получает каталог активных тарифных планов с кэшированием
func (api *PlansAPI) GetPlans(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"

	// Каталог активных планов кэшируется, он запрашивается на каждой
	// странице выбора тарифа
	if !includeInactive && database.GetRedis() != nil {
		var cached []models.Plan
		if err := database.CacheGetJSON(database.GeneratePlanCatalogCacheKey(), &cached); err == nil {
			c.JSON(http.StatusOK, gin.H{
				"status": "success",
				"data":   cached,
			})
			return
		}
	}

	query := api.DB.Preload("Modules")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var plans []models.Plan
	if err := query.Order("price_monthly ASC").Find(&plans).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения тарифных планов: " + err.Error(),
		})
		return
	}

	if !includeInactive && database.GetRedis() != nil {
		_ = database.CacheSetJSON(database.GeneratePlanCatalogCacheKey(), plans, 10*time.Minute)
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   plans,
	})
}

// GetPlan получает тарифный план по ID
func (api *PlansAPI) GetPlan(c *gin.Context) {
	id := c.Param("id")

	var plan models.Plan
	if err := api.DB.Preload("Modules").Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Тарифный план не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения тарифного плана: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   plan,
	})
}

// CreatePlan создает новый тарифный план
func (api *PlansAPI) CreatePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	if req.PriceMonthly.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Цена не может быть отрицательной",
		})
		return
	}

	// У базового плана нет годовой цены
	if req.IsBasic && req.PriceYearly != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Базовый план не может иметь годовую цену",
		})
		return
	}

	plan := &models.Plan{
		Name:         req.Name,
		Slug:         req.Slug,
		Description:  req.Description,
		PriceMonthly: req.PriceMonthly,
		PriceYearly:  req.PriceYearly,
		Currency:     req.Currency,
		IsActive:     true,
		IsBasic:      req.IsBasic,
	}
	if plan.Currency == "" {
		plan.Currency = "IDR"
	}

	err := api.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(plan).Error; err != nil {
			return err
		}
		if len(req.ModuleIDs) > 0 {
			var modules []models.Module
			if err := tx.Where("id IN ? AND type = ?", req.ModuleIDs, models.ModuleTypeStandard).
				Find(&modules).Error; err != nil {
				return err
			}
			return tx.Model(plan).Association("Modules").Replace(modules)
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка создания тарифного плана: " + err.Error(),
		})
		return
	}

	api.invalidateCatalog()

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   plan,
	})
}

// UpdatePlan обновляет тарифный план. Выставленные счета хранят снимок цены,
// изменение тарифа их не затрагивает.
func (api *PlansAPI) UpdatePlan(c *gin.Context) {
	id := c.Param("id")

	var plan models.Plan
	if err := api.DB.Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Тарифный план не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения тарифного плана: " + err.Error(),
		})
		return
	}

	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	if req.IsBasic && req.PriceYearly != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Базовый план не может иметь годовую цену",
		})
		return
	}

	plan.Name = req.Name
	plan.Description = req.Description
	plan.PriceMonthly = req.PriceMonthly
	plan.PriceYearly = req.PriceYearly
	plan.IsBasic = req.IsBasic
	if req.Slug != "" {
		plan.Slug = req.Slug
	}
	if req.Currency != "" {
		plan.Currency = req.Currency
	}

	if err := api.DB.Save(&plan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка обновления тарифного плана: " + err.Error(),
		})
		return
	}

	api.invalidateCatalog()

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   plan,
	})
}

// DeletePlan деактивирует тарифный план. План с активными подписками
// не удаляется физически: счета и подписки ссылаются на него.
func (api *PlansAPI) DeletePlan(c *gin.Context) {
	id := c.Param("id")

	var plan models.Plan
	if err := api.DB.Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Тарифный план не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения тарифного плана: " + err.Error(),
		})
		return
	}

	var activeSubscriptions int64
	if err := api.DB.Model(&models.Subscription{}).
		Where("plan_id = ? AND status = ?", plan.ID, models.SubscriptionStatusActive).
		Count(&activeSubscriptions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка проверки подписок: " + err.Error(),
		})
		return
	}

	if activeSubscriptions > 0 {
		// Деактивируем план вместо удаления
		if err := api.DB.Model(&plan).Update("is_active", false).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "error",
				"error":  "Ошибка деактивации тарифного плана: " + err.Error(),
			})
			return
		}

		api.invalidateCatalog()

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "План деактивирован: есть активные подписки",
		})
		return
	}

	if err := api.DB.Delete(&plan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка удаления тарифного плана: " + err.Error(),
		})
		return
	}

	api.invalidateCatalog()

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Тарифный план удален",
	})
}

// SetPlanModules задает состав стандартных модулей тарифного плана
func (api *PlansAPI) SetPlanModules(c *gin.Context) {
	id := c.Param("id")

	var plan models.Plan
	if err := api.DB.Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Тарифный план не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения тарифного плана: " + err.Error(),
		})
		return
	}

	var req struct {
		ModuleIDs []uint `json:"module_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	// В план входят только стандартные модули, дополнения оплачиваются отдельно
	var modules []models.Module
	if err := api.DB.Where("id IN ? AND type = ?", req.ModuleIDs, models.ModuleTypeStandard).
		Find(&modules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения модулей: " + err.Error(),
		})
		return
	}

	if len(modules) != len(req.ModuleIDs) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Список содержит несуществующие или addon-модули",
		})
		return
	}

	if err := api.DB.Model(&plan).Association("Modules").Replace(modules); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка обновления модулей плана: " + err.Error(),
		})
		return
	}

	api.invalidateCatalog()

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   modules,
	})
}

// invalidateCatalog сбрасывает кэш каталога планов
func (api *PlansAPI) invalidateCatalog() {
	if database.GetRedis() != nil {
		_ = database.CacheDel(database.GeneratePlanCatalogCacheKey())
	}
}
