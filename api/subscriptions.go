package api

import (
	"errors"
	"net/http"
	"strconv"

	"backend_taskly/middleware"
	"backend_taskly/models"
	"backend_taskly/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SubscriptionsAPI управляет API для подписок и подключенных дополнений
type SubscriptionsAPI struct {
	DB            *gorm.DB
	Subscriptions *services.SubscriptionService
}

// NewSubscriptionsAPI создает новый экземпляр SubscriptionsAPI
func NewSubscriptionsAPI(db *gorm.DB, subscriptions *services.SubscriptionService) *SubscriptionsAPI {
	return &SubscriptionsAPI{DB: db, Subscriptions: subscriptions}
}

// RegisterSubscriptionsRoutes регистрирует маршруты подписок
func (api *SubscriptionsAPI) RegisterSubscriptionsRoutes(r *gin.RouterGroup, admin *gin.RouterGroup) {
	subscriptions := r.Group("/subscriptions")
	{
		subscriptions.GET("", api.GetSubscriptions)
		subscriptions.GET("/active", api.GetActiveSubscription)
	}

	r.GET("/addons", api.GetCompanyAddOns)

	admin.GET("/subscriptions/expiring", api.GetExpiringSubscriptions)
}

// GetSubscriptions возвращает историю подписок текущей компании
func (api *SubscriptionsAPI) GetSubscriptions(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	var subscriptions []models.Subscription
	if err := api.DB.Where("company_id = ?", authCtx.CompanyID).
		Preload("Plan").
		Order("starts_at DESC").
		Find(&subscriptions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения подписок: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   subscriptions,
	})
}

// GetActiveSubscription возвращает текущую активную подписку компании
func (api *SubscriptionsAPI) GetActiveSubscription(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	subscription, err := api.Subscriptions.GetActiveSubscription(authCtx.CompanyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "У компании нет активной подписки",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения подписки: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   subscription,
	})
}

// GetCompanyAddOns возвращает подключенные дополнения текущей компании
func (api *SubscriptionsAPI) GetCompanyAddOns(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	var addOns []models.CompanyAddOn
	if err := api.DB.Where("company_id = ?", authCtx.CompanyID).
		Preload("Module").
		Order("started_at DESC").
		Find(&addOns).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения дополнений: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   addOns,
	})
}

// GetExpiringSubscriptions возвращает подписки, истекающие в ближайшие дни
func (api *SubscriptionsAPI) GetExpiringSubscriptions(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "3"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректное количество дней",
		})
		return
	}

	subscriptions, err := api.Subscriptions.GetExpiringSoon(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения подписок: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   subscriptions,
	})
}
