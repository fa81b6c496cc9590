package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"backend_taskly/middleware"
	"backend_taskly/models"
	"backend_taskly/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BillingAPI управляет API для счетов и платежей
type BillingAPI struct {
	DB       *gorm.DB
	Invoices *services.InvoiceService
	Payments *services.PaymentService
}

// NewBillingAPI создает новый экземпляр BillingAPI
func NewBillingAPI(db *gorm.DB, invoices *services.InvoiceService, payments *services.PaymentService) *BillingAPI {
	return &BillingAPI{DB: db, Invoices: invoices, Payments: payments}
}

// InvoiceRequest структура для выставления счета на подписку
type InvoiceRequest struct {
	PlanID       uint   `json:"plan_id" binding:"required"`
	BillingCycle string `json:"billing_cycle" binding:"required"`
}

// RegisterBillingRoutes регистрирует маршруты биллинга
func (api *BillingAPI) RegisterBillingRoutes(r *gin.RouterGroup, admin *gin.RouterGroup, public *gin.RouterGroup) {
	invoices := r.Group("/invoices")
	{
		invoices.GET("", api.GetInvoices)
		invoices.GET("/unpaid", api.GetUnpaidInvoices)
		invoices.POST("", api.CreateInvoice)
		invoices.GET("/:id", api.GetInvoice)
		invoices.POST("/:id/pay", middleware.PaymentRateLimit(), api.PayInvoice)
		invoices.GET("/:id/pdf", api.DownloadInvoicePDF)
	}

	addOnInvoices := r.Group("/addon-invoices")
	{
		addOnInvoices.GET("", api.GetAddOnInvoices)
		addOnInvoices.POST("/:id/pay", middleware.PaymentRateLimit(), api.PayAddOnInvoice)
		addOnInvoices.GET("/:id/pdf", api.DownloadAddOnInvoicePDF)
	}

	admin.PUT("/invoices/:id/cancel", api.CancelInvoice)
	admin.GET("/invoices/overdue", api.GetOverdueInvoices)
	admin.GET("/invoices/by-number/:number", api.GetInvoiceByNumber)

	// Уведомления платежного шлюза приходят server-to-server без JWT
	public.POST("/payments/notifications", api.PaymentNotification)
}

// GetInvoices получает счета текущей компании
func (api *BillingAPI) GetInvoices(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	query := api.DB.Model(&models.Invoice{})
	if !authCtx.IsAdmin() {
		query = query.Where("company_id = ?", authCtx.CompanyID)
	} else if companyID := c.Query("company_id"); companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var invoices []models.Invoice
	if err := query.Order("created_at DESC").Find(&invoices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения счетов: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoices,
	})
}

// GetUnpaidInvoices получает неоплаченные счета текущей компании
func (api *BillingAPI) GetUnpaidInvoices(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	invoices, err := api.Invoices.GetUnpaidInvoices(authCtx.CompanyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения счетов: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoices,
	})
}

// CreateInvoice выставляет счет на подписку по тарифному плану
func (api *BillingAPI) CreateInvoice(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	invoice, err := api.Invoices.CreateInvoiceForPlan(authCtx.CompanyID, req.PlanID, req.BillingCycle)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Ошибка выставления счета: " + err.Error(),
		})
		return
	}

	// Уведомляем компанию о новом счете
	if ns := services.GetNotificationService(); ns != nil {
		_ = ns.NotifyInvoiceCreated(invoice.CompanyID, invoice.Number, invoice.Amount.StringFixed(2))
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   invoice,
	})
}

// GetInvoice получает счет по ID
func (api *BillingAPI) GetInvoice(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	id := c.Param("id")

	var invoice models.Invoice
	if err := api.DB.Where("id = ?", id).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Счет не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения счета: " + err.Error(),
		})
		return
	}

	if authCtx == nil || !authCtx.CanAccessCompany(invoice.CompanyID) {
		c.JSON(http.StatusForbidden, gin.H{
			"status": "error",
			"error":  "Нет доступа к счетам этой компании",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoice,
	})
}

// PayInvoice инициирует оплату счета через платежный шлюз
func (api *BillingAPI) PayInvoice(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID счета",
		})
		return
	}

	var invoice models.Invoice
	if err := api.DB.First(&invoice, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Счет не найден",
		})
		return
	}

	if !authCtx.CanAccessCompany(invoice.CompanyID) {
		c.JSON(http.StatusForbidden, gin.H{
			"status": "error",
			"error":  "Нет доступа к счетам этой компании",
		})
		return
	}

	customer := api.buildCustomer(authCtx)
	token, redirectURL, err := api.Payments.PayInvoice(uint(id), customer)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotPayable) {
			c.JSON(http.StatusConflict, gin.H{
				"status": "error",
				"error":  "Счет не подлежит оплате",
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"status": "error",
			"error":  "Ошибка платежного шлюза: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"snap_token":   token,
			"redirect_url": redirectURL,
		},
	})
}

// DownloadInvoicePDF отдает PDF-версию счета
func (api *BillingAPI) DownloadInvoicePDF(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	id := c.Param("id")

	var invoice models.Invoice
	if err := api.DB.Where("id = ?", id).First(&invoice).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Счет не найден",
		})
		return
	}

	if authCtx == nil || !authCtx.CanAccessCompany(invoice.CompanyID) {
		c.JSON(http.StatusForbidden, gin.H{
			"status": "error",
			"error":  "Нет доступа к счетам этой компании",
		})
		return
	}

	company := middleware.GetCurrentCompany(c)
	if company == nil || company.ID != invoice.CompanyID {
		company = &models.Company{}
		if err := api.DB.First(company, invoice.CompanyID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "error",
				"error":  "Ошибка получения компании: " + err.Error(),
			})
			return
		}
	}

	pdfBytes, err := services.RenderInvoicePDF(&invoice, company)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка генерации PDF: " + err.Error(),
		})
		return
	}

	filename := fmt.Sprintf("invoice_%d.pdf", invoice.ID)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// GetInvoiceByNumber находит счет по номеру (поиск для поддержки)
func (api *BillingAPI) GetInvoiceByNumber(c *gin.Context) {
	invoice, err := api.Invoices.GetInvoiceByNumber(c.Param("number"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Счет не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения счета: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoice,
	})
}

// CancelInvoice отменяет неоплаченный счет
func (api *BillingAPI) CancelInvoice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID счета",
		})
		return
	}

	if err := api.Invoices.CancelInvoice(uint(id)); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"status": "error",
			"error":  "Ошибка отмены счета: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Счет отменен",
	})
}

// GetOverdueInvoices возвращает просроченные неоплаченные счета
func (api *BillingAPI) GetOverdueInvoices(c *gin.Context) {
	var companyID *uint
	if raw := c.Query("company_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"error":  "Некорректный ID компании",
			})
			return
		}
		id := uint(parsed)
		companyID = &id
	}

	invoices, err := api.Invoices.GetOverdueInvoices(companyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения счетов: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoices,
	})
}

// GetAddOnInvoices получает счета за дополнения текущей компании
func (api *BillingAPI) GetAddOnInvoices(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	invoices, err := api.Invoices.GetAddOnInvoicesByCompany(authCtx.CompanyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения счетов за дополнения: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoices,
	})
}

// PayAddOnInvoice инициирует оплату счета за дополнение
func (api *BillingAPI) PayAddOnInvoice(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID счета",
		})
		return
	}

	var invoice models.InvoiceAddOn
	if err := api.DB.First(&invoice, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Счет не найден",
		})
		return
	}

	if !authCtx.CanAccessCompany(invoice.CompanyID) {
		c.JSON(http.StatusForbidden, gin.H{
			"status": "error",
			"error":  "Нет доступа к счетам этой компании",
		})
		return
	}

	customer := api.buildCustomer(authCtx)
	token, redirectURL, err := api.Payments.PayAddOnInvoice(uint(id), customer)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotPayable) {
			c.JSON(http.StatusConflict, gin.H{
				"status": "error",
				"error":  "Счет не подлежит оплате",
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"status": "error",
			"error":  "Ошибка платежного шлюза: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"snap_token":   token,
			"redirect_url": redirectURL,
		},
	})
}

// DownloadAddOnInvoicePDF отдает PDF-версию счета за дополнение
func (api *BillingAPI) DownloadAddOnInvoicePDF(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	id := c.Param("id")

	var invoice models.InvoiceAddOn
	if err := api.DB.Where("id = ?", id).First(&invoice).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Счет не найден",
		})
		return
	}

	if authCtx == nil || !authCtx.CanAccessCompany(invoice.CompanyID) {
		c.JSON(http.StatusForbidden, gin.H{
			"status": "error",
			"error":  "Нет доступа к счетам этой компании",
		})
		return
	}

	company := middleware.GetCurrentCompany(c)
	if company == nil || company.ID != invoice.CompanyID {
		company = &models.Company{}
		if err := api.DB.First(company, invoice.CompanyID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "error",
				"error":  "Ошибка получения компании: " + err.Error(),
			})
			return
		}
	}

	pdfBytes, err := services.RenderAddOnInvoicePDF(&invoice, company)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка генерации PDF: " + err.Error(),
		})
		return
	}

	filename := fmt.Sprintf("invoice_addon_%d.pdf", invoice.ID)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// PaymentNotification принимает уведомление платежного шлюза.
// Обработка идемпотентна: повторное уведомление по оплаченному счету
// возвращает 200 без изменений.
func (api *BillingAPI) PaymentNotification(c *gin.Context) {
	var notification services.PaymentNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректное уведомление: " + err.Error(),
		})
		return
	}

	if notification.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Отсутствует order_id",
		})
		return
	}

	if err := api.Payments.ProcessNotification(notification); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка обработки уведомления: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}

// buildCustomer собирает данные плательщика для платежного шлюза
func (api *BillingAPI) buildCustomer(authCtx *services.AuthContext) services.PaymentCustomer {
	customer := services.PaymentCustomer{}

	var user models.User
	if err := api.DB.First(&user, authCtx.UserID).Error; err == nil {
		customer.FirstName = user.FirstName
		customer.LastName = user.LastName
		customer.Email = user.Email
	}

	return customer
}
