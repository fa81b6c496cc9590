package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"backend_taskly/middleware"
	"backend_taskly/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ReportsAPI управляет API для отчетности по биллингу
type ReportsAPI struct {
	DB         *gorm.DB
	Automation *services.BillingAutomationService
}

// NewReportsAPI создает новый экземпляр ReportsAPI
func NewReportsAPI(db *gorm.DB, automation *services.BillingAutomationService) *ReportsAPI {
	return &ReportsAPI{DB: db, Automation: automation}
}

// RegisterReportsRoutes регистрирует маршруты отчетов
func (api *ReportsAPI) RegisterReportsRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.GET("/billing", api.GetBillingStatistics)
		reports.GET("/billing/export", api.ExportBillingReport)
	}
}

// resolveCompanyAndYear определяет компанию и год отчета из запроса.
// Не-администратор всегда получает отчет только по своей компании.
func (api *ReportsAPI) resolveCompanyAndYear(c *gin.Context) (uint, int, bool) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return 0, 0, false
	}

	companyID := authCtx.CompanyID
	if authCtx.IsAdmin() {
		if raw := c.Query("company_id"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"status": "error",
					"error":  "Некорректный ID компании",
				})
				return 0, 0, false
			}
			companyID = uint(parsed)
		}
	}

	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(time.Now().Year())))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный год",
		})
		return 0, 0, false
	}

	return companyID, year, true
}

// GetBillingStatistics возвращает статистику биллинга компании за год
func (api *ReportsAPI) GetBillingStatistics(c *gin.Context) {
	companyID, year, ok := api.resolveCompanyAndYear(c)
	if !ok {
		return
	}

	stats, err := api.Automation.GetBillingStatistics(companyID, year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка расчета статистики: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   stats,
	})
}

// ExportBillingReport выгружает счета компании за год в xlsx
func (api *ReportsAPI) ExportBillingReport(c *gin.Context) {
	companyID, year, ok := api.resolveCompanyAndYear(c)
	if !ok {
		return
	}

	file, err := api.Automation.ExportBillingReport(companyID, year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка формирования отчета: " + err.Error(),
		})
		return
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка записи отчета: " + err.Error(),
		})
		return
	}

	filename := fmt.Sprintf("billing_report_%d_%d.xlsx", companyID, year)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
