package api

import (
	"errors"
	"net/http"
	"strconv"

	"backend_taskly/database"
	"backend_taskly/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CompaniesAPI управляет API для компаний и их категорий
type CompaniesAPI struct {
	DB *gorm.DB
}

// NewCompaniesAPI создает новый экземпляр CompaniesAPI
func NewCompaniesAPI(db *gorm.DB) *CompaniesAPI {
	return &CompaniesAPI{DB: db}
}

// CompanyRequest структура для создания/обновления компании
type CompanyRequest struct {
	Name       string `json:"name" binding:"required,min=1,max=100"`
	CategoryID *uint  `json:"category_id,omitempty"`

	// Контактная информация
	ContactEmail  string `json:"contact_email,omitempty"`
	ContactPhone  string `json:"contact_phone,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`

	// Адрес
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`

	// Настройки
	MaxUsers     int    `json:"max_users,omitempty"`
	MaxProjects  int    `json:"max_projects,omitempty"`
	StorageQuota int    `json:"storage_quota,omitempty"`
	Language     string `json:"language,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	Currency     string `json:"currency,omitempty"`
}

// CategoryRequest структура для создания/обновления категории компаний
type CategoryRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
	Slug string `json:"slug,omitempty"`
}

// RegisterCompaniesRoutes регистрирует маршруты для управления компаниями
func (api *CompaniesAPI) RegisterCompaniesRoutes(r *gin.RouterGroup) {
	companies := r.Group("/companies")
	{
		companies.GET("", api.GetCompanies)
		companies.POST("", api.CreateCompany)
		companies.GET("/:id", api.GetCompany)
		companies.PUT("/:id", api.UpdateCompany)
		companies.DELETE("/:id", api.DeleteCompany)
		companies.PUT("/:id/activate", api.ActivateCompany)
		companies.PUT("/:id/deactivate", api.DeactivateCompany)
	}

	categories := r.Group("/company-categories")
	{
		categories.GET("", api.GetCategories)
		categories.POST("", api.CreateCategory)
		categories.PUT("/:id", api.UpdateCategory)
		categories.DELETE("/:id", api.DeleteCategory)
	}
}

// GetCompanies получает список компаний с фильтрацией и пагинацией
func (api *CompaniesAPI) GetCompanies(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	search := c.Query("search")
	isActive := c.Query("is_active")
	categoryID := c.Query("category_id")

	offset := (page - 1) * limit

	query := api.DB.Model(&models.Company{})

	if search != "" {
		query = query.Where("name ILIKE ? OR contact_email ILIKE ? OR city ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}

	if isActive == "true" {
		query = query.Where("is_active = ?", true)
	} else if isActive == "false" {
		query = query.Where("is_active = ?", false)
	}

	if categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка подсчета компаний: " + err.Error(),
		})
		return
	}

	var companies []models.Company
	if err := query.Preload("Category").
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&companies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения компаний: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"companies": companies,
			"pagination": gin.H{
				"current_page": page,
				"total_pages":  (total + int64(limit) - 1) / int64(limit),
				"total_items":  total,
				"per_page":     limit,
			},
		},
	})
}

// CreateCompany создает новую компанию
func (api *CompaniesAPI) CreateCompany(c *gin.Context) {
	var req CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	if req.CategoryID != nil {
		var category models.CompanyCategory
		if err := api.DB.First(&category, *req.CategoryID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"error":  "Категория не найдена",
			})
			return
		}
	}

	company := &models.Company{
		Name:       req.Name,
		CategoryID: req.CategoryID,

		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		ContactPerson: req.ContactPerson,

		Address: req.Address,
		City:    req.City,
		Country: req.Country,

		IsActive:     true,
		MaxUsers:     req.MaxUsers,
		MaxProjects:  req.MaxProjects,
		StorageQuota: req.StorageQuota,
		Language:     req.Language,
		Timezone:     req.Timezone,
		Currency:     req.Currency,
	}

	// Устанавливаем значения по умолчанию
	if company.MaxUsers == 0 {
		company.MaxUsers = 10
	}
	if company.MaxProjects == 0 {
		company.MaxProjects = 100
	}
	if company.StorageQuota == 0 {
		company.StorageQuota = 1024
	}
	if company.Language == "" {
		company.Language = "id"
	}
	if company.Timezone == "" {
		company.Timezone = "Asia/Jakarta"
	}
	if company.Currency == "" {
		company.Currency = "IDR"
	}
	if company.Country == "" {
		company.Country = "Indonesia"
	}

	if err := api.DB.Create(company).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка создания компании: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   company,
	})
}

// GetCompany получает компанию по ID
func (api *CompaniesAPI) GetCompany(c *gin.Context) {
	id := c.Param("id")

	var company models.Company
	if err := api.DB.Preload("Category").Where("id = ?", id).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Компания не найдена",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения компании: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   company,
	})
}

// UpdateCompany обновляет компанию
func (api *CompaniesAPI) UpdateCompany(c *gin.Context) {
	id := c.Param("id")

	var company models.Company
	if err := api.DB.Where("id = ?", id).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Компания не найдена",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения компании: " + err.Error(),
		})
		return
	}

	var req CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	if req.CategoryID != nil {
		var category models.CompanyCategory
		if err := api.DB.First(&category, *req.CategoryID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"error":  "Категория не найдена",
			})
			return
		}
	}

	company.Name = req.Name
	company.CategoryID = req.CategoryID
	company.ContactEmail = req.ContactEmail
	company.ContactPhone = req.ContactPhone
	company.ContactPerson = req.ContactPerson
	company.Address = req.Address
	company.City = req.City
	company.Country = req.Country

	if req.MaxUsers > 0 {
		company.MaxUsers = req.MaxUsers
	}
	if req.MaxProjects > 0 {
		company.MaxProjects = req.MaxProjects
	}
	if req.StorageQuota > 0 {
		company.StorageQuota = req.StorageQuota
	}
	if req.Language != "" {
		company.Language = req.Language
	}
	if req.Timezone != "" {
		company.Timezone = req.Timezone
	}
	if req.Currency != "" {
		company.Currency = req.Currency
	}

	if err := api.DB.Save(&company).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка обновления компании: " + err.Error(),
		})
		return
	}

	api.clearCompanyCache(company.ID)

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   company,
	})
}

// DeleteCompany удаляет компанию вместе с подписками, счетами и дополнениями
func (api *CompaniesAPI) DeleteCompany(c *gin.Context) {
	id := c.Param("id")

	var company models.Company
	if err := api.DB.Where("id = ?", id).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Компания не найдена",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения компании: " + err.Error(),
		})
		return
	}

	// Компания владеет своими биллинговыми записями, удаляем их вместе с ней
	err := api.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ?", company.ID).Delete(&models.Subscription{}).Error; err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", company.ID).Delete(&models.Invoice{}).Error; err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", company.ID).Delete(&models.InvoiceAddOn{}).Error; err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", company.ID).Delete(&models.CompanyAddOn{}).Error; err != nil {
			return err
		}
		return tx.Delete(&company).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка удаления компании: " + err.Error(),
		})
		return
	}

	api.clearCompanyCache(company.ID)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Компания удалена",
	})
}

// ActivateCompany активирует компанию
func (api *CompaniesAPI) ActivateCompany(c *gin.Context) {
	api.setCompanyActive(c, true, "Компания активирована")
}

// DeactivateCompany деактивирует компанию
func (api *CompaniesAPI) DeactivateCompany(c *gin.Context) {
	api.setCompanyActive(c, false, "Компания деактивирована")
}

func (api *CompaniesAPI) setCompanyActive(c *gin.Context, active bool, message string) {
	id := c.Param("id")

	var company models.Company
	if err := api.DB.Where("id = ?", id).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Компания не найдена",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения компании: " + err.Error(),
		})
		return
	}

	if err := api.DB.Model(&company).Update("is_active", active).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка обновления компании: " + err.Error(),
		})
		return
	}

	api.clearCompanyCache(company.ID)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": message,
	})
}

// clearCompanyCache очищает кэш компании
func (api *CompaniesAPI) clearCompanyCache(companyID uint) {
	if database.GetRedis() != nil {
		_ = database.ClearCompanyCache(companyID)
	}
}

// GetCategories получает список категорий компаний
func (api *CompaniesAPI) GetCategories(c *gin.Context) {
	var categories []models.CompanyCategory
	if err := api.DB.Order("name ASC").Find(&categories).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения категорий: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   categories,
	})
}

// CreateCategory создает новую категорию компаний
func (api *CompaniesAPI) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	category := &models.CompanyCategory{
		Name: req.Name,
		Slug: req.Slug,
	}

	if err := api.DB.Create(category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка создания категории: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   category,
	})
}

// UpdateCategory обновляет категорию компаний
func (api *CompaniesAPI) UpdateCategory(c *gin.Context) {
	id := c.Param("id")

	var category models.CompanyCategory
	if err := api.DB.Where("id = ?", id).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Категория не найдена",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения категории: " + err.Error(),
		})
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	category.Name = req.Name
	if req.Slug != "" {
		category.Slug = req.Slug
	}

	if err := api.DB.Save(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка обновления категории: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   category,
	})
}

// DeleteCategory удаляет категорию компаний. Категория с привязанными
// компаниями не удаляется, чтобы не оставлять висячие ссылки.
func (api *CompaniesAPI) DeleteCategory(c *gin.Context) {
	id := c.Param("id")

	var category models.CompanyCategory
	if err := api.DB.Where("id = ?", id).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Категория не найдена",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения категории: " + err.Error(),
		})
		return
	}

	// Проверка и удаление в одной транзакции, чтобы исключить гонку с
	// параллельным созданием компании в этой категории
	err := api.DB.Transaction(func(tx *gorm.DB) error {
		var companiesCount int64
		if err := tx.Model(&models.Company{}).
			Where("category_id = ?", category.ID).
			Count(&companiesCount).Error; err != nil {
			return err
		}

		if companiesCount > 0 {
			return errCategoryInUse
		}

		return tx.Delete(&category).Error
	})
	if err != nil {
		if errors.Is(err, errCategoryInUse) {
			c.JSON(http.StatusConflict, gin.H{
				"status": "error",
				"error":  "Нельзя удалить категорию: к ней привязаны компании",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка удаления категории: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Категория удалена",
	})
}

var errCategoryInUse = errors.New("категория используется компаниями")
