package testutils

import (
	"log"
	"time"

	"backend_taskly/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB создает и настраивает тестовую базу данных в памяти
// Эта функция должна использоваться во всех тестах для обеспечения консистентности
func SetupTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Выполняем миграции в правильном порядке
	err = db.AutoMigrate(
		// Компании и категории
		&models.CompanyCategory{},
		&models.Company{},

		// Роли, разрешения и пользователи
		&models.Permission{},
		&models.Role{},
		&models.User{},

		// Модули и дополнения
		&models.Module{},
		&models.CompanyAddOn{},

		// Тарифы и подписки
		&models.Plan{},
		&models.Invoice{},
		&models.Subscription{},

		// Тикеты и предложения
		&models.Ticket{},
		&models.TicketComment{},
		&models.TicketStatusHistory{},
		&models.TicketProposal{},
		&models.InvoiceAddOn{},

		// Уведомления
		&models.NotificationSettings{},
		&models.NotificationLog{},
	)
	if err != nil {
		return nil, err
	}

	// Создаем таблицы связей many-to-many
	err = db.Exec(`CREATE TABLE IF NOT EXISTS "role_permissions" (
		"role_id" integer,
		"permission_id" integer,
		PRIMARY KEY ("role_id", "permission_id")
	)`).Error
	if err != nil {
		return nil, err
	}

	err = db.Exec(`CREATE TABLE IF NOT EXISTS "plan_modules" (
		"plan_id" integer,
		"module_id" integer,
		PRIMARY KEY ("plan_id", "module_id")
	)`).Error
	if err != nil {
		return nil, err
	}

	return db, nil
}

// CleanupTestDB очищает тестовую базу данных
func CleanupTestDB(db *gorm.DB) {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

// CreateTestCompany создает тестовую компанию для использования в тестах
func CreateTestCompany(db *gorm.DB, name string) *models.Company {
	company := &models.Company{
		Name:         name,
		ContactEmail: "owner@example.com",
		IsActive:     true,
		Currency:     "IDR",
	}

	if err := db.Create(company).Error; err != nil {
		log.Printf("Failed to create test company: %v", err)
		return nil
	}

	return company
}

// CreateTestPlan создает тестовый тарифный план
func CreateTestPlan(db *gorm.DB, name string, priceMonthly int64, basic bool) *models.Plan {
	plan := &models.Plan{
		Name:         name,
		PriceMonthly: decimal.NewFromInt(priceMonthly),
		Currency:     "IDR",
		IsActive:     true,
		IsBasic:      basic,
	}

	if !basic {
		yearly := decimal.NewFromInt(priceMonthly * 10)
		plan.PriceYearly = &yearly
	}

	if err := db.Create(plan).Error; err != nil {
		log.Printf("Failed to create test plan: %v", err)
		return nil
	}

	return plan
}

// CreateTestModule создает тестовый модуль
func CreateTestModule(db *gorm.DB, name, moduleType string, price int64) *models.Module {
	module := &models.Module{
		Name:     name,
		Type:     moduleType,
		Scope:    models.ScopeCompany,
		Price:    decimal.NewFromInt(price),
		IsActive: true,
	}

	if err := db.Create(module).Error; err != nil {
		log.Printf("Failed to create test module: %v", err)
		return nil
	}

	return module
}

// CreateTestTicket создает тестовый тикет
func CreateTestTicket(db *gorm.DB, companyID uint, ticketType string) *models.Ticket {
	ticket := &models.Ticket{
		Code:      models.GenerateTicketCode(time.Now(), int(time.Now().UnixNano()%10000)),
		CompanyID: companyID,
		Subject:   "Test ticket",
		Body:      "Test ticket body",
		Type:      ticketType,
		Priority:  models.TicketPriorityMedium,
		Status:    models.TicketStatusOpen,
		CreatedBy: 1,
	}

	if err := db.Create(ticket).Error; err != nil {
		log.Printf("Failed to create test ticket: %v", err)
		return nil
	}

	return ticket
}

// CreateTestUnpaidInvoice создает тестовый неоплаченный счет по плану
func CreateTestUnpaidInvoice(db *gorm.DB, companyID uint, plan *models.Plan) *models.Invoice {
	invoice := &models.Invoice{
		CompanyID:    companyID,
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		Amount:       plan.PriceMonthly,
		PlanDuration: 30,
		Currency:     "IDR",
		Status:       models.InvoiceStatusUnpaid,
		DueDate:      time.Now().AddDate(0, 0, 7),
	}

	if err := db.Create(invoice).Error; err != nil {
		log.Printf("Failed to create test invoice: %v", err)
		return nil
	}

	return invoice
}
