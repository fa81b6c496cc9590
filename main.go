package main

import (
	"log"
	"time"

	"backend_taskly/api"
	"backend_taskly/config"
	"backend_taskly/database"
	"backend_taskly/middleware"
	"backend_taskly/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// initDB инициализирует подключение к базе данных
func initDB() {
	log.Println("🔧 Инициализация базы данных...")

	// Создаем базу данных, если она не существует
	if err := database.CreateDatabaseIfNotExists(); err != nil {
		log.Fatal("❌ Ошибка при создании базы данных:", err)
	}

	// Подключаемся к базе данных
	if err := database.ConnectDatabase(); err != nil {
		log.Fatal("❌ Ошибка подключения к базе данных:", err)
	}

	log.Println("✅ База данных успешно инициализирована")
}

func main() {
	// Загружаем конфигурацию (включая .env файл)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("❌ Ошибка загрузки конфигурации:", err)
	}
	config.GlobalConfig = cfg

	// Инициализируем базу данных
	initDB()

	// Redis опционален: без него работаем без кэша и rate limiting
	if err := database.InitRedis(); err != nil {
		log.Printf("⚠️  Redis недоступен, кэширование отключено: %v", err)
	}

	db := database.GetDB()

	// Инициализируем сервисы
	authService := services.NewAuthService(db, cfg.JWT.Secret, cfg.JWT.ExpiresIn, cfg.JWT.Issuer)
	cacheService := services.NewCacheService(database.GetRedis(), log.Default())
	notificationService := services.NewNotificationService(db)

	gateway := services.NewMidtransGateway(cfg.Midtrans)
	paymentService := services.NewPaymentService(db, gateway)
	paymentService.AddOnFallbackDays = cfg.Billing.AddOnFallbackDays

	invoiceService := services.NewInvoiceService(db)
	invoiceService.PaymentTermDays = cfg.Billing.InvoicePaymentTermDays
	invoiceService.AddOnPaymentTermDays = cfg.Billing.AddOnPaymentTermDays

	subscriptionService := services.NewSubscriptionService(db)
	ticketService := services.NewTicketService(db)
	proposalService := services.NewProposalService(db)
	pricingService := services.NewPricingService(db, cacheService)

	automationService := services.NewBillingAutomationService(db, notificationService)
	automationService.ExpiryReminderDays = cfg.Billing.ExpiryReminderDays

	// Регистрируем глобальные сервисы
	services.SetAuthService(authService)
	services.SetCacheService(cacheService)
	services.SetNotificationService(notificationService)
	services.SetPaymentService(paymentService)
	services.SetBillingAutomationService(automationService)

	// Запускаем фоновые задачи биллинга
	if err := automationService.StartScheduler(); err != nil {
		log.Fatal("❌ Ошибка запуска планировщика биллинга:", err)
	}
	defer automationService.StopScheduler()

	// Настраиваем Gin router
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	r.Use(cors.New(corsConfig))

	// Middleware
	authMW := middleware.NewAuthMiddleware(authService)
	tenantMW := middleware.NewTenantMiddleware(db)

	// Базовые роуты
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "success",
			"message":  "pong",
			"database": "connected",
		})
	})

	// Публичные роуты (вебхук платежного шлюза, логин)
	public := r.Group("/api")
	public.Use(middleware.APIRateLimit())

	// Защищенные роуты компании
	protected := r.Group("/api")
	protected.Use(middleware.APIRateLimit(), authMW.RequireAuth(), tenantMW.SetTenant())

	// Административные роуты
	admin := r.Group("/api/admin")
	admin.Use(middleware.APIRateLimit(), authMW.RequireAuth(), authMW.RequireAdmin())

	// API роуты
	authAPI := api.NewAuthAPI(db, authService)
	authAPI.RegisterAuthRoutes(public, authMW)

	companiesAPI := api.NewCompaniesAPI(db)
	companiesAPI.RegisterCompaniesRoutes(admin)

	plansAPI := api.NewPlansAPI(db)
	plansAPI.RegisterPlansRoutes(protected, admin)

	modulesAPI := api.NewModulesAPI(db, pricingService)
	modulesAPI.RegisterModulesRoutes(protected, admin)

	ticketsAPI := api.NewTicketsAPI(db, ticketService, proposalService)
	ticketsAPI.RegisterTicketsRoutes(protected, admin)

	billingAPI := api.NewBillingAPI(db, invoiceService, paymentService)
	billingAPI.RegisterBillingRoutes(protected, admin, public)

	subscriptionsAPI := api.NewSubscriptionsAPI(db, subscriptionService)
	subscriptionsAPI.RegisterSubscriptionsRoutes(protected, admin)

	reportsAPI := api.NewReportsAPI(db, automationService)
	reportsAPI.RegisterReportsRoutes(protected)

	log.Printf("🚀 Сервер запущен на порту %s", cfg.App.Port)
	if err := r.Run(cfg.App.Host + ":" + cfg.App.Port); err != nil {
		log.Fatal("❌ Ошибка запуска сервера:", err)
	}
}
