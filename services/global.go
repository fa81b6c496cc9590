package services

// Глобальные экземпляры сервисов, инициализируются при старте приложения

var GlobalAuthService *AuthService
var GlobalPaymentService *PaymentService
var GlobalNotificationService *NotificationService
var GlobalBillingAutomationService *BillingAutomationService
var GlobalCacheService *CacheService

// GetAuthService возвращает глобальный сервис аутентификации
func GetAuthService() *AuthService {
	return GlobalAuthService
}

// SetAuthService устанавливает глобальный сервис аутентификации
func SetAuthService(service *AuthService) {
	GlobalAuthService = service
}

// GetPaymentService возвращает глобальный сервис платежей
func GetPaymentService() *PaymentService {
	return GlobalPaymentService
}

// SetPaymentService устанавливает глобальный сервис платежей
func SetPaymentService(service *PaymentService) {
	GlobalPaymentService = service
}

// GetNotificationService возвращает глобальный сервис уведомлений
func GetNotificationService() *NotificationService {
	return GlobalNotificationService
}

// SetNotificationService устанавливает глобальный сервис уведомлений
func SetNotificationService(service *NotificationService) {
	GlobalNotificationService = service
}

// GetBillingAutomationService возвращает глобальный сервис автоматизации биллинга
func GetBillingAutomationService() *BillingAutomationService {
	return GlobalBillingAutomationService
}

// SetBillingAutomationService устанавливает глобальный сервис автоматизации биллинга
func SetBillingAutomationService(service *BillingAutomationService) {
	GlobalBillingAutomationService = service
}

// GetCacheService возвращает глобальный сервис кэширования
func GetCacheService() *CacheService {
	return GlobalCacheService
}

// SetCacheService устанавливает глобальный сервис кэширования
func SetCacheService(service *CacheService) {
	GlobalCacheService = service
}
