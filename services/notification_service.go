package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"backend_taskly/models"
)

// NotificationService отправляет уведомления компаниям о событиях биллинга
type NotificationService struct {
	DB              *gorm.DB
	telegramClients map[uint]*TelegramClient // Карта клиентов Telegram по company_id
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{
		DB:              db,
		telegramClients: make(map[uint]*TelegramClient),
	}
}

// getTelegramClient получает или создает Telegram клиент для компании
func (s *NotificationService) getTelegramClient(companyID uint) (*TelegramClient, error) {
	// Проверяем кэш
	if client, exists := s.telegramClients[companyID]; exists {
		if client.IsHealthy() {
			return client, nil
		}
		// Если клиент нездоров, удаляем его из кэша
		delete(s.telegramClients, companyID)
	}

	// Создаем новый клиент
	client, err := NewTelegramClient(s.DB, companyID)
	if err != nil {
		return nil, err
	}

	// Сохраняем в кэш
	s.telegramClients[companyID] = client
	return client, nil
}

// Notify отправляет сообщение компании и пишет результат в журнал уведомлений
func (s *NotificationService) Notify(companyID uint, notificationType, message string) error {
	logEntry := &models.NotificationLog{
		CompanyID: companyID,
		Type:      notificationType,
		Channel:   models.NotificationChannelTelegram,
		Message:   message,
		Status:    "sent",
	}

	client, err := s.getTelegramClient(companyID)
	if err == nil {
		logEntry.Recipient = client.DefaultChatID()
		err = client.SendMessage(client.DefaultChatID(), message)
	}

	if err != nil {
		logEntry.Status = "failed"
		logEntry.Error = err.Error()
	}

	if dbErr := s.DB.Create(logEntry).Error; dbErr != nil {
		log.Printf("⚠️  Ошибка записи журнала уведомлений: %v", dbErr)
	}

	if err != nil {
		return fmt.Errorf("ошибка отправки уведомления компании %d: %w", companyID, err)
	}

	return nil
}

// NotifySubscriptionExpiring отправляет напоминание о скором окончании подписки
func (s *NotificationService) NotifySubscriptionExpiring(subscription *models.Subscription) error {
	planName := ""
	if subscription.Plan != nil {
		planName = subscription.Plan.Name
	}

	message := fmt.Sprintf("⏳ Подписка на план <b>%s</b> истекает %s. Продлите подписку, чтобы сохранить доступ.",
		planName, subscription.EndsAt.Format("02.01.2006"))

	return s.Notify(subscription.CompanyID, models.NotificationTypeSubscriptionExpiring, message)
}

// NotifyInvoiceCreated отправляет уведомление о выставленном счете
func (s *NotificationService) NotifyInvoiceCreated(companyID uint, number string, amount string) error {
	message := fmt.Sprintf("🧾 Выставлен счет <b>%s</b> на сумму %s. Оплатите его до истечения срока.", number, amount)
	return s.Notify(companyID, models.NotificationTypeInvoiceCreated, message)
}

// NotifyAddOnActivated отправляет уведомление об активации дополнения
func (s *NotificationService) NotifyAddOnActivated(companyID uint, moduleName string) error {
	message := fmt.Sprintf("✅ Модуль <b>%s</b> активирован для вашей компании.", moduleName)
	return s.Notify(companyID, models.NotificationTypeAddOnActivated, message)
}
