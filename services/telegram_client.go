package services

import (
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"backend_taskly/models"
)

// TelegramClient представляет клиент для работы с Telegram Bot API
type TelegramClient struct {
	bot       *tgbotapi.BotAPI
	db        *gorm.DB
	companyID uint
	settings  *models.NotificationSettings
}

// NewTelegramClient создает новый экземпляр Telegram клиента
func NewTelegramClient(db *gorm.DB, companyID uint) (*TelegramClient, error) {
	// Получаем настройки уведомлений для компании
	var settings models.NotificationSettings
	err := db.Where("company_id = ?", companyID).First(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("настройки уведомлений не найдены для компании %d: %w", companyID, err)
	}

	if !settings.TelegramEnabled || settings.TelegramBotToken == "" {
		return nil, fmt.Errorf("Telegram не настроен для компании %d", companyID)
	}

	// Создаем Bot API клиент
	bot, err := tgbotapi.NewBotAPI(settings.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram бота: %w", err)
	}

	// В продакшене отключаем debug
	bot.Debug = false

	log.Printf("✅ Telegram бот авторизован: %s", bot.Self.UserName)

	return &TelegramClient{
		bot:       bot,
		db:        db,
		companyID: companyID,
		settings:  &settings,
	}, nil
}

// SendMessage отправляет сообщение в чат компании
func (tc *TelegramClient) SendMessage(chatID string, message string) error {
	// Парсим chat ID
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("неверный chat ID: %s", chatID)
	}

	// Создаем сообщение
	msg := tgbotapi.NewMessage(chatIDInt, message)
	msg.ParseMode = tgbotapi.ModeHTML

	// Отправляем сообщение
	if _, err := tc.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}

	return nil
}

// DefaultChatID возвращает chat ID компании из настроек
func (tc *TelegramClient) DefaultChatID() string {
	return tc.settings.TelegramChatID
}

// IsHealthy проверяет доступность Telegram API
func (tc *TelegramClient) IsHealthy() bool {
	if tc.bot == nil {
		return false
	}
	_, err := tc.bot.GetMe()
	return err == nil
}
