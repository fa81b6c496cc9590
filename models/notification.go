package models

import (
	"time"

	"gorm.io/gorm"
)

// Каналы уведомлений
const (
	NotificationChannelTelegram = "telegram"
	NotificationChannelEmail    = "email"
)

// Типы уведомлений
const (
	NotificationTypeSubscriptionExpiring = "subscription_expiring"
	NotificationTypeInvoiceCreated       = "invoice_created"
	NotificationTypeInvoiceExpired       = "invoice_expired"
	NotificationTypeProposalApproved     = "proposal_approved"
	NotificationTypeAddOnActivated       = "addon_activated"
)

// NotificationSettings представляет настройки уведомлений компании
type NotificationSettings struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Связь с компанией
	CompanyID uint `json:"company_id" gorm:"uniqueIndex;not null"`

	// Telegram
	TelegramEnabled  bool   `json:"telegram_enabled" gorm:"default:false"`
	TelegramBotToken string `json:"-" gorm:"type:varchar(100)"` // Скрыт в JSON
	TelegramChatID   string `json:"telegram_chat_id" gorm:"type:varchar(50)"`

	// Напоминания о продлении подписки
	RemindBeforeExpiry int `json:"remind_before_expiry" gorm:"default:3"` // За сколько дней напоминать
}

// TableName задает имя таблицы для модели NotificationSettings
func (NotificationSettings) TableName() string {
	return "notification_settings"
}

// NotificationLog представляет журнал отправленных уведомлений
type NotificationLog struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	CompanyID uint   `json:"company_id" gorm:"not null;index"`
	Type      string `json:"type" gorm:"not null;type:varchar(50)"`
	Channel   string `json:"channel" gorm:"not null;type:varchar(20)"`
	Recipient string `json:"recipient" gorm:"type:varchar(100)"`
	Message   string `json:"message" gorm:"type:text"`
	Status    string `json:"status" gorm:"default:'sent';type:varchar(20)"` // sent, failed
	Error     string `json:"error" gorm:"type:text"`
}

// TableName задает имя таблицы для модели NotificationLog
func (NotificationLog) TableName() string {
	return "notification_logs"
}
