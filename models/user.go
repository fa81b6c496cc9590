package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User представляет модель пользователя в системе
type User struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Username string `json:"username" gorm:"uniqueIndex;not null"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-" gorm:"not null"` // Хэш пароля, не возвращается в JSON

	// Дополнительные поля
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active" gorm:"default:true"`

	// Роль и компания
	RoleID    uint  `json:"role_id" gorm:"not null;index"`
	Role      *Role `json:"role,omitempty" gorm:"foreignKey:RoleID"`
	CompanyID uint  `json:"company_id" gorm:"not null;index"`

	// Канал для уведомлений
	TelegramChatID string `json:"telegram_chat_id" gorm:"type:varchar(50)"`
}

// TableName задает имя таблицы для модели User
func (User) TableName() string {
	return "users"
}

// SetPassword хэширует и устанавливает пароль пользователя
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// CheckPassword проверяет пароль пользователя
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}
