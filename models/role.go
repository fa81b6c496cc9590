package models

import (
	"time"

	"gorm.io/gorm"
)

// Системные роли
const (
	RoleAdmin        = "admin"         // Администратор платформы
	RoleCompanyOwner = "company_owner" // Владелец компании
	RoleMember       = "member"        // Обычный участник
)

// Role представляет роль пользователя в системе
type Role struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля роли
	Name        string `json:"name" gorm:"uniqueIndex;not null;type:varchar(100)"` // admin, company_owner, member
	DisplayName string `json:"display_name" gorm:"not null;type:varchar(100)"`
	Description string `json:"description" gorm:"type:text"`

	// Приоритет роли (чем больше число, тем выше приоритет)
	Priority int `json:"priority" gorm:"default:0"`

	// Статус
	IsActive bool `json:"is_active" gorm:"default:true"`
	IsSystem bool `json:"is_system" gorm:"default:false"` // Системная роль (нельзя удалить)

	// Связи
	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions;"`
	Users       []User       `json:"users,omitempty" gorm:"foreignKey:RoleID"`
}

// TableName задает имя таблицы для модели Role
func (Role) TableName() string {
	return "roles"
}

// HasPermission проверяет, есть ли у роли определенное разрешение
func (r *Role) HasPermission(permissionName string) bool {
	for _, perm := range r.Permissions {
		if perm.Name == permissionName {
			return true
		}
	}
	return false
}

// GetPermissionNames возвращает список имен разрешений роли
func (r *Role) GetPermissionNames() []string {
	names := make([]string, len(r.Permissions))
	for i, perm := range r.Permissions {
		names[i] = perm.Name
	}
	return names
}
