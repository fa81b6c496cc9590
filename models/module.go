package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Типы модулей
const (
	ModuleTypeStandard = "standard" // Входит в состав тарифного плана
	ModuleTypeAddon    = "addon"    // Оплачивается отдельно через InvoiceAddOn
)

// Области действия модулей и разрешений
const (
	ScopeSystem    = "system"
	ScopeCompany   = "company"
	ScopeWorkspace = "workspace"
)

// Module представляет покупаемый набор разрешений
type Module struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля модуля
	Name        string `json:"name" gorm:"uniqueIndex;not null;type:varchar(100)"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null;type:varchar(120)"`
	Description string `json:"description" gorm:"type:text"`

	// Тип и область действия
	Type  string `json:"type" gorm:"default:'standard';type:varchar(20)"` // standard, addon
	Scope string `json:"scope" gorm:"default:'company';type:varchar(20)"` // company, workspace

	// Цена модуля. Для addon-модулей используется при выставлении счета.
	// Для standard-модулей отображаемая цена считается как сумма цен разрешений
	// (см. PricingService) и здесь не хранится во избежание рассинхронизации.
	Price decimal.Decimal `json:"price" gorm:"type:decimal(15,2);default:0"`

	// Статус
	IsActive bool `json:"is_active" gorm:"default:true"`

	// Связи
	Permissions []Permission `json:"permissions,omitempty" gorm:"foreignKey:ModuleID"`
	Plans       []Plan       `json:"plans,omitempty" gorm:"many2many:plan_modules;"`
}

// TableName задает имя таблицы для модели Module
func (Module) TableName() string {
	return "modules"
}

// BeforeSave вызывается перед сохранением записи
func (m *Module) BeforeSave(tx *gorm.DB) error {
	// Slug всегда выводится из названия
	if m.Slug == "" {
		m.Slug = Slugify(m.Name)
	}
	return nil
}

// IsAddon проверяет, является ли модуль дополнением
func (m *Module) IsAddon() bool {
	return m.Type == ModuleTypeAddon
}

// IsBillableAddon проверяет, можно ли выставить счет за модуль как за дополнение
func (m *Module) IsBillableAddon() bool {
	return m.IsActive && m.IsAddon()
}

// Типы разрешений
const (
	PermissionTypeGeneral = "general"
	PermissionTypeUnique  = "unique"
)

// Permission представляет атомарную возможность с ценой
type Permission struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля разрешения
	Name        string `json:"name" gorm:"uniqueIndex;not null;type:varchar(100)"` // Например: tasks.create, reports.read
	DisplayName string `json:"display_name" gorm:"type:varchar(100)"`
	Description string `json:"description" gorm:"type:text"`

	// Тип и область действия
	Type  string `json:"type" gorm:"default:'general';type:varchar(20)"` // general, unique
	Scope string `json:"scope" gorm:"default:'company';type:varchar(20)"` // system, company, workspace

	// Цена разрешения. Системные разрешения всегда бесплатны.
	Price decimal.Decimal `json:"price" gorm:"type:decimal(15,2);default:0"`

	// Модуль, которому принадлежит разрешение (NULL = не назначено)
	ModuleID *uint   `json:"module_id" gorm:"index"`
	Module   *Module `json:"module,omitempty" gorm:"foreignKey:ModuleID"`

	// Статус
	IsActive bool `json:"is_active" gorm:"default:true"`
}

// TableName задает имя таблицы для модели Permission
func (Permission) TableName() string {
	return "permissions"
}

// BeforeSave вызывается перед сохранением записи
func (p *Permission) BeforeSave(tx *gorm.DB) error {
	// Системные разрешения всегда бесплатны
	if p.Scope == ScopeSystem {
		p.Price = decimal.Zero
	}
	return nil
}

// BillablePrice возвращает цену разрешения для агрегации цены модуля
func (p *Permission) BillablePrice() decimal.Decimal {
	if p.Scope == ScopeSystem {
		return decimal.Zero
	}
	return p.Price
}

// CompanyAddOn представляет активацию addon-модуля для компании
type CompanyAddOn struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Связи
	CompanyID uint    `json:"company_id" gorm:"not null;index:idx_company_add_ons_company_module,unique"`
	ModuleID  uint    `json:"module_id" gorm:"not null;index:idx_company_add_ons_company_module,unique"`
	Module    *Module `json:"module,omitempty" gorm:"foreignKey:ModuleID"`

	// Период активации
	IsActive  bool       `json:"is_active" gorm:"default:true"`
	StartedAt time.Time  `json:"started_at" gorm:"not null"`
	ExpiredAt *time.Time `json:"expired_at"` // NULL = бессрочно
}

// TableName задает имя таблицы для модели CompanyAddOn
func (CompanyAddOn) TableName() string {
	return "company_add_ons"
}

// IsCurrentlyActive проверяет, действует ли дополнение в данный момент
func (ca *CompanyAddOn) IsCurrentlyActive() bool {
	return ca.IsActive && (ca.ExpiredAt == nil || time.Now().Before(*ca.ExpiredAt))
}
