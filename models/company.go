package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Company представляет компанию (tenant) в мультитенантной системе
type Company struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля компании
	Name string `json:"name" gorm:"not null;type:varchar(100)"`
	Slug string `json:"slug" gorm:"uniqueIndex;not null;type:varchar(120)"`

	// Категория компании
	CategoryID *uint            `json:"category_id" gorm:"index"`
	Category   *CompanyCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`

	// Контактная информация
	ContactEmail  string `json:"contact_email" gorm:"type:varchar(100)"`
	ContactPhone  string `json:"contact_phone" gorm:"type:varchar(20)"`
	ContactPerson string `json:"contact_person" gorm:"type:varchar(100)"`

	// Адрес
	Address string `json:"address" gorm:"type:text"`
	City    string `json:"city" gorm:"type:varchar(100)"`
	Country string `json:"country" gorm:"default:'Indonesia';type:varchar(100)"`

	// Настройки и статус
	IsActive     bool `json:"is_active" gorm:"default:true"`
	MaxUsers     int  `json:"max_users" gorm:"default:10"`      // Лимит пользователей
	MaxProjects  int  `json:"max_projects" gorm:"default:100"`  // Лимит проектов
	StorageQuota int  `json:"storage_quota" gorm:"default:1024"` // Квота в МБ

	// Настройки локализации
	Language string `json:"language" gorm:"default:'id';type:varchar(5)"`
	Timezone string `json:"timezone" gorm:"default:'Asia/Jakarta';type:varchar(50)"`
	Currency string `json:"currency" gorm:"default:'IDR';type:varchar(3)"`

	// Подписка и биллинг (владеющие связи, удаляются вместе с компанией)
	Subscriptions []Subscription `json:"subscriptions,omitempty" gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	Invoices      []Invoice      `json:"invoices,omitempty" gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	AddOns        []CompanyAddOn `json:"add_ons,omitempty" gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
}

// TableName задает имя таблицы для модели Company
func (Company) TableName() string {
	return "companies"
}

// BeforeSave вызывается перед сохранением записи
func (c *Company) BeforeSave(tx *gorm.DB) error {
	// Генерируем slug из названия, если он не указан
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return nil
}

// CompanyCategory представляет категорию компании
type CompanyCategory struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля категории
	Name string `json:"name" gorm:"not null;type:varchar(100)"`
	Slug string `json:"slug" gorm:"uniqueIndex;not null;type:varchar(120)"`

	// Связи
	Companies []Company `json:"companies,omitempty" gorm:"foreignKey:CategoryID"`
}

// TableName задает имя таблицы для модели CompanyCategory
func (CompanyCategory) TableName() string {
	return "company_categories"
}

// BeforeSave вызывается перед сохранением записи
func (cc *CompanyCategory) BeforeSave(tx *gorm.DB) error {
	if cc.Slug == "" {
		cc.Slug = Slugify(cc.Name)
	}
	return nil
}

// Slugify преобразует произвольное название в slug (строчные буквы, дефисы)
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))

	// Заменяем все не-алфавитно-цифровые символы на дефисы
	var b strings.Builder
	lastDash := false
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}
