package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Доступные циклы тарификации
const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

// Plan представляет тарифный план подписки
type Plan struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля тарифного плана
	Name        string `json:"name" gorm:"uniqueIndex;not null;type:varchar(100)"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null;type:varchar(120)"`
	Description string `json:"description" gorm:"type:text"`

	// Цены (задаются администратором, не выводятся из модулей)
	PriceMonthly decimal.Decimal  `json:"price_monthly" gorm:"type:decimal(15,2);not null"`
	PriceYearly  *decimal.Decimal `json:"price_yearly" gorm:"type:decimal(15,2)"` // У базовых планов отсутствует
	Currency     string           `json:"currency" gorm:"default:'IDR';type:varchar(3)"`

	// Статус и доступность
	IsActive bool `json:"is_active" gorm:"default:true"`
	IsBasic  bool `json:"is_basic" gorm:"default:false"`

	// Модули, входящие в план
	Modules []Module `json:"modules,omitempty" gorm:"many2many:plan_modules;"`
}

// TableName задает имя таблицы для модели Plan
func (Plan) TableName() string {
	return "plans"
}

// BeforeSave вызывается перед сохранением записи
func (p *Plan) BeforeSave(tx *gorm.DB) error {
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	return nil
}

// PriceFor возвращает цену плана для указанного цикла тарификации.
// Для базовых планов годовая цена недоступна — возвращается месячная.
func (p *Plan) PriceFor(billingCycle string) decimal.Decimal {
	if billingCycle == BillingCycleYearly && p.PriceYearly != nil {
		return *p.PriceYearly
	}
	return p.PriceMonthly
}

// DurationDays возвращает длительность подписки в днях для цикла тарификации
func (p *Plan) DurationDays(billingCycle string) int {
	if billingCycle == BillingCycleYearly {
		return 365
	}
	return 30
}

// Статусы подписки
const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusExpired    = "expired"
	SubscriptionStatusSuperseded = "superseded"
	SubscriptionStatusCancelled  = "cancelled"
)

// Subscription представляет подписку компании на тарифный план
type Subscription struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Связи
	CompanyID uint     `json:"company_id" gorm:"not null;index"`
	PlanID    uint     `json:"plan_id" gorm:"not null"`
	Plan      *Plan    `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
	InvoiceID uint     `json:"invoice_id" gorm:"not null;index"`
	Invoice   *Invoice `json:"invoice,omitempty" gorm:"foreignKey:InvoiceID"`

	// Период подписки
	StartsAt time.Time `json:"starts_at" gorm:"not null"`
	EndsAt   time.Time `json:"ends_at" gorm:"not null"`

	// Цикл и статус
	BillingCycle string `json:"billing_cycle" gorm:"default:'monthly';type:varchar(20)"`
	Status       string `json:"status" gorm:"default:'active';type:varchar(20);index"` // active, expired, superseded, cancelled
}

// TableName задает имя таблицы для модели Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}

// IsCurrentlyActive проверяет, действует ли подписка в данный момент
func (s *Subscription) IsCurrentlyActive() bool {
	return s.Status == SubscriptionStatusActive && time.Now().Before(s.EndsAt)
}

// IsExpiringSoon проверяет, истекает ли подписка в ближайшие days дней
func (s *Subscription) IsExpiringSoon(days int) bool {
	if !s.IsCurrentlyActive() {
		return false
	}
	return time.Now().AddDate(0, 0, days).After(s.EndsAt)
}
