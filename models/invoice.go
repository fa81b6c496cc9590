package models

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы счетов (используются и Invoice, и InvoiceAddOn)
const (
	InvoiceStatusUnpaid   = "unpaid"
	InvoiceStatusPaid     = "paid"
	InvoiceStatusExpired  = "expired"
	InvoiceStatusCanceled = "canceled"
)

// Invoice представляет счет на подписку по тарифному плану
type Invoice struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Номер счета в формате INV/YYYYMMDD/XXXXX, присваивается один раз
	Number string `json:"number" gorm:"uniqueIndex;not null;type:varchar(50)"`

	// Связи
	CompanyID uint  `json:"company_id" gorm:"not null;index"`
	PlanID    uint  `json:"plan_id" gorm:"not null"`
	Plan      *Plan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`

	// Снимок данных плана на момент выставления счета.
	// Исторические счета остаются корректными после изменения цен плана.
	PlanName     string          `json:"plan_name" gorm:"not null;type:varchar(100)"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	PlanDuration int             `json:"plan_duration" gorm:"not null"` // Длительность в днях
	Currency     string          `json:"currency" gorm:"default:'IDR';type:varchar(3)"`

	// Статус счета
	Status string     `json:"status" gorm:"default:'unpaid';type:varchar(20);index"` // unpaid, paid, expired, canceled
	PaidAt *time.Time `json:"paid_at"`

	// Платежная информация (Midtrans Snap)
	SnapToken        string `json:"snap_token" gorm:"type:varchar(100)"`
	PaymentReference string `json:"payment_reference" gorm:"type:varchar(100);index"`
	PaymentMethod    string `json:"payment_method" gorm:"type:varchar(50)"`

	// Срок оплаты
	DueDate time.Time `json:"due_date" gorm:"not null"`
}

// TableName задает имя таблицы для модели Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// BeforeCreate вызывается перед созданием записи
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	// Генерируем номер счета, если он не указан. Уникальность обеспечивается
	// уникальным индексом и повторными попытками в InvoiceService.
	if i.Number == "" {
		i.Number = GenerateInvoiceNumber(time.Now())
	}
	return nil
}

// IsPayable проверяет, можно ли оплатить счет: статус unpaid и срок не истек
func (i *Invoice) IsPayable() bool {
	return i.Status == InvoiceStatusUnpaid && time.Now().Before(i.DueDate)
}

// IsOverdue проверяет, просрочен ли неоплаченный счет
func (i *Invoice) IsOverdue() bool {
	return i.Status == InvoiceStatusUnpaid && time.Now().After(i.DueDate)
}

// InvoiceAddOn представляет счет за addon-модуль по одобренному предложению
type InvoiceAddOn struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Номер счета, тот же формат что и у Invoice
	Number string `json:"number" gorm:"uniqueIndex;not null;type:varchar(50)"`

	// Связи. Уникальный индекс по ticket_proposal_id исключает двойное
	// выставление счета по одному предложению.
	CompanyID        uint            `json:"company_id" gorm:"not null;index"`
	ModuleID         uint            `json:"module_id" gorm:"not null"`
	Module           *Module         `json:"module,omitempty" gorm:"foreignKey:ModuleID"`
	TicketProposalID uint            `json:"ticket_proposal_id" gorm:"not null;uniqueIndex"`
	TicketProposal   *TicketProposal `json:"ticket_proposal,omitempty" gorm:"foreignKey:TicketProposalID"`

	// Описание и сумма (снимок estimated_price предложения)
	Description string          `json:"description" gorm:"type:text"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	Currency    string          `json:"currency" gorm:"default:'IDR';type:varchar(3)"`

	// Статус счета
	Status string     `json:"status" gorm:"default:'unpaid';type:varchar(20);index"` // unpaid, paid, expired, canceled
	PaidAt *time.Time `json:"paid_at"`

	// Платежная информация (Midtrans Snap)
	SnapToken        string `json:"snap_token" gorm:"type:varchar(100)"`
	PaymentReference string `json:"payment_reference" gorm:"type:varchar(100);index"`
	PaymentMethod    string `json:"payment_method" gorm:"type:varchar(50)"`

	// Срок оплаты
	DueDate time.Time `json:"due_date" gorm:"not null"`
}

// TableName задает имя таблицы для модели InvoiceAddOn
func (InvoiceAddOn) TableName() string {
	return "invoice_add_ons"
}

// BeforeCreate вызывается перед созданием записи
func (ia *InvoiceAddOn) BeforeCreate(tx *gorm.DB) error {
	if ia.Number == "" {
		ia.Number = GenerateInvoiceNumber(time.Now())
	}
	return nil
}

// IsPayable проверяет, можно ли оплатить счет
func (ia *InvoiceAddOn) IsPayable() bool {
	return ia.Status == InvoiceStatusUnpaid && time.Now().Before(ia.DueDate)
}

// IsOverdue проверяет, просрочен ли неоплаченный счет
func (ia *InvoiceAddOn) IsOverdue() bool {
	return ia.Status == InvoiceStatusUnpaid && time.Now().After(ia.DueDate)
}

const invoiceNumberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateInvoiceNumber генерирует номер счета в формате INV/YYYYMMDD/XXXXX
func GenerateInvoiceNumber(now time.Time) string {
	suffix := make([]byte, 5)
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range suffix {
		suffix[i] = invoiceNumberCharset[r.Intn(len(invoiceNumberCharset))]
	}
	return fmt.Sprintf("INV/%s/%s", now.Format("20060102"), string(suffix))
}
