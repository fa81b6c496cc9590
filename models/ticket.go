package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Типы тикетов
const (
	TicketTypeBug     = "bug"
	TicketTypeFeature = "feature"
)

// Статусы тикетов
const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in_progress"
	TicketStatusResolved   = "resolved"
	TicketStatusClosed     = "closed"
)

// Приоритеты тикетов
const (
	TicketPriorityLow    = "low"
	TicketPriorityMedium = "medium"
	TicketPriorityHigh   = "high"
	TicketPriorityUrgent = "urgent"
)

// Ticket представляет обращение в поддержку
type Ticket struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Код тикета в формате TCK-YYYYMMDD-NNNN
	Code string `json:"code" gorm:"uniqueIndex;not null;type:varchar(30)"`

	// Основные поля тикета
	CompanyID uint   `json:"company_id" gorm:"not null;index"`
	Subject   string `json:"subject" gorm:"not null;type:varchar(200)"`
	Body      string `json:"body" gorm:"type:text"`
	Type      string `json:"type" gorm:"default:'bug';type:varchar(20);index"` // bug, feature
	Priority  string `json:"priority" gorm:"default:'medium';type:varchar(20)"`
	Status    string `json:"status" gorm:"default:'open';type:varchar(20);index"`

	// Участники
	CreatedBy  uint  `json:"created_by" gorm:"not null"`
	AssignedTo *uint `json:"assigned_to"`

	// Отметки времени жизненного цикла
	ResolvedAt *time.Time `json:"resolved_at"`
	ClosedAt   *time.Time `json:"closed_at"`

	// Связи
	Proposal        *TicketProposal       `json:"proposal,omitempty" gorm:"foreignKey:TicketID"`
	Comments        []TicketComment       `json:"comments,omitempty" gorm:"foreignKey:TicketID"`
	StatusHistories []TicketStatusHistory `json:"status_histories,omitempty" gorm:"foreignKey:TicketID"`
}

// TableName задает имя таблицы для модели Ticket
func (Ticket) TableName() string {
	return "tickets"
}

// IsFeatureRequest проверяет, является ли тикет запросом на доработку
func (t *Ticket) IsFeatureRequest() bool {
	return t.Type == TicketTypeFeature
}

// GenerateTicketCode генерирует код тикета для заданного дня и порядкового номера
func GenerateTicketCode(now time.Time, sequence int) string {
	return fmt.Sprintf("TCK-%s-%04d", now.Format("20060102"), sequence)
}

// TicketComment представляет комментарий к тикету
type TicketComment struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	TicketID uint   `json:"ticket_id" gorm:"not null;index"`
	UserID   uint   `json:"user_id" gorm:"not null"`
	Body     string `json:"body" gorm:"not null;type:text"`
}

// TableName задает имя таблицы для модели TicketComment
func (TicketComment) TableName() string {
	return "ticket_comments"
}

// TicketStatusHistory представляет запись аудита смены статуса тикета.
// Записи только добавляются и никогда не изменяются.
type TicketStatusHistory struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	TicketID   uint   `json:"ticket_id" gorm:"not null;index"`
	FromStatus string `json:"from_status" gorm:"not null;type:varchar(20)"`
	ToStatus   string `json:"to_status" gorm:"not null;type:varchar(20)"`
	ChangedBy  uint   `json:"changed_by" gorm:"not null"`
	Note       string `json:"note" gorm:"type:text"`
}

// TableName задает имя таблицы для модели TicketStatusHistory
func (TicketStatusHistory) TableName() string {
	return "ticket_status_histories"
}

// Статусы предложений
const (
	ProposalStatusPending  = "pending"
	ProposalStatusApproved = "approved"
	ProposalStatusBilled   = "billed"
	ProposalStatusRejected = "rejected"
)

// TicketProposal представляет оценку стоимости доработки по тикету.
// Жизненный цикл: pending -> approved -> billed, либо pending -> rejected.
type TicketProposal struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Связи. У тикета может быть не более одного предложения.
	TicketID uint    `json:"ticket_id" gorm:"not null;uniqueIndex"`
	Ticket   *Ticket `json:"ticket,omitempty" gorm:"foreignKey:TicketID"`
	ModuleID uint    `json:"module_id" gorm:"not null"`
	Module   *Module `json:"module,omitempty" gorm:"foreignKey:ModuleID"`

	// Оценка
	EstimatedPrice decimal.Decimal `json:"estimated_price" gorm:"type:decimal(15,2);not null"`
	EstimatedDays  int             `json:"estimated_days" gorm:"not null"`

	// Статус и ссылки жизненного цикла
	Status     string     `json:"status" gorm:"default:'pending';type:varchar(20);index"` // pending, approved, billed, rejected
	ApprovedAt *time.Time `json:"approved_at"`
	InvoiceID  *uint      `json:"invoice_id" gorm:"index"` // ID созданного InvoiceAddOn
}

// TableName задает имя таблицы для модели TicketProposal
func (TicketProposal) TableName() string {
	return "ticket_proposals"
}

// IsUnbilled проверяет, одобрено ли предложение без выставленного счета
func (tp *TicketProposal) IsUnbilled() bool {
	return tp.Status == ProposalStatusApproved && tp.InvoiceID == nil
}

// IsTerminal проверяет, находится ли предложение в конечном состоянии
func (tp *TicketProposal) IsTerminal() bool {
	return tp.Status == ProposalStatusBilled || tp.Status == ProposalStatusRejected
}
