package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"
)

// DatabaseIndex представляет индекс базы данных
type DatabaseIndex struct {
	Name      string
	Table     string
	Columns   []string
	Unique    bool
	Condition string // Частичный индекс (только PostgreSQL)
}

// BillingIndexes индексы, обеспечивающие инварианты биллинга и производительность
var BillingIndexes = []DatabaseIndex{
	// Уникальность номеров счетов (защита от гонки при генерации)
	{
		Name:    "idx_invoices_number_unique",
		Table:   "invoices",
		Columns: []string{"number"},
		Unique:  true,
	},
	{
		Name:    "idx_invoice_add_ons_number_unique",
		Table:   "invoice_add_ons",
		Columns: []string{"number"},
		Unique:  true,
	},

	// Не более одного счета-дополнения на предложение (защита от двойного биллинга)
	{
		Name:    "idx_invoice_add_ons_proposal_unique",
		Table:   "invoice_add_ons",
		Columns: []string{"ticket_proposal_id"},
		Unique:  true,
	},

	// Не более одной активной подписки на компанию
	{
		Name:      "idx_subscriptions_one_active_per_company",
		Table:     "subscriptions",
		Columns:   []string{"company_id"},
		Unique:    true,
		Condition: "status = 'active' AND deleted_at IS NULL",
	},

	// Не более одного предложения на тикет
	{
		Name:    "idx_ticket_proposals_ticket_unique",
		Table:   "ticket_proposals",
		Columns: []string{"ticket_id"},
		Unique:  true,
	},

	// Поисковые индексы для частых выборок
	{
		Name:    "idx_invoices_company_status",
		Table:   "invoices",
		Columns: []string{"company_id", "status"},
	},
	{
		Name:    "idx_invoices_status_due_date",
		Table:   "invoices",
		Columns: []string{"status", "due_date"},
	},
	{
		Name:    "idx_invoice_add_ons_company_status",
		Table:   "invoice_add_ons",
		Columns: []string{"company_id", "status"},
	},
	{
		Name:    "idx_subscriptions_status_ends_at",
		Table:   "subscriptions",
		Columns: []string{"status", "ends_at"},
	},
	{
		Name:    "idx_ticket_proposals_status_invoice",
		Table:   "ticket_proposals",
		Columns: []string{"status", "invoice_id"},
	},
	{
		Name:    "idx_tickets_company_type_status",
		Table:   "tickets",
		Columns: []string{"company_id", "type", "status"},
	},
}

// CreateBillingIndexes создает все индексы биллинга
func CreateBillingIndexes(db *gorm.DB) error {
	created := 0
	for _, idx := range BillingIndexes {
		if err := createIndex(db, idx); err != nil {
			return fmt.Errorf("ошибка создания индекса %s: %w", idx.Name, err)
		}
		created++
	}

	log.Printf("✅ Создано индексов биллинга: %d", created)
	return nil
}

// createIndex создает один индекс, если его еще нет
func createIndex(db *gorm.DB, idx DatabaseIndex) error {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}

	sql := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, idx.Name, idx.Table, strings.Join(idx.Columns, ", "))

	if idx.Condition != "" {
		sql += " WHERE " + idx.Condition
	}

	return db.Exec(sql).Error
}
