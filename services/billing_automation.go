package services

import (
	"fmt"
	"log"
	"time"

	"backend_taskly/models"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// BillingAutomationService выполняет фоновые задачи биллинга по расписанию
type BillingAutomationService struct {
	db            *gorm.DB
	invoices      *InvoiceService
	subscriptions *SubscriptionService
	proposals     *ProposalService
	notifications *NotificationService
	scheduler     *cron.Cron

	// За сколько дней до окончания подписки отправлять напоминание
	ExpiryReminderDays int
}

// NewBillingAutomationService создает новый экземпляр BillingAutomationService
func NewBillingAutomationService(db *gorm.DB, notifications *NotificationService) *BillingAutomationService {
	return &BillingAutomationService{
		db:                 db,
		invoices:           NewInvoiceService(db),
		subscriptions:      NewSubscriptionService(db),
		proposals:          NewProposalService(db),
		notifications:      notifications,
		ExpiryReminderDays: 3,
	}
}

// StartScheduler запускает планировщик фоновых задач биллинга
func (bas *BillingAutomationService) StartScheduler() error {
	if bas.scheduler != nil {
		return fmt.Errorf("планировщик уже запущен")
	}

	bas.scheduler = cron.New()

	// Просроченные счета и истекшие подписки — каждый час
	if _, err := bas.scheduler.AddFunc("0 * * * *", bas.runStatusSweep); err != nil {
		return fmt.Errorf("ошибка регистрации задачи обновления статусов: %w", err)
	}

	// Страховочное выставление счетов по одобренным предложениям — каждые 15 минут
	if _, err := bas.scheduler.AddFunc("*/15 * * * *", bas.runBillingSweep); err != nil {
		return fmt.Errorf("ошибка регистрации задачи выставления счетов: %w", err)
	}

	// Напоминания о продлении — раз в сутки
	if _, err := bas.scheduler.AddFunc("0 9 * * *", bas.runRenewalReminders); err != nil {
		return fmt.Errorf("ошибка регистрации задачи напоминаний: %w", err)
	}

	bas.scheduler.Start()
	log.Println("✅ Планировщик биллинга запущен")
	return nil
}

// StopScheduler останавливает планировщик
func (bas *BillingAutomationService) StopScheduler() {
	if bas.scheduler != nil {
		bas.scheduler.Stop()
		bas.scheduler = nil
	}
}

// runStatusSweep помечает просроченные счета и истекшие подписки
func (bas *BillingAutomationService) runStatusSweep() {
	if expired, err := bas.invoices.ExpireOverdueInvoices(); err != nil {
		log.Printf("⚠️  Ошибка обработки просроченных счетов: %v", err)
	} else if expired > 0 {
		log.Printf("🧾 Помечено просроченных счетов: %d", expired)
	}

	if expired, err := bas.subscriptions.ExpireLapsedSubscriptions(); err != nil {
		log.Printf("⚠️  Ошибка обработки истекших подписок: %v", err)
	} else if expired > 0 {
		log.Printf("📅 Помечено истекших подписок: %d", expired)
	}
}

// runBillingSweep выставляет счета по одобренным предложениям без счета
func (bas *BillingAutomationService) runBillingSweep() {
	billed, err := bas.proposals.BillUnbilledProposals()
	if err != nil {
		log.Printf("⚠️  Ошибка выставления счетов по предложениям: %v", err)
		return
	}
	if billed > 0 {
		log.Printf("🧾 Выставлено счетов по предложениям: %d", billed)
	}
}

// runRenewalReminders отправляет напоминания об истекающих подписках
func (bas *BillingAutomationService) runRenewalReminders() {
	subscriptions, err := bas.subscriptions.GetExpiringSoon(bas.ExpiryReminderDays)
	if err != nil {
		log.Printf("⚠️  Ошибка получения истекающих подписок: %v", err)
		return
	}

	for i := range subscriptions {
		if err := bas.notifications.NotifySubscriptionExpiring(&subscriptions[i]); err != nil {
			log.Printf("⚠️  Ошибка отправки напоминания по подписке %d: %v", subscriptions[i].ID, err)
		}
	}
}

// BillingStatistics содержит статистику биллинга компании
type BillingStatistics struct {
	CompanyID        uint            `json:"company_id"`
	Year             int             `json:"year"`
	TotalInvoices    int             `json:"total_invoices"`
	PaidInvoices     int             `json:"paid_invoices"`
	UnpaidInvoices   int             `json:"unpaid_invoices"`
	ExpiredInvoices  int             `json:"expired_invoices"`
	CanceledInvoices int             `json:"canceled_invoices"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	AddOnInvoices    int             `json:"addon_invoices"`
	AddOnPaidAmount  decimal.Decimal `json:"addon_paid_amount"`
}

// GetBillingStatistics возвращает статистику биллинга компании за год
func (bas *BillingAutomationService) GetBillingStatistics(companyID uint, year int) (*BillingStatistics, error) {
	stats := &BillingStatistics{
		CompanyID: companyID,
		Year:      year,
	}

	startDate := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(year, 12, 31, 23, 59, 59, 0, time.UTC)

	// Счета на подписку
	var invoices []models.Invoice
	if err := bas.db.Where("company_id = ? AND created_at >= ? AND created_at <= ?",
		companyID, startDate, endDate).Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения счетов для статистики: %w", err)
	}

	for _, invoice := range invoices {
		stats.TotalInvoices++
		stats.TotalAmount = stats.TotalAmount.Add(invoice.Amount)

		switch invoice.Status {
		case models.InvoiceStatusPaid:
			stats.PaidInvoices++
			stats.PaidAmount = stats.PaidAmount.Add(invoice.Amount)
		case models.InvoiceStatusExpired:
			stats.ExpiredInvoices++
		case models.InvoiceStatusCanceled:
			stats.CanceledInvoices++
		default:
			stats.UnpaidInvoices++
		}
	}

	// Счета за дополнения
	var addOnInvoices []models.InvoiceAddOn
	if err := bas.db.Where("company_id = ? AND created_at >= ? AND created_at <= ?",
		companyID, startDate, endDate).Find(&addOnInvoices).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения счетов за дополнения: %w", err)
	}

	for _, invoice := range addOnInvoices {
		stats.AddOnInvoices++
		if invoice.Status == models.InvoiceStatusPaid {
			stats.AddOnPaidAmount = stats.AddOnPaidAmount.Add(invoice.Amount)
		}
	}

	return stats, nil
}

// ExportBillingReport выгружает счета компании за год в xlsx
func (bas *BillingAutomationService) ExportBillingReport(companyID uint, year int) (*excelize.File, error) {
	startDate := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(year, 12, 31, 23, 59, 59, 0, time.UTC)

	var invoices []models.Invoice
	if err := bas.db.Where("company_id = ? AND created_at >= ? AND created_at <= ?",
		companyID, startDate, endDate).
		Order("created_at ASC").
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения счетов для отчета: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Invoices"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("ошибка создания листа отчета: %w", err)
	}

	headers := []string{"Номер", "План", "Сумма", "Валюта", "Статус", "Срок оплаты", "Дата оплаты"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("ошибка записи заголовка отчета: %w", err)
		}
	}

	for row, invoice := range invoices {
		paidAt := ""
		if invoice.PaidAt != nil {
			paidAt = invoice.PaidAt.Format("02.01.2006")
		}

		values := []interface{}{
			invoice.Number,
			invoice.PlanName,
			invoice.Amount.String(),
			invoice.Currency,
			invoice.Status,
			invoice.DueDate.Format("02.01.2006"),
			paidAt,
		}

		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("ошибка записи строки отчета: %w", err)
			}
		}
	}

	return f, nil
}
