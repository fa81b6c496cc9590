package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"backend_taskly/models"

	"gorm.io/gorm"
)

// Количество попыток генерации уникального номера счета
const invoiceNumberAttempts = 5

// ErrInvoiceNotPayable возвращается при попытке оплатить неоплачиваемый счет
var ErrInvoiceNotPayable = errors.New("счет не подлежит оплате")

// InvoiceService предоставляет функции для выставления счетов
type InvoiceService struct {
	db *gorm.DB

	// Срок оплаты счетов в днях
	PaymentTermDays      int
	AddOnPaymentTermDays int
}

// NewInvoiceService создает новый экземпляр InvoiceService
func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{
		db:                   db,
		PaymentTermDays:      7,
		AddOnPaymentTermDays: 7,
	}
}

// CreateInvoiceForPlan выставляет счет компании на подписку по тарифному плану.
// Название плана, сумма и длительность снимаются с плана на момент создания,
// чтобы исторические счета не менялись при изменении тарифов.
func (is *InvoiceService) CreateInvoiceForPlan(companyID uint, planID uint, billingCycle string) (*models.Invoice, error) {
	if billingCycle != models.BillingCycleMonthly && billingCycle != models.BillingCycleYearly {
		return nil, fmt.Errorf("неизвестный цикл тарификации: %s", billingCycle)
	}

	// Получаем тарифный план
	var plan models.Plan
	if err := is.db.First(&plan, planID).Error; err != nil {
		return nil, fmt.Errorf("тарифный план не найден: %w", err)
	}

	if !plan.IsActive {
		return nil, fmt.Errorf("тарифный план '%s' неактивен", plan.Name)
	}

	// У базовых планов нет годовой цены
	if plan.IsBasic && billingCycle == models.BillingCycleYearly {
		return nil, fmt.Errorf("для базового плана '%s' годовая подписка недоступна", plan.Name)
	}

	// Проверяем существование компании
	var company models.Company
	if err := is.db.First(&company, companyID).Error; err != nil {
		return nil, fmt.Errorf("компания не найдена: %w", err)
	}

	invoice := &models.Invoice{
		CompanyID:    companyID,
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		Amount:       plan.PriceFor(billingCycle),
		PlanDuration: plan.DurationDays(billingCycle),
		Currency:     company.Currency,
		Status:       models.InvoiceStatusUnpaid,
		DueDate:      time.Now().AddDate(0, 0, is.PaymentTermDays),
	}

	if err := is.createInvoiceWithUniqueNumber(is.db, invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// createInvoiceWithUniqueNumber создает счет, повторяя генерацию номера при
// коллизии. Уникальный индекс по number превращает гонку двух запросов в
// ошибку вставки, которую мы обрабатываем повторной попыткой.
func (is *InvoiceService) createInvoiceWithUniqueNumber(tx *gorm.DB, invoice *models.Invoice) error {
	for attempt := 0; attempt < invoiceNumberAttempts; attempt++ {
		invoice.Number = models.GenerateInvoiceNumber(time.Now())

		err := tx.Create(invoice).Error
		if err == nil {
			return nil
		}

		if !isDuplicateKeyError(err) {
			return fmt.Errorf("ошибка создания счета: %w", err)
		}

		// Коллизия номера, пробуем снова
		invoice.ID = 0
	}

	return fmt.Errorf("не удалось сгенерировать уникальный номер счета за %d попыток", invoiceNumberAttempts)
}

// createAddOnInvoiceWithUniqueNumber создает счет-дополнение с уникальным номером
func (is *InvoiceService) createAddOnInvoiceWithUniqueNumber(tx *gorm.DB, invoice *models.InvoiceAddOn) error {
	for attempt := 0; attempt < invoiceNumberAttempts; attempt++ {
		invoice.Number = models.GenerateInvoiceNumber(time.Now())

		err := tx.Create(invoice).Error
		if err == nil {
			return nil
		}

		if !isDuplicateKeyError(err) {
			return fmt.Errorf("ошибка создания счета за дополнение: %w", err)
		}

		// Уникальный индекс по ticket_proposal_id: счет уже существует
		if strings.Contains(strings.ToLower(err.Error()), "ticket_proposal_id") {
			return fmt.Errorf("счет по предложению %d уже выставлен: %w", invoice.TicketProposalID, err)
		}

		invoice.ID = 0
	}

	return fmt.Errorf("не удалось сгенерировать уникальный номер счета за %d попыток", invoiceNumberAttempts)
}

// isDuplicateKeyError проверяет, является ли ошибка нарушением уникальности
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// GetInvoiceByNumber возвращает счет по номеру
func (is *InvoiceService) GetInvoiceByNumber(number string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := is.db.Where("number = ?", number).First(&invoice).Error; err != nil {
		return nil, fmt.Errorf("счет %s не найден: %w", number, err)
	}
	return &invoice, nil
}

// GetUnpaidInvoices возвращает неоплаченные счета компании
func (is *InvoiceService) GetUnpaidInvoices(companyID uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := is.db.Where("company_id = ? AND status = ?", companyID, models.InvoiceStatusUnpaid).
		Order("due_date ASC").
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения неоплаченных счетов: %w", err)
	}
	return invoices, nil
}

// GetOverdueInvoices возвращает просроченные неоплаченные счета
func (is *InvoiceService) GetOverdueInvoices(companyID *uint) ([]models.Invoice, error) {
	query := is.db.Where("status = ? AND due_date < ?", models.InvoiceStatusUnpaid, time.Now()).
		Order("due_date ASC")

	if companyID != nil {
		query = query.Where("company_id = ?", *companyID)
	}

	var invoices []models.Invoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения просроченных счетов: %w", err)
	}
	return invoices, nil
}

// CancelInvoice отменяет неоплаченный счет
func (is *InvoiceService) CancelInvoice(invoiceID uint) error {
	return is.db.Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := lockForUpdate(tx).
			First(&invoice, invoiceID).Error; err != nil {
			return fmt.Errorf("счет не найден: %w", err)
		}

		if invoice.Status == models.InvoiceStatusPaid {
			return fmt.Errorf("нельзя отменить оплаченный счет")
		}

		if invoice.Status == models.InvoiceStatusCanceled {
			return fmt.Errorf("счет уже отменен")
		}

		if err := tx.Model(&invoice).Update("status", models.InvoiceStatusCanceled).Error; err != nil {
			return fmt.Errorf("ошибка отмены счета: %w", err)
		}

		return nil
	})
}

// GetAddOnInvoicesByCompany возвращает счета за дополнения для компании
func (is *InvoiceService) GetAddOnInvoicesByCompany(companyID uint) ([]models.InvoiceAddOn, error) {
	var invoices []models.InvoiceAddOn
	if err := is.db.Where("company_id = ?", companyID).
		Preload("Module").
		Order("created_at DESC").
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения счетов за дополнения: %w", err)
	}
	return invoices, nil
}

// ExpireOverdueInvoices помечает неоплаченные счета с истекшим сроком как expired.
// Запускается планировщиком, модель сама статусы не меняет.
func (is *InvoiceService) ExpireOverdueInvoices() (int64, error) {
	var total int64

	res := is.db.Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceStatusUnpaid, time.Now()).
		Update("status", models.InvoiceStatusExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("ошибка обновления статусов счетов: %w", res.Error)
	}
	total += res.RowsAffected

	res = is.db.Model(&models.InvoiceAddOn{}).
		Where("status = ? AND due_date < ?", models.InvoiceStatusUnpaid, time.Now()).
		Update("status", models.InvoiceStatusExpired)
	if res.Error != nil {
		return total, fmt.Errorf("ошибка обновления статусов счетов за дополнения: %w", res.Error)
	}
	total += res.RowsAffected

	return total, nil
}
