package services

import (
	"fmt"
	"log"
	"time"

	"backend_taskly/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentService обрабатывает оплату счетов через внешний платежный шлюз
// и асинхронные уведомления о статусе платежа
type PaymentService struct {
	db            *gorm.DB
	gateway       PaymentGateway
	subscriptions *SubscriptionService

	// Срок действия дополнения без активной подписки (в днях)
	AddOnFallbackDays int
}

// NewPaymentService создает новый экземпляр PaymentService
func NewPaymentService(db *gorm.DB, gateway PaymentGateway) *PaymentService {
	return &PaymentService{
		db:                db,
		gateway:           gateway,
		subscriptions:     NewSubscriptionService(db),
		AddOnFallbackDays: 30,
	}
}

// PaymentNotification представляет асинхронное уведомление платежного шлюза
type PaymentNotification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"` // settlement, capture, pending, deny, cancel, expire
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
}

// IsSuccess проверяет, подтверждает ли уведомление успешную оплату
func (n *PaymentNotification) IsSuccess() bool {
	return n.TransactionStatus == "settlement" || n.TransactionStatus == "capture" || n.TransactionStatus == "success"
}

// PayInvoice создает платежную сессию для счета на подписку и возвращает
// snap-токен. При сбое шлюза счет остается неоплаченным без токена,
// пользователь повторяет оплату вручную.
func (ps *PaymentService) PayInvoice(invoiceID uint, customer PaymentCustomer) (string, string, error) {
	var invoice models.Invoice
	if err := ps.db.First(&invoice, invoiceID).Error; err != nil {
		return "", "", fmt.Errorf("счет не найден: %w", err)
	}

	if !invoice.IsPayable() {
		return "", "", ErrInvoiceNotPayable
	}

	if err := ps.ensureInvoiceReference(&invoice); err != nil {
		return "", "", err
	}

	description := fmt.Sprintf("Подписка '%s', счет %s", invoice.PlanName, invoice.Number)
	token, redirectURL, err := ps.gateway.CreateSnapTransaction(invoice.PaymentReference, invoice.Amount, description, customer)
	if err != nil {
		return "", "", err
	}

	if err := ps.db.Model(&invoice).Update("snap_token", token).Error; err != nil {
		return "", "", fmt.Errorf("ошибка сохранения snap-токена: %w", err)
	}

	return token, redirectURL, nil
}

// PayAddOnInvoice создает платежную сессию для счета за дополнение
func (ps *PaymentService) PayAddOnInvoice(invoiceID uint, customer PaymentCustomer) (string, string, error) {
	var invoice models.InvoiceAddOn
	if err := ps.db.First(&invoice, invoiceID).Error; err != nil {
		return "", "", fmt.Errorf("счет за дополнение не найден: %w", err)
	}

	if !invoice.IsPayable() {
		return "", "", ErrInvoiceNotPayable
	}

	if err := ps.ensureAddOnInvoiceReference(&invoice); err != nil {
		return "", "", err
	}

	token, redirectURL, err := ps.gateway.CreateSnapTransaction(invoice.PaymentReference, invoice.Amount, invoice.Description, customer)
	if err != nil {
		return "", "", err
	}

	if err := ps.db.Model(&invoice).Update("snap_token", token).Error; err != nil {
		return "", "", fmt.Errorf("ошибка сохранения snap-токена: %w", err)
	}

	return token, redirectURL, nil
}

// ensureInvoiceReference присваивает счету платежную ссылку, если ее еще нет.
// Ссылка служит order_id шлюза и присваивается ровно один раз: условие в
// WHERE защищает от параллельного присвоения двумя оплатами, проигравшая
// сторона перечитывает счет и использует уже присвоенную ссылку.
func (ps *PaymentService) ensureInvoiceReference(invoice *models.Invoice) error {
	if invoice.PaymentReference != "" {
		return nil
	}

	reference := uuid.NewString()
	result := ps.db.Model(&models.Invoice{}).
		Where("id = ? AND payment_reference = ''", invoice.ID).
		Update("payment_reference", reference)
	if result.Error != nil {
		return fmt.Errorf("ошибка сохранения платежной ссылки: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := ps.db.First(invoice, invoice.ID).Error; err != nil {
			return fmt.Errorf("ошибка чтения счета: %w", err)
		}
		return nil
	}

	invoice.PaymentReference = reference
	return nil
}

// ensureAddOnInvoiceReference присваивает платежную ссылку счету за дополнение
func (ps *PaymentService) ensureAddOnInvoiceReference(invoice *models.InvoiceAddOn) error {
	if invoice.PaymentReference != "" {
		return nil
	}

	reference := uuid.NewString()
	result := ps.db.Model(&models.InvoiceAddOn{}).
		Where("id = ? AND payment_reference = ''", invoice.ID).
		Update("payment_reference", reference)
	if result.Error != nil {
		return fmt.Errorf("ошибка сохранения платежной ссылки: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := ps.db.First(invoice, invoice.ID).Error; err != nil {
			return fmt.Errorf("ошибка чтения счета за дополнение: %w", err)
		}
		return nil
	}

	invoice.PaymentReference = reference
	return nil
}

// ProcessNotification обрабатывает уведомление платежного шлюза. Обработка
// идемпотентна: шлюз может доставить одно уведомление несколько раз, повторное
// применение к уже оплаченному счету не меняет состояние.
func (ps *PaymentService) ProcessNotification(n PaymentNotification) error {
	if n.OrderID == "" {
		return fmt.Errorf("пустой order_id в уведомлении")
	}

	// Неуспешные статусы не меняют состояние: счет остается неоплаченным,
	// просрочку обрабатывает планировщик
	if !n.IsSuccess() {
		log.Printf("ℹ️  Платеж %s в статусе %s, изменений нет", n.OrderID, n.TransactionStatus)
		return nil
	}

	// Счет за дополнение, активированный этим уведомлением; компанию
	// уведомляем только после фиксации транзакции
	var activated *models.InvoiceAddOn

	err := ps.db.Transaction(func(tx *gorm.DB) error {
		// Сначала ищем счет на подписку
		var invoice models.Invoice
		err := lockForUpdate(tx).
			Where("payment_reference = ?", n.OrderID).
			First(&invoice).Error
		if err == nil {
			return ps.applyPlanInvoicePayment(tx, &invoice, n)
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("ошибка поиска счета: %w", err)
		}

		// Затем счет за дополнение
		var addOnInvoice models.InvoiceAddOn
		err = lockForUpdate(tx).
			Where("payment_reference = ?", n.OrderID).
			First(&addOnInvoice).Error
		if err == nil {
			applied, err := ps.applyAddOnInvoicePayment(tx, &addOnInvoice, n)
			if err != nil {
				return err
			}
			if applied {
				activated = &addOnInvoice
			}
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("ошибка поиска счета за дополнение: %w", err)
		}

		return fmt.Errorf("счет с платежной ссылкой %s не найден", n.OrderID)
	})
	if err != nil {
		return err
	}

	if activated != nil {
		ps.notifyAddOnActivated(activated.CompanyID, activated.ModuleID)
	}

	return nil
}

// applyPlanInvoicePayment применяет оплату к счету на подписку и активирует подписку
func (ps *PaymentService) applyPlanInvoicePayment(tx *gorm.DB, invoice *models.Invoice, n PaymentNotification) error {
	// Повторная доставка уведомления: счет уже оплачен, ничего не делаем
	if invoice.Status == models.InvoiceStatusPaid {
		return nil
	}

	if invoice.Status == models.InvoiceStatusCanceled {
		return fmt.Errorf("получена оплата по отмененному счету %s", invoice.Number)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":         models.InvoiceStatusPaid,
		"paid_at":        &now,
		"payment_method": n.PaymentType,
	}
	if err := tx.Model(invoice).Updates(updates).Error; err != nil {
		return fmt.Errorf("ошибка обновления счета: %w", err)
	}

	invoice.Status = models.InvoiceStatusPaid
	invoice.PaidAt = &now

	// Активация подписки в той же транзакции, что и смена статуса счета
	if _, err := ps.subscriptions.ActivateForInvoice(tx, invoice); err != nil {
		return fmt.Errorf("ошибка активации подписки: %w", err)
	}

	return nil
}

// applyAddOnInvoicePayment применяет оплату к счету за дополнение и активирует
// CompanyAddOn для модуля. Возвращает true, если оплата применена впервые.
func (ps *PaymentService) applyAddOnInvoicePayment(tx *gorm.DB, invoice *models.InvoiceAddOn, n PaymentNotification) (bool, error) {
	// Повторная доставка уведомления: счет уже оплачен, ничего не делаем
	if invoice.Status == models.InvoiceStatusPaid {
		return false, nil
	}

	if invoice.Status == models.InvoiceStatusCanceled {
		return false, fmt.Errorf("получена оплата по отмененному счету %s", invoice.Number)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":         models.InvoiceStatusPaid,
		"paid_at":        &now,
		"payment_method": n.PaymentType,
	}
	if err := tx.Model(invoice).Updates(updates).Error; err != nil {
		return false, fmt.Errorf("ошибка обновления счета за дополнение: %w", err)
	}

	if err := ps.activateCompanyAddOn(tx, invoice.CompanyID, invoice.ModuleID); err != nil {
		return false, err
	}

	return true, nil
}

// notifyAddOnActivated уведомляет компанию об активации модуля. Сбой
// уведомления не влияет на результат платежа.
func (ps *PaymentService) notifyAddOnActivated(companyID, moduleID uint) {
	notifier := GetNotificationService()
	if notifier == nil {
		return
	}

	var module models.Module
	if err := ps.db.First(&module, moduleID).Error; err != nil {
		log.Printf("⚠️  Модуль %d для уведомления не найден: %v", moduleID, err)
		return
	}

	if err := notifier.NotifyAddOnActivated(companyID, module.Name); err != nil {
		log.Printf("⚠️  Ошибка уведомления об активации модуля %s: %v", module.Name, err)
	}
}

// activateCompanyAddOn создает или повторно активирует дополнение компании.
// Срок действия привязан к концу текущего периода подписки; без активной
// подписки дополнение получает фиксированное окно AddOnFallbackDays.
func (ps *PaymentService) activateCompanyAddOn(tx *gorm.DB, companyID, moduleID uint) error {
	now := time.Now()

	expiredAt := now.AddDate(0, 0, ps.AddOnFallbackDays)
	var subscription models.Subscription
	err := tx.Where("company_id = ? AND status = ? AND ends_at > ?",
		companyID, models.SubscriptionStatusActive, now).
		First(&subscription).Error
	if err == nil {
		expiredAt = subscription.EndsAt
	} else if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("ошибка поиска подписки: %w", err)
	}

	var addOn models.CompanyAddOn
	err = lockForUpdate(tx).
		Where("company_id = ? AND module_id = ?", companyID, moduleID).
		First(&addOn).Error

	if err == gorm.ErrRecordNotFound {
		addOn = models.CompanyAddOn{
			CompanyID: companyID,
			ModuleID:  moduleID,
			IsActive:  true,
			StartedAt: now,
			ExpiredAt: &expiredAt,
		}
		if err := tx.Create(&addOn).Error; err != nil {
			return fmt.Errorf("ошибка создания дополнения компании: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка поиска дополнения компании: %w", err)
	}

	// Повторная активация существующей записи
	if err := tx.Model(&addOn).Updates(map[string]interface{}{
		"is_active":  true,
		"started_at": now,
		"expired_at": &expiredAt,
	}).Error; err != nil {
		return fmt.Errorf("ошибка повторной активации дополнения: %w", err)
	}

	return nil
}
