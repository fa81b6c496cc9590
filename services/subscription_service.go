package services

import (
	"fmt"
	"time"

	"backend_taskly/models"

	"gorm.io/gorm"
)

// SubscriptionService предоставляет функции для управления подписками
type SubscriptionService struct {
	db *gorm.DB
}

// NewSubscriptionService создает новый экземпляр SubscriptionService
func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// ActivateForInvoice активирует или продлевает подписку после оплаты счета.
// Инвариант: в любой момент у компании не более одной активной подписки.
// Прежняя активная подписка переводится в статус superseded в той же
// транзакции; при продлении до истечения новая подписка начинается с даты
// окончания прежней.
func (ss *SubscriptionService) ActivateForInvoice(tx *gorm.DB, invoice *models.Invoice) (*models.Subscription, error) {
	if invoice.Status != models.InvoiceStatusPaid {
		return nil, fmt.Errorf("подписка активируется только по оплаченному счету, статус: %s", invoice.Status)
	}

	// Блокируем текущую активную подписку компании от конкурентных активаций
	var current models.Subscription
	err := lockForUpdate(tx).
		Where("company_id = ? AND status = ?", invoice.CompanyID, models.SubscriptionStatusActive).
		First(&current).Error

	startsAt := time.Now()
	if err == nil {
		// Продление до истечения: новая подписка начинается с конца текущей
		if time.Now().Before(current.EndsAt) {
			startsAt = current.EndsAt
		}

		// Прежняя активная подписка уходит в терминальный статус
		if err := tx.Model(&current).Update("status", models.SubscriptionStatusSuperseded).Error; err != nil {
			return nil, fmt.Errorf("ошибка завершения прежней подписки: %w", err)
		}
	} else if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("ошибка поиска активной подписки: %w", err)
	}

	billingCycle := models.BillingCycleMonthly
	if invoice.PlanDuration >= 365 {
		billingCycle = models.BillingCycleYearly
	}

	subscription := &models.Subscription{
		CompanyID:    invoice.CompanyID,
		PlanID:       invoice.PlanID,
		InvoiceID:    invoice.ID,
		StartsAt:     startsAt,
		EndsAt:       startsAt.AddDate(0, 0, invoice.PlanDuration),
		BillingCycle: billingCycle,
		Status:       models.SubscriptionStatusActive,
	}

	if err := tx.Create(subscription).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания подписки: %w", err)
	}

	return subscription, nil
}

// GetActiveSubscription возвращает текущую активную подписку компании
func (ss *SubscriptionService) GetActiveSubscription(companyID uint) (*models.Subscription, error) {
	var subscription models.Subscription
	err := ss.db.Where("company_id = ? AND status = ? AND ends_at > ?",
		companyID, models.SubscriptionStatusActive, time.Now()).
		Preload("Plan").
		First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// GetExpiringSoon возвращает активные подписки, истекающие в ближайшие days дней
func (ss *SubscriptionService) GetExpiringSoon(days int) ([]models.Subscription, error) {
	deadline := time.Now().AddDate(0, 0, days)

	var subscriptions []models.Subscription
	err := ss.db.Where("status = ? AND ends_at > ? AND ends_at <= ?",
		models.SubscriptionStatusActive, time.Now(), deadline).
		Preload("Plan").
		Order("ends_at ASC").
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истекающих подписок: %w", err)
	}

	return subscriptions, nil
}

// ExpireLapsedSubscriptions переводит истекшие активные подписки в статус expired.
// Запускается планировщиком.
func (ss *SubscriptionService) ExpireLapsedSubscriptions() (int64, error) {
	res := ss.db.Model(&models.Subscription{}).
		Where("status = ? AND ends_at < ?", models.SubscriptionStatusActive, time.Now()).
		Update("status", models.SubscriptionStatusExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("ошибка обновления истекших подписок: %w", res.Error)
	}
	return res.RowsAffected, nil
}
