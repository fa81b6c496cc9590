package services

import (
	"testing"
	"time"

	"backend_taskly/models"
	"backend_taskly/testutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupInvoiceTest(t *testing.T) (*gorm.DB, *InvoiceService) {
	db, err := testutils.SetupTestDB()
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	return db, NewInvoiceService(db)
}

func TestCreateInvoiceForPlan(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)

	invoice, err := service.CreateInvoiceForPlan(company.ID, plan.ID, models.BillingCycleMonthly)
	assert.NoError(t, err)
	assert.NotNil(t, invoice)

	// Снимок данных плана
	assert.Equal(t, "Pro", invoice.PlanName)
	assert.True(t, invoice.Amount.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, 30, invoice.PlanDuration)
	assert.Equal(t, models.InvoiceStatusUnpaid, invoice.Status)
	assert.NotEmpty(t, invoice.Number)
	assert.True(t, invoice.DueDate.After(time.Now()))
}

func TestCreateInvoiceSnapshotSurvivesPlanChange(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)

	invoice, err := service.CreateInvoiceForPlan(company.ID, plan.ID, models.BillingCycleMonthly)
	assert.NoError(t, err)

	// Меняем цену плана после выставления счета
	assert.NoError(t, db.Model(plan).Update("price_monthly", decimal.NewFromInt(999999)).Error)

	var saved models.Invoice
	assert.NoError(t, db.First(&saved, invoice.ID).Error)
	assert.True(t, saved.Amount.Equal(decimal.NewFromInt(150000)))
}

func TestCreateInvoiceYearlyCycle(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)

	invoice, err := service.CreateInvoiceForPlan(company.ID, plan.ID, models.BillingCycleYearly)
	assert.NoError(t, err)
	assert.True(t, invoice.Amount.Equal(decimal.NewFromInt(1500000)))
	assert.Equal(t, 365, invoice.PlanDuration)
}

func TestCreateInvoiceBasicPlanRejectsYearly(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Basic", 50000, true)

	_, err := service.CreateInvoiceForPlan(company.ID, plan.ID, models.BillingCycleYearly)
	assert.Error(t, err)
}

func TestCreateInvoiceInactivePlan(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Legacy", 100000, false)
	assert.NoError(t, db.Model(plan).Update("is_active", false).Error)

	_, err := service.CreateInvoiceForPlan(company.ID, plan.ID, models.BillingCycleMonthly)
	assert.Error(t, err)
}

func TestCreateInvoiceUnknownCycle(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)

	_, err := service.CreateInvoiceForPlan(company.ID, plan.ID, "weekly")
	assert.Error(t, err)
}

func TestInvoiceNumberCollisionRetried(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)

	// Номера генерируются случайно; при коллизии уникальный индекс
	// отклоняет вставку и сервис пробует снова. Несколько счетов подряд
	// должны получить разные номера.
	numbers := make(map[string]bool)
	for i := 0; i < 10; i++ {
		invoice, err := service.CreateInvoiceForPlan(company.ID, plan.ID, models.BillingCycleMonthly)
		assert.NoError(t, err)
		assert.False(t, numbers[invoice.Number], "номер счета повторился: %s", invoice.Number)
		numbers[invoice.Number] = true
	}
}

func TestCancelInvoice(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)
	invoice := testutils.CreateTestUnpaidInvoice(db, company.ID, plan)

	assert.NoError(t, service.CancelInvoice(invoice.ID))

	var saved models.Invoice
	assert.NoError(t, db.First(&saved, invoice.ID).Error)
	assert.Equal(t, models.InvoiceStatusCanceled, saved.Status)

	// Повторная отмена невозможна
	assert.Error(t, service.CancelInvoice(invoice.ID))
}

func TestCancelPaidInvoiceRejected(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)
	invoice := testutils.CreateTestUnpaidInvoice(db, company.ID, plan)

	assert.NoError(t, db.Model(invoice).Update("status", models.InvoiceStatusPaid).Error)
	assert.Error(t, service.CancelInvoice(invoice.ID))
}

func TestExpireOverdueInvoices(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)

	overdue := testutils.CreateTestUnpaidInvoice(db, company.ID, plan)
	assert.NoError(t, db.Model(overdue).Update("due_date", time.Now().AddDate(0, 0, -1)).Error)

	current := testutils.CreateTestUnpaidInvoice(db, company.ID, plan)

	expired, err := service.ExpireOverdueInvoices()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	var saved models.Invoice
	assert.NoError(t, db.First(&saved, overdue.ID).Error)
	assert.Equal(t, models.InvoiceStatusExpired, saved.Status)

	var savedCurrent models.Invoice
	assert.NoError(t, db.First(&savedCurrent, current.ID).Error)
	assert.Equal(t, models.InvoiceStatusUnpaid, savedCurrent.Status)
}

func TestGetUnpaidInvoices(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	other := testutils.CreateTestCompany(db, "PT Lain")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)

	testutils.CreateTestUnpaidInvoice(db, company.ID, plan)
	testutils.CreateTestUnpaidInvoice(db, company.ID, plan)
	testutils.CreateTestUnpaidInvoice(db, other.ID, plan)

	invoices, err := service.GetUnpaidInvoices(company.ID)
	assert.NoError(t, err)
	assert.Len(t, invoices, 2)
}

func TestGetInvoiceByNumber(t *testing.T) {
	db, service := setupInvoiceTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(db, "Pro", 150000, false)
	created, err := service.CreateInvoiceForPlan(company.ID, plan.ID, models.BillingCycleMonthly)
	assert.NoError(t, err)

	found, err := service.GetInvoiceByNumber(created.Number)
	assert.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = service.GetInvoiceByNumber("INV-00000000-XXXX")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
