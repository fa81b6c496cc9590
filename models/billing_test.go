package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupModelsTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(&Company{}, &CompanyCategory{}, &Module{}, &Permission{})
	assert.NoError(t, err)

	return db
}

func TestInvoiceIsPayable(t *testing.T) {
	invoice := Invoice{
		Status:  InvoiceStatusUnpaid,
		DueDate: time.Now().AddDate(0, 0, 7),
	}
	assert.True(t, invoice.IsPayable())

	// Просроченный счет оплатить нельзя
	invoice.DueDate = time.Now().AddDate(0, 0, -1)
	assert.False(t, invoice.IsPayable())
	assert.True(t, invoice.IsOverdue())

	// Оплаченный счет оплатить повторно нельзя
	invoice.Status = InvoiceStatusPaid
	invoice.DueDate = time.Now().AddDate(0, 0, 7)
	assert.False(t, invoice.IsPayable())

	// Отмененный счет оплатить нельзя
	invoice.Status = InvoiceStatusCanceled
	assert.False(t, invoice.IsPayable())
}

func TestGenerateInvoiceNumber(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	number := GenerateInvoiceNumber(now)

	assert.True(t, strings.HasPrefix(number, "INV/20260830/"))

	parts := strings.Split(number, "/")
	assert.Len(t, parts, 3)
	assert.Len(t, parts[2], 5)
}

func TestGenerateTicketCode(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	code := GenerateTicketCode(now, 7)
	assert.Equal(t, "TCK-20260830-0007", code)

	code = GenerateTicketCode(now, 1234)
	assert.Equal(t, "TCK-20260830-1234", code)
}

func TestSubscriptionIsCurrentlyActive(t *testing.T) {
	subscription := Subscription{
		Status:   SubscriptionStatusActive,
		StartsAt: time.Now().AddDate(0, 0, -10),
		EndsAt:   time.Now().AddDate(0, 0, 20),
	}
	assert.True(t, subscription.IsCurrentlyActive())

	// Период закончился
	subscription.EndsAt = time.Now().AddDate(0, 0, -1)
	assert.False(t, subscription.IsCurrentlyActive())

	// Статус не active
	subscription.EndsAt = time.Now().AddDate(0, 0, 20)
	subscription.Status = SubscriptionStatusSuperseded
	assert.False(t, subscription.IsCurrentlyActive())
}

func TestSubscriptionIsExpiringSoon(t *testing.T) {
	subscription := Subscription{
		Status:   SubscriptionStatusActive,
		StartsAt: time.Now().AddDate(0, -1, 0),
		EndsAt:   time.Now().AddDate(0, 0, 2),
	}

	assert.True(t, subscription.IsExpiringSoon(3))
	assert.False(t, subscription.IsExpiringSoon(1))
}

func TestPlanPriceFor(t *testing.T) {
	yearly := decimal.NewFromInt(1000000)
	plan := Plan{
		PriceMonthly: decimal.NewFromInt(100000),
		PriceYearly:  &yearly,
	}

	assert.True(t, plan.PriceFor(BillingCycleMonthly).Equal(decimal.NewFromInt(100000)))
	assert.True(t, plan.PriceFor(BillingCycleYearly).Equal(decimal.NewFromInt(1000000)))

	assert.Equal(t, 30, plan.DurationDays(BillingCycleMonthly))
	assert.Equal(t, 365, plan.DurationDays(BillingCycleYearly))
}

func TestSystemPermissionPriceForcedToZero(t *testing.T) {
	db := setupModelsTestDB(t)

	permission := &Permission{
		Name:  "platform.manage",
		Scope: ScopeSystem,
		Price: decimal.NewFromInt(50000),
	}
	assert.NoError(t, db.Create(permission).Error)

	// Системные разрешения всегда бесплатны
	var saved Permission
	assert.NoError(t, db.First(&saved, permission.ID).Error)
	assert.True(t, saved.Price.IsZero())
	assert.True(t, saved.BillablePrice().IsZero())
}

func TestCompanyPermissionKeepsPrice(t *testing.T) {
	db := setupModelsTestDB(t)

	permission := &Permission{
		Name:  "tasks.export",
		Scope: ScopeCompany,
		Price: decimal.NewFromInt(25000),
	}
	assert.NoError(t, db.Create(permission).Error)

	var saved Permission
	assert.NoError(t, db.First(&saved, permission.ID).Error)
	assert.True(t, saved.Price.Equal(decimal.NewFromInt(25000)))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "pt-maju-jaya", Slugify("PT Maju Jaya"))
	assert.Equal(t, "task-manager-2", Slugify("  Task Manager 2  "))
	assert.Equal(t, "a-b", Slugify("A---B"))
}

func TestCompanySlugGeneratedOnSave(t *testing.T) {
	db := setupModelsTestDB(t)

	company := &Company{Name: "Sada Taskly Demo"}
	assert.NoError(t, db.Create(company).Error)
	assert.Equal(t, "sada-taskly-demo", company.Slug)
}

func TestModuleIsBillableAddon(t *testing.T) {
	module := Module{Type: ModuleTypeAddon, IsActive: true}
	assert.True(t, module.IsBillableAddon())

	module.IsActive = false
	assert.False(t, module.IsBillableAddon())

	module = Module{Type: ModuleTypeStandard, IsActive: true}
	assert.False(t, module.IsBillableAddon())
}

func TestCompanyAddOnIsCurrentlyActive(t *testing.T) {
	future := time.Now().AddDate(0, 1, 0)
	addOn := CompanyAddOn{
		IsActive:  true,
		StartedAt: time.Now().AddDate(0, 0, -1),
		ExpiredAt: &future,
	}
	assert.True(t, addOn.IsCurrentlyActive())

	past := time.Now().AddDate(0, 0, -1)
	addOn.ExpiredAt = &past
	assert.False(t, addOn.IsCurrentlyActive())

	// Бессрочное дополнение
	addOn.ExpiredAt = nil
	assert.True(t, addOn.IsCurrentlyActive())

	addOn.IsActive = false
	assert.False(t, addOn.IsCurrentlyActive())
}

func TestProposalIsUnbilled(t *testing.T) {
	proposal := TicketProposal{Status: ProposalStatusApproved}
	assert.True(t, proposal.IsUnbilled())

	invoiceID := uint(1)
	proposal.InvoiceID = &invoiceID
	assert.False(t, proposal.IsUnbilled())

	proposal = TicketProposal{Status: ProposalStatusPending}
	assert.False(t, proposal.IsUnbilled())
	assert.False(t, proposal.IsTerminal())

	proposal.Status = ProposalStatusRejected
	assert.True(t, proposal.IsTerminal())
}
