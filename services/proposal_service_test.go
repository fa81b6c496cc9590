package services

import (
	"testing"

	"backend_taskly/models"
	"backend_taskly/testutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupProposalTest(t *testing.T) (*gorm.DB, *ProposalService) {
	db, err := testutils.SetupTestDB()
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	return db, NewProposalService(db)
}

func TestSubmitProposal(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)
	module := testutils.CreateTestModule(db, "Custom Reports", models.ModuleTypeAddon, 500000)

	proposal, err := service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 14, 1)
	assert.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPending, proposal.Status)
	assert.True(t, proposal.EstimatedPrice.Equal(decimal.NewFromInt(750000)))
	assert.Nil(t, proposal.InvoiceID)
}

func TestSubmitProposalBugTicketRejected(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeBug)
	module := testutils.CreateTestModule(db, "Custom Reports", models.ModuleTypeAddon, 500000)

	_, err := service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 14, 1)
	assert.Error(t, err)
}

func TestSubmitProposalStandardModuleRejected(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)
	module := testutils.CreateTestModule(db, "Tasks", models.ModuleTypeStandard, 0)

	_, err := service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 14, 1)
	assert.Error(t, err)
}

func TestSubmitProposalNonPositiveEstimates(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)
	module := testutils.CreateTestModule(db, "Custom Reports", models.ModuleTypeAddon, 500000)

	_, err := service.SubmitProposal(ticket.ID, module.ID, decimal.Zero, 14, 1)
	assert.Error(t, err)

	_, err = service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 0, 1)
	assert.Error(t, err)
}

func TestSubmitProposalOnePerTicket(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)
	module := testutils.CreateTestModule(db, "Custom Reports", models.ModuleTypeAddon, 500000)

	_, err := service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 14, 1)
	assert.NoError(t, err)

	_, err = service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(800000), 10, 1)
	assert.ErrorIs(t, err, ErrProposalExists)
}

func TestApproveProposalBillsImmediately(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)
	module := testutils.CreateTestModule(db, "Custom Reports", models.ModuleTypeAddon, 500000)

	proposal, err := service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 14, 1)
	assert.NoError(t, err)

	approved, err := service.ApproveProposal(proposal.ID, 2)
	assert.NoError(t, err)

	// Счет выставлен сразу при одобрении
	assert.Equal(t, models.ProposalStatusBilled, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
	assert.NotNil(t, approved.InvoiceID)

	var invoice models.InvoiceAddOn
	assert.NoError(t, db.First(&invoice, *approved.InvoiceID).Error)
	assert.Equal(t, company.ID, invoice.CompanyID)
	assert.Equal(t, proposal.ID, invoice.TicketProposalID)
	assert.True(t, invoice.Amount.Equal(decimal.NewFromInt(750000)))
	assert.Equal(t, models.InvoiceStatusUnpaid, invoice.Status)
	assert.Contains(t, invoice.Description, ticket.Code)
}

func TestApproveProposalOneWay(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)
	module := testutils.CreateTestModule(db, "Custom Reports", models.ModuleTypeAddon, 500000)

	proposal, err := service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 14, 1)
	assert.NoError(t, err)

	_, err = service.ApproveProposal(proposal.ID, 2)
	assert.NoError(t, err)

	// Повторное одобрение и отклонение одобренного невозможны
	_, err = service.ApproveProposal(proposal.ID, 2)
	assert.ErrorIs(t, err, ErrProposalNotPending)

	_, err = service.RejectProposal(proposal.ID, 2)
	assert.ErrorIs(t, err, ErrProposalNotPending)
}

func TestRejectProposalTerminal(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)
	module := testutils.CreateTestModule(db, "Custom Reports", models.ModuleTypeAddon, 500000)

	proposal, err := service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 14, 1)
	assert.NoError(t, err)

	rejected, err := service.RejectProposal(proposal.ID, 2)
	assert.NoError(t, err)
	assert.Equal(t, models.ProposalStatusRejected, rejected.Status)

	// Отклоненное предложение нельзя одобрить, счет не выставляется
	_, err = service.ApproveProposal(proposal.ID, 2)
	assert.ErrorIs(t, err, ErrProposalNotPending)

	var count int64
	assert.NoError(t, db.Model(&models.InvoiceAddOn{}).
		Where("ticket_proposal_id = ?", proposal.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestBillProposalIdempotent(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)
	module := testutils.CreateTestModule(db, "Custom Reports", models.ModuleTypeAddon, 500000)

	proposal, err := service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 14, 1)
	assert.NoError(t, err)

	_, err = service.ApproveProposal(proposal.ID, 2)
	assert.NoError(t, err)

	first, err := service.BillProposal(proposal.ID)
	assert.NoError(t, err)

	// Повторное выставление возвращает тот же счет
	second, err := service.BillProposal(proposal.ID)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	assert.NoError(t, db.Model(&models.InvoiceAddOn{}).
		Where("ticket_proposal_id = ?", proposal.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestBillUnbilledProposalsSweep(t *testing.T) {
	db, service := setupProposalTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)
	module := testutils.CreateTestModule(db, "Custom Reports", models.ModuleTypeAddon, 500000)

	proposal, err := service.SubmitProposal(ticket.ID, module.ID, decimal.NewFromInt(750000), 14, 1)
	assert.NoError(t, err)

	// Имитируем одобрение без выставленного счета (сбой при одобрении)
	assert.NoError(t, db.Model(&models.TicketProposal{}).
		Where("id = ?", proposal.ID).
		Update("status", models.ProposalStatusApproved).Error)

	unbilled, err := service.GetUnbilledProposals()
	assert.NoError(t, err)
	assert.Len(t, unbilled, 1)

	billed, err := service.BillUnbilledProposals()
	assert.NoError(t, err)
	assert.Equal(t, 1, billed)

	// После прохода все предложения имеют счета
	unbilled, err = service.GetUnbilledProposals()
	assert.NoError(t, err)
	assert.Len(t, unbilled, 0)

	var saved models.TicketProposal
	assert.NoError(t, db.First(&saved, proposal.ID).Error)
	assert.Equal(t, models.ProposalStatusBilled, saved.Status)
	assert.NotNil(t, saved.InvoiceID)
}
