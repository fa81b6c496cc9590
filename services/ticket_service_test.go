package services

import (
	"strings"
	"testing"

	"backend_taskly/models"
	"backend_taskly/testutils"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupTicketTest(t *testing.T) (*gorm.DB, *TicketService) {
	db, err := testutils.SetupTestDB()
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	return db, NewTicketService(db)
}

func TestCreateTicket(t *testing.T) {
	db, service := setupTicketTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")

	ticket, err := service.CreateTicket(company.ID, "Tidak bisa ekspor laporan", "Detail masalah", models.TicketTypeBug, "", 1)
	assert.NoError(t, err)
	assert.Equal(t, models.TicketStatusOpen, ticket.Status)
	assert.Equal(t, models.TicketPriorityMedium, ticket.Priority)
	assert.True(t, strings.HasPrefix(ticket.Code, "TCK-"))

	// Коды тикетов уникальны в пределах дня
	second, err := service.CreateTicket(company.ID, "Butuh modul gudang", "Detail", models.TicketTypeFeature, models.TicketPriorityHigh, 1)
	assert.NoError(t, err)
	assert.NotEqual(t, ticket.Code, second.Code)
}

func TestCreateTicketValidation(t *testing.T) {
	db, service := setupTicketTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")

	_, err := service.CreateTicket(company.ID, "", "Detail", models.TicketTypeBug, "", 1)
	assert.Error(t, err)

	_, err = service.CreateTicket(company.ID, "Tema", "Detail", "question", "", 1)
	assert.Error(t, err)
}

func TestChangeStatusWritesHistory(t *testing.T) {
	db, service := setupTicketTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeBug)

	updated, err := service.ChangeStatus(ticket.ID, models.TicketStatusInProgress, 2, "Взят в работу")
	assert.NoError(t, err)
	assert.Equal(t, models.TicketStatusInProgress, updated.Status)

	updated, err = service.ChangeStatus(ticket.ID, models.TicketStatusResolved, 2, "")
	assert.NoError(t, err)
	assert.Equal(t, models.TicketStatusResolved, updated.Status)

	var saved models.Ticket
	assert.NoError(t, db.First(&saved, ticket.ID).Error)
	assert.NotNil(t, saved.ResolvedAt)

	history, err := service.GetStatusHistory(ticket.ID)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, models.TicketStatusOpen, history[0].FromStatus)
	assert.Equal(t, models.TicketStatusInProgress, history[0].ToStatus)
	assert.Equal(t, models.TicketStatusInProgress, history[1].FromStatus)
	assert.Equal(t, models.TicketStatusResolved, history[1].ToStatus)
	assert.Equal(t, "Взят в работу", history[0].Note)
}

func TestChangeStatusSameStatusRejected(t *testing.T) {
	db, service := setupTicketTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeBug)

	_, err := service.ChangeStatus(ticket.ID, models.TicketStatusOpen, 2, "")
	assert.Error(t, err)

	history, err := service.GetStatusHistory(ticket.ID)
	assert.NoError(t, err)
	assert.Empty(t, history)
}

func TestAddComment(t *testing.T) {
	db, service := setupTicketTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	ticket := testutils.CreateTestTicket(db, company.ID, models.TicketTypeFeature)

	comment, err := service.AddComment(ticket.ID, 1, "Mohon segera diproses")
	assert.NoError(t, err)
	assert.Equal(t, ticket.ID, comment.TicketID)

	_, err = service.AddComment(ticket.ID, 1, "")
	assert.Error(t, err)

	_, err = service.AddComment(99999, 1, "Комментарий к несуществующему тикету")
	assert.Error(t, err)
}
