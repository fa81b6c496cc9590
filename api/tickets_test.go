package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend_taskly/middleware"
	"backend_taskly/models"
	"backend_taskly/services"
	"backend_taskly/testutils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type TicketsTestSuite struct {
	suite.Suite
	db     *gorm.DB
	auth   *services.AuthService
	router *gin.Engine
}

func (suite *TicketsTestSuite) SetupSuite() {
	var err error
	suite.db, err = testutils.SetupTestDB()
	suite.Require().NoError(err)

	suite.auth = services.NewAuthService(suite.db, "test-secret", time.Hour, "taskly-test")

	ticketsAPI := NewTicketsAPI(suite.db,
		services.NewTicketService(suite.db),
		services.NewProposalService(suite.db))

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	// Группы маршрутов собираются так же, как в main.go: компании работают
	// в /api за проверкой тенанта, администраторы платформы в /api/admin
	authMW := middleware.NewAuthMiddleware(suite.auth)
	tenantMW := middleware.NewTenantMiddleware(suite.db)

	protected := suite.router.Group("/api")
	protected.Use(authMW.RequireAuth(), tenantMW.SetTenant())

	admin := suite.router.Group("/api/admin")
	admin.Use(authMW.RequireAuth(), authMW.RequireAdmin())

	ticketsAPI.RegisterTicketsRoutes(protected, admin)
}

func (suite *TicketsTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM invoice_add_ons")
	suite.db.Exec("DELETE FROM ticket_proposals")
	suite.db.Exec("DELETE FROM tickets")
	suite.db.Exec("DELETE FROM users")
	suite.db.Exec("DELETE FROM modules")
	suite.db.Exec("DELETE FROM companies")
}

func (suite *TicketsTestSuite) TearDownSuite() {
	testutils.CleanupTestDB(suite.db)
}

// createOwnerToken создает владельца компании и выпускает для него JWT
func (suite *TicketsTestSuite) createOwnerToken(companyID uint, username string) string {
	var role models.Role
	suite.Require().NoError(suite.db.
		Where(models.Role{Name: models.RoleCompanyOwner}).
		Attrs(models.Role{DisplayName: "Владелец компании"}).
		FirstOrCreate(&role).Error)

	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		RoleID:    role.ID,
		CompanyID: companyID,
		IsActive:  true,
	}
	suite.Require().NoError(user.SetPassword("rahasia123"))
	suite.Require().NoError(suite.db.Create(user).Error)

	user.Role = &role
	token, err := suite.auth.IssueToken(user)
	suite.Require().NoError(err)
	return token
}

// seedPendingProposal создает feature-тикет компании с ожидающим предложением
func (suite *TicketsTestSuite) seedPendingProposal(companyID uint) *models.TicketProposal {
	module := testutils.CreateTestModule(suite.db, "Manajemen Gudang", models.ModuleTypeAddon, 150000)
	ticket := testutils.CreateTestTicket(suite.db, companyID, models.TicketTypeFeature)

	proposal := &models.TicketProposal{
		TicketID:       ticket.ID,
		ModuleID:       module.ID,
		EstimatedPrice: decimal.NewFromInt(150000),
		EstimatedDays:  10,
		Status:         models.ProposalStatusPending,
	}
	suite.Require().NoError(suite.db.Create(proposal).Error)
	return proposal
}

func (suite *TicketsTestSuite) doJSON(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

// TestOwnerApprovesOwnProposal проверяет, что владелец компании одобряет
// предложение по своему тикету и сразу получает выставленный счет
func (suite *TicketsTestSuite) TestOwnerApprovesOwnProposal() {
	company := testutils.CreateTestCompany(suite.db, "PT Karya Utama")
	token := suite.createOwnerToken(company.ID, "owner_karya")
	proposal := suite.seedPendingProposal(company.ID)

	w := suite.doJSON("PUT", fmt.Sprintf("/api/proposals/%d/approve", proposal.ID), token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var updated models.TicketProposal
	suite.Require().NoError(suite.db.First(&updated, proposal.ID).Error)
	assert.Equal(suite.T(), models.ProposalStatusBilled, updated.Status)
	suite.Require().NotNil(updated.InvoiceID)

	var invoice models.InvoiceAddOn
	suite.Require().NoError(suite.db.First(&invoice, *updated.InvoiceID).Error)
	assert.Equal(suite.T(), company.ID, invoice.CompanyID)
	assert.Equal(suite.T(), models.InvoiceStatusUnpaid, invoice.Status)
}

// TestOwnerRejectsOwnProposal проверяет отклонение предложения компанией
func (suite *TicketsTestSuite) TestOwnerRejectsOwnProposal() {
	company := testutils.CreateTestCompany(suite.db, "PT Tolak Saja")
	token := suite.createOwnerToken(company.ID, "owner_tolak")
	proposal := suite.seedPendingProposal(company.ID)

	w := suite.doJSON("PUT", fmt.Sprintf("/api/proposals/%d/reject", proposal.ID), token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var updated models.TicketProposal
	suite.Require().NoError(suite.db.First(&updated, proposal.ID).Error)
	assert.Equal(suite.T(), models.ProposalStatusRejected, updated.Status)

	var invoices int64
	suite.db.Model(&models.InvoiceAddOn{}).Count(&invoices)
	assert.Equal(suite.T(), int64(0), invoices)
}

// TestForeignOwnerCannotApprove проверяет, что владелец чужой компании не
// может принять решение по предложению
func (suite *TicketsTestSuite) TestForeignOwnerCannotApprove() {
	company := testutils.CreateTestCompany(suite.db, "PT Pemilik Asli")
	foreign := testutils.CreateTestCompany(suite.db, "PT Tetangga")
	proposal := suite.seedPendingProposal(company.ID)

	foreignToken := suite.createOwnerToken(foreign.ID, "owner_tetangga")

	w := suite.doJSON("PUT", fmt.Sprintf("/api/proposals/%d/approve", proposal.ID), foreignToken, nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	var updated models.TicketProposal
	suite.Require().NoError(suite.db.First(&updated, proposal.ID).Error)
	assert.Equal(suite.T(), models.ProposalStatusPending, updated.Status)

	var invoices int64
	suite.db.Model(&models.InvoiceAddOn{}).Count(&invoices)
	assert.Equal(suite.T(), int64(0), invoices)
}

// TestApproveAlreadyDecidedProposal проверяет конфликт при повторном решении
func (suite *TicketsTestSuite) TestApproveAlreadyDecidedProposal() {
	company := testutils.CreateTestCompany(suite.db, "PT Dua Kali")
	token := suite.createOwnerToken(company.ID, "owner_duakali")
	proposal := suite.seedPendingProposal(company.ID)

	w := suite.doJSON("PUT", fmt.Sprintf("/api/proposals/%d/approve", proposal.ID), token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	w = suite.doJSON("PUT", fmt.Sprintf("/api/proposals/%d/approve", proposal.ID), token, nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
}

// TestOwnerCannotSubmitProposal проверяет, что подача предложения остается
// операцией администратора платформы
func (suite *TicketsTestSuite) TestOwnerCannotSubmitProposal() {
	company := testutils.CreateTestCompany(suite.db, "PT Bukan Admin")
	token := suite.createOwnerToken(company.ID, "owner_bukanadmin")
	module := testutils.CreateTestModule(suite.db, "Laporan Lanjutan", models.ModuleTypeAddon, 90000)
	ticket := testutils.CreateTestTicket(suite.db, company.ID, models.TicketTypeFeature)

	w := suite.doJSON("POST", fmt.Sprintf("/api/admin/proposals/tickets/%d", ticket.ID), token, ProposalRequest{
		ModuleID:       module.ID,
		EstimatedPrice: decimal.NewFromInt(90000),
		EstimatedDays:  5,
	})
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	var proposals int64
	suite.db.Model(&models.TicketProposal{}).Count(&proposals)
	assert.Equal(suite.T(), int64(0), proposals)
}

// TestApproveProposalUnknownID проверяет ответ 404 по несуществующему предложению
func (suite *TicketsTestSuite) TestApproveProposalUnknownID() {
	company := testutils.CreateTestCompany(suite.db, "PT Tanpa Usulan")
	token := suite.createOwnerToken(company.ID, "owner_tanpausulan")

	w := suite.doJSON("PUT", "/api/proposals/99999/approve", token, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func TestTicketsTestSuite(t *testing.T) {
	suite.Run(t, new(TicketsTestSuite))
}
