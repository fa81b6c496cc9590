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

// stubGateway заменяет Midtrans в тестах API биллинга
type stubGateway struct{}

func (sg *stubGateway) CreateSnapTransaction(orderID string, amount decimal.Decimal, description string, customer services.PaymentCustomer) (string, string, error) {
	return "snap-" + orderID, "https://app.sandbox.midtrans.com/snap/v2/vtweb/" + orderID, nil
}

type BillingTestSuite struct {
	suite.Suite
	db     *gorm.DB
	auth   *services.AuthService
	router *gin.Engine
}

func (suite *BillingTestSuite) SetupSuite() {
	var err error
	suite.db, err = testutils.SetupTestDB()
	suite.Require().NoError(err)

	suite.auth = services.NewAuthService(suite.db, "test-secret", time.Hour, "taskly-test")

	invoices := services.NewInvoiceService(suite.db)
	payments := services.NewPaymentService(suite.db, &stubGateway{})
	billingAPI := NewBillingAPI(suite.db, invoices, payments)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	authMW := middleware.NewAuthMiddleware(suite.auth)
	tenantMW := middleware.NewTenantMiddleware(suite.db)

	protected := suite.router.Group("/api")
	protected.Use(authMW.RequireAuth(), tenantMW.SetTenant())

	admin := suite.router.Group("/api/admin")
	admin.Use(authMW.RequireAuth(), authMW.RequireAdmin())

	public := suite.router.Group("/api")

	billingAPI.RegisterBillingRoutes(protected, admin, public)
}

func (suite *BillingTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM subscriptions")
	suite.db.Exec("DELETE FROM invoices")
	suite.db.Exec("DELETE FROM invoice_add_ons")
	suite.db.Exec("DELETE FROM users")
	suite.db.Exec("DELETE FROM companies")
	suite.db.Exec("DELETE FROM plans")
}

func (suite *BillingTestSuite) TearDownSuite() {
	testutils.CleanupTestDB(suite.db)
}

func (suite *BillingTestSuite) createUserToken(companyID uint, username, roleName string) string {
	var role models.Role
	suite.Require().NoError(suite.db.
		Where(models.Role{Name: roleName}).
		Attrs(models.Role{DisplayName: roleName}).
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

func (suite *BillingTestSuite) doJSON(method, path, token string, body interface{}) *httptest.ResponseRecorder {
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

// TestGetUnpaidInvoicesScopedToCompany проверяет, что список неоплаченных
// счетов ограничен компанией пользователя
func (suite *BillingTestSuite) TestGetUnpaidInvoicesScopedToCompany() {
	company := testutils.CreateTestCompany(suite.db, "PT Maju Jaya")
	other := testutils.CreateTestCompany(suite.db, "PT Lain")
	plan := testutils.CreateTestPlan(suite.db, "Pro", 150000, false)

	own := testutils.CreateTestUnpaidInvoice(suite.db, company.ID, plan)
	testutils.CreateTestUnpaidInvoice(suite.db, other.ID, plan)

	token := suite.createUserToken(company.ID, "owner_maju", models.RoleCompanyOwner)

	w := suite.doJSON("GET", "/api/invoices/unpaid", token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response struct {
		Status string           `json:"status"`
		Data   []models.Invoice `json:"data"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Require().Len(response.Data, 1)
	assert.Equal(suite.T(), own.ID, response.Data[0].ID)
}

// TestGetInvoiceByNumber проверяет поиск счета по номеру администратором
func (suite *BillingTestSuite) TestGetInvoiceByNumber() {
	company := testutils.CreateTestCompany(suite.db, "PT Maju Jaya")
	plan := testutils.CreateTestPlan(suite.db, "Pro", 150000, false)
	invoice := testutils.CreateTestUnpaidInvoice(suite.db, company.ID, plan)

	adminToken := suite.createUserToken(0, "admin_platform", models.RoleAdmin)

	w := suite.doJSON("GET", "/api/admin/invoices/by-number/"+invoice.Number, adminToken, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response struct {
		Data models.Invoice `json:"data"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), invoice.ID, response.Data.ID)

	w = suite.doJSON("GET", "/api/admin/invoices/by-number/INV-00000000-XXXX", adminToken, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	// Поиск по номеру недоступен компаниям
	ownerToken := suite.createUserToken(company.ID, "owner_maju2", models.RoleCompanyOwner)
	w = suite.doJSON("GET", "/api/admin/invoices/by-number/"+invoice.Number, ownerToken, nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

// TestDownloadInvoicePDF проверяет выгрузку PDF владельцем компании
func (suite *BillingTestSuite) TestDownloadInvoicePDF() {
	company := testutils.CreateTestCompany(suite.db, "PT Maju Jaya")
	foreign := testutils.CreateTestCompany(suite.db, "PT Lain")
	plan := testutils.CreateTestPlan(suite.db, "Pro", 150000, false)
	invoice := testutils.CreateTestUnpaidInvoice(suite.db, company.ID, plan)

	token := suite.createUserToken(company.ID, "owner_pdf", models.RoleCompanyOwner)

	w := suite.doJSON("GET", fmt.Sprintf("/api/invoices/%d/pdf", invoice.ID), token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "application/pdf", w.Header().Get("Content-Type"))
	assert.NotZero(suite.T(), w.Body.Len())

	// Чужая компания не получает счет
	foreignToken := suite.createUserToken(foreign.ID, "owner_lain", models.RoleCompanyOwner)
	w = suite.doJSON("GET", fmt.Sprintf("/api/invoices/%d/pdf", invoice.ID), foreignToken, nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func TestBillingTestSuite(t *testing.T) {
	suite.Run(t, new(BillingTestSuite))
}
