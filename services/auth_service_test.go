package services

import (
	"testing"
	"time"

	"backend_taskly/models"
	"backend_taskly/testutils"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupAuthTest(t *testing.T) (*gorm.DB, *AuthService) {
	db, err := testutils.SetupTestDB()
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	return db, NewAuthService(db, "test-secret", time.Hour, "taskly-test")
}

func createTestUser(t *testing.T, db *gorm.DB, username, password, roleName string, companyID uint) *models.User {
	role := &models.Role{Name: roleName, DisplayName: roleName}
	if err := db.Where("name = ?", roleName).FirstOrCreate(role).Error; err != nil {
		t.Fatalf("Failed to create test role: %v", err)
	}

	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		RoleID:    role.ID,
		CompanyID: companyID,
		IsActive:  true,
	}
	if err := user.SetPassword(password); err != nil {
		t.Fatalf("Failed to set password: %v", err)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func TestLoginIssuesValidToken(t *testing.T) {
	db, service := setupAuthTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	createTestUser(t, db, "budi", "rahasia123", models.RoleCompanyOwner, company.ID)

	token, user, err := service.Login("budi", "rahasia123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "budi", user.Username)

	auth, err := service.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, auth.UserID)
	assert.Equal(t, company.ID, auth.CompanyID)
	assert.Equal(t, models.RoleCompanyOwner, auth.RoleName)
	assert.False(t, auth.IsAdmin())
}

func TestLoginInvalidCredentials(t *testing.T) {
	db, service := setupAuthTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	createTestUser(t, db, "budi", "rahasia123", models.RoleCompanyOwner, company.ID)

	_, _, err := service.Login("budi", "salah")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = service.Login("tidak-ada", "rahasia123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	db, service := setupAuthTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	user := createTestUser(t, db, "budi", "rahasia123", models.RoleCompanyOwner, company.ID)
	assert.NoError(t, db.Model(user).Update("is_active", false).Error)

	_, _, err := service.Login("budi", "rahasia123")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	db, service := setupAuthTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	createTestUser(t, db, "budi", "rahasia123", models.RoleCompanyOwner, company.ID)

	token, _, err := service.Login("budi", "rahasia123")
	assert.NoError(t, err)

	_, err = service.ValidateToken(token + "x")
	assert.Error(t, err)

	// Токен, подписанный другим секретом
	other := NewAuthService(db, "other-secret", time.Hour, "taskly-test")
	otherToken, _, err := other.Login("budi", "rahasia123")
	assert.NoError(t, err)

	_, err = service.ValidateToken(otherToken)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	db, _ := setupAuthTest(t)
	defer testutils.CleanupTestDB(db)

	company := testutils.CreateTestCompany(db, "PT Maju Jaya")
	user := createTestUser(t, db, "budi", "rahasia123", models.RoleCompanyOwner, company.ID)

	expired := NewAuthService(db, "test-secret", -time.Minute, "taskly-test")
	token, err := expired.IssueToken(user)
	assert.NoError(t, err)

	checker := NewAuthService(db, "test-secret", time.Hour, "taskly-test")
	_, err = checker.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthContextCompanyAccess(t *testing.T) {
	admin := &AuthContext{UserID: 1, RoleName: models.RoleAdmin, CompanyID: 0}
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CanAccessCompany(42))

	owner := &AuthContext{UserID: 2, RoleName: models.RoleCompanyOwner, CompanyID: 7}
	assert.False(t, owner.IsAdmin())
	assert.True(t, owner.CanAccessCompany(7))
	assert.False(t, owner.CanAccessCompany(8))
}

func TestHasPermission(t *testing.T) {
	db, service := setupAuthTest(t)
	defer testutils.CleanupTestDB(db)

	permission := &models.Permission{Name: "tickets.manage", Scope: models.ScopeCompany, IsActive: true}
	assert.NoError(t, db.Create(permission).Error)

	role := &models.Role{Name: "support", DisplayName: "Support"}
	assert.NoError(t, db.Create(role).Error)
	assert.NoError(t, db.Model(role).Association("Permissions").Append(permission))

	auth := &AuthContext{UserID: 1, RoleID: role.ID, RoleName: role.Name}

	ok, err := service.HasPermission(auth, "tickets.manage")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = service.HasPermission(auth, "billing.manage")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, service.RequirePermission(auth, "tickets.manage"))
	assert.ErrorIs(t, service.RequirePermission(auth, "billing.manage"), ErrForbidden)
}
