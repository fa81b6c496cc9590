package services

import (
	"testing"

	"backend_taskly/models"
	"backend_taskly/testutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupPricingTest(t *testing.T) (*gorm.DB, *PricingService) {
	db, err := testutils.SetupTestDB()
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	// Кэш в тестах не используется, цены считаются напрямую
	return db, NewPricingService(db, nil)
}

func createTestPermission(t *testing.T, db *gorm.DB, name, scope string, price int64, moduleID *uint) *models.Permission {
	permission := &models.Permission{
		Name:     name,
		Scope:    scope,
		Price:    decimal.NewFromInt(price),
		ModuleID: moduleID,
		IsActive: true,
	}
	if err := db.Create(permission).Error; err != nil {
		t.Fatalf("Failed to create test permission: %v", err)
	}
	return permission
}

func TestModulePriceAggregatesPermissions(t *testing.T) {
	db, service := setupPricingTest(t)
	defer testutils.CleanupTestDB(db)

	module := testutils.CreateTestModule(db, "Tasks", models.ModuleTypeStandard, 0)
	createTestPermission(t, db, "tasks.create", models.ScopeCompany, 25000, &module.ID)
	createTestPermission(t, db, "tasks.read", models.ScopeCompany, 10000, &module.ID)

	price, err := service.ModulePrice(module.ID)
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(35000)),
		"expected 35000, got %s", price.String())
}

func TestModulePriceSystemPermissionsFree(t *testing.T) {
	db, service := setupPricingTest(t)
	defer testutils.CleanupTestDB(db)

	module := testutils.CreateTestModule(db, "Admin", models.ModuleTypeStandard, 0)
	createTestPermission(t, db, "admin.manage", models.ScopeCompany, 50000, &module.ID)

	// Цена системного разрешения обнуляется при сохранении и не попадает в агрегат
	system := createTestPermission(t, db, "admin.system", models.ScopeSystem, 99999, &module.ID)

	var saved models.Permission
	assert.NoError(t, db.First(&saved, system.ID).Error)
	assert.True(t, saved.Price.IsZero())

	price, err := service.ModulePrice(module.ID)
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(50000)))
}

func TestModulePriceEmptyModule(t *testing.T) {
	db, service := setupPricingTest(t)
	defer testutils.CleanupTestDB(db)

	module := testutils.CreateTestModule(db, "Empty", models.ModuleTypeStandard, 0)

	price, err := service.ModulePrice(module.ID)
	assert.NoError(t, err)
	assert.True(t, price.IsZero())

	_, err = service.ModulePrice(99999)
	assert.Error(t, err)
}

func TestModulePriceAddonUsesOwnPrice(t *testing.T) {
	db, service := setupPricingTest(t)
	defer testutils.CleanupTestDB(db)

	module := testutils.CreateTestModule(db, "Gudang", models.ModuleTypeAddon, 750000)

	// Разрешения addon-модуля не влияют на его цену
	createTestPermission(t, db, "gudang.manage", models.ScopeCompany, 123456, &module.ID)

	price, err := service.ModulePrice(module.ID)
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(750000)))
}

func TestAssignPermissionToModule(t *testing.T) {
	db, service := setupPricingTest(t)
	defer testutils.CleanupTestDB(db)

	module := testutils.CreateTestModule(db, "Tasks", models.ModuleTypeStandard, 0)
	permission := createTestPermission(t, db, "tasks.export", models.ScopeCompany, 15000, nil)

	assert.NoError(t, service.AssignPermissionToModule(permission.ID, module.ID))

	price, err := service.ModulePrice(module.ID)
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(15000)))

	assert.Error(t, service.AssignPermissionToModule(permission.ID, 99999))
	assert.Error(t, service.AssignPermissionToModule(99999, module.ID))
}

func TestRemovePermissionReducesPrice(t *testing.T) {
	db, service := setupPricingTest(t)
	defer testutils.CleanupTestDB(db)

	module := testutils.CreateTestModule(db, "Tasks", models.ModuleTypeStandard, 0)
	createTestPermission(t, db, "tasks.read", models.ScopeCompany, 10000, &module.ID)
	remove := createTestPermission(t, db, "tasks.create", models.ScopeCompany, 25000, &module.ID)

	assert.NoError(t, service.RemovePermissionFromModule(remove.ID))

	price, err := service.ModulePrice(module.ID)
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(10000)))

	// Повторная отвязка уже непривязанного разрешения
	assert.Error(t, service.RemovePermissionFromModule(remove.ID))
}

func TestGetHomelessPermissions(t *testing.T) {
	db, service := setupPricingTest(t)
	defer testutils.CleanupTestDB(db)

	module := testutils.CreateTestModule(db, "Tasks", models.ModuleTypeStandard, 0)
	createTestPermission(t, db, "tasks.read", models.ScopeCompany, 10000, &module.ID)
	homeless := createTestPermission(t, db, "reports.read", models.ScopeCompany, 5000, nil)

	permissions, err := service.GetHomelessPermissions()
	assert.NoError(t, err)
	assert.Len(t, permissions, 1)
	assert.Equal(t, homeless.ID, permissions[0].ID)
}
