package services

import (
	"fmt"
	"log"

	"backend_taskly/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricingService вычисляет отображаемые цены модулей. Цена standard-модуля —
// сумма цен его разрешений (системные разрешения бесплатны) и нигде не
// хранится: она всегда считается по текущему составу, что исключает
// устаревшие агрегаты.
type PricingService struct {
	db    *gorm.DB
	cache *CacheService
}

// NewPricingService создает новый экземпляр PricingService
func NewPricingService(db *gorm.DB, cache *CacheService) *PricingService {
	return &PricingService{db: db, cache: cache}
}

// ModulePrice возвращает отображаемую цену модуля. Для addon-модулей это
// собственная цена модуля, для standard-модулей — агрегат цен разрешений.
func (pcs *PricingService) ModulePrice(moduleID uint) (decimal.Decimal, error) {
	var module models.Module
	if err := pcs.db.First(&module, moduleID).Error; err != nil {
		return decimal.Zero, fmt.Errorf("модуль не найден: %w", err)
	}

	if module.IsAddon() {
		return module.Price, nil
	}

	// Пробуем кэш
	if pcs.cache != nil {
		if price, ok := pcs.cache.GetCachedModulePrice(moduleID); ok {
			return price, nil
		}
	}

	price, err := pcs.aggregatePermissionPrices(moduleID)
	if err != nil {
		return decimal.Zero, err
	}

	if pcs.cache != nil {
		if err := pcs.cache.CacheModulePrice(moduleID, price); err != nil {
			// Кэш не критичен, продолжаем
			log.Printf("⚠️  Ошибка кэширования цены модуля %d: %v", moduleID, err)
		}
	}

	return price, nil
}

// aggregatePermissionPrices суммирует цены разрешений модуля, пропуская
// системные разрешения
func (pcs *PricingService) aggregatePermissionPrices(moduleID uint) (decimal.Decimal, error) {
	var permissions []models.Permission
	if err := pcs.db.Where("module_id = ?", moduleID).Find(&permissions).Error; err != nil {
		return decimal.Zero, fmt.Errorf("ошибка получения разрешений модуля: %w", err)
	}

	total := decimal.Zero
	for _, perm := range permissions {
		total = total.Add(perm.BillablePrice())
	}

	return total, nil
}

// AssignPermissionToModule привязывает разрешение к модулю и сбрасывает кэш цены
func (pcs *PricingService) AssignPermissionToModule(permissionID, moduleID uint) error {
	var module models.Module
	if err := pcs.db.First(&module, moduleID).Error; err != nil {
		return fmt.Errorf("модуль не найден: %w", err)
	}

	var permission models.Permission
	if err := pcs.db.First(&permission, permissionID).Error; err != nil {
		return fmt.Errorf("разрешение не найдено: %w", err)
	}

	previousModuleID := permission.ModuleID

	if err := pcs.db.Model(&permission).Update("module_id", moduleID).Error; err != nil {
		return fmt.Errorf("ошибка привязки разрешения: %w", err)
	}

	// Сбрасываем кэш нового и прежнего модулей
	pcs.invalidate(moduleID)
	if previousModuleID != nil && *previousModuleID != moduleID {
		pcs.invalidate(*previousModuleID)
	}

	return nil
}

// RemovePermissionFromModule отвязывает разрешение от модуля и сбрасывает кэш цены
func (pcs *PricingService) RemovePermissionFromModule(permissionID uint) error {
	var permission models.Permission
	if err := pcs.db.First(&permission, permissionID).Error; err != nil {
		return fmt.Errorf("разрешение не найдено: %w", err)
	}

	if permission.ModuleID == nil {
		return fmt.Errorf("разрешение не привязано к модулю")
	}

	moduleID := *permission.ModuleID

	if err := pcs.db.Model(&permission).Update("module_id", nil).Error; err != nil {
		return fmt.Errorf("ошибка отвязки разрешения: %w", err)
	}

	pcs.invalidate(moduleID)
	return nil
}

// invalidate сбрасывает кэшированную цену модуля
func (pcs *PricingService) invalidate(moduleID uint) {
	if pcs.cache != nil {
		if err := pcs.cache.InvalidateModulePrice(moduleID); err != nil {
			log.Printf("⚠️  Ошибка сброса кэша цены модуля %d: %v", moduleID, err)
		}
	}
}

// GetHomelessPermissions возвращает разрешения, не привязанные ни к одному модулю
func (pcs *PricingService) GetHomelessPermissions() ([]models.Permission, error) {
	var permissions []models.Permission
	if err := pcs.db.Where("module_id IS NULL").Find(&permissions).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения непривязанных разрешений: %w", err)
	}
	return permissions, nil
}
