package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"backend_taskly/database"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// CacheService предоставляет методы для кэширования
type CacheService struct {
	redis  *redis.Client
	logger *log.Logger
}

// NewCacheService создает новый экземпляр CacheService
func NewCacheService(redisClient *redis.Client, logger *log.Logger) *CacheService {
	return &CacheService{
		redis:  redisClient,
		logger: logger,
	}
}

// Константы для TTL кэша
const (
	CacheTTLShort  = 5 * time.Minute  // Для часто изменяемых данных
	CacheTTLMedium = 15 * time.Minute // Для умеренно изменяемых данных
	CacheTTLLong   = 1 * time.Hour    // Для редко изменяемых данных
)

// Get получает значение из кэша
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	if cs.redis == nil {
		return "", fmt.Errorf("Redis не подключен")
	}

	val, err := cs.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("ключ не найден")
	}
	return val, err
}

// Set сохраняет значение в кэш
func (cs *CacheService) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if cs.redis == nil {
		if cs.logger != nil {
			cs.logger.Printf("Redis не подключен, пропускаем кэширование для ключа: %s", key)
		}
		return nil // Не возвращаем ошибку, просто пропускаем кэширование
	}

	return cs.redis.Set(ctx, key, value, ttl).Err()
}

// Del удаляет значение из кэша
func (cs *CacheService) Del(ctx context.Context, key string) error {
	if cs.redis == nil {
		return nil
	}

	return cs.redis.Del(ctx, key).Err()
}

// CacheModulePrice кэширует агрегированную цену модуля
func (cs *CacheService) CacheModulePrice(moduleID uint, price decimal.Decimal) error {
	if cs.redis == nil {
		return nil
	}
	key := database.GenerateModulePriceCacheKey(moduleID)
	return cs.redis.Set(database.Ctx, key, price.String(), CacheTTLMedium).Err()
}

// GetCachedModulePrice получает агрегированную цену модуля из кэша
func (cs *CacheService) GetCachedModulePrice(moduleID uint) (decimal.Decimal, bool) {
	if cs.redis == nil {
		return decimal.Zero, false
	}

	key := database.GenerateModulePriceCacheKey(moduleID)
	val, err := cs.redis.Get(database.Ctx, key).Result()
	if err != nil {
		return decimal.Zero, false
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// InvalidateModulePrice сбрасывает кэш цены модуля
func (cs *CacheService) InvalidateModulePrice(moduleID uint) error {
	if cs.redis == nil {
		return nil
	}
	key := database.GenerateModulePriceCacheKey(moduleID)
	return cs.redis.Del(database.Ctx, key).Err()
}

// InvalidatePlanCatalog сбрасывает кэш каталога тарифных планов
func (cs *CacheService) InvalidatePlanCatalog() error {
	if cs.redis == nil {
		return nil
	}
	return cs.redis.Del(database.Ctx, database.GeneratePlanCatalogCacheKey()).Err()
}
