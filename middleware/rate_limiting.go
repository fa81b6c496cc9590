package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"backend_taskly/database"

	"github.com/gin-gonic/gin"
	redis "github.com/go-redis/redis/v8"
)

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Requests     int                       // Количество запросов
	Window       time.Duration             // Временное окно
	KeyGenerator func(*gin.Context) string // Генератор ключей
}

// DefaultKeyGenerator генерирует ключ на основе IP адреса
func DefaultKeyGenerator(c *gin.Context) string {
	return c.ClientIP()
}

// UserKeyGenerator генерирует ключ на основе пользователя
func UserKeyGenerator(c *gin.Context) string {
	if auth := GetAuthContext(c); auth != nil {
		return fmt.Sprintf("user:%d", auth.UserID)
	}
	return c.ClientIP()
}

// RateLimit создает middleware для ограничения частоты запросов
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		redisClient := database.GetRedis()
		if redisClient == nil {
			// Если Redis недоступен, пропускаем rate limiting
			c.Next()
			return
		}

		key := "rate_limit:" + config.KeyGenerator(c)

		current, err := redisClient.Get(database.Ctx, key).Int()
		if err != nil && err != redis.Nil {
			// В случае ошибки Redis пропускаем запрос
			c.Next()
			return
		}

		if current >= config.Requests {
			c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"status": "error",
				"error":  fmt.Sprintf("Too many requests. Limit: %d requests per %v", config.Requests, config.Window),
			})
			c.Abort()
			return
		}

		// Увеличиваем счетчик
		pipe := redisClient.Pipeline()
		pipe.Incr(database.Ctx, key)
		if current == 0 {
			// Устанавливаем TTL только для первого запроса
			pipe.Expire(database.Ctx, key, config.Window)
		}
		if _, err := pipe.Exec(database.Ctx); err != nil {
			c.Next()
			return
		}

		remaining := config.Requests - current - 1
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

		c.Next()
	}
}

// AuthRateLimit ограничение для endpoint аутентификации
func AuthRateLimit() gin.HandlerFunc {
	return RateLimit(RateLimitConfig{
		Requests:     10,
		Window:       time.Minute,
		KeyGenerator: DefaultKeyGenerator,
	})
}

// PaymentRateLimit ограничение для платежных endpoints
func PaymentRateLimit() gin.HandlerFunc {
	return RateLimit(RateLimitConfig{
		Requests:     30,
		Window:       time.Minute,
		KeyGenerator: UserKeyGenerator,
	})
}

// APIRateLimit стандартное ограничение для API endpoints
func APIRateLimit() gin.HandlerFunc {
	return RateLimit(RateLimitConfig{
		Requests:     300,
		Window:       time.Minute,
		KeyGenerator: UserKeyGenerator,
	})
}
