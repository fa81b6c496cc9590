package api

import (
	"errors"
	"net/http"

	"backend_taskly/middleware"
	"backend_taskly/models"
	"backend_taskly/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthAPI управляет API аутентификации
type AuthAPI struct {
	DB   *gorm.DB
	Auth *services.AuthService
}

// NewAuthAPI создает новый экземпляр AuthAPI
func NewAuthAPI(db *gorm.DB, auth *services.AuthService) *AuthAPI {
	return &AuthAPI{DB: db, Auth: auth}
}

// LoginRequest структура запроса аутентификации
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterAuthRoutes регистрирует маршруты аутентификации
func (api *AuthAPI) RegisterAuthRoutes(r *gin.RouterGroup, authMW *middleware.AuthMiddleware) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", middleware.AuthRateLimit(), api.Login)
		auth.GET("/me", authMW.RequireAuth(), api.Me)
	}
}

// Login аутентифицирует пользователя и возвращает JWT-токен
func (api *AuthAPI) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	token, user, err := api.Auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrUserInactive) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка аутентификации: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"token": token,
			"user":  user,
		},
	})
}

// Me возвращает данные текущего пользователя
func (api *AuthAPI) Me(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	var user models.User
	if err := api.DB.Preload("Role.Permissions").First(&user, authCtx.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Пользователь не найден",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   user,
	})
}
