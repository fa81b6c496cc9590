package services

import (
	"errors"
	"fmt"
	"time"

	"backend_taskly/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// Ошибки аутентификации и авторизации
var (
	ErrInvalidCredentials = errors.New("неверный логин или пароль")
	ErrUserInactive       = errors.New("пользователь деактивирован")
	ErrForbidden          = errors.New("недостаточно прав для выполнения операции")
)

// AuthContext содержит данные аутентифицированного пользователя.
// Проверки прав выполняются по этим данным, а не по явным параметрам запроса.
type AuthContext struct {
	UserID    uint   `json:"user_id"`
	RoleID    uint   `json:"role_id"`
	RoleName  string `json:"role_name"`
	CompanyID uint   `json:"company_id"`
}

// IsAdmin проверяет, является ли пользователь администратором платформы
func (ac *AuthContext) IsAdmin() bool {
	return ac.RoleName == models.RoleAdmin
}

// CanAccessCompany проверяет доступ пользователя к данным компании
func (ac *AuthContext) CanAccessCompany(companyID uint) bool {
	return ac.IsAdmin() || ac.CompanyID == companyID
}

// TokenClaims представляет JWT-claims токена доступа
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	RoleID    uint   `json:"role_id"`
	RoleName  string `json:"role_name"`
	CompanyID uint   `json:"company_id"`
	jwt.RegisteredClaims
}

// AuthService предоставляет аутентификацию и проверку прав
type AuthService struct {
	db        *gorm.DB
	jwtSecret []byte
	expiresIn time.Duration
	issuer    string
}

// NewAuthService создает новый экземпляр AuthService
func NewAuthService(db *gorm.DB, jwtSecret string, expiresIn time.Duration, issuer string) *AuthService {
	return &AuthService{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		expiresIn: expiresIn,
		issuer:    issuer,
	}
}

// Login проверяет учетные данные и выпускает JWT-токен
func (as *AuthService) Login(username, password string) (string, *models.User, error) {
	var user models.User
	if err := as.db.Preload("Role").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, ErrUserInactive
	}

	token, err := as.IssueToken(&user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// IssueToken выпускает JWT-токен для пользователя
func (as *AuthService) IssueToken(user *models.User) (string, error) {
	roleName := ""
	if user.Role != nil {
		roleName = user.Role.Name
	}

	now := time.Now()
	claims := TokenClaims{
		UserID:    user.ID,
		RoleID:    user.RoleID,
		RoleName:  roleName,
		CompanyID: user.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    as.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(as.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// ValidateToken проверяет JWT-токен и возвращает контекст авторизации
func (as *AuthService) ValidateToken(tokenString string) (*AuthContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неподдерживаемый метод подписи: %v", t.Header["alg"])
		}
		return as.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("невалидный токен: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("невалидный токен")
	}

	return &AuthContext{
		UserID:    claims.UserID,
		RoleID:    claims.RoleID,
		RoleName:  claims.RoleName,
		CompanyID: claims.CompanyID,
	}, nil
}

// HasPermission проверяет наличие разрешения у роли пользователя
func (as *AuthService) HasPermission(auth *AuthContext, permissionName string) (bool, error) {
	var role models.Role
	if err := as.db.Preload("Permissions").First(&role, auth.RoleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка получения роли: %w", err)
	}
	return role.HasPermission(permissionName), nil
}

// RequirePermission возвращает ErrForbidden, если разрешения нет
func (as *AuthService) RequirePermission(auth *AuthContext, permissionName string) error {
	ok, err := as.HasPermission(auth, permissionName)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
