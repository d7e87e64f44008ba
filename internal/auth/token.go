package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Области действия токена.
const (
	ScopeUser      = "user"
	ScopeShopAdmin = "shop_admin"
)

const adminSubjectPrefix = "admin:"

// TokenClaims - утверждения токена доступа.
// Токены пользователей выпускает внешний провайдер, токены администраторов - этот сервис.
type TokenClaims struct {
	UserEmail string `json:"email,omitempty"`
	Scope     string `json:"scope"`
	ShopID    int64  `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

// Manager подписывает и проверяет токены HS256.
type Manager struct {
	secret   []byte
	adminTTL time.Duration
	now      func() time.Time
}

// NewManager создает менеджер токенов с общим секретом.
func NewManager(secret string, adminTTL time.Duration) *Manager {
	if adminTTL <= 0 {
		adminTTL = 12 * time.Hour
	}
	return &Manager{
		secret:   []byte(secret),
		adminTTL: adminTTL,
		now:      time.Now,
	}
}

// IssueAdminToken выпускает токен администратора барбершопа shopID.
func (m *Manager) IssueAdminToken(username string, shopID int64) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.adminTTL)
	claims := &TokenClaims{
		Scope:  ScopeShopAdmin,
		ShopID: shopID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubjectPrefix + username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return m.sign(claims, expiresAt)
}

// IssueUserToken выпускает токен пользователя (команда `token` для локальной разработки).
func (m *Manager) IssueUserToken(userID, email string, ttl time.Duration) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(ttl)
	claims := &TokenClaims{
		UserEmail: email,
		Scope:     ScopeUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return m.sign(claims, expiresAt)
}

func (m *Manager) sign(claims *TokenClaims, expiresAt time.Time) (string, time.Time, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate проверяет подпись и срок действия токена.
func (m *Manager) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("malformed token")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("invalid token signature")
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, errors.New("token expired")
		default:
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}
