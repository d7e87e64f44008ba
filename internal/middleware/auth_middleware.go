package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Dhoini/clipgo-booking/internal/auth"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
	"github.com/Dhoini/clipgo-booking/pkg/res"

	"github.com/gin-gonic/gin"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserIDKey ключ для хранения ID пользователя в контексте.
	ContextUserIDKey    ContextKey = "userID"
	ContextUserEmailKey ContextKey = "userEmail"
	// ContextShopIDKey - барбершоп администратора из токена.
	ContextShopIDKey ContextKey = "shopID"

	authHeaderPrefix = "Bearer "
)

// TokenValidator проверяет подпись и срок действия токена.
type TokenValidator interface {
	Validate(tokenString string) (*auth.TokenClaims, error)
}

type JWTMiddleware struct {
	log       *logger.Logger
	validator TokenValidator
}

func NewJWTMiddleware(log *logger.Logger, validator TokenValidator) *JWTMiddleware {
	return &JWTMiddleware{
		log:       log,
		validator: validator,
	}
}

// RequireAuth пропускает запрос только с валидным токеном одной из областей requiredScopes.
// Для области shop_admin в контекст кладется shopID из токена.
func (m *JWTMiddleware) RequireAuth(requiredScopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, authHeaderPrefix) {
			m.handleAuthError(c, http.StatusUnauthorized, "Missing authorization token")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, authHeaderPrefix))
		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.handleAuthError(c, http.StatusUnauthorized, "Token validation failed: "+err.Error())
			return
		}

		if !hasRequiredScope(claims.Scope, requiredScopes) {
			m.handleAuthError(c, http.StatusForbidden, "Insufficient token permissions")
			return
		}

		if claims.Subject == "" {
			m.handleAuthError(c, http.StatusUnauthorized, "User ID (sub) missing in token")
			return
		}
		if claims.Scope == auth.ScopeShopAdmin && claims.ShopID <= 0 {
			m.handleAuthError(c, http.StatusForbidden, "Admin token is not bound to a shop")
			return
		}

		c.Set(string(ContextUserIDKey), claims.Subject)
		c.Set(string(ContextUserEmailKey), claims.UserEmail)
		if claims.Scope == auth.ScopeShopAdmin {
			c.Set(string(ContextShopIDKey), claims.ShopID)
		}
		m.log.Debugw("Request authenticated", "subject", claims.Subject, "scope", claims.Scope)
		c.Next()
	}
}

func hasRequiredScope(tokenScope string, requiredScopes []string) bool {
	if len(requiredScopes) == 0 {
		return true
	}
	for _, scope := range requiredScopes {
		if tokenScope == scope {
			return true
		}
	}
	return false
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, status int, message string) {
	m.log.Warnw("HTTP authentication failed", "path", c.Request.URL.Path, "error", message)
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     message,
		ErrorCode: status,
	}, status)
	c.Abort()
}

// RequireCronSecret защищает служебные эндпоинты планировщика заголовком "Bearer <secret>".
// Пустой секрет закрывает эндпоинт полностью.
func RequireCronSecret(secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := strings.TrimPrefix(c.GetHeader("Authorization"), authHeaderPrefix)
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			log.Warnw("Rejected cron request", "path", c.Request.URL.Path, "clientIP", c.ClientIP())
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Unauthorized", ErrorCode: http.StatusUnauthorized}, http.StatusUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID возвращает ID пользователя, установленный RequireAuth.
func UserID(c *gin.Context) (string, bool) {
	return stringFromContext(c, ContextUserIDKey)
}

// UserEmail возвращает email из токена (может быть пустым).
func UserEmail(c *gin.Context) string {
	email, _ := stringFromContext(c, ContextUserEmailKey)
	return email
}

// ShopID возвращает барбершоп администратора.
func ShopID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(string(ContextShopIDKey))
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func stringFromContext(c *gin.Context, key ContextKey) (string, bool) {
	v, ok := c.Get(string(key))
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
