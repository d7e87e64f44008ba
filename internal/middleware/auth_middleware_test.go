package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/auth"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(manager *auth.Manager, scope string) *gin.Engine {
	mw := NewJWTMiddleware(logger.NewNop(), manager)
	r := gin.New()
	r.GET("/protected", mw.RequireAuth(scope), func(c *gin.Context) {
		userID, _ := UserID(c)
		shopID, _ := ShopID(c)
		c.JSON(http.StatusOK, gin.H{"user": userID, "email": UserEmail(c), "shop": shopID})
	})
	return r
}

func doGet(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_UserScope(t *testing.T) {
	manager := auth.NewManager("secret", time.Hour)
	r := newAuthRouter(manager, auth.ScopeUser)

	token, _, err := manager.IssueUserToken("user-1", "user@example.com", time.Hour)
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"user-1","email":"user@example.com","shop":0}`, w.Body.String())
}

func TestRequireAuth_Rejections(t *testing.T) {
	manager := auth.NewManager("secret", time.Hour)
	other := auth.NewManager("other-secret", time.Hour)

	userToken, _, err := manager.IssueUserToken("user-1", "", time.Hour)
	require.NoError(t, err)
	adminToken, _, err := manager.IssueAdminToken("sydneycuts", 1)
	require.NoError(t, err)
	forged, _, err := other.IssueUserToken("user-1", "", time.Hour)
	require.NoError(t, err)
	expired, _, err := manager.IssueUserToken("user-1", "", -time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		scope  string
		header string
		want   int
	}{
		{"missing header", auth.ScopeUser, "", http.StatusUnauthorized},
		{"not bearer", auth.ScopeUser, "Basic abc", http.StatusUnauthorized},
		{"wrong signature", auth.ScopeUser, "Bearer " + forged, http.StatusUnauthorized},
		{"expired", auth.ScopeUser, "Bearer " + expired, http.StatusUnauthorized},
		{"admin token on user route", auth.ScopeUser, "Bearer " + adminToken, http.StatusForbidden},
		{"user token on admin route", auth.ScopeShopAdmin, "Bearer " + userToken, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doGet(newAuthRouter(manager, tc.scope), tc.header)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequireAuth_AdminCarriesShop(t *testing.T) {
	manager := auth.NewManager("secret", time.Hour)
	r := newAuthRouter(manager, auth.ScopeShopAdmin)

	token, _, err := manager.IssueAdminToken("bondicuts", 3)
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"shop":3`)
}

func TestRequireCronSecret(t *testing.T) {
	newRouter := func(secret string) *gin.Engine {
		r := gin.New()
		r.POST("/cron", RequireCronSecret(secret, logger.NewNop()), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		return r
	}
	call := func(r http.Handler, header string) int {
		req := httptest.NewRequest(http.MethodPost, "/cron", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	r := newRouter("s3cret")
	assert.Equal(t, http.StatusNoContent, call(r, "Bearer s3cret"))
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer wrong"))
	assert.Equal(t, http.StatusUnauthorized, call(r, ""))

	// без настроенного секрета эндпоинт закрыт
	assert.Equal(t, http.StatusUnauthorized, call(newRouter(""), "Bearer "))
}
