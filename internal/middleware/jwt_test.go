package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetix/movie-reservation/internal/utils"
)

func protectedEcho(secret string, roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("/p", JWTAuth(secret))
	if len(roles) > 0 {
		g.Use(RequireRole(roles...))
	}
	g.GET("/ping", func(c echo.Context) error {
		uid, _ := c.Get(ContextUserID).(uint64)
		return c.JSON(http.StatusOK, echo.Map{"user_id": uid})
	})
	return e
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	const secret = "s"
	tok, err := utils.NewAccessToken(secret, 42, "CUSTOMER", 15)
	require.NoError(t, err)

	e := protectedEcho(secret)
	req := httptest.NewRequest(http.MethodGet, "/p/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":42`)
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
	e := protectedEcho("s")

	req := httptest.NewRequest(http.MethodGet, "/p/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := utils.NewAccessToken("other-secret", 1, "CUSTOMER", 15)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/p/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	const secret = "s"
	customer, err := utils.NewAccessToken(secret, 2, "CUSTOMER", 15)
	require.NoError(t, err)
	admin, err := utils.NewAccessToken(secret, 1, "ADMIN", 15)
	require.NoError(t, err)

	e := protectedEcho(secret, "ADMIN")

	req := httptest.NewRequest(http.MethodGet, "/p/ping", nil)
	req.Header.Set("Authorization", "Bearer "+customer.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/p/ping", nil)
	req.Header.Set("Authorization", "Bearer "+admin.Token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
