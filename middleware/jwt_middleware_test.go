package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func protectedEcho(extra ...echo.MiddlewareFunc) (*echo.Echo, *JwtCustomClaims) {
	var seen JwtCustomClaims
	e := echo.New()
	group := e.Group("/api", JWTMiddleware())
	group.Use(extra...)
	group.GET("/whoami", func(c echo.Context) error {
		if claims := GetClaimsFromToken(c); claims != nil {
			seen = *claims
		}
		return c.NoContent(http.StatusOK)
	})
	return e, &seen
}

func TestGeneratedTokenPassesMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, refresh, err := GenerateJWT("biz-1", "business")
	require.NoError(t, err)
	require.NotEmpty(t, refresh)

	e, seen := protectedEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "biz-1", seen.ActorID)
	require.Equal(t, "business", seen.ActorType)
	require.Greater(t, seen.ExpiresAt, time.Now().Unix())
}

func TestActorTypeGateRejectsWrongActor(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, _, err := GenerateJWT("ref-1", "referrer")
	require.NoError(t, err)

	e, _ := protectedEcho(RequireActorType("admin"))
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	claims := &JwtCustomClaims{
		ActorID:   "biz-1",
		ActorType: "business",
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
			IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
		},
	}
	stale, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	e, _ := protectedEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+stale)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMissingTokenIsRejected(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	e, _ := protectedEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
