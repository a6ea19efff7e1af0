package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, scopes []string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "tester",
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedHandler(m *Middleware, scopes ...string) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	if len(scopes) > 0 {
		return m.RequireAuth(m.RequireScope(scopes...)(handler))
	}
	return m.RequireAuth(handler)
}

func TestRequireAuthMissingToken(t *testing.T) {
	m := NewMiddleware(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	protectedHandler(m)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	m := NewMiddleware(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	protectedHandler(m)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthWrongSecret(t *testing.T) {
	m := NewMiddleware(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", []string{ScopeRead}))
	rec := httptest.NewRecorder()
	protectedHandler(m)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthValidToken(t *testing.T) {
	m := NewMiddleware(testSecret)

	var claims *Claims
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims = GetClaimsFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, []string{ScopeRead, ScopeTelemetry}))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "tester", claims.Subject)
	assert.Equal(t, []string{ScopeRead, ScopeTelemetry}, claims.Scopes)
}

func TestRequireScopeInsufficient(t *testing.T) {
	m := NewMiddleware(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, []string{ScopeRead}))
	rec := httptest.NewRecorder()
	protectedHandler(m, ScopeTelemetry)(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireScopeSatisfied(t *testing.T) {
	m := NewMiddleware(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, []string{ScopeRead, ScopeTelemetry}))
	rec := httptest.NewRecorder()
	protectedHandler(m, ScopeRead, ScopeTelemetry)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewMiddleware(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	protectedHandler(m)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
