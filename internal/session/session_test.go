package session

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
)

var alice = models.Claims{
	UserID: "2b6f0cc9-46d4-4d1a-9a4f-8f1a4f1f4a01",
	Name:   "Alice",
	Email:  "alice@example.com",
	Role:   models.RoleUser,
}

var root = models.Claims{
	UserID: "7e0a3c55-1d5a-4a89-a1c2-5c6f3bd8e902",
	Name:   "Root",
	Email:  "root@example.com",
	Role:   models.RoleSuperAdmin,
}

func verifiers() (*Verifier, *Verifier) {
	return NewUserVerifier(NewMaker("user-secret", time.Hour), false),
		NewAdminVerifier(NewMaker("admin-secret", time.Hour), false)
}

func TestVerifier_RoundTrip(t *testing.T) {
	user, admin := verifiers()

	rec := httptest.NewRecorder()
	token, err := user.Issue(rec, alice)
	require.NoError(t, err)

	got, err := user.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, got.UserID)
	assert.Equal(t, alice.Email, got.Email)
	assert.Equal(t, models.ScopeUser, got.Scope)

	rec = httptest.NewRecorder()
	token, err = admin.Issue(rec, root)
	require.NoError(t, err)
	got, err = admin.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, got.Role)
}

func TestVerifier_ExpiredToken(t *testing.T) {
	user, _ := verifiers()
	issuedAt := time.Now().Add(-2 * time.Hour)
	user.maker.now = func() time.Time { return issuedAt }

	token, err := user.maker.GenerateToken(models.Claims{UserID: alice.UserID, Role: models.RoleUser, Scope: models.ScopeUser})
	require.NoError(t, err)

	user.maker.now = time.Now
	_, err = user.Verify(token)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifier_TamperedToken(t *testing.T) {
	user, _ := verifiers()
	token, err := user.Issue(httptest.NewRecorder(), alice)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[1] = base64.RawURLEncoding.EncodeToString(
		[]byte(`{"sub":"evil","role":"super-admin","scope":"user","exp":9999999999}`))
	tampered := strings.Join(parts, ".")

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "bad signature", token: tampered},
		{name: "foreign secret", token: mustToken(t, NewMaker("other-secret", time.Hour), alice, models.ScopeUser)},
		{name: "none alg", token: noneToken(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := user.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
			assert.Empty(t, claims.UserID)
		})
	}
}

func TestVerifier_ScopesAreNotInterchangeable(t *testing.T) {
	shared := NewMaker("same-secret", time.Hour)
	user := NewUserVerifier(shared, false)
	admin := NewAdminVerifier(shared, false)

	adminToken := mustToken(t, shared, root, models.ScopeAdmin)
	_, err := user.Verify(adminToken)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))

	userToken := mustToken(t, shared, alice, models.ScopeUser)
	_, err = admin.Verify(userToken)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
}

func TestAdminVerifier_RejectsUserRole(t *testing.T) {
	_, admin := verifiers()
	token := mustToken(t, admin.maker, alice, models.ScopeAdmin)

	_, err := admin.Verify(token)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
}

func TestVerifier_FromRequestReadsOwnCookie(t *testing.T) {
	user, admin := verifiers()
	rec := httptest.NewRecorder()
	_, err := admin.Issue(rec, root)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	_, err = user.FromRequest(req)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))

	got, err := admin.FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, root.UserID, got.UserID)
}

func TestVerifier_CookieAttributes(t *testing.T) {
	user := NewUserVerifier(NewMaker("user-secret", 2*time.Hour), true)

	rec := httptest.NewRecorder()
	_, err := user.Issue(rec, alice)
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, UserCookie, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, 7200, c.MaxAge)

	rec = httptest.NewRecorder()
	user.Clear(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, UserCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func mustToken(t *testing.T, m *Maker, c models.Claims, scope models.Scope) string {
	t.Helper()
	c.Scope = scope
	token, err := m.GenerateToken(c)
	require.NoError(t, err)
	return token
}

func noneToken(t *testing.T) string {
	t.Helper()
	claims := CustomClaims{
		Role:  models.RoleUser,
		Scope: models.ScopeUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   alice.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}
