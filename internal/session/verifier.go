package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
)

// Имена cookie сессий. Пользовательская и административная сессии
// никогда не взаимозаменяемы.
const (
	UserCookie  = "user_token"
	AdminCookie = "admin_token"
)

var errUnauthenticated = apperr.Unauthenticated("authentication failed")

// Verifier проверяет токены одной области действия.
type Verifier struct {
	cookie string
	scope  models.Scope
	maker  *Maker
	secure bool
}

// NewUserVerifier создаёт проверку пользовательских сессий.
func NewUserVerifier(maker *Maker, secure bool) *Verifier {
	return &Verifier{cookie: UserCookie, scope: models.ScopeUser, maker: maker, secure: secure}
}

// NewAdminVerifier создаёт проверку административных сессий.
func NewAdminVerifier(maker *Maker, secure bool) *Verifier {
	return &Verifier{cookie: AdminCookie, scope: models.ScopeAdmin, maker: maker, secure: secure}
}

// Cookie возвращает имя cookie этой области.
func (v *Verifier) Cookie() string { return v.cookie }

// Scope возвращает область действия.
func (v *Verifier) Scope() models.Scope { return v.scope }

// Verify проверяет токен и возвращает claims.
// Любая ошибка (подпись, срок, область, роль) — apperr Unauthenticated.
func (v *Verifier) Verify(token string) (models.Claims, error) {
	const op = "session.Verify"
	parsed, err := v.maker.ParseToken(token)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%s: %w", op, errUnauthenticated.WithCause(err))
	}
	if parsed.Scope != v.scope {
		return models.Claims{}, fmt.Errorf("%s: %w", op, errUnauthenticated.WithCause(
			fmt.Errorf("token scope %q, want %q", parsed.Scope, v.scope)))
	}
	if !parsed.Role.Valid() || parsed.Subject == "" {
		return models.Claims{}, fmt.Errorf("%s: %w", op, errUnauthenticated)
	}
	if v.scope == models.ScopeAdmin && !parsed.Role.AtLeast(models.RoleAdmin) {
		return models.Claims{}, fmt.Errorf("%s: %w", op, errUnauthenticated)
	}
	return models.Claims{
		UserID: parsed.Subject,
		Name:   parsed.Name,
		Email:  parsed.Email,
		Role:   parsed.Role,
		Scope:  parsed.Scope,
	}, nil
}

// FromRequest читает cookie своей области и проверяет токен.
func (v *Verifier) FromRequest(r *http.Request) (models.Claims, error) {
	c, err := r.Cookie(v.cookie)
	if err != nil || c.Value == "" {
		return models.Claims{}, errUnauthenticated
	}
	return v.Verify(c.Value)
}

// Issue выпускает токен для claims и устанавливает cookie.
func (v *Verifier) Issue(w http.ResponseWriter, claims models.Claims) (string, error) {
	claims.Scope = v.scope
	token, err := v.maker.GenerateToken(claims)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     v.cookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(v.maker.TTL() / time.Second),
		HttpOnly: true,
		Secure:   v.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

// Clear удаляет cookie сессии (Max-Age=0).
func (v *Verifier) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     v.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   v.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
