// Package middlewarectx содержит HTTP middleware: проверку сессий и ролей,
// ограничение частоты запросов и метрики.
//
// Проверенные claims кладутся в контекст запроса и читаются через ClaimsFrom.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/finwire/finwire/internal/authz"
	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/models"
)

type claimsKey struct{}

// Verifier проверяет cookie сессии своей области.
type Verifier interface {
	FromRequest(r *http.Request) (models.Claims, error)
}

// WithClaims кладёт claims в контекст.
func WithClaims(ctx context.Context, c models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom достаёт claims из контекста.
func ClaimsFrom(ctx context.Context) (models.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(models.Claims)
	return c, ok
}

// RequireSession пропускает запрос только с действительной сессией области verifier
// и ролью не ниже req.
func RequireSession(verifier Verifier, req authz.Requirement, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireSession"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			claims, err := verifier.FromRequest(r)
			if err != nil {
				response.Error(w, r, log, err)
				return
			}
			authorized, err := authz.Authorize(&claims, req)
			if err != nil {
				log.Warn("role check failed", slog.String("user_id", claims.UserID), slog.String("required", req.String()))
				response.Error(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), authorized)))
		})
	}
}

// OptionalSession кладёт claims в контекст, если сессия действительна,
// и пропускает запрос в любом случае.
func OptionalSession(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := verifier.FromRequest(r); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}
