package finwire

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/finwire/finwire/internal/authz"
	"github.com/finwire/finwire/internal/http/handlers/account"
	"github.com/finwire/finwire/internal/http/handlers/admins"
	"github.com/finwire/finwire/internal/http/handlers/blobs"
	"github.com/finwire/finwire/internal/http/handlers/catalog"
	"github.com/finwire/finwire/internal/http/handlers/health"
	"github.com/finwire/finwire/internal/http/handlers/payments"
	"github.com/finwire/finwire/internal/http/handlers/promo"
	"github.com/finwire/finwire/internal/http/handlers/settings"
	"github.com/finwire/finwire/internal/http/handlers/subscriptions"
	"github.com/finwire/finwire/internal/http/handlers/support"
	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/http/response"
)

// Handlers — собранные обработчики и middleware API.
type Handlers struct {
	Account       *account.Handler
	Admins        *admins.Handler
	Blobs         *blobs.Handler
	Catalog       *catalog.Handler
	Health        *health.Handler
	Payments      *payments.Handler
	Promo         *promo.Handler
	Settings      *settings.Handler
	Subscriptions *subscriptions.Handler
	Support       *support.Handler

	UserSession  middlewarectx.Verifier
	AdminSession middlewarectx.Verifier
	Limiter      *middlewarectx.RateLimiter
	Metrics      middlewarectx.RequestObserver
	DevDetail    bool
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, h Handlers) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		response.DevDetail(h.DevDetail),
	)
	if h.Metrics != nil {
		r.Use(middlewarectx.Metrics(h.Metrics))
	}

	user := middlewarectx.RequireSession(h.UserSession, authz.AnyUser, logger)
	admin := middlewarectx.RequireSession(h.AdminSession, authz.Admin, logger)
	superAdmin := middlewarectx.RequireSession(h.AdminSession, authz.SuperAdmin, logger)
	limit := h.Limiter.Middleware(logger)

	r.Get("/healthz", h.Health.ServeHTTP)
	r.Get("/api/settings", h.Settings.List)

	r.Route("/api/user", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/products", h.Catalog.ListProducts)
		r.Get("/products/{id}", h.Catalog.GetProduct)
		r.Get("/articles", h.Catalog.ListArticles)
		r.With(middlewarectx.OptionalSession(h.UserSession)).Get("/articles/{id}", h.Catalog.ResolveArticle)
		r.Get("/articles/{id}/views", h.Catalog.ArticleViews)
		r.Get("/careers", h.Catalog.Careers)
		r.Get("/image/{filename}", h.Blobs.Image)
		r.Head("/image/{filename}", h.Blobs.Image)

		r.Route("/auth", func(r chi.Router) {
			r.With(limit).Post("/register", h.Account.Register)
			r.With(limit).Post("/login", h.Account.Login)
			r.Post("/logout", h.Account.Logout)

			r.Group(func(r chi.Router) {
				r.Use(user)
				r.Get("/me", h.Account.Me)
				r.Patch("/me", h.Account.UpdateMe)
				r.Delete("/me", h.Account.DeleteMe)
				r.With(limit).Post("/password", h.Account.ChangePassword)
			})
		})

		// Группа с пользовательской сессией
		r.Group(func(r chi.Router) {
			r.Use(user)
			r.Get("/subscriptions", h.Subscriptions.List)
			r.Post("/subscriptions/{id}/cancel", h.Subscriptions.Cancel)
			r.Get("/subscriptions/{id}/history", h.Subscriptions.History)

			r.Post("/support/tickets", h.Support.Create)
			r.Get("/support/tickets", h.Support.List)
			r.Get("/support/tickets/{id}", h.Support.Get)
			r.Post("/support/tickets/{id}/messages", h.Support.Reply)
			r.Post("/support/tickets/{id}/read", h.Support.MarkRead)
			r.Patch("/support/tickets/{id}/status", h.Support.SetStatus)

			r.Post("/promo-codes/validate", h.Promo.Validate)
		})
	})

	r.Route("/api/payments", func(r chi.Router) {
		// Webhook без сессии, запрос подписан провайдером
		r.Post("/webhook", h.Payments.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(user)
			r.Get("/", h.Payments.List)
			r.Get("/{id}", h.Payments.Get)
			r.Post("/attempt", h.Payments.Attempt)
			r.Post("/pending", h.Payments.Pending)
			r.Post("/fail", h.Payments.Fail)
			r.Post("/cancel", h.Payments.Cancel)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.With(limit).Post("/auth/login", h.Account.AdminLogin)
		r.Post("/auth/logout", h.Account.AdminLogout)

		r.Group(func(r chi.Router) {
			r.Use(superAdmin)
			r.Get("/admins", h.Admins.ListAdmins)
			r.Post("/admins", h.Admins.CreateAdmin)
			r.Patch("/admins/{id}/status", h.Admins.SetStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Get("/users", h.Admins.ListUsers)
			r.Patch("/users/{id}/status", h.Admins.SetStatus)
			r.Delete("/users/{id}", h.Admins.DeleteUser)

			r.Get("/products", h.Catalog.AdminProducts)
			r.Post("/products", h.Catalog.CreateProduct)
			r.Get("/products/{id}", h.Catalog.AdminProduct)
			r.Put("/products/{id}", h.Catalog.UpdateProduct)
			r.Delete("/products/{id}", h.Catalog.DeactivateProduct)
			r.Post("/products/{id}/articles", h.Catalog.AddArticle)
			r.Put("/products/{id}/articles/{articleID}", h.Catalog.UpdateArticle)
			r.Patch("/products/{id}/articles/{articleID}/status", h.Catalog.SetArticleActive)

			r.Get("/careers", h.Catalog.AdminCareers)
			r.Post("/careers", h.Catalog.CreateCareer)
			r.Put("/careers/{id}", h.Catalog.UpdateCareer)
			r.Delete("/careers/{id}", h.Catalog.DeleteCareer)

			r.Get("/promo-codes", h.Promo.List)
			r.Post("/promo-codes", h.Promo.Create)
			r.Get("/promo-codes/{code}", h.Promo.Get)
			r.Put("/promo-codes/{code}", h.Promo.Update)
			r.Delete("/promo-codes/{code}", h.Promo.Delete)

			r.Get("/subscriptions", h.Subscriptions.AdminList)
			r.Post("/subscriptions/sweep", h.Subscriptions.Sweep)
			r.Post("/subscriptions/{id}/expire", h.Subscriptions.Expire)
			r.Post("/subscriptions/{id}/cancel", h.Subscriptions.Cancel)
			r.Get("/subscriptions/{id}/history", h.Subscriptions.History)

			r.Get("/support/tickets", h.Support.List)
			r.Get("/support/tickets/{id}", h.Support.Get)
			r.Post("/support/tickets/{id}/messages", h.Support.Reply)
			r.Post("/support/tickets/{id}/read", h.Support.MarkRead)
			r.Patch("/support/tickets/{id}/status", h.Support.SetStatus)

			r.Put("/settings/{key}", h.Settings.Put)

			r.Post("/uploads/{bucket}", h.Blobs.Upload)
			r.Get("/image/{filename}", h.Blobs.Image)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
