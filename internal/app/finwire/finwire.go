// Package finwire собирает HTTP API: хранилище, кеш, брокер, сервисы и маршруты.
package finwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/finwire/finwire/internal/cache"
	"github.com/finwire/finwire/internal/config"
	"github.com/finwire/finwire/internal/http/handlers/account"
	"github.com/finwire/finwire/internal/http/handlers/admins"
	"github.com/finwire/finwire/internal/http/handlers/blobs"
	cataloghandler "github.com/finwire/finwire/internal/http/handlers/catalog"
	"github.com/finwire/finwire/internal/http/handlers/health"
	"github.com/finwire/finwire/internal/http/handlers/payments"
	promohandler "github.com/finwire/finwire/internal/http/handlers/promo"
	settingshandler "github.com/finwire/finwire/internal/http/handlers/settings"
	"github.com/finwire/finwire/internal/http/handlers/subscriptions"
	supporthandler "github.com/finwire/finwire/internal/http/handlers/support"
	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/lib/rabbitmq"
	"github.com/finwire/finwire/internal/lib/sl"
	"github.com/finwire/finwire/internal/metrics"
	"github.com/finwire/finwire/internal/migrations"
	adminservice "github.com/finwire/finwire/internal/services/admin"
	auditservice "github.com/finwire/finwire/internal/services/audit"
	authservice "github.com/finwire/finwire/internal/services/auth"
	blobservice "github.com/finwire/finwire/internal/services/blob"
	catalogservice "github.com/finwire/finwire/internal/services/catalog"
	contentservice "github.com/finwire/finwire/internal/services/content"
	paymentservice "github.com/finwire/finwire/internal/services/payment"
	promoservice "github.com/finwire/finwire/internal/services/promo"
	settingsservice "github.com/finwire/finwire/internal/services/settings"
	subservice "github.com/finwire/finwire/internal/services/subscription"
	supportservice "github.com/finwire/finwire/internal/services/support"
	"github.com/finwire/finwire/internal/services/sweeper"
	"github.com/finwire/finwire/internal/session"
	"github.com/finwire/finwire/internal/storage"
)

// App — HTTP API.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	cfg     *config.Config
	db      *storage.Storage
	cache   *cache.Cache
	conn    *amqp.Connection
	ch      *amqp.Channel
	sweeper *sweeper.Service
}

// New поднимает зависимости и собирает роутер.
// Недоступный RabbitMQ не мешает старту: API работает без уведомлений.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "finwire.New"

	db := storage.New(storage.NewPool(storage.PgxOpener(cfg.Storage), cfg.Storage.ConnectTimeout))
	sqlDB, err := db.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(sqlDB, cfg.Storage.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
	}

	app := &App{logger: logger, cfg: cfg, db: db, cache: cacheRedis}

	var publisher sweeper.Publisher
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		logger.Warn("rabbitmq unavailable, notifications disabled", sl.Err(err))
	} else {
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			_ = conn.Close()
			logger.Warn("rabbitmq channel setup failed, notifications disabled", sl.Err(err))
		} else {
			app.conn, app.ch = conn, ch
			publisher = rabbitmq.NewPublisher(ch)
		}
	}

	mets := metrics.New(prometheus.DefaultRegisterer)

	authSvc := authservice.New(db, logger)
	if err = authSvc.EnsureSuperAdmin(ctx, cfg.Bootstrap); err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	promoSvc := promoservice.New(db, logger)
	opts := []subservice.Option{subservice.WithObserver(mets), subservice.WithDiscounter(promoSvc)}
	if publisher != nil {
		opts = append(opts, subservice.WithPublisher(publisher))
	}
	engine := subservice.New(db, logger, opts...)
	app.sweeper = sweeper.New(engine, publisher, mets, logger)

	resolver := contentservice.New(db, engine, cacheRedis, cacheRedis, logger, cfg.Content.PreviewLength)
	catalogSvc := catalogservice.New(db, cacheRedis, logger, cfg.Payments.Currency)
	paymentSvc := paymentservice.New(db, engine, logger, cfg.Payments.Currency)

	userVerifier := session.NewUserVerifier(session.NewMaker(cfg.Session.UserSecret, cfg.Session.TTL), cfg.Session.SecureCookies)
	adminVerifier := session.NewAdminVerifier(session.NewMaker(cfg.Session.AdminSecret, cfg.Session.TTL), cfg.Session.SecureCookies)

	handlers := Handlers{
		Account:       account.New(logger, authSvc, userVerifier, adminVerifier),
		Admins:        admins.New(logger, adminservice.New(db, authSvc, logger)),
		Blobs:         blobs.New(logger, blobservice.New(db, logger)),
		Catalog:       cataloghandler.New(logger, resolver, catalogSvc),
		Health:        health.New(logger, map[string]health.Pinger{"postgres": db, "redis": cacheRedis}),
		Payments:      payments.New(logger, paymentSvc, cfg.Payments.WebhookSecret),
		Promo:         promohandler.New(logger, promoSvc),
		Settings:      settingshandler.New(logger, settingsservice.New(db, cacheRedis)),
		Subscriptions: subscriptions.New(logger, engine, auditservice.New(db, logger), app.sweeper),
		Support:       supporthandler.New(logger, supportservice.New(db, logger)),
		UserSession:   userVerifier,
		AdminSession:  adminVerifier,
		Limiter:       middlewarectx.NewRateLimiter(ctx, cfg.RateLimit),
		Metrics:       mets,
		DevDetail:     cfg.DevDetail(),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, handlers)

	app.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает HTTP до отмены ctx, затем плавно останавливает сервер.
// При включённом sweeper сверка истёкших подписок идёт в этом же процессе.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Sweeper.Enabled {
		go a.sweeper.Run(ctx, a.cfg.Sweeper.Interval, a.cfg.Sweeper.RemindInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPServer.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
