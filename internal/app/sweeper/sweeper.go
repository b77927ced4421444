// Package sweeper — приложение фоновой сверки: переводит просроченные подписки
// в expired и публикует напоминания об окончании подписки.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/finwire/finwire/internal/config"
	"github.com/finwire/finwire/internal/lib/rabbitmq"
	"github.com/finwire/finwire/internal/lib/sl"
	"github.com/finwire/finwire/internal/metrics"
	subservice "github.com/finwire/finwire/internal/services/subscription"
	sweeperservice "github.com/finwire/finwire/internal/services/sweeper"
	"github.com/finwire/finwire/internal/storage"
)

// App представляет приложение sweeper.
type App struct {
	service *sweeperservice.Service
	cfg     config.Sweeper
	db      *storage.Storage
	conn    *amqp.Connection
	ch      *amqp.Channel
	logger  *slog.Logger
}

// New создает новый экземпляр приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "sweeper.New"
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	db := storage.New(storage.NewPool(storage.PgxOpener(cfg.Storage), cfg.Storage.ConnectTimeout))
	if err := db.Ping(ctx); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	publisher := rabbitmq.NewPublisher(ch)
	mets := metrics.New(prometheus.DefaultRegisterer)
	engine := subservice.New(db, logger, subservice.WithPublisher(publisher), subservice.WithObserver(mets))

	return &App{
		service: sweeperservice.New(engine, publisher, mets, logger),
		cfg:     cfg.Sweeper,
		db:      db,
		conn:    conn,
		ch:      ch,
		logger:  logger,
	}, nil
}

// Run крутит сверку до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("sweeper started",
		slog.Duration("interval", a.cfg.Interval),
		slog.Duration("remind_interval", a.cfg.RemindInterval))
	a.service.Run(ctx, a.cfg.Interval, a.cfg.RemindInterval)

	a.logger.Info("shutting down sweeper")
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return nil
}
