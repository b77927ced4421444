// Package sweeper периодически переводит просроченные подписки в expired
// и рассылает напоминания об окончании подписки.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/finwire/finwire/internal/lib/rabbitmq"
	"github.com/finwire/finwire/internal/lib/sl"
	"github.com/finwire/finwire/internal/models"
)

type Engine interface {
	Sweep(ctx context.Context) ([]models.Transition, error)
	ExpiringTomorrow(ctx context.Context) ([]models.ExpiryNotice, error)
}

type Publisher interface {
	Publish(routingKey string, message any) error
}

type Observer interface {
	ObserveSweep(expired int, err error)
}

type Service struct {
	engine    Engine
	publisher Publisher
	observer  Observer
	log       *slog.Logger
}

// New создаёт сервис. publisher и observer могут быть nil.
func New(engine Engine, publisher Publisher, observer Observer, log *slog.Logger) *Service {
	return &Service{engine: engine, publisher: publisher, observer: observer, log: log}
}

// RunSweep выполняет один прогон сверки и возвращает число истёкших подписок.
func (s *Service) RunSweep(ctx context.Context) (int, error) {
	const op = "sweeper.RunSweep"
	log := s.log.With(slog.String("op", op))
	trs, err := s.engine.Sweep(ctx)
	if s.observer != nil {
		s.observer.ObserveSweep(len(trs), err)
	}
	if err != nil {
		log.Error("sweep failed", slog.Int("expired", len(trs)), sl.Err(err))
		return len(trs), err
	}
	log.Info("sweep finished", slog.Int("expired", len(trs)))
	return len(trs), nil
}

// RunReminders публикует напоминания о подписках, истекающих завтра.
// Возвращает число опубликованных сообщений.
func (s *Service) RunReminders(ctx context.Context) (int, error) {
	const op = "sweeper.RunReminders"
	log := s.log.With(slog.String("op", op))
	notices, err := s.engine.ExpiringTomorrow(ctx)
	if err != nil {
		log.Error("failed to find expiring subscriptions", sl.Err(err))
		return 0, err
	}
	if len(notices) == 0 || s.publisher == nil {
		log.Info("no reminders to publish")
		return 0, nil
	}
	published := 0
	for _, n := range notices {
		if err := s.publisher.Publish(rabbitmq.RoutingKeyUpcoming, n); err != nil {
			log.Error("failed to publish reminder", slog.String("subscription_id", n.SubscriptionID), sl.Err(err))
			continue
		}
		published++
	}
	log.Info("reminders published", slog.Int("count", published), slog.Int("found", len(notices)))
	return published, nil
}

// Run сразу выполняет оба прогона, затем повторяет их по своим интервалам до отмены ctx.
// Нулевой интервал отключает соответствующий прогон.
func (s *Service) Run(ctx context.Context, sweepEvery, remindEvery time.Duration) {
	sweepC, stopSweep := ticker(sweepEvery)
	defer stopSweep()
	remindC, stopRemind := ticker(remindEvery)
	defer stopRemind()

	if sweepEvery > 0 {
		_, _ = s.RunSweep(ctx)
	}
	if remindEvery > 0 {
		_, _ = s.RunReminders(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-sweepC:
			_, _ = s.RunSweep(ctx)
		case <-remindC:
			_, _ = s.RunReminders(ctx)
		}
	}
}

func ticker(every time.Duration) (<-chan time.Time, func()) {
	if every <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(every)
	return t.C, t.Stop
}
