// Package subscription реализует движок состояний подписки:
// pending-payment -> active -> {expired, cancelled}.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finwire/finwire/internal/authz"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/lib/rabbitmq"
	"github.com/finwire/finwire/internal/lib/sl"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/storage"
)

// SweepBatch — сколько подписок sweeper переводит за одну транзакцию.
const SweepBatch = 500

// Repository определяет операции хранилища, нужные движку.
type Repository interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	CreatePending(ctx context.Context, order storage.PendingOrder) (storage.PendingResult, error)
	ActivatePayment(ctx context.Context, paymentID string, trigger models.Trigger, actorID string, now time.Time) ([]models.Transition, bool, error)
	ExpireSubscription(ctx context.Context, id string, now time.Time) (models.Transition, bool, error)
	SweepExpired(ctx context.Context, now time.Time, limit int) ([]models.Transition, error)
	CancelSubscriptions(ctx context.Context, req storage.CancelRequest) ([]models.Transition, error)
	HasActiveAccess(ctx context.Context, userID, productID string, now time.Time) (bool, error)
	GetSubscription(ctx context.Context, id string) (models.Subscription, error)
	ListSubscriptions(ctx context.Context, f storage.SubscriptionFilter) ([]models.Subscription, error)
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiryNotice, error)
}

// Discounter считает скидку по промокоду.
type Discounter interface {
	Quote(ctx context.Context, code string, amount int64) (int64, error)
}

// Publisher отправляет уведомления в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Observer получает каждый зафиксированный переход.
type Observer interface {
	ObserveTransition(tr models.Transition)
}

// Engine — движок состояний подписки. Не хранит изменяемого состояния:
// все переходы сериализуются условными UPDATE в хранилище.
type Engine struct {
	repo       Repository
	discounter Discounter
	publisher  Publisher
	observer   Observer
	log        *slog.Logger
	now        func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithPublisher включает публикацию переходов в RabbitMQ.
func WithPublisher(p Publisher) Option { return func(e *Engine) { e.publisher = p } }

// WithObserver подключает сборщик метрик.
func WithObserver(o Observer) Option { return func(e *Engine) { e.observer = o } }

// WithDiscounter подключает расчёт скидок по промокодам.
func WithDiscounter(d Discounter) Option { return func(e *Engine) { e.discounter = d } }

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New создаёт движок.
func New(repo Repository, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PendingInput — запрос на оформление заказа.
type PendingInput struct {
	OrderID    string
	UserID     string
	ProductIDs []string
	PromoCode  string
	Currency   string
}

// CreatePending создаёт платёж и подписки pending-payment.
// Повтор с тем же OrderID возвращает уже созданный заказ.
func (e *Engine) CreatePending(ctx context.Context, in PendingInput) (storage.PendingResult, error) {
	const op = "subscription.CreatePending"
	if in.OrderID == "" || in.UserID == "" {
		return storage.PendingResult{}, apperr.Validation("order id and user are required")
	}
	ids := unique(in.ProductIDs)
	if len(ids) == 0 {
		return storage.PendingResult{}, apperr.Validation("at least one product is required")
	}

	products, err := e.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return storage.PendingResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(products) != len(ids) {
		return storage.PendingResult{}, apperr.NotFound("product")
	}

	var amount int64
	for _, p := range products {
		if in.Currency != "" && p.Currency != in.Currency {
			return storage.PendingResult{}, apperr.Validation("products must share one currency")
		}
		amount += p.Price
	}
	currency := in.Currency
	if currency == "" {
		currency = products[0].Currency
	}

	code := models.NormalizeCode(in.PromoCode)
	var discount int64
	if code != "" {
		if e.discounter == nil {
			return storage.PendingResult{}, apperr.Validation("promo codes are not accepted")
		}
		discount, err = e.discounter.Quote(ctx, code, amount)
		if err != nil {
			return storage.PendingResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	res, err := e.repo.CreatePending(ctx, storage.PendingOrder{
		OrderID:   in.OrderID,
		UserID:    in.UserID,
		Amount:    amount - discount,
		Discount:  discount,
		Currency:  currency,
		PromoCode: code,
		Products:  products,
		At:        e.now().UTC(),
	})
	if err != nil {
		return storage.PendingResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if res.Created {
		e.log.Info("pending order created",
			slog.String("order_id", in.OrderID),
			slog.String("payment_id", res.Payment.ID),
			slog.Int("subscriptions", len(res.Subscriptions)))
	}
	return res, nil
}

// Activate атомарно переводит платёж в captured, а его подписки в active.
// Повторный вызов ничего не меняет и возвращает activated=false.
func (e *Engine) Activate(ctx context.Context, paymentID string, trigger models.Trigger, actorID string) ([]models.Transition, bool, error) {
	const op = "subscription.Activate"
	trs, activated, err := e.repo.ActivatePayment(ctx, paymentID, trigger, actorID, e.now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !activated {
		e.log.Info("payment already captured", slog.String("payment_id", paymentID))
		return nil, false, nil
	}
	e.emit(trs)
	return trs, true, nil
}

// Expire переводит подписку с истёкшим сроком в expired.
// Ещё действующая или уже закрытая подписка не меняется: ok=false.
func (e *Engine) Expire(ctx context.Context, subscriptionID string) (models.Transition, bool, error) {
	const op = "subscription.Expire"
	if _, err := uuid.Parse(subscriptionID); err != nil {
		return models.Transition{}, false, storage.ErrNotFound
	}
	tr, ok, err := e.repo.ExpireSubscription(ctx, subscriptionID, e.now().UTC())
	if err != nil {
		return models.Transition{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if ok {
		e.emit([]models.Transition{tr})
	}
	return tr, ok, nil
}

// Sweep переводит в expired все подписки с истёкшим end_date пачками по SweepBatch.
// Повторный прогон не создаёт новых записей журнала.
func (e *Engine) Sweep(ctx context.Context) ([]models.Transition, error) {
	const op = "subscription.Sweep"
	now := e.now().UTC()
	var all []models.Transition
	for {
		trs, err := e.repo.SweepExpired(ctx, now, SweepBatch)
		if err != nil {
			return all, fmt.Errorf("%s: %w", op, err)
		}
		e.emit(trs)
		all = append(all, trs...)
		if len(trs) < SweepBatch {
			break
		}
		if err := ctx.Err(); err != nil {
			return all, fmt.Errorf("%s: %w", op, err)
		}
	}
	if len(all) > 0 {
		e.log.Info("expired subscriptions swept", slog.Int("count", len(all)))
	}
	return all, nil
}

var (
	// Неоплаченный заказ отменяется только вместе с платежом.
	cancellable = []models.SubscriptionStatus{models.SubscriptionActive}
	// Отмена или возврат платежа закрывает и неоплаченные подписки.
	cancellableByPayment = []models.SubscriptionStatus{models.SubscriptionPendingPayment, models.SubscriptionActive}
)

// Cancel переводит активную подписку в cancelled сразу, не дожидаясь end_date.
// Пользователь отменяет только свои подписки, сессия администратора любые.
// Подписка в другом статусе — Conflict(INVALID_TRANSITION).
func (e *Engine) Cancel(ctx context.Context, subscriptionID string, caller models.Claims) (models.Transition, error) {
	const op = "subscription.Cancel"
	if _, err := uuid.Parse(subscriptionID); err != nil {
		return models.Transition{}, storage.ErrNotFound
	}
	req := storage.CancelRequest{
		SubscriptionID: subscriptionID,
		From:           cancellable,
		Trigger:        models.TriggerUserAction,
		ActorID:        caller.UserID,
		At:             e.now().UTC(),
	}
	if authz.Staff(caller) {
		req.Trigger = models.TriggerAdminAction
	} else {
		req.OwnerID = caller.UserID
	}

	trs, err := e.repo.CancelSubscriptions(ctx, req)
	if err != nil {
		return models.Transition{}, fmt.Errorf("%s: %w", op, err)
	}
	e.emit(trs)
	if len(trs) == 0 {
		return models.Transition{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return trs[0], nil
}

// CancelByPayment отменяет все незавершённые подписки платежа
// (возврат или отмена платежа на стороне провайдера).
func (e *Engine) CancelByPayment(ctx context.Context, paymentID string, trigger models.Trigger, actorID string) ([]models.Transition, error) {
	const op = "subscription.CancelByPayment"
	trs, err := e.repo.CancelSubscriptions(ctx, storage.CancelRequest{
		PaymentID: paymentID,
		From:      cancellableByPayment,
		Trigger:   trigger,
		ActorID:   actorID,
		At:        e.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.emit(trs)
	return trs, nil
}

// HasActiveAccess сверяет end_date с текущим временем при каждом вызове.
func (e *Engine) HasActiveAccess(ctx context.Context, userID, productID string) (bool, error) {
	const op = "subscription.HasActiveAccess"
	ok, err := e.repo.HasActiveAccess(ctx, userID, productID, e.now().UTC())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Get возвращает подписку, если caller её владелец или администратор.
// Чужая подписка неотличима от отсутствующей.
func (e *Engine) Get(ctx context.Context, subscriptionID string, caller models.Claims) (models.Subscription, error) {
	const op = "subscription.Get"
	if _, err := uuid.Parse(subscriptionID); err != nil {
		return models.Subscription{}, storage.ErrNotFound
	}
	sub, err := e.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	if !authz.CanActOnOwned(caller, sub.UserID) {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return sub, nil
}

// ListForUser возвращает подписки пользователя.
func (e *Engine) ListForUser(ctx context.Context, userID string, page pagination.Params) ([]models.Subscription, error) {
	return e.ListAll(ctx, storage.SubscriptionFilter{UserID: userID, Page: page})
}

// ListAll возвращает подписки по фильтру.
func (e *Engine) ListAll(ctx context.Context, f storage.SubscriptionFilter) ([]models.Subscription, error) {
	const op = "subscription.List"
	if f.Status != "" && !validStatus(f.Status) {
		return nil, apperr.Validation("unknown subscription status")
	}
	subs, err := e.repo.ListSubscriptions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	return subs, nil
}

// ExpiringTomorrow возвращает действующие подписки, истекающие в ближайшие сутки.
func (e *Engine) ExpiringTomorrow(ctx context.Context) ([]models.ExpiryNotice, error) {
	const op = "subscription.ExpiringTomorrow"
	now := e.now().UTC()
	notices, err := e.repo.ExpiringBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return notices, nil
}

// emit публикует уже зафиксированные переходы. Ошибка брокера не откатывает переход.
func (e *Engine) emit(trs []models.Transition) {
	for _, tr := range trs {
		if e.observer != nil {
			e.observer.ObserveTransition(tr)
		}
		e.log.Info("subscription transition",
			slog.String("subscription_id", tr.Subscription.ID),
			slog.String("from", string(tr.From)),
			slog.String("to", string(tr.To)),
			slog.String("trigger", string(tr.Trigger)))
		if e.publisher == nil {
			continue
		}
		if err := e.publisher.Publish(rabbitmq.RoutingKeyTransition, tr); err != nil {
			e.log.Warn("failed to publish transition",
				slog.String("subscription_id", tr.Subscription.ID), sl.Err(err))
		}
	}
}

func validStatus(s models.SubscriptionStatus) bool {
	switch s {
	case models.SubscriptionPendingPayment, models.SubscriptionActive,
		models.SubscriptionExpired, models.SubscriptionCancelled:
		return true
	}
	return false
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
