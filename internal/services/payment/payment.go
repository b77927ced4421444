// Package payment ведёт попытки оплаты: создание заказа, смены статусов
// и события платёжного провайдера.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/subscription"
	"github.com/finwire/finwire/internal/storage"
)

// Repository — хранилище платежей.
type Repository interface {
	GetPayment(ctx context.Context, id string) (models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID string, page pagination.Params) ([]models.Payment, error)
	TransitionPayment(ctx context.Context, id string, from []models.PaymentStatus,
		to models.PaymentStatus, reason string, now time.Time) (models.Payment, error)
}

// Engine — операции над подписками, которые запускает платёж.
type Engine interface {
	CreatePending(ctx context.Context, in subscription.PendingInput) (storage.PendingResult, error)
	Activate(ctx context.Context, paymentID string, trigger models.Trigger, actorID string) ([]models.Transition, bool, error)
	CancelByPayment(ctx context.Context, paymentID string, trigger models.Trigger, actorID string) ([]models.Transition, error)
}

var errInvalidTransition = apperr.Conflict("").WithReason(apperr.ReasonInvalidTransition)

// Service — сервис платежей.
type Service struct {
	repo     Repository
	engine   Engine
	log      *slog.Logger
	currency string
	now      func() time.Time
}

func New(repo Repository, engine Engine, log *slog.Logger, currency string) *Service {
	return &Service{repo: repo, engine: engine, log: log, currency: currency, now: time.Now}
}

// AttemptInput — запрос на оформление заказа.
type AttemptInput struct {
	OrderID    string
	ProductIDs []string
	PromoCode  string
	Currency   string
}

// Attempt создаёт платёж и подписки pending-payment. Пустой OrderID генерируется.
// Повтор с тем же OrderID возвращает существующий заказ.
func (s *Service) Attempt(ctx context.Context, caller models.Claims, in AttemptInput) (storage.PendingResult, error) {
	const op = "payment.Attempt"
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		orderID = uuid.NewString()
	}
	currency := in.Currency
	if currency == "" {
		currency = s.currency
	}
	res, err := s.engine.CreatePending(ctx, subscription.PendingInput{
		OrderID:    orderID,
		UserID:     caller.UserID,
		ProductIDs: in.ProductIDs,
		PromoCode:  in.PromoCode,
		Currency:   currency,
	})
	if err != nil {
		return storage.PendingResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if res.Payment.UserID != caller.UserID {
		return storage.PendingResult{}, apperr.Conflict("order id is already in use").WithReason(apperr.ReasonDuplicate)
	}
	return res, nil
}

var (
	toPending   = []models.PaymentStatus{models.PaymentCreated, models.PaymentAttempted, models.PaymentAuthorized}
	toFailed    = []models.PaymentStatus{models.PaymentCreated, models.PaymentAttempted, models.PaymentAuthorized, models.PaymentPending}
	toCancelled = []models.PaymentStatus{models.PaymentCreated, models.PaymentAttempted, models.PaymentAuthorized,
		models.PaymentPending, models.PaymentFailed}
)

// MarkPending отмечает, что оплата ожидает подтверждения провайдера.
func (s *Service) MarkPending(ctx context.Context, caller models.Claims, paymentID string) (models.Payment, error) {
	return s.userTransition(ctx, "payment.MarkPending", caller, paymentID, toPending, models.PaymentPending, "")
}

// Fail отмечает неудачную попытку. Подписки остаются pending-payment: заказ можно оплатить повторно.
func (s *Service) Fail(ctx context.Context, caller models.Claims, paymentID, reason string) (models.Payment, error) {
	return s.userTransition(ctx, "payment.Fail", caller, paymentID, toFailed, models.PaymentFailed, reason)
}

// Cancel отменяет заказ вместе с его неоплаченными подписками.
func (s *Service) Cancel(ctx context.Context, caller models.Claims, paymentID, reason string) (models.Payment, error) {
	const op = "payment.Cancel"
	p, err := s.userTransition(ctx, op, caller, paymentID, toCancelled, models.PaymentCancelled, reason)
	if err != nil {
		return models.Payment{}, err
	}
	if _, err := s.engine.CancelByPayment(ctx, paymentID, models.TriggerUserAction, caller.UserID); err != nil {
		return models.Payment{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *Service) userTransition(ctx context.Context, op string, caller models.Claims, paymentID string,
	from []models.PaymentStatus, to models.PaymentStatus, reason string) (models.Payment, error) {
	if _, err := s.owned(ctx, caller, paymentID); err != nil {
		return models.Payment{}, fmt.Errorf("%s: %w", op, err)
	}
	p, err := s.repo.TransitionPayment(ctx, paymentID, from, to, reason, s.now().UTC())
	if err != nil {
		return models.Payment{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("payment status changed",
		slog.String("payment_id", paymentID), slog.String("status", string(to)), slog.String("by", caller.UserID))
	return p, nil
}

// owned возвращает платёж владельца; чужой платёж неотличим от отсутствующего.
func (s *Service) owned(ctx context.Context, caller models.Claims, paymentID string) (models.Payment, error) {
	if _, err := uuid.Parse(paymentID); err != nil {
		return models.Payment{}, storage.ErrNotFound
	}
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return models.Payment{}, err
	}
	if p.UserID != caller.UserID {
		return models.Payment{}, storage.ErrNotFound
	}
	return p, nil
}

// Get возвращает платёж владельца.
func (s *Service) Get(ctx context.Context, caller models.Claims, paymentID string) (models.Payment, error) {
	const op = "payment.Get"
	p, err := s.owned(ctx, caller, paymentID)
	if err != nil {
		return models.Payment{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// List возвращает платежи пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userID string, page pagination.Params) ([]models.Payment, error) {
	const op = "payment.List"
	payments, err := s.repo.ListPaymentsByUser(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return payments, nil
}

// settle выполняет переход по событию провайдера. Повторная доставка того же
// события не считается ошибкой.
func (s *Service) settle(ctx context.Context, paymentID string, from []models.PaymentStatus,
	to models.PaymentStatus, reason string) (bool, error) {
	_, err := s.repo.TransitionPayment(ctx, paymentID, from, to, reason, s.now().UTC())
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, errInvalidTransition) {
		return false, err
	}
	current, getErr := s.repo.GetPayment(ctx, paymentID)
	if getErr != nil {
		return false, getErr
	}
	if current.Status == to {
		return false, nil
	}
	return false, err
}
