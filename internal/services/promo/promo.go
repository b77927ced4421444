// Package promo — промокоды: управление и проверка.
// Использование учитывается при оформлении заказа в транзакции хранилища.
package promo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/storage"
)

// Repository — хранилище промокодов.
type Repository interface {
	CreatePromo(ctx context.Context, p models.PromoCode) (models.PromoCode, error)
	UpdatePromo(ctx context.Context, p models.PromoCode) (models.PromoCode, error)
	DeletePromo(ctx context.Context, code string) error
	GetPromo(ctx context.Context, code string) (models.PromoCode, error)
	ListPromos(ctx context.Context, page pagination.Params) ([]models.PromoCode, error)
}

// Service — бизнес-логика промокодов.
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Quote — расчёт скидки для суммы.
type Quote struct {
	Code     string `json:"code"`
	Amount   int64  `json:"amount"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

func validate(p models.PromoCode) error {
	if models.NormalizeCode(p.Code) == "" {
		return apperr.Validation("code is required")
	}
	switch p.DiscountType {
	case models.DiscountFlat:
		if p.DiscountValue <= 0 {
			return apperr.Validation("flat discount must be positive")
		}
	case models.DiscountPercentage:
		if p.DiscountValue <= 0 || p.DiscountValue > 100 {
			return apperr.Validation("percentage discount must be within 1..100")
		}
	default:
		return apperr.Validation("unknown discount type")
	}
	if p.ValidFrom != nil && p.ValidUntil != nil && !p.ValidUntil.After(*p.ValidFrom) {
		return apperr.Validation("valid_until must be after valid_from")
	}
	if p.UsageLimit != nil && *p.UsageLimit < 1 {
		return apperr.Validation("usage limit must be at least 1")
	}
	return nil
}

// Create заводит промокод. Код уникален без учёта регистра.
func (s *Service) Create(ctx context.Context, p models.PromoCode) (models.PromoCode, error) {
	const op = "promo.Create"
	if err := validate(p); err != nil {
		return models.PromoCode{}, err
	}
	created, err := s.repo.CreatePromo(ctx, p)
	if err != nil {
		return models.PromoCode{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("promo code created", slog.String("code", created.Code))
	return created, nil
}

// Update меняет условия промокода.
func (s *Service) Update(ctx context.Context, p models.PromoCode) (models.PromoCode, error) {
	const op = "promo.Update"
	if err := validate(p); err != nil {
		return models.PromoCode{}, err
	}
	updated, err := s.repo.UpdatePromo(ctx, p)
	if err != nil {
		return models.PromoCode{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, code string) error {
	const op = "promo.Delete"
	if err := s.repo.DeletePromo(ctx, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, code string) (models.PromoCode, error) {
	const op = "promo.Get"
	p, err := s.repo.GetPromo(ctx, code)
	if err != nil {
		return models.PromoCode{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, page pagination.Params) ([]models.PromoCode, error) {
	const op = "promo.List"
	promos, err := s.repo.ListPromos(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if promos == nil {
		promos = []models.PromoCode{}
	}
	return promos, nil
}

// Validate проверяет промокод и считает скидку, не погашая его.
func (s *Service) Validate(ctx context.Context, code string, amount int64) (Quote, error) {
	const op = "promo.Validate"
	if amount < 0 {
		return Quote{}, apperr.Validation("amount must not be negative")
	}
	p, err := s.repo.GetPromo(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return Quote{}, storage.ErrPromoInvalid
	}
	if err != nil {
		return Quote{}, fmt.Errorf("%s: %w", op, err)
	}
	if !p.ValidAt(s.now()) {
		return Quote{}, storage.ErrPromoInvalid
	}
	if p.Exhausted() {
		return Quote{}, storage.ErrPromoExhausted
	}
	discount := p.Discount(amount)
	return Quote{Code: p.Code, Amount: amount, Discount: discount, Total: amount - discount}, nil
}

// Quote возвращает только размер скидки.
func (s *Service) Quote(ctx context.Context, code string, amount int64) (int64, error) {
	q, err := s.Validate(ctx, code, amount)
	if err != nil {
		return 0, err
	}
	return q.Discount, nil
}
