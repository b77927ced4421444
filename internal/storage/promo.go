package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
)

const promoColumns = `code, discount_type, discount_value, valid_from, valid_until, usage_limit, usage_count, is_active, created_at`

var (
	ErrPromoExhausted = apperr.Conflict("promo code usage limit exceeded").WithReason(apperr.ReasonUsageLimitExceeded)
	ErrPromoInvalid   = apperr.Validation("promo code is not valid")
)

func scanPromo(row rowScanner) (models.PromoCode, error) {
	var (
		p           models.PromoCode
		from, until sql.NullTime
		limit       sql.NullInt64
	)
	if err := row.Scan(&p.Code, &p.DiscountType, &p.DiscountValue, &from, &until, &limit,
		&p.UsageCount, &p.IsActive, &p.CreatedAt); err != nil {
		return p, err
	}
	if from.Valid {
		t := from.Time
		p.ValidFrom = &t
	}
	if until.Valid {
		t := until.Time
		p.ValidUntil = &t
	}
	if limit.Valid {
		l := int(limit.Int64)
		p.UsageLimit = &l
	}
	return p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// CreatePromo вставляет промокод; код приводится к верхнему регистру. Повтор — Conflict.
func (s *Storage) CreatePromo(ctx context.Context, p models.PromoCode) (models.PromoCode, error) {
	const op = "storage.CreatePromo"
	var created models.PromoCode
	err := s.query(ctx, op, func(q querier) error {
		var err error
		created, err = scanPromo(q.QueryRowContext(ctx,
			`INSERT INTO promo_codes (code, discount_type, discount_value, valid_from, valid_until, usage_limit, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+promoColumns,
			models.NormalizeCode(p.Code), p.DiscountType, p.DiscountValue,
			nullTime(p.ValidFrom), nullTime(p.ValidUntil), nullInt(p.UsageLimit), p.IsActive))
		return err
	})
	return created, err
}

// UpdatePromo перезаписывает условия промокода; счётчик использований не меняется.
// Лимит ниже текущего счётчика отклоняется ограничением таблицы.
func (s *Storage) UpdatePromo(ctx context.Context, p models.PromoCode) (models.PromoCode, error) {
	const op = "storage.UpdatePromo"
	var updated models.PromoCode
	err := s.query(ctx, op, func(q querier) error {
		var err error
		updated, err = scanPromo(q.QueryRowContext(ctx,
			`UPDATE promo_codes
			 SET discount_type = $2, discount_value = $3, valid_from = $4, valid_until = $5,
			     usage_limit = $6, is_active = $7
			 WHERE code = $1
			 RETURNING `+promoColumns,
			models.NormalizeCode(p.Code), p.DiscountType, p.DiscountValue,
			nullTime(p.ValidFrom), nullTime(p.ValidUntil), nullInt(p.UsageLimit), p.IsActive))
		return err
	})
	return updated, err
}

// DeletePromo удаляет промокод.
func (s *Storage) DeletePromo(ctx context.Context, code string) error {
	const op = "storage.DeletePromo"
	return s.query(ctx, op, func(q querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM promo_codes WHERE code = $1`, models.NormalizeCode(code))
		if err != nil {
			return err
		}
		return mustAffect(res)
	})
}

// GetPromo возвращает промокод без учёта регистра.
func (s *Storage) GetPromo(ctx context.Context, code string) (models.PromoCode, error) {
	const op = "storage.GetPromo"
	var p models.PromoCode
	err := s.query(ctx, op, func(q querier) error {
		var err error
		p, err = scanPromo(q.QueryRowContext(ctx,
			`SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, models.NormalizeCode(code)))
		return err
	})
	return p, err
}

// ListPromos возвращает промокоды, новые первыми.
func (s *Storage) ListPromos(ctx context.Context, page pagination.Params) ([]models.PromoCode, error) {
	const op = "storage.ListPromos"
	var promos []models.PromoCode
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC, code LIMIT $1 OFFSET $2`,
			page.Limit, page.Offset())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPromo(rows)
			if err != nil {
				return err
			}
			promos = append(promos, p)
		}
		return rows.Err()
	})
	return promos, err
}

// redeemPromo увеличивает usage_count одним условным UPDATE: при гонке двух
// погашений последнего использования успешно только одно.
func redeemPromo(ctx context.Context, q querier, code string, now time.Time) (models.PromoCode, error) {
	code = models.NormalizeCode(code)
	p, err := scanPromo(q.QueryRowContext(ctx,
		`UPDATE promo_codes
		 SET usage_count = usage_count + 1
		 WHERE code = $1 AND is_active
		   AND (usage_limit IS NULL OR usage_count < usage_limit)
		   AND (valid_from IS NULL OR valid_from <= $2)
		   AND (valid_until IS NULL OR valid_until > $2)
		 RETURNING `+promoColumns, code, now))
	if err == nil || !isNoRows(err) {
		return p, err
	}

	current, err := scanPromo(q.QueryRowContext(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
	if err != nil {
		return models.PromoCode{}, err
	}
	if current.Exhausted() {
		return models.PromoCode{}, ErrPromoExhausted
	}
	return models.PromoCode{}, ErrPromoInvalid
}

// releasePromo возвращает одно использование промокода брошенного заказа.
// Удалённый промокод не считается ошибкой.
func releasePromo(ctx context.Context, q querier, code string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE promo_codes SET usage_count = usage_count - 1
		 WHERE code = $1 AND usage_count > 0`, models.NormalizeCode(code))
	return err
}
