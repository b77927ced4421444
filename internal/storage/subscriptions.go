package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/month"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
)

const subscriptionColumns = `s.id, s.user_id, s.product_id, s.payment_id, s.status, s.duration_months,
	s.start_date, s.end_date, s.created_at, s.updated_at,
	COALESCE((SELECT pm.status FROM payments pm WHERE pm.id = s.payment_id), '')`

// Данные для уведомления о переходе; учётная запись может быть уже удалена.
const transitionExtras = `
	COALESCE((SELECT u.email FROM users u WHERE u.id = s.user_id), ''),
	COALESCE((SELECT u.name FROM users u WHERE u.id = s.user_id), ''),
	COALESCE((SELECT pr.heading FROM products pr WHERE pr.id = s.product_id), '')`

type subscriptionRow struct {
	sub        models.Subscription
	start, end sql.NullTime
}

func (r *subscriptionRow) dest() []any {
	return []any{&r.sub.ID, &r.sub.UserID, &r.sub.ProductID, &r.sub.PaymentID, &r.sub.Status,
		&r.sub.DurationMonths, &r.start, &r.end, &r.sub.CreatedAt, &r.sub.UpdatedAt, &r.sub.PaymentStatus}
}

func (r *subscriptionRow) value() models.Subscription {
	sub := r.sub
	if r.start.Valid {
		t := r.start.Time
		sub.StartDate = &t
	}
	if r.end.Valid {
		t := r.end.Time
		sub.EndDate = &t
	}
	return sub
}

func scanSubscription(row rowScanner) (models.Subscription, error) {
	var r subscriptionRow
	if err := row.Scan(r.dest()...); err != nil {
		return models.Subscription{}, err
	}
	return r.value(), nil
}

// scanTransition читает строку "from_status, <subscriptionColumns>, <transitionExtras>".
func scanTransition(row rowScanner) (models.Transition, error) {
	var (
		r  subscriptionRow
		tr models.Transition
	)
	dest := append([]any{&tr.From}, r.dest()...)
	dest = append(dest, &tr.Email, &tr.UserName, &tr.ProductHeading)
	if err := row.Scan(dest...); err != nil {
		return models.Transition{}, err
	}
	tr.Subscription = r.value()
	tr.To = tr.Subscription.Status
	return tr, nil
}

// journal пишет запись журнала для перехода и заполняет метку времени.
// Недопустимый переход откатывает всю транзакцию.
func journal(ctx context.Context, tx *sql.Tx, tr *models.Transition, trigger models.Trigger, actorID string, at time.Time) error {
	tr.Trigger = trigger
	tr.ActorID = actorID
	tr.At = at
	if !tr.Valid() {
		return errInvalidTransition
	}
	_, err := insertAudit(ctx, tx, models.NewAuditEntry(*tr))
	return err
}

// PendingOrder — данные нового заказа.
type PendingOrder struct {
	OrderID   string
	UserID    string
	Amount    int64
	Discount  int64
	Currency  string
	PromoCode string
	Products  []models.Product
	At        time.Time
}

// PendingResult — платёж заказа и его подписки.
// Created=false, если заказ с таким OrderID уже существовал.
type PendingResult struct {
	Payment       models.Payment
	Subscriptions []models.Subscription
	Created       bool
}

// CreatePending в одной транзакции создаёт платёж в статусе created и по одной
// подписке pending-payment на каждый продукт. Уникальный order_id служит ключом
// идемпотентности: повторный заказ возвращает существующие записи.
// Промокод погашается в той же транзакции.
func (s *Storage) CreatePending(ctx context.Context, order PendingOrder) (PendingResult, error) {
	const op = "storage.CreatePending"
	history, err := historyJSON(models.PaymentCreated, "", order.At)
	if err != nil {
		return PendingResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var result PendingResult
	err = s.withTx(ctx, op, func(tx *sql.Tx) error {
		payment, err := scanPayment(tx.QueryRowContext(ctx,
			`INSERT INTO payments AS p
			     (order_id, user_id, amount, discount, currency, promo_code, status, metadata, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, 'created', jsonb_build_object('history', $7::jsonb), $8, $8)
			 ON CONFLICT (order_id) DO NOTHING
			 RETURNING `+paymentColumns,
			order.OrderID, order.UserID, order.Amount, order.Discount, order.Currency, order.PromoCode,
			history, order.At))
		if isNoRows(err) {
			return s.loadExisting(ctx, tx, order, &result)
		}
		if err != nil {
			return err
		}

		if order.PromoCode != "" {
			if _, err := redeemPromo(ctx, tx, order.PromoCode, order.At); err != nil {
				return err
			}
		}

		for _, product := range order.Products {
			sub, err := scanSubscription(tx.QueryRowContext(ctx,
				`INSERT INTO subscriptions AS s
				     (user_id, product_id, payment_id, status, duration_months, created_at, updated_at)
				 VALUES ($1, $2, $3, 'pending-payment', $4, $5, $5)
				 RETURNING `+subscriptionColumns,
				order.UserID, product.ID, payment.ID, product.DurationMonths, order.At))
			if err != nil {
				return err
			}
			result.Subscriptions = append(result.Subscriptions, sub)
			payment.SubscriptionIDs = append(payment.SubscriptionIDs, sub.ID)
		}
		result.Payment = payment
		result.Created = true
		return nil
	})
	return result, err
}

func (s *Storage) loadExisting(ctx context.Context, tx *sql.Tx, order PendingOrder, result *PendingResult) error {
	payment, err := scanPayment(tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments p WHERE p.order_id = $1`, order.OrderID))
	if err != nil {
		return err
	}
	if payment.UserID != order.UserID {
		return errDuplicate
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions s
		 WHERE s.payment_id = $1 ORDER BY s.created_at, s.id`, payment.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return err
		}
		result.Subscriptions = append(result.Subscriptions, sub)
	}
	result.Payment = payment
	result.Created = false
	return rows.Err()
}

// ActivatePayment атомарно переводит платёж в captured, а его подписки
// pending-payment в active с start=now и end=now+срок, записывая журнал.
// Если платёж уже captured, вызов ничего не меняет и возвращает activated=false.
func (s *Storage) ActivatePayment(ctx context.Context, paymentID string, trigger models.Trigger,
	actorID string, now time.Time) ([]models.Transition, bool, error) {
	const op = "storage.ActivatePayment"
	history, err := historyJSON(models.PaymentCaptured, "", now)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var (
		transitions []models.Transition
		activated   bool
	)
	err = s.withTx(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE payments AS p
			 SET status = 'captured', updated_at = $2, metadata = `+appendHistory(3)+`
			 WHERE p.id = $1 AND p.status = ANY($4)`,
			paymentID, now, history, capturableStatuses())
		if err != nil {
			return err
		}
		n, err := affected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			var status models.PaymentStatus
			if err := tx.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = $1`, paymentID).Scan(&status); err != nil {
				return err
			}
			if status == models.PaymentCaptured {
				return nil
			}
			return errInvalidTransition
		}
		activated = true

		type pending struct {
			id     string
			months int
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT id, duration_months FROM subscriptions
			 WHERE payment_id = $1 AND status = 'pending-payment'
			 ORDER BY created_at, id
			 FOR UPDATE`, paymentID)
		if err != nil {
			return err
		}
		var subs []pending
		for rows.Next() {
			var p pending
			if err := rows.Scan(&p.id, &p.months); err != nil {
				_ = rows.Close()
				return err
			}
			subs = append(subs, p)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, p := range subs {
			tr, err := scanTransition(tx.QueryRowContext(ctx,
				`UPDATE subscriptions AS s
				 SET status = 'active', start_date = $2, end_date = $3, updated_at = $2
				 WHERE s.id = $1 AND s.status = 'pending-payment'
				 RETURNING 'pending-payment', `+subscriptionColumns+`, `+transitionExtras,
				p.id, now, month.Add(now, p.months)))
			if err != nil {
				return err
			}
			if err := journal(ctx, tx, &tr, trigger, actorID, now); err != nil {
				return err
			}
			transitions = append(transitions, tr)
		}
		return nil
	})
	return transitions, activated, err
}

// transitionWhere переводит в статус to все строки, выбранные условием where
// (параметры условия начинаются с $3), и пишет журнал для каждой.
// Строки блокируются; строки, переставшие подходить после ожидания блокировки, пропускаются.
func transitionWhere(ctx context.Context, tx *sql.Tx, where string, skipLocked bool, args []any,
	to models.SubscriptionStatus, trigger models.Trigger, actorID string, now time.Time) ([]models.Transition, error) {
	lock := "FOR UPDATE"
	if skipLocked {
		lock += " SKIP LOCKED"
	}
	rows, err := tx.QueryContext(ctx,
		`WITH target AS (
		     SELECT id, status FROM subscriptions WHERE `+where+` `+lock+`
		 )
		 UPDATE subscriptions AS s
		 SET status = $1, updated_at = $2
		 FROM target t
		 WHERE s.id = t.id
		 RETURNING t.status, `+subscriptionColumns+`, `+transitionExtras,
		append([]any{to, now}, args...)...)
	if err != nil {
		return nil, err
	}
	var transitions []models.Transition
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		transitions = append(transitions, tr)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range transitions {
		if err := journal(ctx, tx, &transitions[i], trigger, actorID, now); err != nil {
			return nil, err
		}
	}
	return transitions, nil
}

// ExpireSubscription переводит active-подписку с end_date <= now в expired.
// Для уже истёкшей или ещё действующей подписки возвращает ok=false без записи в журнал.
func (s *Storage) ExpireSubscription(ctx context.Context, id string, now time.Time) (models.Transition, bool, error) {
	const op = "storage.ExpireSubscription"
	var (
		tr models.Transition
		ok bool
	)
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		trs, err := transitionWhere(ctx, tx, `id = $3 AND status = 'active' AND end_date <= $2`, false,
			[]any{id}, models.SubscriptionExpired, models.TriggerSystemSweep, "", now)
		if err != nil {
			return err
		}
		if len(trs) == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return nil
		}
		tr, ok = trs[0], true
		return nil
	})
	return tr, ok, err
}

// SweepExpired переводит в expired до limit подписок с истёкшим end_date.
// Строки, заблокированные параллельным прогоном, пропускаются.
func (s *Storage) SweepExpired(ctx context.Context, now time.Time, limit int) ([]models.Transition, error) {
	const op = "storage.SweepExpired"
	var transitions []models.Transition
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		transitions, err = transitionWhere(ctx, tx,
			`status = 'active' AND end_date <= $2 ORDER BY end_date, id LIMIT $3`, true,
			[]any{limit}, models.SubscriptionExpired, models.TriggerSystemSweep, "", now)
		return err
	})
	return transitions, err
}

// CancelRequest — параметры отмены подписок.
// Задаётся ровно одно из SubscriptionID и PaymentID.
type CancelRequest struct {
	SubscriptionID string
	PaymentID      string
	// OwnerID ограничивает отмену подписками владельца.
	OwnerID string
	From    []models.SubscriptionStatus
	Trigger models.Trigger
	ActorID string
	At      time.Time
}

// CancelSubscriptions переводит выбранные подписки в cancelled.
// Для одной подписки: отсутствие (или чужая подписка) — NotFound,
// неподходящий статус — Conflict(INVALID_TRANSITION).
func (s *Storage) CancelSubscriptions(ctx context.Context, req CancelRequest) ([]models.Transition, error) {
	const op = "storage.CancelSubscriptions"
	if (req.SubscriptionID == "") == (req.PaymentID == "") {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("exactly one of subscription or payment is required"))
	}
	from := make([]string, 0, len(req.From))
	for _, st := range req.From {
		from = append(from, string(st))
	}

	var transitions []models.Transition
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		if req.PaymentID != "" {
			transitions, err = transitionWhere(ctx, tx,
				`payment_id = $3 AND status = ANY($4) AND ($5::text = '' OR user_id::text = $5)`, false,
				[]any{req.PaymentID, from, req.OwnerID}, models.SubscriptionCancelled, req.Trigger, req.ActorID, req.At)
			return err
		}

		transitions, err = transitionWhere(ctx, tx,
			`id = $3 AND status = ANY($4) AND ($5::text = '' OR user_id::text = $5)`, false,
			[]any{req.SubscriptionID, from, req.OwnerID}, models.SubscriptionCancelled, req.Trigger, req.ActorID, req.At)
		if err != nil || len(transitions) > 0 {
			return err
		}
		var owner string
		err = tx.QueryRowContext(ctx, `SELECT user_id FROM subscriptions WHERE id = $1`, req.SubscriptionID).Scan(&owner)
		if err != nil {
			return err
		}
		if req.OwnerID != "" && owner != req.OwnerID {
			return ErrNotFound
		}
		return errInvalidTransition
	})
	return transitions, err
}

// HasActiveAccess проверяет наличие подписки со статусом active и end_date > now.
// end_date сверяется при каждом вызове: статус может отставать до прогона sweeper-а.
func (s *Storage) HasActiveAccess(ctx context.Context, userID, productID string, now time.Time) (bool, error) {
	const op = "storage.HasActiveAccess"
	var ok bool
	err := s.query(ctx, op, func(q querier) error {
		return q.QueryRowContext(ctx,
			`SELECT EXISTS (
			     SELECT 1 FROM subscriptions
			     WHERE user_id = $1 AND product_id = $2 AND status = 'active' AND end_date > $3)`,
			userID, productID, now).Scan(&ok)
	})
	return ok, err
}

// GetSubscription возвращает подписку по идентификатору.
func (s *Storage) GetSubscription(ctx context.Context, id string) (models.Subscription, error) {
	const op = "storage.GetSubscription"
	var sub models.Subscription
	err := s.query(ctx, op, func(q querier) error {
		var err error
		sub, err = scanSubscription(q.QueryRowContext(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions s WHERE s.id = $1`, id))
		return err
	})
	return sub, err
}

// SubscriptionFilter — фильтр списка подписок; пустые поля не ограничивают выборку.
type SubscriptionFilter struct {
	UserID    string
	ProductID string
	Status    models.SubscriptionStatus
	Page      pagination.Params
}

// ListSubscriptions возвращает подписки, новые первыми.
func (s *Storage) ListSubscriptions(ctx context.Context, f SubscriptionFilter) ([]models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	var subs []models.Subscription
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions s
			 WHERE ($1::text = '' OR s.user_id::text = $1)
			   AND ($2::text = '' OR s.product_id::text = $2)
			   AND ($3::text = '' OR s.status = $3)
			 ORDER BY s.created_at DESC, s.id
			 LIMIT $4 OFFSET $5`,
			f.UserID, f.ProductID, string(f.Status), f.Page.Limit, f.Page.Offset())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			sub, err := scanSubscription(rows)
			if err != nil {
				return err
			}
			subs = append(subs, sub)
		}
		return rows.Err()
	})
	return subs, err
}

// ExpiringBetween возвращает действующие подписки с end_date в (from, to].
func (s *Storage) ExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ExpiryNotice, error) {
	const op = "storage.ExpiringBetween"
	var notices []models.ExpiryNotice
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT s.id, u.email, u.name, p.heading, s.end_date
			 FROM subscriptions s
			 JOIN users u ON u.id = s.user_id
			 JOIN products p ON p.id = s.product_id
			 WHERE s.status = 'active' AND s.end_date > $1 AND s.end_date <= $2 AND u.is_active
			 ORDER BY s.end_date, s.id`, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var n models.ExpiryNotice
			if err := rows.Scan(&n.SubscriptionID, &n.Email, &n.UserName, &n.ProductHeading, &n.EndDate); err != nil {
				return err
			}
			notices = append(notices, n)
		}
		return rows.Err()
	})
	return notices, err
}
