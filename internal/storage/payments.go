package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
)

const paymentColumns = `p.id, p.order_id, p.user_id, p.amount, p.discount, p.currency, p.promo_code, p.status,
	p.metadata, p.created_at, p.updated_at,
	(SELECT COALESCE(string_agg(s.id::text, ',' ORDER BY s.created_at, s.id), '')
	 FROM subscriptions s WHERE s.payment_id = p.id)`

// appendHistory дописывает JSON-массив из параметра $n к metadata.history.
func appendHistory(n int) string {
	return fmt.Sprintf(
		`jsonb_set(p.metadata, '{history}', COALESCE(p.metadata->'history', '[]'::jsonb) || $%d::jsonb)`, n)
}

func historyJSON(status models.PaymentStatus, reason string, at time.Time) (string, error) {
	b, err := json.Marshal([]models.StatusChange{{Status: status, At: at.UTC(), Reason: reason}})
	if err != nil {
		return "", fmt.Errorf("marshal payment history: %w", err)
	}
	return string(b), nil
}

func scanPayment(row rowScanner) (models.Payment, error) {
	var (
		p        models.Payment
		metadata []byte
		subIDs   string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Discount, &p.Currency, &p.PromoCode,
		&p.Status, &metadata, &p.CreatedAt, &p.UpdatedAt, &subIDs); err != nil {
		return p, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return p, fmt.Errorf("decode payment metadata: %w", err)
		}
	}
	p.SubscriptionIDs = []string{}
	if subIDs != "" {
		p.SubscriptionIDs = strings.Split(subIDs, ",")
	}
	return p, nil
}

// GetPayment возвращает платёж по идентификатору.
func (s *Storage) GetPayment(ctx context.Context, id string) (models.Payment, error) {
	const op = "storage.GetPayment"
	var p models.Payment
	err := s.query(ctx, op, func(q querier) error {
		var err error
		p, err = scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = $1`, id))
		return err
	})
	return p, err
}

// GetPaymentByOrderID возвращает платёж по уникальному номеру заказа.
func (s *Storage) GetPaymentByOrderID(ctx context.Context, orderID string) (models.Payment, error) {
	const op = "storage.GetPaymentByOrderID"
	var p models.Payment
	err := s.query(ctx, op, func(q querier) error {
		var err error
		p, err = scanPayment(q.QueryRowContext(ctx,
			`SELECT `+paymentColumns+` FROM payments p WHERE p.order_id = $1`, orderID))
		return err
	})
	return p, err
}

// ListPaymentsByUser возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPaymentsByUser(ctx context.Context, userID string, page pagination.Params) ([]models.Payment, error) {
	const op = "storage.ListPaymentsByUser"
	var payments []models.Payment
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+paymentColumns+` FROM payments p
			 WHERE p.user_id = $1
			 ORDER BY p.created_at DESC, p.id
			 LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPayment(rows)
			if err != nil {
				return err
			}
			payments = append(payments, p)
		}
		return rows.Err()
	})
	return payments, err
}

// TransitionPayment переводит платёж в статус to, если текущий статус входит в from.
// Предыдущие статусы не перезаписываются: переход дописывается в metadata.history.
// Неподходящий текущий статус — Conflict(INVALID_TRANSITION).
// Брошенный без оплаты заказ возвращает использование промокода в той же транзакции.
func (s *Storage) TransitionPayment(ctx context.Context, id string, from []models.PaymentStatus,
	to models.PaymentStatus, reason string, now time.Time) (models.Payment, error) {
	const op = "storage.TransitionPayment"
	history, err := historyJSON(to, reason, now)
	if err != nil {
		return models.Payment{}, fmt.Errorf("%s: %w", op, err)
	}
	var p models.Payment
	err = s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		p, err = scanPayment(tx.QueryRowContext(ctx,
			`UPDATE payments AS p
			 SET status = $2, updated_at = $3, metadata = `+appendHistory(4)+`
			 WHERE p.id = $1 AND p.status = ANY($5)
			 RETURNING `+paymentColumns,
			id, to, now, history, paymentStatusNames(from)))
		if err == nil {
			if to.Abandoned() && p.PromoCode != "" {
				return releasePromo(ctx, tx, p.PromoCode)
			}
			return nil
		}
		if !isNoRows(err) {
			return err
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return errInvalidTransition
	})
	return p, err
}

func paymentStatusNames(statuses []models.PaymentStatus) []string {
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, string(st))
	}
	return names
}

func capturableStatuses() []string {
	var names []string
	for _, st := range []models.PaymentStatus{
		models.PaymentCreated, models.PaymentAttempted, models.PaymentAuthorized, models.PaymentPending,
		models.PaymentFailed, models.PaymentCaptured, models.PaymentCancelled, models.PaymentRefunded,
		models.PaymentExpired,
	} {
		if st.Capturable() {
			names = append(names, string(st))
		}
	}
	return names
}
