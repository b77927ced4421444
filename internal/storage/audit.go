package storage

import (
	"context"
	"database/sql"

	"github.com/finwire/finwire/internal/models"
)

const auditColumns = `seq, subscription_id, user_id, product_id, from_status, to_status, triggered_by, actor_id, created_at`

func scanAudit(row rowScanner) (models.AuditEntry, error) {
	var (
		e     models.AuditEntry
		actor sql.NullString
	)
	err := row.Scan(&e.Seq, &e.SubscriptionID, &e.UserID, &e.ProductID, &e.FromStatus, &e.ToStatus,
		&e.TriggeredBy, &actor, &e.CreatedAt)
	e.ActorID = actor.String
	return e, err
}

// insertAudit добавляет запись в журнал. Порядок задаёт seq,
// строка подписки не блокируется.
func insertAudit(ctx context.Context, q querier, e models.AuditEntry) (models.AuditEntry, error) {
	return scanAudit(q.QueryRowContext(ctx,
		`INSERT INTO subscription_audit
		     (subscription_id, user_id, product_id, from_status, to_status, triggered_by, actor_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+auditColumns,
		e.SubscriptionID, e.UserID, e.ProductID, e.FromStatus, e.ToStatus, e.TriggeredBy,
		nullString(e.ActorID), e.CreatedAt))
}

// AuditHistory возвращает журнал подписки, новые записи первыми.
func (s *Storage) AuditHistory(ctx context.Context, subscriptionID string) ([]models.AuditEntry, error) {
	const op = "storage.AuditHistory"
	var entries []models.AuditEntry
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+auditColumns+` FROM subscription_audit
			 WHERE subscription_id = $1
			 ORDER BY seq DESC`, subscriptionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanAudit(rows)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	return entries, err
}
