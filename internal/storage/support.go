package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
)

const ticketColumns = `id, user_id, subject, status, created_at, updated_at`

func scanTicket(row rowScanner) (models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func insertMessage(ctx context.Context, q querier, m models.TicketMessage) (models.TicketMessage, error) {
	var saved models.TicketMessage
	err := q.QueryRowContext(ctx,
		`INSERT INTO ticket_messages (ticket_id, author_id, is_admin, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, ticket_id, author_id, is_admin, body, created_at`,
		m.TicketID, m.AuthorID, m.IsAdmin, m.Body, m.CreatedAt,
	).Scan(&saved.ID, &saved.TicketID, &saved.AuthorID, &saved.IsAdmin, &saved.Body, &saved.CreatedAt)
	saved.ReadBy = []models.ReadReceipt{}
	return saved, err
}

// CreateTicket создаёт тикет вместе с первым сообщением.
func (s *Storage) CreateTicket(ctx context.Context, t models.Ticket, first models.TicketMessage) (models.Ticket, error) {
	const op = "storage.CreateTicket"
	var created models.Ticket
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		created, err = scanTicket(tx.QueryRowContext(ctx,
			`INSERT INTO tickets (user_id, subject, status, created_at, updated_at)
			 VALUES ($1, $2, 'open', $3, $3)
			 RETURNING `+ticketColumns,
			t.UserID, t.Subject, t.CreatedAt))
		if err != nil {
			return err
		}
		first.TicketID = created.ID
		msg, err := insertMessage(ctx, tx, first)
		if err != nil {
			return err
		}
		created.Messages = []models.TicketMessage{msg}
		return nil
	})
	return created, err
}

// AddTicketMessage добавляет сообщение и обновляет updated_at тикета.
// Ответ в закрытый тикет открывает его снова.
func (s *Storage) AddTicketMessage(ctx context.Context, m models.TicketMessage) (models.TicketMessage, error) {
	const op = "storage.AddTicketMessage"
	var saved models.TicketMessage
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tickets SET updated_at = $2, status = 'open' WHERE id = $1`, m.TicketID, m.CreatedAt)
		if err != nil {
			return err
		}
		if err := mustAffect(res); err != nil {
			return err
		}
		saved, err = insertMessage(ctx, tx, m)
		return err
	})
	return saved, err
}

// SetTicketStatus меняет статус тикета.
func (s *Storage) SetTicketStatus(ctx context.Context, id string, status models.TicketStatus, now time.Time) error {
	const op = "storage.SetTicketStatus"
	return s.query(ctx, op, func(q querier) error {
		res, err := q.ExecContext(ctx, `UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now)
		if err != nil {
			return err
		}
		return mustAffect(res)
	})
}

// GetTicket возвращает тикет с сообщениями и отметками о прочтении.
func (s *Storage) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	const op = "storage.GetTicket"
	var t models.Ticket
	err := s.query(ctx, op, func(q querier) error {
		var err error
		t, err = scanTicket(q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
		if err != nil {
			return err
		}

		rows, err := q.QueryContext(ctx,
			`SELECT m.id, m.ticket_id, m.author_id, m.is_admin, m.body, m.created_at, r.user_id, r.read_at
			 FROM ticket_messages m
			 LEFT JOIN ticket_reads r ON r.message_id = m.id
			 WHERE m.ticket_id = $1
			 ORDER BY m.created_at, m.id, r.read_at`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		t.Messages = []models.TicketMessage{}
		for rows.Next() {
			var (
				m      models.TicketMessage
				reader sql.NullString
				readAt sql.NullTime
			)
			if err := rows.Scan(&m.ID, &m.TicketID, &m.AuthorID, &m.IsAdmin, &m.Body, &m.CreatedAt,
				&reader, &readAt); err != nil {
				return err
			}
			if n := len(t.Messages); n == 0 || t.Messages[n-1].ID != m.ID {
				m.ReadBy = []models.ReadReceipt{}
				t.Messages = append(t.Messages, m)
			}
			if reader.Valid {
				last := &t.Messages[len(t.Messages)-1]
				last.ReadBy = append(last.ReadBy, models.ReadReceipt{UserID: reader.String, ReadAt: readAt.Time})
			}
		}
		return rows.Err()
	})
	return t, err
}

// ListTickets возвращает тикеты, недавно обновлённые первыми. Пустой userID — все тикеты.
func (s *Storage) ListTickets(ctx context.Context, userID string, page pagination.Params) ([]models.Ticket, error) {
	const op = "storage.ListTickets"
	var tickets []models.Ticket
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+ticketColumns+` FROM tickets
			 WHERE ($1::text = '' OR user_id::text = $1)
			 ORDER BY updated_at DESC, id
			 LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTicket(rows)
			if err != nil {
				return err
			}
			tickets = append(tickets, t)
		}
		return rows.Err()
	})
	return tickets, err
}

// MarkTicketRead отмечает прочтение readerID всех чужих сообщений тикета.
// Отметка добавляется не более одного раза на читателя и никогда не перезаписывается.
func (s *Storage) MarkTicketRead(ctx context.Context, ticketID, readerID string, now time.Time) (int64, error) {
	const op = "storage.MarkTicketRead"
	var marked int64
	err := s.query(ctx, op, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`INSERT INTO ticket_reads (message_id, user_id, read_at)
			 SELECT m.id, $2, $3 FROM ticket_messages m
			 WHERE m.ticket_id = $1 AND m.author_id <> $2
			 ON CONFLICT (message_id, user_id) DO NOTHING`, ticketID, readerID, now)
		if err != nil {
			return err
		}
		marked, err = affected(res)
		return err
	})
	return marked, err
}
