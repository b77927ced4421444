// Package support — обращения пользователей в поддержку.
package support

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/finwire/finwire/internal/authz"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/storage"
)

const (
	MaxSubjectLength = 200
	MaxBodyLength    = 10000
)

// Repository — хранилище тикетов.
type Repository interface {
	CreateTicket(ctx context.Context, t models.Ticket, first models.TicketMessage) (models.Ticket, error)
	AddTicketMessage(ctx context.Context, m models.TicketMessage) (models.TicketMessage, error)
	SetTicketStatus(ctx context.Context, id string, status models.TicketStatus, now time.Time) error
	GetTicket(ctx context.Context, id string) (models.Ticket, error)
	ListTickets(ctx context.Context, userID string, page pagination.Params) ([]models.Ticket, error)
	MarkTicketRead(ctx context.Context, ticketID, readerID string, now time.Time) (int64, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

func checkBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", apperr.Validation("message body is required")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return "", apperr.Validation(fmt.Sprintf("message body exceeds %d characters", MaxBodyLength))
	}
	return body, nil
}

// Create открывает тикет с первым сообщением пользователя.
func (s *Service) Create(ctx context.Context, caller models.Claims, subject, body string) (models.Ticket, error) {
	const op = "support.Create"
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return models.Ticket{}, apperr.Validation("subject is required")
	}
	if utf8.RuneCountInString(subject) > MaxSubjectLength {
		return models.Ticket{}, apperr.Validation(fmt.Sprintf("subject exceeds %d characters", MaxSubjectLength))
	}
	body, err := checkBody(body)
	if err != nil {
		return models.Ticket{}, err
	}

	now := s.now().UTC()
	ticket, err := s.repo.CreateTicket(ctx,
		models.Ticket{UserID: caller.UserID, Subject: subject, CreatedAt: now},
		models.TicketMessage{AuthorID: caller.UserID, Body: body, CreatedAt: now})
	if err != nil {
		return models.Ticket{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("ticket created", slog.String("ticket_id", ticket.ID), slog.String("user_id", caller.UserID))
	return ticket, nil
}

// visible возвращает тикет, если caller — его автор или сотрудник поддержки.
func (s *Service) visible(ctx context.Context, caller models.Claims, ticketID string) (models.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return models.Ticket{}, storage.ErrNotFound
	}
	t, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !authz.CanActOnOwned(caller, t.UserID) {
		return models.Ticket{}, storage.ErrNotFound
	}
	return t, nil
}

// Get возвращает тикет с перепиской.
func (s *Service) Get(ctx context.Context, caller models.Claims, ticketID string) (models.Ticket, error) {
	const op = "support.Get"
	t, err := s.visible(ctx, caller, ticketID)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// Reply добавляет сообщение. Ответ сотрудника помечается IsAdmin.
func (s *Service) Reply(ctx context.Context, caller models.Claims, ticketID, body string) (models.TicketMessage, error) {
	const op = "support.Reply"
	body, err := checkBody(body)
	if err != nil {
		return models.TicketMessage{}, err
	}
	if _, err := s.visible(ctx, caller, ticketID); err != nil {
		return models.TicketMessage{}, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := s.repo.AddTicketMessage(ctx, models.TicketMessage{
		TicketID:  ticketID,
		AuthorID:  caller.UserID,
		IsAdmin:   authz.Staff(caller),
		Body:      body,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return models.TicketMessage{}, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

// List возвращает тикеты пользователя, а сотруднику — все тикеты.
func (s *Service) List(ctx context.Context, caller models.Claims, page pagination.Params) ([]models.Ticket, error) {
	const op = "support.List"
	owner := caller.UserID
	if authz.Staff(caller) {
		owner = ""
	}
	tickets, err := s.repo.ListTickets(ctx, owner, page)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

// MarkRead отмечает прочтение чужих сообщений тикета. Возвращает число новых отметок.
func (s *Service) MarkRead(ctx context.Context, caller models.Claims, ticketID string) (int64, error) {
	const op = "support.MarkRead"
	if _, err := s.visible(ctx, caller, ticketID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := s.repo.MarkTicketRead(ctx, ticketID, caller.UserID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// SetStatus открывает или закрывает тикет. Закрыть тикет может и его автор.
func (s *Service) SetStatus(ctx context.Context, caller models.Claims, ticketID string, status models.TicketStatus) error {
	const op = "support.SetStatus"
	if status != models.TicketOpen && status != models.TicketClosed {
		return apperr.Validation("status must be open or closed")
	}
	if _, err := s.visible(ctx, caller, ticketID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetTicketStatus(ctx, ticketID, status, s.now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
