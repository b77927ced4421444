// Package support реализует HTTP-обработчики обращений в поддержку.
// Одни и те же обработчики обслуживают пользователя и администратора:
// видимость тикетов решает сервис по claims.
package support

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
)

// Service — бизнес-логика тикетов.
type Service interface {
	Create(ctx context.Context, caller models.Claims, subject, body string) (models.Ticket, error)
	Get(ctx context.Context, caller models.Claims, ticketID string) (models.Ticket, error)
	Reply(ctx context.Context, caller models.Claims, ticketID, body string) (models.TicketMessage, error)
	List(ctx context.Context, caller models.Claims, page pagination.Params) ([]models.Ticket, error)
	MarkRead(ctx context.Context, caller models.Claims, ticketID string) (int64, error)
	SetStatus(ctx context.Context, caller models.Claims, ticketID string, status models.TicketStatus) error
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// CreateRequest — новый тикет.
type CreateRequest struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required,max=10000"`
}

// ReplyRequest — сообщение в тикет.
type ReplyRequest struct {
	Body string `json:"body" validate:"required,max=10000"`
}

// StatusRequest — смена статуса тикета.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open closed"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Create godoc
// @Summary Создать обращение
// @Tags Support
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Тема и текст"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /api/user/support/tickets [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.support.Create")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req CreateRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	ticket, err := h.service.Create(r.Context(), claims, req.Subject, req.Body)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.Created(w, r, ticket)
}

// List godoc
// @Summary Список обращений
// @Description Пользователь видит свои обращения, администратор все.
// @Tags Support
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/user/support/tickets [get]
// @Router /api/admin/support/tickets [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.support.List")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	tickets, err := h.service.List(r.Context(), claims, pagination.FromRequest(r))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, tickets)
}

// Get godoc
// @Summary Обращение с сообщениями
// @Tags Support
// @Produce json
// @Param id path string true "ID тикета"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/user/support/tickets/{id} [get]
// @Router /api/admin/support/tickets/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.support.Get")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	ticket, err := h.service.Get(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, ticket)
}

// Reply godoc
// @Summary Ответить в обращение
// @Tags Support
// @Accept json
// @Produce json
// @Param id path string true "ID тикета"
// @Param request body ReplyRequest true "Текст"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/user/support/tickets/{id}/messages [post]
// @Router /api/admin/support/tickets/{id}/messages [post]
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.support.Reply")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req ReplyRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	msg, err := h.service.Reply(r.Context(), claims, chi.URLParam(r, "id"), req.Body)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.Created(w, r, msg)
}

// MarkRead godoc
// @Summary Отметить сообщения прочитанными
// @Tags Support
// @Produce json
// @Param id path string true "ID тикета"
// @Success 200 {object} response.Response
// @Router /api/user/support/tickets/{id}/read [post]
// @Router /api/admin/support/tickets/{id}/read [post]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.support.MarkRead")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	n, err := h.service.MarkRead(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, map[string]int64{"marked": n})
}

// SetStatus godoc
// @Summary Открыть или закрыть обращение
// @Tags Support
// @Accept json
// @Param id path string true "ID тикета"
// @Param request body StatusRequest true "Статус"
// @Success 200 {object} response.Response
// @Router /api/user/support/tickets/{id}/status [patch]
// @Router /api/admin/support/tickets/{id}/status [patch]
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.support.SetStatus")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req StatusRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	if err := h.service.SetStatus(r.Context(), claims, chi.URLParam(r, "id"), models.TicketStatus(req.Status)); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, nil)
}
