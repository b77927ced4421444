// Package subscriptions реализует HTTP-обработчики подписок: список своих
// подписок, отмену, журнал переходов и административные операции.
package subscriptions

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
	"github.com/finwire/finwire/internal/storage"
)

// Engine — операции движка подписок.
type Engine interface {
	ListForUser(ctx context.Context, userID string, page pagination.Params) ([]models.Subscription, error)
	ListAll(ctx context.Context, f storage.SubscriptionFilter) ([]models.Subscription, error)
	Get(ctx context.Context, subscriptionID string, caller models.Claims) (models.Subscription, error)
	Cancel(ctx context.Context, subscriptionID string, caller models.Claims) (models.Transition, error)
	Expire(ctx context.Context, subscriptionID string) (models.Transition, bool, error)
}

// History читает журнал переходов.
type History interface {
	History(ctx context.Context, subscriptionID string) ([]models.AuditEntry, error)
}

// Sweeper запускает сверку истёкших подписок вне расписания.
type Sweeper interface {
	RunSweep(ctx context.Context) (int, error)
}

// Handler обслуживает маршруты подписок.
type Handler struct {
	log     *slog.Logger
	engine  Engine
	history History
	sweeper Sweeper
}

// New создаёт Handler.
func New(log *slog.Logger, engine Engine, history History, sweeper Sweeper) *Handler {
	return &Handler{log: log, engine: engine, history: history, sweeper: sweeper}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List godoc
// @Summary Мои подписки
// @Tags Subscriptions
// @Produce json
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /api/user/subscriptions [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.List")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	subs, err := h.engine.ListForUser(r.Context(), claims.UserID, pagination.FromRequest(r))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, subs)
}

// AdminList godoc
// @Summary Все подписки
// @Tags Admin
// @Produce json
// @Param user_id query string false "Пользователь"
// @Param product_id query string false "Продукт"
// @Param status query string false "Статус"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /api/admin/subscriptions [get]
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.AdminList")
	q := r.URL.Query()

	subs, err := h.engine.ListAll(r.Context(), storage.SubscriptionFilter{
		UserID:    q.Get("user_id"),
		ProductID: q.Get("product_id"),
		Status:    models.SubscriptionStatus(q.Get("status")),
		Page:      pagination.FromRequest(r),
	})
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, subs)
}

// Cancel godoc
// @Summary Отменить подписку
// @Description Пользователь отменяет только свои подписки, администратор любые.
// @Tags Subscriptions
// @Produce json
// @Param id path string true "ID подписки"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/user/subscriptions/{id}/cancel [post]
// @Router /api/admin/subscriptions/{id}/cancel [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Cancel")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	tr, err := h.engine.Cancel(r.Context(), chi.URLParam(r, "id"), claims)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	log.Info("subscription cancelled", slog.String("subscription_id", tr.Subscription.ID), slog.String("actor", claims.UserID))
	response.OK(w, r, tr)
}

// ExpireResult — итог сверки срока одной подписки.
type ExpireResult struct {
	Expired    bool               `json:"expired"`
	Transition *models.Transition `json:"transition,omitempty"`
}

// Expire godoc
// @Summary Сверить срок одной подписки
// @Description Переводит подписку в expired, если end_date уже прошёл. Повторный вызов ничего не меняет.
// @Tags Admin
// @Produce json
// @Param id path string true "ID подписки"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/admin/subscriptions/{id}/expire [post]
func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Expire")

	tr, expired, err := h.engine.Expire(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	res := ExpireResult{Expired: expired}
	if expired {
		res.Transition = &tr
		log.Info("subscription expired", slog.String("subscription_id", tr.Subscription.ID))
	}
	response.OK(w, r, res)
}

// History godoc
// @Summary Журнал переходов подписки
// @Tags Subscriptions
// @Produce json
// @Param id path string true "ID подписки"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/user/subscriptions/{id}/history [get]
// @Router /api/admin/subscriptions/{id}/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.History")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	// Get проверяет владельца: чужая подписка выглядит как отсутствующая
	sub, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"), claims)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	entries, err := h.history.History(r.Context(), sub.ID)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, map[string]any{"subscription": sub, "history": entries})
}

// Sweep godoc
// @Summary Перевести истёкшие подписки в expired
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/admin/subscriptions/sweep [post]
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Sweep")
	n, err := h.sweeper.RunSweep(r.Context())
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, map[string]int{"expired": n})
}
