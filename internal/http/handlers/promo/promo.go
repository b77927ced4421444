// Package promo реализует HTTP-обработчики промокодов: проверку кода
// пользователем и администрирование.
package promo

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	promoservice "github.com/finwire/finwire/internal/services/promo"
)

type Service interface {
	Create(ctx context.Context, p models.PromoCode) (models.PromoCode, error)
	Update(ctx context.Context, p models.PromoCode) (models.PromoCode, error)
	Delete(ctx context.Context, code string) error
	Get(ctx context.Context, code string) (models.PromoCode, error)
	List(ctx context.Context, page pagination.Params) ([]models.PromoCode, error)
	Validate(ctx context.Context, code string, amount int64) (promoservice.Quote, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ValidateRequest — проверка кода для суммы заказа в минорных единицах.
type ValidateRequest struct {
	Code   string `json:"code" validate:"required,max=64"`
	Amount int64  `json:"amount" validate:"min=0"`
}

// PromoRequest — условия промокода.
type PromoRequest struct {
	Code          string     `json:"code" validate:"required,max=64"`
	DiscountType  string     `json:"discount_type" validate:"required,oneof=flat percentage"`
	DiscountValue int64      `json:"discount_value" validate:"required,min=1"`
	ValidFrom     *time.Time `json:"valid_from"`
	ValidUntil    *time.Time `json:"valid_until"`
	UsageLimit    *int       `json:"usage_limit" validate:"omitempty,min=1"`
	IsActive      *bool      `json:"is_active"`
}

func (p PromoRequest) model() models.PromoCode {
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return models.PromoCode{
		Code:          models.NormalizeCode(p.Code),
		DiscountType:  models.DiscountType(p.DiscountType),
		DiscountValue: p.DiscountValue,
		ValidFrom:     p.ValidFrom,
		ValidUntil:    p.ValidUntil,
		UsageLimit:    p.UsageLimit,
		IsActive:      active,
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Validate godoc
// @Summary Проверить промокод
// @Description Считает скидку, не погашая код.
// @Tags Promo
// @Accept json
// @Produce json
// @Param request body ValidateRequest true "Код и сумма"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Лимит использований исчерпан"
// @Router /api/user/promo-codes/validate [post]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.promo.Validate")
	var req ValidateRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	quote, err := h.service.Validate(r.Context(), req.Code, req.Amount)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, quote)
}

// List godoc
// @Summary Промокоды
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/admin/promo-codes [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.promo.List")
	promos, err := h.service.List(r.Context(), pagination.FromRequest(r))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, promos)
}

// Get godoc
// @Summary Промокод
// @Tags Admin
// @Produce json
// @Param code path string true "Код"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/admin/promo-codes/{code} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.promo.Get")
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, p)
}

// Create godoc
// @Summary Создать промокод
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body PromoRequest true "Промокод"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.ErrorResponse
// @Router /api/admin/promo-codes [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.promo.Create")
	var req PromoRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	p, err := h.service.Create(r.Context(), req.model())
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.Created(w, r, p)
}

// Update godoc
// @Summary Изменить промокод
// @Tags Admin
// @Accept json
// @Produce json
// @Param code path string true "Код"
// @Param request body PromoRequest true "Промокод"
// @Success 200 {object} response.Response
// @Router /api/admin/promo-codes/{code} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.promo.Update")
	var req PromoRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	p := req.model()
	// код в пути главнее кода в теле
	p.Code = models.NormalizeCode(chi.URLParam(r, "code"))
	updated, err := h.service.Update(r.Context(), p)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, updated)
}

// Delete godoc
// @Summary Удалить промокод
// @Tags Admin
// @Param code path string true "Код"
// @Success 200 {object} response.Response
// @Router /api/admin/promo-codes/{code} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.promo.Delete")
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, nil)
}
