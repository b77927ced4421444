// Package payments реализует HTTP-обработчики оплаты: оформление заказа,
// смену статуса платежа пользователем и вебхук платёжного провайдера.
package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/lib/sl"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/payment"
	"github.com/finwire/finwire/internal/storage"
)

// maxWebhookBody ограничивает размер тела вебхука.
const maxWebhookBody = 1 << 20

type Service interface {
	Attempt(ctx context.Context, caller models.Claims, in payment.AttemptInput) (storage.PendingResult, error)
	MarkPending(ctx context.Context, caller models.Claims, paymentID string) (models.Payment, error)
	Fail(ctx context.Context, caller models.Claims, paymentID, reason string) (models.Payment, error)
	Cancel(ctx context.Context, caller models.Claims, paymentID, reason string) (models.Payment, error)
	Get(ctx context.Context, caller models.Claims, paymentID string) (models.Payment, error)
	List(ctx context.Context, userID string, page pagination.Params) ([]models.Payment, error)
	ProcessWebhookEvent(ctx context.Context, payload payment.Payload) (payment.WebhookResult, error)
}

type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

func New(log *slog.Logger, service Service, webhookSecret string) *Handler {
	return &Handler{log: log, service: service, webhookSecret: webhookSecret}
}

// AttemptRequest — оформление заказа на один или несколько продуктов.
type AttemptRequest struct {
	OrderID    string   `json:"order_id" validate:"max=64"`
	ProductIDs []string `json:"product_ids" validate:"required,min=1,max=20,dive,uuid"`
	PromoCode  string   `json:"promo_code" validate:"max=64"`
	Currency   string   `json:"currency" validate:"omitempty,len=3"`
}

// StatusRequest — смена статуса платежа пользователем.
type StatusRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

// AttemptResponse — платёж и созданные подписки.
type AttemptResponse struct {
	Payment       models.Payment        `json:"payment"`
	Subscriptions []models.Subscription `json:"subscriptions"`
	Created       bool                  `json:"created"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Attempt godoc
// @Summary Оформить заказ
// @Description Создаёт платёж и подписки в статусе pending-payment. Повтор с тем же order_id возвращает существующий заказ.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body AttemptRequest true "Заказ"
// @Success 201 {object} response.Response "Новый заказ"
// @Success 200 {object} response.Response "Существующий заказ"
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/payments/attempt [post]
func (h *Handler) Attempt(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.Attempt")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req AttemptRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	res, err := h.service.Attempt(r.Context(), claims, payment.AttemptInput{
		OrderID:    req.OrderID,
		ProductIDs: req.ProductIDs,
		PromoCode:  req.PromoCode,
		Currency:   req.Currency,
	})
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	out := AttemptResponse{Payment: res.Payment, Subscriptions: res.Subscriptions, Created: res.Created}
	if out.Subscriptions == nil {
		out.Subscriptions = []models.Subscription{}
	}
	if res.Created {
		log.Info("order created", slog.String("payment_id", res.Payment.ID), slog.String("order_id", res.Payment.OrderID))
		response.Created(w, r, out)
		return
	}
	response.OK(w, r, out)
}

// Pending godoc
// @Summary Платёж ожидает подтверждения
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body StatusRequest true "Платёж"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Недопустимый переход"
// @Router /api/payments/pending [post]
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "handlers.payments.Pending", func(ctx context.Context, c models.Claims, req StatusRequest) (models.Payment, error) {
		return h.service.MarkPending(ctx, c, req.PaymentID)
	})
}

// Fail godoc
// @Summary Попытка оплаты не удалась
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body StatusRequest true "Платёж и причина"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/payments/fail [post]
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "handlers.payments.Fail", func(ctx context.Context, c models.Claims, req StatusRequest) (models.Payment, error) {
		return h.service.Fail(ctx, c, req.PaymentID, req.Reason)
	})
}

// Cancel godoc
// @Summary Отменить заказ
// @Description Отменяет платёж и неоплаченные подписки заказа.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body StatusRequest true "Платёж и причина"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/payments/cancel [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "handlers.payments.Cancel", func(ctx context.Context, c models.Claims, req StatusRequest) (models.Payment, error) {
		return h.service.Cancel(ctx, c, req.PaymentID, req.Reason)
	})
}

type transitionFunc func(ctx context.Context, claims models.Claims, req StatusRequest) (models.Payment, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn transitionFunc) {
	log := h.logger(r, op)
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req StatusRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	p, err := fn(r.Context(), claims, req)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, p)
}

// List godoc
// @Summary Мои платежи
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/payments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.List")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	list, err := h.service.List(r.Context(), claims.UserID, pagination.FromRequest(r))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, list)
}

// Get godoc
// @Summary Платёж
// @Tags Payments
// @Produce json
// @Param id path string true "ID платежа"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/payments/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.Get")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	p, err := h.service.Get(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, p)
}

// Webhook godoc
// @Summary Уведомление платёжного провайдера
// @Description Тело подписывается HMAC-SHA256 (hex) в заголовке X-Signature.
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Signature header string true "HMAC-SHA256 тела"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /api/payments/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.Webhook")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		response.Error(w, r, log, apperr.Validation("invalid request body").WithCause(err))
		return
	}
	defer r.Body.Close()

	if err := payment.VerifySignature(h.webhookSecret, body, r.Header.Get(payment.SignatureHeader)); err != nil {
		log.Warn("invalid or missing webhook signature")
		response.Error(w, r, log, err)
		return
	}

	var payload payment.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.Error(w, r, log, apperr.Validation("invalid webhook payload").WithCause(err))
		return
	}

	res, err := h.service.ProcessWebhookEvent(r.Context(), payload)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, res)
}
