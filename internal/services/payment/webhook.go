package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
)

// SignatureHeader — заголовок с подписью тела вебхука.
const SignatureHeader = "X-Signature"

// События провайдера.
const (
	EventSucceeded         = "payment.succeeded"
	EventWaitingForCapture = "payment.waiting_for_capture"
	EventWaitingForAction  = "payment.waiting_for_action"
	EventFailed            = "payment.failed"
	EventCanceled          = "payment.canceled"
	EventRefunded          = "payment.refunded"
)

// ErrBadSignature — подпись отсутствует или не совпадает.
var ErrBadSignature = apperr.Unauthenticated("invalid webhook signature")

// Payload — тело уведомления провайдера.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Reason   string            `json:"reason"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// Sign возвращает hex HMAC-SHA256 тела.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись за постоянное время.
// Допускается префикс "sha256=". Пустой секрет отклоняет любые вебхуки.
func VerifySignature(secret string, body []byte, signature string) error {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if secret == "" || signature == "" {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), got) {
		return ErrBadSignature
	}
	return nil
}

// WebhookResult — что изменило событие.
type WebhookResult struct {
	PaymentID   string              `json:"payment_id"`
	Event       string              `json:"event"`
	Applied     bool                `json:"applied"`
	Transitions []models.Transition `json:"-"`
}

// ProcessWebhookEvent применяет событие провайдера к платежу.
// Неизвестные события игнорируются.
func (s *Service) ProcessWebhookEvent(ctx context.Context, payload Payload) (WebhookResult, error) {
	const op = "payment.ProcessWebhookEvent"
	event := strings.ToLower(strings.TrimSpace(payload.Event))
	res := WebhookResult{Event: event}

	paymentID, err := s.resolvePaymentID(ctx, payload)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	res.PaymentID = paymentID
	log := s.log.With(slog.String("op", op), slog.String("event", event), slog.String("payment_id", paymentID))

	switch event {
	case EventSucceeded:
		trs, activated, err := s.engine.Activate(ctx, paymentID, models.TriggerPaymentWebhook, "")
		if err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		res.Applied, res.Transitions = activated, trs
	case EventWaitingForCapture:
		res.Applied, err = s.settle(ctx, paymentID,
			[]models.PaymentStatus{models.PaymentCreated, models.PaymentAttempted, models.PaymentPending},
			models.PaymentAuthorized, payload.Object.Reason)
	case EventWaitingForAction:
		res.Applied, err = s.settle(ctx, paymentID, toPending, models.PaymentPending, payload.Object.Reason)
	case EventFailed:
		res.Applied, err = s.settle(ctx, paymentID, toFailed, models.PaymentFailed, payload.Object.Reason)
	case EventCanceled:
		res.Applied, err = s.settle(ctx, paymentID, toCancelled, models.PaymentCancelled, payload.Object.Reason)
		if err == nil {
			res.Transitions, err = s.engine.CancelByPayment(ctx, paymentID, models.TriggerPaymentWebhook, "")
		}
	case EventRefunded:
		res.Applied, err = s.settle(ctx, paymentID,
			[]models.PaymentStatus{models.PaymentCaptured}, models.PaymentRefunded, payload.Object.Reason)
		if err == nil {
			res.Transitions, err = s.engine.CancelByPayment(ctx, paymentID, models.TriggerPaymentWebhook, "")
		}
	default:
		log.Info("ignored webhook event")
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("webhook event processed", slog.Bool("applied", res.Applied), slog.Int("transitions", len(res.Transitions)))
	return res, nil
}

// resolvePaymentID берёт id платежа из объекта или ищет его по order_id из метаданных.
func (s *Service) resolvePaymentID(ctx context.Context, payload Payload) (string, error) {
	if payload.Object.ID != "" {
		return payload.Object.ID, nil
	}
	orderID := payload.Object.Metadata["order_id"]
	if orderID == "" {
		return "", apperr.Validation("payment id or order_id is required")
	}
	p, err := s.repo.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}
