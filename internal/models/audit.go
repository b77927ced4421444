package models

import "time"

// Trigger — источник перехода состояния подписки.
type Trigger string

const (
	TriggerSystemSweep    Trigger = "system-sweep"
	TriggerUserAction     Trigger = "user-action"
	TriggerAdminAction    Trigger = "admin-action"
	TriggerPaymentWebhook Trigger = "payment-webhook"
)

// Valid сообщает, известен ли источник.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerSystemSweep, TriggerUserAction, TriggerAdminAction, TriggerPaymentWebhook:
		return true
	}
	return false
}

// AuditEntry — неизменяемая запись журнала переходов подписки.
// Seq выдаётся базой и задаёт порядок записей без блокировки строки подписки.
type AuditEntry struct {
	Seq            int64              `json:"seq"`
	SubscriptionID string             `json:"subscription_id"`
	UserID         string             `json:"user_id"`
	ProductID      string             `json:"product_id"`
	FromStatus     SubscriptionStatus `json:"from_status"`
	ToStatus       SubscriptionStatus `json:"to_status"`
	TriggeredBy    Trigger            `json:"triggered_by"`
	ActorID        string             `json:"actor_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// NewAuditEntry строит запись журнала по переходу.
func NewAuditEntry(t Transition) AuditEntry {
	return AuditEntry{
		SubscriptionID: t.Subscription.ID,
		UserID:         t.Subscription.UserID,
		ProductID:      t.Subscription.ProductID,
		FromStatus:     t.From,
		ToStatus:       t.To,
		TriggeredBy:    t.Trigger,
		ActorID:        t.ActorID,
		CreatedAt:      t.At,
	}
}
