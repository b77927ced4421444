package models

import "time"

// SubscriptionStatus — состояние подписки.
type SubscriptionStatus string

const (
	SubscriptionPendingPayment SubscriptionStatus = "pending-payment"
	SubscriptionActive         SubscriptionStatus = "active"
	SubscriptionExpired        SubscriptionStatus = "expired"
	SubscriptionCancelled      SubscriptionStatus = "cancelled"
)

// Terminal сообщает, является ли состояние конечным для строки подписки.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionExpired || s == SubscriptionCancelled
}

// CanTransition проверяет допустимость перехода.
// pending-payment -> active | cancelled; active -> expired | cancelled.
func (s SubscriptionStatus) CanTransition(to SubscriptionStatus) bool {
	switch s {
	case SubscriptionPendingPayment:
		return to == SubscriptionActive || to == SubscriptionCancelled
	case SubscriptionActive:
		return to == SubscriptionExpired || to == SubscriptionCancelled
	default:
		return false
	}
}

// Subscription — ограниченный по времени доступ пользователя к продукту.
type Subscription struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"`
	ProductID      string             `json:"product_id"`
	PaymentID      string             `json:"payment_id"`
	Status         SubscriptionStatus `json:"status"`
	DurationMonths int                `json:"duration_months"`
	StartDate      *time.Time         `json:"start_date,omitempty"`
	EndDate        *time.Time         `json:"end_date,omitempty"`
	PaymentStatus  PaymentStatus      `json:"payment_status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// ActiveAt сообщает, даёт ли подписка доступ в момент now.
// Статус проверяется вместе с EndDate: между прогонами sweeper-а
// статус active может отставать от реальности.
func (s Subscription) ActiveAt(now time.Time) bool {
	return s.Status == SubscriptionActive && s.EndDate != nil && s.EndDate.After(now)
}

// Transition — результат смены состояния подписки, уже записанный в журнал.
type Transition struct {
	Subscription   Subscription       `json:"subscription"`
	From           SubscriptionStatus `json:"from"`
	To             SubscriptionStatus `json:"to"`
	Trigger        Trigger            `json:"trigger"`
	ActorID        string             `json:"actor_id,omitempty"`
	Email          string             `json:"email,omitempty"`
	UserName       string             `json:"user_name,omitempty"`
	ProductHeading string             `json:"product_heading,omitempty"`
	At             time.Time          `json:"at"`
}

// Valid сообщает, допустим ли переход для записи в журнал.
func (t Transition) Valid() bool {
	return t.Trigger.Valid() && t.From.CanTransition(t.To)
}

// ExpiryNotice — данные для напоминания об окончании подписки.
type ExpiryNotice struct {
	SubscriptionID string    `json:"subscription_id"`
	Email          string    `json:"email"`
	UserName       string    `json:"user_name"`
	ProductHeading string    `json:"product_heading"`
	EndDate        time.Time `json:"end_date"`
}
