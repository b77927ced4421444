package models

import "time"

// PaymentStatus — состояние попытки оплаты.
type PaymentStatus string

const (
	PaymentCreated    PaymentStatus = "created"
	PaymentAttempted  PaymentStatus = "attempted"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentExpired    PaymentStatus = "expired"
	PaymentPending    PaymentStatus = "pending"
)

// Capturable сообщает, можно ли из этого состояния перейти в captured.
func (s PaymentStatus) Capturable() bool {
	switch s {
	case PaymentCreated, PaymentAttempted, PaymentAuthorized, PaymentPending, PaymentFailed:
		return true
	}
	return false
}

// Settled сообщает, завершена ли оплата окончательно.
func (s PaymentStatus) Settled() bool {
	switch s {
	case PaymentCaptured, PaymentCancelled, PaymentRefunded, PaymentExpired:
		return true
	}
	return false
}

// Abandoned сообщает, закрыт ли заказ без оплаты.
func (s PaymentStatus) Abandoned() bool {
	return s == PaymentCancelled || s == PaymentExpired
}

// StatusChange — отметка о смене статуса платежа в истории метаданных.
type StatusChange struct {
	Status PaymentStatus `json:"status"`
	At     time.Time     `json:"at"`
	Reason string        `json:"reason,omitempty"`
}

// PaymentMetadata хранит историю статусов; записи только добавляются.
type PaymentMetadata struct {
	History []StatusChange    `json:"history"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// Payment — одна попытка оформления заказа.
type Payment struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	Amount          int64           `json:"amount"`
	Discount        int64           `json:"discount"`
	Currency        string          `json:"currency"`
	PromoCode       string          `json:"promo_code,omitempty"`
	Status          PaymentStatus   `json:"status"`
	SubscriptionIDs []string        `json:"subscription_ids"`
	Metadata        PaymentMetadata `json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
