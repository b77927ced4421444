package models

import (
	"strings"
	"time"
)

// DiscountType — вид скидки промокода.
type DiscountType string

const (
	DiscountFlat       DiscountType = "flat"
	DiscountPercentage DiscountType = "percentage"
)

// PromoCode — промокод. UsageCount никогда не превышает UsageLimit, если лимит задан.
type PromoCode struct {
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue int64        `json:"discount_value"`
	ValidFrom     *time.Time   `json:"valid_from,omitempty"`
	ValidUntil    *time.Time   `json:"valid_until,omitempty"`
	UsageLimit    *int         `json:"usage_limit,omitempty"`
	UsageCount    int          `json:"usage_count"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
}

// NormalizeCode приводит код к каноническому виду.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidAt сообщает, действует ли промокод в момент now.
func (p PromoCode) ValidAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && !now.Before(*p.ValidUntil) {
		return false
	}
	return true
}

// Exhausted сообщает, исчерпан ли лимит использований.
func (p PromoCode) Exhausted() bool {
	return p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit
}

// Discount считает скидку для суммы amount (в минорных единицах).
// Скидка не превышает саму сумму.
func (p PromoCode) Discount(amount int64) int64 {
	var d int64
	switch p.DiscountType {
	case DiscountFlat:
		d = p.DiscountValue
	case DiscountPercentage:
		d = amount * p.DiscountValue / 100
	}
	if d < 0 {
		return 0
	}
	if d > amount {
		return amount
	}
	return d
}
