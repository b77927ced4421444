package models

import "time"

// TicketStatus — состояние обращения в поддержку.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// Ticket — обращение пользователя в поддержку.
type Ticket struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Subject   string          `json:"subject"`
	Status    TicketStatus    `json:"status"`
	Messages  []TicketMessage `json:"messages,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TicketMessage — сообщение в тикете.
type TicketMessage struct {
	ID        string        `json:"id"`
	TicketID  string        `json:"ticket_id"`
	AuthorID  string        `json:"author_id"`
	IsAdmin   bool          `json:"is_admin"`
	Body      string        `json:"body"`
	ReadBy    []ReadReceipt `json:"read_by"`
	CreatedAt time.Time     `json:"created_at"`
}

// ReadReceipt — отметка о прочтении; по одной на читателя.
type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}
