// Package models содержит доменные структуры приложения: учётные записи,
// продукты и статьи, подписки, платежи, промокоды, тикеты поддержки и журнал аудита.
package models

import "time"

// User представляет учётную запись пользователя или администратора.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Claims формирует данные сессии для учётной записи.
func (u User) Claims(scope Scope) Claims {
	return Claims{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Scope:  scope,
	}
}

// DeletedUser — неизменяемая архивная запись об удалённой учётной записи.
type DeletedUser struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Role              Role      `json:"role"`
	Reason            string    `json:"reason,omitempty"`
	DeletedBy         string    `json:"deleted_by"`
	OriginalCreatedAt time.Time `json:"original_created_at"`
	DeletedAt         time.Time `json:"deleted_at"`
}
