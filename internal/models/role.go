package models

// Role — уровень полномочий учётной записи.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// Valid сообщает, известна ли роль системе.
func (r Role) Valid() bool {
	return r.level() > 0
}

// AtLeast проверяет, что роль не ниже target.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level() && r.level() > 0
}

func (r Role) level() int {
	switch r {
	case RoleSuperAdmin:
		return 30
	case RoleAdmin:
		return 20
	case RoleUser:
		return 10
	default:
		return 0
	}
}

// Scope — область действия сессии: пользовательский кабинет или админка.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeAdmin Scope = "admin"
)

// Claims — проверенные данные из токена сессии.
// Передаётся по значению и не зависит от транспортного слоя.
type Claims struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Scope  Scope  `json:"-"`
}
