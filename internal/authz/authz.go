// Package authz решает, может ли проверенная личность выполнить действие
// указанного уровня. Решения чистые: без ввода-вывода и побочных эффектов.
package authz

import (
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
)

// Requirement — минимальный уровень доступа маршрута.
type Requirement int

const (
	AnyUser Requirement = iota
	Admin
	SuperAdmin
)

func (r Requirement) role() models.Role {
	switch r {
	case SuperAdmin:
		return models.RoleSuperAdmin
	case Admin:
		return models.RoleAdmin
	default:
		return models.RoleUser
	}
}

func (r Requirement) String() string { return string(r.role()) }

var (
	ErrUnauthenticated  = apperr.Unauthenticated("authentication required")
	ErrForbidden        = apperr.Forbidden("insufficient role")
	ErrSelfDeactivation = apperr.Forbidden("cannot deactivate own account").WithReason(apperr.ReasonSelfDeactivation)
)

// Authorize пропускает claims, если роль не ниже требуемой.
// Admin-проверка принимает и admin, и super-admin.
func Authorize(claims *models.Claims, req Requirement) (models.Claims, error) {
	if claims == nil || claims.UserID == "" {
		return models.Claims{}, ErrUnauthenticated
	}
	if !claims.Role.AtLeast(req.role()) {
		return models.Claims{}, ErrForbidden
	}
	return *claims, nil
}

// AuthorizeActivation проверяет изменение флага isActive учётной записи targetID.
// Требуется super-admin; отключить собственную учётную запись нельзя при любой роли.
func AuthorizeActivation(caller *models.Claims, targetID string, isActive bool) (models.Claims, error) {
	c, err := Authorize(caller, SuperAdmin)
	if err != nil {
		if caller != nil && !isActive && caller.UserID == targetID {
			return models.Claims{}, ErrSelfDeactivation
		}
		return models.Claims{}, err
	}
	if !isActive && c.UserID == targetID {
		return models.Claims{}, ErrSelfDeactivation
	}
	return c, nil
}

// CanActOnOwned сообщает, может ли caller действовать над ресурсом владельца ownerID:
// владелец либо сессия администратора.
func CanActOnOwned(caller models.Claims, ownerID string) bool {
	return (caller.UserID != "" && caller.UserID == ownerID) || Staff(caller)
}

// Staff сообщает, что запрос пришёл из сессии администратора с ролью admin и выше.
// Роль admin в пользовательской сессии прав администратора не даёт.
func Staff(c models.Claims) bool {
	return c.Scope == models.ScopeAdmin && c.Role.AtLeast(models.RoleAdmin)
}
