// Package admin — управление учётными записями из админки.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finwire/finwire/internal/authz"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/auth"
)

// Repository — операции с учётными записями.
type Repository interface {
	ListUsers(ctx context.Context, roles []models.Role, p pagination.Params) ([]models.User, error)
	SetUserActive(ctx context.Context, id string, active bool, now time.Time) (models.User, error)
	ArchiveUser(ctx context.Context, id, reason, deletedBy string, now time.Time) (models.DeletedUser, error)
}

// AccountCreator создаёт учётные записи с заданной ролью.
type AccountCreator interface {
	CreateAccount(ctx context.Context, in auth.RegisterInput, role models.Role) (models.User, error)
}

// Service — бизнес-логика админки.
type Service struct {
	repo     Repository
	accounts AccountCreator
	log      *slog.Logger
	now      func() time.Time
}

func New(repo Repository, accounts AccountCreator, log *slog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, log: log, now: time.Now}
}

var adminRoles = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}

// ListAdmins возвращает admin и super-admin.
func (s *Service) ListAdmins(ctx context.Context, caller models.Claims, page pagination.Params) ([]models.User, error) {
	if _, err := authz.Authorize(&caller, authz.SuperAdmin); err != nil {
		return nil, err
	}
	return s.list(ctx, adminRoles, page)
}

// ListUsers возвращает обычных пользователей.
func (s *Service) ListUsers(ctx context.Context, caller models.Claims, page pagination.Params) ([]models.User, error) {
	if _, err := authz.Authorize(&caller, authz.Admin); err != nil {
		return nil, err
	}
	return s.list(ctx, []models.Role{models.RoleUser}, page)
}

func (s *Service) list(ctx context.Context, roles []models.Role, page pagination.Params) ([]models.User, error) {
	const op = "admin.List"
	users, err := s.repo.ListUsers(ctx, roles, page)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// CreateAdmin создаёт admin или super-admin. Доступно только super-admin.
func (s *Service) CreateAdmin(ctx context.Context, caller models.Claims, in auth.RegisterInput, role models.Role) (models.User, error) {
	const op = "admin.CreateAdmin"
	if _, err := authz.Authorize(&caller, authz.SuperAdmin); err != nil {
		return models.User{}, err
	}
	if role == "" {
		role = models.RoleAdmin
	}
	if role != models.RoleAdmin && role != models.RoleSuperAdmin {
		return models.User{}, apperr.Validation("role must be admin or super-admin")
	}
	user, err := s.accounts.CreateAccount(ctx, in, role)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin account created", slog.String("user_id", user.ID), slog.String("by", caller.UserID))
	return user, nil
}

// SetActive включает или отключает учётную запись. Отключить себя нельзя.
func (s *Service) SetActive(ctx context.Context, caller models.Claims, targetID string, isActive bool) (models.User, error) {
	const op = "admin.SetActive"
	if _, err := authz.AuthorizeActivation(&caller, targetID, isActive); err != nil {
		return models.User{}, err
	}
	user, err := s.repo.SetUserActive(ctx, targetID, isActive, s.now().UTC())
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account activity changed",
		slog.String("user_id", targetID), slog.Bool("is_active", isActive), slog.String("by", caller.UserID))
	return user, nil
}

// DeleteUser архивирует учётную запись. Удалить себя через админку нельзя.
func (s *Service) DeleteUser(ctx context.Context, caller models.Claims, targetID, reason string) (models.DeletedUser, error) {
	const op = "admin.DeleteUser"
	if _, err := authz.AuthorizeActivation(&caller, targetID, false); err != nil {
		return models.DeletedUser{}, err
	}
	archived, err := s.repo.ArchiveUser(ctx, targetID, reason, caller.UserID, s.now().UTC())
	if err != nil {
		return models.DeletedUser{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account archived by admin", slog.String("user_id", targetID), slog.String("by", caller.UserID))
	return archived, nil
}
