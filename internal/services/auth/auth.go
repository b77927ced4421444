// Package auth — регистрация, вход, профиль и удаление учётной записи.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/finwire/finwire/internal/config"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/password"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/storage"
)

// MinPasswordLength — минимальная длина пароля.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials = apperr.Unauthenticated("invalid credentials")
	ErrAccountInactive    = apperr.Forbidden("account is deactivated").WithReason(apperr.ReasonAccountInactive)
	ErrAccountGone        = apperr.Unauthenticated("account no longer exists")
	ErrWrongPassword      = apperr.Validation("current password is incorrect")
)

// UserRepository описывает операции с учётными записями.
type UserRepository interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	HasRole(ctx context.Context, role models.Role) (bool, error)
	UpdateUserProfile(ctx context.Context, id, name, email string, now time.Time) (models.User, error)
	UpdateUserPassword(ctx context.Context, id, hash string, now time.Time) error
	ArchiveUser(ctx context.Context, id, reason, deletedBy string, now time.Time) (models.DeletedUser, error)
}

// Service отвечает за учётные записи и проверку паролей. Токены выпускает транспорт.
type Service struct {
	users UserRepository
	log   *slog.Logger
	now   func() time.Time
}

func New(users UserRepository, log *slog.Logger) *Service {
	return &Service{users: users, log: log, now: time.Now}
}

// RegisterInput — данные регистрации.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// NormalizeEmail приводит адрес к каноническому виду и проверяет формат.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("invalid email")
	}
	return email, nil
}

func checkPassword(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// Register создаёт учётную запись с ролью user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	return s.create(ctx, in, models.RoleUser)
}

// CreateAccount создаёт учётную запись с указанной ролью.
func (s *Service) CreateAccount(ctx context.Context, in RegisterInput, role models.Role) (models.User, error) {
	if !role.Valid() {
		return models.User{}, apperr.Validation("unknown role")
	}
	return s.create(ctx, in, role)
}

func (s *Service) create(ctx context.Context, in RegisterInput, role models.Role) (models.User, error) {
	const op = "auth.Register"
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return models.User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.User{}, apperr.Validation("name is required")
	}
	if err := checkPassword(in.Password); err != nil {
		return models.User{}, err
	}

	hashed, err := password.GetHash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account created", slog.String("user_id", user.ID), slog.String("role", string(role)))
	return user, nil
}

// Login проверяет пароль и возвращает claims пользовательской сессии.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (models.Claims, error) {
	user, err := s.authenticate(ctx, email, rawPassword)
	if err != nil {
		return models.Claims{}, err
	}
	return user.Claims(models.ScopeUser), nil
}

// AdminLogin пускает только admin и super-admin. Для обычного пользователя
// ответ не отличается от неверного пароля.
func (s *Service) AdminLogin(ctx context.Context, email, rawPassword string) (models.Claims, error) {
	user, err := s.authenticate(ctx, email, rawPassword)
	if err != nil {
		return models.Claims{}, err
	}
	if !user.Role.AtLeast(models.RoleAdmin) {
		return models.Claims{}, ErrInvalidCredentials
	}
	return user.Claims(models.ScopeAdmin), nil
}

func (s *Service) authenticate(ctx context.Context, email, rawPassword string) (models.User, error) {
	const op = "auth.Login"
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if !user.IsActive {
		return models.User{}, ErrAccountInactive
	}
	return user, nil
}

// Me возвращает учётную запись владельца сессии.
func (s *Service) Me(ctx context.Context, claims models.Claims) (models.User, error) {
	const op = "auth.Me"
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, ErrAccountGone
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdateProfile меняет имя и email. Пустые поля не меняются.
func (s *Service) UpdateProfile(ctx context.Context, claims models.Claims, name, email string) (models.User, error) {
	const op = "auth.UpdateProfile"
	current, err := s.Me(ctx, claims)
	if err != nil {
		return models.User{}, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = current.Name
	}
	if strings.TrimSpace(email) == "" {
		email = current.Email
	} else if email, err = NormalizeEmail(email); err != nil {
		return models.User{}, err
	}

	user, err := s.users.UpdateUserProfile(ctx, claims.UserID, name, email, s.now().UTC())
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ChangePassword меняет пароль после проверки текущего.
func (s *Service) ChangePassword(ctx context.Context, claims models.Claims, current, next string) error {
	const op = "auth.ChangePassword"
	user, err := s.Me(ctx, claims)
	if err != nil {
		return err
	}
	if err := password.CompareHash(user.PasswordHash, current); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return ErrWrongPassword
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := checkPassword(next); err != nil {
		return err
	}
	hashed, err := password.GetHash(next)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdateUserPassword(ctx, user.ID, hashed, s.now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password changed", slog.String("user_id", user.ID))
	return nil
}

// DeleteAccount переводит учётную запись в архив после подтверждения паролем.
// Подписки и платежи остаются для отчётности.
func (s *Service) DeleteAccount(ctx context.Context, claims models.Claims, rawPassword, reason string) (models.DeletedUser, error) {
	const op = "auth.DeleteAccount"
	user, err := s.Me(ctx, claims)
	if err != nil {
		return models.DeletedUser{}, err
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return models.DeletedUser{}, ErrWrongPassword
		}
		return models.DeletedUser{}, fmt.Errorf("%s: %w", op, err)
	}
	archived, err := s.users.ArchiveUser(ctx, user.ID, strings.TrimSpace(reason), user.ID, s.now().UTC())
	if err != nil {
		return models.DeletedUser{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account archived", slog.String("user_id", user.ID))
	return archived, nil
}

// EnsureSuperAdmin создаёт первого super-admin из конфига, если его ещё нет.
func (s *Service) EnsureSuperAdmin(ctx context.Context, cfg config.Bootstrap) error {
	const op = "auth.EnsureSuperAdmin"
	if cfg.SuperAdminEmail == "" {
		return nil
	}
	exists, err := s.users.HasRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return nil
	}
	name := cfg.SuperAdminName
	if name == "" {
		name = "Super Admin"
	}
	_, err = s.create(ctx, RegisterInput{Name: name, Email: cfg.SuperAdminEmail, Password: cfg.SuperAdminPassword}, models.RoleSuperAdmin)
	if err != nil && !errors.Is(err, apperr.Conflict("")) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
