// Package account реализует HTTP-обработчики учётной записи: регистрацию,
// вход и выход пользователя и администратора, профиль, смену пароля и удаление.
//
// Пользовательская и административная сессии выдаются разными Session
// и никогда не заменяют друг друга.
package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/auth"
)

// Service описывает бизнес-логику учётных записей.
type Service interface {
	Register(ctx context.Context, in auth.RegisterInput) (models.User, error)
	Login(ctx context.Context, email, rawPassword string) (models.Claims, error)
	AdminLogin(ctx context.Context, email, rawPassword string) (models.Claims, error)
	Me(ctx context.Context, claims models.Claims) (models.User, error)
	UpdateProfile(ctx context.Context, claims models.Claims, name, email string) (models.User, error)
	ChangePassword(ctx context.Context, claims models.Claims, current, next string) error
	DeleteAccount(ctx context.Context, claims models.Claims, rawPassword, reason string) (models.DeletedUser, error)
}

// Session выпускает и удаляет cookie сессии одной области.
type Session interface {
	Issue(w http.ResponseWriter, claims models.Claims) (string, error)
	Clear(w http.ResponseWriter)
}

// Handler обслуживает маршруты /api/user/auth и /api/admin/auth.
type Handler struct {
	log     *slog.Logger
	service Service
	user    Session
	admin   Session
}

// New создаёт Handler.
func New(log *slog.Logger, service Service, user, admin Session) *Handler {
	return &Handler{log: log, service: service, user: user, admin: admin}
}

// RegisterRequest — тело запроса регистрации.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest — тело запроса входа.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileRequest — изменение профиля; пустые поля не меняются.
type ProfileRequest struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email" validate:"omitempty,email"`
}

// PasswordRequest — смена пароля.
type PasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// DeleteRequest — подтверждение удаления учётной записи.
type DeleteRequest struct {
	Password string `json:"password" validate:"required"`
	Reason   string `json:"reason" validate:"max=500"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Register godoc
// @Summary Регистрация пользователя
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Данные регистрации"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Router /api/user/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.Register")

	var req RegisterRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if _, err := h.user.Issue(w, user.Claims(models.ScopeUser)); err != nil {
		response.Error(w, r, log, err)
		return
	}
	log.Info("user registered", slog.String("user_id", user.ID))
	response.Created(w, r, user)
}

// Login godoc
// @Summary Вход пользователя
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Учётные данные"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /api/user/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "handlers.account.Login", h.service.Login, h.user)
}

// AdminLogin godoc
// @Summary Вход администратора
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Учётные данные"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /api/admin/auth/login [post]
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "handlers.account.AdminLogin", h.service.AdminLogin, h.admin)
}

type loginFunc func(ctx context.Context, email, rawPassword string) (models.Claims, error)

func (h *Handler) login(w http.ResponseWriter, r *http.Request, op string, fn loginFunc, s Session) {
	log := h.logger(r, op)

	var req LoginRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	claims, err := fn(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	if _, err := s.Issue(w, claims); err != nil {
		response.Error(w, r, log, err)
		return
	}
	log.Info("logged in", slog.String("user_id", claims.UserID), slog.String("role", string(claims.Role)))
	response.OK(w, r, claims)
}

// Logout godoc
// @Summary Выход пользователя
// @Tags Auth
// @Success 200 {object} response.Response
// @Router /api/user/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.user.Clear(w)
	response.OK(w, r, nil)
}

// AdminLogout godoc
// @Summary Выход администратора
// @Tags Admin
// @Success 200 {object} response.Response
// @Router /api/admin/auth/logout [post]
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	h.admin.Clear(w)
	response.OK(w, r, nil)
}

// Me godoc
// @Summary Профиль текущего пользователя
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /api/user/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.Me")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	user, err := h.service.Me(r.Context(), claims)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, user)
}

// UpdateMe godoc
// @Summary Изменить профиль
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ProfileRequest true "Новые имя и email"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse
// @Router /api/user/auth/me [patch]
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.UpdateMe")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req ProfileRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), claims, req.Name, req.Email)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	// claims в cookie должны отражать новое имя и email
	if _, err := h.user.Issue(w, user.Claims(models.ScopeUser)); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, user)
}

// ChangePassword godoc
// @Summary Сменить пароль
// @Tags Auth
// @Accept json
// @Param request body PasswordRequest true "Текущий и новый пароль"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /api/user/auth/password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.ChangePassword")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req PasswordRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), claims, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, nil)
}

// DeleteMe godoc
// @Summary Удалить учётную запись
// @Description Учётная запись переносится в архив, сессия завершается.
// @Tags Auth
// @Accept json
// @Param request body DeleteRequest true "Пароль и причина"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /api/user/auth/me [delete]
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.account.DeleteMe")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req DeleteRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	archived, err := h.service.DeleteAccount(r.Context(), claims, req.Password, req.Reason)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	h.user.Clear(w)
	response.OK(w, r, archived)
}
