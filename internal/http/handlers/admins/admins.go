// Package admins реализует HTTP-обработчики управления учётными записями:
// списки администраторов и пользователей, создание администраторов,
// включение, отключение и удаление учётных записей.
package admins

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/auth"
)

type Service interface {
	ListAdmins(ctx context.Context, caller models.Claims, page pagination.Params) ([]models.User, error)
	ListUsers(ctx context.Context, caller models.Claims, page pagination.Params) ([]models.User, error)
	CreateAdmin(ctx context.Context, caller models.Claims, in auth.RegisterInput, role models.Role) (models.User, error)
	SetActive(ctx context.Context, caller models.Claims, targetID string, isActive bool) (models.User, error)
	DeleteUser(ctx context.Context, caller models.Claims, targetID, reason string) (models.DeletedUser, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// CreateRequest — новая административная учётная запись.
type CreateRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=admin super-admin"`
}

// StatusRequest — флаг активности учётной записи.
type StatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// DeleteRequest — причина удаления.
type DeleteRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// ListAdmins godoc
// @Summary Администраторы
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /api/admin/admins [get]
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admins.ListAdmins")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	users, err := h.service.ListAdmins(r.Context(), claims, pagination.FromRequest(r))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, users)
}

// ListUsers godoc
// @Summary Пользователи
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/admin/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admins.ListUsers")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	users, err := h.service.ListUsers(r.Context(), claims, pagination.FromRequest(r))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, users)
}

// CreateAdmin godoc
// @Summary Создать администратора
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Учётная запись"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/admin/admins [post]
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admins.CreateAdmin")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req CreateRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	user, err := h.service.CreateAdmin(r.Context(), claims, auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, models.Role(req.Role))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.Created(w, r, user)
}

// SetStatus godoc
// @Summary Включить или отключить учётную запись
// @Description Отключить собственную учётную запись нельзя (reason SELF_DEACTIVATION).
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "ID учётной записи"
// @Param request body StatusRequest true "Флаг"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /api/admin/admins/{id}/status [patch]
// @Router /api/admin/users/{id}/status [patch]
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admins.SetStatus")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req StatusRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	user, err := h.service.SetActive(r.Context(), claims, chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, user)
}

// DeleteUser godoc
// @Summary Удалить учётную запись
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "ID учётной записи"
// @Param request body DeleteRequest false "Причина"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /api/admin/users/{id} [delete]
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admins.DeleteUser")
	claims, _ := middlewarectx.ClaimsFrom(r.Context())

	var req DeleteRequest
	if r.ContentLength != 0 {
		if err := response.Decode(r, &req); err != nil {
			response.Error(w, r, log, err)
			return
		}
	}
	archived, err := h.service.DeleteUser(r.Context(), claims, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, archived)
}
