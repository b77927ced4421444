// Package settings реализует HTTP-обработчики публичных настроек сайта.
package settings

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/models"
)

type Service interface {
	All(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, key, value string) (models.Setting, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// PutRequest — значение настройки.
type PutRequest struct {
	Value string `json:"value" validate:"max=10000"`
}

// List godoc
// @Summary Настройки сайта
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/settings [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.settings.List"), slog.String("request_id", middleware.GetReqID(r.Context())))
	all, err := h.service.All(r.Context())
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, all)
}

// Put godoc
// @Summary Задать настройку
// @Tags Admin
// @Accept json
// @Produce json
// @Param key path string true "Ключ"
// @Param request body PutRequest true "Значение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /api/admin/settings/{key} [put]
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.settings.Put"), slog.String("request_id", middleware.GetReqID(r.Context())))
	var req PutRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	st, err := h.service.Put(r.Context(), chi.URLParam(r, "key"), req.Value)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, st)
}
