// Package response формирует единый JSON-конверт ответов {success, data|error}
// и переводит ошибки приложения в HTTP-статусы.
package response

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/sl"
)

// Response — конверт ответа.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody — описание ошибки для клиента.
type ErrorBody struct {
	Code    string `json:"code" example:"NOT_FOUND"`
	Reason  string `json:"reason,omitempty" example:"USAGE_LIMIT_EXCEEDED"`
	Message string `json:"message" example:"article not found"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorResponse — тип ошибки для Swagger-аннотаций.
type ErrorResponse struct {
	Success bool      `json:"success" example:"false"`
	Error   ErrorBody `json:"error"`
}

type ctxKey struct{}

// DevDetail включает отдачу внутренних причин ошибок клиенту (только локальное окружение).
func DevDetail(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxKey{}, enabled)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func devDetail(r *http.Request) bool {
	enabled, _ := r.Context().Value(ctxKey{}).(bool)
	return enabled
}

// OK отвечает 200 с данными.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Response{Success: true, Data: data})
}

// Created отвечает 201 с данными.
func Created(w http.ResponseWriter, r *http.Request, data any) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, Response{Success: true, Data: data})
}

// StatusOf возвращает HTTP-статус для категории ошибки.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error пишет ошибку в конверте. Ошибки 5xx логируются с причиной;
// клиенту причина отдаётся только при включённом DevDetail.
func Error(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	ae := apperr.As(err)
	if ae == nil {
		ae = apperr.Internal(err)
	}
	status := StatusOf(ae.Kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("code", ae.Kind.String()), sl.Err(err))
	} else {
		log.Info("request rejected", slog.String("code", ae.Kind.String()), slog.String("message", ae.Message))
	}

	body := &ErrorBody{Code: ae.Kind.String(), Reason: ae.Reason, Message: ae.Message}
	if devDetail(r) && err != nil {
		body.Detail = err.Error()
	}
	render.Status(r, status)
	render.JSON(w, r, Response{Success: false, Error: body})
}

// ValidationError собирает ошибки валидатора в человекочитаемое сообщение.
func ValidationError(errs validator.ValidationErrors) *apperr.Error {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		field := strings.ToLower(err.Field())
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email", field))
		case "uuid", "uuid4":
			msgs = append(msgs, fmt.Sprintf("field %s must be a uuid", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", field, err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s", field, err.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of [%s]", field, err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", field))
		}
	}
	return apperr.Validation(strings.Join(msgs, ", "))
}
