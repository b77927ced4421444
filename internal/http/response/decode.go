package response

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/finwire/finwire/internal/lib/apperr"
)

var validate = validator.New()

// Decode читает JSON-тело запроса в dst и проверяет теги validate.
func Decode(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("invalid request body").WithCause(err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return ValidationError(verrs)
		}
		return apperr.Validation("invalid request body").WithCause(err)
	}
	return nil
}
