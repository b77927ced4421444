// Package apperr описывает типизированные ошибки приложения.
//
// Каждая ошибка несёт Kind — дискриминатор, по которому транспортный слой
// выбирает HTTP-статус. Сравнение выполняется только по Kind (через KindOf),
// а не по тексту сообщения.
package apperr

import (
	"errors"
	"fmt"
)

// Kind — категория ошибки.
type Kind int

const (
	// KindInternal — непредвиденная ошибка сервера.
	KindInternal Kind = iota
	// KindUnauthenticated — отсутствует, повреждён или истёк токен сессии.
	KindUnauthenticated
	// KindForbidden — личность подтверждена, но прав недостаточно.
	KindForbidden
	// KindNotFound — ресурс отсутствует или намеренно скрыт.
	KindNotFound
	// KindValidation — некорректные входные данные.
	KindValidation
	// KindConflict — нарушение уникальности или лимита.
	KindConflict
	// KindServiceUnavailable — хранилище недоступно.
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "UNAUTHENTICATED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindConflict:
		return "CONFLICT"
	case KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// Machine-readable причины, уточняющие Kind.
const (
	ReasonSelfDeactivation   = "SELF_DEACTIVATION"
	ReasonUsageLimitExceeded = "USAGE_LIMIT_EXCEEDED"
	ReasonDuplicate          = "DUPLICATE"
	ReasonInvalidTransition  = "INVALID_TRANSITION"
	ReasonAccountInactive    = "ACCOUNT_INACTIVE"
)

// Error — ошибка приложения. Message безопасно отдавать клиенту,
// Cause используется только для логов.
type Error struct {
	Kind    Kind
	Message string
	Reason  string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is позволяет сравнивать ошибки по Kind и Reason через errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// WithCause возвращает копию ошибки с указанной причиной.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithReason возвращает копию ошибки с указанным machine-readable кодом.
func (e *Error) WithReason(reason string) *Error {
	cp := *e
	cp.Reason = reason
	return &cp
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Unauthenticated(msg string) *Error { return newErr(KindUnauthenticated, msg) }

func Forbidden(msg string) *Error { return newErr(KindForbidden, msg) }

// NotFound создаёт ошибку вида "<resource> not found".
func NotFound(resource string) *Error { return newErr(KindNotFound, resource+" not found") }

func Validation(msg string) *Error { return newErr(KindValidation, msg) }

func Conflict(msg string) *Error { return newErr(KindConflict, msg) }

func ServiceUnavailable(msg string) *Error { return newErr(KindServiceUnavailable, msg) }

// Internal оборачивает непредвиденную ошибку, скрывая детали от клиента.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Cause: cause}
}

// As извлекает *Error из цепочки ошибок; nil, если такой нет.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// KindOf возвращает Kind ошибки; для посторонних ошибок — KindInternal.
func KindOf(err error) Kind {
	if ae := As(err); ae != nil {
		return ae.Kind
	}
	return KindInternal
}

// IsKind сообщает, относится ли err к указанной категории.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ReasonOf возвращает machine-readable код ошибки, если он задан.
func ReasonOf(err error) string {
	if ae := As(err); ae != nil {
		return ae.Reason
	}
	return ""
}
