package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/finwire/finwire/internal/lib/apperr"
)

// ErrNotFound возвращается, когда запись отсутствует.
var ErrNotFound = apperr.NotFound("record")

var (
	errDuplicate  = apperr.Conflict("record already exists").WithReason(apperr.ReasonDuplicate)
	errReference  = apperr.Validation("referenced record does not exist")
	errConstraint = apperr.Validation("value violates a constraint")
)

// wrap переводит ошибки драйвера в ошибки приложения и добавляет op.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.As(err) != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: %w", op, errDuplicate.WithCause(err))
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, errReference.WithCause(err))
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation, pgerrcode.InvalidTextRepresentation:
			return fmt.Errorf("%s: %w", op, errConstraint.WithCause(err))
		}
		if pgerrcode.IsConnectionException(pgErr.Code) {
			return fmt.Errorf("%s: %w", op, errUnavailable.WithCause(err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, errUnavailable.WithCause(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
