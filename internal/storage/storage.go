// Package storage реализует хранилище на PostgreSQL: учётные записи, каталог,
// подписки и журнал их переходов, платежи, промокоды, тикеты поддержки,
// настройки и бинарные объекты.
//
// Переходы состояний подписок выполняются условными UPDATE внутри транзакции
// вместе с записью в журнал, поэтому повторный вызов не создаёт дублей.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finwire/finwire/internal/lib/apperr"
)

// Storage инкапсулирует ленивый пул подключений к PostgreSQL.
type Storage struct {
	pool *Pool
}

// New создаёт Storage поверх пула; подключение откроется при первом запросе.
func New(pool *Pool) *Storage {
	return &Storage{pool: pool}
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.Ping"
	db, err := s.pool.DB(ctx)
	if err != nil {
		return wrap(op, err)
	}
	return wrap(op, db.PingContext(ctx))
}

// DB открывает подключение; используется для миграций.
func (s *Storage) DB(ctx context.Context) (*sql.DB, error) {
	return s.pool.DB(ctx)
}

// Close закрывает пул.
func (s *Storage) Close() error {
	return s.pool.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx выполняет fn в транзакции: commit при успехе, rollback при ошибке.
func (s *Storage) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	db, err := s.pool.DB(ctx)
	if err != nil {
		return wrap(op, err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return wrap(op, err)
	}
	return nil
}

// query выполняет fn на общем подключении.
func (s *Storage) query(ctx context.Context, op string, fn func(q querier) error) error {
	db, err := s.pool.DB(ctx)
	if err != nil {
		return wrap(op, err)
	}
	return wrap(op, fn(db))
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func mustAffect(res sql.Result) error {
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var errInvalidTransition = apperr.Conflict("invalid status transition").WithReason(apperr.ReasonInvalidTransition)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
