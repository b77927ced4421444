package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
)

const userColumns = `id, name, email, password_hash, role, is_active, created_at, updated_at`

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser вставляет учётную запись. Повтор email (без учёта регистра) — Conflict.
func (s *Storage) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	const op = "storage.CreateUser"
	var created models.User
	err := s.query(ctx, op, func(q querier) error {
		var err error
		created, err = scanUser(q.QueryRowContext(ctx,
			`INSERT INTO users (name, email, password_hash, role, is_active)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+userColumns,
			u.Name, strings.TrimSpace(u.Email), u.PasswordHash, u.Role, u.IsActive))
		return err
	})
	return created, err
}

// GetUserByEmail ищет учётную запись по email без учёта регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"
	var u models.User
	err := s.query(ctx, op, func(q querier) error {
		var err error
		u, err = scanUser(q.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
		return err
	})
	return u, err
}

// GetUserByID возвращает учётную запись по идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.GetUserByID"
	var u models.User
	err := s.query(ctx, op, func(q querier) error {
		var err error
		u, err = scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})
	return u, err
}

// HasRole сообщает, есть ли хотя бы одна учётная запись с ролью role.
func (s *Storage) HasRole(ctx context.Context, role models.Role) (bool, error) {
	const op = "storage.HasRole"
	var exists bool
	err := s.query(ctx, op, func(q querier) error {
		return q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE role = $1)`, role).Scan(&exists)
	})
	return exists, err
}

// UpdateUserProfile меняет имя и email.
func (s *Storage) UpdateUserProfile(ctx context.Context, id, name, email string, now time.Time) (models.User, error) {
	const op = "storage.UpdateUserProfile"
	var u models.User
	err := s.query(ctx, op, func(q querier) error {
		var err error
		u, err = scanUser(q.QueryRowContext(ctx,
			`UPDATE users SET name = $2, email = $3, updated_at = $4
			 WHERE id = $1
			 RETURNING `+userColumns,
			id, name, strings.TrimSpace(email), now))
		return err
	})
	return u, err
}

// UpdateUserPassword заменяет хэш пароля.
func (s *Storage) UpdateUserPassword(ctx context.Context, id, hash string, now time.Time) error {
	const op = "storage.UpdateUserPassword"
	return s.query(ctx, op, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, now)
		if err != nil {
			return err
		}
		return mustAffect(res)
	})
}

// SetUserActive включает или отключает учётную запись.
func (s *Storage) SetUserActive(ctx context.Context, id string, active bool, now time.Time) (models.User, error) {
	const op = "storage.SetUserActive"
	var u models.User
	err := s.query(ctx, op, func(q querier) error {
		var err error
		u, err = scanUser(q.QueryRowContext(ctx,
			`UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
			id, active, now))
		return err
	})
	return u, err
}

// ListUsers возвращает учётные записи с указанными ролями, новые первыми.
func (s *Storage) ListUsers(ctx context.Context, roles []models.Role, p pagination.Params) ([]models.User, error) {
	const op = "storage.ListUsers"
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	var users []models.User
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+userColumns+` FROM users
			 WHERE role = ANY($1)
			 ORDER BY created_at DESC, id
			 LIMIT $2 OFFSET $3`,
			names, p.Limit, p.Offset())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	return users, err
}

// ArchiveUser переводит учётную запись в архив: в одной транзакции пишет
// неизменяемую запись deleted_users и удаляет учётную запись.
// Подписки и платежи владельца сохраняются.
func (s *Storage) ArchiveUser(ctx context.Context, id, reason, deletedBy string, now time.Time) (models.DeletedUser, error) {
	const op = "storage.ArchiveUser"
	var archived models.DeletedUser
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		var by sql.NullString
		err = tx.QueryRowContext(ctx,
			`INSERT INTO deleted_users (user_id, name, email, role, reason, deleted_by, original_created_at, deleted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id, user_id, name, email, role, reason, deleted_by, original_created_at, deleted_at`,
			u.ID, u.Name, u.Email, u.Role, reason, nullString(deletedBy), u.CreatedAt, now,
		).Scan(&archived.ID, &archived.UserID, &archived.Name, &archived.Email, &archived.Role,
			&archived.Reason, &by, &archived.OriginalCreatedAt, &archived.DeletedAt)
		if err != nil {
			return err
		}
		archived.DeletedBy = by.String

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return mustAffect(res)
	})
	return archived, err
}
