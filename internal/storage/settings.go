package storage

import (
	"context"
	"time"

	"github.com/finwire/finwire/internal/models"
)

// ListSettings возвращает все настройки сайта.
func (s *Storage) ListSettings(ctx context.Context) ([]models.Setting, error) {
	const op = "storage.ListSettings"
	var settings []models.Setting
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var st models.Setting
			if err := rows.Scan(&st.Key, &st.Value, &st.UpdatedAt); err != nil {
				return err
			}
			settings = append(settings, st)
		}
		return rows.Err()
	})
	return settings, err
}

// UpsertSetting создаёт или заменяет значение настройки.
func (s *Storage) UpsertSetting(ctx context.Context, key, value string, now time.Time) (models.Setting, error) {
	const op = "storage.UpsertSetting"
	var st models.Setting
	err := s.query(ctx, op, func(q querier) error {
		return q.QueryRowContext(ctx,
			`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
			 RETURNING key, value, updated_at`, key, value, now,
		).Scan(&st.Key, &st.Value, &st.UpdatedAt)
	})
	return st, err
}
