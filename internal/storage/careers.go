package storage

import (
	"context"

	"github.com/finwire/finwire/internal/models"
)

const careerColumns = `id, title, location, description, is_active, created_at`

func scanCareer(row rowScanner) (models.Career, error) {
	var c models.Career
	err := row.Scan(&c.ID, &c.Title, &c.Location, &c.Description, &c.IsActive, &c.CreatedAt)
	return c, err
}

// CreateCareer вставляет вакансию.
func (s *Storage) CreateCareer(ctx context.Context, c models.Career) (models.Career, error) {
	const op = "storage.CreateCareer"
	var created models.Career
	err := s.query(ctx, op, func(q querier) error {
		var err error
		created, err = scanCareer(q.QueryRowContext(ctx,
			`INSERT INTO careers (title, location, description, is_active) VALUES ($1, $2, $3, $4)
			 RETURNING `+careerColumns, c.Title, c.Location, c.Description, c.IsActive))
		return err
	})
	return created, err
}

// UpdateCareer перезаписывает вакансию.
func (s *Storage) UpdateCareer(ctx context.Context, c models.Career) (models.Career, error) {
	const op = "storage.UpdateCareer"
	var updated models.Career
	err := s.query(ctx, op, func(q querier) error {
		var err error
		updated, err = scanCareer(q.QueryRowContext(ctx,
			`UPDATE careers SET title = $2, location = $3, description = $4, is_active = $5 WHERE id = $1
			 RETURNING `+careerColumns, c.ID, c.Title, c.Location, c.Description, c.IsActive))
		return err
	})
	return updated, err
}

// DeleteCareer удаляет вакансию.
func (s *Storage) DeleteCareer(ctx context.Context, id string) error {
	const op = "storage.DeleteCareer"
	return s.query(ctx, op, func(q querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM careers WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return mustAffect(res)
	})
}

// ListCareers возвращает вакансии, новые первыми.
func (s *Storage) ListCareers(ctx context.Context, activeOnly bool) ([]models.Career, error) {
	const op = "storage.ListCareers"
	var careers []models.Career
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+careerColumns+` FROM careers WHERE (NOT $1::boolean OR is_active) ORDER BY created_at DESC, id`,
			activeOnly)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCareer(rows)
			if err != nil {
				return err
			}
			careers = append(careers, c)
		}
		return rows.Err()
	})
	return careers, err
}
