package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
)

func validateCareer(c *models.Career) error {
	c.Title = strings.TrimSpace(c.Title)
	c.Location = strings.TrimSpace(c.Location)
	if c.Title == "" {
		return apperr.Validation("title is required")
	}
	if strings.TrimSpace(c.Description) == "" {
		return apperr.Validation("description is required")
	}
	return nil
}

func (s *Service) CreateCareer(ctx context.Context, c models.Career) (models.Career, error) {
	const op = "catalog.CreateCareer"
	if err := validateCareer(&c); err != nil {
		return models.Career{}, err
	}
	created, err := s.repo.CreateCareer(ctx, c)
	if err != nil {
		return models.Career{}, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

func (s *Service) UpdateCareer(ctx context.Context, c models.Career) (models.Career, error) {
	const op = "catalog.UpdateCareer"
	if err := validateCareer(&c); err != nil {
		return models.Career{}, err
	}
	updated, err := s.repo.UpdateCareer(ctx, c)
	if err != nil {
		return models.Career{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func (s *Service) DeleteCareer(ctx context.Context, id string) error {
	const op = "catalog.DeleteCareer"
	if err := s.repo.DeleteCareer(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Careers возвращает вакансии; публичный список содержит только открытые.
func (s *Service) Careers(ctx context.Context, activeOnly bool) ([]models.Career, error) {
	const op = "catalog.Careers"
	careers, err := s.repo.ListCareers(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if careers == nil {
		careers = []models.Career{}
	}
	return careers, nil
}
