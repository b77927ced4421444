// Package catalog — администрирование продуктов, статей и вакансий.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwire/finwire/internal/cache"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/lib/sl"
	"github.com/finwire/finwire/internal/lib/slug"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/storage"
)

// Repository — запись в каталог.
type Repository interface {
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	UpdateProduct(ctx context.Context, p models.Product, now time.Time) (models.Product, error)
	DeactivateProduct(ctx context.Context, id string, now time.Time) error
	GetProduct(ctx context.Context, id string) (models.Product, error)
	ListProducts(ctx context.Context, f storage.ProductFilter) ([]models.Product, error)
	ListArticles(ctx context.Context, f storage.ArticleFilter) ([]models.Article, error)
	CreateArticle(ctx context.Context, a models.Article) (models.Article, error)
	UpdateArticle(ctx context.Context, a models.Article, now time.Time) (models.Article, error)
	SetArticleActive(ctx context.Context, productID, articleID string, active bool, now time.Time) error
	CreateCareer(ctx context.Context, c models.Career) (models.Career, error)
	UpdateCareer(ctx context.Context, c models.Career) (models.Career, error)
	DeleteCareer(ctx context.Context, id string) error
	ListCareers(ctx context.Context, activeOnly bool) ([]models.Career, error)
}

// Invalidator сбрасывает закешированные карточки продуктов.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Service — сервис каталога.
type Service struct {
	repo     Repository
	cache    Invalidator
	log      *slog.Logger
	currency string
	now      func() time.Time
}

// New создаёт сервис. currency подставляется в продукты без валюты.
func New(repo Repository, cache Invalidator, log *slog.Logger, currency string) *Service {
	return &Service{repo: repo, cache: cache, log: log, currency: currency, now: time.Now}
}

func (s *Service) validateProduct(p *models.Product) error {
	p.Heading = strings.TrimSpace(p.Heading)
	p.Category = strings.TrimSpace(p.Category)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = strings.ToUpper(s.currency)
	}
	switch {
	case p.Heading == "":
		return apperr.Validation("heading is required")
	case p.Category == "":
		return apperr.Validation("category is required")
	case p.Price < 0:
		return apperr.Validation("price must not be negative")
	case p.DurationMonths < 1:
		return apperr.Validation("duration_months must be at least 1")
	case len(p.Currency) != 3:
		return apperr.Validation("currency must be a 3-letter code")
	}
	return nil
}

// CreateProduct создаёт продукт. Slug строится из заголовка;
// при коллизии к нему добавляется короткий суффикс.
func (s *Service) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	const op = "catalog.CreateProduct"
	if err := s.validateProduct(&p); err != nil {
		return models.Product{}, err
	}
	if p.Slug = slug.From(p.Slug); p.Slug == "" {
		p.Slug = slug.From(p.Heading)
	}
	if p.Slug == "" {
		return models.Product{}, apperr.Validation("heading must contain letters or digits")
	}

	created, err := s.repo.CreateProduct(ctx, p)
	if errors.Is(err, apperr.Conflict("").WithReason(apperr.ReasonDuplicate)) {
		p.Slug = slug.WithSuffix(p.Slug, uuid.NewString()[:8])
		created, err = s.repo.CreateProduct(ctx, p)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// UpdateProduct перезаписывает продукт и сбрасывает его кеш.
func (s *Service) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	const op = "catalog.UpdateProduct"
	if err := s.validateProduct(&p); err != nil {
		return models.Product{}, err
	}
	current, err := s.repo.GetProduct(ctx, p.ID)
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	if p.Slug = slug.From(p.Slug); p.Slug == "" {
		p.Slug = current.Slug
	}
	updated, err := s.repo.UpdateProduct(ctx, p, s.now().UTC())
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, p.ID)
	return updated, nil
}

// DeactivateProduct скрывает продукт из публичного каталога.
func (s *Service) DeactivateProduct(ctx context.Context, id string) error {
	const op = "catalog.DeactivateProduct"
	if err := s.repo.DeactivateProduct(ctx, id, s.now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, id)
	return nil
}

func validateArticle(a *models.Article) error {
	a.Title = strings.TrimSpace(a.Title)
	switch {
	case a.Title == "":
		return apperr.Validation("title is required")
	case strings.TrimSpace(a.Body) == "":
		return apperr.Validation("body is required")
	case a.Position < 0:
		return apperr.Validation("position must not be negative")
	}
	return nil
}

// Products возвращает все продукты, включая скрытые.
func (s *Service) Products(ctx context.Context, category string, page pagination.Params) ([]models.Product, error) {
	const op = "catalog.Products"
	products, err := s.repo.ListProducts(ctx, storage.ProductFilter{Category: category, Page: page})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// Product возвращает продукт с полными текстами всех его статей.
func (s *Service) Product(ctx context.Context, id string) (models.Product, error) {
	const op = "catalog.Product"
	if _, err := uuid.Parse(id); err != nil {
		return models.Product{}, storage.ErrNotFound
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	articles, err := s.repo.ListArticles(ctx, storage.ArticleFilter{
		ProductID: id,
		Page:      pagination.Params{Page: 1, Limit: pagination.MaxLimit},
	})
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	if articles == nil {
		articles = []models.Article{}
	}
	product.Articles = articles
	return product, nil
}

// AddArticle добавляет статью в продукт.
func (s *Service) AddArticle(ctx context.Context, productID string, a models.Article) (models.Article, error) {
	const op = "catalog.AddArticle"
	if err := validateArticle(&a); err != nil {
		return models.Article{}, err
	}
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}
	a.ProductID = productID
	created, err := s.repo.CreateArticle(ctx, a)
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, productID)
	return created, nil
}

// UpdateArticle перезаписывает статью продукта, включая признак бесплатности.
func (s *Service) UpdateArticle(ctx context.Context, productID string, a models.Article) (models.Article, error) {
	const op = "catalog.UpdateArticle"
	if err := validateArticle(&a); err != nil {
		return models.Article{}, err
	}
	a.ProductID = productID
	updated, err := s.repo.UpdateArticle(ctx, a, s.now().UTC())
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, productID, cache.ArticleKey(a.ID))
	return updated, nil
}

// SetArticleActive публикует или скрывает статью.
func (s *Service) SetArticleActive(ctx context.Context, productID, articleID string, active bool) error {
	const op = "catalog.SetArticleActive"
	if err := s.repo.SetArticleActive(ctx, productID, articleID, active, s.now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, productID, cache.ArticleKey(articleID))
	return nil
}

func (s *Service) invalidate(ctx context.Context, productID string, extra ...string) {
	if s.cache == nil {
		return
	}
	keys := append([]string{cache.ProductKey(productID)}, extra...)
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("product_id", productID), sl.Err(err))
	}
}
