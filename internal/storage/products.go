package storage

import (
	"context"
	"time"

	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
)

const productColumns = `id, heading, slug, category, description, price, currency, duration_months, is_active, created_at, updated_at`

const articleColumns = `id, product_id, title, body, is_active, is_free, position, featured_image, created_at`

func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Heading, &p.Slug, &p.Category, &p.Description, &p.Price, &p.Currency,
		&p.DurationMonths, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanArticle(row rowScanner) (models.Article, error) {
	var a models.Article
	err := row.Scan(&a.ID, &a.ProductID, &a.Title, &a.Body, &a.IsActive, &a.IsFree, &a.Position,
		&a.FeaturedImage, &a.CreatedAt)
	return a, err
}

// ProductFilter — фильтр списка продуктов.
type ProductFilter struct {
	Category   string
	ActiveOnly bool
	Page       pagination.Params
}

// ArticleFilter — фильтр списка статей.
type ArticleFilter struct {
	ProductID  string
	ActiveOnly bool
	FreeOnly   bool
	Page       pagination.Params
}

// CreateProduct вставляет продукт. Повтор slug — Conflict.
func (s *Storage) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	const op = "storage.CreateProduct"
	var created models.Product
	err := s.query(ctx, op, func(q querier) error {
		var err error
		created, err = scanProduct(q.QueryRowContext(ctx,
			`INSERT INTO products (heading, slug, category, description, price, currency, duration_months, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+productColumns,
			p.Heading, p.Slug, p.Category, p.Description, p.Price, p.Currency, p.DurationMonths, p.IsActive))
		return err
	})
	return created, err
}

// UpdateProduct перезаписывает изменяемые поля продукта.
func (s *Storage) UpdateProduct(ctx context.Context, p models.Product, now time.Time) (models.Product, error) {
	const op = "storage.UpdateProduct"
	var updated models.Product
	err := s.query(ctx, op, func(q querier) error {
		var err error
		updated, err = scanProduct(q.QueryRowContext(ctx,
			`UPDATE products
			 SET heading = $2, slug = $3, category = $4, description = $5, price = $6, currency = $7,
			     duration_months = $8, is_active = $9, updated_at = $10
			 WHERE id = $1
			 RETURNING `+productColumns,
			p.ID, p.Heading, p.Slug, p.Category, p.Description, p.Price, p.Currency,
			p.DurationMonths, p.IsActive, now))
		return err
	})
	return updated, err
}

// DeactivateProduct скрывает продукт. Строка остаётся: на неё ссылаются подписки.
func (s *Storage) DeactivateProduct(ctx context.Context, id string, now time.Time) error {
	const op = "storage.DeactivateProduct"
	return s.query(ctx, op, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`UPDATE products SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, now)
		if err != nil {
			return err
		}
		return mustAffect(res)
	})
}

// GetProduct возвращает продукт без статей.
func (s *Storage) GetProduct(ctx context.Context, id string) (models.Product, error) {
	const op = "storage.GetProduct"
	var p models.Product
	err := s.query(ctx, op, func(q querier) error {
		var err error
		p, err = scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
		return err
	})
	return p, err
}

// GetProductsByIDs возвращает активные продукты из ids.
func (s *Storage) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	const op = "storage.GetProductsByIDs"
	var products []models.Product
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE id = ANY($1) AND is_active ORDER BY heading`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			products = append(products, p)
		}
		return rows.Err()
	})
	return products, err
}

// ListProducts возвращает продукты, отсортированные по заголовку.
func (s *Storage) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	const op = "storage.ListProducts"
	var products []models.Product
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products
			 WHERE ($1::text = '' OR category = $1) AND (NOT $2::boolean OR is_active)
			 ORDER BY heading, id
			 LIMIT $3 OFFSET $4`,
			f.Category, f.ActiveOnly, f.Page.Limit, f.Page.Offset())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			products = append(products, p)
		}
		return rows.Err()
	})
	return products, err
}

// CreateArticle добавляет статью в конец продукта, если позиция не задана.
func (s *Storage) CreateArticle(ctx context.Context, a models.Article) (models.Article, error) {
	const op = "storage.CreateArticle"
	var created models.Article
	err := s.query(ctx, op, func(q querier) error {
		var err error
		created, err = scanArticle(q.QueryRowContext(ctx,
			`INSERT INTO articles (product_id, title, body, is_active, is_free, position, featured_image)
			 VALUES ($1, $2, $3, $4, $5,
			         CASE WHEN $6::int > 0 THEN $6::int
			              ELSE (SELECT COALESCE(MAX(position), 0) + 1 FROM articles WHERE product_id = $1) END,
			         $7)
			 RETURNING `+articleColumns,
			a.ProductID, a.Title, a.Body, a.IsActive, a.IsFree, a.Position, a.FeaturedImage))
		return err
	})
	return created, err
}

// UpdateArticle перезаписывает изменяемые поля статьи.
func (s *Storage) UpdateArticle(ctx context.Context, a models.Article, now time.Time) (models.Article, error) {
	const op = "storage.UpdateArticle"
	var updated models.Article
	err := s.query(ctx, op, func(q querier) error {
		var err error
		updated, err = scanArticle(q.QueryRowContext(ctx,
			`UPDATE articles
			 SET title = $3, body = $4, is_active = $5, is_free = $6, position = $7, featured_image = $8, updated_at = $9
			 WHERE id = $1 AND product_id = $2
			 RETURNING `+articleColumns,
			a.ID, a.ProductID, a.Title, a.Body, a.IsActive, a.IsFree, a.Position, a.FeaturedImage, now))
		return err
	})
	return updated, err
}

// GetArticle возвращает статью вместе с признаком активности родительского продукта.
func (s *Storage) GetArticle(ctx context.Context, id string) (models.Article, bool, error) {
	const op = "storage.GetArticle"
	var (
		a             models.Article
		productActive bool
	)
	err := s.query(ctx, op, func(q querier) error {
		return q.QueryRowContext(ctx,
			`SELECT a.id, a.product_id, a.title, a.body, a.is_active, a.is_free, a.position, a.featured_image,
			        a.created_at, p.is_active
			 FROM articles a JOIN products p ON p.id = a.product_id
			 WHERE a.id = $1`, id,
		).Scan(&a.ID, &a.ProductID, &a.Title, &a.Body, &a.IsActive, &a.IsFree, &a.Position,
			&a.FeaturedImage, &a.CreatedAt, &productActive)
	})
	return a, productActive, err
}

// ListArticles возвращает статьи по позиции. ActiveOnly скрывает и статьи неактивных продуктов.
func (s *Storage) ListArticles(ctx context.Context, f ArticleFilter) ([]models.Article, error) {
	const op = "storage.ListArticles"
	var articles []models.Article
	err := s.query(ctx, op, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT a.id, a.product_id, a.title, a.body, a.is_active, a.is_free, a.position, a.featured_image, a.created_at
			 FROM articles a JOIN products p ON p.id = a.product_id
			 WHERE ($1::text = '' OR a.product_id::text = $1)
			   AND (NOT $2::boolean OR (a.is_active AND p.is_active))
			   AND (NOT $3::boolean OR a.is_free)
			 ORDER BY a.product_id, a.position, a.created_at
			 LIMIT $4 OFFSET $5`,
			f.ProductID, f.ActiveOnly, f.FreeOnly, f.Page.Limit, f.Page.Offset())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanArticle(rows)
			if err != nil {
				return err
			}
			articles = append(articles, a)
		}
		return rows.Err()
	})
	return articles, err
}

// SetArticleActive включает или скрывает статью.
func (s *Storage) SetArticleActive(ctx context.Context, productID, articleID string, active bool, now time.Time) error {
	const op = "storage.SetArticleActive"
	return s.query(ctx, op, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`UPDATE articles SET is_active = $3, updated_at = $4 WHERE id = $1 AND product_id = $2`,
			articleID, productID, active, now)
		if err != nil {
			return err
		}
		return mustAffect(res)
	})
}
