// Package content решает, что отдать по запросу статьи: полный текст или превью.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/finwire/finwire/internal/cache"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/lib/sl"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/storage"
)

// Kind — вид ответа на запрос статьи.
type Kind string

const (
	KindFull    Kind = "full"
	KindPreview Kind = "preview"
)

// DefaultPreviewLength — длина превью в символах, если не задана в конфиге.
const DefaultPreviewLength = 280

const viewsTimeout = 2 * time.Second

// ErrArticleNotFound — статьи нет, она скрыта или скрыт её продукт.
var ErrArticleNotFound = apperr.NotFound("article")

// ErrProductNotFound — продукта нет или он скрыт.
var ErrProductNotFound = apperr.NotFound("product")

// Resolution — результат разрешения доступа к статье.
type Resolution struct {
	Kind    Kind           `json:"kind"`
	Article models.Article `json:"article"`
}

// Repository — каталог.
type Repository interface {
	GetArticle(ctx context.Context, id string) (models.Article, bool, error)
	ListArticles(ctx context.Context, f storage.ArticleFilter) ([]models.Article, error)
	GetProduct(ctx context.Context, id string) (models.Product, error)
	ListProducts(ctx context.Context, f storage.ProductFilter) ([]models.Product, error)
}

// AccessChecker отвечает, есть ли у пользователя действующая подписка на продукт.
type AccessChecker interface {
	HasActiveAccess(ctx context.Context, userID, productID string) (bool, error)
}

// Cache — кеш карточек продуктов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// ViewCounter — счётчики просмотров.
type ViewCounter interface {
	IncrView(ctx context.Context, articleID string) (int64, error)
	Views(ctx context.Context, articleIDs ...string) (map[string]int64, error)
}

// Resolver — сервис выдачи контента.
type Resolver struct {
	repo          Repository
	access        AccessChecker
	cache         Cache
	views         ViewCounter
	log           *slog.Logger
	previewLength int
}

// New создаёт Resolver. cache и views могут быть nil.
func New(repo Repository, access AccessChecker, c Cache, views ViewCounter, log *slog.Logger, previewLength int) *Resolver {
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}
	return &Resolver{
		repo:          repo,
		access:        access,
		cache:         c,
		views:         views,
		log:           log,
		previewLength: previewLength,
	}
}

// ResolveArticle применяет политику доступа:
// бесплатная статья — полностью; без сессии — превью;
// с сессией — полностью только при действующей подписке на продукт.
// Отсутствующая или скрытая статья — NotFound при любой сессии.
func (r *Resolver) ResolveArticle(ctx context.Context, articleID string, claims *models.Claims) (Resolution, error) {
	const op = "content.ResolveArticle"
	if _, err := uuid.Parse(articleID); err != nil {
		return Resolution{}, ErrArticleNotFound
	}

	article, productActive, err := r.repo.GetArticle(ctx, articleID)
	if errors.Is(err, storage.ErrNotFound) {
		return Resolution{}, ErrArticleNotFound
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("%s: %w", op, err)
	}
	if !article.IsActive || !productActive {
		return Resolution{}, ErrArticleNotFound
	}

	if article.IsFree {
		return Resolution{Kind: KindFull, Article: article}, nil
	}
	if claims == nil {
		return r.preview(article), nil
	}

	ok, err := r.access.HasActiveAccess(ctx, claims.UserID, article.ProductID)
	if err != nil {
		return Resolution{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return r.preview(article), nil
	}
	return Resolution{Kind: KindFull, Article: article}, nil
}

func (r *Resolver) preview(a models.Article) Resolution {
	a.Preview = Teaser(a.Body, r.previewLength)
	a.Body = ""
	return Resolution{Kind: KindPreview, Article: a}
}

// ArticleQuery — параметры публичного списка статей.
type ArticleQuery struct {
	ProductID string
	FreeOnly  bool
	Page      pagination.Params
}

// ListArticles возвращает превью активных статей. Просмотры считаются
// в фоне; ошибка счётчика не влияет на ответ.
func (r *Resolver) ListArticles(ctx context.Context, q ArticleQuery) ([]models.Article, error) {
	const op = "content.ListArticles"
	if q.ProductID != "" {
		if _, err := uuid.Parse(q.ProductID); err != nil {
			return []models.Article{}, nil
		}
	}
	articles, err := r.repo.ListArticles(ctx, storage.ArticleFilter{
		ProductID:  q.ProductID,
		ActiveOnly: true,
		FreeOnly:   q.FreeOnly,
		Page:       q.Page,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.Article, 0, len(articles))
	ids := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, r.preview(a).Article)
		ids = append(ids, a.ID)
	}
	r.attachViews(ctx, out, ids)
	if len(ids) > 0 && r.views != nil {
		go r.countViews(context.WithoutCancel(ctx), ids)
	}
	return out, nil
}

// Views возвращает счётчик просмотров статьи.
func (r *Resolver) Views(ctx context.Context, articleID string) (int64, error) {
	const op = "content.Views"
	if r.views == nil {
		return 0, nil
	}
	views, err := r.views.Views(ctx, articleID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return views[articleID], nil
}

func (r *Resolver) attachViews(ctx context.Context, articles []models.Article, ids []string) {
	if r.views == nil || len(ids) == 0 {
		return
	}
	views, err := r.views.Views(ctx, ids...)
	if err != nil {
		r.log.Warn("failed to read view counters", sl.Err(err))
		return
	}
	for i := range articles {
		articles[i].Views = views[articles[i].ID]
	}
}

func (r *Resolver) countViews(ctx context.Context, ids []string) {
	ctx, cancel := context.WithTimeout(ctx, viewsTimeout)
	defer cancel()
	for _, id := range ids {
		if _, err := r.views.IncrView(ctx, id); err != nil {
			r.log.Warn("failed to increment view counter", slog.String("article_id", id), sl.Err(err))
			return
		}
	}
}

// ListProducts возвращает активные продукты.
func (r *Resolver) ListProducts(ctx context.Context, category string, page pagination.Params) ([]models.Product, error) {
	const op = "content.ListProducts"
	products, err := r.repo.ListProducts(ctx, storage.ProductFilter{Category: category, ActiveOnly: true, Page: page})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// GetProduct возвращает активный продукт с превью его статей.
// Карточка кешируется; при недоступности кеша читается из базы.
func (r *Resolver) GetProduct(ctx context.Context, id string) (models.Product, error) {
	const op = "content.GetProduct"
	if _, err := uuid.Parse(id); err != nil {
		return models.Product{}, ErrProductNotFound
	}

	key := cache.ProductKey(id)
	if r.cache != nil {
		var cached models.Product
		found, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			r.log.Warn("failed to read product from cache", slog.String("key", key), sl.Err(err))
		}
		if found {
			return cached, nil
		}
	}

	product, err := r.repo.GetProduct(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Product{}, ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	if !product.IsActive {
		return models.Product{}, ErrProductNotFound
	}

	articles, err := r.repo.ListArticles(ctx, storage.ArticleFilter{
		ProductID:  id,
		ActiveOnly: true,
		Page:       pagination.Params{Page: 1, Limit: pagination.MaxLimit},
	})
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	product.Articles = make([]models.Article, 0, len(articles))
	for _, a := range articles {
		product.Articles = append(product.Articles, r.preview(a).Article)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, product, 0); err != nil {
			r.log.Warn("failed to cache product", slog.String("key", key), sl.Err(err))
		}
	}
	return product, nil
}

// Teaser строит превью платной статьи: не длиннее limit символов и не больше
// половины текста, поэтому короткая статья тоже не отдаётся целиком.
func Teaser(body string, limit int) string {
	body = strings.TrimSpace(body)
	half := utf8.RuneCountInString(body) / 2
	if limit <= 0 || limit > half {
		limit = half
	}
	if limit == 0 {
		return ""
	}
	return Truncate(body, limit)
}

// Truncate обрезает текст до limit символов по границе слова и добавляет многоточие.
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := limit
	for cut > 0 && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return strings.TrimRightFunc(string(runes[:cut]), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "…"
}
