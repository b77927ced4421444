// Package catalog реализует HTTP-обработчики каталога: публичные продукты,
// статьи и вакансии, а также их администрирование.
package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/content"
)

// Reader — публичное чтение каталога с проверкой доступа.
type Reader interface {
	ListProducts(ctx context.Context, category string, page pagination.Params) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (models.Product, error)
	ListArticles(ctx context.Context, q content.ArticleQuery) ([]models.Article, error)
	ResolveArticle(ctx context.Context, articleID string, claims *models.Claims) (content.Resolution, error)
	Views(ctx context.Context, articleID string) (int64, error)
}

// Editor — администрирование каталога.
type Editor interface {
	Products(ctx context.Context, category string, page pagination.Params) ([]models.Product, error)
	Product(ctx context.Context, id string) (models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	UpdateProduct(ctx context.Context, p models.Product) (models.Product, error)
	DeactivateProduct(ctx context.Context, id string) error
	AddArticle(ctx context.Context, productID string, a models.Article) (models.Article, error)
	UpdateArticle(ctx context.Context, productID string, a models.Article) (models.Article, error)
	SetArticleActive(ctx context.Context, productID, articleID string, active bool) error
	CreateCareer(ctx context.Context, c models.Career) (models.Career, error)
	UpdateCareer(ctx context.Context, c models.Career) (models.Career, error)
	DeleteCareer(ctx context.Context, id string) error
	Careers(ctx context.Context, activeOnly bool) ([]models.Career, error)
}

// Handler обслуживает маршруты каталога.
type Handler struct {
	log    *slog.Logger
	reader Reader
	editor Editor
}

// New создаёт Handler.
func New(log *slog.Logger, reader Reader, editor Editor) *Handler {
	return &Handler{log: log, reader: reader, editor: editor}
}

// ProductRequest — тело создания и изменения продукта.
type ProductRequest struct {
	Heading        string `json:"heading" validate:"required,max=200"`
	Slug           string `json:"slug" validate:"max=200"`
	Category       string `json:"category" validate:"required,max=100"`
	Description    string `json:"description"`
	Price          int64  `json:"price" validate:"min=0"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
	DurationMonths int    `json:"duration_months" validate:"required,min=1,max=120"`
	IsActive       *bool  `json:"is_active"`
}

func (p ProductRequest) model(id string) models.Product {
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return models.Product{
		ID:             id,
		Heading:        p.Heading,
		Slug:           p.Slug,
		Category:       p.Category,
		Description:    p.Description,
		Price:          p.Price,
		Currency:       p.Currency,
		DurationMonths: p.DurationMonths,
		IsActive:       active,
	}
}

// ArticleRequest — тело создания и изменения статьи.
type ArticleRequest struct {
	Title         string `json:"title" validate:"required,max=300"`
	Body          string `json:"body" validate:"required"`
	IsFree        bool   `json:"is_free"`
	Position      int    `json:"position" validate:"min=0"`
	FeaturedImage string `json:"featured_image" validate:"max=200"`
	IsActive      *bool  `json:"is_active"`
}

func (a ArticleRequest) model(id string) models.Article {
	active := true
	if a.IsActive != nil {
		active = *a.IsActive
	}
	return models.Article{
		ID:            id,
		Title:         a.Title,
		Body:          a.Body,
		IsFree:        a.IsFree,
		Position:      a.Position,
		FeaturedImage: a.FeaturedImage,
		IsActive:      active,
	}
}

// ActiveRequest — публикация или скрытие.
type ActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// CareerRequest — тело вакансии.
type CareerRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Location    string `json:"location" validate:"max=200"`
	Description string `json:"description" validate:"required"`
	IsActive    *bool  `json:"is_active"`
}

func (c CareerRequest) model(id string) models.Career {
	active := true
	if c.IsActive != nil {
		active = *c.IsActive
	}
	return models.Career{ID: id, Title: c.Title, Location: c.Location, Description: c.Description, IsActive: active}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// ListProducts godoc
// @Summary Список продуктов
// @Tags Catalog
// @Produce json
// @Param category query string false "Категория"
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} response.Response
// @Router /api/user/products [get]
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.ListProducts")
	products, err := h.reader.ListProducts(r.Context(), r.URL.Query().Get("category"), pagination.FromRequest(r))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, products)
}

// GetProduct godoc
// @Summary Продукт с превью статей
// @Tags Catalog
// @Produce json
// @Param id path string true "ID продукта"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/user/products/{id} [get]
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.GetProduct")
	product, err := h.reader.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, product)
}

// ListArticles godoc
// @Summary Превью статей
// @Tags Catalog
// @Produce json
// @Param product_id query string false "ID продукта"
// @Param free query bool false "Только бесплатные"
// @Success 200 {object} response.Response
// @Router /api/user/articles [get]
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.ListArticles")
	free, _ := strconv.ParseBool(r.URL.Query().Get("free"))
	articles, err := h.reader.ListArticles(r.Context(), content.ArticleQuery{
		ProductID: r.URL.Query().Get("product_id"),
		FreeOnly:  free,
		Page:      pagination.FromRequest(r),
	})
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, articles)
}

// ResolveArticle godoc
// @Summary Статья полностью или превью
// @Description Полный текст отдаётся для бесплатных статей и подписчикам продукта.
// @Tags Catalog
// @Produce json
// @Param id path string true "ID статьи"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/user/articles/{id} [get]
func (h *Handler) ResolveArticle(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.ResolveArticle")

	var claims *models.Claims
	if c, ok := middlewarectx.ClaimsFrom(r.Context()); ok {
		claims = &c
	}
	res, err := h.reader.ResolveArticle(r.Context(), chi.URLParam(r, "id"), claims)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, res)
}

// ArticleViews godoc
// @Summary Счётчик показов статьи
// @Tags Catalog
// @Produce json
// @Param id path string true "ID статьи"
// @Success 200 {object} response.Response
// @Router /api/user/articles/{id}/views [get]
func (h *Handler) ArticleViews(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.ArticleViews")
	id := chi.URLParam(r, "id")
	views, err := h.reader.Views(r.Context(), id)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, map[string]any{"id": id, "views": views})
}

// Careers godoc
// @Summary Открытые вакансии
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/user/careers [get]
func (h *Handler) Careers(w http.ResponseWriter, r *http.Request) {
	h.careers(w, r, true)
}

// AdminCareers godoc
// @Summary Все вакансии
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/admin/careers [get]
func (h *Handler) AdminCareers(w http.ResponseWriter, r *http.Request) {
	h.careers(w, r, false)
}

func (h *Handler) careers(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	log := h.logger(r, "handlers.catalog.Careers")
	careers, err := h.editor.Careers(r.Context(), activeOnly)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, careers)
}
