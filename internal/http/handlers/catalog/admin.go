package catalog

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/lib/pagination"
)

// AdminProducts godoc
// @Summary Все продукты, включая скрытые
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/admin/products [get]
func (h *Handler) AdminProducts(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.AdminProducts")
	products, err := h.editor.Products(r.Context(), r.URL.Query().Get("category"), pagination.FromRequest(r))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, products)
}

// AdminProduct godoc
// @Summary Продукт с полными статьями
// @Tags Admin
// @Produce json
// @Param id path string true "ID продукта"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /api/admin/products/{id} [get]
func (h *Handler) AdminProduct(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.AdminProduct")
	product, err := h.editor.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, product)
}

// CreateProduct godoc
// @Summary Создать продукт
// @Description Slug строится из заголовка, если не передан.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body ProductRequest true "Продукт"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/admin/products [post]
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.CreateProduct")
	var req ProductRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	product, err := h.editor.CreateProduct(r.Context(), req.model(""))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.Created(w, r, product)
}

// UpdateProduct godoc
// @Summary Изменить продукт
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "ID продукта"
// @Param request body ProductRequest true "Продукт"
// @Success 200 {object} response.Response
// @Router /api/admin/products/{id} [put]
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.UpdateProduct")
	var req ProductRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	product, err := h.editor.UpdateProduct(r.Context(), req.model(chi.URLParam(r, "id")))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, product)
}

// DeactivateProduct godoc
// @Summary Скрыть продукт
// @Tags Admin
// @Param id path string true "ID продукта"
// @Success 200 {object} response.Response
// @Router /api/admin/products/{id} [delete]
func (h *Handler) DeactivateProduct(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.DeactivateProduct")
	if err := h.editor.DeactivateProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, nil)
}

// AddArticle godoc
// @Summary Добавить статью в продукт
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "ID продукта"
// @Param request body ArticleRequest true "Статья"
// @Success 201 {object} response.Response
// @Router /api/admin/products/{id}/articles [post]
func (h *Handler) AddArticle(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.AddArticle")
	var req ArticleRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	article, err := h.editor.AddArticle(r.Context(), chi.URLParam(r, "id"), req.model(""))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.Created(w, r, article)
}

// UpdateArticle godoc
// @Summary Изменить статью
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "ID продукта"
// @Param articleID path string true "ID статьи"
// @Param request body ArticleRequest true "Статья"
// @Success 200 {object} response.Response
// @Router /api/admin/products/{id}/articles/{articleID} [put]
func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.UpdateArticle")
	var req ArticleRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	article, err := h.editor.UpdateArticle(r.Context(), chi.URLParam(r, "id"), req.model(chi.URLParam(r, "articleID")))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, article)
}

// SetArticleActive godoc
// @Summary Опубликовать или скрыть статью
// @Tags Admin
// @Accept json
// @Param id path string true "ID продукта"
// @Param articleID path string true "ID статьи"
// @Param request body ActiveRequest true "Флаг"
// @Success 200 {object} response.Response
// @Router /api/admin/products/{id}/articles/{articleID}/status [patch]
func (h *Handler) SetArticleActive(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.SetArticleActive")
	var req ActiveRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	err := h.editor.SetArticleActive(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "articleID"), *req.IsActive)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, nil)
}

// CreateCareer godoc
// @Summary Создать вакансию
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body CareerRequest true "Вакансия"
// @Success 201 {object} response.Response
// @Router /api/admin/careers [post]
func (h *Handler) CreateCareer(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.CreateCareer")
	var req CareerRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	career, err := h.editor.CreateCareer(r.Context(), req.model(""))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.Created(w, r, career)
}

// UpdateCareer godoc
// @Summary Изменить вакансию
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "ID вакансии"
// @Param request body CareerRequest true "Вакансия"
// @Success 200 {object} response.Response
// @Router /api/admin/careers/{id} [put]
func (h *Handler) UpdateCareer(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.UpdateCareer")
	var req CareerRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, log, err)
		return
	}
	career, err := h.editor.UpdateCareer(r.Context(), req.model(chi.URLParam(r, "id")))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, career)
}

// DeleteCareer godoc
// @Summary Удалить вакансию
// @Tags Admin
// @Param id path string true "ID вакансии"
// @Success 200 {object} response.Response
// @Router /api/admin/careers/{id} [delete]
func (h *Handler) DeleteCareer(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.catalog.DeleteCareer")
	if err := h.editor.DeleteCareer(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.OK(w, r, nil)
}
