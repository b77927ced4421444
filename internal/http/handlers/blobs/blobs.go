// Package blobs реализует выдачу и загрузку изображений и файлов.
package blobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/finwire/finwire/internal/http/response"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/sl"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/blob"
)

// formField — имя поля multipart-формы с файлом.
const formField = "file"

type Service interface {
	Upload(ctx context.Context, bucket models.Bucket, data []byte) (models.Blob, error)
	Lookup(ctx context.Context, primary models.Bucket, filename string) (models.Blob, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// Image godoc
// @Summary Изображение или файл
// @Description Поиск идёт сначала в бакете из параметра bucket, затем в article, freearticles, support, uploads.
// @Tags Blobs
// @Produce octet-stream
// @Param filename path string true "Имя файла"
// @Param bucket query string false "Бакет для первой попытки"
// @Success 200 {file} binary
// @Failure 404 {object} response.ErrorResponse
// @Router /api/user/image/{filename} [get]
// @Router /api/admin/image/{filename} [get]
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.blobs.Image"), slog.String("request_id", middleware.GetReqID(r.Context())))

	b, err := h.service.Lookup(r.Context(), models.Bucket(r.URL.Query().Get("bucket")), chi.URLParam(r, "filename"))
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	w.Header().Set("Content-Type", b.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.Data)))
	w.Header().Set("Cache-Control", blob.CacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, bytes.NewReader(b.Data)); err != nil {
		log.Warn("failed to stream blob", slog.String("filename", b.Filename), sl.Err(err))
	}
}

// Upload godoc
// @Summary Загрузить файл
// @Description Принимает multipart-форму с полем file или сырое тело.
// @Tags Admin
// @Accept mpfd
// @Produce json
// @Param bucket path string true "Бакет" Enums(article, freearticles, support, uploads)
// @Param file formData file false "Файл"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /api/admin/uploads/{bucket} [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.blobs.Upload"), slog.String("request_id", middleware.GetReqID(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxUploadSize+1<<20)
	data, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, r, log, apperr.Validation("file is too large"))
			return
		}
		response.Error(w, r, log, apperr.Validation("invalid upload").WithCause(err))
		return
	}

	saved, err := h.service.Upload(r.Context(), models.Bucket(chi.URLParam(r, "bucket")), data)
	if err != nil {
		response.Error(w, r, log, err)
		return
	}
	response.Created(w, r, map[string]any{
		"bucket":       saved.Bucket,
		"filename":     saved.Filename,
		"content_type": saved.ContentType,
		"size":         saved.Size,
		"url":          "/api/user/image/" + saved.Filename + "?bucket=" + string(saved.Bucket),
	})
}

func readUpload(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return io.ReadAll(r.Body)
	}
	if err := r.ParseMultipartForm(blob.MaxUploadSize); err != nil {
		return nil, err
	}
	f, _, err := r.FormFile(formField)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
