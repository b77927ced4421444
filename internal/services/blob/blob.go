// Package blob хранит и отдаёт изображения и вложения.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
)

// CacheControl — заголовок для отдаваемых объектов: имена файлов не переиспользуются.
const CacheControl = "public, max-age=31536000, immutable"

// MaxUploadSize — предельный размер загружаемого объекта.
const MaxUploadSize = 10 << 20

var ErrBlobNotFound = apperr.NotFound("file")

// Store — хранилище бинарных объектов.
type Store interface {
	PutBlob(ctx context.Context, b models.Blob) (models.Blob, error)
	GetBlob(ctx context.Context, bucket models.Bucket, filename string) (models.Blob, error)
}

var allowedTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func New(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Upload сохраняет объект под новым уникальным именем с расширением по типу содержимого.
func (s *Service) Upload(ctx context.Context, bucket models.Bucket, data []byte) (models.Blob, error) {
	const op = "blob.Upload"
	if !bucket.Valid() {
		return models.Blob{}, apperr.Validation("unknown bucket")
	}
	if len(data) == 0 {
		return models.Blob{}, apperr.Validation("file is empty")
	}
	if len(data) > MaxUploadSize {
		return models.Blob{}, apperr.Validation(fmt.Sprintf("file exceeds %d bytes", MaxUploadSize))
	}
	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	ext, ok := allowedTypes[contentType]
	if !ok {
		return models.Blob{}, apperr.Validation("unsupported file type " + contentType)
	}

	saved, err := s.store.PutBlob(ctx, models.Blob{
		Bucket:      bucket,
		Filename:    uuid.NewString() + ext,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return models.Blob{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("blob uploaded", slog.String("bucket", string(bucket)),
		slog.String("filename", saved.Filename), slog.Int64("size", saved.Size))
	return saved, nil
}

// Lookup ищет объект сначала в primary, затем в остальных бакетах по порядку models.Buckets.
// Пустой или неизвестный primary пропускается.
func (s *Service) Lookup(ctx context.Context, primary models.Bucket, filename string) (models.Blob, error) {
	const op = "blob.Lookup"
	if filename == "" || path.Base(filename) != filename || strings.HasPrefix(filename, ".") {
		return models.Blob{}, ErrBlobNotFound
	}
	for _, bucket := range order(primary) {
		b, err := s.store.GetBlob(ctx, bucket, filename)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, apperr.NotFound("")) {
			return models.Blob{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	return models.Blob{}, ErrBlobNotFound
}

func order(primary models.Bucket) []models.Bucket {
	buckets := make([]models.Bucket, 0, len(models.Buckets)+1)
	if primary.Valid() {
		buckets = append(buckets, primary)
	}
	for _, b := range models.Buckets {
		if b != primary {
			buckets = append(buckets, b)
		}
	}
	return buckets
}
