package storage

import (
	"context"

	"github.com/finwire/finwire/internal/models"
)

// PutBlob сохраняет объект; повторная загрузка с тем же именем заменяет содержимое.
func (s *Storage) PutBlob(ctx context.Context, b models.Blob) (models.Blob, error) {
	const op = "storage.PutBlob"
	saved := b
	err := s.query(ctx, op, func(q querier) error {
		return q.QueryRowContext(ctx,
			`INSERT INTO blobs (bucket, filename, content_type, size, data, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (bucket, filename) DO UPDATE
			 SET content_type = EXCLUDED.content_type, size = EXCLUDED.size,
			     data = EXCLUDED.data, created_at = EXCLUDED.created_at
			 RETURNING created_at`,
			b.Bucket, b.Filename, b.ContentType, int64(len(b.Data)), b.Data, b.CreatedAt,
		).Scan(&saved.CreatedAt)
	})
	saved.Size = int64(len(b.Data))
	return saved, err
}

// GetBlob возвращает объект из бакета.
func (s *Storage) GetBlob(ctx context.Context, bucket models.Bucket, filename string) (models.Blob, error) {
	const op = "storage.GetBlob"
	var b models.Blob
	err := s.query(ctx, op, func(q querier) error {
		return q.QueryRowContext(ctx,
			`SELECT bucket, filename, content_type, size, data, created_at FROM blobs
			 WHERE bucket = $1 AND filename = $2`, bucket, filename,
		).Scan(&b.Bucket, &b.Filename, &b.ContentType, &b.Size, &b.Data, &b.CreatedAt)
	})
	return b, err
}
