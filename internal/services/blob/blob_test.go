package blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/storage"
)

type StoreMock struct{ mock.Mock }

func (m *StoreMock) PutBlob(ctx context.Context, b models.Blob) (models.Blob, error) {
	args := m.Called(ctx, b)
	return args.Get(0).(models.Blob), args.Error(1)
}

func (m *StoreMock) GetBlob(ctx context.Context, bucket models.Bucket, filename string) (models.Blob, error) {
	args := m.Called(ctx, bucket, filename)
	return args.Get(0).(models.Blob), args.Error(1)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newService(store Store) *Service {
	s := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestService_Upload(t *testing.T) {
	store := new(StoreMock)
	store.On("PutBlob", mock.Anything, mock.MatchedBy(func(b models.Blob) bool {
		return b.Bucket == models.BucketArticle && b.ContentType == "image/png" && strings.HasSuffix(b.Filename, ".png")
	})).Return(models.Blob{Filename: "x.png", Size: int64(len(pngHeader))}, nil).Once()

	s := newService(store)
	got, err := s.Upload(context.Background(), models.BucketArticle, pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "x.png", got.Filename)

	_, err = s.Upload(context.Background(), "secret", pngHeader)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.Upload(context.Background(), models.BucketUploads, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.Upload(context.Background(), models.BucketUploads, []byte("#!/bin/sh\necho hi\n"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	store.AssertExpectations(t)
}

func TestService_LookupFallbackOrder(t *testing.T) {
	store := new(StoreMock)
	var visited []models.Bucket
	record := func(args mock.Arguments) { visited = append(visited, args.Get(1).(models.Bucket)) }
	store.On("GetBlob", mock.Anything, models.BucketSupport, "chart.png").Run(record).
		Return(models.Blob{}, storage.ErrNotFound).Once()
	store.On("GetBlob", mock.Anything, models.BucketArticle, "chart.png").Run(record).
		Return(models.Blob{}, storage.ErrNotFound).Once()
	store.On("GetBlob", mock.Anything, models.BucketFreeArticles, "chart.png").Run(record).
		Return(models.Blob{Bucket: models.BucketFreeArticles, Filename: "chart.png"}, nil).Once()

	b, err := newService(store).Lookup(context.Background(), models.BucketSupport, "chart.png")
	require.NoError(t, err)
	assert.Equal(t, models.BucketFreeArticles, b.Bucket)
	assert.Equal(t, []models.Bucket{models.BucketSupport, models.BucketArticle, models.BucketFreeArticles}, visited)
	store.AssertNotCalled(t, "GetBlob", mock.Anything, models.BucketUploads, "chart.png")
}

func TestService_LookupMissing(t *testing.T) {
	store := new(StoreMock)
	store.On("GetBlob", mock.Anything, mock.Anything, "gone.png").Return(models.Blob{}, storage.ErrNotFound).Times(len(models.Buckets))

	_, err := newService(store).Lookup(context.Background(), "", "gone.png")
	assert.ErrorIs(t, err, ErrBlobNotFound)
	store.AssertNumberOfCalls(t, "GetBlob", len(models.Buckets))
}

func TestService_LookupRejectsPaths(t *testing.T) {
	s := newService(new(StoreMock))
	for _, name := range []string{"", "../etc/passwd", "a/b.png", ".hidden"} {
		_, err := s.Lookup(context.Background(), models.BucketArticle, name)
		assert.ErrorIs(t, err, ErrBlobNotFound, name)
	}
}

func TestService_LookupStorageError(t *testing.T) {
	store := new(StoreMock)
	store.On("GetBlob", mock.Anything, models.BucketArticle, "a.png").
		Return(models.Blob{}, apperr.ServiceUnavailable("storage unavailable").WithCause(errors.New("dial"))).Once()

	_, err := newService(store).Lookup(context.Background(), models.BucketArticle, "a.png")
	assert.Equal(t, apperr.KindServiceUnavailable, apperr.KindOf(err))
}
