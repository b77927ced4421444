package blobs

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/blob"
)

type MockService struct{ mock.Mock }

func (m *MockService) Upload(ctx context.Context, bucket models.Bucket, data []byte) (models.Blob, error) {
	args := m.Called(ctx, bucket, data)
	return args.Get(0).(models.Blob), args.Error(1)
}

func (m *MockService) Lookup(ctx context.Context, primary models.Bucket, filename string) (models.Blob, error) {
	args := m.Called(ctx, primary, filename)
	return args.Get(0).(models.Blob), args.Error(1)
}

func newHandler(svc Service) *Handler {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
}

func withParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

var png = []byte("\x89PNG\r\n\x1a\n0000")

func TestHandler_Image(t *testing.T) {
	svc := new(MockService)
	svc.On("Lookup", mock.Anything, models.BucketSupport, "a.png").
		Return(models.Blob{Bucket: models.BucketUploads, Filename: "a.png", ContentType: "image/png", Data: png}, nil)
	svc.On("Lookup", mock.Anything, models.Bucket(""), "missing.png").Return(models.Blob{}, blob.ErrBlobNotFound)
	h := newHandler(svc)

	rr := httptest.NewRecorder()
	h.Image(rr, withParam(httptest.NewRequest(http.MethodGet, "/api/user/image/a.png?bucket=support", nil), "filename", "a.png"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "12", rr.Header().Get("Content-Length"))
	assert.Equal(t, "public, max-age=31536000, immutable", rr.Header().Get("Cache-Control"))
	assert.Equal(t, png, rr.Body.Bytes())

	rr = httptest.NewRecorder()
	h.Image(rr, withParam(httptest.NewRequest(http.MethodGet, "/api/user/image/missing.png", nil), "filename", "missing.png"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, rr.Header().Get("Cache-Control"))
}

func TestHandler_UploadMultipart(t *testing.T) {
	svc := new(MockService)
	svc.On("Upload", mock.Anything, models.BucketArticle, png).
		Return(models.Blob{Bucket: models.BucketArticle, Filename: "f.png", ContentType: "image/png", Size: int64(len(png))}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "chart.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads/article", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	newHandler(svc).Upload(rr, withParam(req, "bucket", "article"))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"url":"/api/user/image/f.png?bucket=article"`)
	svc.AssertExpectations(t)
}

func TestHandler_UploadRawBody(t *testing.T) {
	svc := new(MockService)
	svc.On("Upload", mock.Anything, models.Bucket("nope"), png).Return(models.Blob{}, assertValidation())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads/nope", bytes.NewReader(png))
	req.Header.Set("Content-Type", "image/png")
	rr := httptest.NewRecorder()
	newHandler(svc).Upload(rr, withParam(req, "bucket", "nope"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func assertValidation() error { return apperr.Validation("unknown bucket") }
