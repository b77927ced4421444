package settings

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
)

type MockService struct{ mock.Mock }

func (m *MockService) All(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockService) Put(ctx context.Context, key, value string) (models.Setting, error) {
	args := m.Called(ctx, key, value)
	return args.Get(0).(models.Setting), args.Error(1)
}

func TestHandler(t *testing.T) {
	svc := new(MockService)
	svc.On("All", mock.Anything).Return(map[string]string{"site.title": "Finwire"}, nil)
	svc.On("Put", mock.Anything, "site.title", "Finwire Daily").Return(models.Setting{Key: "site.title", Value: "Finwire Daily"}, nil)
	svc.On("Put", mock.Anything, "Bad Key", "x").Return(models.Setting{}, apperr.Validation("key must match pattern"))
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	assert.JSONEq(t, `{"success":true,"data":{"site.title":"Finwire"}}`, rr.Body.String())

	put := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("key", key)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		rr := httptest.NewRecorder()
		h.Put(rr, req)
		return rr
	}
	assert.Equal(t, http.StatusOK, put("site.title", `{"value":"Finwire Daily"}`).Code)
	assert.Equal(t, http.StatusBadRequest, put("Bad Key", `{"value":"x"}`).Code)
	svc.AssertExpectations(t)
}
