package admins

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

	"github.com/finwire/finwire/internal/authz"
	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/auth"
)

type MockService struct{ mock.Mock }

func (m *MockService) ListAdmins(ctx context.Context, caller models.Claims, page pagination.Params) ([]models.User, error) {
	args := m.Called(ctx, caller, page)
	if v := args.Get(0); v != nil {
		return v.([]models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) ListUsers(ctx context.Context, caller models.Claims, page pagination.Params) ([]models.User, error) {
	args := m.Called(ctx, caller, page)
	if v := args.Get(0); v != nil {
		return v.([]models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) CreateAdmin(ctx context.Context, caller models.Claims, in auth.RegisterInput, role models.Role) (models.User, error) {
	args := m.Called(ctx, caller, in, role)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockService) SetActive(ctx context.Context, caller models.Claims, targetID string, isActive bool) (models.User, error) {
	args := m.Called(ctx, caller, targetID, isActive)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockService) DeleteUser(ctx context.Context, caller models.Claims, targetID, reason string) (models.DeletedUser, error) {
	args := m.Called(ctx, caller, targetID, reason)
	return args.Get(0).(models.DeletedUser), args.Error(1)
}

var (
	root  = models.Claims{UserID: "r1", Role: models.RoleSuperAdmin, Scope: models.ScopeAdmin}
	admin = models.Claims{UserID: "a1", Role: models.RoleAdmin, Scope: models.ScopeAdmin}
)

func request(method, id, body string, claims models.Claims) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middlewarectx.WithClaims(ctx, claims))
}

func newHandler(svc Service) *Handler {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
}

func TestHandler_SetStatus(t *testing.T) {
	tests := []struct {
		name       string
		caller     models.Claims
		target     string
		body       string
		err        error
		call       bool
		wantStatus int
		wantBody   string
	}{
		{
			name: "super-admin отключает администратора", caller: root, target: "a1",
			body: `{"is_active":false}`, call: true, wantStatus: http.StatusOK,
		},
		{
			name: "отключить себя нельзя", caller: root, target: "r1",
			body: `{"is_active":false}`, err: authz.ErrSelfDeactivation, call: true,
			wantStatus: http.StatusForbidden, wantBody: `"reason":"SELF_DEACTIVATION"`,
		},
		{
			name: "admin не может менять статус", caller: admin, target: "u1",
			body: `{"is_active":true}`, err: authz.ErrForbidden, call: true,
			wantStatus: http.StatusForbidden, wantBody: `"code":"FORBIDDEN"`,
		},
		{
			name: "без флага", caller: root, target: "a1",
			body: `{}`, wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.call {
				svc.On("SetActive", mock.Anything, tt.caller, tt.target, mock.AnythingOfType("bool")).
					Return(models.User{ID: tt.target}, tt.err)
			}
			rr := httptest.NewRecorder()
			newHandler(svc).SetStatus(rr, request(http.MethodPatch, tt.target, tt.body, tt.caller))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_CreateAdmin(t *testing.T) {
	svc := new(MockService)
	in := auth.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "long-password"}
	svc.On("CreateAdmin", mock.Anything, root, in, models.RoleSuperAdmin).
		Return(models.User{ID: "a2", Role: models.RoleSuperAdmin}, nil)

	rr := httptest.NewRecorder()
	body := `{"name":"Bob","email":"bob@example.com","password":"long-password","role":"super-admin"}`
	newHandler(svc).CreateAdmin(rr, request(http.MethodPost, "", body, root))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role":"super-admin"`)

	rr = httptest.NewRecorder()
	body = `{"name":"Bob","email":"bob@example.com","password":"long-password","role":"user"}`
	newHandler(svc).CreateAdmin(rr, request(http.MethodPost, "", body, root))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNumberOfCalls(t, "CreateAdmin", 1)
}

func TestHandler_DeleteUserWithoutBody(t *testing.T) {
	svc := new(MockService)
	svc.On("DeleteUser", mock.Anything, admin, "u1", "").Return(models.DeletedUser{UserID: "u1", DeletedBy: "a1"}, nil)

	rr := httptest.NewRecorder()
	newHandler(svc).DeleteUser(rr, request(http.MethodDelete, "u1", "", admin))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"deleted_by":"a1"`)
}

func TestHandler_ListAdminsForbidden(t *testing.T) {
	svc := new(MockService)
	svc.On("ListAdmins", mock.Anything, admin, mock.Anything).Return(nil, authz.ErrForbidden)

	rr := httptest.NewRecorder()
	newHandler(svc).ListAdmins(rr, request(http.MethodGet, "", "", admin))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
