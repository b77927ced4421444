package account

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/auth"
	"github.com/finwire/finwire/internal/session"
)

type MockService struct{ mock.Mock }

func (m *MockService) Register(ctx context.Context, in auth.RegisterInput) (models.User, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockService) Login(ctx context.Context, email, rawPassword string) (models.Claims, error) {
	args := m.Called(ctx, email, rawPassword)
	return args.Get(0).(models.Claims), args.Error(1)
}

func (m *MockService) AdminLogin(ctx context.Context, email, rawPassword string) (models.Claims, error) {
	args := m.Called(ctx, email, rawPassword)
	return args.Get(0).(models.Claims), args.Error(1)
}

func (m *MockService) Me(ctx context.Context, claims models.Claims) (models.User, error) {
	args := m.Called(ctx, claims)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockService) UpdateProfile(ctx context.Context, claims models.Claims, name, email string) (models.User, error) {
	args := m.Called(ctx, claims, name, email)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockService) ChangePassword(ctx context.Context, claims models.Claims, current, next string) error {
	return m.Called(ctx, claims, current, next).Error(0)
}

func (m *MockService) DeleteAccount(ctx context.Context, claims models.Claims, rawPassword, reason string) (models.DeletedUser, error) {
	args := m.Called(ctx, claims, rawPassword, reason)
	return args.Get(0).(models.DeletedUser), args.Error(1)
}

func newHandler(svc Service) *Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	user := session.NewUserVerifier(session.NewMaker("user-secret", time.Hour), false)
	admin := session.NewAdminVerifier(session.NewMaker("admin-secret", time.Hour), false)
	return New(log, svc, user, admin)
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandler_Register(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockService)
		wantStatus int
		wantBody   string
		wantCookie bool
	}{
		{
			name: "успешная регистрация",
			body: `{"name":"Ann","email":"ann@example.com","password":"secret-pass"}`,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, auth.RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "secret-pass"}).
					Return(models.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Role: models.RoleUser, IsActive: true}, nil)
			},
			wantStatus: http.StatusCreated,
			wantBody:   `"id":"u1"`,
			wantCookie: true,
		},
		{
			name:       "пустое тело",
			body:       ``,
			setupMock:  func(*MockService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   `request body is empty`,
		},
		{
			name:       "короткий пароль",
			body:       `{"name":"Ann","email":"ann@example.com","password":"short"}`,
			setupMock:  func(*MockService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   `field password must be at least 8`,
		},
		{
			name: "email занят",
			body: `{"name":"Ann","email":"ann@example.com","password":"secret-pass"}`,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, mock.Anything).Return(models.User{}, apperrConflict())
			},
			wantStatus: http.StatusConflict,
			wantBody:   `"code":"CONFLICT"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := newHandler(svc)

			rr := httptest.NewRecorder()
			h.Register(rr, httptest.NewRequest(http.MethodPost, "/api/user/auth/register", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
			assert.Equal(t, tt.wantCookie, cookieNamed(rr, session.UserCookie) != nil)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_LoginScopes(t *testing.T) {
	svc := new(MockService)
	svc.On("Login", mock.Anything, "ann@example.com", "pw").
		Return(models.Claims{UserID: "u1", Role: models.RoleUser}, nil)
	svc.On("AdminLogin", mock.Anything, "root@example.com", "pw").
		Return(models.Claims{UserID: "a1", Role: models.RoleSuperAdmin}, nil)
	h := newHandler(svc)

	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"ann@example.com","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, cookieNamed(rr, session.UserCookie))
	assert.Nil(t, cookieNamed(rr, session.AdminCookie))

	rr = httptest.NewRecorder()
	h.AdminLogin(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"root@example.com","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	admin := cookieNamed(rr, session.AdminCookie)
	require.NotNil(t, admin)
	assert.True(t, admin.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, admin.SameSite)
	assert.Nil(t, cookieNamed(rr, session.UserCookie))
}

func TestHandler_LoginRejected(t *testing.T) {
	svc := new(MockService)
	svc.On("Login", mock.Anything, "ann@example.com", "bad").Return(models.Claims{}, auth.ErrInvalidCredentials)
	h := newHandler(svc)

	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"ann@example.com","password":"bad"}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Nil(t, cookieNamed(rr, session.UserCookie))
}

func TestHandler_Logout(t *testing.T) {
	h := newHandler(new(MockService))

	rr := httptest.NewRecorder()
	h.AdminLogout(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	c := cookieNamed(rr, session.AdminCookie)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge)
}

func TestHandler_MeAndDelete(t *testing.T) {
	claims := models.Claims{UserID: "u1", Role: models.RoleUser, Scope: models.ScopeUser}
	svc := new(MockService)
	svc.On("Me", mock.Anything, claims).Return(models.User{ID: "u1", Name: "Ann"}, nil)
	svc.On("DeleteAccount", mock.Anything, claims, "pw", "bye").
		Return(models.DeletedUser{ID: "d1", UserID: "u1"}, nil)
	h := newHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middlewarectx.WithClaims(req.Context(), claims))
	rr := httptest.NewRecorder()
	h.Me(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Ann"`)
	assert.NotContains(t, rr.Body.String(), "password")

	req = httptest.NewRequest(http.MethodDelete, "/", strings.NewReader(`{"password":"pw","reason":"bye"}`))
	req = req.WithContext(middlewarectx.WithClaims(req.Context(), claims))
	rr = httptest.NewRecorder()
	h.DeleteMe(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	c := cookieNamed(rr, session.UserCookie)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	svc.AssertExpectations(t)
}

func TestHandler_ChangePasswordWrongCurrent(t *testing.T) {
	claims := models.Claims{UserID: "u1", Role: models.RoleUser, Scope: models.ScopeUser}
	svc := new(MockService)
	svc.On("ChangePassword", mock.Anything, claims, "old", "new-password").Return(auth.ErrWrongPassword)
	h := newHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"current_password":"old","new_password":"new-password"}`))
	req = req.WithContext(middlewarectx.WithClaims(req.Context(), claims))
	rr := httptest.NewRecorder()
	h.ChangePassword(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "current password is incorrect")
}

func apperrConflict() error {
	return apperr.Conflict("email already registered").WithReason(apperr.ReasonDuplicate)
}
