package subscriptions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/finwire/finwire/internal/http/middlewarectx"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/storage"
)

type EngineMock struct{ mock.Mock }

func (m *EngineMock) ListForUser(ctx context.Context, userID string, page pagination.Params) ([]models.Subscription, error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *EngineMock) ListAll(ctx context.Context, f storage.SubscriptionFilter) ([]models.Subscription, error) {
	args := m.Called(ctx, f)
	if v := args.Get(0); v != nil {
		return v.([]models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EngineMock) Get(ctx context.Context, subscriptionID string, caller models.Claims) (models.Subscription, error) {
	args := m.Called(ctx, subscriptionID, caller)
	return args.Get(0).(models.Subscription), args.Error(1)
}

func (m *EngineMock) Cancel(ctx context.Context, subscriptionID string, caller models.Claims) (models.Transition, error) {
	args := m.Called(ctx, subscriptionID, caller)
	return args.Get(0).(models.Transition), args.Error(1)
}

func (m *EngineMock) Expire(ctx context.Context, subscriptionID string) (models.Transition, bool, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Get(0).(models.Transition), args.Bool(1), args.Error(2)
}

type HistoryMock struct{ mock.Mock }

func (m *HistoryMock) History(ctx context.Context, subscriptionID string) ([]models.AuditEntry, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

type sweeperStub struct {
	n   int
	err error
}

func (s sweeperStub) RunSweep(context.Context) (int, error) { return s.n, s.err }

var user = models.Claims{UserID: "u1", Role: models.RoleUser, Scope: models.ScopeUser}

func request(method, id string, claims models.Claims) *http.Request {
	req := httptest.NewRequest(method, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middlewarectx.WithClaims(ctx, claims))
}

func newHandler(e Engine, h History, s Sweeper) *Handler {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), e, h, s)
}

func TestHandler_Cancel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     int
		wantBody string
	}{
		{name: "успешная отмена", want: http.StatusOK, wantBody: `"to":"cancelled"`},
		{name: "чужая подписка", err: storage.ErrNotFound, want: http.StatusNotFound, wantBody: `"code":"NOT_FOUND"`},
		{name: "ошибка базы", err: errors.New("db down"), want: http.StatusInternalServerError, wantBody: `"code":"INTERNAL_ERROR"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(EngineMock)
			tr := models.Transition{
				Subscription: models.Subscription{ID: "s1"},
				From:         models.SubscriptionActive,
				To:           models.SubscriptionCancelled,
				Trigger:      models.TriggerUserAction,
			}
			if tt.err != nil {
				tr = models.Transition{}
			}
			engine.On("Cancel", mock.Anything, "s1", user).Return(tr, tt.err)

			rr := httptest.NewRecorder()
			newHandler(engine, new(HistoryMock), sweeperStub{}).Cancel(rr, request(http.MethodPost, "s1", user))

			assert.Equal(t, tt.want, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
			assert.NotContains(t, rr.Body.String(), "db down")
		})
	}
}

func TestHandler_HistoryChecksOwnership(t *testing.T) {
	engine := new(EngineMock)
	history := new(HistoryMock)
	engine.On("Get", mock.Anything, "mine", user).Return(models.Subscription{ID: "mine", UserID: "u1"}, nil)
	engine.On("Get", mock.Anything, "theirs", user).Return(models.Subscription{}, storage.ErrNotFound)
	history.On("History", mock.Anything, "mine").Return([]models.AuditEntry{{Seq: 2}, {Seq: 1}}, nil)
	h := newHandler(engine, history, sweeperStub{})

	rr := httptest.NewRecorder()
	h.History(rr, request(http.MethodGet, "mine", user))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"history":[`)

	rr = httptest.NewRecorder()
	h.History(rr, request(http.MethodGet, "theirs", user))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	history.AssertNotCalled(t, "History", mock.Anything, "theirs")
}

func TestHandler_AdminListFilter(t *testing.T) {
	engine := new(EngineMock)
	engine.On("ListAll", mock.Anything, storage.SubscriptionFilter{
		Status: "paused",
		Page:   pagination.Params{Page: pagination.DefaultPage, Limit: pagination.DefaultLimit},
	}).Return(nil, apperr.Validation("unknown subscription status"))
	h := newHandler(engine, new(HistoryMock), sweeperStub{})

	rr := httptest.NewRecorder()
	h.AdminList(rr, httptest.NewRequest(http.MethodGet, "/api/admin/subscriptions?status=paused", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown subscription status")
}

func TestHandler_Sweep(t *testing.T) {
	h := newHandler(new(EngineMock), new(HistoryMock), sweeperStub{n: 3})
	rr := httptest.NewRecorder()
	h.Sweep(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.JSONEq(t, `{"success":true,"data":{"expired":3}}`, rr.Body.String())
}

func TestHandler_Expire(t *testing.T) {
	admin := models.Claims{UserID: "a1", Role: models.RoleAdmin, Scope: models.ScopeAdmin}
	tr := models.Transition{
		Subscription: models.Subscription{ID: "s1", Status: models.SubscriptionExpired},
		From:         models.SubscriptionActive,
		To:           models.SubscriptionExpired,
		Trigger:      models.TriggerSystemSweep,
	}

	tests := []struct {
		name     string
		id       string
		tr       models.Transition
		expired  bool
		err      error
		want     int
		wantBody string
	}{
		{name: "срок истёк", id: "s1", tr: tr, expired: true, want: http.StatusOK, wantBody: `"to":"expired"`},
		{name: "подписка ещё действует", id: "s2", want: http.StatusOK, wantBody: `"data":{"expired":false}`},
		{name: "нет подписки", id: "s3", err: storage.ErrNotFound, want: http.StatusNotFound, wantBody: `"code":"NOT_FOUND"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(EngineMock)
			engine.On("Expire", mock.Anything, tt.id).Return(tt.tr, tt.expired, tt.err).Once()

			rr := httptest.NewRecorder()
			newHandler(engine, new(HistoryMock), sweeperStub{}).Expire(rr, request(http.MethodPost, tt.id, admin))

			assert.Equal(t, tt.want, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
			engine.AssertExpectations(t)
		})
	}
}
