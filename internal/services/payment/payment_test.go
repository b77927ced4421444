package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/pagination"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/services/subscription"
	"github.com/finwire/finwire/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetPayment(ctx context.Context, id string) (models.Payment, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Payment), args.Error(1)
}

func (m *RepoMock) GetPaymentByOrderID(ctx context.Context, orderID string) (models.Payment, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(models.Payment), args.Error(1)
}

func (m *RepoMock) ListPaymentsByUser(ctx context.Context, userID string, page pagination.Params) ([]models.Payment, error) {
	args := m.Called(ctx, userID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *RepoMock) TransitionPayment(ctx context.Context, id string, from []models.PaymentStatus,
	to models.PaymentStatus, reason string, now time.Time) (models.Payment, error) {
	args := m.Called(ctx, id, from, to, reason, now)
	return args.Get(0).(models.Payment), args.Error(1)
}

type EngineMock struct{ mock.Mock }

func (m *EngineMock) CreatePending(ctx context.Context, in subscription.PendingInput) (storage.PendingResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(storage.PendingResult), args.Error(1)
}

func (m *EngineMock) Activate(ctx context.Context, paymentID string, trigger models.Trigger, actorID string) ([]models.Transition, bool, error) {
	args := m.Called(ctx, paymentID, trigger, actorID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]models.Transition), args.Bool(1), args.Error(2)
}

func (m *EngineMock) CancelByPayment(ctx context.Context, paymentID string, trigger models.Trigger, actorID string) ([]models.Transition, error) {
	args := m.Called(ctx, paymentID, trigger, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transition), args.Error(1)
}

const (
	paymentID = "5f0c6f57-5e8b-4bb6-9c31-8ad3bce8a001"
	userID    = "u1"
)

var (
	now          = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	caller       = models.Claims{UserID: userID, Role: models.RoleUser, Scope: models.ScopeUser}
	stranger     = models.Claims{UserID: "u2", Role: models.RoleUser, Scope: models.ScopeUser}
	invalidTrans = apperr.Conflict("invalid status transition").WithReason(apperr.ReasonInvalidTransition)
)

func newService(repo Repository, engine Engine) *Service {
	s := New(repo, engine, slog.New(slog.NewTextHandler(io.Discard, nil)), "USD")
	s.now = func() time.Time { return now }
	return s
}

func TestService_Attempt(t *testing.T) {
	t.Run("generates order id and applies default currency", func(t *testing.T) {
		engine := new(EngineMock)
		engine.On("CreatePending", mock.Anything, mock.MatchedBy(func(in subscription.PendingInput) bool {
			return in.OrderID != "" && in.UserID == userID && in.Currency == "USD" && in.PromoCode == "SPRING"
		})).Return(storage.PendingResult{Payment: models.Payment{ID: paymentID, UserID: userID}, Created: true}, nil).Once()

		res, err := newService(new(RepoMock), engine).Attempt(context.Background(), caller,
			AttemptInput{ProductIDs: []string{"p1"}, PromoCode: "SPRING"})
		require.NoError(t, err)
		assert.True(t, res.Created)
		engine.AssertExpectations(t)
	})

	t.Run("order id owned by another user", func(t *testing.T) {
		engine := new(EngineMock)
		engine.On("CreatePending", mock.Anything, mock.Anything).
			Return(storage.PendingResult{Payment: models.Payment{ID: paymentID, UserID: "u2"}}, nil).Once()

		_, err := newService(new(RepoMock), engine).Attempt(context.Background(), caller,
			AttemptInput{OrderID: "order-1", ProductIDs: []string{"p1"}})
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})
}

func TestService_UserTransitions(t *testing.T) {
	own := models.Payment{ID: paymentID, UserID: userID, Status: models.PaymentCreated}

	t.Run("pending", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetPayment", mock.Anything, paymentID).Return(own, nil).Once()
		repo.On("TransitionPayment", mock.Anything, paymentID, toPending, models.PaymentPending, "", now).
			Return(models.Payment{ID: paymentID, Status: models.PaymentPending}, nil).Once()

		p, err := newService(repo, new(EngineMock)).MarkPending(context.Background(), caller, paymentID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, p.Status)
	})

	t.Run("foreign payment is hidden", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetPayment", mock.Anything, paymentID).Return(own, nil).Once()

		_, err := newService(repo, new(EngineMock)).Fail(context.Background(), stranger, paymentID, "card declined")
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
		repo.AssertNotCalled(t, "TransitionPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := newService(new(RepoMock), new(EngineMock)).Fail(context.Background(), caller, "nope", "")
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("cancel cancels subscriptions", func(t *testing.T) {
		repo := new(RepoMock)
		engine := new(EngineMock)
		repo.On("GetPayment", mock.Anything, paymentID).Return(own, nil).Once()
		repo.On("TransitionPayment", mock.Anything, paymentID, toCancelled, models.PaymentCancelled, "changed mind", now).
			Return(models.Payment{ID: paymentID, Status: models.PaymentCancelled}, nil).Once()
		engine.On("CancelByPayment", mock.Anything, paymentID, models.TriggerUserAction, userID).
			Return([]models.Transition{{To: models.SubscriptionCancelled}}, nil).Once()

		_, err := newService(repo, engine).Cancel(context.Background(), caller, paymentID, "changed mind")
		require.NoError(t, err)
		engine.AssertExpectations(t)
	})

	t.Run("captured payment cannot fail", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetPayment", mock.Anything, paymentID).Return(own, nil).Once()
		repo.On("TransitionPayment", mock.Anything, paymentID, toFailed, models.PaymentFailed, "", now).
			Return(models.Payment{}, invalidTrans).Once()

		_, err := newService(repo, new(EngineMock)).Fail(context.Background(), caller, paymentID, "")
		assert.Equal(t, apperr.ReasonInvalidTransition, apperr.ReasonOf(err))
	})
}

func TestService_List(t *testing.T) {
	page := pagination.Params{Page: 1, Limit: 20}
	repo := new(RepoMock)
	repo.On("ListPaymentsByUser", mock.Anything, userID, page).Return(nil, nil).Once()

	list, err := newService(repo, new(EngineMock)).List(context.Background(), userID, page)
	require.NoError(t, err)
	assert.NotNil(t, list)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.succeeded"}`)
	sig := Sign("s3cret", body)

	assert.NoError(t, VerifySignature("s3cret", body, sig))
	assert.NoError(t, VerifySignature("s3cret", body, "sha256="+sig))
	assert.ErrorIs(t, VerifySignature("s3cret", body, ""), ErrBadSignature)
	assert.ErrorIs(t, VerifySignature("", body, sig), ErrBadSignature)
	assert.ErrorIs(t, VerifySignature("other", body, sig), ErrBadSignature)
	assert.ErrorIs(t, VerifySignature("s3cret", []byte(`{}`), sig), ErrBadSignature)
	assert.ErrorIs(t, VerifySignature("s3cret", body, "not-hex"), ErrBadSignature)
}

func payload(event, id string) Payload {
	var p Payload
	p.Event = event
	p.Object.ID = id
	return p
}

func TestService_ProcessWebhookEvent(t *testing.T) {
	t.Run("succeeded activates", func(t *testing.T) {
		engine := new(EngineMock)
		engine.On("Activate", mock.Anything, paymentID, models.TriggerPaymentWebhook, "").
			Return([]models.Transition{{To: models.SubscriptionActive}}, true, nil).Once()

		res, err := newService(new(RepoMock), engine).ProcessWebhookEvent(context.Background(), payload("PAYMENT.SUCCEEDED", paymentID))
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Len(t, res.Transitions, 1)
	})

	t.Run("duplicate succeeded is a no-op", func(t *testing.T) {
		engine := new(EngineMock)
		engine.On("Activate", mock.Anything, paymentID, models.TriggerPaymentWebhook, "").Return(nil, false, nil).Once()

		res, err := newService(new(RepoMock), engine).ProcessWebhookEvent(context.Background(), payload(EventSucceeded, paymentID))
		require.NoError(t, err)
		assert.False(t, res.Applied)
	})

	t.Run("refund cancels subscriptions", func(t *testing.T) {
		repo := new(RepoMock)
		engine := new(EngineMock)
		repo.On("TransitionPayment", mock.Anything, paymentID, []models.PaymentStatus{models.PaymentCaptured},
			models.PaymentRefunded, "", now).Return(models.Payment{ID: paymentID}, nil).Once()
		engine.On("CancelByPayment", mock.Anything, paymentID, models.TriggerPaymentWebhook, "").
			Return([]models.Transition{{From: models.SubscriptionActive, To: models.SubscriptionCancelled}}, nil).Once()

		res, err := newService(repo, engine).ProcessWebhookEvent(context.Background(), payload(EventRefunded, paymentID))
		require.NoError(t, err)
		assert.True(t, res.Applied)
		engine.AssertExpectations(t)
	})

	t.Run("redelivered failure is tolerated", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("TransitionPayment", mock.Anything, paymentID, toFailed, models.PaymentFailed, "", now).
			Return(models.Payment{}, invalidTrans).Once()
		repo.On("GetPayment", mock.Anything, paymentID).
			Return(models.Payment{ID: paymentID, Status: models.PaymentFailed}, nil).Once()

		res, err := newService(repo, new(EngineMock)).ProcessWebhookEvent(context.Background(), payload(EventFailed, paymentID))
		require.NoError(t, err)
		assert.False(t, res.Applied)
	})

	t.Run("failure after capture is rejected", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("TransitionPayment", mock.Anything, paymentID, toFailed, models.PaymentFailed, "", now).
			Return(models.Payment{}, invalidTrans).Once()
		repo.On("GetPayment", mock.Anything, paymentID).
			Return(models.Payment{ID: paymentID, Status: models.PaymentCaptured}, nil).Once()

		_, err := newService(repo, new(EngineMock)).ProcessWebhookEvent(context.Background(), payload(EventFailed, paymentID))
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("lookup by order id", func(t *testing.T) {
		repo := new(RepoMock)
		engine := new(EngineMock)
		repo.On("GetPaymentByOrderID", mock.Anything, "order-9").Return(models.Payment{ID: paymentID}, nil).Once()
		engine.On("Activate", mock.Anything, paymentID, models.TriggerPaymentWebhook, "").Return(nil, true, nil).Once()

		p := payload(EventSucceeded, "")
		p.Object.Metadata = map[string]string{"order_id": "order-9"}
		res, err := newService(repo, engine).ProcessWebhookEvent(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, paymentID, res.PaymentID)
	})

	t.Run("no identifiers", func(t *testing.T) {
		_, err := newService(new(RepoMock), new(EngineMock)).ProcessWebhookEvent(context.Background(), payload(EventSucceeded, ""))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("unknown event ignored", func(t *testing.T) {
		res, err := newService(new(RepoMock), new(EngineMock)).ProcessWebhookEvent(context.Background(), payload("payout.created", paymentID))
		require.NoError(t, err)
		assert.False(t, res.Applied)
	})

	t.Run("storage failure", func(t *testing.T) {
		engine := new(EngineMock)
		engine.On("Activate", mock.Anything, paymentID, models.TriggerPaymentWebhook, "").
			Return(nil, false, errors.New("db down")).Once()

		_, err := newService(new(RepoMock), engine).ProcessWebhookEvent(context.Background(), payload(EventSucceeded, paymentID))
		require.Error(t, err)
	})
}
