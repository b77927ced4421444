package promo

import (
	"context"
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
	"github.com/finwire/finwire/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreatePromo(ctx context.Context, p models.PromoCode) (models.PromoCode, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(models.PromoCode), args.Error(1)
}

func (m *RepoMock) UpdatePromo(ctx context.Context, p models.PromoCode) (models.PromoCode, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(models.PromoCode), args.Error(1)
}

func (m *RepoMock) DeletePromo(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

func (m *RepoMock) GetPromo(ctx context.Context, code string) (models.PromoCode, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(models.PromoCode), args.Error(1)
}

func (m *RepoMock) ListPromos(ctx context.Context, page pagination.Params) ([]models.PromoCode, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PromoCode), args.Error(1)
}

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(repo Repository) *Service {
	s := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return now }
	return s
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestService_Create(t *testing.T) {
	tests := []struct {
		name    string
		promo   models.PromoCode
		wantErr bool
	}{
		{"flat", models.PromoCode{Code: "spring", DiscountType: models.DiscountFlat, DiscountValue: 500}, false},
		{"percentage", models.PromoCode{Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10, UsageLimit: intPtr(1)}, false},
		{"empty code", models.PromoCode{Code: "  ", DiscountType: models.DiscountFlat, DiscountValue: 1}, true},
		{"percentage above 100", models.PromoCode{Code: "X", DiscountType: models.DiscountPercentage, DiscountValue: 120}, true},
		{"unknown type", models.PromoCode{Code: "X", DiscountType: "bogo", DiscountValue: 1}, true},
		{"zero limit", models.PromoCode{Code: "X", DiscountType: models.DiscountFlat, DiscountValue: 1, UsageLimit: intPtr(0)}, true},
		{"inverted window", models.PromoCode{
			Code: "X", DiscountType: models.DiscountFlat, DiscountValue: 1,
			ValidFrom: timePtr(now), ValidUntil: timePtr(now.Add(-time.Hour)),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			if !tt.wantErr {
				repo.On("CreatePromo", mock.Anything, tt.promo).Return(tt.promo, nil).Once()
			}
			_, err := newService(repo).Create(context.Background(), tt.promo)
			if tt.wantErr {
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				repo.AssertNotCalled(t, "CreatePromo", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Validate(t *testing.T) {
	active := models.PromoCode{Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10, IsActive: true}

	tests := []struct {
		name      string
		promo     models.PromoCode
		repoErr   error
		amount    int64
		wantQuote Quote
		wantErr   error
	}{
		{name: "percentage", promo: active, amount: 2000, wantQuote: Quote{Code: "SAVE10", Amount: 2000, Discount: 200, Total: 1800}},
		{
			name:      "flat never below zero",
			promo:     models.PromoCode{Code: "BIG", DiscountType: models.DiscountFlat, DiscountValue: 5000, IsActive: true},
			amount:    1000,
			wantQuote: Quote{Code: "BIG", Amount: 1000, Discount: 1000, Total: 0},
		},
		{name: "unknown code", repoErr: storage.ErrNotFound, amount: 100, wantErr: storage.ErrPromoInvalid},
		{
			name:    "expired window",
			promo:   models.PromoCode{Code: "OLD", DiscountType: models.DiscountFlat, DiscountValue: 1, IsActive: true, ValidUntil: timePtr(now.Add(-time.Hour))},
			amount:  100,
			wantErr: storage.ErrPromoInvalid,
		},
		{
			name:    "exhausted",
			promo:   models.PromoCode{Code: "ONCE", DiscountType: models.DiscountFlat, DiscountValue: 1, IsActive: true, UsageLimit: intPtr(1), UsageCount: 1},
			amount:  100,
			wantErr: storage.ErrPromoExhausted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("GetPromo", mock.Anything, "code").Return(tt.promo, tt.repoErr).Once()

			q, err := newService(repo).Validate(context.Background(), "code", tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, apperr.ReasonOf(tt.wantErr), apperr.ReasonOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuote, q)
		})
	}
}

func TestService_Quote(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetPromo", mock.Anything, "SAVE10").
		Return(models.PromoCode{Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10, IsActive: true}, nil).Once()

	d, err := newService(repo).Quote(context.Background(), "SAVE10", 999)
	require.NoError(t, err)
	assert.Equal(t, int64(99), d)
}
