package auth

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

	"github.com/finwire/finwire/internal/config"
	"github.com/finwire/finwire/internal/lib/apperr"
	"github.com/finwire/finwire/internal/lib/password"
	"github.com/finwire/finwire/internal/models"
	"github.com/finwire/finwire/internal/storage"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByID(ctx context.Context, id string) (models.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserRepoMock) HasRole(ctx context.Context, role models.Role) (bool, error) {
	args := m.Called(ctx, role)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepoMock) UpdateUserProfile(ctx context.Context, id, name, email string, now time.Time) (models.User, error) {
	args := m.Called(ctx, id, name, email, now)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserRepoMock) UpdateUserPassword(ctx context.Context, id, hash string, now time.Time) error {
	return m.Called(ctx, id, hash, now).Error(0)
}

func (m *UserRepoMock) ArchiveUser(ctx context.Context, id, reason, deletedBy string, now time.Time) (models.DeletedUser, error) {
	args := m.Called(ctx, id, reason, deletedBy, now)
	return args.Get(0).(models.DeletedUser), args.Error(1)
}

var now = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func newService(repo UserRepository) *Service {
	s := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return now }
	return s
}

func userWithPassword(t *testing.T, role models.Role, active bool) models.User {
	t.Helper()
	hash, err := password.GetHash("correct-horse")
	require.NoError(t, err)
	return models.User{ID: "u1", Name: "Alice", Email: "alice@example.com", PasswordHash: hash, Role: role, IsActive: active}
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name       string
		in         RegisterInput
		setupMocks func(r *UserRepoMock)
		wantErr    bool
		wantKind   apperr.Kind
	}{
		{
			name: "success",
			in:   RegisterInput{Name: " Alice ", Email: " Alice@Example.com ", Password: "correct-horse"},
			setupMocks: func(r *UserRepoMock) {
				r.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.Email == "alice@example.com" && u.Name == "Alice" && u.Role == models.RoleUser &&
						u.IsActive && password.CompareHash(u.PasswordHash, "correct-horse") == nil
				})).Return(models.User{ID: "u1"}, nil).Once()
			},
		},
		{
			name:       "invalid email",
			in:         RegisterInput{Name: "Alice", Email: "not-an-email", Password: "correct-horse"},
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    true,
			wantKind:   apperr.KindValidation,
		},
		{
			name:       "short password",
			in:         RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "short"},
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    true,
			wantKind:   apperr.KindValidation,
		},
		{
			name: "duplicate email",
			in:   RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "correct-horse"},
			setupMocks: func(r *UserRepoMock) {
				r.On("CreateUser", mock.Anything, mock.Anything).
					Return(models.User{}, apperr.Conflict("record already exists")).Once()
			},
			wantErr:  true,
			wantKind: apperr.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			tt.setupMocks(repo)
			user, err := newService(repo).Register(context.Background(), tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", user.ID)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Login(t *testing.T) {
	tests := []struct {
		name     string
		user     models.User
		repoErr  error
		password string
		admin    bool
		wantFail bool
		wantKind apperr.Kind
		wantErr  error
	}{
		{name: "user login", user: userWithPassword(t, models.RoleUser, true), password: "correct-horse"},
		{name: "wrong password", user: userWithPassword(t, models.RoleUser, true), password: "wrong", wantErr: ErrInvalidCredentials},
		{name: "unknown email", repoErr: storage.ErrNotFound, password: "x", wantErr: ErrInvalidCredentials},
		{name: "inactive", user: userWithPassword(t, models.RoleUser, false), password: "correct-horse", wantErr: ErrAccountInactive},
		{name: "admin login", user: userWithPassword(t, models.RoleAdmin, true), password: "correct-horse", admin: true},
		{name: "admin login by user", user: userWithPassword(t, models.RoleUser, true), password: "correct-horse", admin: true, wantErr: ErrInvalidCredentials},
		{name: "storage down", repoErr: apperr.ServiceUnavailable("storage unavailable"), password: "x", wantFail: true, wantKind: apperr.KindServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(tt.user, tt.repoErr).Once()
			s := newService(repo)

			var (
				claims models.Claims
				err    error
			)
			if tt.admin {
				claims, err = s.AdminLogin(context.Background(), " ALICE@example.com", tt.password)
			} else {
				claims, err = s.Login(context.Background(), " ALICE@example.com", tt.password)
			}

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, apperr.ReasonOf(tt.wantErr), apperr.ReasonOf(err))
			case tt.wantFail:
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, "u1", claims.UserID)
				if tt.admin {
					assert.Equal(t, models.ScopeAdmin, claims.Scope)
				} else {
					assert.Equal(t, models.ScopeUser, claims.Scope)
				}
			}
		})
	}
}

func TestService_UpdateProfile(t *testing.T) {
	claims := models.Claims{UserID: "u1"}
	repo := new(UserRepoMock)
	repo.On("GetUserByID", mock.Anything, "u1").Return(userWithPassword(t, models.RoleUser, true), nil)
	repo.On("UpdateUserProfile", mock.Anything, "u1", "Alice", "new@example.com", now).
		Return(models.User{ID: "u1", Email: "new@example.com"}, nil).Once()

	s := newService(repo)
	user, err := s.UpdateProfile(context.Background(), claims, "", "New@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)

	_, err = s.UpdateProfile(context.Background(), claims, "Bob", "broken")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	repo.AssertExpectations(t)
}

func TestService_ChangePassword(t *testing.T) {
	claims := models.Claims{UserID: "u1"}

	t.Run("success", func(t *testing.T) {
		repo := new(UserRepoMock)
		repo.On("GetUserByID", mock.Anything, "u1").Return(userWithPassword(t, models.RoleUser, true), nil).Once()
		repo.On("UpdateUserPassword", mock.Anything, "u1", mock.MatchedBy(func(h string) bool {
			return password.CompareHash(h, "battery-staple") == nil
		}), now).Return(nil).Once()

		require.NoError(t, newService(repo).ChangePassword(context.Background(), claims, "correct-horse", "battery-staple"))
		repo.AssertExpectations(t)
	})

	t.Run("wrong current password", func(t *testing.T) {
		repo := new(UserRepoMock)
		repo.On("GetUserByID", mock.Anything, "u1").Return(userWithPassword(t, models.RoleUser, true), nil).Once()
		err := newService(repo).ChangePassword(context.Background(), claims, "nope", "battery-staple")
		assert.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("deleted account", func(t *testing.T) {
		repo := new(UserRepoMock)
		repo.On("GetUserByID", mock.Anything, "u1").Return(models.User{}, storage.ErrNotFound).Once()
		err := newService(repo).ChangePassword(context.Background(), claims, "a", "b")
		assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	})
}

func TestService_DeleteAccount(t *testing.T) {
	claims := models.Claims{UserID: "u1"}
	repo := new(UserRepoMock)
	repo.On("GetUserByID", mock.Anything, "u1").Return(userWithPassword(t, models.RoleUser, true), nil)
	repo.On("ArchiveUser", mock.Anything, "u1", "moving on", "u1", now).
		Return(models.DeletedUser{UserID: "u1", Reason: "moving on"}, nil).Once()

	s := newService(repo)
	_, err := s.DeleteAccount(context.Background(), claims, "bad", "")
	assert.ErrorIs(t, err, ErrWrongPassword)

	archived, err := s.DeleteAccount(context.Background(), claims, "correct-horse", " moving on ")
	require.NoError(t, err)
	assert.Equal(t, "u1", archived.UserID)
	repo.AssertExpectations(t)
}

func TestService_EnsureSuperAdmin(t *testing.T) {
	cfg := config.Bootstrap{SuperAdminEmail: "root@example.com", SuperAdminPassword: "super-secret", SuperAdminName: "Root"}

	t.Run("disabled", func(t *testing.T) {
		repo := new(UserRepoMock)
		require.NoError(t, newService(repo).EnsureSuperAdmin(context.Background(), config.Bootstrap{}))
		repo.AssertNotCalled(t, "HasRole", mock.Anything, mock.Anything)
	})

	t.Run("already exists", func(t *testing.T) {
		repo := new(UserRepoMock)
		repo.On("HasRole", mock.Anything, models.RoleSuperAdmin).Return(true, nil).Once()
		require.NoError(t, newService(repo).EnsureSuperAdmin(context.Background(), cfg))
		repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("creates", func(t *testing.T) {
		repo := new(UserRepoMock)
		repo.On("HasRole", mock.Anything, models.RoleSuperAdmin).Return(false, nil).Once()
		repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Role == models.RoleSuperAdmin && u.Email == "root@example.com" && u.Name == "Root"
		})).Return(models.User{ID: "root"}, nil).Once()
		require.NoError(t, newService(repo).EnsureSuperAdmin(context.Background(), cfg))
		repo.AssertExpectations(t)
	})

	t.Run("storage error", func(t *testing.T) {
		repo := new(UserRepoMock)
		repo.On("HasRole", mock.Anything, models.RoleSuperAdmin).Return(false, errors.New("boom")).Once()
		assert.Error(t, newService(repo).EnsureSuperAdmin(context.Background(), cfg))
	})
}
