package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrimind/farm-assist/internal/types"
)

// MockAuthRepo is a mock implementation of the Repository interface.
type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (*types.User, error) {
	args := m.Called(ctx, username, email, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockAuthRepo) LookupRefreshToken(ctx context.Context, tokenHash string) (*RefreshTokenRow, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RefreshTokenRow), args.Error(1)
}

func (m *MockAuthRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockAuthRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*ServiceImpl, *MockAuthRepo) {
	t.Helper()
	repo := new(MockAuthRepo)
	svc := NewAuthService(repo, slog.Default())
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func userFixture(password string) *types.User {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &types.User{
		ID:           uuid.New(),
		Username:     "ramesh",
		Email:        "ramesh@example.com",
		PasswordHash: string(hashed),
	}
}

func TestRegister(t *testing.T) {
	t.Run("validates input", func(t *testing.T) {
		svc, repo := newTestService(t)

		cases := []struct {
			name   string
			params RegisterParams
		}{
			{"missing username", RegisterParams{Email: "a@b.com", Password: "longenough"}},
			{"invalid email", RegisterParams{Username: "u", Email: "not-an-email", Password: "longenough"}},
			{"short password", RegisterParams{Username: "u", Email: "a@b.com", Password: "short"}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.Register(context.Background(), tc.params)
				assert.ErrorIs(t, err, types.ErrBadRequest)
			})
		}
		repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stores bcrypt hash, not the password", func(t *testing.T) {
		svc, repo := newTestService(t)

		params := RegisterParams{Username: "ramesh", Email: "ramesh@example.com", Password: "s3cretpassword"}
		repo.On("CreateUser", mock.Anything, "ramesh", "ramesh@example.com", mock.MatchedBy(func(hash string) bool {
			return hash != params.Password &&
				bcrypt.CompareHashAndPassword([]byte(hash), []byte(params.Password)) == nil
		})).Return(&types.User{ID: uuid.New(), Username: "ramesh", Email: "ramesh@example.com"}, nil)

		user, err := svc.Register(context.Background(), params)

		require.NoError(t, err)
		assert.Equal(t, "ramesh", user.Username)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate email surfaces conflict", func(t *testing.T) {
		svc, repo := newTestService(t)

		repo.On("CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, types.ErrConflict)

		_, err := svc.Register(context.Background(), RegisterParams{
			Username: "ramesh", Email: "ramesh@example.com", Password: "s3cretpassword",
		})

		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestLogin(t *testing.T) {
	t.Run("issues token pair on valid credentials", func(t *testing.T) {
		svc, repo := newTestService(t)

		user := userFixture("s3cretpassword")
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
		repo.On("StoreRefreshToken", mock.Anything, user.ID, mock.AnythingOfType("string"), testNow.Add(refreshTokenTTL)).
			Return(nil)

		tokens, err := svc.Login(context.Background(), LoginParams{Email: user.Email, Password: "s3cretpassword"})

		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		repo.AssertExpectations(t)
	})

	t.Run("unknown email and wrong password fail identically", func(t *testing.T) {
		svc, repo := newTestService(t)

		user := userFixture("s3cretpassword")
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
		repo.On("GetUserByEmail", mock.Anything, "nobody@example.com").Return(nil, types.ErrNotFound)

		_, badPass := svc.Login(context.Background(), LoginParams{Email: user.Email, Password: "wrong-password"})
		_, badMail := svc.Login(context.Background(), LoginParams{Email: "nobody@example.com", Password: "s3cretpassword"})

		assert.ErrorIs(t, badPass, types.ErrUnauthenticated)
		assert.ErrorIs(t, badMail, types.ErrUnauthenticated)
		assert.Equal(t, badPass.Error(), badMail.Error())
	})
}

func TestRefresh(t *testing.T) {
	t.Run("rotates the presented token", func(t *testing.T) {
		svc, repo := newTestService(t)

		user := userFixture("s3cretpassword")
		oldToken := uuid.NewString()
		oldHash := hashToken(oldToken)

		repo.On("LookupRefreshToken", mock.Anything, oldHash).Return(&RefreshTokenRow{
			UserID:    user.ID,
			ExpiresAt: testNow.Add(time.Hour),
		}, nil)
		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
		repo.On("RevokeRefreshToken", mock.Anything, oldHash).Return(nil)
		repo.On("StoreRefreshToken", mock.Anything, user.ID, mock.AnythingOfType("string"), testNow.Add(refreshTokenTTL)).
			Return(nil)

		tokens, err := svc.Refresh(context.Background(), oldToken)

		require.NoError(t, err)
		assert.NotEqual(t, oldToken, tokens.RefreshToken)
		repo.AssertExpectations(t)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		svc, repo := newTestService(t)

		token := uuid.NewString()
		repo.On("LookupRefreshToken", mock.Anything, hashToken(token)).Return(&RefreshTokenRow{
			UserID:    uuid.New(),
			ExpiresAt: testNow.Add(-time.Minute),
		}, nil)

		_, err := svc.Refresh(context.Background(), token)

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		repo.AssertNotCalled(t, "StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects revoked token", func(t *testing.T) {
		svc, repo := newTestService(t)

		token := uuid.NewString()
		repo.On("LookupRefreshToken", mock.Anything, hashToken(token)).Return(&RefreshTokenRow{
			UserID:    uuid.New(),
			ExpiresAt: testNow.Add(time.Hour),
			Revoked:   true,
		}, nil)

		_, err := svc.Refresh(context.Background(), token)

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		svc, repo := newTestService(t)

		repo.On("LookupRefreshToken", mock.Anything, mock.Anything).Return(nil, types.ErrNotFound)

		_, err := svc.Refresh(context.Background(), uuid.NewString())

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestLogout(t *testing.T) {
	svc, repo := newTestService(t)

	token := uuid.NewString()
	repo.On("RevokeRefreshToken", mock.Anything, hashToken(token)).Return(nil)

	err := svc.Logout(context.Background(), token)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLogoutAll(t *testing.T) {
	t.Run("revokes every session for the user", func(t *testing.T) {
		svc, repo := newTestService(t)

		userID := uuid.New()
		repo.On("RevokeAllForUser", mock.Anything, userID).Return(nil)

		err := svc.LogoutAll(context.Background(), userID)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("passes repository errors through", func(t *testing.T) {
		svc, repo := newTestService(t)

		userID := uuid.New()
		repo.On("RevokeAllForUser", mock.Anything, userID).Return(assert.AnError)

		err := svc.LogoutAll(context.Background(), userID)

		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestHashToken(t *testing.T) {
	// Stable fingerprint: same input, same hash; raw token never stored.
	a := hashToken("some-refresh-token")
	b := hashToken("some-refresh-token")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, "some-refresh-token", a)
}
