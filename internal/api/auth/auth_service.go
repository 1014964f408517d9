package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	appMiddleware "github.com/agrimind/farm-assist/app/middleware"
	"github.com/agrimind/farm-assist/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

const (
	accessTokenTTL  = 1 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
	minPasswordLen  = 8
)

// Service is the account and session surface.
type Service interface {
	Register(ctx context.Context, params RegisterParams) (*types.User, error)
	Login(ctx context.Context, params LoginParams) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) error
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	now    func() time.Time
}

func NewAuthService(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		now:    time.Now,
	}
}

// hashToken fingerprints a refresh token for storage.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *ServiceImpl) generateAccessToken(user *types.User) (string, error) {
	now := s.now()
	claims := appMiddleware.Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
			Subject:   user.ID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(appMiddleware.JwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// issueTokens mints an access token and a fresh refresh token for the user.
func (s *ServiceImpl) issueTokens(ctx context.Context, user *types.User) (*TokenPair, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken := uuid.NewString()
	if err := s.repo.StoreRefreshToken(ctx, user.ID, hashToken(refreshToken), s.now().Add(refreshTokenTTL)); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *ServiceImpl) Register(ctx context.Context, params RegisterParams) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("email", params.Email))

	if strings.TrimSpace(params.Username) == "" {
		return nil, fmt.Errorf("username is required: %w", types.ErrBadRequest)
	}
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, fmt.Errorf("invalid email address: %w", types.ErrBadRequest)
	}
	if len(params.Password) < minPasswordLen {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLen, types.ErrBadRequest)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Password hashing failed")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, params.Username, params.Email, string(hashed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User creation failed")
		return nil, err
	}

	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "User registered")
	return user, nil
}

func (s *ServiceImpl) Login(ctx context.Context, params LoginParams) (*TokenPair, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"), slog.String("email", params.Email))

	user, err := s.repo.GetUserByEmail(ctx, params.Email)
	if err != nil {
		// Same error for unknown email and bad password.
		span.SetStatus(codes.Error, "Login failed")
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(params.Password)); err != nil {
		l.WarnContext(ctx, "Password mismatch on login")
		span.SetStatus(codes.Error, "Login failed")
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token issuance failed")
		return nil, err
	}

	l.InfoContext(ctx, "User logged in", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "Login succeeded")
	return tokens, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *ServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Refresh")
	defer span.End()

	l := s.logger.With(slog.String("method", "Refresh"))

	tokenHash := hashToken(refreshToken)
	row, err := s.repo.LookupRefreshToken(ctx, tokenHash)
	if err != nil {
		span.SetStatus(codes.Error, "Refresh token lookup failed")
		return nil, fmt.Errorf("invalid refresh token: %w", types.ErrUnauthenticated)
	}
	if row.Revoked || s.now().After(row.ExpiresAt) {
		span.SetStatus(codes.Error, "Refresh token expired or revoked")
		return nil, fmt.Errorf("refresh token expired or revoked: %w", types.ErrUnauthenticated)
	}

	user, err := s.repo.GetUserByID(ctx, row.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User lookup failed")
		return nil, err
	}

	if err := s.repo.RevokeRefreshToken(ctx, tokenHash); err != nil {
		l.WarnContext(ctx, "Failed to revoke rotated refresh token", slog.Any("error", err))
		span.RecordError(err)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token issuance failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Session refreshed")
	return tokens, nil
}

func (s *ServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Logout")
	defer span.End()

	if err := s.repo.RevokeRefreshToken(ctx, hashToken(refreshToken)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Logout failed")
		return err
	}

	span.SetStatus(codes.Ok, "Logged out")
	return nil
}

// LogoutAll revokes every refresh token the user holds, ending all of their
// sessions at once.
func (s *ServiceImpl) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "LogoutAll")
	defer span.End()

	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Logout-all failed")
		return err
	}

	s.logger.InfoContext(ctx, "All sessions revoked", slog.String("userID", userID.String()))
	span.SetStatus(codes.Ok, "All sessions revoked")
	return nil
}

func (s *ServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "GetUser")
	defer span.End()

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "User lookup failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "User fetched")
	return user, nil
}
