package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/agrimind/farm-assist/internal/types"
)

var _ Repository = (*PostgresAuthRepo)(nil)

// RefreshTokenRow is a stored refresh token lookup result.
type RefreshTokenRow struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
	Revoked   bool
}

// Repository is the persistence contract for accounts and refresh tokens.
// Refresh tokens are stored hashed; the raw token never touches the database.
type Repository interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	LookupRefreshToken(ctx context.Context, tokenHash string) (*RefreshTokenRow, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// PGXPool is the subset of pgxpool.Pool the repository needs.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresAuthRepo(pgpool PGXPool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, username, email, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUser"), slog.String("email", email))

	query := fmt.Sprintf(`
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING %s`, userColumns)

	u, err := scanUser(r.pgpool.QueryRow(ctx, query, username, email, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			l.WarnContext(ctx, "Email already registered")
			span.SetStatus(codes.Error, "Duplicate email")
			return nil, fmt.Errorf("email already registered: %w", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating user: %w", err)
	}

	span.SetStatus(codes.Ok, "User created")
	return u, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	u, err := scanUser(r.pgpool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to query user by email", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User fetched")
	return u, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	u, err := scanUser(r.pgpool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to query user by ID", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}

	span.SetStatus(codes.Ok, "User fetched")
	return u, nil
}

func (r *PostgresAuthRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "StoreRefreshToken", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "refresh_tokens"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to store refresh token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error storing refresh token: %w", err)
	}

	span.SetStatus(codes.Ok, "Refresh token stored")
	return nil
}

func (r *PostgresAuthRepo) LookupRefreshToken(ctx context.Context, tokenHash string) (*RefreshTokenRow, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "LookupRefreshToken", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "refresh_tokens"),
	))
	defer span.End()

	var row RefreshTokenRow
	err := r.pgpool.QueryRow(ctx,
		`SELECT user_id, expires_at, revoked FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash).Scan(&row.UserID, &row.ExpiresAt, &row.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Refresh token not found")
			return nil, fmt.Errorf("refresh token not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to look up refresh token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error looking up refresh token: %w", err)
	}

	span.SetStatus(codes.Ok, "Refresh token found")
	return &row, nil
}

func (r *PostgresAuthRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "RevokeRefreshToken", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "refresh_tokens"),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1 AND NOT revoked`,
		tokenHash)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to revoke refresh token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error revoking refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already revoked or never existed; harmless for logout.
		r.logger.DebugContext(ctx, "No active refresh token matched revocation")
	}

	span.SetStatus(codes.Ok, "Refresh token revoked")
	return nil
}

func (r *PostgresAuthRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "RevokeAllForUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "refresh_tokens"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`,
		userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to revoke user refresh tokens", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error revoking user refresh tokens: %w", err)
	}

	span.SetStatus(codes.Ok, "User refresh tokens revoked")
	return nil
}
