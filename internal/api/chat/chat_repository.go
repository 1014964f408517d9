package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

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

var _ Repository = (*PostgresChatRepo)(nil)

// Repository persists chat sessions and their messages.
type Repository interface {
	CreateSession(ctx context.Context, userID uuid.UUID, seasonID *uuid.UUID) (*types.ChatSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error)
	AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (*types.ChatMessage, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]types.ChatMessage, error)
}

// PGXPool is the subset of pgxpool.Pool the repository needs.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresChatRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresChatRepo(pgpool PGXPool, logger *slog.Logger) *PostgresChatRepo {
	return &PostgresChatRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresChatRepo) CreateSession(ctx context.Context, userID uuid.UUID, seasonID *uuid.UUID) (*types.ChatSession, error) {
	ctx, span := otel.Tracer("ChatRepo").Start(ctx, "CreateSession", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "chat_sessions"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
		INSERT INTO chat_sessions (user_id, season_id)
		VALUES ($1, $2)
		RETURNING id, user_id, season_id, created_at`

	var s types.ChatSession
	err := r.pgpool.QueryRow(ctx, query, userID, seasonID).Scan(&s.ID, &s.UserID, &s.SeasonID, &s.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert chat session", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating chat session: %w", err)
	}

	span.SetStatus(codes.Ok, "Session created")
	return &s, nil
}

func (r *PostgresChatRepo) GetSession(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error) {
	ctx, span := otel.Tracer("ChatRepo").Start(ctx, "GetSession", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "chat_sessions"),
		attribute.String("chat.session.id", sessionID.String()),
	))
	defer span.End()

	query := `SELECT id, user_id, season_id, created_at FROM chat_sessions WHERE id = $1`

	var s types.ChatSession
	err := r.pgpool.QueryRow(ctx, query, sessionID).Scan(&s.ID, &s.UserID, &s.SeasonID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Session not found")
			return nil, fmt.Errorf("chat session not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to query chat session", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching chat session: %w", err)
	}

	span.SetStatus(codes.Ok, "Session fetched")
	return &s, nil
}

func (r *PostgresChatRepo) AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (*types.ChatMessage, error) {
	ctx, span := otel.Tracer("ChatRepo").Start(ctx, "AddMessage", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "chat_messages"),
		attribute.String("chat.session.id", sessionID.String()),
		attribute.String("chat.role", role),
	))
	defer span.End()

	query := `
		INSERT INTO chat_messages (session_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING id, session_id, role, content, created_at`

	var m types.ChatMessage
	err := r.pgpool.QueryRow(ctx, query, sessionID, role, content).Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert chat message", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error storing chat message: %w", err)
	}

	span.SetStatus(codes.Ok, "Message stored")
	return &m, nil
}

func (r *PostgresChatRepo) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]types.ChatMessage, error) {
	ctx, span := otel.Tracer("ChatRepo").Start(ctx, "ListMessages", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "chat_messages"),
		attribute.String("chat.session.id", sessionID.String()),
	))
	defer span.End()

	query := `SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id = $1 ORDER BY created_at`

	rows, err := r.pgpool.Query(ctx, query, sessionID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query chat messages", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing chat messages: %w", err)
	}
	defer rows.Close()

	var messages []types.ChatMessage
	for rows.Next() {
		var m types.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Row scan failed")
			return nil, fmt.Errorf("database error scanning chat message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rows iteration failed")
		return nil, fmt.Errorf("database error iterating chat messages: %w", err)
	}

	span.SetStatus(codes.Ok, "Messages listed")
	return messages, nil
}
