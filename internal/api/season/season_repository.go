package season

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
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

var _ Repository = (*PostgresSeasonRepo)(nil)

// Repository is the persistence contract for crop seasons.
type Repository interface {
	Create(ctx context.Context, userID uuid.UUID, params types.CreateSeasonParams) (*types.CropSeason, error)
	Get(ctx context.Context, seasonID uuid.UUID) (*types.CropSeason, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]types.CropSeason, error)
	Update(ctx context.Context, seasonID uuid.UUID, params types.UpdateSeasonParams) error
	SetPhase(ctx context.Context, seasonID uuid.UUID, phase types.CropPhase, at time.Time) error
	Delete(ctx context.Context, seasonID uuid.UUID) error
}

// PGXPool is the subset of pgxpool.Pool the repository needs. Narrowed so
// tests can substitute pgxmock.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresSeasonRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresSeasonRepo(pgpool PGXPool, logger *slog.Logger) *PostgresSeasonRepo {
	return &PostgresSeasonRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const seasonColumns = `id, user_id, crop_type, start_date, expected_harvest_date, actual_harvest_date,
	       current_phase, phase_updated_at, health_score, notes, created_at, updated_at`

func scanSeason(row pgx.Row) (*types.CropSeason, error) {
	var s types.CropSeason
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.CropType,
		&s.StartDate,
		&s.ExpectedHarvestDate,
		&s.ActualHarvestDate,
		&s.CurrentPhase,
		&s.PhaseUpdatedAt,
		&s.HealthScore,
		&s.Notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresSeasonRepo) Create(ctx context.Context, userID uuid.UUID, params types.CreateSeasonParams) (*types.CropSeason, error) {
	ctx, span := otel.Tracer("SeasonRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "crop_seasons"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("userID", userID.String()))
	l.DebugContext(ctx, "Creating crop season", slog.String("crop_type", params.CropType))

	query := fmt.Sprintf(`
		INSERT INTO crop_seasons (user_id, crop_type, start_date, expected_harvest_date, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, seasonColumns)

	s, err := scanSeason(r.pgpool.QueryRow(ctx, query,
		userID, params.CropType, params.StartDate, params.ExpectedHarvestDate, params.Notes))
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert crop season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating crop season: %w", err)
	}

	span.SetStatus(codes.Ok, "Season created")
	return s, nil
}

func (r *PostgresSeasonRepo) Get(ctx context.Context, seasonID uuid.UUID) (*types.CropSeason, error) {
	ctx, span := otel.Tracer("SeasonRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "crop_seasons"),
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Get"), slog.String("seasonID", seasonID.String()))

	query := fmt.Sprintf(`SELECT %s FROM crop_seasons WHERE id = $1`, seasonColumns)

	s, err := scanSeason(r.pgpool.QueryRow(ctx, query, seasonID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			l.WarnContext(ctx, "Crop season not found")
			span.SetStatus(codes.Error, "Season not found")
			return nil, fmt.Errorf("crop season not found: %w", types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to query crop season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching crop season: %w", err)
	}

	span.SetStatus(codes.Ok, "Season fetched")
	return s, nil
}

func (r *PostgresSeasonRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]types.CropSeason, error) {
	ctx, span := otel.Tracer("SeasonRepo").Start(ctx, "ListByUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "crop_seasons"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "ListByUser"), slog.String("userID", userID.String()))

	query := fmt.Sprintf(`SELECT %s FROM crop_seasons WHERE user_id = $1 ORDER BY created_at DESC`, seasonColumns)

	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query crop seasons", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing crop seasons: %w", err)
	}
	defer rows.Close()

	var seasons []types.CropSeason
	for rows.Next() {
		s, err := scanSeason(rows)
		if err != nil {
			l.ErrorContext(ctx, "Failed to scan crop season row", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Row scan failed")
			return nil, fmt.Errorf("database error scanning crop season: %w", err)
		}
		seasons = append(seasons, *s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rows iteration failed")
		return nil, fmt.Errorf("database error iterating crop seasons: %w", err)
	}

	span.SetStatus(codes.Ok, "Seasons listed")
	return seasons, nil
}

func (r *PostgresSeasonRepo) Update(ctx context.Context, seasonID uuid.UUID, params types.UpdateSeasonParams) error {
	ctx, span := otel.Tracer("SeasonRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "crop_seasons"),
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Update"), slog.String("seasonID", seasonID.String()))

	// Build query dynamically from the provided fields.
	var setClauses []string
	var args []interface{}
	argID := 1

	if params.StartDate != nil {
		setClauses = append(setClauses, fmt.Sprintf("start_date = $%d", argID))
		args = append(args, *params.StartDate)
		argID++
	}
	if params.ExpectedHarvestDate != nil {
		setClauses = append(setClauses, fmt.Sprintf("expected_harvest_date = $%d", argID))
		args = append(args, *params.ExpectedHarvestDate)
		argID++
	}
	if params.ActualHarvestDate != nil {
		setClauses = append(setClauses, fmt.Sprintf("actual_harvest_date = $%d", argID))
		args = append(args, *params.ActualHarvestDate)
		argID++
	}
	if params.HealthScore != nil {
		setClauses = append(setClauses, fmt.Sprintf("health_score = $%d", argID))
		args = append(args, *params.HealthScore)
		argID++
	}
	if params.Notes != nil {
		setClauses = append(setClauses, fmt.Sprintf("notes = $%d", argID))
		args = append(args, *params.Notes)
		argID++
	}

	if len(setClauses) == 0 {
		l.InfoContext(ctx, "Update called with no fields to update")
		span.SetStatus(codes.Ok, "No update fields provided")
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argID))
	args = append(args, time.Now())
	argID++

	args = append(args, seasonID)
	query := fmt.Sprintf(`UPDATE crop_seasons SET %s WHERE id = $%d`,
		strings.Join(setClauses, ", "), argID)

	tag, err := r.pgpool.Exec(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to execute crop season update", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating crop season: %w", err)
	}
	if tag.RowsAffected() == 0 {
		l.WarnContext(ctx, "Crop season not found for update")
		span.SetStatus(codes.Error, "Season not found")
		return fmt.Errorf("crop season %s not found: %w", seasonID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Season updated")
	return nil
}

func (r *PostgresSeasonRepo) SetPhase(ctx context.Context, seasonID uuid.UUID, phase types.CropPhase, at time.Time) error {
	ctx, span := otel.Tracer("SeasonRepo").Start(ctx, "SetPhase", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "crop_seasons"),
		attribute.String("season.id", seasonID.String()),
		attribute.String("season.phase", string(phase)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "SetPhase"), slog.String("seasonID", seasonID.String()))

	query := `UPDATE crop_seasons SET current_phase = $1, phase_updated_at = $2, updated_at = $2 WHERE id = $3`

	tag, err := r.pgpool.Exec(ctx, query, phase, at, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to set crop season phase", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error setting season phase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		l.WarnContext(ctx, "Crop season not found for phase update")
		span.SetStatus(codes.Error, "Season not found")
		return fmt.Errorf("crop season %s not found: %w", seasonID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Phase set")
	return nil
}

func (r *PostgresSeasonRepo) Delete(ctx context.Context, seasonID uuid.UUID) error {
	ctx, span := otel.Tracer("SeasonRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "crop_seasons"),
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Delete"), slog.String("seasonID", seasonID.String()))

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM crop_seasons WHERE id = $1`, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to delete crop season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting crop season: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Season not found")
		return fmt.Errorf("crop season %s not found: %w", seasonID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Season deleted")
	return nil
}
