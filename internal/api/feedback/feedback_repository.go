package feedback

import (
	"context"
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

	"github.com/agrimind/farm-assist/app/observability/metrics"
	"github.com/agrimind/farm-assist/internal/types"
)

var _ Repository = (*PostgresFeedbackRepo)(nil)

// Repository persists detected deviations.
type Repository interface {
	CreateDeviation(ctx context.Context, record *types.DeviationRecord) (*types.DeviationRecord, error)
	ListBySeason(ctx context.Context, seasonID uuid.UUID) ([]types.DeviationRecord, error)
}

// PGXPool is the subset of pgxpool.Pool the repository needs.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresFeedbackRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresFeedbackRepo(pgpool PGXPool, logger *slog.Logger) *PostgresFeedbackRepo {
	return &PostgresFeedbackRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const deviationColumns = `id, season_id, task_id, planned_action, farmer_response, analysis, impact, created_at`

func scanDeviation(row pgx.Row) (*types.DeviationRecord, error) {
	var d types.DeviationRecord
	err := row.Scan(
		&d.ID,
		&d.SeasonID,
		&d.TaskID,
		&d.PlannedAction,
		&d.FarmerResponse,
		&d.Analysis,
		&d.Impact,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDeviation inserts a new deviation record. The analysis and impact
// structs are stored as JSONB.
func (r *PostgresFeedbackRepo) CreateDeviation(ctx context.Context, record *types.DeviationRecord) (*types.DeviationRecord, error) {
	ctx, span := otel.Tracer("FeedbackRepo").Start(ctx, "CreateDeviation", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "deviation_records"),
		attribute.String("season.id", record.SeasonID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateDeviation"), slog.String("seasonID", record.SeasonID.String()))

	query := fmt.Sprintf(`
		INSERT INTO deviation_records (season_id, task_id, planned_action, farmer_response, analysis, impact)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, deviationColumns)

	d, err := scanDeviation(r.pgpool.QueryRow(ctx, query,
		record.SeasonID, record.TaskID, record.PlannedAction, record.FarmerResponse, record.Analysis, record.Impact))
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert deviation record", slog.Any("error", err))
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating deviation record: %w", err)
	}

	span.SetStatus(codes.Ok, "Deviation recorded")
	return d, nil
}

func (r *PostgresFeedbackRepo) ListBySeason(ctx context.Context, seasonID uuid.UUID) ([]types.DeviationRecord, error) {
	ctx, span := otel.Tracer("FeedbackRepo").Start(ctx, "ListBySeason", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "deviation_records"),
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "ListBySeason"), slog.String("seasonID", seasonID.String()))

	query := fmt.Sprintf(`SELECT %s FROM deviation_records WHERE season_id = $1 ORDER BY created_at DESC`, deviationColumns)

	rows, err := r.pgpool.Query(ctx, query, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query deviation records", slog.Any("error", err))
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing deviation records: %w", err)
	}
	defer rows.Close()

	var records []types.DeviationRecord
	for rows.Next() {
		d, err := scanDeviation(rows)
		if err != nil {
			l.ErrorContext(ctx, "Failed to scan deviation record row", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Row scan failed")
			return nil, fmt.Errorf("database error scanning deviation record: %w", err)
		}
		records = append(records, *d)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rows iteration failed")
		return nil, fmt.Errorf("database error iterating deviation records: %w", err)
	}

	span.SetStatus(codes.Ok, "Deviations listed")
	return records, nil
}
