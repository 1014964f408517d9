package task

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

var _ Repository = (*PostgresTaskRepo)(nil)

// Repository is the persistence contract for farm tasks.
type Repository interface {
	Create(ctx context.Context, seasonID uuid.UUID, params types.CreateTaskParams) (*types.FarmTask, error)
	Get(ctx context.Context, taskID uuid.UUID) (*types.FarmTask, error)
	ListBySeason(ctx context.Context, seasonID uuid.UUID, status *types.TaskStatus) ([]types.FarmTask, error)
	PendingTasks(ctx context.Context, seasonID uuid.UUID) ([]types.FarmTask, error)
	Complete(ctx context.Context, taskID uuid.UUID, farmerResponse string, at time.Time) (*types.FarmTask, error)
	SetStatus(ctx context.Context, taskID uuid.UUID, status types.TaskStatus) error
	Delete(ctx context.Context, taskID uuid.UUID) error
}

// PGXPool is the subset of pgxpool.Pool the repository needs.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresTaskRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresTaskRepo(pgpool PGXPool, logger *slog.Logger) *PostgresTaskRepo {
	return &PostgresTaskRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const taskColumns = `id, season_id, title, description, planned_action, priority, status,
		       due_date, completed_at, farmer_response, created_at, updated_at`

func scanTask(row pgx.Row) (*types.FarmTask, error) {
	var t types.FarmTask
	err := row.Scan(
		&t.ID,
		&t.SeasonID,
		&t.Title,
		&t.Description,
		&t.PlannedAction,
		&t.Priority,
		&t.Status,
		&t.DueDate,
		&t.CompletedAt,
		&t.FarmerResponse,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTaskRepo) Create(ctx context.Context, seasonID uuid.UUID, params types.CreateTaskParams) (*types.FarmTask, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "farm_tasks"),
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("seasonID", seasonID.String()))
	l.DebugContext(ctx, "Creating farm task", slog.String("title", params.Title))

	priority := params.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}

	query := fmt.Sprintf(`
		INSERT INTO farm_tasks (season_id, title, description, planned_action, priority, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, taskColumns)

	t, err := scanTask(r.pgpool.QueryRow(ctx, query,
		seasonID, params.Title, params.Description, params.PlannedAction, priority, params.DueDate))
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert farm task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating farm task: %w", err)
	}

	span.SetStatus(codes.Ok, "Task created")
	return t, nil
}

func (r *PostgresTaskRepo) Get(ctx context.Context, taskID uuid.UUID) (*types.FarmTask, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "farm_tasks"),
		attribute.String("task.id", taskID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Get"), slog.String("taskID", taskID.String()))

	query := fmt.Sprintf(`SELECT %s FROM farm_tasks WHERE id = $1`, taskColumns)

	t, err := scanTask(r.pgpool.QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			l.WarnContext(ctx, "Farm task not found")
			span.SetStatus(codes.Error, "Task not found")
			return nil, fmt.Errorf("farm task not found: %w", types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to query farm task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching farm task: %w", err)
	}

	span.SetStatus(codes.Ok, "Task fetched")
	return t, nil
}

func (r *PostgresTaskRepo) ListBySeason(ctx context.Context, seasonID uuid.UUID, status *types.TaskStatus) ([]types.FarmTask, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "ListBySeason", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "farm_tasks"),
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "ListBySeason"), slog.String("seasonID", seasonID.String()))

	query := fmt.Sprintf(`SELECT %s FROM farm_tasks WHERE season_id = $1`, taskColumns)
	args := []interface{}{seasonID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY due_date NULLS LAST, created_at`

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query farm tasks", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error listing farm tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.FarmTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			l.ErrorContext(ctx, "Failed to scan farm task row", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Row scan failed")
			return nil, fmt.Errorf("database error scanning farm task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rows iteration failed")
		return nil, fmt.Errorf("database error iterating farm tasks: %w", err)
	}

	span.SetStatus(codes.Ok, "Tasks listed")
	return tasks, nil
}

// PendingTasks lists the season's tasks still awaiting action. Used by the
// phase lifecycle to gate harvest readiness on critical work.
func (r *PostgresTaskRepo) PendingTasks(ctx context.Context, seasonID uuid.UUID) ([]types.FarmTask, error) {
	pending := types.TaskPending
	return r.ListBySeason(ctx, seasonID, &pending)
}

func (r *PostgresTaskRepo) Complete(ctx context.Context, taskID uuid.UUID, farmerResponse string, at time.Time) (*types.FarmTask, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "Complete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "farm_tasks"),
		attribute.String("task.id", taskID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Complete"), slog.String("taskID", taskID.String()))

	query := fmt.Sprintf(`
		UPDATE farm_tasks
		SET status = $1, farmer_response = $2, completed_at = $3, updated_at = $3
		WHERE id = $4
		RETURNING %s`, taskColumns)

	t, err := scanTask(r.pgpool.QueryRow(ctx, query, types.TaskCompleted, farmerResponse, at, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			l.WarnContext(ctx, "Farm task not found for completion")
			span.SetStatus(codes.Error, "Task not found")
			return nil, fmt.Errorf("farm task not found: %w", types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to complete farm task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return nil, fmt.Errorf("database error completing farm task: %w", err)
	}

	span.SetStatus(codes.Ok, "Task completed")
	return t, nil
}

func (r *PostgresTaskRepo) SetStatus(ctx context.Context, taskID uuid.UUID, status types.TaskStatus) error {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "SetStatus", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "farm_tasks"),
		attribute.String("task.id", taskID.String()),
		attribute.String("task.status", string(status)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "SetStatus"), slog.String("taskID", taskID.String()))

	query := `UPDATE farm_tasks SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.pgpool.Exec(ctx, query, status, time.Now(), taskID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to set farm task status", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error setting task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		l.WarnContext(ctx, "Farm task not found for status update")
		span.SetStatus(codes.Error, "Task not found")
		return fmt.Errorf("farm task %s not found: %w", taskID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Status set")
	return nil
}

func (r *PostgresTaskRepo) Delete(ctx context.Context, taskID uuid.UUID) error {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "farm_tasks"),
		attribute.String("task.id", taskID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM farm_tasks WHERE id = $1`, taskID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete farm task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("database error deleting farm task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Task not found")
		return fmt.Errorf("farm task %s not found: %w", taskID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Task deleted")
	return nil
}
