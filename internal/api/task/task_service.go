package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agrimind/farm-assist/internal/api/season"
	"github.com/agrimind/farm-assist/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// FeedbackProcessor interprets a completed task's farmer response and records
// any deviation it finds. Implemented by the feedback service.
type FeedbackProcessor interface {
	ProcessTaskFeedback(ctx context.Context, task *types.FarmTask, cropType string) (*types.FeedbackResult, error)
}

// CompleteTaskResult is what a task completion returns: the updated task plus
// the interpretation of the farmer's report.
type CompleteTaskResult struct {
	Task     *types.FarmTask       `json:"task"`
	Feedback *types.FeedbackResult `json:"feedback,omitempty"`
}

// Service orchestrates task lifecycle operations scoped to the owning user.
type Service interface {
	CreateTask(ctx context.Context, userID, seasonID uuid.UUID, params types.CreateTaskParams) (*types.FarmTask, error)
	GetTask(ctx context.Context, userID, taskID uuid.UUID) (*types.FarmTask, error)
	ListTasks(ctx context.Context, userID, seasonID uuid.UUID, status *types.TaskStatus) ([]types.FarmTask, error)
	CompleteTask(ctx context.Context, userID, taskID uuid.UUID, params types.CompleteTaskParams) (*CompleteTaskResult, error)
	SkipTask(ctx context.Context, userID, taskID uuid.UUID) error
	DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error
}

type ServiceImpl struct {
	logger     *slog.Logger
	taskRepo   Repository
	seasonRepo season.Repository
	feedback   FeedbackProcessor
	now        func() time.Time
}

// NewTaskService creates the task service. The feedback processor may be nil,
// in which case completions are recorded without interpretation.
func NewTaskService(taskRepo Repository, seasonRepo season.Repository, feedback FeedbackProcessor, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		taskRepo:   taskRepo,
		seasonRepo: seasonRepo,
		feedback:   feedback,
		now:        time.Now,
	}
}

// ownedSeason fetches the season and verifies it belongs to userID.
func (s *ServiceImpl) ownedSeason(ctx context.Context, userID, seasonID uuid.UUID) (*types.CropSeason, error) {
	sn, err := s.seasonRepo.Get(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	if sn.UserID != userID {
		return nil, fmt.Errorf("season %s does not belong to user: %w", seasonID, types.ErrForbidden)
	}
	return sn, nil
}

// ownedTask fetches the task and verifies its season belongs to userID.
func (s *ServiceImpl) ownedTask(ctx context.Context, userID, taskID uuid.UUID) (*types.FarmTask, *types.CropSeason, error) {
	t, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	sn, err := s.ownedSeason(ctx, userID, t.SeasonID)
	if err != nil {
		return nil, nil, err
	}
	return t, sn, nil
}

func (s *ServiceImpl) CreateTask(ctx context.Context, userID, seasonID uuid.UUID, params types.CreateTaskParams) (*types.FarmTask, error) {
	ctx, span := otel.Tracer("TaskService").Start(ctx, "CreateTask", trace.WithAttributes(
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateTask"), slog.String("seasonID", seasonID.String()))

	if strings.TrimSpace(params.Title) == "" {
		return nil, fmt.Errorf("task title is required: %w", types.ErrBadRequest)
	}
	if strings.TrimSpace(params.PlannedAction) == "" {
		return nil, fmt.Errorf("planned action is required: %w", types.ErrBadRequest)
	}
	if params.Priority != "" && !params.Priority.IsValid() {
		return nil, fmt.Errorf("invalid priority %q: %w", params.Priority, types.ErrBadRequest)
	}

	if _, err := s.ownedSeason(ctx, userID, seasonID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Season access denied")
		return nil, err
	}

	t, err := s.taskRepo.Create(ctx, seasonID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task creation failed")
		return nil, err
	}

	l.InfoContext(ctx, "Farm task created", slog.String("taskID", t.ID.String()))
	span.SetStatus(codes.Ok, "Task created")
	return t, nil
}

func (s *ServiceImpl) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*types.FarmTask, error) {
	ctx, span := otel.Tracer("TaskService").Start(ctx, "GetTask", trace.WithAttributes(
		attribute.String("task.id", taskID.String()),
	))
	defer span.End()

	t, _, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task access denied")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Task fetched")
	return t, nil
}

func (s *ServiceImpl) ListTasks(ctx context.Context, userID, seasonID uuid.UUID, status *types.TaskStatus) ([]types.FarmTask, error) {
	ctx, span := otel.Tracer("TaskService").Start(ctx, "ListTasks", trace.WithAttributes(
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	if status != nil && !status.IsValid() {
		return nil, fmt.Errorf("invalid task status %q: %w", *status, types.ErrBadRequest)
	}

	if _, err := s.ownedSeason(ctx, userID, seasonID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Season access denied")
		return nil, err
	}

	tasks, err := s.taskRepo.ListBySeason(ctx, seasonID, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task listing failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Tasks listed")
	return tasks, nil
}

// CompleteTask marks the task done with the farmer's report and runs the
// feedback pipeline on it. A failed interpretation does not undo the
// completion; the completion result is returned without feedback.
func (s *ServiceImpl) CompleteTask(ctx context.Context, userID, taskID uuid.UUID, params types.CompleteTaskParams) (*CompleteTaskResult, error) {
	ctx, span := otel.Tracer("TaskService").Start(ctx, "CompleteTask", trace.WithAttributes(
		attribute.String("task.id", taskID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CompleteTask"), slog.String("taskID", taskID.String()))

	if strings.TrimSpace(params.FarmerResponse) == "" {
		return nil, fmt.Errorf("farmer response is required: %w", types.ErrBadRequest)
	}

	t, sn, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task access denied")
		return nil, err
	}
	if t.Status == types.TaskCompleted {
		return nil, fmt.Errorf("task %s is already completed: %w", taskID, types.ErrConflict)
	}

	completed, err := s.taskRepo.Complete(ctx, taskID, params.FarmerResponse, s.now())
	if err != nil {
		l.ErrorContext(ctx, "Failed to mark task completed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task completion failed")
		return nil, err
	}

	result := &CompleteTaskResult{Task: completed}
	if s.feedback != nil {
		fb, err := s.feedback.ProcessTaskFeedback(ctx, completed, sn.CropType)
		if err != nil {
			// Completion already persisted; interpretation is best effort.
			l.WarnContext(ctx, "Feedback interpretation failed", slog.Any("error", err))
			span.RecordError(err)
		} else {
			result.Feedback = fb
		}
	}

	l.InfoContext(ctx, "Farm task completed", slog.Bool("has_feedback", result.Feedback != nil))
	span.SetStatus(codes.Ok, "Task completed")
	return result, nil
}

func (s *ServiceImpl) SkipTask(ctx context.Context, userID, taskID uuid.UUID) error {
	ctx, span := otel.Tracer("TaskService").Start(ctx, "SkipTask", trace.WithAttributes(
		attribute.String("task.id", taskID.String()),
	))
	defer span.End()

	t, _, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task access denied")
		return err
	}
	if t.Status != types.TaskPending {
		return fmt.Errorf("only pending tasks can be skipped: %w", types.ErrConflict)
	}

	if err := s.taskRepo.SetStatus(ctx, taskID, types.TaskSkipped); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task skip failed")
		return err
	}

	span.SetStatus(codes.Ok, "Task skipped")
	return nil
}

func (s *ServiceImpl) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	ctx, span := otel.Tracer("TaskService").Start(ctx, "DeleteTask", trace.WithAttributes(
		attribute.String("task.id", taskID.String()),
	))
	defer span.End()

	if _, _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task access denied")
		return err
	}

	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Task deletion failed")
		return err
	}

	span.SetStatus(codes.Ok, "Task deleted")
	return nil
}
