package task

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/agrimind/farm-assist/internal/api"
	"github.com/agrimind/farm-assist/internal/types"
)

type HandlerImpl struct {
	taskService Service
	logger      *slog.Logger
}

// NewHandlerImpl creates a new task handler instance.
func NewHandlerImpl(taskService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		taskService: taskService,
		logger:      logger,
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid %s format in URL", name))
		return uuid.Nil, false
	}
	return id, true
}

// CreateTask godoc
// @Summary      Create Farm Task
// @Description  Adds a planned action to the season's work list.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID}/tasks [post]
func (h *HandlerImpl) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "CreateTask", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}/tasks"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "CreateTask"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	seasonID, ok := uuidParam(w, r, "seasonID")
	if !ok {
		span.SetStatus(codes.Error, "Invalid season ID")
		return
	}

	var params types.CreateTaskParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	created, err := h.taskService.CreateTask(ctx, userID, seasonID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create task")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to create farm task")
		return
	}

	span.SetStatus(codes.Ok, "Task created")
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

// ListTasks godoc
// @Summary      List Farm Tasks
// @Description  Lists the season's tasks, optionally filtered by ?status=.
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID}/tasks [get]
func (h *HandlerImpl) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "ListTasks", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}/tasks"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "ListTasks"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	seasonID, ok := uuidParam(w, r, "seasonID")
	if !ok {
		span.SetStatus(codes.Error, "Invalid season ID")
		return
	}

	var status *types.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := types.TaskStatus(raw)
		status = &st
	}

	tasks, err := h.taskService.ListTasks(ctx, userID, seasonID, status)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list tasks", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list tasks")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to list farm tasks")
		return
	}

	span.SetStatus(codes.Ok, "Tasks listed")
	api.WriteJSONResponse(w, r, http.StatusOK, tasks)
}

// GetTask godoc
// @Summary      Get Farm Task
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Router       /tasks/{taskID} [get]
func (h *HandlerImpl) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "GetTask", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/tasks/{taskID}"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "GetTask"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	taskID, ok := uuidParam(w, r, "taskID")
	if !ok {
		span.SetStatus(codes.Error, "Invalid task ID")
		return
	}

	t, err := h.taskService.GetTask(ctx, userID, taskID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch task")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to retrieve farm task")
		return
	}

	span.SetStatus(codes.Ok, "Task fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, t)
}

// CompleteTask godoc
// @Summary      Complete Farm Task
// @Description  Records the farmer's natural-language report and interprets it against the planned action.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /tasks/{taskID}/complete [post]
func (h *HandlerImpl) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "CompleteTask", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/tasks/{taskID}/complete"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "CompleteTask"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	taskID, ok := uuidParam(w, r, "taskID")
	if !ok {
		span.SetStatus(codes.Error, "Invalid task ID")
		return
	}

	var params types.CompleteTaskParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	result, err := h.taskService.CompleteTask(ctx, userID, taskID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to complete task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to complete task")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to complete farm task")
		return
	}

	span.SetStatus(codes.Ok, "Task completed")
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// SkipTask godoc
// @Summary      Skip Farm Task
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Router       /tasks/{taskID}/skip [post]
func (h *HandlerImpl) SkipTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "SkipTask", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/tasks/{taskID}/skip"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "SkipTask"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	taskID, ok := uuidParam(w, r, "taskID")
	if !ok {
		span.SetStatus(codes.Error, "Invalid task ID")
		return
	}

	if err := h.taskService.SkipTask(ctx, userID, taskID); err != nil {
		l.ErrorContext(ctx, "Failed to skip task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to skip task")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to skip farm task")
		return
	}

	span.SetStatus(codes.Ok, "Task skipped")
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Farm task skipped",
	})
}

// DeleteTask godoc
// @Summary      Delete Farm Task
// @Tags         Tasks
// @Security     BearerAuth
// @Router       /tasks/{taskID} [delete]
func (h *HandlerImpl) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "DeleteTask", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/tasks/{taskID}"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "DeleteTask"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	taskID, ok := uuidParam(w, r, "taskID")
	if !ok {
		span.SetStatus(codes.Error, "Invalid task ID")
		return
	}

	if err := h.taskService.DeleteTask(ctx, userID, taskID); err != nil {
		l.ErrorContext(ctx, "Failed to delete task", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete task")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to delete farm task")
		return
	}

	span.SetStatus(codes.Ok, "Task deleted")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
