package task

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agrimind/farm-assist/internal/types"
)

// MockTaskRepo is a mock implementation of the Repository interface.
type MockTaskRepo struct {
	mock.Mock
}

func (m *MockTaskRepo) Create(ctx context.Context, seasonID uuid.UUID, params types.CreateTaskParams) (*types.FarmTask, error) {
	args := m.Called(ctx, seasonID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.FarmTask), args.Error(1)
}

func (m *MockTaskRepo) Get(ctx context.Context, taskID uuid.UUID) (*types.FarmTask, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.FarmTask), args.Error(1)
}

func (m *MockTaskRepo) ListBySeason(ctx context.Context, seasonID uuid.UUID, status *types.TaskStatus) ([]types.FarmTask, error) {
	args := m.Called(ctx, seasonID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.FarmTask), args.Error(1)
}

func (m *MockTaskRepo) PendingTasks(ctx context.Context, seasonID uuid.UUID) ([]types.FarmTask, error) {
	args := m.Called(ctx, seasonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.FarmTask), args.Error(1)
}

func (m *MockTaskRepo) Complete(ctx context.Context, taskID uuid.UUID, farmerResponse string, at time.Time) (*types.FarmTask, error) {
	args := m.Called(ctx, taskID, farmerResponse, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.FarmTask), args.Error(1)
}

func (m *MockTaskRepo) SetStatus(ctx context.Context, taskID uuid.UUID, status types.TaskStatus) error {
	args := m.Called(ctx, taskID, status)
	return args.Error(0)
}

func (m *MockTaskRepo) Delete(ctx context.Context, taskID uuid.UUID) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

// MockSeasonRepo mocks the season repository for ownership checks.
type MockSeasonRepo struct {
	mock.Mock
}

func (m *MockSeasonRepo) Create(ctx context.Context, userID uuid.UUID, params types.CreateSeasonParams) (*types.CropSeason, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CropSeason), args.Error(1)
}

func (m *MockSeasonRepo) Get(ctx context.Context, seasonID uuid.UUID) (*types.CropSeason, error) {
	args := m.Called(ctx, seasonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CropSeason), args.Error(1)
}

func (m *MockSeasonRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]types.CropSeason, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CropSeason), args.Error(1)
}

func (m *MockSeasonRepo) Update(ctx context.Context, seasonID uuid.UUID, params types.UpdateSeasonParams) error {
	args := m.Called(ctx, seasonID, params)
	return args.Error(0)
}

func (m *MockSeasonRepo) SetPhase(ctx context.Context, seasonID uuid.UUID, phase types.CropPhase, at time.Time) error {
	args := m.Called(ctx, seasonID, phase, at)
	return args.Error(0)
}

func (m *MockSeasonRepo) Delete(ctx context.Context, seasonID uuid.UUID) error {
	args := m.Called(ctx, seasonID)
	return args.Error(0)
}

// MockFeedbackProcessor mocks the feedback interpretation hook.
type MockFeedbackProcessor struct {
	mock.Mock
}

func (m *MockFeedbackProcessor) ProcessTaskFeedback(ctx context.Context, task *types.FarmTask, cropType string) (*types.FeedbackResult, error) {
	args := m.Called(ctx, task, cropType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.FeedbackResult), args.Error(1)
}

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type testDeps struct {
	taskRepo   *MockTaskRepo
	seasonRepo *MockSeasonRepo
	feedback   *MockFeedbackProcessor
}

func newTestService(t *testing.T, withFeedback bool) (*ServiceImpl, testDeps) {
	t.Helper()
	deps := testDeps{
		taskRepo:   new(MockTaskRepo),
		seasonRepo: new(MockSeasonRepo),
		feedback:   new(MockFeedbackProcessor),
	}
	var fb FeedbackProcessor
	if withFeedback {
		fb = deps.feedback
	}
	svc := NewTaskService(deps.taskRepo, deps.seasonRepo, fb, slog.Default())
	svc.now = func() time.Time { return testNow }
	return svc, deps
}

func ownedSeasonFixture(userID, seasonID uuid.UUID) *types.CropSeason {
	return &types.CropSeason{ID: seasonID, UserID: userID, CropType: "rice"}
}

func pendingTaskFixture(taskID, seasonID uuid.UUID) *types.FarmTask {
	return &types.FarmTask{
		ID:            taskID,
		SeasonID:      seasonID,
		Title:         "Apply urea",
		PlannedAction: "Apply 50kg urea fertilizer",
		Priority:      types.PriorityMedium,
		Status:        types.TaskPending,
	}
}

func TestCreateTask(t *testing.T) {
	userID := uuid.New()
	seasonID := uuid.New()

	t.Run("requires title and planned action", func(t *testing.T) {
		svc, deps := newTestService(t, false)

		_, err := svc.CreateTask(context.Background(), userID, seasonID, types.CreateTaskParams{PlannedAction: "water"})
		assert.ErrorIs(t, err, types.ErrBadRequest)

		_, err = svc.CreateTask(context.Background(), userID, seasonID, types.CreateTaskParams{Title: "Water"})
		assert.ErrorIs(t, err, types.ErrBadRequest)

		deps.taskRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		svc, _ := newTestService(t, false)

		_, err := svc.CreateTask(context.Background(), userID, seasonID, types.CreateTaskParams{
			Title: "Water", PlannedAction: "water twice", Priority: "urgent",
		})

		assert.ErrorIs(t, err, types.ErrBadRequest)
	})

	t.Run("rejects foreign season", func(t *testing.T) {
		svc, deps := newTestService(t, false)

		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(uuid.New(), seasonID), nil)

		_, err := svc.CreateTask(context.Background(), userID, seasonID, types.CreateTaskParams{
			Title: "Water", PlannedAction: "water twice",
		})

		assert.ErrorIs(t, err, types.ErrForbidden)
		deps.taskRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("creates task on owned season", func(t *testing.T) {
		svc, deps := newTestService(t, false)

		params := types.CreateTaskParams{Title: "Water", PlannedAction: "water twice"}
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(userID, seasonID), nil)
		deps.taskRepo.On("Create", mock.Anything, seasonID, params).Return(pendingTaskFixture(uuid.New(), seasonID), nil)

		created, err := svc.CreateTask(context.Background(), userID, seasonID, params)

		require.NoError(t, err)
		assert.Equal(t, types.TaskPending, created.Status)
		deps.taskRepo.AssertExpectations(t)
	})
}

func TestListTasks(t *testing.T) {
	userID := uuid.New()
	seasonID := uuid.New()

	t.Run("rejects invalid status filter", func(t *testing.T) {
		svc, _ := newTestService(t, false)

		bad := types.TaskStatus("archived")
		_, err := svc.ListTasks(context.Background(), userID, seasonID, &bad)

		assert.ErrorIs(t, err, types.ErrBadRequest)
	})

	t.Run("passes status filter through", func(t *testing.T) {
		svc, deps := newTestService(t, false)

		status := types.TaskPending
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(userID, seasonID), nil)
		deps.taskRepo.On("ListBySeason", mock.Anything, seasonID, &status).
			Return([]types.FarmTask{*pendingTaskFixture(uuid.New(), seasonID)}, nil)

		tasks, err := svc.ListTasks(context.Background(), userID, seasonID, &status)

		require.NoError(t, err)
		assert.Len(t, tasks, 1)
		deps.taskRepo.AssertExpectations(t)
	})
}

func TestCompleteTask(t *testing.T) {
	userID := uuid.New()
	seasonID := uuid.New()
	taskID := uuid.New()

	completedFixture := func() *types.FarmTask {
		done := pendingTaskFixture(taskID, seasonID)
		done.Status = types.TaskCompleted
		resp := "applied the fertilizer"
		done.FarmerResponse = &resp
		done.CompletedAt = &testNow
		return done
	}

	t.Run("requires farmer response", func(t *testing.T) {
		svc, deps := newTestService(t, true)

		_, err := svc.CompleteTask(context.Background(), userID, taskID, types.CompleteTaskParams{FarmerResponse: "  "})

		assert.ErrorIs(t, err, types.ErrBadRequest)
		deps.taskRepo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects already completed task", func(t *testing.T) {
		svc, deps := newTestService(t, true)

		done := pendingTaskFixture(taskID, seasonID)
		done.Status = types.TaskCompleted
		deps.taskRepo.On("Get", mock.Anything, taskID).Return(done, nil)
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(userID, seasonID), nil)

		_, err := svc.CompleteTask(context.Background(), userID, taskID, types.CompleteTaskParams{FarmerResponse: "done"})

		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("completes and returns feedback", func(t *testing.T) {
		svc, deps := newTestService(t, true)

		done := completedFixture()
		deps.taskRepo.On("Get", mock.Anything, taskID).Return(pendingTaskFixture(taskID, seasonID), nil)
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(userID, seasonID), nil)
		deps.taskRepo.On("Complete", mock.Anything, taskID, "applied the fertilizer", testNow).Return(done, nil)
		deps.feedback.On("ProcessTaskFeedback", mock.Anything, done, "rice").Return(&types.FeedbackResult{
			Analysis: types.FeedbackAnalysis{IsDeviation: false, ActualAction: "applied the fertilizer"},
		}, nil)

		result, err := svc.CompleteTask(context.Background(), userID, taskID, types.CompleteTaskParams{FarmerResponse: "applied the fertilizer"})

		require.NoError(t, err)
		assert.Equal(t, types.TaskCompleted, result.Task.Status)
		require.NotNil(t, result.Feedback)
		assert.False(t, result.Feedback.Analysis.IsDeviation)
		deps.feedback.AssertExpectations(t)
	})

	t.Run("feedback failure does not undo completion", func(t *testing.T) {
		svc, deps := newTestService(t, true)

		done := completedFixture()
		deps.taskRepo.On("Get", mock.Anything, taskID).Return(pendingTaskFixture(taskID, seasonID), nil)
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(userID, seasonID), nil)
		deps.taskRepo.On("Complete", mock.Anything, taskID, "applied the fertilizer", testNow).Return(done, nil)
		deps.feedback.On("ProcessTaskFeedback", mock.Anything, done, "rice").Return(nil, assert.AnError)

		result, err := svc.CompleteTask(context.Background(), userID, taskID, types.CompleteTaskParams{FarmerResponse: "applied the fertilizer"})

		require.NoError(t, err)
		assert.Equal(t, types.TaskCompleted, result.Task.Status)
		assert.Nil(t, result.Feedback)
	})

	t.Run("completes without feedback processor", func(t *testing.T) {
		svc, deps := newTestService(t, false)

		done := completedFixture()
		deps.taskRepo.On("Get", mock.Anything, taskID).Return(pendingTaskFixture(taskID, seasonID), nil)
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(userID, seasonID), nil)
		deps.taskRepo.On("Complete", mock.Anything, taskID, "applied the fertilizer", testNow).Return(done, nil)

		result, err := svc.CompleteTask(context.Background(), userID, taskID, types.CompleteTaskParams{FarmerResponse: "applied the fertilizer"})

		require.NoError(t, err)
		assert.Nil(t, result.Feedback)
		deps.feedback.AssertNotCalled(t, "ProcessTaskFeedback", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSkipTask(t *testing.T) {
	userID := uuid.New()
	seasonID := uuid.New()
	taskID := uuid.New()

	t.Run("skips pending task", func(t *testing.T) {
		svc, deps := newTestService(t, false)

		deps.taskRepo.On("Get", mock.Anything, taskID).Return(pendingTaskFixture(taskID, seasonID), nil)
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(userID, seasonID), nil)
		deps.taskRepo.On("SetStatus", mock.Anything, taskID, types.TaskSkipped).Return(nil)

		err := svc.SkipTask(context.Background(), userID, taskID)

		require.NoError(t, err)
		deps.taskRepo.AssertExpectations(t)
	})

	t.Run("only pending tasks can be skipped", func(t *testing.T) {
		svc, deps := newTestService(t, false)

		done := pendingTaskFixture(taskID, seasonID)
		done.Status = types.TaskCompleted
		deps.taskRepo.On("Get", mock.Anything, taskID).Return(done, nil)
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(userID, seasonID), nil)

		err := svc.SkipTask(context.Background(), userID, taskID)

		assert.ErrorIs(t, err, types.ErrConflict)
		deps.taskRepo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDeleteTask(t *testing.T) {
	userID := uuid.New()
	seasonID := uuid.New()
	taskID := uuid.New()

	t.Run("deletes owned task", func(t *testing.T) {
		svc, deps := newTestService(t, false)

		deps.taskRepo.On("Get", mock.Anything, taskID).Return(pendingTaskFixture(taskID, seasonID), nil)
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(userID, seasonID), nil)
		deps.taskRepo.On("Delete", mock.Anything, taskID).Return(nil)

		err := svc.DeleteTask(context.Background(), userID, taskID)

		require.NoError(t, err)
		deps.taskRepo.AssertExpectations(t)
	})

	t.Run("foreign task is forbidden", func(t *testing.T) {
		svc, deps := newTestService(t, false)

		deps.taskRepo.On("Get", mock.Anything, taskID).Return(pendingTaskFixture(taskID, seasonID), nil)
		deps.seasonRepo.On("Get", mock.Anything, seasonID).Return(ownedSeasonFixture(uuid.New(), seasonID), nil)

		err := svc.DeleteTask(context.Background(), userID, taskID)

		assert.ErrorIs(t, err, types.ErrForbidden)
		deps.taskRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}
