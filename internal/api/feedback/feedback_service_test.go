package feedback

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/agrimind/farm-assist/app/observability/metrics"
	"github.com/agrimind/farm-assist/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	m.Run()
}

// MockLLM is a mock implementation of the LLMClient interface.
type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

func (m *MockLLM) Model() string { return "test-model" }

// MockAdvisor is a mock implementation of the Advisor interface.
type MockAdvisor struct {
	mock.Mock
}

func (m *MockAdvisor) GenerateContent(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	args := m.Called(ctx, prompt, config)
	return args.String(0), args.Error(1)
}

// MockFeedbackRepo is a mock implementation of the Repository interface.
type MockFeedbackRepo struct {
	mock.Mock
}

func (m *MockFeedbackRepo) CreateDeviation(ctx context.Context, record *types.DeviationRecord) (*types.DeviationRecord, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.DeviationRecord), args.Error(1)
}

func (m *MockFeedbackRepo) ListBySeason(ctx context.Context, seasonID uuid.UUID) ([]types.DeviationRecord, error) {
	args := m.Called(ctx, seasonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.DeviationRecord), args.Error(1)
}

// MockSeasonRepo is a mock implementation of the season.Repository interface.
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

func newTestService(llm LLMClient, repo Repository, seasonRepo *MockSeasonRepo) *ServiceImpl {
	return NewFeedbackService(llm, nil, repo, seasonRepo, time.Hour, slog.Default())
}

func TestKeywordAnalysis(t *testing.T) {
	tests := []struct {
		name          string
		response      string
		wantCompleted bool
		wantDeviation bool
	}{
		{"plain completion", "Done, applied it this morning", true, false},
		{"finished keyword", "finished watering all rows", true, false},
		{"substitution", "I used compost instead because urea was out of stock", false, true},
		{"forgot", "I forgot to spray yesterday", false, true},
		{"completion with deviation word", "I did it but used a different sprayer", false, true},
		{"unintelligible", "the weather was strange", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := keywordAnalysis("Apply 50kg urea fertilizer", tt.response)

			assert.Equal(t, tt.wantCompleted, analysis.CompletedAsPlanned)
			assert.Equal(t, tt.wantDeviation, analysis.IsDeviation)
			if tt.wantDeviation {
				assert.Equal(t, types.DeviationUnknown, analysis.DeviationType)
				assert.Equal(t, types.SeverityModerate, analysis.Severity)
				assert.True(t, analysis.RequiresAgentResponse)
			} else {
				assert.Equal(t, types.DeviationNone, analysis.DeviationType)
				assert.Equal(t, types.SeverityNone, analysis.Severity)
			}
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		analysis, err := parseAnalysis(`{"completed_as_planned": false, "actual_action": "Applied cow dung", "is_deviation": true, "deviation_type": "fertilizer_change", "severity": "moderate", "impact_summary": "Substitution", "requires_agent_response": true}`)

		require.NoError(t, err)
		assert.False(t, analysis.CompletedAsPlanned)
		assert.Equal(t, types.DeviationFertilizerChange, analysis.DeviationType)
		assert.Equal(t, types.SeverityModerate, analysis.Severity)
	})

	t.Run("markdown fenced JSON", func(t *testing.T) {
		raw := "```json\n{\"completed_as_planned\": true, \"actual_action\": \"Applied urea\", \"is_deviation\": false, \"deviation_type\": \"none\", \"severity\": \"none\", \"impact_summary\": \"ok\", \"requires_agent_response\": false}\n```"

		analysis, err := parseAnalysis(raw)

		require.NoError(t, err)
		assert.True(t, analysis.CompletedAsPlanned)
	})

	t.Run("bare fence without language tag", func(t *testing.T) {
		raw := "```\n{\"completed_as_planned\": true, \"actual_action\": \"done\", \"is_deviation\": false, \"deviation_type\": \"none\", \"severity\": \"none\", \"impact_summary\": \"ok\", \"requires_agent_response\": false}\n```"

		_, err := parseAnalysis(raw)

		require.NoError(t, err)
	})

	t.Run("missing deviation type defaults to unknown", func(t *testing.T) {
		analysis, err := parseAnalysis(`{"completed_as_planned": false, "actual_action": "something else", "is_deviation": true, "severity": "minor", "impact_summary": "x", "requires_agent_response": false}`)

		require.NoError(t, err)
		assert.Equal(t, types.DeviationUnknown, analysis.DeviationType)
	})

	t.Run("rejects non-JSON", func(t *testing.T) {
		_, err := parseAnalysis("The farmer deviated from the plan.")
		require.Error(t, err)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		_, err := parseAnalysis(`{"completed_as_planned": true}`)
		require.Error(t, err)
	})
}

func TestImpactFor(t *testing.T) {
	tests := []struct {
		deviationType types.DeviationType
		severity      types.DeviationSeverity
		wantYield     int
		wantTimeline  int
	}{
		{types.DeviationFertilizerChange, types.SeverityModerate, -10, 3},
		{types.DeviationFertilizerChange, types.SeverityMajor, -20, 7},
		{types.DeviationDelay, types.SeverityMinor, -1, 1},
		{types.DeviationMethodChange, types.SeverityMajor, -12, 5},
		{types.DeviationQuantityChange, types.SeverityModerate, -7, 1},
		{types.DeviationUnknown, types.SeverityModerate, 0, 0},
		{types.DeviationDelay, types.SeverityNone, 0, 0},
	}

	for _, tt := range tests {
		impact := impactFor(tt.deviationType, tt.severity)
		assert.Equal(t, tt.wantYield, impact.EstimatedYieldChangePercent, "%s/%s yield", tt.deviationType, tt.severity)
		assert.Equal(t, tt.wantTimeline, impact.EstimatedTimelineChangeDays, "%s/%s timeline", tt.deviationType, tt.severity)
		assert.Equal(t, "low", impact.Confidence)
	}
}

func TestAnalyzeFeedback(t *testing.T) {
	params := types.AnalyzeFeedbackParams{
		PlannedAction:  "Apply 50kg urea fertilizer",
		FarmerResponse: "I used cow dung instead because urea was expensive",
	}

	t.Run("uses model analysis and attaches impact", func(t *testing.T) {
		llm := new(MockLLM)
		svc := newTestService(llm, new(MockFeedbackRepo), new(MockSeasonRepo))

		llm.On("Complete", mock.Anything, analysisSystemPrompt, mock.Anything).Return(
			`{"completed_as_planned": false, "actual_action": "Applied cow dung instead of urea", "is_deviation": true, "deviation_type": "fertilizer_change", "severity": "moderate", "impact_summary": "Substitution", "requires_agent_response": true}`, nil)

		result, err := svc.AnalyzeFeedback(context.Background(), params)

		require.NoError(t, err)
		assert.True(t, result.Analysis.IsDeviation)
		assert.Equal(t, types.DeviationFertilizerChange, result.Analysis.DeviationType)
		require.NotNil(t, result.Impact)
		assert.Equal(t, -10, result.Impact.EstimatedYieldChangePercent)
		assert.Equal(t, 3, result.Impact.EstimatedTimelineChangeDays)
		llm.AssertExpectations(t)
	})

	t.Run("falls back to keywords when model call fails", func(t *testing.T) {
		llm := new(MockLLM)
		svc := newTestService(llm, new(MockFeedbackRepo), new(MockSeasonRepo))

		llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("rate limited"))

		result, err := svc.AnalyzeFeedback(context.Background(), params)

		require.NoError(t, err)
		assert.True(t, result.Analysis.IsDeviation)
		assert.Equal(t, types.DeviationUnknown, result.Analysis.DeviationType)
		assert.Equal(t, types.SeverityModerate, result.Analysis.Severity)
	})

	t.Run("falls back to keywords when model answer is garbage", func(t *testing.T) {
		llm := new(MockLLM)
		svc := newTestService(llm, new(MockFeedbackRepo), new(MockSeasonRepo))

		llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("I think the farmer deviated.", nil)

		result, err := svc.AnalyzeFeedback(context.Background(), params)

		require.NoError(t, err)
		assert.True(t, result.Analysis.IsDeviation)
		assert.Equal(t, types.DeviationUnknown, result.Analysis.DeviationType)
	})

	t.Run("no impact when completed as planned", func(t *testing.T) {
		llm := new(MockLLM)
		svc := newTestService(llm, new(MockFeedbackRepo), new(MockSeasonRepo))

		llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(
			`{"completed_as_planned": true, "actual_action": "Applied 50kg urea", "is_deviation": false, "deviation_type": "none", "severity": "none", "impact_summary": "Task completed as planned", "requires_agent_response": false}`, nil)

		result, err := svc.AnalyzeFeedback(context.Background(), types.AnalyzeFeedbackParams{
			PlannedAction:  "Apply 50kg urea fertilizer",
			FarmerResponse: "I applied it yesterday",
		})

		require.NoError(t, err)
		assert.False(t, result.Analysis.IsDeviation)
		assert.Nil(t, result.Impact)
	})

	t.Run("caches identical analyses", func(t *testing.T) {
		llm := new(MockLLM)
		svc := newTestService(llm, new(MockFeedbackRepo), new(MockSeasonRepo))

		llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(
			`{"completed_as_planned": false, "actual_action": "cow dung", "is_deviation": true, "deviation_type": "fertilizer_change", "severity": "moderate", "impact_summary": "x", "requires_agent_response": true}`, nil).Once()

		first, err := svc.AnalyzeFeedback(context.Background(), params)
		require.NoError(t, err)

		second, err := svc.AnalyzeFeedback(context.Background(), params)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		llm.AssertExpectations(t)
	})

	t.Run("nil client always falls back", func(t *testing.T) {
		svc := newTestService(nil, new(MockFeedbackRepo), new(MockSeasonRepo))

		result, err := svc.AnalyzeFeedback(context.Background(), types.AnalyzeFeedbackParams{
			PlannedAction:  "Water plants 2 liters per day",
			FarmerResponse: "done this morning",
		})

		require.NoError(t, err)
		assert.True(t, result.Analysis.CompletedAsPlanned)
	})

	t.Run("rejects empty inputs", func(t *testing.T) {
		svc := newTestService(nil, new(MockFeedbackRepo), new(MockSeasonRepo))

		_, err := svc.AnalyzeFeedback(context.Background(), types.AnalyzeFeedbackParams{FarmerResponse: "done"})
		assert.ErrorIs(t, err, types.ErrBadRequest)

		_, err = svc.AnalyzeFeedback(context.Background(), types.AnalyzeFeedbackParams{PlannedAction: "water"})
		assert.ErrorIs(t, err, types.ErrBadRequest)
	})
}

func TestProcessTaskFeedback(t *testing.T) {
	response := "I used cow dung instead"
	task := &types.FarmTask{
		ID:             uuid.New(),
		SeasonID:       uuid.New(),
		PlannedAction:  "Apply 50kg urea fertilizer",
		FarmerResponse: &response,
	}

	t.Run("persists deviation record", func(t *testing.T) {
		llm := new(MockLLM)
		repo := new(MockFeedbackRepo)
		svc := newTestService(llm, repo, new(MockSeasonRepo))

		llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(
			`{"completed_as_planned": false, "actual_action": "Applied cow dung", "is_deviation": true, "deviation_type": "fertilizer_change", "severity": "moderate", "impact_summary": "Substitution", "requires_agent_response": true}`, nil)
		repo.On("CreateDeviation", mock.Anything, mock.MatchedBy(func(r *types.DeviationRecord) bool {
			return r.SeasonID == task.SeasonID && r.TaskID != nil && *r.TaskID == task.ID && r.Analysis.IsDeviation
		})).Return(&types.DeviationRecord{ID: uuid.New()}, nil)

		result, err := svc.ProcessTaskFeedback(context.Background(), task, "rice")

		require.NoError(t, err)
		assert.True(t, result.Analysis.IsDeviation)
		repo.AssertExpectations(t)
	})

	t.Run("no record when completed as planned", func(t *testing.T) {
		llm := new(MockLLM)
		repo := new(MockFeedbackRepo)
		svc := newTestService(llm, repo, new(MockSeasonRepo))

		done := "applied it yesterday"
		planned := &types.FarmTask{
			ID:             uuid.New(),
			SeasonID:       uuid.New(),
			PlannedAction:  "Apply 50kg urea fertilizer",
			FarmerResponse: &done,
		}

		llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(
			`{"completed_as_planned": true, "actual_action": "Applied 50kg urea", "is_deviation": false, "deviation_type": "none", "severity": "none", "impact_summary": "ok", "requires_agent_response": false}`, nil)

		result, err := svc.ProcessTaskFeedback(context.Background(), planned, "rice")

		require.NoError(t, err)
		assert.False(t, result.Analysis.IsDeviation)
		repo.AssertNotCalled(t, "CreateDeviation", mock.Anything, mock.Anything)
	})

	t.Run("rejects task without farmer response", func(t *testing.T) {
		svc := newTestService(nil, new(MockFeedbackRepo), new(MockSeasonRepo))

		_, err := svc.ProcessTaskFeedback(context.Background(), &types.FarmTask{ID: uuid.New()}, "rice")

		assert.ErrorIs(t, err, types.ErrBadRequest)
	})

	t.Run("attaches adaptation guidance when the analysis asks for it", func(t *testing.T) {
		llm := new(MockLLM)
		repo := new(MockFeedbackRepo)
		advisor := new(MockAdvisor)
		svc := newTestService(llm, repo, new(MockSeasonRepo))
		svc.advisor = advisor

		llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(
			`{"completed_as_planned": false, "actual_action": "Applied cow dung", "is_deviation": true, "deviation_type": "fertilizer_change", "severity": "moderate", "impact_summary": "Substitution", "requires_agent_response": true}`, nil)
		repo.On("CreateDeviation", mock.Anything, mock.Anything).Return(&types.DeviationRecord{ID: uuid.New()}, nil)
		advisor.On("GenerateContent", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "DEVIATION DETECTED in rice crop plan") &&
				strings.Contains(prompt, "Apply 50kg urea fertilizer")
		}), mock.Anything).Return("Supplement with 25kg urea next week to compensate.\n", nil)

		result, err := svc.ProcessTaskFeedback(context.Background(), task, "rice")

		require.NoError(t, err)
		assert.Equal(t, "Supplement with 25kg urea next week to compensate.", result.Advice)
		advisor.AssertExpectations(t)

		// The cached analysis stays advice-free.
		cached, err := svc.AnalyzeFeedback(context.Background(), types.AnalyzeFeedbackParams{
			PlannedAction:  task.PlannedAction,
			FarmerResponse: *task.FarmerResponse,
		})
		require.NoError(t, err)
		assert.Empty(t, cached.Advice)
	})

	t.Run("advisory failure still returns the analysis", func(t *testing.T) {
		llm := new(MockLLM)
		repo := new(MockFeedbackRepo)
		advisor := new(MockAdvisor)
		svc := newTestService(llm, repo, new(MockSeasonRepo))
		svc.advisor = advisor

		llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(
			`{"completed_as_planned": false, "actual_action": "Applied cow dung", "is_deviation": true, "deviation_type": "fertilizer_change", "severity": "moderate", "impact_summary": "Substitution", "requires_agent_response": true}`, nil)
		repo.On("CreateDeviation", mock.Anything, mock.Anything).Return(&types.DeviationRecord{ID: uuid.New()}, nil)
		advisor.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

		result, err := svc.ProcessTaskFeedback(context.Background(), task, "rice")

		require.NoError(t, err)
		assert.True(t, result.Analysis.IsDeviation)
		assert.Empty(t, result.Advice)
	})

	t.Run("no advisor means no guidance", func(t *testing.T) {
		llm := new(MockLLM)
		repo := new(MockFeedbackRepo)
		svc := newTestService(llm, repo, new(MockSeasonRepo))

		llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(
			`{"completed_as_planned": false, "actual_action": "Applied cow dung", "is_deviation": true, "deviation_type": "fertilizer_change", "severity": "moderate", "impact_summary": "Substitution", "requires_agent_response": true}`, nil)
		repo.On("CreateDeviation", mock.Anything, mock.Anything).Return(&types.DeviationRecord{ID: uuid.New()}, nil)

		result, err := svc.ProcessTaskFeedback(context.Background(), task, "rice")

		require.NoError(t, err)
		assert.Empty(t, result.Advice)
	})
}

func TestAdaptationPrompt(t *testing.T) {
	taskID := uuid.New()
	record := &types.DeviationRecord{
		SeasonID:       uuid.New(),
		TaskID:         &taskID,
		PlannedAction:  "Apply 50kg urea fertilizer",
		FarmerResponse: "I used cow dung instead",
		Analysis: types.FeedbackAnalysis{
			ActualAction:  "Applied cow dung instead of urea",
			DeviationType: types.DeviationFertilizerChange,
			Severity:      types.SeverityModerate,
			ImpactSummary: "Lower nitrogen content but improves soil health",
		},
	}

	prompt := AdaptationPrompt(record, "Weekly fertilization schedule", "rice")

	assert.Contains(t, prompt, "DEVIATION DETECTED in rice crop plan")
	assert.Contains(t, prompt, "PLANNED ACTION: Apply 50kg urea fertilizer")
	assert.Contains(t, prompt, "ACTUAL ACTION: Applied cow dung instead of urea")
	assert.Contains(t, prompt, "DEVIATION TYPE: fertilizer_change")
	assert.Contains(t, prompt, "SEVERITY: moderate")
	assert.Contains(t, prompt, "Weekly fertilization schedule")
}

func TestListDeviations(t *testing.T) {
	userID := uuid.New()
	seasonID := uuid.New()

	t.Run("returns records for owned season", func(t *testing.T) {
		repo := new(MockFeedbackRepo)
		seasonRepo := new(MockSeasonRepo)
		svc := newTestService(nil, repo, seasonRepo)

		seasonRepo.On("Get", mock.Anything, seasonID).Return(&types.CropSeason{ID: seasonID, UserID: userID}, nil)
		repo.On("ListBySeason", mock.Anything, seasonID).Return([]types.DeviationRecord{{ID: uuid.New()}}, nil)

		records, err := svc.ListDeviations(context.Background(), userID, seasonID)

		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("forbids foreign season", func(t *testing.T) {
		repo := new(MockFeedbackRepo)
		seasonRepo := new(MockSeasonRepo)
		svc := newTestService(nil, repo, seasonRepo)

		seasonRepo.On("Get", mock.Anything, seasonID).Return(&types.CropSeason{ID: seasonID, UserID: uuid.New()}, nil)

		_, err := svc.ListDeviations(context.Background(), userID, seasonID)

		assert.ErrorIs(t, err, types.ErrForbidden)
		repo.AssertNotCalled(t, "ListBySeason", mock.Anything, mock.Anything)
	})
}
