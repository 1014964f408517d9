package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/agrimind/farm-assist/app/observability/metrics"
	"github.com/agrimind/farm-assist/internal/api/season"
	"github.com/agrimind/farm-assist/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// LLMClient is the completion surface the analysis needs. Satisfied by
// generativeAI.GroqClient.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// Advisor produces free-form adaptation guidance for recorded deviations.
// Satisfied by generativeAI.AIClient.
type Advisor interface {
	GenerateContent(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error)
}

// Service interprets farmer reports against planned actions and records the
// deviations it finds.
type Service interface {
	AnalyzeFeedback(ctx context.Context, params types.AnalyzeFeedbackParams) (*types.FeedbackResult, error)
	ProcessTaskFeedback(ctx context.Context, task *types.FarmTask, cropType string) (*types.FeedbackResult, error)
	ListDeviations(ctx context.Context, userID, seasonID uuid.UUID) ([]types.DeviationRecord, error)
}

type ServiceImpl struct {
	logger       *slog.Logger
	llm          LLMClient
	advisor      Advisor
	feedbackRepo Repository
	seasonRepo   season.Repository
	cache        *cache.Cache
}

// NewFeedbackService creates the feedback service. Identical planned/response
// pairs within cacheTTL are served from cache instead of re-calling the model.
// The advisor is optional; without one, deviations are recorded but no
// adaptation guidance is generated.
func NewFeedbackService(llm LLMClient, advisor Advisor, feedbackRepo Repository, seasonRepo season.Repository, cacheTTL time.Duration, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:       logger,
		llm:          llm,
		advisor:      advisor,
		feedbackRepo: feedbackRepo,
		seasonRepo:   seasonRepo,
		cache:        cache.New(cacheTTL, 10*time.Minute),
	}
}

func analysisCacheKey(params types.AnalyzeFeedbackParams) string {
	h := sha256.Sum256([]byte(params.PlannedAction + "\x00" + params.FarmerResponse + "\x00" + params.TaskDescription))
	return "feedback-analysis:" + hex.EncodeToString(h[:])
}

// AnalyzeFeedback interprets a farmer's report. It asks the model first and
// falls back to keyword matching when the model call or its JSON cannot be
// used, so the caller always gets an analysis.
func (s *ServiceImpl) AnalyzeFeedback(ctx context.Context, params types.AnalyzeFeedbackParams) (*types.FeedbackResult, error) {
	ctx, span := otel.Tracer("FeedbackService").Start(ctx, "AnalyzeFeedback")
	defer span.End()

	l := s.logger.With(slog.String("method", "AnalyzeFeedback"))

	if strings.TrimSpace(params.PlannedAction) == "" {
		return nil, fmt.Errorf("planned action is required: %w", types.ErrBadRequest)
	}
	if strings.TrimSpace(params.FarmerResponse) == "" {
		return nil, fmt.Errorf("farmer response is required: %w", types.ErrBadRequest)
	}

	cacheKey := analysisCacheKey(params)
	if cached, found := s.cache.Get(cacheKey); found {
		if result, ok := cached.(*types.FeedbackResult); ok {
			span.SetAttributes(attribute.Bool("analysis.cache_hit", true))
			span.SetStatus(codes.Ok, "Analysis served from cache")
			return result, nil
		}
	}

	metrics.Get().FeedbackAnalysesTotal.Add(ctx, 1)

	analysis := s.modelAnalysis(ctx, l, params)
	if analysis == nil {
		metrics.Get().FeedbackFallbacksTotal.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("analysis.fallback", true))
		analysis = keywordAnalysis(params.PlannedAction, params.FarmerResponse)
	}

	result := &types.FeedbackResult{Analysis: *analysis}
	if analysis.IsDeviation {
		impact := impactFor(analysis.DeviationType, analysis.Severity)
		result.Impact = &impact
	}

	s.cache.Set(cacheKey, result, cache.DefaultExpiration)

	span.SetAttributes(
		attribute.Bool("analysis.is_deviation", analysis.IsDeviation),
		attribute.String("analysis.severity", string(analysis.Severity)),
	)
	span.SetStatus(codes.Ok, "Feedback analyzed")
	return result, nil
}

// modelAnalysis asks the LLM and returns nil when the answer is unusable.
func (s *ServiceImpl) modelAnalysis(ctx context.Context, l *slog.Logger, params types.AnalyzeFeedbackParams) *types.FeedbackAnalysis {
	if s.llm == nil {
		return nil
	}

	prompt := analysisPrompt(params.PlannedAction, params.FarmerResponse, params.TaskDescription)
	raw, err := s.llm.Complete(ctx, analysisSystemPrompt, prompt)
	if err != nil {
		l.WarnContext(ctx, "LLM analysis call failed, using keyword fallback",
			slog.String("model", s.llm.Model()), slog.Any("error", err))
		return nil
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		l.WarnContext(ctx, "LLM analysis response unusable, using keyword fallback",
			slog.String("model", s.llm.Model()), slog.Any("error", err))
		return nil
	}
	return analysis
}

var (
	completionKeywords = []string{"done", "completed", "did it", "finished", "applied", "yes"}
	deviationKeywords  = []string{"instead", "different", "couldn't", "forgot", "didn't", "other"}
)

// keywordAnalysis is the degraded-mode interpretation: completion words with
// no deviation words count as done-as-planned, anything else is flagged for
// review.
func keywordAnalysis(plannedAction, farmerResponse string) *types.FeedbackAnalysis {
	lower := strings.ToLower(farmerResponse)

	containsAny := func(keywords []string) bool {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}

	if containsAny(completionKeywords) && !containsAny(deviationKeywords) {
		return &types.FeedbackAnalysis{
			CompletedAsPlanned:    true,
			ActualAction:          plannedAction,
			IsDeviation:           false,
			DeviationType:         types.DeviationNone,
			Severity:              types.SeverityNone,
			ImpactSummary:         "Task completed as planned",
			RequiresAgentResponse: false,
		}
	}
	return &types.FeedbackAnalysis{
		CompletedAsPlanned:    false,
		ActualAction:          farmerResponse,
		IsDeviation:           true,
		DeviationType:         types.DeviationUnknown,
		Severity:              types.SeverityModerate,
		ImpactSummary:         "Farmer response indicates possible deviation - manual review needed",
		RequiresAgentResponse: true,
	}
}

// ProcessTaskFeedback analyzes a completed task's farmer response and, when a
// deviation is found, persists a deviation record for the season.
func (s *ServiceImpl) ProcessTaskFeedback(ctx context.Context, task *types.FarmTask, cropType string) (*types.FeedbackResult, error) {
	ctx, span := otel.Tracer("FeedbackService").Start(ctx, "ProcessTaskFeedback", trace.WithAttributes(
		attribute.String("task.id", task.ID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ProcessTaskFeedback"), slog.String("taskID", task.ID.String()))

	if task.FarmerResponse == nil || strings.TrimSpace(*task.FarmerResponse) == "" {
		return nil, fmt.Errorf("task has no farmer response to analyze: %w", types.ErrBadRequest)
	}

	result, err := s.AnalyzeFeedback(ctx, types.AnalyzeFeedbackParams{
		PlannedAction:   task.PlannedAction,
		FarmerResponse:  *task.FarmerResponse,
		TaskDescription: task.Description,
		CropType:        cropType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Analysis failed")
		return nil, err
	}

	if result.Analysis.IsDeviation {
		taskID := task.ID
		record := &types.DeviationRecord{
			SeasonID:       task.SeasonID,
			TaskID:         &taskID,
			PlannedAction:  task.PlannedAction,
			FarmerResponse: *task.FarmerResponse,
			Analysis:       result.Analysis,
			Impact:         result.Impact,
		}
		if _, err := s.feedbackRepo.CreateDeviation(ctx, record); err != nil {
			// The analysis itself succeeded; losing the record is worth a
			// log line but not a failed completion.
			l.ErrorContext(ctx, "Failed to persist deviation record", slog.Any("error", err))
			span.RecordError(err)
		} else {
			l.InfoContext(ctx, "Deviation recorded",
				slog.String("deviation_type", string(result.Analysis.DeviationType)),
				slog.String("severity", string(result.Analysis.Severity)))
		}

		if result.Analysis.RequiresAgentResponse {
			if advice := s.adaptationAdvice(ctx, l, record, task.Description, cropType); advice != "" {
				// Copy before attaching advice: the underlying result may be
				// shared with the analysis cache.
				withAdvice := *result
				withAdvice.Advice = advice
				result = &withAdvice
			}
		}
	}

	span.SetStatus(codes.Ok, "Task feedback processed")
	return result, nil
}

// adaptationAdvice asks the assistant model how to adjust the plan for a
// recorded deviation. Best effort: no advisor or a failed call just means the
// caller gets the analysis without guidance.
func (s *ServiceImpl) adaptationAdvice(ctx context.Context, l *slog.Logger, record *types.DeviationRecord, currentPlan, cropType string) string {
	if s.advisor == nil {
		return ""
	}

	start := time.Now()
	advice, err := s.advisor.GenerateContent(ctx, AdaptationPrompt(record, currentPlan, cropType), nil)
	metrics.Get().LLMCallDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		l.WarnContext(ctx, "Advisory call failed, returning analysis without guidance", slog.Any("error", err))
		return ""
	}
	return strings.TrimSpace(advice)
}

func (s *ServiceImpl) ListDeviations(ctx context.Context, userID, seasonID uuid.UUID) ([]types.DeviationRecord, error) {
	ctx, span := otel.Tracer("FeedbackService").Start(ctx, "ListDeviations", trace.WithAttributes(
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	sn, err := s.seasonRepo.Get(ctx, seasonID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Season lookup failed")
		return nil, err
	}
	if sn.UserID != userID {
		return nil, fmt.Errorf("season %s does not belong to user: %w", seasonID, types.ErrForbidden)
	}

	records, err := s.feedbackRepo.ListBySeason(ctx, seasonID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Deviation listing failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Deviations listed")
	return records, nil
}
