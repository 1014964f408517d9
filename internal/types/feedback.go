package types

import (
	"time"

	"github.com/google/uuid"
)

// DeviationType classifies how the farmer's action differed from the plan.
type DeviationType string

const (
	DeviationNone             DeviationType = "none"
	DeviationFertilizerChange DeviationType = "fertilizer_change"
	DeviationDelay            DeviationType = "delay"
	DeviationMethodChange     DeviationType = "method_change"
	DeviationQuantityChange   DeviationType = "quantity_change"
	DeviationUnknown          DeviationType = "unknown"
)

// DeviationSeverity grades a deviation.
type DeviationSeverity string

const (
	SeverityNone     DeviationSeverity = "none"
	SeverityMinor    DeviationSeverity = "minor"
	SeverityModerate DeviationSeverity = "moderate"
	SeverityMajor    DeviationSeverity = "major"
)

// FeedbackAnalysis is the structured result of interpreting a farmer's
// response against the planned action. The JSON shape mirrors what the LLM is
// instructed to return, so the model output unmarshals directly into it.
type FeedbackAnalysis struct {
	CompletedAsPlanned    bool              `json:"completed_as_planned"`
	ActualAction          string            `json:"actual_action"`
	IsDeviation           bool              `json:"is_deviation"`
	DeviationType         DeviationType     `json:"deviation_type"`
	Severity              DeviationSeverity `json:"severity"`
	ImpactSummary         string            `json:"impact_summary"`
	RequiresAgentResponse bool              `json:"requires_agent_response"`
}

// ImpactMetrics is a rough, table-driven estimate of what a deviation costs.
type ImpactMetrics struct {
	EstimatedYieldChangePercent int    `json:"estimated_yield_change_percent"`
	EstimatedTimelineChangeDays int    `json:"estimated_timeline_change_days"`
	Confidence                  string `json:"confidence"`
}

// AnalyzeFeedbackParams is the payload for ad-hoc feedback analysis.
type AnalyzeFeedbackParams struct {
	PlannedAction   string `json:"planned_action"`
	FarmerResponse  string `json:"farmer_response"`
	TaskDescription string `json:"task_description,omitempty"`
	CropType        string `json:"crop_type,omitempty"`
}

// FeedbackResult bundles the analysis with impact metrics (present only when
// the analysis found a deviation) and, when the deviation called for an agent
// response, the model's adaptation guidance.
type FeedbackResult struct {
	Analysis FeedbackAnalysis `json:"analysis"`
	Impact   *ImpactMetrics   `json:"impact,omitempty"`
	Advice   string           `json:"advice,omitempty"`
}

// DeviationRecord is a persisted deviation detected from task feedback.
type DeviationRecord struct {
	ID             uuid.UUID        `json:"id"`
	SeasonID       uuid.UUID        `json:"season_id"`
	TaskID         *uuid.UUID       `json:"task_id,omitempty"`
	PlannedAction  string           `json:"planned_action"`
	FarmerResponse string           `json:"farmer_response"`
	Analysis       FeedbackAnalysis `json:"analysis"`
	Impact         *ImpactMetrics   `json:"impact,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
