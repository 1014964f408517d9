package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	FeedbackAnalysesTotal  metric.Int64Counter
	FeedbackFallbacksTotal metric.Int64Counter
	LLMCallDurationSeconds metric.Float64Histogram
	PhaseTransitionsTotal  metric.Int64Counter
	DbQueryErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once. It gets the
// Meter from the globally configured MeterProvider, so the tracer package must
// be initialized first.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("FarmAssistAPI")
		var err error
		m := &AppMetrics{}

		m.FeedbackAnalysesTotal, err = meter.Int64Counter(
			"feedback_analyses_total",
			metric.WithDescription("Total number of farmer feedback analyses performed"),
			metric.WithUnit("{analysis}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feedback_analyses_total: %v", err)
		}

		m.FeedbackFallbacksTotal, err = meter.Int64Counter(
			"feedback_fallbacks_total",
			metric.WithDescription("Total number of analyses that fell back to keyword matching"),
			metric.WithUnit("{analysis}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feedback_fallbacks_total: %v", err)
		}

		m.LLMCallDurationSeconds, err = meter.Float64Histogram(
			"llm_call_duration_seconds",
			metric.WithDescription("Duration of external LLM calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_call_duration_seconds: %v", err)
		}

		m.PhaseTransitionsTotal, err = meter.Int64Counter(
			"phase_transitions_total",
			metric.WithDescription("Total number of crop season phase transitions"),
			metric.WithUnit("{transition}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create phase_transitions_total: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
