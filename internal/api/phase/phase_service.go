package phase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/agrimind/farm-assist/app/observability/metrics"
	"github.com/agrimind/farm-assist/internal/api/season"
	"github.com/agrimind/farm-assist/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// TaskLister is the slice of the task repository the phase service needs to
// judge harvest readiness.
type TaskLister interface {
	PendingTasks(ctx context.Context, seasonID uuid.UUID) ([]types.FarmTask, error)
}

// Service manages crop season lifecycle phases.
type Service interface {
	// CurrentPhase determines the phase for a season: a manual override wins,
	// otherwise it is derived from elapsed days vs the crop duration table.
	CurrentPhase(ctx context.Context, seasonID uuid.UUID) (types.CropPhase, error)

	// UpdatePhase manually overrides the phase for a season.
	UpdatePhase(ctx context.Context, seasonID uuid.UUID, newPhase types.CropPhase) error

	// HarvestReadiness checks whether a season can move from growth to harvest.
	HarvestReadiness(ctx context.Context, seasonID uuid.UUID) (*types.HarvestReadiness, error)

	// AutoTransition advances a season one phase if its conditions are met and
	// returns the new phase, or nil when no transition occurred.
	AutoTransition(ctx context.Context, seasonID uuid.UUID) (*types.CropPhase, error)

	// Summary aggregates phase state for a season.
	Summary(ctx context.Context, seasonID uuid.UUID) (*types.PhaseSummary, error)

	// Recommendations returns phase-appropriate guidance for the farmer.
	Recommendations(ctx context.Context, seasonID uuid.UUID) ([]string, error)
}

type ServiceImpl struct {
	logger     *slog.Logger
	seasonRepo season.Repository
	taskRepo   TaskLister

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewPhaseService creates a new phase service instance.
func NewPhaseService(seasonRepo season.Repository, taskRepo TaskLister, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		seasonRepo: seasonRepo,
		taskRepo:   taskRepo,
		now:        time.Now,
	}
}

// daysElapsed floors toward negative infinity so a start date a few hours in
// the future still counts as a negative day.
func daysElapsed(now, start time.Time) int {
	return int(math.Floor(now.Sub(start).Hours() / 24))
}

// derivePhase computes the date-derived phase for a season at a given moment.
func derivePhase(s *types.CropSeason, now time.Time) types.CropPhase {
	if s.CurrentPhase != nil {
		return *s.CurrentPhase
	}
	if s.StartDate == nil {
		return types.PhasePreSowing
	}

	days := daysElapsed(now, *s.StartDate)
	d := durationFor(s.CropType)

	switch {
	case days < 0:
		return types.PhasePreSowing
	case days < d.GrowthDays:
		return types.PhaseGrowth
	case days < d.GrowthDays+d.HarvestWindow:
		return types.PhaseHarvest
	default:
		return types.PhaseCompleted
	}
}

func (s *ServiceImpl) CurrentPhase(ctx context.Context, seasonID uuid.UUID) (types.CropPhase, error) {
	ctx, span := otel.Tracer("PhaseService").Start(ctx, "CurrentPhase", trace.WithAttributes(
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CurrentPhase"), slog.String("seasonID", seasonID.String()))

	sn, err := s.seasonRepo.Get(ctx, seasonID)
	if err != nil {
		// A missing season reads as pre_sowing rather than an error.
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Ok, "Season not found, defaulting to pre_sowing")
			return types.PhasePreSowing, nil
		}
		l.ErrorContext(ctx, "Failed to fetch season for phase", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch season")
		return "", fmt.Errorf("error determining current phase: %w", err)
	}

	phase := derivePhase(sn, s.now())
	span.SetAttributes(attribute.String("season.phase", string(phase)))
	span.SetStatus(codes.Ok, "Phase determined")
	return phase, nil
}

func (s *ServiceImpl) UpdatePhase(ctx context.Context, seasonID uuid.UUID, newPhase types.CropPhase) error {
	ctx, span := otel.Tracer("PhaseService").Start(ctx, "UpdatePhase", trace.WithAttributes(
		attribute.String("season.id", seasonID.String()),
		attribute.String("season.phase", string(newPhase)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdatePhase"), slog.String("seasonID", seasonID.String()))

	if !newPhase.IsValid() {
		span.SetStatus(codes.Error, "Invalid phase")
		return fmt.Errorf("invalid phase %q: %w", newPhase, types.ErrBadRequest)
	}

	if err := s.seasonRepo.SetPhase(ctx, seasonID, newPhase, s.now()); err != nil {
		l.ErrorContext(ctx, "Failed to set phase", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to set phase")
		return fmt.Errorf("error updating phase: %w", err)
	}

	metrics.Get().PhaseTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", string(newPhase)),
	))

	l.InfoContext(ctx, "Phase updated", slog.String("phase", string(newPhase)))
	span.SetStatus(codes.Ok, "Phase updated")
	return nil
}

func (s *ServiceImpl) HarvestReadiness(ctx context.Context, seasonID uuid.UUID) (*types.HarvestReadiness, error) {
	ctx, span := otel.Tracer("PhaseService").Start(ctx, "HarvestReadiness", trace.WithAttributes(
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "HarvestReadiness"), slog.String("seasonID", seasonID.String()))

	// Season and pending tasks are independent lookups.
	var sn *types.CropSeason
	var pending []types.FarmTask
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sn, err = s.seasonRepo.Get(gctx, seasonID)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.taskRepo.PendingTasks(gctx, seasonID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Ok, "Season not found")
			return &types.HarvestReadiness{
				Ready:          false,
				Reasons:        []string{"Season not found"},
				Recommendation: "Continue growth phase",
			}, nil
		}
		l.ErrorContext(ctx, "Failed to gather readiness inputs", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to gather readiness inputs")
		return nil, fmt.Errorf("error checking harvest readiness: %w", err)
	}

	ready := true
	var reasons []string

	if sn.StartDate != nil {
		days := daysElapsed(s.now(), *sn.StartDate)
		minDays := durationFor(sn.CropType).GrowthDays

		// 90% of the growth period is close enough to harvest.
		if float64(days) < float64(minDays)*0.9 {
			ready = false
			reasons = append(reasons, fmt.Sprintf("Crop too young (needs ~%d more days)", minDays-days))
		} else {
			reasons = append(reasons, fmt.Sprintf("Crop age: %d days (✓)", days))
		}
	} else {
		ready = false
		reasons = append(reasons, "Start date not set")
	}

	if sn.HealthScore != nil {
		health := *sn.HealthScore
		if health < 50 {
			ready = false
			reasons = append(reasons, fmt.Sprintf("Health too low: %d/100", health))
		} else {
			reasons = append(reasons, fmt.Sprintf("Health: %d/100 (✓)", health))
		}
	}

	var criticalCount int
	for _, t := range pending {
		if t.Priority == types.PriorityCritical {
			criticalCount++
		}
	}
	if criticalCount > 0 {
		ready = false
		reasons = append(reasons, fmt.Sprintf("%d critical tasks pending", criticalCount))
	} else {
		reasons = append(reasons, "No critical tasks pending (✓)")
	}

	recommendation := "Continue growth phase"
	if ready {
		recommendation = "Can transition to harvest"
	}

	span.SetAttributes(attribute.Bool("harvest.ready", ready))
	span.SetStatus(codes.Ok, "Readiness computed")
	return &types.HarvestReadiness{
		Ready:          ready,
		Reasons:        reasons,
		Recommendation: recommendation,
	}, nil
}

func (s *ServiceImpl) AutoTransition(ctx context.Context, seasonID uuid.UUID) (*types.CropPhase, error) {
	ctx, span := otel.Tracer("PhaseService").Start(ctx, "AutoTransition", trace.WithAttributes(
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "AutoTransition"), slog.String("seasonID", seasonID.String()))

	current, err := s.CurrentPhase(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	transition := func(next types.CropPhase) (*types.CropPhase, error) {
		if err := s.UpdatePhase(ctx, seasonID, next); err != nil {
			return nil, err
		}
		l.InfoContext(ctx, "Auto phase transition",
			slog.String("from", string(current)), slog.String("to", string(next)))
		span.SetStatus(codes.Ok, "Transitioned")
		return &next, nil
	}

	switch current {
	case types.PhasePreSowing:
		sn, err := s.seasonRepo.Get(ctx, seasonID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				span.SetStatus(codes.Ok, "Season not found")
				return nil, nil
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch season")
			return nil, fmt.Errorf("error auto-transitioning phase: %w", err)
		}
		if sn.StartDate != nil {
			return transition(types.PhaseGrowth)
		}

	case types.PhaseGrowth:
		readiness, err := s.HarvestReadiness(ctx, seasonID)
		if err != nil {
			return nil, err
		}
		if readiness.Ready {
			return transition(types.PhaseHarvest)
		}

	case types.PhaseHarvest:
		sn, err := s.seasonRepo.Get(ctx, seasonID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch season")
			return nil, fmt.Errorf("error auto-transitioning phase: %w", err)
		}
		if sn.ActualHarvestDate != nil {
			return transition(types.PhaseCompleted)
		}
	}

	span.SetStatus(codes.Ok, "No transition")
	return nil, nil
}

func (s *ServiceImpl) Summary(ctx context.Context, seasonID uuid.UUID) (*types.PhaseSummary, error) {
	ctx, span := otel.Tracer("PhaseService").Start(ctx, "Summary", trace.WithAttributes(
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Summary"), slog.String("seasonID", seasonID.String()))

	sn, err := s.seasonRepo.Get(ctx, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch season for summary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch season")
		return nil, fmt.Errorf("error building phase summary: %w", err)
	}

	currentPhase := derivePhase(sn, s.now())

	summary := &types.PhaseSummary{
		SeasonID:            seasonID,
		CurrentPhase:        currentPhase,
		CropType:            sn.CropType,
		ExpectedHarvestDate: sn.ExpectedHarvestDate,
	}

	if sn.StartDate != nil {
		days := daysElapsed(s.now(), *sn.StartDate)
		remaining := durationFor(sn.CropType).GrowthDays - days
		if remaining < 0 {
			remaining = 0
		}
		summary.DaysElapsed = &days
		summary.ExpectedHarvestInDays = &remaining
		summary.StartDate = sn.StartDate
	}

	if currentPhase == types.PhaseGrowth {
		readiness, err := s.HarvestReadiness(ctx, seasonID)
		if err != nil {
			return nil, err
		}
		summary.HarvestReadiness = readiness
	}

	span.SetStatus(codes.Ok, "Summary built")
	return summary, nil
}

func (s *ServiceImpl) Recommendations(ctx context.Context, seasonID uuid.UUID) ([]string, error) {
	ctx, span := otel.Tracer("PhaseService").Start(ctx, "Recommendations", trace.WithAttributes(
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	current, err := s.CurrentPhase(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	var recommendations []string

	switch current {
	case types.PhasePreSowing:
		recommendations = []string{
			"Choose the right crop for your soil and climate",
			"Check weather forecasts for the next 6 months",
			"Compare market prices for different crops",
			"Prepare your field (plowing, leveling)",
			"Source quality seeds from reliable vendors",
		}

	case types.PhaseGrowth:
		sn, err := s.seasonRepo.Get(ctx, seasonID)
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch season")
			return nil, fmt.Errorf("error building recommendations: %w", err)
		}
		if sn != nil && sn.StartDate != nil {
			days := daysElapsed(s.now(), *sn.StartDate)
			switch {
			case days < 20:
				recommendations = []string{
					"Monitor germination and early growth",
					"Ensure adequate watering",
					"Watch for early pests and diseases",
					"Apply first fertilization as scheduled",
				}
			case days < 60:
				recommendations = []string{
					"Monitor plant health daily",
					"Check for nutrient deficiencies",
					"Control weeds regularly",
					"Adjust watering based on weather",
				}
			default:
				recommendations = []string{
					"Watch for harvest readiness signs",
					"Prepare for harvest (equipment, labor)",
					"Check market prices",
					"Plan post-harvest storage",
				}
			}
		}

	case types.PhaseHarvest:
		recommendations = []string{
			"Harvest at optimal time (early morning usually best)",
			"Handle crops carefully to avoid damage",
			"Dry and store properly",
			"Compare prices at different markets",
			"Sell when prices are favorable",
		}

	case types.PhaseCompleted:
		recommendations = []string{
			"Analyze what went well and what could improve",
			"Prepare soil for next crop (add organic matter)",
			"Consider crop rotation",
			"Plan next season based on this season's learnings",
		}
	}

	span.SetStatus(codes.Ok, "Recommendations built")
	return recommendations, nil
}
