package season

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agrimind/farm-assist/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service defines the business logic contract for crop seasons. All lookups
// are owner-scoped: a caller only sees their own seasons.
type Service interface {
	CreateSeason(ctx context.Context, userID uuid.UUID, params types.CreateSeasonParams) (*types.CropSeason, error)
	GetSeason(ctx context.Context, userID, seasonID uuid.UUID) (*types.CropSeason, error)
	ListSeasons(ctx context.Context, userID uuid.UUID) ([]types.CropSeason, error)
	UpdateSeason(ctx context.Context, userID, seasonID uuid.UUID, params types.UpdateSeasonParams) error
	DeleteSeason(ctx context.Context, userID, seasonID uuid.UUID) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
}

// NewSeasonService creates a new season service instance.
func NewSeasonService(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *ServiceImpl) CreateSeason(ctx context.Context, userID uuid.UUID, params types.CreateSeasonParams) (*types.CropSeason, error) {
	ctx, span := otel.Tracer("SeasonService").Start(ctx, "CreateSeason", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("crop.type", params.CropType),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateSeason"), slog.String("userID", userID.String()))

	if params.CropType == "" {
		span.SetStatus(codes.Error, "Missing crop type")
		return nil, fmt.Errorf("crop_type is required: %w", types.ErrBadRequest)
	}

	created, err := s.repo.Create(ctx, userID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create crop season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create crop season")
		return nil, fmt.Errorf("error creating crop season: %w", err)
	}

	l.InfoContext(ctx, "Crop season created", slog.String("seasonID", created.ID.String()))
	span.SetStatus(codes.Ok, "Season created")
	return created, nil
}

func (s *ServiceImpl) GetSeason(ctx context.Context, userID, seasonID uuid.UUID) (*types.CropSeason, error) {
	ctx, span := otel.Tracer("SeasonService").Start(ctx, "GetSeason", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "GetSeason"), slog.String("seasonID", seasonID.String()))

	season, err := s.repo.Get(ctx, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch crop season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch crop season")
		return nil, fmt.Errorf("error fetching crop season: %w", err)
	}
	if season.UserID != userID {
		l.WarnContext(ctx, "Season does not belong to user")
		span.SetStatus(codes.Error, "Forbidden")
		return nil, fmt.Errorf("season %s does not belong to user: %w", seasonID, types.ErrForbidden)
	}

	span.SetStatus(codes.Ok, "Season fetched")
	return season, nil
}

func (s *ServiceImpl) ListSeasons(ctx context.Context, userID uuid.UUID) ([]types.CropSeason, error) {
	ctx, span := otel.Tracer("SeasonService").Start(ctx, "ListSeasons", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ListSeasons"), slog.String("userID", userID.String()))

	seasons, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list crop seasons", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list crop seasons")
		return nil, fmt.Errorf("error listing crop seasons: %w", err)
	}

	span.SetStatus(codes.Ok, "Seasons listed")
	return seasons, nil
}

func (s *ServiceImpl) UpdateSeason(ctx context.Context, userID, seasonID uuid.UUID, params types.UpdateSeasonParams) error {
	ctx, span := otel.Tracer("SeasonService").Start(ctx, "UpdateSeason", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateSeason"), slog.String("seasonID", seasonID.String()))

	if params.HealthScore != nil && (*params.HealthScore < 0 || *params.HealthScore > 100) {
		span.SetStatus(codes.Error, "Health score out of range")
		return fmt.Errorf("health_score must be between 0 and 100: %w", types.ErrBadRequest)
	}

	// Ownership check before mutating.
	if _, err := s.GetSeason(ctx, userID, seasonID); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, seasonID, params); err != nil {
		l.ErrorContext(ctx, "Failed to update crop season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update crop season")
		return fmt.Errorf("error updating crop season: %w", err)
	}

	l.InfoContext(ctx, "Crop season updated")
	span.SetStatus(codes.Ok, "Season updated")
	return nil
}

func (s *ServiceImpl) DeleteSeason(ctx context.Context, userID, seasonID uuid.UUID) error {
	ctx, span := otel.Tracer("SeasonService").Start(ctx, "DeleteSeason", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("season.id", seasonID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "DeleteSeason"), slog.String("seasonID", seasonID.String()))

	if _, err := s.GetSeason(ctx, userID, seasonID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, seasonID); err != nil {
		l.ErrorContext(ctx, "Failed to delete crop season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete crop season")
		return fmt.Errorf("error deleting crop season: %w", err)
	}

	l.InfoContext(ctx, "Crop season deleted")
	span.SetStatus(codes.Ok, "Season deleted")
	return nil
}
