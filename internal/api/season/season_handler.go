package season

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
	seasonService Service
	logger        *slog.Logger
}

// NewHandlerImpl creates a new season handler instance.
func NewHandlerImpl(seasonService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		seasonService: seasonService,
		logger:        logger,
	}
}

// seasonIDParam parses the {seasonID} URL parameter.
func seasonIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	seasonID, err := uuid.Parse(chi.URLParam(r, "seasonID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid season ID format in URL")
		return uuid.Nil, false
	}
	return seasonID, true
}

// CreateSeason godoc
// @Summary      Create Crop Season
// @Description  Starts tracking a new planting cycle for the authenticated user.
// @Tags         Seasons
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons [post]
func (h *HandlerImpl) CreateSeason(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SeasonHandler").Start(r.Context(), "CreateSeason", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "CreateSeason"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}

	var params types.CreateSeasonParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	created, err := h.seasonService.CreateSeason(ctx, userID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create season")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to create crop season")
		return
	}

	span.SetStatus(codes.Ok, "Season created")
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

// GetSeason godoc
// @Summary      Get Crop Season
// @Tags         Seasons
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID} [get]
func (h *HandlerImpl) GetSeason(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SeasonHandler").Start(r.Context(), "GetSeason", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "GetSeason"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	seasonID, ok := seasonIDParam(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Invalid season ID")
		return
	}

	season, err := h.seasonService.GetSeason(ctx, userID, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch season")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to retrieve crop season")
		return
	}

	span.SetStatus(codes.Ok, "Season fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, season)
}

// ListSeasons godoc
// @Summary      List Crop Seasons
// @Tags         Seasons
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons [get]
func (h *HandlerImpl) ListSeasons(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SeasonHandler").Start(r.Context(), "ListSeasons", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "ListSeasons"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}

	seasons, err := h.seasonService.ListSeasons(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list seasons", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list seasons")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to list crop seasons")
		return
	}

	span.SetStatus(codes.Ok, "Seasons listed")
	api.WriteJSONResponse(w, r, http.StatusOK, seasons)
}

// UpdateSeason godoc
// @Summary      Update Crop Season
// @Description  Partial update: start date, harvest dates, health score, notes.
// @Tags         Seasons
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID} [put]
func (h *HandlerImpl) UpdateSeason(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SeasonHandler").Start(r.Context(), "UpdateSeason", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "UpdateSeason"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	seasonID, ok := seasonIDParam(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Invalid season ID")
		return
	}

	var params types.UpdateSeasonParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	if err := h.seasonService.UpdateSeason(ctx, userID, seasonID, params); err != nil {
		l.ErrorContext(ctx, "Failed to update season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update season")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to update crop season")
		return
	}

	span.SetStatus(codes.Ok, "Season updated")
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Crop season updated successfully",
	})
}

// DeleteSeason godoc
// @Summary      Delete Crop Season
// @Tags         Seasons
// @Security     BearerAuth
// @Router       /seasons/{seasonID} [delete]
func (h *HandlerImpl) DeleteSeason(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SeasonHandler").Start(r.Context(), "DeleteSeason", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "DeleteSeason"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	seasonID, ok := seasonIDParam(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Invalid season ID")
		return
	}

	if err := h.seasonService.DeleteSeason(ctx, userID, seasonID); err != nil {
		l.ErrorContext(ctx, "Failed to delete season", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete season")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to delete crop season")
		return
	}

	span.SetStatus(codes.Ok, "Season deleted")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
