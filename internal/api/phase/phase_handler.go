package phase

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
	"github.com/agrimind/farm-assist/internal/api/season"
	"github.com/agrimind/farm-assist/internal/types"
)

type HandlerImpl struct {
	phaseService  Service
	seasonService season.Service
	logger        *slog.Logger
}

// NewHandlerImpl creates a new phase handler instance. The season service is
// used to enforce ownership before phase operations.
func NewHandlerImpl(phaseService Service, seasonService season.Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		phaseService:  phaseService,
		seasonService: seasonService,
		logger:        logger,
	}
}

// UpdatePhaseParams is the payload for a manual phase override.
type UpdatePhaseParams struct {
	Phase types.CropPhase `json:"phase"`
}

// ownedSeason resolves the authenticated user and checks the season belongs
// to them. Writes the error response on failure.
func (h *HandlerImpl) ownedSeason(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := api.RequestUserID(w, r)
	if !ok {
		return uuid.Nil, false
	}
	seasonID, err := uuid.Parse(chi.URLParam(r, "seasonID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid season ID format in URL")
		return uuid.Nil, false
	}
	if _, err := h.seasonService.GetSeason(r.Context(), userID, seasonID); err != nil {
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to retrieve crop season")
		return uuid.Nil, false
	}
	return seasonID, true
}

// GetCurrentPhase godoc
// @Summary      Get Current Phase
// @Description  Derives the season's lifecycle phase from elapsed days, unless manually overridden.
// @Tags         Phases
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID}/phase [get]
func (h *HandlerImpl) GetCurrentPhase(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PhaseHandler").Start(r.Context(), "GetCurrentPhase", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}/phase"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "GetCurrentPhase"))

	seasonID, ok := h.ownedSeason(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Season access denied")
		return
	}

	phase, err := h.phaseService.CurrentPhase(ctx, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to determine phase", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to determine phase")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to determine current phase")
		return
	}

	span.SetStatus(codes.Ok, "Phase determined")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"season_id":     seasonID,
		"current_phase": phase,
	})
}

// UpdatePhase godoc
// @Summary      Override Phase
// @Description  Manually sets the season's phase. Manual phases win over date-derived ones.
// @Tags         Phases
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID}/phase [put]
func (h *HandlerImpl) UpdatePhase(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PhaseHandler").Start(r.Context(), "UpdatePhase", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}/phase"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "UpdatePhase"))

	seasonID, ok := h.ownedSeason(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Season access denied")
		return
	}

	var params UpdatePhaseParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	if err := h.phaseService.UpdatePhase(ctx, seasonID, params.Phase); err != nil {
		l.ErrorContext(ctx, "Failed to update phase", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update phase")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to update phase")
		return
	}

	span.SetStatus(codes.Ok, "Phase updated")
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Phase updated successfully",
	})
}

// GetHarvestReadiness godoc
// @Summary      Harvest Readiness
// @Tags         Phases
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID}/phase/readiness [get]
func (h *HandlerImpl) GetHarvestReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PhaseHandler").Start(r.Context(), "GetHarvestReadiness", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}/phase/readiness"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "GetHarvestReadiness"))

	seasonID, ok := h.ownedSeason(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Season access denied")
		return
	}

	readiness, err := h.phaseService.HarvestReadiness(ctx, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to check harvest readiness", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to check harvest readiness")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to check harvest readiness")
		return
	}

	span.SetStatus(codes.Ok, "Readiness checked")
	api.WriteJSONResponse(w, r, http.StatusOK, readiness)
}

// AutoTransition godoc
// @Summary      Auto Transition Phase
// @Description  Advances the season one phase when its transition conditions are met.
// @Tags         Phases
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID}/phase/transition [post]
func (h *HandlerImpl) AutoTransition(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PhaseHandler").Start(r.Context(), "AutoTransition", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}/phase/transition"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "AutoTransition"))

	seasonID, ok := h.ownedSeason(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Season access denied")
		return
	}

	newPhase, err := h.phaseService.AutoTransition(ctx, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to auto-transition phase", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to auto-transition phase")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to transition phase")
		return
	}

	resp := map[string]interface{}{
		"season_id":    seasonID,
		"transitioned": newPhase != nil,
	}
	if newPhase != nil {
		resp["new_phase"] = *newPhase
	}

	span.SetStatus(codes.Ok, "Transition evaluated")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// GetPhaseSummary godoc
// @Summary      Phase Summary
// @Tags         Phases
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID}/phase/summary [get]
func (h *HandlerImpl) GetPhaseSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PhaseHandler").Start(r.Context(), "GetPhaseSummary", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}/phase/summary"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "GetPhaseSummary"))

	seasonID, ok := h.ownedSeason(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Season access denied")
		return
	}

	summary, err := h.phaseService.Summary(ctx, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to build phase summary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to build phase summary")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to build phase summary")
		return
	}

	span.SetStatus(codes.Ok, "Summary built")
	api.WriteJSONResponse(w, r, http.StatusOK, summary)
}

// GetRecommendations godoc
// @Summary      Phase Recommendations
// @Tags         Phases
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID}/recommendations [get]
func (h *HandlerImpl) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PhaseHandler").Start(r.Context(), "GetRecommendations", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}/recommendations"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "GetRecommendations"))

	seasonID, ok := h.ownedSeason(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Season access denied")
		return
	}

	recommendations, err := h.phaseService.Recommendations(ctx, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to build recommendations", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to build recommendations")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to build recommendations")
		return
	}

	span.SetStatus(codes.Ok, "Recommendations built")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"season_id":       seasonID,
		"recommendations": recommendations,
	})
}
