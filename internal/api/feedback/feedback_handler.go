package feedback

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
	feedbackService Service
	logger          *slog.Logger
}

// NewHandlerImpl creates a new feedback handler instance.
func NewHandlerImpl(feedbackService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		feedbackService: feedbackService,
		logger:          logger,
	}
}

// AnalyzeFeedback godoc
// @Summary      Analyze Farmer Feedback
// @Description  Ad-hoc interpretation of a farmer report against a planned action, without persisting anything.
// @Tags         Feedback
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /feedback/analyze [post]
func (h *HandlerImpl) AnalyzeFeedback(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("FeedbackHandler").Start(r.Context(), "AnalyzeFeedback", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/feedback/analyze"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "AnalyzeFeedback"))

	if _, ok := api.RequestUserID(w, r); !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}

	var params types.AnalyzeFeedbackParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	result, err := h.feedbackService.AnalyzeFeedback(ctx, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to analyze feedback", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to analyze feedback")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to analyze feedback")
		return
	}

	span.SetStatus(codes.Ok, "Feedback analyzed")
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// ListDeviations godoc
// @Summary      List Season Deviations
// @Tags         Feedback
// @Produce      json
// @Security     BearerAuth
// @Router       /seasons/{seasonID}/deviations [get]
func (h *HandlerImpl) ListDeviations(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("FeedbackHandler").Start(r.Context(), "ListDeviations", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/seasons/{seasonID}/deviations"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "ListDeviations"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	seasonID, err := uuid.Parse(chi.URLParam(r, "seasonID"))
	if err != nil {
		span.SetStatus(codes.Error, "Invalid season ID")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid season ID format in URL")
		return
	}

	records, err := h.feedbackService.ListDeviations(ctx, userID, seasonID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list deviations", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list deviations")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to list deviations")
		return
	}

	span.SetStatus(codes.Ok, "Deviations listed")
	api.WriteJSONResponse(w, r, http.StatusOK, records)
}
