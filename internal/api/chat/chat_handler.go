package chat

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
	chatService Service
	logger      *slog.Logger
}

// NewHandlerImpl creates a new chat handler instance.
func NewHandlerImpl(chatService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		chatService: chatService,
		logger:      logger,
	}
}

// Chat godoc
// @Summary      Talk to the Assistant
// @Description  Sends one farmer message. Omit session_id to start a new conversation; pass season_id to ground it in a crop season.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /chat [post]
func (h *HandlerImpl) Chat(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "Chat", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "Chat"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}

	var req types.ChatRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	resp, err := h.chatService.Chat(ctx, userID, req)
	if err != nil {
		l.ErrorContext(ctx, "Chat turn failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Chat turn failed")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to get assistant reply")
		return
	}

	span.SetStatus(codes.Ok, "Chat turn completed")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// GetHistory godoc
// @Summary      Get Chat History
// @Tags         Chat
// @Produce      json
// @Security     BearerAuth
// @Router       /chat/{sessionID}/history [get]
func (h *HandlerImpl) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "GetHistory", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat/{sessionID}/history"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "GetHistory"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		span.SetStatus(codes.Error, "Invalid session ID")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid session ID format in URL")
		return
	}

	messages, err := h.chatService.History(ctx, userID, sessionID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch chat history", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch chat history")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to retrieve chat history")
		return
	}

	span.SetStatus(codes.Ok, "History fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, messages)
}
