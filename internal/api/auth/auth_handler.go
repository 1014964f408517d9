package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/agrimind/farm-assist/internal/api"
)

type HandlerImpl struct {
	authService Service
	logger      *slog.Logger
}

// NewHandlerImpl creates a new auth handler instance.
func NewHandlerImpl(authService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		authService: authService,
		logger:      logger,
	}
}

// Register godoc
// @Summary      Register Account
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/register [post]
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/register"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "Register"))

	var params RegisterParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	user, err := h.authService.Register(ctx, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to register user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Registration failed")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to register account")
		return
	}

	span.SetStatus(codes.Ok, "User registered")
	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

// Login godoc
// @Summary      Login
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/login"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "Login"))

	var params LoginParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	tokens, err := h.authService.Login(ctx, params)
	if err != nil {
		l.WarnContext(ctx, "Login failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Login failed")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Invalid email or password")
		return
	}

	span.SetStatus(codes.Ok, "Login succeeded")
	api.WriteJSONResponse(w, r, http.StatusOK, tokens)
}

// Refresh godoc
// @Summary      Refresh Session
// @Description  Rotates the refresh token and returns a new token pair.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/refresh [post]
func (h *HandlerImpl) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Refresh", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/refresh"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "Refresh"))

	var params RefreshParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	tokens, err := h.authService.Refresh(ctx, params.RefreshToken)
	if err != nil {
		l.WarnContext(ctx, "Session refresh failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session refresh failed")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to refresh session")
		return
	}

	span.SetStatus(codes.Ok, "Session refreshed")
	api.WriteJSONResponse(w, r, http.StatusOK, tokens)
}

// Logout godoc
// @Summary      Logout
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *HandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Logout", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/logout"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "Logout"))

	var params RefreshParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	if err := h.authService.Logout(ctx, params.RefreshToken); err != nil {
		l.ErrorContext(ctx, "Logout failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Logout failed")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to log out")
		return
	}

	span.SetStatus(codes.Ok, "Logged out")
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Logged out successfully",
	})
}

// LogoutAll godoc
// @Summary      Logout Everywhere
// @Description  Revokes every refresh token issued to the account.
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Router       /auth/logout-all [post]
func (h *HandlerImpl) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "LogoutAll", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/logout-all"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "LogoutAll"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}

	if err := h.authService.LogoutAll(ctx, userID); err != nil {
		l.ErrorContext(ctx, "Logout-all failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Logout-all failed")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to log out of all sessions")
		return
	}

	span.SetStatus(codes.Ok, "All sessions revoked")
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Logged out of all sessions",
	})
}

// Me godoc
// @Summary      Current User
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *HandlerImpl) Me(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Me", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/auth/me"),
	))
	defer span.End()
	r = r.WithContext(ctx)

	l := h.logger.With(slog.String("handler", "Me"))

	userID, ok := api.RequestUserID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Authentication required")
		return
	}

	user, err := h.authService.GetUser(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch current user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch current user")
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to retrieve account")
		return
	}

	span.SetStatus(codes.Ok, "User fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}
