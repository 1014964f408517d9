package container

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/agrimind/farm-assist/app/db"
	"github.com/agrimind/farm-assist/config"
	"github.com/agrimind/farm-assist/internal/api/auth"
	"github.com/agrimind/farm-assist/internal/api/chat"
	"github.com/agrimind/farm-assist/internal/api/feedback"
	generativeAI "github.com/agrimind/farm-assist/internal/api/generative_ai"
	"github.com/agrimind/farm-assist/internal/api/phase"
	"github.com/agrimind/farm-assist/internal/api/season"
	"github.com/agrimind/farm-assist/internal/api/task"
)

const defaultAnalysisCacheTTL = 24 * time.Hour

// Container holds all application dependencies.
type Container struct {
	Config          *config.Config
	Logger          *slog.Logger
	Pool            *pgxpool.Pool
	AuthHandler     *auth.HandlerImpl
	SeasonHandler   *season.HandlerImpl
	PhaseHandler    *phase.HandlerImpl
	TaskHandler     *task.HandlerImpl
	FeedbackHandler *feedback.HandlerImpl
	ChatHandler     *chat.HandlerImpl
}

// NewContainer initializes the database pool and wires repositories, services
// and handlers. LLM clients are optional: without a Groq key, feedback
// analysis degrades to keyword matching; without a Gemini key, the chat
// assistant endpoint reports itself unavailable.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	// LLM clients
	var llm feedback.LLMClient
	if groq, err := generativeAI.NewGroqClient(cfg.LLM.GroqBaseURL,
		generativeAI.WithGroqModel(cfg.LLM.GroqModel),
		generativeAI.WithTemperature(cfg.LLM.Temperature),
		generativeAI.WithMaxTokens(cfg.LLM.MaxTokens),
	); err != nil {
		logger.Warn("Groq client unavailable, feedback analysis will use keyword fallback", slog.Any("error", err))
	} else {
		llm = groq
	}

	ai, err := generativeAI.NewAIClient(ctx, cfg.LLM.GeminiModel)
	if err != nil {
		logger.Warn("Gemini client unavailable, chat assistant and deviation advice disabled", slog.Any("error", err))
		ai = nil
	}
	// Assign only when non-nil so the interface stays nil-comparable.
	var advisor feedback.Advisor
	if ai != nil {
		advisor = ai
	}

	// Repositories
	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	seasonRepo := season.NewPostgresSeasonRepo(pool, logger)
	taskRepo := task.NewPostgresTaskRepo(pool, logger)
	feedbackRepo := feedback.NewPostgresFeedbackRepo(pool, logger)
	chatRepo := chat.NewPostgresChatRepo(pool, logger)

	// Services
	cacheTTL := time.Duration(cfg.LLM.AnalysisCacheTTLHours) * time.Hour
	if cacheTTL <= 0 {
		cacheTTL = defaultAnalysisCacheTTL
	}

	authService := auth.NewAuthService(authRepo, logger)
	seasonService := season.NewSeasonService(seasonRepo, logger)
	phaseService := phase.NewPhaseService(seasonRepo, taskRepo, logger)
	feedbackService := feedback.NewFeedbackService(llm, advisor, feedbackRepo, seasonRepo, cacheTTL, logger)
	taskService := task.NewTaskService(taskRepo, seasonRepo, feedbackService, logger)
	chatService := chat.NewChatService(ai, chatRepo, seasonRepo, logger)

	return &Container{
		Config:          cfg,
		Logger:          logger,
		Pool:            pool,
		AuthHandler:     auth.NewHandlerImpl(authService, logger),
		SeasonHandler:   season.NewHandlerImpl(seasonService, logger),
		PhaseHandler:    phase.NewHandlerImpl(phaseService, seasonService, logger),
		TaskHandler:     task.NewHandlerImpl(taskService, logger),
		FeedbackHandler: feedback.NewHandlerImpl(feedbackService, logger),
		ChatHandler:     chat.NewHandlerImpl(chatService, logger),
	}, nil
}

// Close releases all resources held by the container.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
		c.Logger.Info("Database pool closed")
	}
}
