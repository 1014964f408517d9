package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	generativeAI "github.com/agrimind/farm-assist/internal/api/generative_ai"
	"github.com/agrimind/farm-assist/internal/api/season"
	"github.com/agrimind/farm-assist/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	// Live model sessions are kept warm for this long; after eviction the
	// conversation is rebuilt from stored history.
	liveSessionTTL = 30 * time.Minute
)

const baseSystemPrompt = `You are a knowledgeable farming assistant helping smallholder farmers manage their crops.
Give practical, concise advice in supportive language. When you lack information about the farmer's
specific situation, say so and ask for the detail you need instead of guessing.`

// Service is the conversational assistant surface.
type Service interface {
	Chat(ctx context.Context, userID uuid.UUID, req types.ChatRequest) (*types.ChatResponse, error)
	History(ctx context.Context, userID, sessionID uuid.UUID) ([]types.ChatMessage, error)
}

type ServiceImpl struct {
	logger       *slog.Logger
	ai           *generativeAI.AIClient
	chatRepo     Repository
	seasonRepo   season.Repository
	liveSessions *cache.Cache
}

// NewChatService creates the assistant service backed by Gemini.
func NewChatService(ai *generativeAI.AIClient, chatRepo Repository, seasonRepo season.Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:       logger,
		ai:           ai,
		chatRepo:     chatRepo,
		seasonRepo:   seasonRepo,
		liveSessions: cache.New(liveSessionTTL, 10*time.Minute),
	}
}

// systemPrompt builds the model's standing instructions, including season
// context when the conversation is tied to one.
func (s *ServiceImpl) systemPrompt(ctx context.Context, seasonID *uuid.UUID) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)

	if seasonID == nil {
		return b.String()
	}
	sn, err := s.seasonRepo.Get(ctx, *seasonID)
	if err != nil {
		s.logger.WarnContext(ctx, "Could not load season context for chat", slog.Any("error", err))
		return b.String()
	}

	b.WriteString("\n\nThe farmer is currently growing: ")
	b.WriteString(sn.CropType)
	if sn.CurrentPhase != nil {
		b.WriteString("\nCurrent crop phase: ")
		b.WriteString(string(*sn.CurrentPhase))
	}
	if sn.StartDate != nil {
		b.WriteString("\nSeason started: ")
		b.WriteString(sn.StartDate.Format("2006-01-02"))
	}
	if sn.HealthScore != nil {
		fmt.Fprintf(&b, "\nCrop health score: %d/100", *sn.HealthScore)
	}
	return b.String()
}

// replayPrompt folds stored history into the system prompt so a rebuilt
// session continues the conversation instead of starting over.
func replayPrompt(prompt string, history []types.ChatMessage) string {
	if len(history) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nConversation so far:")
	for _, m := range history {
		b.WriteString("\n")
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// liveSession returns a warm model session for the stored conversation,
// creating one and replaying history if needed.
func (s *ServiceImpl) liveSession(ctx context.Context, session *types.ChatSession) (*generativeAI.ChatSession, error) {
	if s.ai == nil {
		return nil, fmt.Errorf("assistant is not configured: %w", types.ErrInternalServerError)
	}

	key := session.ID.String()
	if cached, found := s.liveSessions.Get(key); found {
		if cs, ok := cached.(*generativeAI.ChatSession); ok {
			return cs, nil
		}
	}

	history, err := s.chatRepo.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	prompt := replayPrompt(s.systemPrompt(ctx, session.SeasonID), history)

	cs, err := s.ai.StartChatSession(ctx, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prompt}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start assistant session: %w", err)
	}

	s.liveSessions.Set(key, cs, cache.DefaultExpiration)
	return cs, nil
}

// Chat handles one assistant turn: resolve or create the session, send the
// farmer's message to the model, and persist both sides of the exchange.
func (s *ServiceImpl) Chat(ctx context.Context, userID uuid.UUID, req types.ChatRequest) (*types.ChatResponse, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "Chat", trace.WithAttributes(
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Chat"), slog.String("userID", userID.String()))

	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("chat message is required: %w", types.ErrBadRequest)
	}

	var (
		session *types.ChatSession
		err     error
	)
	if req.SessionID != nil {
		session, err = s.chatRepo.GetSession(ctx, *req.SessionID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Session lookup failed")
			return nil, err
		}
		if session.UserID != userID {
			return nil, fmt.Errorf("chat session %s does not belong to user: %w", session.ID, types.ErrForbidden)
		}
	} else {
		if req.SeasonID != nil {
			sn, err := s.seasonRepo.Get(ctx, *req.SeasonID)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "Season lookup failed")
				return nil, err
			}
			if sn.UserID != userID {
				return nil, fmt.Errorf("season %s does not belong to user: %w", sn.ID, types.ErrForbidden)
			}
		}
		session, err = s.chatRepo.CreateSession(ctx, userID, req.SeasonID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Session creation failed")
			return nil, err
		}
	}

	live, err := s.liveSession(ctx, session)
	if err != nil {
		l.ErrorContext(ctx, "Failed to obtain assistant session", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Assistant session failed")
		return nil, err
	}

	if _, err := s.chatRepo.AddMessage(ctx, session.ID, roleUser, req.Message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Message persistence failed")
		return nil, err
	}

	reply, err := live.SendMessage(ctx, req.Message)
	if err != nil {
		// Drop the warm handle so the next turn rebuilds from history.
		s.liveSessions.Delete(session.ID.String())
		l.ErrorContext(ctx, "Assistant reply failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Assistant reply failed")
		return nil, fmt.Errorf("assistant reply failed: %w", err)
	}

	if _, err := s.chatRepo.AddMessage(ctx, session.ID, roleAssistant, reply); err != nil {
		l.WarnContext(ctx, "Failed to persist assistant reply", slog.Any("error", err))
		span.RecordError(err)
	}

	span.SetStatus(codes.Ok, "Chat turn completed")
	return &types.ChatResponse{
		SessionID: session.ID,
		Reply:     reply,
	}, nil
}

func (s *ServiceImpl) History(ctx context.Context, userID, sessionID uuid.UUID) ([]types.ChatMessage, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "History", trace.WithAttributes(
		attribute.String("chat.session.id", sessionID.String()),
	))
	defer span.End()

	session, err := s.chatRepo.GetSession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session lookup failed")
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("chat session %s does not belong to user: %w", sessionID, types.ErrForbidden)
	}

	messages, err := s.chatRepo.ListMessages(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Message listing failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "History fetched")
	return messages, nil
}
