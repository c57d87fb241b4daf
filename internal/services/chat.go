package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/matchahq/matcha-backend/internal/clients/openrouter"
	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/repos"
	"github.com/matchahq/matcha-backend/internal/types"
)

const (
	// contextWindowSize caps how much transcript is replayed to the model.
	contextWindowSize = 20
	// safetyContextSize is how much transcript the safety guard sees.
	safetyContextSize = 5
	// titleMaxLen bounds auto-generated conversation titles.
	titleMaxLen = 50

	generationErrorReply = "Sorry, I encountered an error processing your request. Please try again."
	unsafeFallbackReply  = "I want to make sure I'm being helpful and supportive. Can you tell me more about what's going on?"
)

// SendMessageInput is one turn's request.
type SendMessageInput struct {
	Message             string
	ConversationID      *uuid.UUID
	IsSessionEnd        bool
	RequestDeepAnalysis bool
}

// RiskAssessment is returned on the crisis short-circuit so clients can
// show what was detected and why generation was bypassed.
type RiskAssessment struct {
	Level      string   `json:"level"`
	Indicators []string `json:"indicators"`
	Action     string   `json:"action"`
}

// SendMessageResult is the composed outcome of one turn.
type SendMessageResult struct {
	ConversationID uuid.UUID           `json:"conversationId"`
	Message        *types.Message      `json:"message"`
	Analysis       *types.AnalysisData `json:"analysis"`
	RiskAssessment *RiskAssessment     `json:"riskAssessment,omitempty"`
	Usage          *types.TokenUsage   `json:"usage"`
	ModelTier      types.ModelTier     `json:"modelTier"`
	CrisisDetected bool                `json:"crisisDetected,omitempty"`
}

// ConversationPage is a paged conversation listing.
type ConversationPage struct {
	Conversations []*types.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

type ChatService interface {
	SendMessage(ctx context.Context, userID string, tier types.Tier, input SendMessageInput) (*SendMessageResult, error)
	CreateConversation(ctx context.Context, userID, title string) (*types.Conversation, error)
	ListConversations(ctx context.Context, userID string, page, limit int) (*ConversationPage, error)
	GetConversation(ctx context.Context, userID string, id uuid.UUID) (*types.Conversation, error)
	UpdateConversationTitle(ctx context.Context, userID string, id uuid.UUID, title string) (*types.Conversation, error)
	DeleteConversation(ctx context.Context, userID string, id uuid.UUID) error
}

type chatService struct {
	log           *logger.Logger
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
	usage         UsageService
	safety        SafetyGuard
	ai            openrouter.Client
}

func NewChatService(
	baseLog *logger.Logger,
	conversationRepo repos.ConversationRepo,
	messageRepo repos.MessageRepo,
	usage UsageService,
	safety SafetyGuard,
	ai openrouter.Client,
) ChatService {
	return &chatService{
		log:           baseLog.With("service", "ChatService"),
		conversations: conversationRepo,
		messages:      messageRepo,
		usage:         usage,
		safety:        safety,
		ai:            ai,
	}
}

// SendMessage runs one chat turn. Each step gates the next; the user
// message is durable before the model is ever called, and nothing past a
// failed gate mutates state.
//
// Note: there is no per-conversation lock. Two simultaneous turns on one
// conversation interleave their writes; last analysis write wins.
func (s *chatService) SendMessage(ctx context.Context, userID string, tier types.Tier, input SendMessageInput) (*SendMessageResult, error) {
	// 1. Quota gate (FREE tier only). Fails before any write.
	if tier != types.TierPro {
		allowed, err := s.usage.CheckAndConsumeChat(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, types.ErrQuotaExceeded(FreeTierMonthlyMessages)
		}
	}

	// 2. Conversation resolution.
	conv, err := s.resolveConversation(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	// 3. Persist the user turn unconditionally, before the model call.
	userMsg, err := s.messages.Create(ctx, nil, &types.Message{
		ConversationID: conv.ID,
		Role:           types.RoleUser,
		Content:        input.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	// 4. Load the context window.
	history, err := s.messages.ListRecent(ctx, nil, conv.ID, contextWindowSize)
	if err != nil {
		return nil, fmt.Errorf("load context window: %w", err)
	}

	// 5. Pre-generation safety check.
	inputSafety := s.safety.CheckUserInput(input.Message, safetyContext(history, safetyContextSize))
	if inputSafety.RiskLevel == types.RiskCrisis {
		return s.crisisOverride(ctx, userID, conv.ID, inputSafety)
	}

	// 6. Model tier selection.
	modelTier := selectModelTier(TierSelection{
		MessageCount:               len(history),
		IsSessionEnd:               input.IsSessionEnd,
		RequiresDeepAnalysis:       input.RequestDeepAnalysis,
		HasComplexEmotionalContent: detectComplexEmotionalContent(input.Message),
	})

	// 7. Prompt assembly.
	prompt := systemPrompt(PromptParams{
		MessageCount:     len(history),
		IsDeepAnalysis:   modelTier == types.TierDeep,
		PreviousEmotions: previousEmotions(conv),
	})
	chatMessages := make([]openrouter.ChatMessage, 0, len(history)+1)
	chatMessages = append(chatMessages, openrouter.ChatMessage{Role: "system", Content: prompt})
	for _, m := range history {
		chatMessages = append(chatMessages, openrouter.ChatMessage{
			Role:    strings.ToLower(string(m.Role)),
			Content: m.Content,
		})
	}

	// 8. Generation.
	s.log.Info("Sending message to model",
		"conversation_id", conv.ID, "model_tier", modelTier, "thinking", modelTier == types.TierDeep)
	response, err := s.ai.ChatWithThinking(ctx, chatMessages, openrouter.ChatOptions{
		ModelTier:       modelTier,
		ThinkingEnabled: modelTier == types.TierDeep,
	})
	if err != nil {
		return nil, s.generationFailed(ctx, conv.ID, userMsg, err)
	}

	// 9. Post-generation safety check. The stored reply is always the
	// approved text, never flagged raw model output.
	responseSafety := s.safety.CheckAIResponse(response.Message, input.Message)
	if !responseSafety.IsSafe {
		s.log.Warn("Unsafe AI response blocked",
			"conversation_id", conv.ID, "flags", strings.Join(responseSafety.Flags, ","))
		if inputSafety.RequiresIntervention {
			response.Message = s.safety.CrisisInterventionMessage(inputSafety.Flags)
		} else {
			response.Message = unsafeFallbackReply
		}
	}

	// 10. Persist the assistant turn.
	assistantMsg, err := s.messages.Create(ctx, nil, &types.Message{
		ConversationID: conv.ID,
		Role:           types.RoleAssistant,
		Content:        response.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	// 11. Analysis merge. A turn with no structured analysis leaves the
	// snapshot untouched.
	if response.Analysis != nil {
		if err := s.mergeConversationAnalysis(ctx, conv, response.Analysis); err != nil {
			return nil, fmt.Errorf("merge analysis: %w", err)
		}
	}

	// 12. Composed result, tier included for client transparency.
	return &SendMessageResult{
		ConversationID: conv.ID,
		Message:        assistantMsg,
		Analysis:       response.Analysis,
		Usage:          response.Usage,
		ModelTier:      modelTier,
	}, nil
}

func (s *chatService) resolveConversation(ctx context.Context, userID string, input SendMessageInput) (*types.Conversation, error) {
	if input.ConversationID == nil {
		title := input.Message
		if runes := []rune(title); len(runes) > titleMaxLen {
			title = string(runes[:titleMaxLen]) + "..."
		}
		return s.CreateConversation(ctx, userID, title)
	}
	conv, err := s.conversations.GetByIDForUser(ctx, nil, *input.ConversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, types.ErrNotFound("Conversation")
	}
	return conv, nil
}

// crisisOverride is the short-circuit path: no model call, fixed crisis
// text persisted as the assistant turn, crisis flag written to the
// conversation's emotional state.
func (s *chatService) crisisOverride(ctx context.Context, userID string, conversationID uuid.UUID, assessment types.SafetyAssessment) (*SendMessageResult, error) {
	s.log.Warn("CRISIS DETECTED",
		"user_id", userID, "conversation_id", conversationID, "flags", strings.Join(assessment.Flags, ","))

	crisisText := s.safety.CrisisInterventionMessage(assessment.Flags)
	assistantMsg, err := s.messages.Create(ctx, nil, &types.Message{
		ConversationID: conversationID,
		Role:           types.RoleAssistant,
		Content:        crisisText,
	})
	if err != nil {
		return nil, fmt.Errorf("persist crisis message: %w", err)
	}

	state, err := json.Marshal(map[string]any{
		"crisis": true,
		"flags":  assessment.Flags,
	})
	if err != nil {
		return nil, err
	}
	if err := s.conversations.UpdateEmotionalState(ctx, nil, conversationID, datatypes.JSON(state), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("flag conversation: %w", err)
	}

	return &SendMessageResult{
		ConversationID: conversationID,
		Message:        assistantMsg,
		Analysis: &types.AnalysisData{
			EmotionalState: &types.EmotionalState{Primary: "crisis", Intensity: "high"},
		},
		RiskAssessment: &RiskAssessment{
			Level:      assessment.RiskLevel.String(),
			Indicators: assessment.Flags,
			Action:     "IMMEDIATE_CRISIS_INTERVENTION",
		},
		ModelTier:      types.TierSafetyOverride,
		CrisisDetected: true,
	}, nil
}

// generationFailed persists an apology so the transcript reflects reality,
// then surfaces ServiceUnavailable with enough context to reconcile UI
// state. The user message and the apology stay persisted.
func (s *chatService) generationFailed(ctx context.Context, conversationID uuid.UUID, userMsg *types.Message, cause error) error {
	s.log.Error("Model call failed", "conversation_id", conversationID, "error", cause)

	errorMsg, persistErr := s.messages.Create(ctx, nil, &types.Message{
		ConversationID: conversationID,
		Role:           types.RoleAssistant,
		Content:        generationErrorReply,
	})
	if persistErr != nil {
		s.log.Error("Failed to persist apology message", "conversation_id", conversationID, "error", persistErr)
	}

	return types.ErrServiceUnavailable(map[string]any{
		"conversationId": conversationID,
		"userMessage":    userMsg,
		"errorMessage":   errorMsg,
	})
}

func (s *chatService) mergeConversationAnalysis(ctx context.Context, conv *types.Conversation, analysis *types.AnalysisData) error {
	snap := repos.AnalysisSnapshot{}

	// Emotional state and patterns are current-snapshot fields: replaced
	// wholesale, never merged.
	if analysis.EmotionalState != nil {
		raw, err := json.Marshal(analysis.EmotionalState)
		if err != nil {
			return err
		}
		snap.EmotionalState = datatypes.JSON(raw)
	}
	if analysis.Patterns != nil {
		raw, err := json.Marshal(analysis.Patterns)
		if err != nil {
			return err
		}
		snap.Patterns = datatypes.JSON(raw)
	}

	if len(analysis.Biases) > 0 {
		var existing []types.CognitiveBias
		if len(conv.Biases) > 0 {
			_ = json.Unmarshal(conv.Biases, &existing)
		}
		raw, err := json.Marshal(mergeBiases(existing, analysis.Biases))
		if err != nil {
			return err
		}
		snap.Biases = datatypes.JSON(raw)
	}

	if len(analysis.Insights) > 0 {
		var existing []string
		if len(conv.Insights) > 0 {
			_ = json.Unmarshal(conv.Insights, &existing)
		}
		raw, err := json.Marshal(mergeInsights(existing, analysis.Insights))
		if err != nil {
			return err
		}
		snap.Insights = datatypes.JSON(raw)
	}

	return s.conversations.UpdateAnalysis(ctx, nil, conv.ID, snap, time.Now().UTC())
}

func (s *chatService) CreateConversation(ctx context.Context, userID, title string) (*types.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New conversation"
	}
	return s.conversations.Create(ctx, nil, &types.Conversation{
		UserID: userID,
		Title:  title,
	})
}

func (s *chatService) ListConversations(ctx context.Context, userID string, page, limit int) (*ConversationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	offset := (page - 1) * limit

	convs, err := s.conversations.ListByUser(ctx, nil, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.conversations.CountByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}
	return &ConversationPage{
		Conversations: convs,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *chatService) GetConversation(ctx context.Context, userID string, id uuid.UUID) (*types.Conversation, error) {
	conv, err := s.conversations.GetByIDForUserWithMessages(ctx, nil, id, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, types.ErrNotFound("Conversation")
	}
	return conv, nil
}

func (s *chatService) UpdateConversationTitle(ctx context.Context, userID string, id uuid.UUID, title string) (*types.Conversation, error) {
	conv, err := s.conversations.GetByIDForUser(ctx, nil, id, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, types.ErrNotFound("Conversation")
	}
	return s.conversations.UpdateTitle(ctx, nil, id, title)
}

func (s *chatService) DeleteConversation(ctx context.Context, userID string, id uuid.UUID) error {
	conv, err := s.conversations.GetByIDForUser(ctx, nil, id, userID)
	if err != nil {
		return err
	}
	if conv == nil {
		return types.ErrNotFound("Conversation")
	}
	return s.conversations.Delete(ctx, nil, id)
}

// safetyContext maps the tail of the history into the guard's shape.
func safetyContext(history []*types.Message, n int) []ContextMessage {
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	out := make([]ContextMessage, 0, len(history)-start)
	for _, m := range history[start:] {
		out = append(out, ContextMessage{
			Role:    strings.ToLower(string(m.Role)),
			Content: m.Content,
		})
	}
	return out
}

// previousEmotions pulls the prior turn's primary/secondary labels from the
// stored emotional state for prompt context.
func previousEmotions(conv *types.Conversation) []string {
	if len(conv.EmotionalState) == 0 {
		return nil
	}
	var state types.EmotionalState
	if err := json.Unmarshal(conv.EmotionalState, &state); err != nil {
		return nil
	}
	var out []string
	if state.Primary != "" {
		out = append(out, state.Primary)
	}
	if state.Secondary != "" {
		out = append(out, state.Secondary)
	}
	return out
}
