package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/matchahq/matcha-backend/internal/clients/openrouter"
	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/repos"
	"github.com/matchahq/matcha-backend/internal/types"
)

type fakeConversationRepo struct {
	rows map[uuid.UUID]*types.Conversation
}

var _ repos.ConversationRepo = (*fakeConversationRepo)(nil)

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{rows: map[uuid.UUID]*types.Conversation{}}
}

func (f *fakeConversationRepo) Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error) {
	conv.ID = uuid.New()
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	copied := *conv
	f.rows[conv.ID] = &copied
	return conv, nil
}

func (f *fakeConversationRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID string) (*types.Conversation, error) {
	conv, ok := f.rows[id]
	if !ok || conv.UserID != userID {
		return nil, nil
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeConversationRepo) GetByIDForUserWithMessages(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID string) (*types.Conversation, error) {
	return f.GetByIDForUser(ctx, tx, id, userID)
}

func (f *fakeConversationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, offset, limit int) ([]*types.Conversation, error) {
	var out []*types.Conversation
	for _, conv := range f.rows {
		if conv.UserID == userID {
			copied := *conv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeConversationRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var n int64
	for _, conv := range f.rows {
		if conv.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeConversationRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, id uuid.UUID, title string) (*types.Conversation, error) {
	conv := f.rows[id]
	conv.Title = title
	copied := *conv
	return &copied, nil
}

func (f *fakeConversationRepo) UpdateAnalysis(ctx context.Context, tx *gorm.DB, id uuid.UUID, snap repos.AnalysisSnapshot, at time.Time) error {
	conv, ok := f.rows[id]
	if !ok {
		return errors.New("conversation not found")
	}
	if snap.EmotionalState != nil {
		conv.EmotionalState = snap.EmotionalState
	}
	if snap.Biases != nil {
		conv.Biases = snap.Biases
	}
	if snap.Patterns != nil {
		conv.Patterns = snap.Patterns
	}
	if snap.Insights != nil {
		conv.Insights = snap.Insights
	}
	conv.AnalysisUpdatedAt = &at
	return nil
}

func (f *fakeConversationRepo) UpdateEmotionalState(ctx context.Context, tx *gorm.DB, id uuid.UUID, state datatypes.JSON, at time.Time) error {
	conv, ok := f.rows[id]
	if !ok {
		return errors.New("conversation not found")
	}
	conv.EmotionalState = state
	conv.UpdatedAt = at
	return nil
}

func (f *fakeConversationRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	delete(f.rows, id)
	return nil
}

type fakeMessageRepo struct {
	byConversation map[uuid.UUID][]*types.Message
}

var _ repos.MessageRepo = (*fakeMessageRepo)(nil)

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byConversation: map[uuid.UUID][]*types.Message{}}
}

func (f *fakeMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	copied := *msg
	f.byConversation[msg.ConversationID] = append(f.byConversation[msg.ConversationID], &copied)
	return msg, nil
}

func (f *fakeMessageRepo) ListRecent(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	msgs := f.byConversation[conversationID]
	start := len(msgs) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*types.Message, 0, len(msgs)-start)
	for _, m := range msgs[start:] {
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeMessageRepo) CountByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (int64, error) {
	return int64(len(f.byConversation[conversationID])), nil
}

func (f *fakeMessageRepo) all(conversationID uuid.UUID) []*types.Message {
	return f.byConversation[conversationID]
}

type fakeUsageService struct {
	allowChat     bool
	allowAnalysis bool
	chatCalls     int
	analysisCalls int
}

var _ UsageService = (*fakeUsageService)(nil)

func (f *fakeUsageService) CheckAndConsumeChat(ctx context.Context, userID string) (bool, error) {
	f.chatCalls++
	return f.allowChat, nil
}

func (f *fakeUsageService) CheckAndConsumeAnalysis(ctx context.Context, userID string) (bool, error) {
	f.analysisCalls++
	return f.allowAnalysis, nil
}

func (f *fakeUsageService) RemainingMessages(ctx context.Context, userID string, tier types.Tier) (*int, error) {
	n := FreeTierMonthlyMessages
	return &n, nil
}

type fakeAIClient struct {
	result   *openrouter.ChatResult
	err      error
	calls    int
	lastOpts openrouter.ChatOptions
	lastMsgs []openrouter.ChatMessage
}

var _ openrouter.Client = (*fakeAIClient)(nil)

func (f *fakeAIClient) ChatWithThinking(ctx context.Context, messages []openrouter.ChatMessage, opts openrouter.ChatOptions) (*openrouter.ChatResult, error) {
	f.calls++
	f.lastOpts = opts
	f.lastMsgs = messages
	if f.err != nil {
		return nil, f.err
	}
	result := *f.result
	return &result, nil
}

func (f *fakeAIClient) Analyze(ctx context.Context, inputText string) (*types.AnalysisData, error) {
	return nil, errors.New("not used in chat tests")
}

type chatFixture struct {
	svc           ChatService
	conversations *fakeConversationRepo
	messages      *fakeMessageRepo
	usage         *fakeUsageService
	ai            *fakeAIClient
}

func newChatFixture(ai *fakeAIClient) *chatFixture {
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()
	usage := &fakeUsageService{allowChat: true, allowAnalysis: true}
	guard := NewSafetyGuard(logger.NewNop(), DefaultSafetyConfig())
	return &chatFixture{
		svc:           NewChatService(logger.NewNop(), conversations, messages, usage, guard, ai),
		conversations: conversations,
		messages:      messages,
		usage:         usage,
		ai:            ai,
	}
}

func supportiveResult() *openrouter.ChatResult {
	return &openrouter.ChatResult{
		Message: "That sounds like a lot to carry. What part weighs on you most?",
		Analysis: &types.AnalysisData{
			EmotionalState: &types.EmotionalState{Primary: "anxious", Secondary: "tired", Intensity: "medium"},
			Biases:         []types.CognitiveBias{{Name: "catastrophizing", Confidence: 70}},
			Patterns:       []types.ThinkingPattern{{Name: "rumination", Percentage: 60}},
			Insights:       []string{"Work stress spikes on Sunday evenings before the week starts"},
		},
		Usage: &types.TokenUsage{PromptTokens: 120, CompletionTokens: 48, TotalTokens: 168},
	}
}

func TestSendMessageNewConversation(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})
	ctx := context.Background()

	message := "I have been feeling overwhelmed at work lately and it is starting to affect my sleep"
	result, err := fx.svc.SendMessage(ctx, "user-1", types.TierFree, SendMessageInput{Message: message})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if fx.usage.chatCalls != 1 {
		t.Fatalf("quota gate called %d times, want 1", fx.usage.chatCalls)
	}
	if result.ModelTier != types.TierStandard {
		t.Fatalf("ModelTier = %q, want %q", result.ModelTier, types.TierStandard)
	}
	if result.CrisisDetected {
		t.Fatal("unexpected crisis flag")
	}
	if result.Analysis == nil || result.Usage == nil {
		t.Fatal("analysis and usage should pass through")
	}

	conv := fx.conversations.rows[result.ConversationID]
	if conv == nil {
		t.Fatal("conversation was not created")
	}
	wantTitle := message[:titleMaxLen] + "..."
	if conv.Title != wantTitle {
		t.Fatalf("title = %q, want %q", conv.Title, wantTitle)
	}

	msgs := fx.messages.all(result.ConversationID)
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != types.RoleUser || msgs[0].Content != message {
		t.Fatalf("first persisted message = %+v", msgs[0])
	}
	if msgs[1].Role != types.RoleAssistant || msgs[1].Content != supportiveResult().Message {
		t.Fatalf("second persisted message = %+v", msgs[1])
	}

	// The analysis snapshot landed on the conversation.
	var biases []types.CognitiveBias
	if err := json.Unmarshal(conv.Biases, &biases); err != nil || len(biases) != 1 {
		t.Fatalf("stored biases = %s (err %v)", conv.Biases, err)
	}
	if conv.AnalysisUpdatedAt == nil {
		t.Fatal("AnalysisUpdatedAt not set")
	}
}

func TestSendMessageShortTitleNotTruncated(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})

	result, err := fx.svc.SendMessage(context.Background(), "user-1", types.TierFree, SendMessageInput{Message: "Rough day"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got := fx.conversations.rows[result.ConversationID].Title; got != "Rough day" {
		t.Fatalf("title = %q, want %q", got, "Rough day")
	}
}

func TestSendMessageTitleTruncationKeepsRunesIntact(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})

	// A rune straddles the cut point when counting bytes, so byte slicing
	// would store invalid UTF-8.
	message := strings.Repeat("a", titleMaxLen-1) + "émotions à fleur de peau depuis plusieurs semaines"
	result, err := fx.svc.SendMessage(context.Background(), "user-1", types.TierFree, SendMessageInput{Message: message})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	got := fx.conversations.rows[result.ConversationID].Title
	if !utf8.ValidString(got) {
		t.Fatalf("title is not valid UTF-8: %q", got)
	}
	want := string([]rune(message)[:titleMaxLen]) + "..."
	if got != want {
		t.Fatalf("title = %q, want %q", got, want)
	}
}

func TestSendMessageQuotaExceeded(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})
	fx.usage.allowChat = false

	_, err := fx.svc.SendMessage(context.Background(), "user-1", types.TierFree, SendMessageInput{Message: "hello"})
	apiErr, ok := types.AsAPIError(err)
	if !ok {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Code != "USAGE_LIMIT_EXCEEDED" {
		t.Fatalf("code = %q, want USAGE_LIMIT_EXCEEDED", apiErr.Code)
	}
	if apiErr.Meta["limit"] != FreeTierMonthlyMessages {
		t.Fatalf("meta limit = %v, want %d", apiErr.Meta["limit"], FreeTierMonthlyMessages)
	}

	// A denied turn writes nothing.
	if len(fx.conversations.rows) != 0 {
		t.Fatal("conversation created despite denied quota")
	}
	if fx.ai.calls != 0 {
		t.Fatal("model called despite denied quota")
	}
}

func TestSendMessageProTierSkipsQuota(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})
	fx.usage.allowChat = false // would deny if consulted

	_, err := fx.svc.SendMessage(context.Background(), "user-1", types.TierPro, SendMessageInput{Message: "hello"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if fx.usage.chatCalls != 0 {
		t.Fatalf("quota gate called %d times for PRO, want 0", fx.usage.chatCalls)
	}
}

func TestSendMessageCrisisShortCircuit(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})
	ctx := context.Background()

	conv, err := fx.svc.CreateConversation(ctx, "user-1", "check-in")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	result, err := fx.svc.SendMessage(ctx, "user-1", types.TierFree, SendMessageInput{
		Message:        "I want to kill myself",
		ConversationID: &conv.ID,
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if fx.ai.calls != 0 {
		t.Fatalf("model called %d times on crisis path, want 0", fx.ai.calls)
	}
	if !result.CrisisDetected {
		t.Fatal("CrisisDetected not set")
	}
	if result.ModelTier != types.TierSafetyOverride {
		t.Fatalf("ModelTier = %q, want %q", result.ModelTier, types.TierSafetyOverride)
	}
	if result.RiskAssessment == nil || result.RiskAssessment.Action != "IMMEDIATE_CRISIS_INTERVENTION" {
		t.Fatalf("RiskAssessment = %+v", result.RiskAssessment)
	}
	if !strings.Contains(result.Message.Content, "988") {
		t.Fatalf("assistant message is not the intervention text: %q", result.Message.Content)
	}

	msgs := fx.messages.all(conv.ID)
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want user turn plus intervention", len(msgs))
	}
	if msgs[1].Role != types.RoleAssistant {
		t.Fatalf("second message role = %q", msgs[1].Role)
	}

	var state map[string]any
	stored := fx.conversations.rows[conv.ID]
	if err := json.Unmarshal(stored.EmotionalState, &state); err != nil {
		t.Fatalf("emotional state: %v", err)
	}
	if state["crisis"] != true {
		t.Fatalf("conversation not flagged: %v", state)
	}
}

func TestSendMessageDeepTierRequested(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})

	result, err := fx.svc.SendMessage(context.Background(), "user-1", types.TierFree, SendMessageInput{
		Message:             "Looking back over our conversations, what stands out?",
		RequestDeepAnalysis: true,
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.ModelTier != types.TierDeep {
		t.Fatalf("ModelTier = %q, want %q", result.ModelTier, types.TierDeep)
	}
	if fx.ai.lastOpts.ModelTier != types.TierDeep || !fx.ai.lastOpts.ThinkingEnabled {
		t.Fatalf("model opts = %+v, want deep with thinking", fx.ai.lastOpts)
	}
}

func TestSendMessageComplexContentEscalates(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})

	result, err := fx.svc.SendMessage(context.Background(), "user-1", types.TierFree, SendMessageInput{
		Message: "My father passed away last month and I keep replaying it",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.ModelTier != types.TierDeep {
		t.Fatalf("ModelTier = %q, want %q", result.ModelTier, types.TierDeep)
	}
}

func TestSendMessageGenerationFailure(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{err: errors.New("upstream timeout")})

	_, err := fx.svc.SendMessage(context.Background(), "user-1", types.TierFree, SendMessageInput{Message: "hello there"})
	apiErr, ok := types.AsAPIError(err)
	if !ok {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Code != "AI_SERVICE_ERROR" || apiErr.Status != 503 {
		t.Fatalf("got %q/%d, want AI_SERVICE_ERROR/503", apiErr.Code, apiErr.Status)
	}
	convID, ok := apiErr.Meta["conversationId"].(uuid.UUID)
	if !ok {
		t.Fatalf("meta conversationId = %v", apiErr.Meta["conversationId"])
	}

	// Both the user turn and the apology survive the failure.
	msgs := fx.messages.all(convID)
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "hello there" {
		t.Fatalf("user message = %q", msgs[0].Content)
	}
	if msgs[1].Content != generationErrorReply {
		t.Fatalf("apology message = %q", msgs[1].Content)
	}
}

func TestSendMessageUnsafeResponseReplaced(t *testing.T) {
	unsafe := supportiveResult()
	unsafe.Message = "Honestly, just get over it and move on"
	fx := newChatFixture(&fakeAIClient{result: unsafe})

	result, err := fx.svc.SendMessage(context.Background(), "user-1", types.TierFree, SendMessageInput{Message: "I'm struggling today"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Message.Content != unsafeFallbackReply {
		t.Fatalf("stored reply = %q, want fallback", result.Message.Content)
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})
	stray := uuid.New()

	_, err := fx.svc.SendMessage(context.Background(), "user-1", types.TierFree, SendMessageInput{
		Message:        "hello",
		ConversationID: &stray,
	})
	apiErr, ok := types.AsAPIError(err)
	if !ok || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestSendMessageOtherUsersConversationHidden(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})
	ctx := context.Background()

	conv, err := fx.svc.CreateConversation(ctx, "owner", "private")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	_, err = fx.svc.SendMessage(ctx, "intruder", types.TierFree, SendMessageInput{
		Message:        "hello",
		ConversationID: &conv.ID,
	})
	apiErr, ok := types.AsAPIError(err)
	if !ok || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("error = %v, want NOT_FOUND for foreign conversation", err)
	}
}

func TestSendMessageMergesAcrossTurns(t *testing.T) {
	fx := newChatFixture(&fakeAIClient{result: supportiveResult()})
	ctx := context.Background()

	first, err := fx.svc.SendMessage(ctx, "user-1", types.TierFree, SendMessageInput{Message: "Feeling anxious about the review"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}

	second := supportiveResult()
	second.Analysis.Biases = []types.CognitiveBias{
		{Name: "catastrophizing", Confidence: 90},
		{Name: "mind-reading", Confidence: 40},
	}
	second.Analysis.Insights = []string{"A brand new theme emerged around control at work"}
	fx.ai.result = second

	if _, err = fx.svc.SendMessage(ctx, "user-1", types.TierFree, SendMessageInput{
		Message:        "Still anxious, my manager barely looked at me",
		ConversationID: &first.ConversationID,
	}); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	conv := fx.conversations.rows[first.ConversationID]
	var biases []types.CognitiveBias
	if err := json.Unmarshal(conv.Biases, &biases); err != nil {
		t.Fatalf("stored biases: %v", err)
	}
	if len(biases) != 2 {
		t.Fatalf("merged biases = %+v, want 2 entries", biases)
	}
	if biases[0].Name != "catastrophizing" || biases[0].Confidence != 90 {
		t.Fatalf("catastrophizing should be upgraded to 90, got %+v", biases[0])
	}

	var insights []string
	if err := json.Unmarshal(conv.Insights, &insights); err != nil {
		t.Fatalf("stored insights: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("merged insights = %v, want 2 entries", insights)
	}
}
