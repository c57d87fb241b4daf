package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/types"
	"github.com/matchahq/matcha-backend/internal/utils"
)

// ChatMessage is the provider wire shape: role is "system", "user" or
// "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatOptions struct {
	ModelTier       types.ModelTier
	ThinkingEnabled bool
}

type ChatResult struct {
	Message  string
	Analysis *types.AnalysisData
	Usage    *types.TokenUsage
}

// Client is the language-model collaborator. ChatWithThinking serves chat
// turns; Analyze serves the one-shot analysis worker.
type Client interface {
	ChatWithThinking(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*ChatResult, error)
	Analyze(ctx context.Context, inputText string) (*types.AnalysisData, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client

	standardModel string
	deepModel     string
	maxRetries    int
}

func NewClient(log *logger.Logger) (Client, error) {
	serviceLog := log.With("service", "OpenRouterClient")

	apiKey := utils.GetEnv("OPENROUTER_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENROUTER_API_KEY")
	}
	baseURL := strings.TrimRight(utils.GetEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1", log), "/")
	standardModel := utils.GetEnv("OPENROUTER_STANDARD_MODEL", "openai/gpt-4o-mini", log)
	deepModel := utils.GetEnv("OPENROUTER_DEEP_MODEL", "anthropic/claude-sonnet-4", log)

	timeoutSec := utils.GetEnvAsInt("OPENROUTER_TIMEOUT_SECONDS", 120, log)
	maxRetries := utils.GetEnvAsInt("OPENROUTER_MAX_RETRIES", 3, log)

	return &client{
		log:           serviceLog,
		baseURL:       baseURL,
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		standardModel: standardModel,
		deepModel:     deepModel,
		maxRetries:    maxRetries,
	}, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openrouter http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var he *httpError
	if errors.As(err, &he) {
		return isRetryableHTTP(he.StatusCode)
	}
	return false
}

type completionRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	Reasoning *reasoning    `json:"reasoning,omitempty"`
}

type reasoning struct {
	Effort string `json:"effort"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *types.TokenUsage `json:"usage"`
}

func (c *client) modelFor(tier types.ModelTier) string {
	if tier == types.TierDeep {
		return c.deepModel
	}
	return c.standardModel
}

func (c *client) ChatWithThinking(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*ChatResult, error) {
	req := completionRequest{
		Model:    c.modelFor(opts.ModelTier),
		Messages: messages,
	}
	if opts.ThinkingEnabled {
		req.Reasoning = &reasoning{Effort: "high"}
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openrouter returned no choices")
	}

	text, analysis := splitAnalysisTrailer(resp.Choices[0].Message.Content)
	return &ChatResult{
		Message:  text,
		Analysis: analysis,
		Usage:    resp.Usage,
	}, nil
}

func (c *client) Analyze(ctx context.Context, inputText string) (*types.AnalysisData, error) {
	req := completionRequest{
		Model: c.deepModel,
		Messages: []ChatMessage{
			{Role: "system", Content: analyzeSystemPrompt},
			{Role: "user", Content: inputText},
		},
	}
	resp, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openrouter returned no choices")
	}
	data, err := parseAnalysisJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	return data, nil
}

func (c *client) complete(ctx context.Context, req completionRequest) (*completionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			backoff += time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			c.log.Warn("retrying openrouter call", "attempt", attempt, "error", lastErr)
		}

		resp, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryableErr(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *client) doOnce(ctx context.Context, body []byte) (*completionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 500)}
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
