// Package gateway is the uniform client for invoking remote LLMs through an
// OpenRouter-compatible chat-completions API. It normalizes provider failures
// into typed errors and leaves all retry policy to the caller.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"thailaw-council/pkg/logger"
)

// Message roles mirrored from the chat-completions wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a model's message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the outcome of one model invocation inside a fan-out. Exactly one
// of Text or Err is meaningful.
type Result struct {
	Text    string
	Latency time.Duration
	Err     error
}

// Config configures the gateway.
type Config struct {
	APIKey         string
	BaseURL        string
	DefaultTimeout time.Duration
}

// Gateway invokes named models against an OpenRouter-compatible endpoint.
type Gateway struct {
	client         *openai.Client
	defaultTimeout time.Duration
}

// New creates a Gateway. BaseURL should point at the provider's /v1 root,
// e.g. "https://openrouter.ai/api/v1".
func New(cfg Config) *Gateway {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Gateway{
		client:         openai.NewClientWithConfig(clientCfg),
		defaultTimeout: timeout,
	}
}

// Invoke queries a single model with the given message list and timeout.
// Failures are normalized: provider non-2xx becomes *UpstreamError (429 becomes
// *RateLimitError) and an exceeded deadline becomes *TimeoutError. The gateway
// never retries; exclusion and retry policy belong to the orchestrator.
func (g *Gateway) Invoke(ctx context.Context, model string, messages []Message, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = g.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: chatMessages,
	})
	if err != nil {
		return "", normalizeError(model, timeout, err)
	}

	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Model: model, Message: "no choices in response"}
	}

	return resp.Choices[0].Message.Content, nil
}

// InvokeAll queries every model in parallel with an identical message list and
// one shared deadline. Each model gets a Result; failed models carry their
// normalized error instead of failing the whole fan-out.
func (g *Gateway) InvokeAll(ctx context.Context, models []string, messages []Message, timeout time.Duration) map[string]Result {
	g2, ctx := errgroup.WithContext(ctx)

	results := make(map[string]Result, len(models))
	var mu sync.Mutex

	for _, model := range models {
		model := model
		g2.Go(func() error {
			start := time.Now()
			text, err := g.Invoke(ctx, model, messages, timeout)
			latency := time.Since(start)

			if err != nil {
				logger.Warn("model invocation failed",
					zap.String("model", model),
					zap.Duration("latency", latency),
					zap.Error(err))
			}

			mu.Lock()
			results[model] = Result{Text: text, Latency: latency, Err: err}
			mu.Unlock()
			return nil
		})
	}

	// Goroutines never return errors; Wait only synchronizes completion.
	_ = g2.Wait()

	return results
}

// normalizeError maps transport and provider errors onto the gateway's typed
// error taxonomy.
func normalizeError(model string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Model: model, Timeout: timeout}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &RateLimitError{Model: model}
		}
		return &UpstreamError{Model: model, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &RateLimitError{Model: model}
		}
		return &UpstreamError{Model: model, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}

	return &UpstreamError{Model: model, Message: err.Error()}
}
