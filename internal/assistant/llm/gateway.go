// internal/assistant/llm/gateway.go
package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/common/http"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
)

// GatewayProvider talks to an OpenAI-compatible chat completions endpoint with tool calling.
type GatewayProvider struct {
	client     *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string          `json:"type"`
	Function chatFunctionDef `json:"function"`
}

type chatFunctionDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// NewGatewayProvider builds the gateway provider. RateLimit <= 0 disables the limiter.
func NewGatewayProvider(cfg config.ModelConfig, log logger.Logger) *GatewayProvider {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayProvider{
		client:     http.NewClient(timeout),
		limiter:    rate.NewLimiter(limit, burst),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Name,
		maxRetries: cfg.MaxRetries,
		backoff:    200 * time.Millisecond,
		log:        log.WithFields(map[string]interface{}{"component": "llm-gateway"}),
	}
}

func (g *GatewayProvider) Name() string { return "gateway" }

// Complete sends req and retries temporary transport failures up to maxRetries times.
func (g *GatewayProvider) Complete(ctx context.Context, req Request) (*Reply, error) {
	body, err := g.buildRequest(req)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{}
	if g.apiKey != "" {
		headers["Authorization"] = "Bearer " + g.apiKey
	}

	var resp chatResponse
	for attempt := 0; ; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, classify(ctx, err)
		}
		err = g.client.DoJSON(ctx, "POST", g.baseURL+"/chat/completions", headers, body, &resp)
		if err == nil {
			break
		}
		if attempt >= g.maxRetries || !retryable(ctx, err) {
			return nil, classify(ctx, err)
		}
		delay := g.backoff * time.Duration(1<<attempt)
		g.log.Warn("model gateway call failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, classify(ctx, ctx.Err())
		case <-time.After(delay):
		}
	}
	return parseChatResponse(&resp)
}

func (g *GatewayProvider) buildRequest(req Request) (*chatRequest, error) {
	out := &chatRequest{Model: g.model, Temperature: 0.1}
	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: roleName(m.Role), Content: m.Text})
	}
	for _, f := range req.Functions {
		params, err := f.Schema.ToMap()
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", f.Name, err)
		}
		out.Tools = append(out.Tools, chatTool{
			Type:     "function",
			Function: chatFunctionDef{Name: f.Name, Description: f.Description, Parameters: params},
		})
	}
	return out, nil
}

func parseChatResponse(resp *chatResponse) (*Reply, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrModelMalformed)
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0].Function
		args := map[string]interface{}{}
		if strings.TrimSpace(call.Arguments) != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: arguments of %s: %v", ErrModelMalformed, call.Name, err)
			}
		}
		return &Reply{Call: &FunctionCall{Name: call.Name, Args: args}}, nil
	}
	return &Reply{Text: msg.Content}, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || stderrors.Is(err, http.ErrDecode) {
		return false
	}
	var se *http.StatusError
	if stderrors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func classify(ctx context.Context, err error) error {
	switch {
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded), stderrors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrModelTimeout, err)
	case stderrors.Is(err, http.ErrDecode):
		return fmt.Errorf("%w: %v", ErrModelMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
}

func roleName(r models.Role) string {
	if r == models.RoleAssistant {
		return "assistant"
	}
	return "user"
}
